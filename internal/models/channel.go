package models

import "github.com/google/uuid"

// ChannelParticipant is one user's slot in a voice/video channel, mirrored
// into the keyed state store at channels/{channelId}/users/{userId}.
// A user holds at most one slot across the whole platform at any time.
type ChannelParticipant struct {
	UserID        uuid.UUID `json:"userId"`
	DisplayName   string    `json:"displayName"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	MicMuted      bool      `json:"micMuted"`
	VideoOn       bool      `json:"videoOn"`
	DesktopShared bool      `json:"desktopShared"`
}
