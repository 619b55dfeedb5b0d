package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a direct or channel message row. Exactly one of ReceiverID and
// ChannelID is set. Content is the encrypted envelope; it is never persisted
// in plaintext.
type Message struct {
	ID         string     `json:"id"` // ULID
	SenderID   uuid.UUID  `json:"senderId"`
	ReceiverID *uuid.UUID `json:"receiverId,omitempty"`
	ChannelID  *uuid.UUID `json:"channelId,omitempty"`
	Content    string     `json:"content"`
	IsRead     bool       `json:"isRead"`
	ReplyToID  *string    `json:"replyToId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`

	// Joined views, populated by DataStore reads that request them.
	Sender      *User        `json:"sender,omitempty"`
	Receiver    *User        `json:"receiver,omitempty"`
	ReplyTo     *Message     `json:"replyTo,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Reactions   []Reaction   `json:"reactions,omitempty"`
}

// Attachment is a file or image attached to a message. Upload itself is
// handled by the REST layer; the realtime core only links rows.
type Attachment struct {
	ID        string `json:"id"`
	MessageID string `json:"messageId"`
	URL       string `json:"url"`
	Kind      string `json:"kind,omitempty"` // "image", "file", ...
}

// Reaction is an icon a user attached to a message.
type Reaction struct {
	ID        string    `json:"id"`
	MessageID string    `json:"messageId"`
	UserID    uuid.UUID `json:"userId"`
	Icon      string    `json:"icon"`
}

// Conversation is one entry of a user's recent-chats summary.
type Conversation struct {
	PartnerID     uuid.UUID `json:"partnerId"`
	PartnerName   string    `json:"partnerName"`
	PartnerAvatar string    `json:"partnerAvatar,omitempty"`
	LastMessage   string    `json:"lastMessage"` // decrypted preview
	LastAt        time.Time `json:"lastAt"`
	UnreadCount   int64     `json:"unreadCount"`
}
