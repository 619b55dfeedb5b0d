package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a platform member as seen by the realtime core.
// Account lifecycle is owned by the REST layer; this is a read-only view.
type User struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
