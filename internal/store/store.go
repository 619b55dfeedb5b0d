package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/voxhub/realtime/internal/models"
)

// DataStore defines the durable persistence consumed by the realtime core.
// Both PostgresStore and SQLiteStore implement this interface; account and
// server CRUD lives in the REST layer and is not part of this contract.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User views
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// Messages
	CreateMessage(ctx context.Context, msg *models.Message) error
	AddAttachments(ctx context.Context, messageID string, attachments []models.Attachment) error
	GetMessageByID(ctx context.Context, id string) (*models.Message, error)
	GetMessageFull(ctx context.Context, id string) (*models.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	MarkMessagesRead(ctx context.Context, senderID, receiverID uuid.UUID) (int64, error)
	HideMessage(ctx context.Context, messageID string, userID uuid.UUID) error
	ListDirectMessages(ctx context.Context, userID, partnerID uuid.UUID, limit int) ([]models.Message, error)

	// Reactions
	CreateReaction(ctx context.Context, reaction *models.Reaction) error
	GetReaction(ctx context.Context, id string) (*models.Reaction, error)
	UpdateReaction(ctx context.Context, id, icon string) error
	DeleteReaction(ctx context.Context, id string) error

	// Recent conversations
	RecentConversations(ctx context.Context, userID uuid.UUID, limit int) ([]models.Conversation, error)

	// Notifications
	CreateNotification(ctx context.Context, userID uuid.UUID, title, body string) error
	CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkNotificationsRead(ctx context.Context, userID uuid.UUID) error
	SaveNotificationToken(ctx context.Context, userID uuid.UUID, token string) error
}
