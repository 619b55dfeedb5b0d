package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/voxhub/realtime/internal/metrics"
	"github.com/voxhub/realtime/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// RunMigrations applies the realtime-core schema.
func RunMigrations(ctx context.Context, databaseURL string) error {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		display_name TEXT NOT NULL,
		avatar_url TEXT DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id UUID NOT NULL REFERENCES users(id),
		receiver_id UUID REFERENCES users(id),
		channel_id UUID,
		content TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		reply_to_id TEXT REFERENCES messages(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		kind TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS reactions (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id),
		icon TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hidden_messages (
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id),
		PRIMARY KEY (message_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		body TEXT DEFAULT '',
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS notification_tokens (
		user_id UUID NOT NULL REFERENCES users(id),
		token TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, token)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_direct
		ON messages(sender_id, receiver_id, created_at) WHERE channel_id IS NULL;
	CREATE INDEX IF NOT EXISTS idx_messages_channel
		ON messages(channel_id, created_at) WHERE channel_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_messages_unread
		ON messages(receiver_id, is_read) WHERE channel_id IS NULL;
	CREATE INDEX IF NOT EXISTS idx_notifications_unread
		ON notifications(user_id, is_read);
	`

	_, err = pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	defer track(time.Now())

	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, display_name, avatar_url, created_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CreateMessage persists a message row, assigning a ULID and timestamp when unset.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	defer track(time.Now())

	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, channel_id, content, is_read, reply_to_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.ChannelID, msg.Content, msg.IsRead, msg.ReplyToID, msg.CreatedAt)
	return err
}

// AddAttachments persists attachment rows for a message.
func (s *PostgresStore) AddAttachments(ctx context.Context, messageID string, attachments []models.Attachment) error {
	defer track(time.Now())

	for i := range attachments {
		att := &attachments[i]
		if att.ID == "" {
			att.ID = ulid.Make().String()
		}
		att.MessageID = messageID
		_, err := s.pool.Exec(ctx, `
			INSERT INTO attachments (id, message_id, url, kind)
			VALUES ($1, $2, $3, $4)
		`, att.ID, att.MessageID, att.URL, att.Kind)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetMessageByID retrieves a bare message row.
func (s *PostgresStore) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	defer track(time.Now())

	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, sender_id, receiver_id, channel_id, content, is_read, reply_to_id, created_at
		FROM messages WHERE id = $1
	`, id).Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.ChannelID,
		&msg.Content,
		&msg.IsRead,
		&msg.ReplyToID,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// GetMessageFull retrieves a message with sender, receiver, attachment,
// reaction, and reply joins populated.
func (s *PostgresStore) GetMessageFull(ctx context.Context, id string) (*models.Message, error) {
	msg, err := s.GetMessageByID(ctx, id)
	if err != nil || msg == nil {
		return msg, err
	}

	defer track(time.Now())

	if msg.Sender, err = s.GetUserByID(ctx, msg.SenderID); err != nil {
		return nil, err
	}
	if msg.ReceiverID != nil {
		if msg.Receiver, err = s.GetUserByID(ctx, *msg.ReceiverID); err != nil {
			return nil, err
		}
	}
	if msg.ReplyToID != nil {
		if msg.ReplyTo, err = s.GetMessageByID(ctx, *msg.ReplyToID); err != nil {
			return nil, err
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, message_id, url, kind FROM attachments WHERE message_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var att models.Attachment
		if err := rows.Scan(&att.ID, &att.MessageID, &att.URL, &att.Kind); err != nil {
			return nil, err
		}
		msg.Attachments = append(msg.Attachments, att)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reactionRows, err := s.pool.Query(ctx, `
		SELECT id, message_id, user_id, icon FROM reactions WHERE message_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer reactionRows.Close()
	for reactionRows.Next() {
		var reaction models.Reaction
		if err := reactionRows.Scan(&reaction.ID, &reaction.MessageID, &reaction.UserID, &reaction.Icon); err != nil {
			return nil, err
		}
		msg.Reactions = append(msg.Reactions, reaction)
	}
	return msg, reactionRows.Err()
}

// DeleteMessage hard-deletes a message row.
func (s *PostgresStore) DeleteMessage(ctx context.Context, id string) error {
	defer track(time.Now())

	_, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	return err
}

// MarkMessagesRead bulk-flags unread direct messages from sender to receiver.
func (s *PostgresStore) MarkMessagesRead(ctx context.Context, senderID, receiverID uuid.UUID) (int64, error) {
	defer track(time.Now())

	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE channel_id IS NULL AND sender_id = $1 AND receiver_id = $2 AND is_read = FALSE
	`, senderID, receiverID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// HideMessage records a per-user soft hide.
func (s *PostgresStore) HideMessage(ctx context.Context, messageID string, userID uuid.UUID) error {
	defer track(time.Now())

	_, err := s.pool.Exec(ctx, `
		INSERT INTO hidden_messages (message_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, messageID, userID)
	return err
}

// ListDirectMessages retrieves the direct conversation between two users,
// newest first, excluding messages the requesting user has hidden.
func (s *PostgresStore) ListDirectMessages(ctx context.Context, userID, partnerID uuid.UUID, limit int) ([]models.Message, error) {
	defer track(time.Now())

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, channel_id, content, is_read, reply_to_id, created_at
		FROM messages m
		WHERE channel_id IS NULL
		  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		  AND NOT EXISTS (
			SELECT 1 FROM hidden_messages h WHERE h.message_id = m.id AND h.user_id = $1
		  )
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, partnerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.ChannelID,
			&msg.Content,
			&msg.IsRead,
			&msg.ReplyToID,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CreateReaction persists a reaction row, assigning a ULID when unset.
func (s *PostgresStore) CreateReaction(ctx context.Context, reaction *models.Reaction) error {
	defer track(time.Now())

	if reaction.ID == "" {
		reaction.ID = ulid.Make().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reactions (id, message_id, user_id, icon)
		VALUES ($1, $2, $3, $4)
	`, reaction.ID, reaction.MessageID, reaction.UserID, reaction.Icon)
	return err
}

// GetReaction retrieves a reaction by ID.
func (s *PostgresStore) GetReaction(ctx context.Context, id string) (*models.Reaction, error) {
	defer track(time.Now())

	reaction := &models.Reaction{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, message_id, user_id, icon FROM reactions WHERE id = $1
	`, id).Scan(&reaction.ID, &reaction.MessageID, &reaction.UserID, &reaction.Icon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return reaction, nil
}

// UpdateReaction changes the icon of an existing reaction.
func (s *PostgresStore) UpdateReaction(ctx context.Context, id, icon string) error {
	defer track(time.Now())

	_, err := s.pool.Exec(ctx, `UPDATE reactions SET icon = $1 WHERE id = $2`, icon, id)
	return err
}

// DeleteReaction removes a reaction row.
func (s *PostgresStore) DeleteReaction(ctx context.Context, id string) error {
	defer track(time.Now())

	_, err := s.pool.Exec(ctx, `DELETE FROM reactions WHERE id = $1`, id)
	return err
}

// RecentConversations computes the recent-chats summary for a user: the
// latest direct message per partner plus that partner's unread count.
func (s *PostgresStore) RecentConversations(ctx context.Context, userID uuid.UUID, limit int) ([]models.Conversation, error) {
	defer track(time.Now())

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, `
		WITH convo AS (
			SELECT DISTINCT ON (partner_id) partner_id, content, created_at
			FROM (
				SELECT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS partner_id,
				       content, created_at
				FROM messages
				WHERE channel_id IS NULL AND (sender_id = $1 OR receiver_id = $1)
			) dm
			ORDER BY partner_id, created_at DESC
		)
		SELECT c.partner_id, u.display_name, u.avatar_url, c.content, c.created_at,
		       (SELECT COUNT(*) FROM messages m
		        WHERE m.channel_id IS NULL AND m.sender_id = c.partner_id
		          AND m.receiver_id = $1 AND m.is_read = FALSE) AS unread
		FROM convo c
		JOIN users u ON u.id = c.partner_id
		ORDER BY c.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		err := rows.Scan(
			&conv.PartnerID,
			&conv.PartnerName,
			&conv.PartnerAvatar,
			&conv.LastMessage,
			&conv.LastAt,
			&conv.UnreadCount,
		)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// CreateNotification stores a notification row.
func (s *PostgresStore) CreateNotification(ctx context.Context, userID uuid.UUID, title, body string) error {
	defer track(time.Now())

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, title, body)
		VALUES ($1, $2, $3, $4)
	`, ulid.Make().String(), userID, title, body)
	return err
}

// CountUnreadNotifications counts a user's unread notifications.
func (s *PostgresStore) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error) {
	defer track(time.Now())

	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE
	`, userID).Scan(&count)
	return count, err
}

// MarkNotificationsRead flags all of a user's notifications read.
func (s *PostgresStore) MarkNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	defer track(time.Now())

	_, err := s.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE
	`, userID)
	return err
}

// SaveNotificationToken stores a push token for a user.
func (s *PostgresStore) SaveNotificationToken(ctx context.Context, userID uuid.UUID, token string) error {
	defer track(time.Now())

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_tokens (user_id, token)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, token)
	return err
}

func track(start time.Time) {
	metrics.StoreLatency.Observe(time.Since(start).Seconds())
}
