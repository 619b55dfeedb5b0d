package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/voxhub/realtime/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development
// fallback when no DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/realtime.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/realtime.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		avatar_url TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL REFERENCES users(id),
		receiver_id TEXT REFERENCES users(id),
		channel_id TEXT,
		content TEXT NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0,
		reply_to_id TEXT REFERENCES messages(id) ON DELETE SET NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
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
		user_id TEXT NOT NULL REFERENCES users(id),
		icon TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hidden_messages (
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id),
		PRIMARY KEY (message_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		body TEXT DEFAULT '',
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS notification_tokens (
		user_id TEXT NOT NULL REFERENCES users(id),
		token TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, token)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_direct ON messages(sender_id, receiver_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(user_id, is_read);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, avatar_url, created_at
		FROM users WHERE id = ?
	`, id.String()).Scan(&idStr, &user.DisplayName, &user.AvatarURL, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateMessage persists a message row, assigning a ULID and timestamp when unset.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, channel_id, content, is_read, reply_to_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SenderID.String(), uuidPtr(msg.ReceiverID), uuidPtr(msg.ChannelID),
		msg.Content, msg.IsRead, msg.ReplyToID, msg.CreatedAt)
	return err
}

// AddAttachments persists attachment rows for a message.
func (s *SQLiteStore) AddAttachments(ctx context.Context, messageID string, attachments []models.Attachment) error {
	for i := range attachments {
		att := &attachments[i]
		if att.ID == "" {
			att.ID = ulid.Make().String()
		}
		att.MessageID = messageID
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO attachments (id, message_id, url, kind) VALUES (?, ?, ?, ?)
		`, att.ID, att.MessageID, att.URL, att.Kind)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetMessageByID retrieves a bare message row.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sender_id, receiver_id, channel_id, content, is_read, reply_to_id, created_at
		FROM messages WHERE id = ?
	`, id)
	msg, err := scanMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// GetMessageFull retrieves a message with sender, receiver, attachment,
// reaction, and reply joins populated.
func (s *SQLiteStore) GetMessageFull(ctx context.Context, id string) (*models.Message, error) {
	msg, err := s.GetMessageByID(ctx, id)
	if err != nil || msg == nil {
		return msg, err
	}

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

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, url, kind FROM attachments WHERE message_id = ? ORDER BY id
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

	reactionRows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, user_id, icon FROM reactions WHERE message_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer reactionRows.Close()
	for reactionRows.Next() {
		var reaction models.Reaction
		var userStr string
		if err := reactionRows.Scan(&reaction.ID, &reaction.MessageID, &userStr, &reaction.Icon); err != nil {
			return nil, err
		}
		if reaction.UserID, err = uuid.Parse(userStr); err != nil {
			return nil, err
		}
		msg.Reactions = append(msg.Reactions, reaction)
	}
	return msg, reactionRows.Err()
}

// DeleteMessage hard-deletes a message row.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	return err
}

// MarkMessagesRead bulk-flags unread direct messages from sender to receiver.
func (s *SQLiteStore) MarkMessagesRead(ctx context.Context, senderID, receiverID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1
		WHERE channel_id IS NULL AND sender_id = ? AND receiver_id = ? AND is_read = 0
	`, senderID.String(), receiverID.String())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// HideMessage records a per-user soft hide.
func (s *SQLiteStore) HideMessage(ctx context.Context, messageID string, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO hidden_messages (message_id, user_id) VALUES (?, ?)
	`, messageID, userID.String())
	return err
}

// ListDirectMessages retrieves the direct conversation between two users,
// newest first, excluding messages the requesting user has hidden.
func (s *SQLiteStore) ListDirectMessages(ctx context.Context, userID, partnerID uuid.UUID, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, channel_id, content, is_read, reply_to_id, created_at
		FROM messages m
		WHERE channel_id IS NULL
		  AND ((sender_id = ?1 AND receiver_id = ?2) OR (sender_id = ?2 AND receiver_id = ?1))
		  AND NOT EXISTS (
			SELECT 1 FROM hidden_messages h WHERE h.message_id = m.id AND h.user_id = ?1
		  )
		ORDER BY created_at DESC
		LIMIT ?3
	`, userID.String(), partnerID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// CreateReaction persists a reaction row, assigning a ULID when unset.
func (s *SQLiteStore) CreateReaction(ctx context.Context, reaction *models.Reaction) error {
	if reaction.ID == "" {
		reaction.ID = ulid.Make().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reactions (id, message_id, user_id, icon) VALUES (?, ?, ?, ?)
	`, reaction.ID, reaction.MessageID, reaction.UserID.String(), reaction.Icon)
	return err
}

// GetReaction retrieves a reaction by ID.
func (s *SQLiteStore) GetReaction(ctx context.Context, id string) (*models.Reaction, error) {
	reaction := &models.Reaction{}
	var userStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, message_id, user_id, icon FROM reactions WHERE id = ?
	`, id).Scan(&reaction.ID, &reaction.MessageID, &userStr, &reaction.Icon)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if reaction.UserID, err = uuid.Parse(userStr); err != nil {
		return nil, err
	}
	return reaction, nil
}

// UpdateReaction changes the icon of an existing reaction.
func (s *SQLiteStore) UpdateReaction(ctx context.Context, id, icon string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reactions SET icon = ? WHERE id = ?`, icon, id)
	return err
}

// DeleteReaction removes a reaction row.
func (s *SQLiteStore) DeleteReaction(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reactions WHERE id = ?`, id)
	return err
}

// RecentConversations computes the recent-chats summary for a user.
func (s *SQLiteStore) RecentConversations(ctx context.Context, userID uuid.UUID, limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.partner_id, u.display_name, u.avatar_url, c.content, c.created_at,
		       (SELECT COUNT(*) FROM messages m
		        WHERE m.channel_id IS NULL AND m.sender_id = c.partner_id
		          AND m.receiver_id = ?1 AND m.is_read = 0) AS unread
		FROM (
			SELECT partner_id, content, created_at FROM (
				SELECT CASE WHEN sender_id = ?1 THEN receiver_id ELSE sender_id END AS partner_id,
				       content, created_at,
				       ROW_NUMBER() OVER (
						PARTITION BY CASE WHEN sender_id = ?1 THEN receiver_id ELSE sender_id END
						ORDER BY created_at DESC
				       ) AS rn
				FROM messages
				WHERE channel_id IS NULL AND (sender_id = ?1 OR receiver_id = ?1)
			) WHERE rn = 1
		) c
		JOIN users u ON u.id = c.partner_id
		ORDER BY c.created_at DESC
		LIMIT ?2
	`, userID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		var partnerStr string
		err := rows.Scan(&partnerStr, &conv.PartnerName, &conv.PartnerAvatar,
			&conv.LastMessage, &conv.LastAt, &conv.UnreadCount)
		if err != nil {
			return nil, err
		}
		if conv.PartnerID, err = uuid.Parse(partnerStr); err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// CreateNotification stores a notification row.
func (s *SQLiteStore) CreateNotification(ctx context.Context, userID uuid.UUID, title, body string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, body) VALUES (?, ?, ?, ?)
	`, ulid.Make().String(), userID.String(), title, body)
	return err
}

// CountUnreadNotifications counts a user's unread notifications.
func (s *SQLiteStore) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0
	`, userID.String()).Scan(&count)
	return count, err
}

// MarkNotificationsRead flags all of a user's notifications read.
func (s *SQLiteStore) MarkNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0
	`, userID.String())
	return err
}

// SaveNotificationToken stores a push token for a user.
func (s *SQLiteStore) SaveNotificationToken(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO notification_tokens (user_id, token) VALUES (?, ?)
	`, userID.String(), token)
	return err
}

// scanMessage scans one message row shared by QueryRow and Query paths.
func scanMessage(scan func(dest ...any) error) (*models.Message, error) {
	msg := &models.Message{}
	var senderStr string
	var receiverStr, channelStr sql.NullString

	err := scan(&msg.ID, &senderStr, &receiverStr, &channelStr,
		&msg.Content, &msg.IsRead, &msg.ReplyToID, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	if msg.SenderID, err = uuid.Parse(senderStr); err != nil {
		return nil, err
	}
	if receiverStr.Valid {
		id, err := uuid.Parse(receiverStr.String)
		if err != nil {
			return nil, err
		}
		msg.ReceiverID = &id
	}
	if channelStr.Valid {
		id, err := uuid.Parse(channelStr.String)
		if err != nil {
			return nil, err
		}
		msg.ChannelID = &id
	}
	return msg, nil
}

// uuidPtr renders an optional UUID for a nullable TEXT column.
func uuidPtr(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
