// Package chat is the message delivery pipeline: direct messages flow
// through one globally ordered FIFO executor, channel messages are handled
// inline. Content is encrypted at rest and decrypted only for fan-out.
package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxhub/realtime/internal/crypto"
	"github.com/voxhub/realtime/internal/metrics"
	"github.com/voxhub/realtime/internal/models"
	"github.com/voxhub/realtime/internal/notify"
	"github.com/voxhub/realtime/internal/store"
)

// Broadcaster is the slice of the realtime transport the pipeline needs.
type Broadcaster interface {
	EmitToRoom(room, event string, payload any)
}

// taskTimeout bounds one queued delivery; the triggering connection may be
// gone by the time the task runs, so tasks never borrow its context.
const taskTimeout = 15 * time.Second

// DeliveryEnvelope is the transient decrypted view of a message built for
// fan-out only; it is never persisted.
type DeliveryEnvelope struct {
	ID          string              `json:"id"`
	SenderID    uuid.UUID           `json:"senderId"`
	ReceiverID  *uuid.UUID          `json:"receiverId,omitempty"`
	ChannelID   *uuid.UUID          `json:"channelId,omitempty"`
	Content     string              `json:"content"` // plaintext, transit only
	IsRead      bool                `json:"isRead"`
	CreatedAt   time.Time           `json:"createdAt"`
	Sender      *models.User        `json:"sender,omitempty"`
	ReplyTo     *DeliveryEnvelope   `json:"replyTo,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
	Reactions   []models.Reaction   `json:"reactions,omitempty"`
	TempID      string              `json:"tempId,omitempty"` // client correlation id
}

// SendDirectInput carries one direct-send invocation.
type SendDirectInput struct {
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	Text        string
	ReplyToID   *string
	Attachments []models.Attachment
	TempID      string
}

// SendChannelInput carries one channel-send invocation.
type SendChannelInput struct {
	SenderID    uuid.UUID
	ChannelID   uuid.UUID
	Text        string
	ReplyToID   *string
	Attachments []models.Attachment
	TempID      string
}

// Pipeline encrypts, persists, and fans out direct and channel messages.
type Pipeline struct {
	store    store.DataStore
	box      *crypto.Box
	b        Broadcaster
	notifier notify.Notifier
	exec     *Executor
	log      zerolog.Logger
}

// New creates the pipeline and starts its FIFO executor.
func New(dataStore store.DataStore, box *crypto.Box, b Broadcaster, notifier notify.Notifier, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:    dataStore,
		box:      box,
		b:        b,
		notifier: notifier,
		exec:     NewExecutor(),
		log:      logger.With().Str("component", "chat").Logger(),
	}
}

// Close drains the direct-message queue.
func (p *Pipeline) Close() {
	p.exec.Close()
}

// Flush waits for all enqueued direct sends to complete. Test hook.
func (p *Pipeline) Flush() {
	p.exec.Flush()
}

// ConversationRoom names the shared room for a direct conversation; both
// orderings of the pair map to the same room.
func ConversationRoom(a, b uuid.UUID) string {
	lo, hi := a.String(), b.String()
	if lo > hi {
		lo, hi = hi, lo
	}
	return "chat-" + lo + "-" + hi
}

// UserRoom names a user's addressed room.
func UserRoom(userID uuid.UUID) string {
	return "user-" + userID.String()
}

// ChannelRoom names a channel's broadcast room.
func ChannelRoom(channelID uuid.UUID) string {
	return "channel-" + channelID.String()
}

// SendDirect validates and enqueues a direct send. Enqueueing happens
// synchronously on the caller, so invocation order across all conversations
// equals execution order.
func (p *Pipeline) SendDirect(in SendDirectInput) {
	if in.SenderID == uuid.Nil || in.ReceiverID == uuid.Nil {
		return
	}
	if in.Text == "" && len(in.Attachments) == 0 {
		return
	}

	p.exec.Enqueue(func() {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		defer cancel()
		p.deliverDirect(ctx, in)
	})
}

func (p *Pipeline) deliverDirect(ctx context.Context, in SendDirectInput) {
	sealed, err := p.box.Encrypt(in.Text)
	if err != nil {
		p.log.Error().Err(err).Msg("message encrypt failed")
		return
	}

	receiverID := in.ReceiverID
	msg := &models.Message{
		SenderID:   in.SenderID,
		ReceiverID: &receiverID,
		Content:    sealed,
		ReplyToID:  in.ReplyToID,
	}
	if err := p.store.CreateMessage(ctx, msg); err != nil {
		p.log.Error().Err(err).Msg("message persist failed")
		return
	}
	if len(in.Attachments) > 0 {
		if err := p.store.AddAttachments(ctx, msg.ID, in.Attachments); err != nil {
			p.log.Error().Err(err).Str("message_id", msg.ID).Msg("attachment persist failed")
		}
	}

	full, err := p.store.GetMessageFull(ctx, msg.ID)
	if err != nil || full == nil {
		p.log.Error().Err(err).Str("message_id", msg.ID).Msg("message reload failed")
		return
	}

	envelope := p.buildEnvelope(full, in.TempID)

	senderName := "Someone"
	if full.Sender != nil {
		senderName = full.Sender.DisplayName
	}
	if err := p.notifier.PushToUser(ctx, in.ReceiverID, senderName, envelope.Content); err != nil {
		p.log.Warn().Err(err).Str("receiver_id", in.ReceiverID.String()).Msg("message push failed")
	}

	p.emitRecentChats(ctx, in.ReceiverID, in.SenderID)

	metrics.MessagesSent.WithLabelValues("direct").Inc()
	p.b.EmitToRoom(ConversationRoom(in.SenderID, in.ReceiverID), "newMessage", envelope)
}

// History loads the requester's visible slice of a conversation (their own
// hidden messages excluded by the store), decrypts it, and emits it to the
// requester's addressed room.
func (p *Pipeline) History(ctx context.Context, userID, partnerID uuid.UUID, limit int) {
	if userID == uuid.Nil || partnerID == uuid.Nil {
		return
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	msgs, err := p.store.ListDirectMessages(ctx, userID, partnerID, limit)
	if err != nil {
		p.log.Warn().Err(err).Str("user_id", userID.String()).Msg("history load failed")
		return
	}

	envelopes := make([]*DeliveryEnvelope, 0, len(msgs))
	for i := range msgs {
		envelopes = append(envelopes, p.buildEnvelope(&msgs[i], ""))
	}
	p.b.EmitToRoom(UserRoom(userID), "messagesList", map[string]any{
		"userId":   partnerID,
		"messages": envelopes,
	})
}

// MarkAsRead bulk-flags unread partner→reader messages and notifies the
// partner's devices.
func (p *Pipeline) MarkAsRead(ctx context.Context, readerID, partnerID uuid.UUID) {
	if readerID == uuid.Nil || partnerID == uuid.Nil {
		return
	}
	if _, err := p.store.MarkMessagesRead(ctx, partnerID, readerID); err != nil {
		p.log.Warn().Err(err).Msg("mark read failed")
		return
	}
	p.b.EmitToRoom(UserRoom(partnerID), "messagesRead", map[string]any{"userId": readerID})
}

// Typing relays a typing indicator to the conversation room; nothing is
// persisted.
func (p *Pipeline) Typing(senderID, receiverID uuid.UUID, isTyping bool) {
	if senderID == uuid.Nil || receiverID == uuid.Nil {
		return
	}
	p.b.EmitToRoom(ConversationRoom(senderID, receiverID), "userTyping", map[string]any{
		"userId":   senderID,
		"isTyping": isTyping,
	})
}

// DeleteDirect hard-deletes a message if and only if the requester sent it.
// Anyone else's request is a silent no-op, indistinguishable from a
// validation failure on the wire.
func (p *Pipeline) DeleteDirect(ctx context.Context, requesterID uuid.UUID, messageID string) {
	msg, err := p.store.GetMessageByID(ctx, messageID)
	if err != nil {
		p.log.Warn().Err(err).Str("message_id", messageID).Msg("message load failed")
		return
	}
	if msg == nil || msg.ReceiverID == nil || msg.SenderID != requesterID {
		return
	}

	if err := p.store.DeleteMessage(ctx, messageID); err != nil {
		p.log.Warn().Err(err).Str("message_id", messageID).Msg("message delete failed")
		return
	}
	p.b.EmitToRoom(ConversationRoom(msg.SenderID, *msg.ReceiverID), "statusDeleMessage", map[string]any{
		"messageId": messageID,
	})
}

// Hide records a per-user soft hide; the message stays visible to everyone
// else.
func (p *Pipeline) Hide(ctx context.Context, userID uuid.UUID, messageID string) {
	msg, err := p.store.GetMessageByID(ctx, messageID)
	if err != nil {
		p.log.Warn().Err(err).Str("message_id", messageID).Msg("message load failed")
		return
	}
	if msg == nil || msg.ReceiverID == nil {
		return
	}

	if err := p.store.HideMessage(ctx, messageID, userID); err != nil {
		p.log.Warn().Err(err).Str("message_id", messageID).Msg("message hide failed")
		return
	}
	p.b.EmitToRoom(ConversationRoom(msg.SenderID, *msg.ReceiverID), "statusHiddenMessage", map[string]any{
		"messageId": messageID,
		"userId":    userID,
	})
}

// CreateReaction attaches an icon to an existing message.
func (p *Pipeline) CreateReaction(ctx context.Context, userID uuid.UUID, messageID, icon string) {
	if icon == "" {
		return
	}
	msg, err := p.store.GetMessageByID(ctx, messageID)
	if err != nil {
		p.log.Warn().Err(err).Str("message_id", messageID).Msg("message load failed")
		return
	}
	if msg == nil || msg.ReceiverID == nil {
		return
	}

	reaction := &models.Reaction{MessageID: messageID, UserID: userID, Icon: icon}
	if err := p.store.CreateReaction(ctx, reaction); err != nil {
		p.log.Warn().Err(err).Str("message_id", messageID).Msg("reaction create failed")
		return
	}
	p.b.EmitToRoom(ConversationRoom(msg.SenderID, *msg.ReceiverID), "dataIconMessage", reaction)
}

// UpdateReaction changes the icon of the requester's own reaction. A missing
// id or someone else's reaction is a silent no-op.
func (p *Pipeline) UpdateReaction(ctx context.Context, userID uuid.UUID, reactionID, icon string) {
	if icon == "" {
		return
	}
	reaction, err := p.store.GetReaction(ctx, reactionID)
	if err != nil {
		p.log.Warn().Err(err).Str("reaction_id", reactionID).Msg("reaction load failed")
		return
	}
	if reaction == nil || reaction.UserID != userID {
		return
	}

	if err := p.store.UpdateReaction(ctx, reactionID, icon); err != nil {
		p.log.Warn().Err(err).Str("reaction_id", reactionID).Msg("reaction update failed")
		return
	}
	reaction.Icon = icon

	if room, ok := p.reactionRoom(ctx, reaction); ok {
		p.b.EmitToRoom(room, "dataUpdateIconMessage", reaction)
	}
}

// DeleteReaction removes the requester's own reaction; missing id or foreign
// reaction is a silent no-op.
func (p *Pipeline) DeleteReaction(ctx context.Context, userID uuid.UUID, reactionID string) {
	reaction, err := p.store.GetReaction(ctx, reactionID)
	if err != nil {
		p.log.Warn().Err(err).Str("reaction_id", reactionID).Msg("reaction load failed")
		return
	}
	if reaction == nil || reaction.UserID != userID {
		return
	}

	if err := p.store.DeleteReaction(ctx, reactionID); err != nil {
		p.log.Warn().Err(err).Str("reaction_id", reactionID).Msg("reaction delete failed")
		return
	}

	if room, ok := p.reactionRoom(ctx, reaction); ok {
		p.b.EmitToRoom(room, "dataDeleteIconMessage", map[string]any{"id": reactionID})
	}
}

func (p *Pipeline) reactionRoom(ctx context.Context, reaction *models.Reaction) (string, bool) {
	msg, err := p.store.GetMessageByID(ctx, reaction.MessageID)
	if err != nil || msg == nil || msg.ReceiverID == nil {
		return "", false
	}
	return ConversationRoom(msg.SenderID, *msg.ReceiverID), true
}

// emitRecentChats recomputes the receiver's recent-conversation summaries
// and pushes both the full list and the entry for the triggering partner to
// the receiver's addressed room. Running inside the FIFO executor keeps the
// summary consistent with the message that triggered it.
func (p *Pipeline) emitRecentChats(ctx context.Context, receiverID, partnerID uuid.UUID) {
	conversations, err := p.store.RecentConversations(ctx, receiverID, 20)
	if err != nil {
		p.log.Warn().Err(err).Str("user_id", receiverID.String()).Msg("recent conversations failed")
		return
	}

	for i := range conversations {
		if pt := p.box.Decrypt(conversations[i].LastMessage); pt != nil {
			conversations[i].LastMessage = *pt
		} else {
			conversations[i].LastMessage = ""
		}
	}

	p.b.EmitToRoom(UserRoom(receiverID), "recentChatsList", map[string]any{
		"conversations": conversations,
	})

	for i := range conversations {
		if conversations[i].PartnerID == partnerID {
			p.b.EmitToRoom(UserRoom(receiverID), "InformationChatWithUserId", conversations[i])
			break
		}
	}
}

// buildEnvelope decrypts a loaded message into its transient fan-out view.
func (p *Pipeline) buildEnvelope(msg *models.Message, tempID string) *DeliveryEnvelope {
	envelope := &DeliveryEnvelope{
		ID:          msg.ID,
		SenderID:    msg.SenderID,
		ReceiverID:  msg.ReceiverID,
		ChannelID:   msg.ChannelID,
		IsRead:      msg.IsRead,
		CreatedAt:   msg.CreatedAt,
		Sender:      msg.Sender,
		Attachments: msg.Attachments,
		Reactions:   msg.Reactions,
		TempID:      tempID,
	}
	if pt := p.box.Decrypt(msg.Content); pt != nil {
		envelope.Content = *pt
	}
	if msg.ReplyTo != nil {
		envelope.ReplyTo = p.buildEnvelope(msg.ReplyTo, "")
	}
	return envelope
}
