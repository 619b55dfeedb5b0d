package chat

import (
	"context"

	"github.com/google/uuid"

	"github.com/voxhub/realtime/internal/metrics"
	"github.com/voxhub/realtime/internal/models"
)

// SendChannel persists and fans out a channel message inline. Channel sends
// are deliberately not queued: persisted order under concurrency is whatever
// the store commits, which may differ from arrival order.
func (p *Pipeline) SendChannel(ctx context.Context, in SendChannelInput) {
	if in.SenderID == uuid.Nil || in.ChannelID == uuid.Nil {
		return
	}
	if in.Text == "" && len(in.Attachments) == 0 {
		return
	}

	sealed, err := p.box.Encrypt(in.Text)
	if err != nil {
		p.log.Error().Err(err).Msg("channel message encrypt failed")
		return
	}

	channelID := in.ChannelID
	msg := &models.Message{
		SenderID:  in.SenderID,
		ChannelID: &channelID,
		Content:   sealed,
		ReplyToID: in.ReplyToID,
	}
	if err := p.store.CreateMessage(ctx, msg); err != nil {
		p.log.Error().Err(err).Msg("channel message persist failed")
		return
	}
	if len(in.Attachments) > 0 {
		if err := p.store.AddAttachments(ctx, msg.ID, in.Attachments); err != nil {
			p.log.Error().Err(err).Str("message_id", msg.ID).Msg("attachment persist failed")
		}
	}

	full, err := p.store.GetMessageFull(ctx, msg.ID)
	if err != nil || full == nil {
		p.log.Error().Err(err).Str("message_id", msg.ID).Msg("channel message reload failed")
		return
	}

	metrics.MessagesSent.WithLabelValues("channel").Inc()
	p.b.EmitToRoom(ChannelRoom(in.ChannelID), "newMessage", p.buildEnvelope(full, in.TempID))
}

// DeleteChannel hard-deletes a channel message if the requester sent it;
// anyone else's request is a silent no-op.
func (p *Pipeline) DeleteChannel(ctx context.Context, requesterID uuid.UUID, messageID string) {
	msg, err := p.store.GetMessageByID(ctx, messageID)
	if err != nil {
		p.log.Warn().Err(err).Str("message_id", messageID).Msg("message load failed")
		return
	}
	if msg == nil || msg.ChannelID == nil || msg.SenderID != requesterID {
		return
	}

	if err := p.store.DeleteMessage(ctx, messageID); err != nil {
		p.log.Warn().Err(err).Str("message_id", messageID).Msg("message delete failed")
		return
	}
	p.b.EmitToRoom(ChannelRoom(*msg.ChannelID), "statusDeleMessage", map[string]any{
		"messageId": messageID,
	})
}
