package handlers

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/voxhub/realtime/internal/chat"
	"github.com/voxhub/realtime/internal/models"
	"github.com/voxhub/realtime/internal/ws"
)

type sendChannelMessageRequest struct {
	ChannelID   uuid.UUID           `json:"channelId"`
	Message     string              `json:"message"`
	ReplyToID   *string             `json:"replyToId"`
	Attachments []models.Attachment `json:"attachments"`
	TempID      string              `json:"tempId"`
}

// bindChannelChat handles the channel-message namespace. A "channel" query
// parameter on the handshake joins the broadcast room for that channel.
func (h *Handler) bindChannelChat(c *ws.Client) {
	if channelID, err := uuid.Parse(c.Query.Get("channel")); err == nil {
		h.rooms.JoinRoom(c.ID, chat.ChannelRoom(channelID))
	}

	c.On("sendMessage", func(ctx context.Context, data json.RawMessage) {
		var req sendChannelMessageRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.chat.SendChannel(ctx, chat.SendChannelInput{
			SenderID:    c.UserID,
			ChannelID:   req.ChannelID,
			Text:        req.Message,
			ReplyToID:   req.ReplyToID,
			Attachments: req.Attachments,
			TempID:      req.TempID,
		})
	})

	c.On("deleteMessage", func(ctx context.Context, data json.RawMessage) {
		var req messageIDRequest
		if err := json.Unmarshal(data, &req); err != nil || req.MessageID == "" {
			return
		}
		h.chat.DeleteChannel(ctx, c.UserID, req.MessageID)
	})
}
