package handlers

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/voxhub/realtime/internal/chat"
	"github.com/voxhub/realtime/internal/models"
	"github.com/voxhub/realtime/internal/ws"
)

type sendMessageRequest struct {
	ReceiverID  uuid.UUID           `json:"receiverId"`
	Message     string              `json:"message"`
	ReplyToID   *string             `json:"replyToId"`
	Attachments []models.Attachment `json:"attachments"`
	TempID      string              `json:"tempId"`
}

type getMessagesRequest struct {
	UserID uuid.UUID `json:"userId"` // conversation partner
	Limit  int       `json:"limit"`
}

type markAsReadRequest struct {
	UserID uuid.UUID `json:"userId"` // partner whose messages were read
}

type typingStatusRequest struct {
	ReceiverID uuid.UUID `json:"receiverId"`
	IsTyping   bool      `json:"isTyping"`
}

type messageIDRequest struct {
	MessageID string `json:"messageId"`
}

type iconMessageRequest struct {
	MessageID string `json:"messageId"`
	Icon      string `json:"icon"`
}

type reactionIDRequest struct {
	ID   string `json:"id"`
	Icon string `json:"icon"`
}

// bindChat handles the direct-message namespace. A "partner" query parameter
// on the handshake drops the connection straight into the shared conversation
// room so both sides see the same newMessage fan-out.
func (h *Handler) bindChat(c *ws.Client) {
	if partnerID, err := uuid.Parse(c.Query.Get("partner")); err == nil {
		h.rooms.JoinRoom(c.ID, chat.ConversationRoom(c.UserID, partnerID))
	}

	c.On("sendMessage", func(ctx context.Context, data json.RawMessage) {
		var req sendMessageRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.chat.SendDirect(chat.SendDirectInput{
			SenderID:    c.UserID,
			ReceiverID:  req.ReceiverID,
			Text:        req.Message,
			ReplyToID:   req.ReplyToID,
			Attachments: req.Attachments,
			TempID:      req.TempID,
		})
	})

	c.On("getMessages", func(ctx context.Context, data json.RawMessage) {
		var req getMessagesRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.chat.History(ctx, c.UserID, req.UserID, req.Limit)
	})

	c.On("markAsRead", func(ctx context.Context, data json.RawMessage) {
		var req markAsReadRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.chat.MarkAsRead(ctx, c.UserID, req.UserID)
	})

	c.On("typingStatus", func(ctx context.Context, data json.RawMessage) {
		var req typingStatusRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.chat.Typing(c.UserID, req.ReceiverID, req.IsTyping)
	})

	c.On("deleteMessage", func(ctx context.Context, data json.RawMessage) {
		var req messageIDRequest
		if err := json.Unmarshal(data, &req); err != nil || req.MessageID == "" {
			return
		}
		h.chat.DeleteDirect(ctx, c.UserID, req.MessageID)
	})

	c.On("hiddenMessage", func(ctx context.Context, data json.RawMessage) {
		var req messageIDRequest
		if err := json.Unmarshal(data, &req); err != nil || req.MessageID == "" {
			return
		}
		h.chat.Hide(ctx, c.UserID, req.MessageID)
	})

	c.On("IconMessage", func(ctx context.Context, data json.RawMessage) {
		var req iconMessageRequest
		if err := json.Unmarshal(data, &req); err != nil || req.MessageID == "" {
			return
		}
		h.chat.CreateReaction(ctx, c.UserID, req.MessageID, req.Icon)
	})

	c.On("UpdateIconMessage", func(ctx context.Context, data json.RawMessage) {
		var req reactionIDRequest
		if err := json.Unmarshal(data, &req); err != nil || req.ID == "" {
			return
		}
		h.chat.UpdateReaction(ctx, c.UserID, req.ID, req.Icon)
	})

	c.On("DeleteIconMessage", func(ctx context.Context, data json.RawMessage) {
		var req reactionIDRequest
		if err := json.Unmarshal(data, &req); err != nil || req.ID == "" {
			return
		}
		h.chat.DeleteReaction(ctx, c.UserID, req.ID)
	})
}
