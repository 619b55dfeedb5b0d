package handlers

import (
	"context"
	"encoding/json"

	"github.com/voxhub/realtime/internal/ws"
)

type saveTokenRequest struct {
	Token string `json:"token"`
}

// bindMain handles the default namespace: notification acknowledgement and
// push-token registration. Everything else on this namespace is
// connection-lifecycle only.
func (h *Handler) bindMain(c *ws.Client) {
	c.On("markNotificationsAsRead", func(ctx context.Context, data json.RawMessage) {
		h.presence.MarkNotificationsRead(ctx, c.UserID)
	})

	c.On("saveTokenNotification", func(ctx context.Context, data json.RawMessage) {
		var req saveTokenRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.presence.SaveNotificationToken(ctx, c.UserID, req.Token)
	})
}
