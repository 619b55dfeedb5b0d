package handlers

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/voxhub/realtime/internal/ws"
)

type callRequest struct {
	ReceiverID uuid.UUID `json:"receiverId"`
}

type callerIDRequest struct {
	CallerID uuid.UUID `json:"callerId"`
}

type peerIDRequest struct {
	PeerID uuid.UUID `json:"peerId"`
}

// bindCall handles the 1:1 call-signaling namespace.
func (h *Handler) bindCall(c *ws.Client) {
	c.On("call", func(ctx context.Context, data json.RawMessage) {
		var req callRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.calls.Call(ctx, c.UserID, req.ReceiverID)
	})

	c.On("acceptCall", func(ctx context.Context, data json.RawMessage) {
		var req callerIDRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.calls.Accept(ctx, c.UserID, req.CallerID)
	})

	c.On("declineCall", func(ctx context.Context, data json.RawMessage) {
		var req callerIDRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.calls.Decline(ctx, c.UserID, req.CallerID)
	})

	c.On("endCall", func(ctx context.Context, data json.RawMessage) {
		var req peerIDRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.calls.End(ctx, c.UserID, req.PeerID)
	})

	// The canceller's own call record names the peer; the payload is unused.
	c.On("cancelCall", func(ctx context.Context, data json.RawMessage) {
		h.calls.Cancel(ctx, c.UserID)
	})
}
