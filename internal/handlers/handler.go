// Package handlers binds gated websocket connections to the domain
// components. Each namespace gets its own event set; disconnects fan into
// the presence, call, and channel cleanup paths.
package handlers

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/voxhub/realtime/internal/calls"
	"github.com/voxhub/realtime/internal/channels"
	"github.com/voxhub/realtime/internal/chat"
	"github.com/voxhub/realtime/internal/presence"
	"github.com/voxhub/realtime/internal/ws"
)

// RoomManager is the slice of the hub the handlers need for membership.
type RoomManager interface {
	JoinRoom(connID, room string)
	LeaveRoom(connID, room string)
}

// Handler implements ws.SessionBinder over the domain components.
type Handler struct {
	rooms    RoomManager
	presence *presence.Service
	channels *channels.Coordinator
	calls    *calls.Engine
	chat     *chat.Pipeline
	log      zerolog.Logger
}

// New wires the binder.
func New(rooms RoomManager, presenceSvc *presence.Service, coordinator *channels.Coordinator, engine *calls.Engine, pipeline *chat.Pipeline, logger zerolog.Logger) *Handler {
	return &Handler{
		rooms:    rooms,
		presence: presenceSvc,
		channels: coordinator,
		calls:    engine,
		chat:     pipeline,
		log:      logger.With().Str("component", "handlers").Logger(),
	}
}

// Bind registers a fresh connection with presence and attaches the event
// handlers for its namespace.
func (h *Handler) Bind(c *ws.Client) {
	ctx := context.Background()
	h.presence.HandleConnect(ctx, c.UserID, c.ID)

	switch c.Namespace {
	case ws.NamespaceMain:
		h.bindMain(c)
	case ws.NamespaceChat:
		h.bindChat(c)
	case ws.NamespaceChannel:
		h.bindChannelChat(c)
	case ws.NamespaceServer:
		h.bindServer(c)
	case ws.NamespaceCall:
		h.bindCall(c)
	}
}

// Unbind runs disconnect cleanup. Call and channel teardown fire only once
// the user's final connection is gone; a second device keeps the session
// alive.
func (h *Handler) Unbind(c *ws.Client) {
	ctx := context.Background()
	last := h.presence.HandleDisconnect(ctx, c.UserID, c.ID)
	if last {
		h.calls.HandleDisconnect(ctx, c.UserID)
		h.channels.HandleDisconnect(ctx, c.UserID)
	}
}
