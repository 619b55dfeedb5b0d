package handlers

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/voxhub/realtime/internal/channels"
	"github.com/voxhub/realtime/internal/ws"
)

type serverIDRequest struct {
	ServerID uuid.UUID `json:"serverId"`
}

type joinChannelRequest struct {
	ChannelID   uuid.UUID `json:"channelId"`
	DisplayName string    `json:"displayName"`
	MicMuted    bool      `json:"micMuted"`
	AvatarURL   string    `json:"avatarUrl"`
}

type channelIDRequest struct {
	ChannelID uuid.UUID `json:"channelId"`
}

type channelFlagRequest struct {
	ChannelID uuid.UUID `json:"channelId"`
	Flag      bool      `json:"flag"`
}

var channelEvents = []string{"joinChannel", "leaveChannel", "toggleMic", "toggleVideo", "toggleShareScreen"}

// bindServer handles the voice-server namespace. Channel operations only
// exist between joinServer and leaveServer; outside that window the events
// are unhandled and count as dropped.
func (h *Handler) bindServer(c *ws.Client) {
	c.On("joinServer", func(ctx context.Context, data json.RawMessage) {
		var req serverIDRequest
		if err := json.Unmarshal(data, &req); err != nil || req.ServerID == uuid.Nil {
			return
		}
		h.rooms.JoinRoom(c.ID, channels.ServerRoom(req.ServerID))
		h.bindChannelOps(c, req.ServerID)
	})

	c.On("leaveServer", func(ctx context.Context, data json.RawMessage) {
		var req serverIDRequest
		if err := json.Unmarshal(data, &req); err != nil || req.ServerID == uuid.Nil {
			return
		}
		for _, event := range channelEvents {
			c.Off(event)
		}
		h.channels.LeaveServer(ctx, req.ServerID, c.UserID)
		h.rooms.LeaveRoom(c.ID, channels.ServerRoom(req.ServerID))
	})
}

// bindChannelOps registers the per-server channel events. A repeated
// joinServer re-registers against the new server id; On replaces in place, so
// join/leave cycles never stack handlers.
func (h *Handler) bindChannelOps(c *ws.Client, serverID uuid.UUID) {
	c.On("joinChannel", func(ctx context.Context, data json.RawMessage) {
		var req joinChannelRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.channels.Join(ctx, serverID, req.ChannelID, c.UserID, req.DisplayName, req.MicMuted, req.AvatarURL)
	})

	c.On("leaveChannel", func(ctx context.Context, data json.RawMessage) {
		var req channelIDRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.channels.Leave(ctx, serverID, req.ChannelID, c.UserID)
	})

	c.On("toggleMic", func(ctx context.Context, data json.RawMessage) {
		var req channelFlagRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.channels.ToggleMic(ctx, serverID, req.ChannelID, c.UserID, req.Flag)
	})

	c.On("toggleVideo", func(ctx context.Context, data json.RawMessage) {
		var req channelFlagRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.channels.ToggleVideo(ctx, serverID, req.ChannelID, c.UserID, req.Flag)
	})

	c.On("toggleShareScreen", func(ctx context.Context, data json.RawMessage) {
		var req channelFlagRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		h.channels.ToggleShareScreen(ctx, req.ChannelID, c.UserID, req.Flag)
	})
}
