// Package channels enforces the single-active-channel invariant and mirrors
// per-channel participant rosters into the keyed state store.
package channels

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxhub/realtime/internal/metrics"
	"github.com/voxhub/realtime/internal/models"
	"github.com/voxhub/realtime/internal/state"
)

// Broadcaster is the slice of the realtime transport the coordinator needs.
type Broadcaster interface {
	EmitToRoom(room, event string, payload any)
	EmitToNamespace(namespace, event string, payload any)
}

// Namespace is the transport namespace carrying server/channel traffic.
const Namespace = "server"

// Coordinator moves users between voice channels. A user holds at most one
// participant slot platform-wide; every transition sweeps stale slots first.
type Coordinator struct {
	state state.KeyedStateStore
	b     Broadcaster
	log   zerolog.Logger
}

// New creates a coordinator.
func New(stateStore state.KeyedStateStore, b Broadcaster, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		state: stateStore,
		b:     b,
		log:   logger.With().Str("component", "channels").Logger(),
	}
}

func participantPath(channelID, userID string) string {
	return "channels/" + channelID + "/users/" + userID
}

func indexPath(userID string) string {
	return "userChannels/" + userID
}

// ServerRoom names the broadcast room for a server.
func ServerRoom(serverID uuid.UUID) string {
	return "server-" + serverID.String()
}

// Join places the user into a channel. Empty channel, display name, or user
// makes it a silent no-op. Any channel the user is still indexed under is
// cleaned up first — the loop tolerates more than one stale entry.
func (c *Coordinator) Join(ctx context.Context, serverID, channelID, userID uuid.UUID, displayName string, micMuted bool, avatarURL string) {
	if channelID == uuid.Nil || userID == uuid.Nil || displayName == "" {
		return
	}

	c.sweep(ctx, userID, func(staleChannel string) {
		c.b.EmitToRoom(ServerRoom(serverID), "userLeft", map[string]any{
			"userId":    userID,
			"channelId": staleChannel,
		})
	})

	participant := models.ChannelParticipant{
		UserID:      userID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		MicMuted:    micMuted,
	}
	if err := c.state.Set(ctx, participantPath(channelID.String(), userID.String()), participant); err != nil {
		c.log.Warn().Err(err).Str("channel_id", channelID.String()).Msg("participant write failed")
	}
	if err := c.state.Set(ctx, indexPath(userID.String())+"/"+channelID.String(), true); err != nil {
		c.log.Warn().Err(err).Str("channel_id", channelID.String()).Msg("channel index write failed")
	}

	metrics.ChannelJoins.Inc()

	c.b.EmitToRoom(ServerRoom(serverID), "userJoined", map[string]any{
		"channelId":   channelID,
		"userId":      userID,
		"displayName": displayName,
		"micMuted":    micMuted,
		"avatarUrl":   avatarURL,
	})
}

// Leave removes the user's slot in a channel.
func (c *Coordinator) Leave(ctx context.Context, serverID, channelID, userID uuid.UUID) {
	if channelID == uuid.Nil || userID == uuid.Nil {
		return
	}

	c.removeParticipant(ctx, channelID.String(), userID.String())

	c.b.EmitToRoom(ServerRoom(serverID), "userLeft", map[string]any{
		"userId":    userID,
		"channelId": channelID,
	})
}

// ToggleMic patches the micMuted flag on the user's participant slot.
func (c *Coordinator) ToggleMic(ctx context.Context, serverID, channelID, userID uuid.UUID, flag bool) {
	c.patch(ctx, channelID, userID, "micMuted", flag)
	c.b.EmitToRoom(ServerRoom(serverID), "toggleMic", map[string]any{
		"userId":    userID,
		"flag":      flag,
		"channelId": channelID,
	})
}

// ToggleVideo patches the videoOn flag on the user's participant slot.
func (c *Coordinator) ToggleVideo(ctx context.Context, serverID, channelID, userID uuid.UUID, flag bool) {
	c.patch(ctx, channelID, userID, "videoOn", flag)
	c.b.EmitToRoom(ServerRoom(serverID), "toggleVideo", map[string]any{
		"userId":    userID,
		"flag":      flag,
		"channelId": channelID,
	})
}

// ToggleShareScreen patches the desktopShared flag. Unlike mic/video this
// broadcasts namespace-wide, not server-scoped; the asymmetry is part of the
// wire contract until product says otherwise.
func (c *Coordinator) ToggleShareScreen(ctx context.Context, channelID, userID uuid.UUID, flag bool) {
	c.patch(ctx, channelID, userID, "desktopShared", flag)
	c.b.EmitToNamespace(Namespace, "toggleShareScreen", map[string]any{
		"userId":    userID,
		"flag":      flag,
		"channelId": channelID,
	})
}

// LeaveServer sweeps the user out of any channel, emitting server-scoped
// userLeft events. Handler-level deregistration and room leaving happen in
// the transport layer.
func (c *Coordinator) LeaveServer(ctx context.Context, serverID, userID uuid.UUID) {
	if userID == uuid.Nil {
		return
	}
	c.sweep(ctx, userID, func(staleChannel string) {
		c.b.EmitToRoom(ServerRoom(serverID), "userLeft", map[string]any{
			"userId":    userID,
			"channelId": staleChannel,
		})
	})
}

// HandleDisconnect sweeps the user out of any channel after their connection
// drops. userLeft goes namespace-wide here, mirroring LeaveServer's
// server-scoped emit (second half of the same contract asymmetry).
func (c *Coordinator) HandleDisconnect(ctx context.Context, userID uuid.UUID) {
	if userID == uuid.Nil {
		return
	}
	c.sweep(ctx, userID, func(staleChannel string) {
		c.b.EmitToNamespace(Namespace, "userLeft", map[string]any{
			"userId":    userID,
			"channelId": staleChannel,
		})
	})
}

// sweep removes every channel entry the reverse index lists for the user,
// invoking emit per removal. Removing an already-absent entry is a no-op, so
// a sweep racing a disconnect stays safe.
func (c *Coordinator) sweep(ctx context.Context, userID uuid.UUID, emit func(channelID string)) {
	entries, err := c.state.Once(ctx, indexPath(userID.String()))
	if err != nil {
		c.log.Warn().Err(err).Str("user_id", userID.String()).Msg("channel index read failed")
		return
	}

	for channelID := range entries {
		c.removeParticipant(ctx, channelID, userID.String())
		emit(channelID)
	}
}

func (c *Coordinator) removeParticipant(ctx context.Context, channelID, userID string) {
	if err := c.state.Remove(ctx, participantPath(channelID, userID)); err != nil {
		c.log.Warn().Err(err).Str("channel_id", channelID).Msg("participant remove failed")
	}
	if err := c.state.Remove(ctx, indexPath(userID)+"/"+channelID); err != nil {
		c.log.Warn().Err(err).Str("channel_id", channelID).Msg("channel index remove failed")
	}
}

func (c *Coordinator) patch(ctx context.Context, channelID, userID uuid.UUID, field string, flag bool) {
	if channelID == uuid.Nil || userID == uuid.Nil {
		return
	}
	err := c.state.Update(ctx, participantPath(channelID.String(), userID.String()), map[string]any{field: flag})
	if err != nil {
		c.log.Warn().Err(err).Str("channel_id", channelID.String()).Str("field", field).Msg("participant patch failed")
	}
}
