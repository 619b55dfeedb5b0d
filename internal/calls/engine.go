// Package calls runs the per-user-pair state machine for 1:1 calls. Call
// state lives in the keyed store as two mirrored CallRecords, one per
// endpoint; ringing and active share the record.
package calls

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxhub/realtime/internal/metrics"
	"github.com/voxhub/realtime/internal/models"
	"github.com/voxhub/realtime/internal/notify"
	"github.com/voxhub/realtime/internal/state"
)

// Broadcaster is the slice of the realtime transport the engine needs.
// Every call event fans out to each live connection of the recipient, never
// just one socket.
type Broadcaster interface {
	EmitToConnection(connID, event string, payload any)
}

// ConnectionIndex resolves a user's live connections.
type ConnectionIndex interface {
	Connections(userID uuid.UUID) []string
	IsOnline(userID uuid.UUID) bool
}

// UserDirectory resolves display data for call invitations.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Engine mutates call edges and fans out signaling events.
type Engine struct {
	state    state.KeyedStateStore
	conns    ConnectionIndex
	users    UserDirectory
	b        Broadcaster
	notifier notify.Notifier
	log      zerolog.Logger
}

// New creates a call signaling engine.
func New(stateStore state.KeyedStateStore, conns ConnectionIndex, users UserDirectory, b Broadcaster, notifier notify.Notifier, logger zerolog.Logger) *Engine {
	return &Engine{
		state:    stateStore,
		conns:    conns,
		users:    users,
		b:        b,
		notifier: notifier,
		log:      logger.With().Str("component", "calls").Logger(),
	}
}

func callPath(userID uuid.UUID) string {
	return "calls/" + userID.String()
}

// Call initiates a call from caller to receiver. A busy receiver (any
// existing CallRecord, including an echo of this same pair) yields
// user_in_call to the caller; an offline receiver yields user_not_online.
// Otherwise both mirrored records are written and the receiver's devices ring.
func (e *Engine) Call(ctx context.Context, callerID, receiverID uuid.UUID) {
	if callerID == uuid.Nil || receiverID == uuid.Nil {
		return
	}

	var existing models.CallRecord
	busy, err := e.state.Get(ctx, callPath(receiverID), &existing)
	if err != nil {
		e.log.Warn().Err(err).Str("receiver_id", receiverID.String()).Msg("call record read failed")
		return
	}
	if busy {
		metrics.CallsInitiated.WithLabelValues("busy").Inc()
		e.emitToUser(callerID, "user_in_call", map[string]any{"userId": receiverID})
		return
	}

	if !e.conns.IsOnline(receiverID) {
		metrics.CallsInitiated.WithLabelValues("offline").Inc()
		e.emitToUser(callerID, "user_not_online", map[string]any{"userId": receiverID})
		return
	}

	now := time.Now().UnixMilli()
	if err := e.state.Set(ctx, callPath(callerID), models.CallRecord{PeerID: receiverID, Timestamp: now}); err != nil {
		e.log.Warn().Err(err).Msg("caller record write failed")
	}
	if err := e.state.Set(ctx, callPath(receiverID), models.CallRecord{PeerID: callerID, Timestamp: now}); err != nil {
		// Asymmetric pair; later idempotent cleanups tolerate it
		e.log.Warn().Err(err).Msg("receiver record write failed")
	}

	var senderName, senderAvatar string
	if caller, err := e.users.GetUserByID(ctx, callerID); err != nil {
		e.log.Warn().Err(err).Str("caller_id", callerID.String()).Msg("caller lookup failed")
	} else if caller != nil {
		senderName = caller.DisplayName
		senderAvatar = caller.AvatarURL
	}

	if err := e.notifier.PushToUser(ctx, receiverID, "Incoming call", senderName+" is calling you"); err != nil {
		e.log.Warn().Err(err).Str("receiver_id", receiverID.String()).Msg("call push failed")
	}

	metrics.CallsInitiated.WithLabelValues("ringing").Inc()
	e.emitToUser(receiverID, "incomingCall", map[string]any{
		"senderId":     callerID,
		"senderName":   senderName,
		"senderAvatar": senderAvatar,
		"recieverId":   receiverID,
	})
}

// Accept notifies the caller's devices. Acceptance is a pure notification;
// the state machine is still governed solely by CallRecord presence.
func (e *Engine) Accept(ctx context.Context, accepterID, callerID uuid.UUID) {
	e.emitToUser(callerID, "callAccepted", map[string]any{"recieverId": accepterID})
}

// Decline tears down both records and notifies the caller's devices.
func (e *Engine) Decline(ctx context.Context, declinerID, callerID uuid.UUID) {
	e.removeEdge(ctx, declinerID, callerID)
	e.emitToUser(callerID, "callDeclined", map[string]any{"recieverId": declinerID})
}

// End tears down both records and notifies the peer's devices.
func (e *Engine) End(ctx context.Context, enderID, peerID uuid.UUID) {
	e.removeEdge(ctx, enderID, peerID)
	e.emitToUser(peerID, "callEnded", map[string]any{"reason": "ended_by_user"})
}

// Cancel looks up the canceller's own record to find the peer; no record
// means nothing to cancel.
func (e *Engine) Cancel(ctx context.Context, cancellerID uuid.UUID) {
	var record models.CallRecord
	ok, err := e.state.Get(ctx, callPath(cancellerID), &record)
	if err != nil {
		e.log.Warn().Err(err).Str("user_id", cancellerID.String()).Msg("call record read failed")
		return
	}
	if !ok {
		return
	}

	e.removeEdge(ctx, cancellerID, record.PeerID)
	e.emitToUser(record.PeerID, "callCanceled", map[string]any{"recieverId": cancellerID})
}

// HandleDisconnect tears down any call edge the user held when their last
// connection dropped.
func (e *Engine) HandleDisconnect(ctx context.Context, userID uuid.UUID) {
	var record models.CallRecord
	ok, err := e.state.Get(ctx, callPath(userID), &record)
	if err != nil {
		e.log.Warn().Err(err).Str("user_id", userID.String()).Msg("call record read failed")
		return
	}
	if !ok {
		return
	}

	e.removeEdge(ctx, userID, record.PeerID)
	e.emitToUser(record.PeerID, "callEnded", map[string]any{"reason": "peer_disconnected"})
}

// removeEdge deletes both halves of a call edge. Removing an absent record
// is a no-op, so teardown racing another teardown stays safe.
func (e *Engine) removeEdge(ctx context.Context, a, b uuid.UUID) {
	if err := e.state.Remove(ctx, callPath(a)); err != nil {
		e.log.Warn().Err(err).Str("user_id", a.String()).Msg("call record remove failed")
	}
	if err := e.state.Remove(ctx, callPath(b)); err != nil {
		e.log.Warn().Err(err).Str("user_id", b.String()).Msg("call record remove failed")
	}
}

func (e *Engine) emitToUser(userID uuid.UUID, event string, payload any) {
	for _, connID := range e.conns.Connections(userID) {
		e.b.EmitToConnection(connID, event, payload)
	}
}
