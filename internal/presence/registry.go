// Package presence tracks live connections per user and publishes online
// existence to the keyed state store.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxhub/realtime/internal/models"
	"github.com/voxhub/realtime/internal/state"
	"github.com/voxhub/realtime/internal/store"
)

// Broadcaster is the slice of the realtime transport the registry needs.
type Broadcaster interface {
	JoinRoom(connID, room string)
	EmitToRoom(room, event string, payload any)
}

// Service owns the in-memory connection set and the presence records in the
// keyed store. It is constructed once and injected; there is no package-level
// instance.
type Service struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[string]struct{}

	state state.KeyedStateStore
	store store.DataStore
	b     Broadcaster
	log   zerolog.Logger
}

// New creates an empty presence registry.
func New(stateStore state.KeyedStateStore, dataStore store.DataStore, b Broadcaster, logger zerolog.Logger) *Service {
	return &Service{
		conns: make(map[uuid.UUID]map[string]struct{}),
		state: stateStore,
		store: dataStore,
		b:     b,
		log:   logger.With().Str("component", "presence").Logger(),
	}
}

func presencePath(userID uuid.UUID) string {
	return "usersOnline/" + userID.String()
}

// HandleConnect registers a new connection for a user: it joins the user's
// addressed rooms, publishes the presence record, and pushes the current
// unread-notification count. Invalid users never reach this point; the gate
// rejects them before the upgrade completes.
func (s *Service) HandleConnect(ctx context.Context, userID uuid.UUID, connID string) {
	s.mu.Lock()
	set, ok := s.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		s.conns[userID] = set
	}
	set[connID] = struct{}{}
	s.mu.Unlock()

	// The notification count historically targets a room keyed by the raw
	// user id while every other user-directed event targets "user-{id}".
	// Connections join both so either address delivers.
	s.b.JoinRoom(connID, "user-"+userID.String())
	s.b.JoinRoom(connID, userID.String())

	record := models.PresenceRecord{Online: true, LastSeen: time.Now().UnixMilli()}
	if err := s.state.Set(ctx, presencePath(userID), record); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("presence record write failed")
	}

	s.emitNotificationCount(ctx, userID)
}

// MarkNotificationsRead flags all of the user's notifications read and
// re-emits the count.
func (s *Service) MarkNotificationsRead(ctx context.Context, userID uuid.UUID) {
	if err := s.store.MarkNotificationsRead(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("mark notifications read failed")
		return
	}
	s.emitNotificationCount(ctx, userID)
}

// SaveNotificationToken forwards a non-empty push token to the data store.
func (s *Service) SaveNotificationToken(ctx context.Context, userID uuid.UUID, token string) {
	if token == "" {
		return
	}
	if err := s.store.SaveNotificationToken(ctx, userID, token); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("notification token save failed")
	}
}

// HandleDisconnect drops a connection from the user's set. When the set
// empties the presence record is deleted, not flagged false. Returns true
// when this was the user's last live connection.
func (s *Service) HandleDisconnect(ctx context.Context, userID uuid.UUID, connID string) bool {
	s.mu.Lock()
	set, ok := s.conns[userID]
	if ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(s.conns, userID)
		}
	}
	last := !ok || len(set) == 0
	s.mu.Unlock()

	if last {
		if err := s.state.Remove(ctx, presencePath(userID)); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("presence record delete failed")
		}
	}
	return last
}

// Connections returns the live connection ids for a user.
func (s *Service) Connections(userID uuid.UUID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.conns[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for connID := range set {
		out = append(out, connID)
	}
	return out
}

// IsOnline reports whether the user has at least one live connection.
func (s *Service) IsOnline(userID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns[userID]) > 0
}

func (s *Service) emitNotificationCount(ctx context.Context, userID uuid.UUID) {
	count, err := s.store.CountUnreadNotifications(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("notification count failed")
		return
	}
	// Raw-userID room, see HandleConnect.
	s.b.EmitToRoom(userID.String(), "newNotificationCount", map[string]any{"count": count})
}
