package presence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxhub/realtime/internal/models"
	"github.com/voxhub/realtime/internal/state"
	"github.com/voxhub/realtime/internal/store"
)

type emit struct {
	room    string
	event   string
	payload any
}

type fakeBroadcaster struct {
	joins map[string][]string // connID -> rooms
	emits []emit
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{joins: make(map[string][]string)}
}

func (f *fakeBroadcaster) JoinRoom(connID, room string) {
	f.joins[connID] = append(f.joins[connID], room)
}

func (f *fakeBroadcaster) EmitToRoom(room, event string, payload any) {
	f.emits = append(f.emits, emit{room: room, event: event, payload: payload})
}

// stubStore answers the few DataStore methods presence touches; anything
// else panics, which is what we want in a unit test.
type stubStore struct {
	store.DataStore
	unread     int64
	readCalls  int
	savedToken string
}

func (s *stubStore) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.unread, nil
}

func (s *stubStore) MarkNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	s.readCalls++
	s.unread = 0
	return nil
}

func (s *stubStore) SaveNotificationToken(ctx context.Context, userID uuid.UUID, token string) error {
	s.savedToken = token
	return nil
}

func newTestService(unread int64) (*Service, *fakeBroadcaster, *state.MemoryStore, *stubStore) {
	b := newFakeBroadcaster()
	mem := state.NewMemoryStore()
	st := &stubStore{unread: unread}
	svc := New(mem, st, b, zerolog.Nop())
	return svc, b, mem, st
}

func TestHandleConnectJoinsBothAddressedRooms(t *testing.T) {
	svc, b, mem, _ := newTestService(3)
	ctx := context.Background()
	userID := uuid.New()

	svc.HandleConnect(ctx, userID, "conn-1")

	rooms := b.joins["conn-1"]
	if len(rooms) != 2 {
		t.Fatalf("expected 2 room joins, got %v", rooms)
	}
	if rooms[0] != "user-"+userID.String() || rooms[1] != userID.String() {
		t.Errorf("unexpected rooms: %v", rooms)
	}

	var rec models.PresenceRecord
	ok, err := mem.Get(ctx, "usersOnline/"+userID.String(), &rec)
	if err != nil || !ok {
		t.Fatalf("presence record missing: ok=%v err=%v", ok, err)
	}
	if !rec.Online || rec.LastSeen == 0 {
		t.Errorf("unexpected record: %+v", rec)
	}

	if len(b.emits) != 1 || b.emits[0].event != "newNotificationCount" {
		t.Fatalf("expected one newNotificationCount emit, got %+v", b.emits)
	}
	if b.emits[0].room != userID.String() {
		t.Errorf("count emitted to %q, want raw user id room", b.emits[0].room)
	}
	payload := b.emits[0].payload.(map[string]any)
	if payload["count"] != int64(3) {
		t.Errorf("count = %v, want 3", payload["count"])
	}
}

func TestHandleDisconnectKeepsRecordUntilLastConnection(t *testing.T) {
	svc, _, mem, _ := newTestService(0)
	ctx := context.Background()
	userID := uuid.New()

	svc.HandleConnect(ctx, userID, "conn-1")
	svc.HandleConnect(ctx, userID, "conn-2")

	if last := svc.HandleDisconnect(ctx, userID, "conn-1"); last {
		t.Fatal("first disconnect reported as last")
	}
	var rec models.PresenceRecord
	if ok, _ := mem.Get(ctx, "usersOnline/"+userID.String(), &rec); !ok {
		t.Fatal("record removed while a connection remains")
	}
	if !svc.IsOnline(userID) {
		t.Error("user reported offline with a live connection")
	}

	if last := svc.HandleDisconnect(ctx, userID, "conn-2"); !last {
		t.Fatal("final disconnect not reported as last")
	}
	if ok, _ := mem.Get(ctx, "usersOnline/"+userID.String(), &rec); ok {
		t.Error("record survived last disconnect")
	}
	if svc.IsOnline(userID) {
		t.Error("user reported online after last disconnect")
	}
}

func TestConnectionsListsLiveConnIDs(t *testing.T) {
	svc, _, _, _ := newTestService(0)
	ctx := context.Background()
	userID := uuid.New()

	svc.HandleConnect(ctx, userID, "a")
	svc.HandleConnect(ctx, userID, "b")

	conns := svc.Connections(userID)
	if len(conns) != 2 {
		t.Fatalf("expected 2 connections, got %v", conns)
	}
	if svc.Connections(uuid.New()) != nil {
		t.Error("expected nil for unknown user")
	}
}

func TestMarkNotificationsReadReEmitsCount(t *testing.T) {
	svc, b, _, st := newTestService(5)
	ctx := context.Background()
	userID := uuid.New()

	svc.MarkNotificationsRead(ctx, userID)

	if st.readCalls != 1 {
		t.Fatalf("store not called: %d", st.readCalls)
	}
	if len(b.emits) != 1 || b.emits[0].event != "newNotificationCount" {
		t.Fatalf("expected count re-emit, got %+v", b.emits)
	}
	payload := b.emits[0].payload.(map[string]any)
	if payload["count"] != int64(0) {
		t.Errorf("count = %v, want 0", payload["count"])
	}
}

func TestSaveNotificationTokenSkipsEmpty(t *testing.T) {
	svc, _, _, st := newTestService(0)
	ctx := context.Background()

	svc.SaveNotificationToken(ctx, uuid.New(), "")
	if st.savedToken != "" {
		t.Error("empty token reached the store")
	}

	svc.SaveNotificationToken(ctx, uuid.New(), "device-token")
	if st.savedToken != "device-token" {
		t.Errorf("token not saved: %q", st.savedToken)
	}
}
