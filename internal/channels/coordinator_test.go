package channels

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxhub/realtime/internal/models"
	"github.com/voxhub/realtime/internal/state"
)

type emit struct {
	scope   string // room name or "ns:" + namespace
	event   string
	payload map[string]any
}

type fakeBroadcaster struct {
	emits []emit
}

func (f *fakeBroadcaster) EmitToRoom(room, event string, payload any) {
	f.emits = append(f.emits, emit{scope: room, event: event, payload: payload.(map[string]any)})
}

func (f *fakeBroadcaster) EmitToNamespace(namespace, event string, payload any) {
	f.emits = append(f.emits, emit{scope: "ns:" + namespace, event: event, payload: payload.(map[string]any)})
}

func (f *fakeBroadcaster) byEvent(event string) []emit {
	var out []emit
	for _, e := range f.emits {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func newTestCoordinator() (*Coordinator, *fakeBroadcaster, *state.MemoryStore) {
	b := &fakeBroadcaster{}
	mem := state.NewMemoryStore()
	return New(mem, b, zerolog.Nop()), b, mem
}

func hasParticipant(t *testing.T, mem *state.MemoryStore, channelID, userID uuid.UUID) bool {
	t.Helper()
	var p models.ChannelParticipant
	ok, err := mem.Get(context.Background(), participantPath(channelID.String(), userID.String()), &p)
	if err != nil {
		t.Fatalf("participant read failed: %v", err)
	}
	return ok
}

func TestJoinWritesParticipantAndIndex(t *testing.T) {
	c, b, mem := newTestCoordinator()
	ctx := context.Background()
	serverID, channelID, userID := uuid.New(), uuid.New(), uuid.New()

	c.Join(ctx, serverID, channelID, userID, "ada", true, "https://cdn/a.png")

	if !hasParticipant(t, mem, channelID, userID) {
		t.Fatal("participant slot missing")
	}
	entries, _ := mem.Once(ctx, indexPath(userID.String()))
	if len(entries) != 1 {
		t.Fatalf("index entries = %d, want 1", len(entries))
	}

	joined := b.byEvent("userJoined")
	if len(joined) != 1 {
		t.Fatalf("userJoined emits = %d, want 1", len(joined))
	}
	if joined[0].scope != ServerRoom(serverID) {
		t.Errorf("userJoined scope = %q, want server room", joined[0].scope)
	}
	if joined[0].payload["displayName"] != "ada" || joined[0].payload["micMuted"] != true {
		t.Errorf("unexpected payload: %+v", joined[0].payload)
	}
}

func TestJoinMissingDisplayNameIsNoOp(t *testing.T) {
	c, b, mem := newTestCoordinator()
	ctx := context.Background()
	channelID, userID := uuid.New(), uuid.New()

	c.Join(ctx, uuid.New(), channelID, userID, "", false, "")

	if hasParticipant(t, mem, channelID, userID) {
		t.Error("participant written despite missing name")
	}
	if len(b.emits) != 0 {
		t.Errorf("unexpected emits: %+v", b.emits)
	}
}

func TestJoinSweepsPreviousChannel(t *testing.T) {
	c, b, mem := newTestCoordinator()
	ctx := context.Background()
	serverID, userID := uuid.New(), uuid.New()
	first, second := uuid.New(), uuid.New()

	c.Join(ctx, serverID, first, userID, "ada", false, "")
	c.Join(ctx, serverID, second, userID, "ada", false, "")

	if hasParticipant(t, mem, first, userID) {
		t.Error("stale slot in first channel survived")
	}
	if !hasParticipant(t, mem, second, userID) {
		t.Error("slot in second channel missing")
	}

	left := b.byEvent("userLeft")
	if len(left) != 1 {
		t.Fatalf("userLeft emits = %d, want 1", len(left))
	}
	if left[0].scope != ServerRoom(serverID) {
		t.Errorf("sweep userLeft scope = %q, want server room", left[0].scope)
	}
	if left[0].payload["channelId"] != first.String() {
		t.Errorf("userLeft channel = %v, want first channel", left[0].payload["channelId"])
	}
}

func TestToggleMicIsServerScoped(t *testing.T) {
	c, b, mem := newTestCoordinator()
	ctx := context.Background()
	serverID, channelID, userID := uuid.New(), uuid.New(), uuid.New()

	c.Join(ctx, serverID, channelID, userID, "ada", false, "")
	c.ToggleMic(ctx, serverID, channelID, userID, true)

	toggles := b.byEvent("toggleMic")
	if len(toggles) != 1 || toggles[0].scope != ServerRoom(serverID) {
		t.Fatalf("expected server-scoped toggleMic, got %+v", toggles)
	}

	var p models.ChannelParticipant
	if ok, _ := mem.Get(ctx, participantPath(channelID.String(), userID.String()), &p); !ok || !p.MicMuted {
		t.Errorf("micMuted not patched: ok=%v %+v", ok, p)
	}
	if p.DisplayName != "ada" {
		t.Errorf("patch lost other fields: %+v", p)
	}
}

func TestToggleShareScreenGoesNamespaceWide(t *testing.T) {
	c, b, _ := newTestCoordinator()
	ctx := context.Background()
	channelID, userID := uuid.New(), uuid.New()

	c.Join(ctx, uuid.New(), channelID, userID, "ada", false, "")
	c.ToggleShareScreen(ctx, channelID, userID, true)

	toggles := b.byEvent("toggleShareScreen")
	if len(toggles) != 1 || toggles[0].scope != "ns:"+Namespace {
		t.Fatalf("expected namespace-wide toggleShareScreen, got %+v", toggles)
	}
}

func TestHandleDisconnectSweepsNamespaceWide(t *testing.T) {
	c, b, mem := newTestCoordinator()
	ctx := context.Background()
	serverID, channelID, userID := uuid.New(), uuid.New(), uuid.New()

	c.Join(ctx, serverID, channelID, userID, "ada", false, "")
	c.HandleDisconnect(ctx, userID)

	if hasParticipant(t, mem, channelID, userID) {
		t.Error("slot survived disconnect sweep")
	}
	left := b.byEvent("userLeft")
	if len(left) != 1 || left[0].scope != "ns:"+Namespace {
		t.Fatalf("expected namespace-wide userLeft, got %+v", left)
	}
}

func TestLeaveServerStaysServerScoped(t *testing.T) {
	c, b, _ := newTestCoordinator()
	ctx := context.Background()
	serverID, channelID, userID := uuid.New(), uuid.New(), uuid.New()

	c.Join(ctx, serverID, channelID, userID, "ada", false, "")
	c.LeaveServer(ctx, serverID, userID)

	left := b.byEvent("userLeft")
	if len(left) != 1 || left[0].scope != ServerRoom(serverID) {
		t.Fatalf("expected server-scoped userLeft, got %+v", left)
	}

	// Idempotent: a second sweep finds nothing
	c.LeaveServer(ctx, serverID, userID)
	if len(b.byEvent("userLeft")) != 1 {
		t.Error("repeat sweep emitted again")
	}
}
