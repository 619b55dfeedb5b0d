package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/voxhub/realtime/internal/crypto"
	"github.com/voxhub/realtime/internal/models"
	"github.com/voxhub/realtime/internal/notify"
	"github.com/voxhub/realtime/internal/store"
)

type emit struct {
	room    string
	event   string
	payload any
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	emits []emit
}

func (f *fakeBroadcaster) EmitToRoom(room, event string, payload any) {
	f.mu.Lock()
	f.emits = append(f.emits, emit{room: room, event: event, payload: payload})
	f.mu.Unlock()
}

func (f *fakeBroadcaster) byEvent(event string) []emit {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emit
	for _, e := range f.emits {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

// fakeStore keeps messages and reactions in maps; methods the pipeline never
// touches stay on the embedded nil interface and panic if reached.
type fakeStore struct {
	store.DataStore
	mu        sync.Mutex
	seq       int
	messages  map[string]*models.Message
	reactions map[string]*models.Reaction
	hidden    map[string][]uuid.UUID
	readPairs [][2]uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages:  make(map[string]*models.Message),
		reactions: make(map[string]*models.Reaction),
		hidden:    make(map[string][]uuid.UUID),
	}
}

func (s *fakeStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	msg.ID = fmt.Sprintf("msg-%03d", s.seq)
	msg.CreatedAt = time.Now()
	stored := *msg
	s.messages[msg.ID] = &stored
	return nil
}

func (s *fakeStore) AddAttachments(ctx context.Context, messageID string, attachments []models.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.messages[messageID]; ok {
		msg.Attachments = append(msg.Attachments, attachments...)
	}
	return nil
}

func (s *fakeStore) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	out := *msg
	return &out, nil
}

func (s *fakeStore) GetMessageFull(ctx context.Context, id string) (*models.Message, error) {
	msg, err := s.GetMessageByID(ctx, id)
	if err != nil || msg == nil {
		return msg, err
	}
	msg.Sender = &models.User{ID: msg.SenderID, DisplayName: "Sender"}
	return msg, nil
}

func (s *fakeStore) DeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
	return nil
}

func (s *fakeStore) MarkMessagesRead(ctx context.Context, senderID, receiverID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readPairs = append(s.readPairs, [2]uuid.UUID{senderID, receiverID})
	return 1, nil
}

func (s *fakeStore) HideMessage(ctx context.Context, messageID string, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden[messageID] = append(s.hidden[messageID], userID)
	return nil
}

func (s *fakeStore) CreateReaction(ctx context.Context, reaction *models.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	reaction.ID = fmt.Sprintf("react-%03d", s.seq)
	stored := *reaction
	s.reactions[reaction.ID] = &stored
	return nil
}

func (s *fakeStore) GetReaction(ctx context.Context, id string) (*models.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reactions[id]
	if !ok {
		return nil, nil
	}
	out := *r
	return &out, nil
}

func (s *fakeStore) UpdateReaction(ctx context.Context, id, icon string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reactions[id]; ok {
		r.Icon = icon
	}
	return nil
}

func (s *fakeStore) DeleteReaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reactions, id)
	return nil
}

func (s *fakeStore) ListDirectMessages(ctx context.Context, userID, partnerID uuid.UUID, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Message
	for _, msg := range s.messages {
		if msg.ReceiverID == nil {
			continue
		}
		inPair := (msg.SenderID == userID && *msg.ReceiverID == partnerID) ||
			(msg.SenderID == partnerID && *msg.ReceiverID == userID)
		if !inPair {
			continue
		}
		hidden := false
		for _, h := range s.hidden[msg.ID] {
			if h == userID {
				hidden = true
			}
		}
		if !hidden {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) RecentConversations(ctx context.Context, userID uuid.UUID, limit int) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := make(map[uuid.UUID]*models.Message)
	for _, msg := range s.messages {
		if msg.ReceiverID == nil {
			continue
		}
		var partner uuid.UUID
		switch userID {
		case msg.SenderID:
			partner = *msg.ReceiverID
		case *msg.ReceiverID:
			partner = msg.SenderID
		default:
			continue
		}
		if cur, ok := latest[partner]; !ok || msg.ID > cur.ID {
			latest[partner] = msg
		}
	}

	var out []models.Conversation
	for partner, msg := range latest {
		out = append(out, models.Conversation{
			PartnerID:   partner,
			PartnerName: "Partner",
			LastMessage: msg.Content,
			LastAt:      msg.CreatedAt,
		})
	}
	return out, nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *fakeBroadcaster, *fakeStore) {
	t.Helper()
	box, err := crypto.NewBox("test-secret")
	require.NoError(t, err)

	b := &fakeBroadcaster{}
	st := newFakeStore()
	p := New(st, box, b, notify.Nop{}, zerolog.Nop())
	t.Cleanup(p.Close)
	return p, b, st
}

func TestSendDirectDeliversDecryptedEnvelope(t *testing.T) {
	p, b, st := newTestPipeline(t)
	sender, receiver := uuid.New(), uuid.New()

	p.SendDirect(SendDirectInput{
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       "hello there",
		TempID:     "tmp-1",
	})
	p.Flush()

	delivered := b.byEvent("newMessage")
	require.Len(t, delivered, 1)
	require.Equal(t, ConversationRoom(sender, receiver), delivered[0].room)

	env := delivered[0].payload.(*DeliveryEnvelope)
	require.Equal(t, "hello there", env.Content)
	require.Equal(t, "tmp-1", env.TempID)
	require.Equal(t, sender, env.SenderID)
	require.NotNil(t, env.Sender)

	// At rest the content is sealed, not plaintext
	st.mu.Lock()
	stored := st.messages[env.ID]
	st.mu.Unlock()
	require.NotNil(t, stored)
	require.NotEqual(t, "hello there", stored.Content)

	// The receiver's summary views carry decrypted previews
	lists := b.byEvent("recentChatsList")
	require.Len(t, lists, 1)
	require.Equal(t, UserRoom(receiver), lists[0].room)
	conversations := lists[0].payload.(map[string]any)["conversations"].([]models.Conversation)
	require.Len(t, conversations, 1)
	require.Equal(t, "hello there", conversations[0].LastMessage)

	info := b.byEvent("InformationChatWithUserId")
	require.Len(t, info, 1)
	require.Equal(t, sender, info[0].payload.(models.Conversation).PartnerID)
}

func TestSendDirectEmptyIsNoOp(t *testing.T) {
	p, b, _ := newTestPipeline(t)

	p.SendDirect(SendDirectInput{SenderID: uuid.New(), ReceiverID: uuid.New()})
	p.SendDirect(SendDirectInput{ReceiverID: uuid.New(), Text: "no sender"})
	p.Flush()

	require.Empty(t, b.emits)
}

func TestSendDirectPreservesEnqueueOrder(t *testing.T) {
	p, b, _ := newTestPipeline(t)
	a, x := uuid.New(), uuid.New()
	c, d := uuid.New(), uuid.New()

	// Interleave two conversations; delivery order must match send order
	// globally, not just per pair.
	p.SendDirect(SendDirectInput{SenderID: a, ReceiverID: x, Text: "first"})
	p.SendDirect(SendDirectInput{SenderID: c, ReceiverID: d, Text: "second"})
	p.SendDirect(SendDirectInput{SenderID: x, ReceiverID: a, Text: "third"})
	p.Flush()

	delivered := b.byEvent("newMessage")
	require.Len(t, delivered, 3)
	for i, want := range []string{"first", "second", "third"} {
		require.Equal(t, want, delivered[i].payload.(*DeliveryEnvelope).Content)
	}
}

func TestMarkAsReadNotifiesPartnerDevices(t *testing.T) {
	p, b, st := newTestPipeline(t)
	reader, partner := uuid.New(), uuid.New()

	p.MarkAsRead(context.Background(), reader, partner)

	require.Equal(t, [][2]uuid.UUID{{partner, reader}}, st.readPairs)

	read := b.byEvent("messagesRead")
	require.Len(t, read, 1)
	require.Equal(t, UserRoom(partner), read[0].room)
	require.Equal(t, reader, read[0].payload.(map[string]any)["userId"])
}

func TestDeleteDirectOnlyBySender(t *testing.T) {
	p, b, st := newTestPipeline(t)
	sender, receiver := uuid.New(), uuid.New()

	p.SendDirect(SendDirectInput{SenderID: sender, ReceiverID: receiver, Text: "keep me"})
	p.Flush()
	msgID := b.byEvent("newMessage")[0].payload.(*DeliveryEnvelope).ID

	// The receiver cannot delete, and nothing is emitted for the attempt
	p.DeleteDirect(context.Background(), receiver, msgID)
	require.Empty(t, b.byEvent("statusDeleMessage"))
	got, err := st.GetMessageByID(context.Background(), msgID)
	require.NoError(t, err)
	require.NotNil(t, got)

	p.DeleteDirect(context.Background(), sender, msgID)
	dele := b.byEvent("statusDeleMessage")
	require.Len(t, dele, 1)
	require.Equal(t, ConversationRoom(sender, receiver), dele[0].room)
	require.Equal(t, msgID, dele[0].payload.(map[string]any)["messageId"])
	got, err = st.GetMessageByID(context.Background(), msgID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestHideKeepsMessageForOthers(t *testing.T) {
	p, b, st := newTestPipeline(t)
	sender, receiver := uuid.New(), uuid.New()

	p.SendDirect(SendDirectInput{SenderID: sender, ReceiverID: receiver, Text: "awkward"})
	p.Flush()
	msgID := b.byEvent("newMessage")[0].payload.(*DeliveryEnvelope).ID

	p.Hide(context.Background(), receiver, msgID)

	hidden := b.byEvent("statusHiddenMessage")
	require.Len(t, hidden, 1)
	require.Equal(t, receiver, hidden[0].payload.(map[string]any)["userId"])

	got, err := st.GetMessageByID(context.Background(), msgID)
	require.NoError(t, err)
	require.NotNil(t, got, "hide must not delete the message")
}

func TestHistorySkipsOwnHiddenMessages(t *testing.T) {
	p, b, _ := newTestPipeline(t)
	sender, receiver := uuid.New(), uuid.New()

	p.SendDirect(SendDirectInput{SenderID: sender, ReceiverID: receiver, Text: "visible"})
	p.SendDirect(SendDirectInput{SenderID: sender, ReceiverID: receiver, Text: "hide me"})
	p.Flush()

	delivered := b.byEvent("newMessage")
	require.Len(t, delivered, 2)
	p.Hide(context.Background(), receiver, delivered[1].payload.(*DeliveryEnvelope).ID)

	p.History(context.Background(), receiver, sender, 50)

	lists := b.byEvent("messagesList")
	require.Len(t, lists, 1)
	require.Equal(t, UserRoom(receiver), lists[0].room)

	payload := lists[0].payload.(map[string]any)
	require.Equal(t, sender, payload["userId"])
	msgs := payload["messages"].([]*DeliveryEnvelope)
	require.Len(t, msgs, 1, "hidden message must not reach the hider")
	require.Equal(t, "visible", msgs[0].Content)
}

func TestReactionOwnershipGuards(t *testing.T) {
	p, b, _ := newTestPipeline(t)
	sender, receiver, stranger := uuid.New(), uuid.New(), uuid.New()

	p.SendDirect(SendDirectInput{SenderID: sender, ReceiverID: receiver, Text: "react to me"})
	p.Flush()
	msgID := b.byEvent("newMessage")[0].payload.(*DeliveryEnvelope).ID

	p.CreateReaction(context.Background(), receiver, msgID, "🔥")
	created := b.byEvent("dataIconMessage")
	require.Len(t, created, 1)
	reactionID := created[0].payload.(*models.Reaction).ID

	// Someone else's update and delete are silent no-ops
	p.UpdateReaction(context.Background(), stranger, reactionID, "💀")
	require.Empty(t, b.byEvent("dataUpdateIconMessage"))
	p.DeleteReaction(context.Background(), stranger, reactionID)
	require.Empty(t, b.byEvent("dataDeleteIconMessage"))

	p.UpdateReaction(context.Background(), receiver, reactionID, "💯")
	updated := b.byEvent("dataUpdateIconMessage")
	require.Len(t, updated, 1)
	require.Equal(t, "💯", updated[0].payload.(*models.Reaction).Icon)

	p.DeleteReaction(context.Background(), receiver, reactionID)
	deleted := b.byEvent("dataDeleteIconMessage")
	require.Len(t, deleted, 1)
	require.Equal(t, reactionID, deleted[0].payload.(map[string]any)["id"])
}

func TestSendChannelDeliversInline(t *testing.T) {
	p, b, _ := newTestPipeline(t)
	sender, channel := uuid.New(), uuid.New()

	// No Flush: channel sends bypass the queue entirely.
	p.SendChannel(context.Background(), SendChannelInput{
		SenderID:  sender,
		ChannelID: channel,
		Text:      "channel hello",
		TempID:    "tmp-9",
	})

	delivered := b.byEvent("newMessage")
	require.Len(t, delivered, 1)
	require.Equal(t, ChannelRoom(channel), delivered[0].room)

	env := delivered[0].payload.(*DeliveryEnvelope)
	require.Equal(t, "channel hello", env.Content)
	require.Equal(t, channel, *env.ChannelID)
}

func TestDeleteChannelOnlyBySender(t *testing.T) {
	p, b, st := newTestPipeline(t)
	sender, other, channel := uuid.New(), uuid.New(), uuid.New()

	p.SendChannel(context.Background(), SendChannelInput{SenderID: sender, ChannelID: channel, Text: "hi"})
	msgID := b.byEvent("newMessage")[0].payload.(*DeliveryEnvelope).ID

	p.DeleteChannel(context.Background(), other, msgID)
	require.Empty(t, b.byEvent("statusDeleMessage"))

	p.DeleteChannel(context.Background(), sender, msgID)
	require.Len(t, b.byEvent("statusDeleMessage"), 1)
	got, err := st.GetMessageByID(context.Background(), msgID)
	require.NoError(t, err)
	require.Nil(t, got)
}
