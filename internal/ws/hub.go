package ws

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/voxhub/realtime/internal/metrics"
)

// Hub tracks clients, namespaces, and rooms, and implements the broadcast
// primitives the components consume. Room names are globally unique strings
// ("user-{id}", "server-{id}", "chat-{a}-{b}", ...); namespace-wide emits are
// scoped by the endpoint the client connected to.
type Hub struct {
	log zerolog.Logger

	mu         sync.RWMutex
	clients    map[string]*Client            // by connection id
	namespaces map[string]map[*Client]struct{}
	rooms      map[string]map[*Client]struct{}
	memberOf   map[*Client]map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		log:        logger.With().Str("component", "hub").Logger(),
		clients:    make(map[string]*Client),
		namespaces: make(map[string]map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		memberOf:   make(map[*Client]map[string]struct{}),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	ns, ok := h.namespaces[c.Namespace]
	if !ok {
		ns = make(map[*Client]struct{})
		h.namespaces[c.Namespace] = ns
	}
	ns[c] = struct{}{}
	h.memberOf[c] = make(map[string]struct{})
	h.mu.Unlock()

	metrics.ConnectionsActive.WithLabelValues(c.Namespace).Inc()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	if ns, ok := h.namespaces[c.Namespace]; ok {
		delete(ns, c)
		if len(ns) == 0 {
			delete(h.namespaces, c.Namespace)
		}
	}
	for room := range h.memberOf[c] {
		h.dropFromRoom(c, room)
	}
	delete(h.memberOf, c)
	h.mu.Unlock()

	c.close()
	metrics.ConnectionsActive.WithLabelValues(c.Namespace).Dec()
}

// JoinRoom adds a connection to a room.
func (h *Hub) JoinRoom(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	h.memberOf[c][room] = struct{}{}
}

// LeaveRoom removes a connection from a room.
func (h *Hub) LeaveRoom(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	h.dropFromRoom(c, room)
	delete(h.memberOf[c], room)
}

// dropFromRoom must be called with the lock held.
func (h *Hub) dropFromRoom(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// EmitToRoom sends an event to every connection in a room.
func (h *Hub) EmitToRoom(room, event string, payload any) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("event encode failed")
		return
	}

	h.mu.RLock()
	targets := h.snapshot(h.rooms[room])
	h.mu.RUnlock()

	for _, c := range targets {
		h.send(c, frame)
	}
}

// EmitToNamespace sends an event to every connection in a namespace.
func (h *Hub) EmitToNamespace(namespace, event string, payload any) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("event encode failed")
		return
	}

	h.mu.RLock()
	targets := h.snapshot(h.namespaces[namespace])
	h.mu.RUnlock()

	for _, c := range targets {
		h.send(c, frame)
	}
}

// EmitToConnection sends an event to one connection.
func (h *Hub) EmitToConnection(connID, event string, payload any) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("event encode failed")
		return
	}

	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.send(c, frame)
}

// snapshot must be called with at least a read lock held.
func (h *Hub) snapshot(set map[*Client]struct{}) []*Client {
	if len(set) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// send enqueues a frame without blocking; a client with a full buffer loses
// the frame rather than stalling the emitter.
func (h *Hub) send(c *Client, frame []byte) {
	defer func() {
		// The send channel closes when the client unregisters; a racing
		// emit must not take the hub down.
		_ = recover()
	}()

	select {
	case c.send <- frame:
	default:
		c.log.Warn().Msg("send buffer full, frame dropped")
	}
}

// Shutdown closes every live connection.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
}
