package ws

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxhub/realtime/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// HandlerFunc handles one inbound event on one connection.
type HandlerFunc func(ctx context.Context, data json.RawMessage)

// Client is one authenticated websocket connection. Handler registration is
// dynamic: joinServer registers the channel handlers and leaveServer removes
// them again, so repeated join/leave cycles never double-register.
type Client struct {
	ID        string
	UserID    uuid.UUID
	Namespace string
	Query     url.Values

	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	log  zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, namespace string, query url.Values, logger zerolog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		ID:        id,
		UserID:    userID,
		Namespace: namespace,
		Query:     query,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		hub:       hub,
		log:       logger.With().Str("conn_id", id).Str("user_id", userID.String()).Logger(),
		handlers:  make(map[string]HandlerFunc),
	}
}

// On registers a handler for an event name, replacing any previous one.
func (c *Client) On(event string, h HandlerFunc) {
	c.mu.Lock()
	c.handlers[event] = h
	c.mu.Unlock()
}

// Off removes the handler for an event name.
func (c *Client) Off(event string) {
	c.mu.Lock()
	delete(c.handlers, event)
	c.mu.Unlock()
}

// handler looks up the handler for an event name.
func (c *Client) handler(event string) (HandlerFunc, bool) {
	c.mu.RLock()
	h, ok := c.handlers[event]
	c.mu.RUnlock()
	return h, ok
}

// readPump reads frames and dispatches them sequentially. Per-connection
// sequencing is what lets components use read-then-write state access for a
// single connection's events.
func (c *Client) readPump(onClose func()) {
	defer func() {
		c.hub.unregister(c)
		onClose()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("connection closed unexpectedly")
			}
			return
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			// Malformed frame: drop silently, per the fail-closed policy
			continue
		}

		h, ok := c.handler(event.Event)
		if !ok {
			metrics.EventsDropped.WithLabelValues(c.Namespace, event.Event).Inc()
			continue
		}
		metrics.EventsDispatched.WithLabelValues(c.Namespace, event.Event).Inc()

		h(context.Background(), event.Data)
	}
}

// writePump pushes queued frames and keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close shuts the send channel exactly once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
