package ws

import (
	"crypto/ed25519"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxhub/realtime/internal/crypto"
)

// SessionBinder wires a freshly gated connection into the domain handlers
// and tears it down again on disconnect.
type SessionBinder interface {
	Bind(c *Client)
	Unbind(c *Client)
}

// Gate verifies the bearer credential on every inbound realtime connection
// and attaches the user identity before any event flows. Unauthenticated
// connections are rejected outright: no upgrade, no event.
type Gate struct {
	pub      ed25519.PublicKey
	hub      *Hub
	binder   SessionBinder
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewGate builds the gate from the base64 Ed25519 verification key.
func NewGate(gatePublicKey string, allowedOrigins []string, hub *Hub, binder SessionBinder, logger zerolog.Logger) (*Gate, error) {
	pub, err := crypto.ValidatePublicKey(gatePublicKey)
	if err != nil {
		return nil, err
	}

	return &Gate{
		pub:    pub,
		hub:    hub,
		binder: binder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: logger.With().Str("component", "gate").Logger(),
	}, nil
}

// Handler returns the upgrade handler for one namespace.
func (g *Gate) Handler(namespace string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := g.verify(r)
		if err != nil {
			g.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("connection rejected")
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		conn, err := g.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the response
			g.log.Debug().Err(err).Msg("upgrade failed")
			return
		}

		client := newClient(g.hub, conn, userID, namespace, r.URL.Query(), g.log)
		g.hub.register(client)
		g.binder.Bind(client)

		go client.writePump()
		go client.readPump(func() {
			g.binder.Unbind(client)
		})
	}
}

// verify extracts and checks the bearer credential from the Authorization
// header or, for browser clients that cannot set headers on websocket
// handshakes, the "token" query parameter.
func (g *Gate) verify(r *http.Request) (uuid.UUID, error) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || token == r.Header.Get("Authorization") {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return uuid.Nil, crypto.ErrInvalidToken
	}
	return crypto.VerifyToken(g.pub, token)
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser client
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}
