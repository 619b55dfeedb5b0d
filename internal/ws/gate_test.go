package ws

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxhub/realtime/internal/crypto"
)

type nopBinder struct{}

func (nopBinder) Bind(c *Client)   {}
func (nopBinder) Unbind(c *Client) {}

func newTestGate(t *testing.T) (*Gate, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}

	gate, err := NewGate(base64.StdEncoding.EncodeToString(pub), nil, NewHub(zerolog.Nop()), nopBinder{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}
	return gate, priv
}

func TestVerifyAcceptsBearerHeader(t *testing.T) {
	gate, priv := newTestGate(t)
	userID := uuid.New()
	token, err := crypto.MintToken(priv, userID, time.Minute)
	if err != nil {
		t.Fatalf("MintToken failed: %v", err)
	}

	r := httptest.NewRequest("GET", "/ws/chat", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	got, err := gate.verify(r)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if got != userID {
		t.Errorf("verify returned %s, want %s", got, userID)
	}
}

func TestVerifyAcceptsQueryToken(t *testing.T) {
	gate, priv := newTestGate(t)
	userID := uuid.New()
	token, _ := crypto.MintToken(priv, userID, time.Minute)

	r := httptest.NewRequest("GET", "/ws/chat?token="+token, nil)

	got, err := gate.verify(r)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if got != userID {
		t.Errorf("verify returned %s, want %s", got, userID)
	}
}

func TestVerifyRejectsMissingAndExpired(t *testing.T) {
	gate, priv := newTestGate(t)

	r := httptest.NewRequest("GET", "/ws/chat", nil)
	if _, err := gate.verify(r); err == nil {
		t.Error("missing token accepted")
	}

	expired, _ := crypto.MintToken(priv, uuid.New(), -time.Minute)
	r = httptest.NewRequest("GET", "/ws/chat?token="+expired, nil)
	if _, err := gate.verify(r); err == nil {
		t.Error("expired token accepted")
	}

	_, wrongPriv, _ := ed25519.GenerateKey(rand.Reader)
	forged, _ := crypto.MintToken(wrongPriv, uuid.New(), time.Minute)
	r = httptest.NewRequest("GET", "/ws/chat?token="+forged, nil)
	if _, err := gate.verify(r); err == nil {
		t.Error("token from wrong key accepted")
	}
}

func TestOriginChecker(t *testing.T) {
	anyOrigin := originChecker(nil)
	r := httptest.NewRequest("GET", "/ws/main", nil)
	r.Header.Set("Origin", "https://evil.example")
	if !anyOrigin(r) {
		t.Error("empty allowlist should accept any origin")
	}

	check := originChecker([]string{"https://app.voxhub.io/"})

	r = httptest.NewRequest("GET", "/ws/main", nil)
	r.Header.Set("Origin", "https://app.voxhub.io")
	if !check(r) {
		t.Error("allowed origin rejected")
	}

	r.Header.Set("Origin", "https://evil.example")
	if check(r) {
		t.Error("foreign origin accepted")
	}

	r.Header.Del("Origin")
	if !check(r) {
		t.Error("non-browser client without Origin rejected")
	}
}
