package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func generateGateKeypair(t *testing.T) (ed25519.PrivateKey, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return priv, pub
}

func TestTokenRoundTrip(t *testing.T) {
	priv, pub := generateGateKeypair(t)
	userID := uuid.New()

	token, err := MintToken(priv, userID, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	got, err := VerifyToken(pub, token)
	if err != nil {
		t.Fatal(err)
	}
	if got != userID {
		t.Fatalf("expected %s, got %s", userID, got)
	}
}

func TestTokenExpired(t *testing.T) {
	priv, pub := generateGateKeypair(t)

	token, err := MintToken(priv, uuid.New(), -time.Second)
	if err != nil {
		t.Fatal(err)
	}

	_, err = VerifyToken(pub, token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenWrongKey(t *testing.T) {
	priv, _ := generateGateKeypair(t)
	_, otherPub := generateGateKeypair(t)

	token, _ := MintToken(priv, uuid.New(), time.Minute)

	_, err := VerifyToken(otherPub, token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenMalformed(t *testing.T) {
	_, pub := generateGateKeypair(t)

	for _, token := range []string{"", "justonepart", "a.b.c", "!!.!!"} {
		if _, err := VerifyToken(pub, token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("VerifyToken(%q): expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestValidatePublicKey(t *testing.T) {
	_, pub := generateGateKeypair(t)

	good := base64.StdEncoding.EncodeToString(pub)
	if _, err := ValidatePublicKey(good); err != nil {
		t.Fatal(err)
	}

	if _, err := ValidatePublicKey("not base64!!!"); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := ValidatePublicKey(short); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}
}
