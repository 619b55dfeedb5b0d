package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidPublicKey = errors.New("invalid Ed25519 public key")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
)

// tokenPayload is the signed body of a gate bearer token.
type tokenPayload struct {
	UserID    uuid.UUID `json:"uid"`
	ExpiresAt int64     `json:"exp"` // Unix ms
}

// ValidatePublicKey checks if a base64-encoded string is a valid Ed25519 public key.
func ValidatePublicKey(pubkeyB64 string) (ed25519.PublicKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(pubkeyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 encoding", ErrInvalidPublicKey)
	}

	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidPublicKey, ed25519.PublicKeySize, len(decoded))
	}

	return ed25519.PublicKey(decoded), nil
}

// MintToken signs a bearer token for userID valid for ttl.
// Token format: base64url(payload) + "." + base64url(signature).
func MintToken(priv ed25519.PrivateKey, userID uuid.UUID, ttl time.Duration) (string, error) {
	payload, err := json.Marshal(tokenPayload{
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl).UnixMilli(),
	})
	if err != nil {
		return "", err
	}

	sig := ed25519.Sign(priv, payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(sig), nil
}

// VerifyToken checks a bearer token's signature and expiry, returning the
// user it identifies.
func VerifyToken(pub ed25519.PublicKey, token string) (uuid.UUID, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return uuid.Nil, ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad payload encoding", ErrInvalidToken)
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad signature encoding", ErrInvalidToken)
	}

	if !ed25519.Verify(pub, payload, sig) {
		return uuid.Nil, ErrInvalidToken
	}

	var body tokenPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad payload", ErrInvalidToken)
	}
	if body.UserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	if time.Now().UnixMilli() > body.ExpiresAt {
		return uuid.Nil, ErrTokenExpired
	}

	return body.UserID, nil
}
