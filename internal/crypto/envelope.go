package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const envelopeVersion = "voxhub-msg-v1"

// envelope is the stored form of encrypted message content:
// base64-wrapped JSON carrying the IV and the ciphertext.
type envelope struct {
	IV      string `json:"iv"`
	Content string `json:"content"`
}

// Box seals and opens message content with ChaCha20-Poly1305. The key is
// derived from the shared message secret via HKDF-SHA256, so the secret
// itself is never used as a raw cipher key.
type Box struct {
	aead cipher.AEAD
}

// NewBox derives the envelope key from secret and builds the AEAD.
func NewBox(secret string) (*Box, error) {
	hkdfReader := hkdf.New(sha256.New, []byte(secret), nil, []byte(envelopeVersion))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &Box{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random IV. The IV is generated per
// call and carried in the envelope; it is never reused across messages.
func (b *Box) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	ciphertext := b.aead.Seal(nil, iv, []byte(plaintext), nil)

	data, err := json.Marshal(envelope{
		IV:      base64.StdEncoding.EncodeToString(iv),
		Content: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decrypt opens a sealed envelope. Malformed or tampered input yields nil
// rather than an error: stored ciphertext is untrusted and a bad row must
// never take a delivery handler down.
func (b *Box) Decrypt(sealed string) *string {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil
	}

	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(iv) != b.aead.NonceSize() {
		return nil
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Content)
	if err != nil {
		return nil
	}

	plaintext, err := b.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil
	}

	out := string(plaintext)
	return &out
}
