package crypto

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func newTestBox(t *testing.T) *Box {
	t.Helper()
	box, err := NewBox("test-message-secret")
	if err != nil {
		t.Fatal(err)
	}
	return box
}

func TestEnvelopeRoundTrip(t *testing.T) {
	box := newTestBox(t)

	sealed, err := box.Encrypt("hello channel")
	if err != nil {
		t.Fatal(err)
	}
	pt := box.Decrypt(sealed)
	if pt == nil {
		t.Fatal("expected plaintext, got nil")
	}
	if *pt != "hello channel" {
		t.Fatalf("expected 'hello channel', got %q", *pt)
	}
}

func TestFreshIVPerMessage(t *testing.T) {
	box := newTestBox(t)

	sealed1, _ := box.Encrypt("same")
	sealed2, _ := box.Encrypt("same")
	if sealed1 == sealed2 {
		t.Fatal("envelopes should differ for same plaintext")
	}

	var env1, env2 envelope
	for i, sealed := range []string{sealed1, sealed2} {
		data, err := base64.StdEncoding.DecodeString(sealed)
		if err != nil {
			t.Fatalf("envelope %d: %v", i, err)
		}
		env := &env1
		if i == 1 {
			env = &env2
		}
		if err := json.Unmarshal(data, env); err != nil {
			t.Fatalf("envelope %d: %v", i, err)
		}
	}
	if env1.IV == env2.IV {
		t.Fatal("IV must be freshly generated per encryption")
	}
}

func TestDecryptGarbageReturnsNil(t *testing.T) {
	box := newTestBox(t)

	inputs := []string{
		"",
		"not base64 at all!!!",
		base64.StdEncoding.EncodeToString([]byte("not json")),
		base64.StdEncoding.EncodeToString([]byte(`{"iv":"xx","content":"yy"}`)),
		base64.StdEncoding.EncodeToString([]byte(`{"iv":"","content":""}`)),
	}
	for _, in := range inputs {
		if got := box.Decrypt(in); got != nil {
			t.Fatalf("Decrypt(%q) = %q, want nil", in, *got)
		}
	}
}

func TestDecryptTampered(t *testing.T) {
	box := newTestBox(t)

	sealed, _ := box.Encrypt("secret")
	data, _ := base64.StdEncoding.DecodeString(sealed)

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}
	ct, _ := base64.StdEncoding.DecodeString(env.Content)
	ct[len(ct)-1] ^= 0xFF
	env.Content = base64.StdEncoding.EncodeToString(ct)

	tampered, _ := json.Marshal(env)
	if got := box.Decrypt(base64.StdEncoding.EncodeToString(tampered)); got != nil {
		t.Fatal("expected nil for tampered ciphertext")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	box := newTestBox(t)
	other, err := NewBox("a-different-secret")
	if err != nil {
		t.Fatal(err)
	}

	sealed, _ := box.Encrypt("secret")
	if got := other.Decrypt(sealed); got != nil {
		t.Fatal("expected nil when opening with a different key")
	}
}

func TestEmptyPlaintext(t *testing.T) {
	box := newTestBox(t)

	sealed, err := box.Encrypt("")
	if err != nil {
		t.Fatal(err)
	}
	pt := box.Decrypt(sealed)
	if pt == nil || *pt != "" {
		t.Fatal("empty plaintext should round-trip")
	}
}
