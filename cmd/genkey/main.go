// Command genkey prints a fresh Ed25519 gate keypair and a random message
// secret, ready to paste into the environment.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

func main() {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(err)
	}

	fmt.Printf("GATE_PUBLIC_KEY=%s\n", base64.StdEncoding.EncodeToString(pub))
	fmt.Printf("Gate private key (base64): %s\n", base64.StdEncoding.EncodeToString(priv))
	fmt.Printf("MESSAGE_SECRET=%s\n", base64.StdEncoding.EncodeToString(secret))
}
