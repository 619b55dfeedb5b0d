// Command token mints a gate bearer token for a user, for development and
// manual testing against a running server.
package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/voxhub/realtime/internal/crypto"
)

func main() {
	privKeyB64 := flag.String("key", "", "Base64-encoded Ed25519 private key")
	userIDStr := flag.String("user", "", "User UUID (random if omitted)")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *privKeyB64 == "" {
		fmt.Fprintln(os.Stderr, "Usage: token -key <private-key-base64> [-user <uuid>] [-ttl <duration>]")
		os.Exit(1)
	}

	privKeyBytes, err := base64.StdEncoding.DecodeString(*privKeyB64)
	if err != nil || len(privKeyBytes) != ed25519.PrivateKeySize {
		fmt.Fprintln(os.Stderr, "Invalid private key")
		os.Exit(1)
	}
	priv := ed25519.PrivateKey(privKeyBytes)

	userID := uuid.New()
	if *userIDStr != "" {
		userID, err = uuid.Parse(*userIDStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid user id: %v\n", err)
			os.Exit(1)
		}
	}

	token, err := crypto.MintToken(priv, userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Minting failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("user:  %s\n", userID)
	fmt.Printf("token: %s\n", token)
}
