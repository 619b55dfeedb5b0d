package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the realtime service.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	// MessageSecret is the shared secret the message envelope key is derived from.
	MessageSecret string
	// GatePublicKey is the base64 Ed25519 public key used to verify bearer tokens
	// on inbound realtime connections.
	GatePublicKey string

	// NotifyWebhookURL receives push-notification dispatches; empty disables pushes.
	NotifyWebhookURL string

	// AllowedOrigins for the websocket handshake (comma-separated, empty = any).
	AllowedOrigins []string
	// RateLimitWhitelist lists IPs or CIDRs exempt from handshake rate limiting.
	RateLimitWhitelist []string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLitePath:       os.Getenv("SQLITE_PATH"),
		RedisURL:         os.Getenv("REDIS_URL"),
		MessageSecret:    os.Getenv("MESSAGE_SECRET"),
		GatePublicKey:    os.Getenv("GATE_PUBLIC_KEY"),
		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
	}

	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))
	cfg.RateLimitWhitelist = splitList(os.Getenv("RATE_LIMIT_WHITELIST"))

	// In production, require the backing stores and the gate key
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if cfg.MessageSecret == "" {
			panic("MESSAGE_SECRET is required in production")
		}
		if cfg.GatePublicKey == "" {
			panic("GATE_PUBLIC_KEY is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
