package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxhub/realtime/internal/api"
	"github.com/voxhub/realtime/internal/calls"
	"github.com/voxhub/realtime/internal/channels"
	"github.com/voxhub/realtime/internal/chat"
	"github.com/voxhub/realtime/internal/config"
	"github.com/voxhub/realtime/internal/crypto"
	"github.com/voxhub/realtime/internal/handlers"
	"github.com/voxhub/realtime/internal/notify"
	"github.com/voxhub/realtime/internal/presence"
	"github.com/voxhub/realtime/internal/state"
	"github.com/voxhub/realtime/internal/store"
	"github.com/voxhub/realtime/internal/ws"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Message store: PostgreSQL when configured, SQLite otherwise
	var dataStore store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		dataStore = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		path := cfg.SQLitePath
		if path == "" {
			path = "realtime.db"
		}
		sqliteStore, err := store.NewSQLiteStore(ctx, path)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		dataStore = sqliteStore
		logger.Info().Str("path", path).Msg("using SQLite store")
	}
	defer dataStore.Close()

	// Keyed state store: Redis when configured, in-memory otherwise
	var stateStore state.KeyedStateStore
	var statePinger handlers.Pinger
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisState, err := state.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisState.Close()
		stateStore = redisState
		statePinger = redisState
		redisClient = redisState.Client()
		logger.Info().Msg("connected to Redis")
	} else {
		memory := state.NewMemoryStore()
		stateStore = memory
		statePinger = memory
		logger.Warn().Msg("no REDIS_URL, using in-memory state")
	}

	box, err := crypto.NewBox(cfg.MessageSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("envelope key derivation failed")
	}

	var notifier notify.Notifier = notify.NewService(dataStore, cfg.NotifyWebhookURL, logger)

	// In development a missing gate key is replaced by an ephemeral pair so
	// the service still boots; tokens minted against the logged private key
	// work until the next restart.
	gateKey := cfg.GatePublicKey
	if gateKey == "" {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			logger.Fatal().Err(err).Msg("ephemeral gate key generation failed")
		}
		gateKey = base64.StdEncoding.EncodeToString(pub)
		logger.Warn().
			Str("private_key", base64.StdEncoding.EncodeToString(priv)).
			Msg("no GATE_PUBLIC_KEY, generated ephemeral keypair")
	}

	hub := ws.NewHub(logger)

	presenceSvc := presence.New(stateStore, dataStore, hub, logger)
	coordinator := channels.New(stateStore, hub, logger)
	engine := calls.New(stateStore, presenceSvc, dataStore, hub, notifier, logger)
	pipeline := chat.New(dataStore, box, hub, notifier, logger)
	defer pipeline.Close()

	binder := handlers.New(hub, presenceSvc, coordinator, engine, pipeline, logger)

	gate, err := ws.NewGate(gateKey, cfg.AllowedOrigins, hub, binder, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("gate setup failed")
	}

	health := handlers.NewHealth(dataStore, statePinger)

	router := api.NewRouter(logger, gate, health, redisClient, api.Options{
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitWhitelist: cfg.RateLimitWhitelist,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would sever long-lived websocket connections.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting realtime server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	hub.Shutdown()

	logger.Info().Msg("server stopped")
}
