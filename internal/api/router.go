// Package api assembles the HTTP surface: the five websocket endpoints plus
// health and metrics.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/voxhub/realtime/internal/api/middleware"
	"github.com/voxhub/realtime/internal/ws"
)

// Options carries the router's operational knobs.
type Options struct {
	AllowedOrigins     []string
	RateLimitWhitelist []string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, gate *ws.Gate, health http.Handler, redisClient *redis.Client, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Handshake rate limiting
	limiter := middleware.NewRateLimiter(redisClient, logger, middleware.RateLimiterConfig{
		Whitelist:        opts.RateLimitWhitelist,
		AutoBlockEnabled: true,
	})
	r.Use(limiter.Middleware)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", serveRoot)
	r.Get("/health", health.ServeHTTP)

	// One websocket endpoint per namespace; the gate authenticates before
	// the upgrade completes.
	r.Get("/ws/main", gate.Handler(ws.NamespaceMain))
	r.Get("/ws/chat", gate.Handler(ws.NamespaceChat))
	r.Get("/ws/channel", gate.Handler(ws.NamespaceChannel))
	r.Get("/ws/server", gate.Handler(ws.NamespaceServer))
	r.Get("/ws/call", gate.Handler(ws.NamespaceCall))

	return r
}

// serveRoot answers with service identity for probes and the curious.
func serveRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"name":"voxhub-realtime","endpoints":["/ws/main","/ws/chat","/ws/channel","/ws/server","/ws/call","/health","/metrics"]}`))
}
