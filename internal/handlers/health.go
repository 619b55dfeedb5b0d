package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/voxhub/realtime/internal/store"
)

const version = "0.1.0"

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health serves the health check endpoint: the message store and the keyed
// state store are both probed with a short deadline.
type Health struct {
	store store.DataStore
	state Pinger
}

// NewHealth creates the health endpoint handler.
func NewHealth(dataStore store.DataStore, statePinger Pinger) *Health {
	return &Health{store: dataStore, state: statePinger}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	checks["database"], allHealthy = probe(ctx, h.store, allHealthy)
	checks["state"], allHealthy = probe(ctx, h.state, allHealthy)

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	resp := HealthResponse{
		Status:    status,
		Version:   version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

func probe(ctx context.Context, p Pinger, healthy bool) (Check, bool) {
	if p == nil {
		return Check{Status: "fail", Message: "not configured"}, false
	}
	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return Check{Status: "fail", Message: "connection failed"}, false
	}
	return Check{Status: "pass", Latency: time.Since(start).String()}, healthy
}
