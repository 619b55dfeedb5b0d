// Package notify dispatches push notifications. The realtime core treats the
// push provider as an external collaborator behind the Notifier interface.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxhub/realtime/internal/metrics"
	"github.com/voxhub/realtime/internal/store"
)

// Notifier pushes a notification to every registered device of a user.
type Notifier interface {
	PushToUser(ctx context.Context, userID uuid.UUID, title, body string) error
}

// Service records the notification durably and forwards it to the push
// webhook when one is configured.
type Service struct {
	store      store.DataStore
	webhookURL string
	client     *http.Client
	log        zerolog.Logger
}

// NewService creates a notifier backed by the data store and an optional webhook.
func NewService(dataStore store.DataStore, webhookURL string, logger zerolog.Logger) *Service {
	return &Service{
		store:      dataStore,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		log:        logger.With().Str("component", "notify").Logger(),
	}
}

type webhookPayload struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// PushToUser stores the notification row and dispatches the webhook.
// Delivery is best-effort: a webhook failure is logged, not returned.
func (s *Service) PushToUser(ctx context.Context, userID uuid.UUID, title, body string) error {
	if err := s.store.CreateNotification(ctx, userID, title, body); err != nil {
		return err
	}

	metrics.NotificationsPushed.Inc()

	if s.webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(webhookPayload{UserID: userID.String(), Title: title, Body: body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("push webhook failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.log.Warn().
			Int("status", resp.StatusCode).
			Str("user_id", userID.String()).
			Msg("push webhook rejected notification")
		return fmt.Errorf("push webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Nop is a Notifier that drops everything; used in tests and when pushes
// are disabled.
type Nop struct{}

// PushToUser discards the notification.
func (Nop) PushToUser(ctx context.Context, userID uuid.UUID, title, body string) error {
	return nil
}
