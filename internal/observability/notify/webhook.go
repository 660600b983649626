package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gestorhq/portal-api/internal/domain/model"
	"github.com/gestorhq/portal-api/internal/ports"
)

// Config captures the webhook destination for security alerts.
type Config struct {
	WebhookURL string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// WebhookSink delivers high-severity security events to an HTTP webhook.
// It implements ports.AlertSink.
type WebhookSink struct {
	webhookURL string
	username   string
	retryLimit int
	client     *http.Client
}

var _ ports.AlertSink = (*WebhookSink)(nil)

// NewWebhookSink builds a webhook alert sink. Callers should pass a validated config.
func NewWebhookSink(cfg Config) (*WebhookSink, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("alert webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &WebhookSink{
		webhookURL: webhookURL,
		username:   fallbackString(strings.TrimSpace(cfg.Username), "portal-api"),
		retryLimit: retries,
		client:     hc,
	}, nil
}

// Notify posts a formatted alert for the event. Delivery failures are
// retried with linear backoff up to the configured limit.
func (s *WebhookSink) Notify(ctx context.Context, evt model.SecurityEvent) error {
	body, err := json.Marshal(s.formatMessage(evt))
	if err != nil {
		return fmt.Errorf("encode alert payload: %w", err)
	}

	attempts := s.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err = s.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			// Simple linear backoff to avoid thundering retries.
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return lastErr
}

func (s *WebhookSink) formatMessage(evt model.SecurityEvent) map[string]any {
	timestamp := evt.CreatedAt
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	text := strings.Builder{}
	text.WriteString("*Security alert*: ")
	text.WriteString(string(evt.Type))
	if evt.Email != nil && *evt.Email != "" {
		text.WriteString(" for ")
		text.WriteString(*evt.Email)
	}
	if evt.IP != "" {
		text.WriteString(" from ")
		text.WriteString(evt.IP)
	}

	msg := map[string]any{
		"text":        text.String(),
		"username":    s.username,
		"event_type":  evt.Type,
		"outcome":     evt.Outcome,
		"occurred_at": timestamp.Format(time.RFC3339),
	}
	if evt.PrincipalID != nil {
		msg["principal_id"] = *evt.PrincipalID
	}
	if len(evt.RawDetail) > 0 {
		msg["detail"] = json.RawMessage(evt.RawDetail)
	} else if evt.Detail != nil {
		msg["detail"] = evt.Detail
	}
	return msg
}

func (s *WebhookSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("alert webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
