package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/screentime-server/screentime-server/internal/config"
	"github.com/screentime-server/screentime-server/internal/control"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body when a secret is set
const SignatureHeader = "X-Signature-256"

// WebhookSink posts state changes as JSON
type WebhookSink struct {
	url        string
	secret     []byte
	httpClient *http.Client
}

// NewWebhookSink creates a webhook sink
func NewWebhookSink(cfg *config.WebhookConfig) *WebhookSink {
	return &WebhookSink{
		url:    cfg.URL,
		secret: []byte(cfg.Secret),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name implements Sink
func (s *WebhookSink) Name() string {
	return "webhook"
}

// Sign returns the signature of body for secret
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notify implements Sink
func (s *WebhookSink) Notify(ctx context.Context, change *control.StateChange) error {
	body, err := json.Marshal(newMessage(change))
	if err != nil {
		return fmt.Errorf("marshal state change: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if len(s.secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(s.secret, body))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	log.Debug().
		Str("device_id", change.DeviceID.String()).
		Str("endpoint", s.url).
		Msg("State change delivered to webhook")
	return nil
}
