package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/autonmap/scan-orchestrator/config"
	"github.com/autonmap/scan-orchestrator/utils"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the exact transmitted
	// body. Receivers recompute over the raw bytes and compare in constant
	// time before trusting the payload.
	SignatureHeader = "X-Autonmap-Signature-256"

	// DeliveryHeader is an idempotency token, constant across retries of the
	// same delivery, so receivers can deduplicate.
	DeliveryHeader = "X-Autonmap-Delivery"
)

// WebhookPayload is the flat terminal-state notification. Result is the
// generic JSON tree of the XML report and is present only on success.
type WebhookPayload struct {
	ID         string                 `json:"id"`
	Status     string                 `json:"status"`
	Targets    []string               `json:"targets"`
	Profile    string                 `json:"profile"`
	FinishedAt string                 `json:"finished_at"`
	Result     map[string]interface{} `json:"result,omitempty"`
}

// WebhookService delivers signed completion notifications. Delivery is
// bounded: a few attempts with exponential backoff, then the error is
// returned for logging. Failures never feed back into job state.
type WebhookService struct {
	Client      *http.Client
	MaxAttempts int
	Backoff     time.Duration

	secret string
}

func InitWebhookService(cfg *config.EnvConfig) *WebhookService {
	return &WebhookService{
		Client:      &http.Client{Timeout: 10 * time.Second},
		MaxAttempts: 3,
		Backoff:     time.Second,
		secret:      cfg.Webhook.HMACSecret,
	}
}

// Notify serializes the payload once, signs those bytes, and POSTs them to
// the endpoint. The same body and delivery token are reused on every retry.
func (s *WebhookService) Notify(ctx context.Context, endpoint string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serializing webhook payload: %w", err)
	}

	signature := utils.ComputeHMACSHA256(s.secret, body)
	deliveryID := uuid.NewString()

	backoff := s.Backoff
	var lastErr error
	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		lastErr = s.post(ctx, endpoint, body, signature, deliveryID)
		if lastErr == nil {
			return nil
		}
		if attempt < s.MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return fmt.Errorf("webhook delivery to %s failed after %d attempts: %w", endpoint, s.MaxAttempts, lastErr)
}

func (s *WebhookService) post(ctx context.Context, endpoint string, body []byte, signature, deliveryID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)
	req.Header.Set(DeliveryHeader, deliveryID)

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %s", resp.Status)
	}
	return nil
}
