package frontend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Deliverer hands a job response body to its final destination
type Deliverer interface {
	Deliver(ctx context.Context, destination string, body map[string]interface{}) error
}

// WebhookDeliverer posts job responses to a configured webhook endpoint.
// The receiving side (typically a chat bot) owns rendering the body for the
// destination channel.
type WebhookDeliverer struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookDeliverer creates a webhook deliverer
func NewWebhookDeliverer(url string, logger *slog.Logger) *WebhookDeliverer {
	return &WebhookDeliverer{
		url:        url,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Deliver posts the response body and its destination as a JSON document
func (d *WebhookDeliverer) Deliver(ctx context.Context, destination string, body map[string]interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"destination": destination,
		"body":        body,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	d.logger.Debug("Response delivered",
		slog.String("destination", destination),
	)
	return nil
}
