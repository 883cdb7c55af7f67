package news

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// WebhookPoster posts announcement payloads to chat webhooks
type WebhookPoster struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookPoster creates a webhook poster
func NewWebhookPoster(logger *slog.Logger) *WebhookPoster {
	return &WebhookPoster{
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Post sends the message to the webhook URL as JSON
func (p *WebhookPoster) Post(ctx context.Context, webhookURL string, message map[string]interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "overlord-news (1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	p.logger.Debug("News item announced",
		slog.String("webhook", webhookURL),
	)
	return nil
}
