// Package armory is a thin client for the character API used by job
// functions: profile, mount collection, and guild news lookups authenticated
// with the shared credential cache.
package armory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/tlexii/overlord/internal/auth"
)

// Config holds armory client configuration
type Config struct {
	BaseURL string // e.g. https://us.api.blizzard.com
	Locale  string // e.g. en_US
	// RequestsPerSecond caps outbound calls to the API across all pool
	// slots. This is a client-side courtesy limit, not a per-user one.
	RequestsPerSecond float64
	Burst             int
}

// Client performs authenticated, rate-limited API lookups
type Client struct {
	baseURL    string
	locale     string
	httpClient *http.Client
	creds      *auth.Cache
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates an armory client. Job functions run without deadlines, so
// the client deliberately carries no request timeout.
func NewClient(cfg *Config, creds *auth.Cache, logger *slog.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		locale:     cfg.Locale,
		httpClient: &http.Client{},
		creds:      creds,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		logger:     logger,
	}
}

// CharacterProfile fetches a character's profile document
func (c *Client) CharacterProfile(ctx context.Context, realm, character string) (map[string]interface{}, error) {
	path := fmt.Sprintf("/wow/character/%s/%s", url.PathEscape(realm), url.PathEscape(character))
	return c.get(ctx, path, nil)
}

// CharacterMounts fetches a character's mount collection
func (c *Client) CharacterMounts(ctx context.Context, realm, character string) (map[string]interface{}, error) {
	path := fmt.Sprintf("/wow/character/%s/%s", url.PathEscape(realm), url.PathEscape(character))
	return c.get(ctx, path, url.Values{"fields": {"mounts"}})
}

// GuildNews fetches a guild's news feed
func (c *Client) GuildNews(ctx context.Context, realm, guild string) (map[string]interface{}, error) {
	path := fmt.Sprintf("/wow/guild/%s/%s", url.PathEscape(realm), url.PathEscape(guild))
	return c.get(ctx, path, url.Values{"fields": {"news"}})
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (map[string]interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	token, err := c.creds.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate armory request: %w", err)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("locale", c.locale)

	reqURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build armory request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Armory request",
		slog.String("url", reqURL),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("armory request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read armory response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("Armory request rejected",
			slog.String("url", reqURL),
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("armory returned status %d", resp.StatusCode)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse armory response: %w", err)
	}

	return doc, nil
}
