package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// Config holds credential cache configuration
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	SafetyMargin time.Duration // zero selects DefaultSafetyMargin
	Store        Store
	Logger       *slog.Logger
}

// Cache amortizes the client-credentials exchange across worker invocations.
// In-process callers are serialized with a mutex; across processes two
// concurrent renewals may both run, which wastes one exchange but is not a
// correctness problem since the store is last-writer-wins.
type Cache struct {
	grant  *clientcredentials.Config
	store  Store
	margin time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	token *Token

	now func() time.Time // injected by tests
}

// NewCache creates a credential cache
func NewCache(cfg *Config) *Cache {
	margin := cfg.SafetyMargin
	if margin <= 0 {
		margin = DefaultSafetyMargin
	}

	return &Cache{
		grant: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		},
		store:  cfg.Store,
		margin: margin,
		logger: cfg.Logger,
		now:    time.Now,
	}
}

// GetToken returns a currently-valid token, renewing synchronously if the
// cached one is missing or within the safety margin of its expiry.
func (c *Cache) GetToken(ctx context.Context) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token.Fresh(now, c.margin) {
		return c.token, nil
	}

	// Another process may already have renewed; check the shared store
	// before spending an exchange.
	stored, err := c.store.Load(ctx)
	if err == nil && stored.Fresh(now, c.margin) {
		c.logger.Debug("Loaded token from store",
			slog.Time("expires_at", time.Unix(stored.ExpiresAt, 0)),
		)
		c.token = stored
		return stored, nil
	}
	if err != nil && err != ErrTokenNotFound {
		c.logger.Warn("Failed to load stored token, renewing",
			slog.String("error", err.Error()),
		)
	}

	return c.renewLocked(ctx)
}

// Renew performs a client-credentials grant, persists the new token, and
// returns it. Safe to run redundantly.
func (c *Cache) Renew(ctx context.Context) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renewLocked(ctx)
}

func (c *Cache) renewLocked(ctx context.Context) (*Token, error) {
	c.logger.Info("Renewing credential token",
		slog.String("token_url", c.grant.TokenURL),
	)

	tok, err := c.grant.Token(ctx)
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	token := &Token{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.Expiry.Unix(),
	}

	// Persist before returning so a crash after renewal does not lose it.
	if err := c.store.Save(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to persist renewed token: %w", err)
	}

	c.token = token
	c.logger.Info("Credential token renewed",
		slog.Time("expires_at", time.Unix(token.ExpiresAt, 0)),
	)

	return token, nil
}
