// Package auth owns the OAuth2 client-credentials token shared by every
// worker. One token exists at a time; it is renewed on expiry and persisted
// so cooperating processes avoid redundant renewals.
package auth

import (
	"errors"
	"fmt"
	"time"
)

// DefaultSafetyMargin is the minimum remaining validity required before a
// cached token is reused without renewal.
const DefaultSafetyMargin = 30 * time.Second

// Token is the persisted credential record
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"` // unix seconds
}

// Fresh reports whether the token is still usable at the given instant,
// keeping the safety margin clear of the expiry.
func (t *Token) Fresh(now time.Time, margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt > now.Add(margin).Unix()
}

// ErrTokenNotFound is returned by a Store when no token has been persisted yet
var ErrTokenNotFound = errors.New("no stored token")

// AuthError wraps a failed credential renewal. Callers must fail the
// enclosing job rather than proceed with a stale or absent token.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("credential renewal failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
