// Package reset manages single-use, time-limited password-reset tokens.
//
// Invariant: at most one live token per account. Issuing a new token deletes
// any prior token for that account first. A read that finds an expired token
// deletes it on the spot; there is no background garbage collector.
package reset

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is the reset-token lifetime when none is configured.
// Deliberately much shorter than the session TTL.
const DefaultTTL = 30 * time.Minute

// ErrInvalidOrExpired is returned for unknown, consumed, and expired tokens.
// Callers must not distinguish these cases to avoid token probing.
var ErrInvalidOrExpired = errors.New("invalid_or_expired")

// Token is a stored reset token row.
type Token struct {
	Token     string
	ClientID  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store is the reset-token persistence boundary.
type Store interface {
	// IssueFor deletes any existing token for the account, then inserts a
	// fresh one expiring at now + TTL. Returns the plain token value.
	IssueFor(ctx context.Context, clientID string, now time.Time) (string, error)

	// Verify returns the owning client id for a live token. Unknown tokens
	// fail with ErrInvalidOrExpired; a token found expired is deleted and
	// fails the same way. A token whose expiry equals now is expired.
	Verify(ctx context.Context, token string, now time.Time) (string, error)

	// Consume deletes the token. Deleting an already-gone token is a no-op,
	// not an error.
	Consume(ctx context.Context, token string) error
}
