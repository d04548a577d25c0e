package session

import (
	"context"
	"time"
)

// Session is a server-tracked record representing one active login.
// Multiple concurrent sessions per account are permitted.
type Session struct {
	TokenHash string
	ClientID  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store is the session persistence boundary.
type Store interface {
	Create(ctx context.Context, s Session) error

	// GetByTokenHash returns ErrInvalidToken when the row is absent.
	GetByTokenHash(ctx context.Context, hash string) (Session, error)

	// DeleteByTokenHash is idempotent: deleting an absent row is not an error.
	DeleteByTokenHash(ctx context.Context, hash string) error
}
