package identity

import (
	"context"
	"time"
)

// Account is the registered client entity.
type Account struct {
	ID         string
	ClientName string
	Email      string

	CreatedAt time.Time
	UpdatedAt *time.Time
}

// AuthCredential is the password-hash record associated one-to-one with an Account.
type AuthCredential struct {
	AuthID       string
	ClientID     string
	PasswordHash string

	CreatedAt time.Time
	LastLogin *time.Time
	UpdatedAt *time.Time
}

// CreateAccountInput describes a signup request after validation and hashing.
// Email must already be normalized (lowercase, trimmed) by the caller.
type CreateAccountInput struct {
	ClientName   string
	Email        string
	PasswordHash string
	Now          time.Time
}

// UpdateAccountInput applies only the non-nil fields.
type UpdateAccountInput struct {
	ClientName *string
	Email      *string
	Now        time.Time
}

// Store is the account/credential persistence boundary.
//
// Contract highlights:
//   - CreateAccount inserts the account row, then the credential row, in that
//     order. If the credential insert fails it deletes the just-created
//     account row (compensating action) before signalling failure. A unique
//     violation on email is reported as ConflictError, not a generic failure.
//   - DeleteCascade deletes sessions, reset tokens and the credential row
//     before the account row (children before parent) and returns ErrNotFound
//     if the account row itself does not exist, even if deletion of children
//     partially succeeded.
//   - Concurrent CreateAccount calls with the same email can race; the store
//     level unique constraint is the only safety net. This is accepted.
type Store interface {
	CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	GetByID(ctx context.Context, id string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	Update(ctx context.Context, id string, in UpdateAccountInput) (Account, error)
	DeleteCascade(ctx context.Context, id string) error

	GetCredentialByClientID(ctx context.Context, clientID string) (AuthCredential, error)
	SetLastLogin(ctx context.Context, authID string, now time.Time) error
	SetPasswordHash(ctx context.Context, authID string, hash string, now time.Time) error
}
