package session

import (
	"context"
	"time"
)

// Service implements the high-level session operations: issue on login,
// validate on protected routes, revoke on logout.
type Service struct {
	issuer TokenIssuer
	store  Store
}

// Issued is the result of issuing a session.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

// NewService constructs a Service.
func NewService(issuer TokenIssuer, store Store) *Service {
	return &Service{issuer: issuer, store: store}
}

// Issue mints a fresh token for clientID and records the Session row keyed
// by the token hash. Each login gets an independent session; earlier ones
// stay valid.
func (s *Service) Issue(ctx context.Context, now time.Time, clientID string) (Issued, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	token, expiresAt, err := s.issuer.Issue(clientID, now)
	if err != nil {
		return Issued{}, err
	}

	err = s.store.Create(ctx, Session{
		TokenHash: HashTokenHex(token),
		ClientID:  clientID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return Issued{}, err
	}

	return Issued{Token: token, ExpiresAt: expiresAt}, nil
}

// Validate returns the owning client id for a live bearer token.
//
// The Session row is the single authority: the row must exist and its expiry
// must be strictly in the future. expires_at == now counts as expired.
func (s *Service) Validate(ctx context.Context, token string, now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	row, err := s.store.GetByTokenHash(ctx, HashTokenHex(token))
	if err != nil {
		return "", err
	}
	if !row.ExpiresAt.After(now) {
		return "", ErrInvalidToken
	}
	return row.ClientID, nil
}

// Revoke deletes the Session row for the token, invalidating it immediately.
// Revoking an already-invalid token is a no-op.
func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.store.DeleteByTokenHash(ctx, HashTokenHex(token))
}
