package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"clientauth/cmd/identity"
)

// PostgresStore implements Store over PostgreSQL. The pool is owned by the
// caller.
type PostgresStore struct {
	db     identity.DB
	schema string
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db identity.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("session: nil db")
	}
	return &PostgresStore{db: db, schema: "public"}, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "sessions"}.Sanitize()
}

func (s *PostgresStore) Create(ctx context.Context, in Session) error {
	const op = "session.Create"

	if strings.TrimSpace(in.TokenHash) == "" || strings.TrimSpace(in.ClientID) == "" {
		return identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "missing fields"}
	}
	now := in.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO `+s.table()+` (token_hash, client_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		in.TokenHash, in.ClientID, now, in.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *PostgresStore) GetByTokenHash(ctx context.Context, hash string) (Session, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return Session{}, ErrInvalidToken
	}

	var out Session
	err := s.db.QueryRow(ctx,
		`SELECT token_hash, client_id, created_at, expires_at
		   FROM `+s.table()+` WHERE token_hash = $1`,
		hash,
	).Scan(&out.TokenHash, &out.ClientID, &out.CreatedAt, &out.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, fmt.Errorf("session.GetByTokenHash: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteByTokenHash(ctx context.Context, hash string) error {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM `+s.table()+` WHERE token_hash = $1`, hash); err != nil {
		return fmt.Errorf("session.DeleteByTokenHash: %w", err)
	}
	return nil
}
