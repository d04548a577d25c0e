package reset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"clientauth/cmd/identity"
)

// PostgresStore implements Store over PostgreSQL.
//
// The delete-then-insert in IssueFor is not transactional; two concurrent
// requests for the same account can interleave and the later write wins.
// Last-write-wins is acceptable here: only one token is ever returned to the
// caller, and stale rows are purged on the next issue or verify.
type PostgresStore struct {
	db     identity.DB
	schema string
	ttl    time.Duration
}

// NewPostgresStore constructs a PostgresStore. A non-positive ttl falls back
// to DefaultTTL.
func NewPostgresStore(db identity.DB, ttl time.Duration) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("reset: nil db")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresStore{db: db, schema: "public", ttl: ttl}, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "reset_tokens"}.Sanitize()
}

// IssueFor deletes any existing token for the account and inserts a new one.
func (s *PostgresStore) IssueFor(ctx context.Context, clientID string, now time.Time) (string, error) {
	const op = "reset.IssueFor"

	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return "", identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "missing client_id"}
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tokens := s.table()

	if _, err := s.db.Exec(ctx, `DELETE FROM `+tokens+` WHERE client_id = $1`, clientID); err != nil {
		return "", fmt.Errorf("%s: purge: %w", op, err)
	}

	token := uuid.NewString()
	if _, err := s.db.Exec(ctx,
		`INSERT INTO `+tokens+` (token, client_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		token, clientID, now, now.Add(s.ttl),
	); err != nil {
		return "", fmt.Errorf("%s: insert: %w", op, err)
	}

	return token, nil
}

// Verify looks the token up and enforces expiry; expired rows are deleted.
func (s *PostgresStore) Verify(ctx context.Context, token string, now time.Time) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidOrExpired
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tokens := s.table()

	var (
		clientID  string
		expiresAt time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT client_id, expires_at FROM `+tokens+` WHERE token = $1`,
		token,
	).Scan(&clientID, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidOrExpired
		}
		return "", fmt.Errorf("reset.Verify: %w", err)
	}

	if !expiresAt.After(now) {
		// Expired token found during verification is deleted immediately.
		_, _ = s.db.Exec(ctx, `DELETE FROM `+tokens+` WHERE token = $1`, token)
		return "", ErrInvalidOrExpired
	}

	return clientID, nil
}

// Consume deletes the token (idempotent).
func (s *PostgresStore) Consume(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM `+s.table()+` WHERE token = $1`, token); err != nil {
		return fmt.Errorf("reset.Consume: %w", err)
	}
	return nil
}
