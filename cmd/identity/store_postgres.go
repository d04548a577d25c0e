package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the store needs. It is satisfied by
// *pgxpool.Pool and by pgxmock pools in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements account/credential persistence over PostgreSQL.
//
// Design notes:
//   - The connection pool is owned by the caller; this store must NOT close it.
//   - Schema/table identifiers are safely quoted to avoid SQL injection via
//     identifiers.
//   - The account and credential inserts in CreateAccount are deliberately NOT
//     wrapped in a transaction: the logical store contract is a generic table
//     service with single-row operations only, so orphan prevention relies on
//     the compensating delete.
//   - Errors are mapped to identity sentinel kinds where appropriate.
type PostgresStore struct {
	db     DB
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "public").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with safe defaults.
func NewPostgresStore(db DB, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		db:     db,
		schema: "public",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.db == nil {
		return nil, fmt.Errorf("identity: nil db")
	}
	return st, nil
}

const accountColumns = "id, client_name, email, created_at, updated_at"

// CreateAccount inserts the account row, then the credential row, in that
// order. A failed credential insert deletes the account row before returning.
func (s *PostgresStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.CreateAccount"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	name := strings.TrimSpace(in.ClientName)
	email := NormalizeEmail(in.Email)
	if name == "" {
		return Account{}, pgInvalid(op, "client_name is required")
	}
	if email == "" {
		return Account{}, pgInvalid(op, "email is required")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return Account{}, pgInvalid(op, "password_hash is required")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	clientID, err := NewULID(now)
	if err != nil {
		return Account{}, err
	}

	clients := pgIdent(s.schema, "clients")
	creds := pgIdent(s.schema, "authentication")

	_, err = s.db.Exec(ctx,
		`INSERT INTO `+clients+` (id, client_name, email, created_at)
		 VALUES ($1, $2, $3, $4)`,
		clientID, name, email, now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Account{}, ConflictError{Op: op, Field: field}
		}
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}

	authID, err := NewULID(now)
	if err != nil {
		_, _ = s.db.Exec(ctx, `DELETE FROM `+clients+` WHERE id = $1`, clientID)
		return Account{}, err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO `+creds+` (auth_id, client_id, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)`,
		authID, clientID, in.PasswordHash, now,
	)
	if err != nil {
		// Compensating delete: without it a failed credential insert leaves an
		// account nobody can ever log into or re-register.
		_, _ = s.db.Exec(ctx, `DELETE FROM `+clients+` WHERE id = $1`, clientID)
		return Account{}, fmt.Errorf("%s: credential insert: %w", op, err)
	}

	return Account{
		ID:         clientID,
		ClientName: name,
		Email:      email,
		CreatedAt:  now,
	}, nil
}

// GetByEmail finds an account by normalized email.
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (Account, error) {
	const op = "identity.GetByEmail"

	email = NormalizeEmail(email)
	if email == "" {
		return Account{}, pgInvalid(op, "missing email")
	}

	clients := pgIdent(s.schema, "clients")
	return s.scanAccount(op,
		s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM `+clients+` WHERE email = $1`, email))
}

// GetByID finds an account by id.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.GetByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, pgInvalid(op, "missing id")
	}

	clients := pgIdent(s.schema, "clients")
	return s.scanAccount(op,
		s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM `+clients+` WHERE id = $1`, id))
}

// List returns all accounts ordered by creation.
func (s *PostgresStore) List(ctx context.Context) ([]Account, error) {
	const op = "identity.List"

	clients := pgIdent(s.schema, "clients")
	rows, err := s.db.Query(ctx, `SELECT `+accountColumns+` FROM `+clients+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []Account{}
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.ClientName, &a.Email, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// Update applies only the provided fields and returns the updated account.
// Returns ErrNotFound if the id is absent.
func (s *PostgresStore) Update(ctx context.Context, id string, in UpdateAccountInput) (Account, error) {
	const op = "identity.Update"

	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, pgInvalid(op, "missing id")
	}
	if in.ClientName == nil && in.Email == nil {
		return Account{}, pgInvalid(op, "no fields to update")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	set := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if in.ClientName != nil {
		name := strings.TrimSpace(*in.ClientName)
		if name == "" {
			return Account{}, pgInvalid(op, "empty client_name")
		}
		set = append(set, "client_name = "+arg(name))
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email == "" {
			return Account{}, pgInvalid(op, "empty email")
		}
		set = append(set, "email = "+arg(email))
	}
	set = append(set, "updated_at = "+arg(now))

	clients := pgIdent(s.schema, "clients")
	row := s.db.QueryRow(ctx,
		`UPDATE `+clients+` SET `+strings.Join(set, ", ")+
			` WHERE id = `+arg(id)+` RETURNING `+accountColumns,
		args...,
	)

	acct, err := s.scanAccount(op, row)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Account{}, ConflictError{Op: op, Field: field}
		}
		return Account{}, err
	}
	return acct, nil
}

// DeleteCascade deletes sessions, reset tokens and the credential row before
// the account row. Children go first so a partial failure never leaves rows
// referencing a missing account.
func (s *PostgresStore) DeleteCascade(ctx context.Context, id string) error {
	const op = "identity.DeleteCascade"

	id = strings.TrimSpace(id)
	if id == "" {
		return pgInvalid(op, "missing id")
	}

	sessions := pgIdent(s.schema, "sessions")
	resets := pgIdent(s.schema, "reset_tokens")
	creds := pgIdent(s.schema, "authentication")
	clients := pgIdent(s.schema, "clients")

	if _, err := s.db.Exec(ctx, `DELETE FROM `+sessions+` WHERE client_id = $1`, id); err != nil {
		return fmt.Errorf("%s: sessions: %w", op, err)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM `+resets+` WHERE client_id = $1`, id); err != nil {
		return fmt.Errorf("%s: reset_tokens: %w", op, err)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM `+creds+` WHERE client_id = $1`, id); err != nil {
		return fmt.Errorf("%s: authentication: %w", op, err)
	}

	ct, err := s.db.Exec(ctx, `DELETE FROM `+clients+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: clients: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "client"}
	}
	return nil
}

// GetCredentialByClientID returns the credential row for an account.
func (s *PostgresStore) GetCredentialByClientID(ctx context.Context, clientID string) (AuthCredential, error) {
	const op = "identity.GetCredentialByClientID"

	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return AuthCredential{}, pgInvalid(op, "missing client_id")
	}

	creds := pgIdent(s.schema, "authentication")

	var c AuthCredential
	err := s.db.QueryRow(ctx,
		`SELECT auth_id, client_id, password_hash, created_at, last_login, updated_at
		   FROM `+creds+` WHERE client_id = $1`,
		clientID,
	).Scan(&c.AuthID, &c.ClientID, &c.PasswordHash, &c.CreatedAt, &c.LastLogin, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuthCredential{}, NotFoundError{Op: op, Resource: "credential"}
		}
		return AuthCredential{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// SetLastLogin records a successful login on the credential row.
func (s *PostgresStore) SetLastLogin(ctx context.Context, authID string, now time.Time) error {
	const op = "identity.SetLastLogin"
	return s.updateCredential(ctx, op, `last_login`, authID, now)
}

// SetPasswordHash replaces the stored password hash.
func (s *PostgresStore) SetPasswordHash(ctx context.Context, authID string, hash string, now time.Time) error {
	const op = "identity.SetPasswordHash"

	authID = strings.TrimSpace(authID)
	if authID == "" {
		return pgInvalid(op, "missing auth_id")
	}
	if strings.TrimSpace(hash) == "" {
		return pgInvalid(op, "missing password_hash")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	creds := pgIdent(s.schema, "authentication")
	ct, err := s.db.Exec(ctx,
		`UPDATE `+creds+` SET password_hash = $1, updated_at = $2 WHERE auth_id = $3`,
		hash, now, authID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "credential"}
	}
	return nil
}

// ---- helpers ----

func (s *PostgresStore) updateCredential(ctx context.Context, op, column, authID string, now time.Time) error {
	authID = strings.TrimSpace(authID)
	if authID == "" {
		return pgInvalid(op, "missing auth_id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	creds := pgIdent(s.schema, "authentication")
	ct, err := s.db.Exec(ctx,
		`UPDATE `+creds+` SET `+column+` = $1 WHERE auth_id = $2`,
		now, authID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "credential"}
	}
	return nil
}

func (s *PostgresStore) scanAccount(op string, row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.ClientName, &a.Email, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "client"}
		}
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// pgInvalid standardizes invalid input errors.
func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names; fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_clients_email" || strings.Contains(c, "email"):
		return "email", true
	default:
		return "unique", true
	}
}
