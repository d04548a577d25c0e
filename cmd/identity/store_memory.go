package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used when no database is configured
// (local development) and by unit tests. It mirrors the Postgres contract,
// including the compensating-delete behavior and the email uniqueness check.
type MemoryStore struct {
	mu sync.Mutex

	accounts map[string]Account        // id -> account
	creds    map[string]AuthCredential // client_id -> credential

	// failCredentialInsert forces the credential insert to fail, exercising
	// the compensating delete path in tests.
	failCredentialInsert error

	// sessionWipe and resetWipe let the session/reset stores participate in
	// DeleteCascade without an import cycle.
	sessionWipe func(clientID string)
	resetWipe   func(clientID string)
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: map[string]Account{},
		creds:    map[string]AuthCredential{},
	}
}

// OnDeleteCascade registers hooks invoked (children first) during DeleteCascade.
func (s *MemoryStore) OnDeleteCascade(sessionWipe, resetWipe func(clientID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionWipe = sessionWipe
	s.resetWipe = resetWipe
}

// FailNextCredentialInsert makes the next CreateAccount fail after the
// account insert, for compensating-delete tests.
func (s *MemoryStore) FailNextCredentialInsert(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCredentialInsert = err
}

// AccountCount reports the number of stored accounts.
func (s *MemoryStore) AccountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// CredentialCount reports the number of stored credential rows.
func (s *MemoryStore) CredentialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creds)
}

// CreateAccount mirrors PostgresStore.CreateAccount, including compensation.
func (s *MemoryStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.CreateAccount"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	name := strings.TrimSpace(in.ClientName)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" || strings.TrimSpace(in.PasswordHash) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing fields"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Email == email {
			return Account{}, ConflictError{Op: op, Field: "email"}
		}
	}

	clientID, err := NewULID(now)
	if err != nil {
		return Account{}, err
	}
	acct := Account{ID: clientID, ClientName: name, Email: email, CreatedAt: now}
	s.accounts[clientID] = acct

	if s.failCredentialInsert != nil {
		err := s.failCredentialInsert
		s.failCredentialInsert = nil
		delete(s.accounts, clientID) // compensating delete
		return Account{}, err
	}

	authID, err := NewULID(now)
	if err != nil {
		delete(s.accounts, clientID)
		return Account{}, err
	}
	s.creds[clientID] = AuthCredential{
		AuthID:       authID,
		ClientID:     clientID,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
	}

	return acct, nil
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (Account, error) {
	const op = "identity.GetByEmail"

	email = NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return Account{}, NotFoundError{Op: op, Resource: "client"}
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.GetByID"

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[strings.TrimSpace(id)]
	if !ok {
		return Account{}, NotFoundError{Op: op, Resource: "client"}
	}
	return a, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, in UpdateAccountInput) (Account, error) {
	const op = "identity.Update"

	if in.ClientName == nil && in.Email == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "no fields to update"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[strings.TrimSpace(id)]
	if !ok {
		return Account{}, NotFoundError{Op: op, Resource: "client"}
	}

	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email == "" {
			return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty email"}
		}
		for otherID, other := range s.accounts {
			if otherID != a.ID && other.Email == email {
				return Account{}, ConflictError{Op: op, Field: "email"}
			}
		}
		a.Email = email
	}
	if in.ClientName != nil {
		name := strings.TrimSpace(*in.ClientName)
		if name == "" {
			return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty client_name"}
		}
		a.ClientName = name
	}

	a.UpdatedAt = &now
	s.accounts[a.ID] = a
	return a, nil
}

func (s *MemoryStore) DeleteCascade(ctx context.Context, id string) error {
	const op = "identity.DeleteCascade"

	id = strings.TrimSpace(id)

	s.mu.Lock()
	sessionWipe, resetWipe := s.sessionWipe, s.resetWipe
	s.mu.Unlock()

	// Children first, matching the Postgres deletion order.
	if sessionWipe != nil {
		sessionWipe(id)
	}
	if resetWipe != nil {
		resetWipe(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.creds, id)
	if _, ok := s.accounts[id]; !ok {
		return NotFoundError{Op: op, Resource: "client"}
	}
	delete(s.accounts, id)
	return nil
}

func (s *MemoryStore) GetCredentialByClientID(ctx context.Context, clientID string) (AuthCredential, error) {
	const op = "identity.GetCredentialByClientID"

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[strings.TrimSpace(clientID)]
	if !ok {
		return AuthCredential{}, NotFoundError{Op: op, Resource: "credential"}
	}
	return c, nil
}

func (s *MemoryStore) SetLastLogin(ctx context.Context, authID string, now time.Time) error {
	const op = "identity.SetLastLogin"
	return s.mutateCredential(op, authID, func(c *AuthCredential) {
		t := now
		c.LastLogin = &t
	})
}

func (s *MemoryStore) SetPasswordHash(ctx context.Context, authID string, hash string, now time.Time) error {
	const op = "identity.SetPasswordHash"
	if strings.TrimSpace(hash) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing password_hash"}
	}
	return s.mutateCredential(op, authID, func(c *AuthCredential) {
		t := now
		c.PasswordHash = hash
		c.UpdatedAt = &t
	})
}

func (s *MemoryStore) mutateCredential(op, authID string, fn func(*AuthCredential)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for clientID, c := range s.creds {
		if c.AuthID == authID {
			fn(&c)
			s.creds[clientID] = c
			return nil
		}
	}
	return NotFoundError{Op: op, Resource: "credential"}
}
