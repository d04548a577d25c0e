package reset

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the in-memory Store used in no-database mode and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]Token // token value -> row
	ttl    time.Duration
}

// NewMemoryStore returns an empty MemoryStore. A non-positive ttl falls back
// to DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{tokens: map[string]Token{}, ttl: ttl}
}

// WipeClient removes all tokens for an account (account deletion cascade).
func (s *MemoryStore) WipeClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, row := range s.tokens {
		if row.ClientID == clientID {
			delete(s.tokens, tok)
		}
	}
}

// Count reports the number of live token rows.
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

func (s *MemoryStore) IssueFor(ctx context.Context, clientID string, now time.Time) (string, error) {
	clientID = strings.TrimSpace(clientID)
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for tok, row := range s.tokens {
		if row.ClientID == clientID {
			delete(s.tokens, tok)
		}
	}

	token := uuid.NewString()
	s.tokens[token] = Token{
		Token:     token,
		ClientID:  clientID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	return token, nil
}

func (s *MemoryStore) Verify(ctx context.Context, token string, now time.Time) (string, error) {
	token = strings.TrimSpace(token)
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.tokens[token]
	if !ok {
		return "", ErrInvalidOrExpired
	}
	if !row.ExpiresAt.After(now) {
		delete(s.tokens, token)
		return "", ErrInvalidOrExpired
	}
	return row.ClientID, nil
}

func (s *MemoryStore) Consume(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, strings.TrimSpace(token))
	return nil
}
