package session

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is the in-memory Store used in no-database mode and in tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session // token hash -> row
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]Session{}}
}

// WipeClient removes all sessions for an account (account deletion cascade).
func (s *MemoryStore) WipeClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, row := range s.sessions {
		if row.ClientID == clientID {
			delete(s.sessions, hash)
		}
	}
}

// CountForClient reports the number of live sessions for an account.
func (s *MemoryStore) CountForClient(clientID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.sessions {
		if row.ClientID == clientID {
			n++
		}
	}
	return n
}

func (s *MemoryStore) Create(ctx context.Context, in Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[in.TokenHash] = in
	return nil
}

func (s *MemoryStore) GetByTokenHash(ctx context.Context, hash string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[strings.TrimSpace(hash)]
	if !ok {
		return Session{}, ErrInvalidToken
	}
	return row, nil
}

func (s *MemoryStore) DeleteByTokenHash(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, strings.TrimSpace(hash))
	return nil
}
