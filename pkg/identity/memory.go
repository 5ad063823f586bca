package identity

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory credential store guarded by an RWMutex.
// Lookups take the read lock, so many authentication sessions can verify
// credentials concurrently while the admin path mutates entries.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

var _ Admin = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

// Upsert implements Admin.
func (s *MemoryStore) Upsert(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *user
	s.users[user.Username] = &clone
	return nil
}

// Delete implements Admin.
func (s *MemoryStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, username)
	return nil
}

// List implements Admin.
func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	return names, nil
}
