package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/repository"
)

// MemoryUserStore is an in-process user store with the same uniqueness and
// error semantics as the Postgres repository.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]model.User
	err   error
}

// NewMemoryUserStore returns an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]model.User)}
}

// CreateUser stores user unless the username is already present.
func (s *MemoryUserStore) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	if user.Username == "" {
		return repository.ErrInvalidUsername
	}
	if _, ok := s.users[user.Username]; ok {
		return repository.ErrUsernameExists
	}
	user.CreatedAt = time.Now().UTC()
	s.users[user.Username] = *user
	return nil
}

// GetUserByUsername returns a copy of the stored user.
func (s *MemoryUserStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &user, nil
}

// Ping reports the injected error, if any.
func (s *MemoryUserStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// SetErr injects an error returned by every subsequent call.
func (s *MemoryUserStore) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Len returns the number of stored users.
func (s *MemoryUserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
