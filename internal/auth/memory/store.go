// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package memory provides an in-process UserRepository for tests and local runs.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/authkeep/authkeep/internal/auth"
)

// Store is a map-backed UserRepository. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	users  map[string]*auth.User
	nextID atomic.Int64
	now    func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users: make(map[string]*auth.User),
		now:   time.Now,
	}
}

// Exists implements auth.UserRepository.
func (s *Store) Exists(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, auth.StorageUnavailable("exists", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return ok, nil
}

// Insert implements auth.UserRepository. The lookup and the write happen
// under one write lock.
func (s *Store) Insert(ctx context.Context, username string, passwordHash []byte) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, auth.StorageUnavailable("insert", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return nil, auth.Duplicate(username)
	}

	hash := make([]byte, len(passwordHash))
	copy(hash, passwordHash)
	user := &auth.User{
		ID:           s.nextID.Add(1),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	s.users[username] = user
	return clone(user), nil
}

// FindByUsername implements auth.UserRepository.
func (s *Store) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, auth.StorageUnavailable("find by username", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	return clone(user), nil
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func clone(u *auth.User) *auth.User {
	c := *u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &c
}

var _ auth.UserRepository = (*Store)(nil)
