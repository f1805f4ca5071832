// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/authkeep/authkeep/internal/auth"
)

// MockUserRepository is a mock of auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a MockUserRepository whose expectations are
// asserted when the test ends.
func NewMockUserRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockUserRepository {
	m := &MockUserRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Exists mocks auth.UserRepository.Exists.
func (m *MockUserRepository) Exists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

// Insert mocks auth.UserRepository.Insert.
func (m *MockUserRepository) Insert(ctx context.Context, username string, passwordHash []byte) (*auth.User, error) {
	args := m.Called(ctx, username, passwordHash)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

// FindByUsername mocks auth.UserRepository.FindByUsername.
func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

var _ auth.UserRepository = (*MockUserRepository)(nil)
