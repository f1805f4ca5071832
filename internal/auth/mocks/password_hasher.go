// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/authkeep/authkeep/internal/auth"
)

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher whose expectations are
// asserted when the test ends.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash mocks auth.PasswordHasher.Hash.
func (m *MockPasswordHasher) Hash(password string) ([]byte, error) {
	args := m.Called(password)
	hash, _ := args.Get(0).([]byte)
	return hash, args.Error(1)
}

// Verify mocks auth.PasswordHasher.Verify.
func (m *MockPasswordHasher) Verify(encoded []byte, password string) (auth.VerifyResult, error) {
	args := m.Called(encoded, password)
	result, _ := args.Get(0).(auth.VerifyResult)
	return result, args.Error(1)
}

var _ auth.PasswordHasher = (*MockPasswordHasher)(nil)
