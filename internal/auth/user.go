// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/oops"
)

// User is a stored credential record.
type User struct {
	ID           int64
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// LogValue keeps the password hash out of logs.
func (u *User) LogValue() slog.Value {
	if u == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.Int64("id", u.ID),
		slog.String("username", u.Username),
	)
}

// Public returns the outward view of the record, without the hash.
func (u *User) Public() *PublicUser {
	return &PublicUser{ID: u.ID, Username: u.Username}
}

// PublicUser is the part of a User that may leave the service.
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// ValidateCredentials rejects empty or whitespace-only input, and usernames
// that are not storable text.
func ValidateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return oops.Code(CodeValidation).
			With("field", "username").
			Wrapf(ErrValidation, "username is required")
	}
	if !storableUsername(username) {
		return oops.Code(CodeValidation).
			With("field", "username", "rule", "text").
			Wrapf(ErrValidation, "username must be valid UTF-8 without NUL characters")
	}
	if strings.TrimSpace(password) == "" {
		return oops.Code(CodeValidation).
			With("field", "password").
			Wrapf(ErrValidation, "password is required")
	}
	return nil
}

// storableUsername reports whether username can be held in a text column:
// valid UTF-8 with no NUL byte.
func storableUsername(username string) bool {
	return utf8.ValidString(username) && !strings.ContainsRune(username, 0)
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Exists reports whether a user with exactly this username is stored.
	Exists(ctx context.Context, username string) (bool, error)

	// Insert atomically stores a new user and returns it with its assigned ID.
	// Returns an error wrapping ErrDuplicateUsername if the username is taken.
	Insert(ctx context.Context, username string, passwordHash []byte) (*User, error)

	// FindByUsername retrieves a user by exact (case-sensitive) username.
	// Returns an error wrapping ErrNotFound if no such user exists.
	FindByUsername(ctx context.Context, username string) (*User, error)
}
