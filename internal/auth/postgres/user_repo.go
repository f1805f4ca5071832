// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package postgres implements auth.UserRepository on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/authkeep/authkeep/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool used by the repository, so tests
// can substitute pgxmock.
type poolIface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Exists reports whether username is taken.
func (r *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, classify("check username", err)
	}
	return exists, nil
}

// Insert stores a new user. Uniqueness is enforced by the users_username_key
// constraint, so concurrent inserts of one name yield exactly one row.
func (r *UserRepository) Insert(ctx context.Context, username string, passwordHash []byte) (*auth.User, error) {
	user := &auth.User{
		Username:     username,
		PasswordHash: passwordHash,
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, username, passwordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, auth.Duplicate(username)
		}
		return nil, classify("insert user", err)
	}
	return user, nil
}

// FindByUsername retrieves a user by exact username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	user := &auth.User{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, classify("find user by username", err)
	}
	return user, nil
}

// classify maps a driver error to the auth taxonomy. Server errors outside the
// connection, resource and operator-intervention classes are internal; any
// error that never reached the server means the store is unavailable.
func classify(operation string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return auth.StorageUnavailable(operation, err)
	}
	if pgerrcode.IsConnectionException(pgErr.Code) ||
		pgerrcode.IsInsufficientResources(pgErr.Code) ||
		pgerrcode.IsOperatorIntervention(pgErr.Code) {
		return auth.StorageUnavailable(operation, err)
	}
	return oops.Code("USER_QUERY_FAILED").
		With("operation", operation).
		With("sqlstate", pgErr.Code).
		Wrap(err)
}

var _ auth.UserRepository = (*UserRepository)(nil)
