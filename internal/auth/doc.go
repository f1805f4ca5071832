// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package auth provides the credential lifecycle for Authkeep.
//
// # Components
//
//   - UserRepository - durable user storage; Insert enforces username uniqueness atomically
//   - Hasher - salted, cost-parameterized password hashing with a self-describing format
//   - PooledHasher - bounds concurrent hash work independently of request concurrency
//   - TokenService - issues and validates HS256 bearer tokens
//   - Service - Register, Login and ValidateBearerToken
//
// # Errors
//
// Every error returned by Service wraps exactly one of ErrValidation,
// ErrDuplicateUsername, ErrUnauthorized, ErrUnauthenticated or
// ErrStorageUnavailable, or is internal. Kind classifies an error for
// transport layers.
//
// Records are created once by Register and never updated or deleted here.
package auth
