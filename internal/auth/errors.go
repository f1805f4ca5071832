// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes attached to oops errors returned by this package.
const (
	CodeValidation         = "AUTH_VALIDATION"
	CodeConflict           = "AUTH_CONFLICT"
	CodeUnauthorized       = "AUTH_UNAUTHORIZED"
	CodeUnauthenticated    = "AUTH_UNAUTHENTICATED"
	CodeStorageUnavailable = "AUTH_STORAGE_UNAVAILABLE"
	CodeInvalidHash        = "AUTH_INVALID_HASH"
)

// Sentinel errors. Coded errors returned by this package wrap one of these,
// so callers can use errors.Is without inspecting codes.
var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateUsername is returned when an insert loses the uniqueness race.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrValidation is returned for empty or malformed caller input.
	ErrValidation = errors.New("invalid input")

	// ErrUnauthorized is returned for bad credentials. It never says which part was wrong.
	ErrUnauthorized = errors.New("invalid username or password")

	// ErrUnauthenticated is returned for any bearer token that fails validation.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrStorageUnavailable is returned when the backing store cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ErrorKind is the externally observable outcome class of an error.
type ErrorKind int

// Error kinds, one per externally observable failure outcome.
const (
	KindInternal ErrorKind = iota
	KindValidation
	KindConflict
	KindUnauthorized
	KindStorageUnavailable
)

// String returns the lower-case name of the kind, used as a metrics label.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindStorageUnavailable:
		return "storage_unavailable"
	default:
		return "internal"
	}
}

// Kind classifies err. Unauthenticated tokens and bad credentials both map
// to KindUnauthorized.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrDuplicateUsername):
		return KindConflict
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrUnauthenticated):
		return KindUnauthorized
	case errors.Is(err, ErrStorageUnavailable):
		return KindStorageUnavailable
	}
	return KindInternal
}

// StorageUnavailable wraps a transport-level failure from a repository.
func StorageUnavailable(operation string, cause error) error {
	return oops.Code(CodeStorageUnavailable).
		With("operation", operation).
		With("cause", cause.Error()).
		Wrap(ErrStorageUnavailable)
}

// Duplicate builds the conflict error for username.
func Duplicate(username string) error {
	return oops.Code(CodeConflict).
		With("username", username).
		Wrap(ErrDuplicateUsername)
}

func unauthorized() error {
	return oops.Code(CodeUnauthorized).Wrap(ErrUnauthorized)
}

func unauthenticated() error {
	return oops.Code(CodeUnauthenticated).Wrap(ErrUnauthenticated)
}
