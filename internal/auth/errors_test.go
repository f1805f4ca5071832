// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package auth_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/authkeep/authkeep/internal/auth"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want auth.ErrorKind
	}{
		{"nil", nil, auth.KindInternal},
		{"plain", errors.New("boom"), auth.KindInternal},
		{"validation", auth.ValidateCredentials("", "x"), auth.KindValidation},
		{"conflict", auth.Duplicate("alice"), auth.KindConflict},
		{"wrapped conflict", oops.With("operation", "insert").Wrap(auth.Duplicate("alice")), auth.KindConflict},
		{"unauthorized", auth.ErrUnauthorized, auth.KindUnauthorized},
		{"unauthenticated", auth.ErrUnauthenticated, auth.KindUnauthorized},
		{"storage", auth.StorageUnavailable("ping", errors.New("refused")), auth.KindStorageUnavailable},
		{"not found alone is internal", auth.ErrNotFound, auth.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.Kind(tt.err))
		})
	}
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "validation", auth.KindValidation.String())
	assert.Equal(t, "conflict", auth.KindConflict.String())
	assert.Equal(t, "unauthorized", auth.KindUnauthorized.String())
	assert.Equal(t, "storage_unavailable", auth.KindStorageUnavailable.String())
	assert.Equal(t, "internal", auth.KindInternal.String())
}
