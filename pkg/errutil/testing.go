// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package errutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is an oops error whose effective code is
// code. The effective code is the deepest one set in the wrap chain.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	oopsErr := requireOops(t, err)
	assert.Equal(t, code, oopsErr.Code(), "error: %v", err)
}

// AssertErrorContext asserts that err carries key=value in its merged
// oops context.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	require.Contains(t, ctx, key, "error: %v", err)
	assert.Equal(t, value, ctx[key])
}

// AssertNoSecret asserts that secret appears neither in the message of err
// nor in any value of its oops context. Use it for passwords, token signing
// keys and password hashes.
func AssertNoSecret(t testing.TB, err error, secret string) {
	t.Helper()
	require.Error(t, err)
	require.NotEmpty(t, secret)
	assert.NotContains(t, err.Error(), secret)

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return
	}
	for key, value := range oopsErr.Context() {
		assert.False(t, strings.Contains(fmt.Sprint(value), secret),
			"context key %q leaks a secret", key)
	}
}

func requireOops(t testing.TB, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	return oopsErr
}
