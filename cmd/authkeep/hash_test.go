// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package main

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkeep/authkeep/internal/auth"
)

func cheapHashEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AUTHKEEP_HASHER__ARGON2__MEMORY_KIB", "1024")
	t.Setenv("AUTHKEEP_HASHER__ARGON2__THREADS", "1")
}

func TestHashCommand_PrintsVerifiableHash(t *testing.T) {
	isolateEnv(t)
	cheapHashEnv(t)

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader("Secret123!\n"))
	cmd.SetArgs([]string{"hash"})

	require.NoError(t, cmd.Execute())

	encoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out.String()))
	require.NoError(t, err)

	result, err := auth.NewArgon2idHasher().Verify(encoded, "Secret123!")
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.NotContains(t, out.String(), "Secret123!")
}

func TestHashCommand_PBKDF2Policy(t *testing.T) {
	isolateEnv(t)
	t.Setenv("AUTHKEEP_HASHER__ALGORITHM", "pbkdf2")
	t.Setenv("AUTHKEEP_HASHER__PBKDF2__ITERATIONS", "1000")

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader("Secret123!"))
	cmd.SetArgs([]string{"hash"})

	require.NoError(t, cmd.Execute())

	encoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.NotEmpty(t, encoded)
	assert.Equal(t, byte(0x01), encoded[0])
}

func TestHashCommand_EmptyPassword(t *testing.T) {
	isolateEnv(t)
	cheapHashEnv(t)

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetArgs([]string{"hash"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrValidation)
}
