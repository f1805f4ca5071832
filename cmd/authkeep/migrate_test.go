// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkeep/authkeep/pkg/errutil"
)

type fakeMigrator struct {
	upErr      error
	downErr    error
	version    uint
	dirty      bool
	pending    []uint
	forced     *int
	closeErr   error
	upCalled   bool
	downCalled bool
	steps      int
	closed     bool
}

func (f *fakeMigrator) Up() error {
	f.upCalled = true
	return f.upErr
}

func (f *fakeMigrator) Down() error {
	f.downCalled = true
	return f.downErr
}

func (f *fakeMigrator) Steps(n int) error {
	f.steps = n
	return f.downErr
}

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, nil }

func (f *fakeMigrator) Force(v int) error {
	f.forced = &v
	return nil
}

func (f *fakeMigrator) PendingMigrations() ([]uint, error) { return f.pending, nil }

func (f *fakeMigrator) Close() error {
	f.closed = true
	return f.closeErr
}

// useMigrator swaps newMigrator for the duration of the test.
func useMigrator(t *testing.T, m *fakeMigrator) *string {
	t.Helper()
	var gotURL string
	orig := newMigrator
	newMigrator = func(url string) (migrator, error) {
		gotURL = url
		return m, nil
	}
	t.Cleanup(func() { newMigrator = orig })
	return &gotURL
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	isolateEnv(t)
	fake := &fakeMigrator{}
	useMigrator(t, fake)

	_, err := runCLI(t, "migrate", "up")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.False(t, fake.upCalled)
}

func TestMigrate_Up(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/authkeep")
	fake := &fakeMigrator{}
	gotURL := useMigrator(t, fake)

	out, err := runCLI(t, "migrate", "up")
	require.NoError(t, err)
	assert.True(t, fake.upCalled)
	assert.True(t, fake.closed)
	assert.Equal(t, "postgres://localhost/authkeep", *gotURL)
	assert.Contains(t, out, "Migrations completed successfully")
}

func TestMigrate_BareCommandRunsUp(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/authkeep")
	fake := &fakeMigrator{}
	useMigrator(t, fake)

	_, err := runCLI(t, "migrate")
	require.NoError(t, err)
	assert.True(t, fake.upCalled)
}

func TestMigrate_UpFailure(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/authkeep")
	fake := &fakeMigrator{upErr: errors.New("syntax error")}
	useMigrator(t, fake)

	_, err := runCLI(t, "migrate", "up")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
	assert.True(t, fake.closed)
}

func TestMigrate_CloseErrorSurfaces(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/authkeep")
	fake := &fakeMigrator{closeErr: errors.New("close failed")}
	useMigrator(t, fake)

	_, err := runCLI(t, "migrate", "down")
	require.Error(t, err)
	assert.True(t, fake.downCalled)
	assert.Contains(t, err.Error(), "close failed")
}

func TestMigrate_DownSteps(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/authkeep")

	t.Run("rolls back only the requested steps", func(t *testing.T) {
		fake := &fakeMigrator{}
		useMigrator(t, fake)

		out, err := runCLI(t, "migrate", "down", "--steps", "1")
		require.NoError(t, err)
		assert.Equal(t, -1, fake.steps)
		assert.False(t, fake.downCalled)
		assert.Contains(t, out, "Rolling back 1 migration(s)")
	})

	t.Run("negative steps are rejected before connecting", func(t *testing.T) {
		gotURL := useMigrator(t, &fakeMigrator{})

		_, err := runCLI(t, "migrate", "down", "--steps", "-2")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "INVALID_STEPS")
		assert.Empty(t, *gotURL)
	})
}

func TestMigrate_Status(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/authkeep")

	t.Run("pending", func(t *testing.T) {
		useMigrator(t, &fakeMigrator{version: 0, pending: []uint{1}})

		out, err := runCLI(t, "migrate", "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Current version: 0")
		assert.Contains(t, out, "Pending migrations (1)")
		assert.Contains(t, out, "000001_create_users")
	})

	t.Run("up to date and dirty", func(t *testing.T) {
		useMigrator(t, &fakeMigrator{version: 1, dirty: true})

		out, err := runCLI(t, "migrate", "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Current version: 1 (dirty)")
		assert.Contains(t, out, "No pending migrations")
	})
}

func TestMigrate_Force(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/authkeep")
	fake := &fakeMigrator{}
	useMigrator(t, fake)

	out, err := runCLI(t, "migrate", "force", "1")
	require.NoError(t, err)
	require.NotNil(t, fake.forced)
	assert.Equal(t, 1, *fake.forced)
	assert.Contains(t, out, "Forced version to 1")

	_, err = runCLI(t, "migrate", "force", "abc")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
}

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "non-numeric returns error", input: "abc", wantErr: true},
		{name: "trailing chars are ignored", input: "3abc", wantVersion: 3},
		{name: "negative parses", input: "-1", wantVersion: -1},
		{name: "empty string returns error", input: "", wantErr: true},
		{name: "whitespace only returns error", input: "   ", wantErr: true},
		{name: "leading whitespace is handled", input: "  42", wantVersion: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				assert.Equal(t, 0, version)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}
