// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package main

import (
	"bufio"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/authkeep/authkeep/internal/auth"
)

// NewHashCmd creates the hash subcommand.
func NewHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Hash a password read from stdin",
		Long: `Read a password from stdin and print its encoded hash (base64) under
the configured hashing policy. Useful for seeding users by hand.`,
		Args: cobra.NoArgs,
		RunE: runHash,
	}
}

func runHash(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	hasher, err := auth.NewHasher(cfg.HashPolicy())
	if err != nil {
		return err
	}

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	encoded, err := hasher.Hash(password)
	if err != nil {
		return err
	}
	cmd.Println(base64.StdEncoding.EncodeToString(encoded))
	return nil
}

// readPassword reads one line without echo when stdin is a terminal.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // fd fits in int
		cmd.PrintErr("Password: ")
		pw, err := term.ReadPassword(int(f.Fd())) //nolint:gosec // fd fits in int
		cmd.PrintErrln()
		if err != nil {
			return "", oops.Code("INPUT_FAILED").Wrap(err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", oops.Code("INPUT_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
