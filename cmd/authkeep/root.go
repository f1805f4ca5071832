// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/authkeep/authkeep/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Authkeep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authkeep",
		Short: "Authkeep - credential registration, login and bearer tokens",
		Long: `Authkeep stores user credentials as salted password hashes, checks
logins and issues signed, time-limited bearer tokens.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file path (default $XDG_CONFIG_HOME/authkeep/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewHashCmd())

	return cmd
}

// loadConfig loads configuration from the --config file, the environment
// and any changed flags in flags.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	return config.Load(config.Options{File: configFile, Flags: flags})
}
