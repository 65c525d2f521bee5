// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Cardroom CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cardroom",
		Short: "Cardroom - multiplayer card-game session server",
		Long: `Cardroom is the session layer for a multiplayer card game: it registers
accounts, issues and rotates session tokens, and coordinates which game
each user is sitting at.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}
