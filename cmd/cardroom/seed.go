// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/cardroom/cardroom/internal/config"
	"github.com/cardroom/cardroom/internal/game"
	gamepg "github.com/cardroom/cardroom/internal/game/postgres"
	"github.com/cardroom/cardroom/internal/store"
)

// Lobby tables created by seed so a fresh deployment has somewhere to sit.
var seedGameNames = []string{"Casual Table", "High Stakes"}

// newSeedCmd creates the seed subcommand.
func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with starter games",
		Long:  `Create the default lobby games. Safe to run repeatedly: games that already exist are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runSeed(cmd, cfg)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runSeed(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()

	pool, err := store.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	directory := gamepg.NewDirectory(pool)

	for _, name := range seedGameNames {
		g, err := game.NewGame(name)
		if err != nil {
			return err
		}
		if err := directory.Create(ctx, g); err != nil {
			// The name constraint decides idempotency, not a lookup first.
			if errors.Is(err, game.ErrNameTaken) {
				cmd.Printf("Game %q already exists, skipping\n", name)
				continue
			}
			return err
		}
		cmd.Printf("Created game %q (%s)\n", name, g.ID.String())
	}

	return nil
}
