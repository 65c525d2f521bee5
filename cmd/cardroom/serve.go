// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/cardroom/cardroom/internal/auth"
	authpg "github.com/cardroom/cardroom/internal/auth/postgres"
	"github.com/cardroom/cardroom/internal/config"
	"github.com/cardroom/cardroom/internal/game"
	gamepg "github.com/cardroom/cardroom/internal/game/postgres"
	"github.com/cardroom/cardroom/internal/gateway"
	"github.com/cardroom/cardroom/internal/logging"
	"github.com/cardroom/cardroom/internal/observability"
	"github.com/cardroom/cardroom/internal/store"
)

const shutdownTimeout = 10 * time.Second

// newServeCmd creates the serve subcommand with all flags configured.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Cardroom API server",
		Long: `Start the HTTP API server, the observability endpoint, and the
membership coordinator against the configured PostgreSQL database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServe wires the process together and blocks until shutdown.
func runServe(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("cardroom", version, cfg.Log.Format)

	slog.Info("starting cardroom server",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"log_format", cfg.Log.Format,
	)

	pool, err := store.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("connected to database")

	// readiness flips once both servers are listening.
	var ready atomic.Bool

	var metrics *observability.Metrics
	var obsServer *observability.Server
	var obsErrCh <-chan error
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, ready.Load)
		metrics = obsServer.Metrics()

		obsErrCh, err = obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
	}

	credentials := authpg.NewCredentialStore(pool)
	directory := gamepg.NewDirectory(pool)

	tokens, err := auth.NewTokenManager(credentials)
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(credentials, tokens, auth.NewArgon2idHasher())
	if err != nil {
		return err
	}

	observers := []game.MembershipObserver{}
	if metrics != nil {
		observers = append(observers, metrics)
	}
	coordinator, err := game.NewCoordinator(credentials, directory, observers...)
	if err != nil {
		return err
	}

	apiServer, err := gateway.NewServer(cfg.HTTP.Addr, authSvc, coordinator, directory, metrics)
	if err != nil {
		return err
	}
	apiErrCh, err := apiServer.Start()
	if err != nil {
		return oops.Code("API_START_FAILED").Wrap(err)
	}

	ready.Store(true)
	slog.Info("cardroom server ready", "addr", apiServer.Addr())

	// Block until a signal or a server failure.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	case err = <-apiErrCh:
		if err != nil {
			slog.Error("api server failed", "error", err)
		}
	case err = <-obsErrCh:
		if err != nil {
			slog.Error("observability server failed", "error", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down", "reason", "context cancelled")
	}

	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if stopErr := apiServer.Stop(shutdownCtx); stopErr != nil {
		slog.Warn("error stopping api server", "error", stopErr)
	}
	if obsServer != nil {
		if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
			slog.Warn("error stopping observability server", "error", stopErr)
		}
	}

	return err
}
