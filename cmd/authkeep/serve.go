// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/authkeep/authkeep/internal/auth"
	"github.com/authkeep/authkeep/internal/auth/postgres"
	"github.com/authkeep/authkeep/internal/config"
	"github.com/authkeep/authkeep/internal/httpapi"
	"github.com/authkeep/authkeep/internal/logging"
	"github.com/authkeep/authkeep/internal/observability"
	"github.com/authkeep/authkeep/internal/store"
	"github.com/authkeep/authkeep/internal/tls"
	"github.com/authkeep/authkeep/internal/xdg"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the credential API server",
		Long: `Run the HTTP API for registration, login and profile access, plus the
metrics and health endpoints.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = loadConfig
	}
	if deps.DatabaseFactory == nil {
		deps.DatabaseFactory = func(ctx context.Context, cfg store.PoolConfig, logger *slog.Logger) (Database, error) {
			return store.Connect(ctx, cfg, logger)
		}
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(url string) (AutoMigrator, error) {
			return store.NewMigrator(url)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, checker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, checker, observability.WithLogger(logger))
		}
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = httpapi.Listen
	}

	cfg, err := deps.ConfigLoader(cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault("authkeep", version, cfg.Log.Format, level, cmd.ErrOrStderr())

	logger.InfoContext(ctx, "starting authkeep",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"hash_algorithm", cfg.Hasher.Algorithm,
		"hasher_workers", cfg.Hasher.Workers)

	db, err := deps.DatabaseFactory(ctx, cfg.PoolConfig(), logger)
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := runAutoMigration(deps.MigratorFactory, cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	grp, ctx := errgroup.WithContext(ctx)

	var (
		obsServer   ObservabilityServer
		authMetrics *auth.Metrics
		apiOpts     = []httpapi.Option{
			httpapi.WithBodyLimit(cfg.HTTP.BodyLimit),
			httpapi.WithCORSOrigins(cfg.HTTP.CORSOrigins),
		}
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, store.ReadinessCheck(db), logger)
		authMetrics = auth.NewMetrics(obsServer.Registry())
		apiOpts = append(apiOpts, httpapi.WithMetrics(obsServer.Metrics()))

		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		defer stopObservability(obsServer, logger)
		grp.Go(func() error {
			return monitorServerErrors(ctx, obsErrCh, "observability")
		})
	}

	svc, err := newAuthService(cfg, db, logger, authMetrics)
	if err != nil {
		return err
	}

	tlsConfig, err := apiTLSConfig(cfg.HTTP.TLS, logger)
	if err != nil {
		return err
	}

	listener, err := deps.ListenerFactory(ctx, cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	api := httpapi.New(svc, logger, apiOpts...)
	api.Server.TLSConfig = tlsConfig
	httpapi.Serve(ctx, grp, api.Server, listener, httpapi.ShutdownTimeout)

	cmd.Println("Authkeep started")
	logger.InfoContext(ctx, "api server listening",
		"addr", listener.Addr().String(),
		"tls", tlsConfig != nil)

	if err := grp.Wait(); err != nil {
		return oops.Code("SERVER_FAILED").Wrap(err)
	}
	logger.Info("shutdown complete")
	return nil
}

// newAuthService builds the hasher pool, token service and auth service.
func newAuthService(cfg *config.Config, db Database, logger *slog.Logger, metrics *auth.Metrics) (*auth.Service, error) {
	hasher, err := auth.NewHasher(cfg.HashPolicy())
	if err != nil {
		return nil, err
	}
	pool := auth.NewPooledHasher(hasher, cfg.Hasher.Workers, auth.WithPoolMetrics(metrics))

	tokens, err := auth.NewTokenService(cfg.TokenConfig(), logger)
	if err != nil {
		return nil, err
	}

	logger.Info("credential service configured",
		"hash_algorithm", string(hasher.Policy().Algorithm),
		"hasher_workers", pool.Size(),
		"token_lifetime", tokens.Lifetime().String())

	return auth.NewService(postgres.NewUserRepository(db), pool, tokens,
		auth.WithLogger(logger),
		auth.WithMetrics(metrics))
}

// apiTLSConfig returns the HTTPS configuration for the API listener, or nil
// when TLS is disabled.
func apiTLSConfig(cfg config.TLSConfig, logger *slog.Logger) (*cryptotls.Config, error) {
	certFile, keyFile := cfg.CertFile, cfg.KeyFile
	if cfg.SelfSigned {
		certsDir := cfg.CertsDir
		if certsDir == "" {
			dir, err := xdg.CertsDir()
			if err != nil {
				return nil, oops.Code("TLS_SETUP_FAILED").With("operation", "resolve certs dir").Wrap(err)
			}
			certsDir = dir
		}
		var err error
		certFile, keyFile, err = tls.EnsureSelfSigned(certsDir, cfg.Hosts, logger)
		if err != nil {
			return nil, err
		}
	}
	if certFile == "" {
		return nil, nil
	}
	return tls.LoadServerTLS(certFile, keyFile)
}

// runAutoMigration applies pending migrations before the server accepts
// traffic.
func runAutoMigration(factory func(string) (AutoMigrator, error), databaseURL string, logger *slog.Logger) error {
	migrator, err := factory(databaseURL)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	logger.Info("applying database migrations")
	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	return nil
}

// monitorServerErrors returns the first error a background server reports,
// which cancels the group. It returns nil once ctx is done or the channel
// closes.
func monitorServerErrors(ctx context.Context, errCh <-chan error, serverName string) error {
	select {
	case err, ok := <-errCh:
		if !ok || err == nil {
			return nil
		}
		slog.Error("server error, triggering shutdown",
			"server", serverName,
			"error", err)
		return oops.With("server", serverName).Wrap(err)
	case <-ctx.Done():
		return nil
	}
}

func stopObservability(srv ObservabilityServer, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// Compile-time checks that the defaults satisfy the injectable interfaces.
var (
	_ ObservabilityServer = (*observability.Server)(nil)
	_ AutoMigrator        = (*store.Migrator)(nil)
)
