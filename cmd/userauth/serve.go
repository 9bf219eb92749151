// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/userauth/internal/auth"
	"github.com/holomush/userauth/internal/auth/memory"
	"github.com/holomush/userauth/internal/auth/postgres"
	"github.com/holomush/userauth/internal/authn"
	"github.com/holomush/userauth/internal/config"
	"github.com/holomush/userauth/internal/logging"
	"github.com/holomush/userauth/internal/store"
	"github.com/holomush/userauth/internal/web"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API together with the metrics/health endpoints and the
gRPC health service. Configuration is read from defaults, the config file,
then flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err //nolint:wrapcheck // config errors are already coded
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps runs the service until a signal arrives, ctx is
// cancelled or a server fails. If deps is nil, default implementations
// are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	logger := logging.SetDefault(logging.Options{
		Service:    "userauth",
		Version:    version,
		Format:     cfg.Log.Format,
		Level:      cfg.Log.Level,
		RedactKeys: cfg.Log.RedactKeys,
	})

	logger.Info("starting userauth",
		"http_addr", cfg.HTTP.Addr,
		"store", cfg.Store.Driver,
		"auth_mode", cfg.Auth.Mode)

	backend, err := deps.BackendOpener(ctx, cfg)
	if err != nil {
		return oops.With("operation", "open user store").Wrap(err)
	}
	defer backend.Close()

	svc, err := auth.NewServiceWithLogger(backend.Users, backend.Tx,
		auth.NewArgon2idHasher(), auth.NewRandomTokenGenerator(), logger)
	if err != nil {
		return oops.With("operation", "create service").Wrap(err)
	}

	mode, err := authn.ParseMode(cfg.Auth.Mode)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	excluded, err := authn.NewExcludedPaths(cfg.Auth.ExcludedPaths)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	dispatcher, err := authn.NewDispatcher(mode,
		authn.NewBasicAuth(svc),
		authn.NewSessionAuth(svc, cfg.Auth.SessionCookie))
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), shutdownTimeout)
	}

	// Observability first, so its metrics can feed the API.
	var obsServer ObservabilityServer
	webCfg := web.Config{
		Service:       svc,
		SessionCookie: cfg.Auth.SessionCookie,
		Logger:        logger,
	}
	mwCfg := authn.MiddlewareConfig{
		Dispatcher: dispatcher,
		Excluded:   excluded,
		Logger:     logger,
	}
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, backend.Ready)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		defer func() {
			sctx, scancel := shutdownCtx()
			defer scancel()
			if err := obsServer.Stop(sctx); err != nil {
				slog.Warn("error stopping observability server", "error", err)
			}
		}()
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")

		if m := obsServer.Metrics(); m != nil {
			webCfg.Recorder = m
			mwCfg.Observer = m
		}
	}
	webCfg.Middleware = authn.Middleware(mwCfg)

	handler, err := web.NewHandler(webCfg)
	if err != nil {
		return oops.With("operation", "create handler").Wrap(err)
	}

	apiServer := deps.APIServerFactory(cfg.HTTP.Addr, handler)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		return oops.With("operation", "start api server").Wrap(err)
	}
	defer func() {
		sctx, scancel := shutdownCtx()
		defer scancel()
		if err := apiServer.Stop(sctx); err != nil {
			slog.Warn("error stopping api server", "error", err)
		}
	}()
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	var controlServer ControlServer
	if cfg.Control.Addr != "" {
		controlServer = deps.ControlServerFactory()
		controlErrCh, err := controlServer.Start(cfg.Control.Addr)
		if err != nil {
			return oops.With("operation", "start control server").Wrap(err)
		}
		defer func() {
			sctx, scancel := shutdownCtx()
			defer scancel()
			if err := controlServer.Stop(sctx); err != nil {
				slog.Warn("error stopping control server", "error", err)
			}
		}()
		go monitorServerErrors(ctx, cancel, controlErrCh, "control")
		controlServer.SetServing(true)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("userauth started on " + apiServer.Addr())
	logger.Info("userauth ready", "http_addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	if controlServer != nil {
		controlServer.SetServing(false)
	}
	slog.Info("shutting down...")
	return nil
}

// openBackend opens the configured user store. For PostgreSQL it waits
// for the database with backoff and optionally applies migrations.
func openBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	if cfg.Store.Driver == config.DriverMemory {
		m := memory.New()
		return &Backend{
			Users: m,
			Tx:    m,
			Ready: func(context.Context) bool { return true },
			Close: func() {},
		}, nil
	}

	backoff, err := cfg.Store.Backoff()
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	pool, err := store.Connect(ctx, store.ConnectConfig{
		URL:      cfg.Store.DatabaseURL,
		Attempts: cfg.Store.ConnectAttempts,
		Backoff:  backoff,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	slog.Info("connected to database")

	if cfg.Store.AutoMigrate {
		if err := autoMigrate(cfg.Store.DatabaseURL, newMigrator); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &Backend{
		Users: postgres.NewUserStore(pool),
		Tx:    postgres.NewTransactor(pool),
		Ready: func(ctx context.Context) bool { return pool.Ping(ctx) == nil },
		Close: pool.Close,
	}, nil
}

// monitorServerErrors cancels ctx when a server reports a failure. It
// exits when an error arrives, the channel closes or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
