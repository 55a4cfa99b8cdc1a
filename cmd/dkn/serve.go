package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghuser/dkn/pkg/app"
	"github.com/ghuser/dkn/pkg/httpx"
	"github.com/ghuser/dkn/pkg/migrator"
	"github.com/ghuser/dkn/pkg/telemetry"
	"github.com/ghuser/dkn/services"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Create missing tables and serve HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts.env)
		},
	}
}

func serve(ctx context.Context, env string) error {
	a, err := app.New(ctx, app.Options{Environment: env, RouteGroups: services.RouteGroups()})
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer a.Close() //nolint:errcheck
	log := a.Logger

	a.Telemetry.SetGlobal()

	// Crash reporting: Sentry (optional, log and continue on failure)
	if err := telemetry.SetupSentry(a.Config); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	if err := migrator.CreateAll(ctx, a.Db); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if err := services.StartSubscribers(ctx, a); err != nil {
		return fmt.Errorf("start subscribers: %w", err)
	}

	srv := httpx.NewServer(a.Config.ListenAddr, a)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "env", a.Config.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
