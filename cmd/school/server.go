package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"minimalapi/school/internal/bootstrap"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the school HTTP API server",
	Long: `Start the school HTTP server on the configured port (default :8080).

The server bootstraps its dependencies before listening and refuses to
start when the database cannot be prepared. It shuts down cleanly on
SIGTERM or SIGINT.`,
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer app.Close(context.Background())

	if err := startupBootstrap(ctx); err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("school server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped cleanly")
	return nil
}

// startupBootstrap runs the bootstrap once before the listener opens. A
// degraded result is logged and tolerated; a failed database phase is not.
func startupBootstrap(ctx context.Context) error {
	bctx, cancel := context.WithTimeout(ctx, cfg.Bootstrap.Timeout)
	defer cancel()

	result, err := app.bootstrapper.Run(bctx)
	if err != nil {
		return fmt.Errorf("startup bootstrap: %w", err)
	}
	if result.Status == bootstrap.StatusError {
		phase := result.Phases[bootstrap.PhaseDatabase]
		return fmt.Errorf("startup bootstrap failed: database: %s", phase.Error)
	}
	return nil
}
