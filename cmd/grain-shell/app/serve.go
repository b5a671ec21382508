package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/grain-editor/grain-shell/internal/api"
	"github.com/grain-editor/grain-shell/internal/binder"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local API",
	Long: `Start the local API on a loopback address. Editing surfaces attach views to
documents, push content and request saves over HTTP, and follow the save
status of a document over a websocket.

On shutdown every open document is flushed before the process exits.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout  = 30 * time.Second
	serverReadHeaderTimeout = 5 * time.Second
	serverIdleTimeout       = 60 * time.Second
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	workspace := binder.NewWorkspace(rt.registry)

	middlewares := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Recoverer,
	}
	middlewares = append(middlewares, rt.telemetry.HTTPMiddleware()...)
	middlewares = append(middlewares, api.LoggingMiddleware)

	// no request timeout middleware: status streams stay open for as long as a view is attached
	opts := []api.ServerOption{
		api.WithMiddlewares(middlewares...),
		api.WithBoard(rt.board),
		api.WithWorkspace(workspace),
	}
	if h := rt.telemetry.MetricsHandler(); h != nil {
		opts = append(opts, api.WithMetricsHandler(h))
	}
	router := api.NewServer(rt.registry, rt.contents, opts...)

	address := cfg.Server.GetAddress()
	server := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: serverReadHeaderTimeout,
		IdleTimeout:       serverIdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down server...")
	case err := <-serveErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	// signal.NotifyContext is done by now, shutdown gets its own deadline
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := rt.close(shutdownCtx); err != nil {
		slog.Error("Shutdown left documents unsaved", "error", err)
		return errors.Join(runErr, err)
	}

	slog.Info("Server shutdown complete")
	return runErr
}
