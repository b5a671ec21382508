// Package api provides the local HTTP API of grain-shell.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/grain-editor/grain-shell/internal/api/system"
	v1 "github.com/grain-editor/grain-shell/internal/api/v1"
	"github.com/grain-editor/grain-shell/internal/binder"
	"github.com/grain-editor/grain-shell/internal/status"
	"github.com/grain-editor/grain-shell/internal/store"
)

// ServerOption configures the API server
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
	routes      []v1.Option
	metrics     http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithBoard exposes document statuses and their event streams
func WithBoard(b *status.Board) ServerOption {
	return func(cfg *serverConfig) {
		cfg.routes = append(cfg.routes, v1.WithBoard(b))
	}
}

// WithWorkspace exposes the active document of w
func WithWorkspace(w *binder.Workspace) ServerOption {
	return func(cfg *serverConfig) {
		cfg.routes = append(cfg.routes, v1.WithWorkspace(w))
	}
}

// WithMetricsHandler serves h at /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metrics = h
	}
}

// NewServer creates the HTTP router serving registry and contents
func NewServer(registry *binder.Registry, contents store.ContentStore, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	if cfg.metrics != nil {
		r.Handle("/metrics", cfg.metrics)
	}
	r.Mount("/", system.Router(registry.Ready))
	r.Mount("/api/v1", v1.Router(registry, contents, cfg.routes...))

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
