package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/grain-editor/grain-shell/internal/binder"
	"github.com/grain-editor/grain-shell/internal/config"
	"github.com/grain-editor/grain-shell/internal/journal"
	"github.com/grain-editor/grain-shell/internal/save"
	"github.com/grain-editor/grain-shell/internal/status"
	"github.com/grain-editor/grain-shell/internal/store"
	"github.com/grain-editor/grain-shell/internal/telemetry"
)

// runtime holds the long-lived components shared by serve and watch
type runtime struct {
	telemetry   *telemetry.Telemetry
	contents    store.ContentStore
	board       *status.Board
	persistence status.Persistence
	registry    *binder.Registry
}

// newRuntime wires telemetry, the content store, the recovery journal, the
// status board and the binder registry from cfg
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	contents, err := store.New(ctx, &cfg.Storage,
		store.WithTracer(tel.Tracer(store.StoreTracerName)))
	if err != nil {
		shutdownTelemetry(tel)
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}

	rt := &runtime{
		telemetry:   tel,
		contents:    contents,
		board:       status.NewBoard(),
		persistence: status.NewFilePersistence(cfg.Storage.GetStatusDir()),
	}
	if err := rt.board.Restore(ctx, rt.persistence); err != nil {
		slog.Warn("Starting without previous document statuses", "error", err)
	}

	opts := []binder.Option{
		binder.WithSaveConfig(cfg.Save.CoordinatorConfig()),
		binder.WithBoard(rt.board),
		binder.WithSaveMetrics(tel.SaveMetrics()),
		binder.WithDocumentMetrics(tel.DocumentMetrics()),
		binder.WithTracer(tel.Tracer(save.TracerName)),
	}
	if cfg.Journal.IsEnabled() {
		j, err := journal.Open(cfg.Storage.GetJournalDir())
		if err != nil {
			rt.closeStore()
			shutdownTelemetry(tel)
			return nil, err
		}
		opts = append(opts, binder.WithJournal(j))
		slog.Debug("Recovery journal enabled", "path", j.Path())
	}

	rt.registry, err = binder.NewRegistry(contents, opts...)
	if err != nil {
		rt.closeStore()
		shutdownTelemetry(tel)
		return nil, fmt.Errorf("failed to create document registry: %w", err)
	}
	return rt, nil
}

// close flushes every open document, then releases the store and telemetry.
// Statuses are persisted after the flush so failed final writes stay visible.
func (rt *runtime) close(ctx context.Context) error {
	var errs []error
	if err := rt.registry.CloseAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close documents: %w", err))
	}
	if err := rt.board.Persist(ctx, rt.persistence); err != nil {
		errs = append(errs, err)
	}
	if err := rt.contents.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close content store: %w", err))
	}
	if err := rt.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (rt *runtime) closeStore() {
	if err := rt.contents.Close(); err != nil {
		slog.Error("Failed to close content store", "error", err)
	}
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	if err := tel.Shutdown(context.Background()); err != nil {
		slog.Error("Failed to shutdown telemetry", "error", err)
	}
}
