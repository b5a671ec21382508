package binder

import (
	"context"
	"log/slog"

	"github.com/grain-editor/grain-shell/internal/content"
	"github.com/grain-editor/grain-shell/internal/save"
	"github.com/grain-editor/grain-shell/internal/store"
)

// storeWriter adapts a ContentStore to the coordinator's Store
type storeWriter struct {
	store       store.ContentStore
	contentType content.Type
}

var _ save.Store = (*storeWriter)(nil)

// Write implements save.Store
func (w *storeWriter) Write(ctx context.Context, documentID, payload string) error {
	rec, err := w.store.Write(ctx, documentID, payload, string(w.contentType))
	if err != nil {
		return err
	}
	slog.Debug("Document stored", "document", documentID, "version", rec.Version)
	return nil
}
