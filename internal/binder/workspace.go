package binder

import (
	"context"
	"log/slog"
	"sync"

	"github.com/grain-editor/grain-shell/internal/save"
)

// Workspace holds the single active editing surface. Activating another
// document detaches the previous view first, which flushes it.
type Workspace struct {
	registry *Registry

	mu     sync.Mutex
	active *View
}

// NewWorkspace creates an empty Workspace on top of r
func NewWorkspace(r *Registry) *Workspace {
	return &Workspace{registry: r}
}

// Activate makes documentID the active document and returns its view. When
// documentID is already active the current view is returned unchanged.
func (w *Workspace) Activate(ctx context.Context, documentID string, opts ...AttachOption) (*View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.active != nil && w.active.DocumentID() == documentID && !w.active.isDetached() {
		return w.active, nil
	}

	if prev := w.active; prev != nil {
		w.active = nil
		if res := prev.Detach(ctx); !res.OK() {
			slog.Warn("Previous document left with unsaved changes",
				"document", prev.DocumentID(),
				"outcome", res.Outcome,
				"error", res.Err)
		}
	}

	v, err := w.registry.Attach(ctx, documentID, opts...)
	if err != nil {
		return nil, err
	}
	w.active = v
	slog.Info("Document activated", "document", documentID)
	return v, nil
}

// Active returns the active view, if any
func (w *Workspace) Active() (*View, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == nil || w.active.isDetached() {
		return nil, false
	}
	return w.active, true
}

// Deactivate detaches the active view
func (w *Workspace) Deactivate(ctx context.Context) save.Result {
	w.mu.Lock()
	prev := w.active
	w.active = nil
	w.mu.Unlock()

	if prev == nil {
		return save.Result{Outcome: save.OutcomeClean}
	}
	return prev.Detach(ctx)
}
