package binder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/grain-editor/grain-shell/internal/content"
	"github.com/grain-editor/grain-shell/internal/save"
)

// View is one editing surface attached to a document
type View struct {
	id       string
	entry    *entry
	registry *Registry

	unsubscribe func()
	unbindKeys  func()

	detachOnce sync.Once
	detached   chan struct{}
	detachRes  save.Result
}

// ID returns the view id
func (v *View) ID() string {
	return v.id
}

// DocumentID returns the document the view edits
func (v *View) DocumentID() string {
	return v.entry.documentID
}

// ContentType returns the content type of the document
func (v *View) ContentType() content.Type {
	return v.entry.contentType
}

// Coordinator returns the coordinator shared by all views of the document
func (v *View) Coordinator() *save.Coordinator {
	return v.entry.coord
}

// OnChange hands a new payload from the editing surface to the coordinator.
// Changes that did not come from the user, such as the surface loading its
// initial content, are ignored.
func (v *View) OnChange(payload string, isUserEdit bool) error {
	if v.isDetached() {
		return ErrViewDetached
	}
	if !isUserEdit {
		slog.Debug("Ignoring non-user change", "document", v.entry.documentID, "view", v.id)
		return nil
	}
	if err := v.registry.validator.Validate(v.entry.contentType, payload); err != nil {
		return fmt.Errorf("document '%s': %w", v.entry.documentID, err)
	}
	v.entry.coord.Update(payload)
	return nil
}

// SaveNow writes the document immediately
func (v *View) SaveNow(ctx context.Context) save.Result {
	if v.isDetached() {
		return save.Result{Outcome: save.OutcomeDisposed, Err: ErrViewDetached}
	}
	return v.entry.coord.SaveNow(ctx)
}

// Detach removes the view. The document is flushed; when this was its last
// view the coordinator is disposed. Later calls return the first result.
func (v *View) Detach(ctx context.Context) save.Result {
	v.detachOnce.Do(func() {
		v.unbindKeys()
		if v.unsubscribe != nil {
			v.unsubscribe()
		}
		v.detachRes = v.registry.release(ctx, v.entry, v.id, true)
		v.registry.docMetrics.ViewsChanged(ctx, -1)
		close(v.detached)

		slog.Debug("View detached",
			"document", v.entry.documentID,
			"view", v.id,
			"outcome", v.detachRes.Outcome)
	})
	<-v.detached
	return v.detachRes
}

func (v *View) isDetached() bool {
	select {
	case <-v.detached:
		return true
	default:
		return false
	}
}

// onSaveShortcut is bound to the save chords while the view is attached
func (v *View) onSaveShortcut(ctx context.Context) {
	res := v.SaveNow(ctx)
	if !res.OK() {
		slog.Warn("Manual save failed",
			"document", v.entry.documentID,
			"outcome", res.Outcome,
			"error", res.Err)
	}
}
