package binder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/grain-editor/grain-shell/internal/clock"
	"github.com/grain-editor/grain-shell/internal/content"
	"github.com/grain-editor/grain-shell/internal/keymap"
	"github.com/grain-editor/grain-shell/internal/save"
	"github.com/grain-editor/grain-shell/internal/status"
	"github.com/grain-editor/grain-shell/internal/store"
	"github.com/grain-editor/grain-shell/internal/telemetry"
	"github.com/grain-editor/grain-shell/internal/validators"
)

// parallelFlushLimit bounds the number of documents flushed at once by SaveAll and CloseAll
const parallelFlushLimit = 8

var (
	// ErrRegistryClosed is returned by Attach once CloseAll has started
	ErrRegistryClosed = errors.New("registry is closed")

	// ErrViewNotFound is returned when a view id is unknown
	ErrViewNotFound = errors.New("view not found")

	// ErrViewDetached is returned by View.OnChange after the view was detached
	ErrViewDetached = errors.New("view is detached")

	// ErrContentTypeMismatch is returned when a view declares a content type
	// that differs from the one stored for the document.
	ErrContentTypeMismatch = errors.New("content type mismatch")

	// ErrEmptyDocumentID is returned when Attach is called without a document id
	ErrEmptyDocumentID = errors.New("document id is required")

	// ErrInvalidDocumentID is returned when a document id cannot key a document
	ErrInvalidDocumentID = errors.New("invalid document id")
)

// entry is one open document and its coordinator
type entry struct {
	documentID  string
	contentType content.Type
	coord       *save.Coordinator
	fanout      *status.Fanout
	unboard     func()

	// guarded by Registry.mu
	refs  int
	views map[string]*View

	// ready is closed once the baseline is loaded; err is set before that on failure
	ready    chan struct{}
	err      error
	disposed chan struct{}
}

// DocumentInfo describes an open document
type DocumentInfo struct {
	ID          string                 `json:"id"`
	ContentType content.Type           `json:"contentType"`
	Views       int                    `json:"views"`
	State       save.State             `json:"state"`
	Unsaved     bool                   `json:"unsaved"`
	Status      *status.DocumentStatus `json:"status,omitempty"`
}

// Registry owns one coordinator per open document
type Registry struct {
	store       store.ContentStore
	saveCfg     save.Config
	clock       clock.Clock
	board       *status.Board
	journal     save.Journal
	validator   *content.Validator
	keymap      *keymap.Manager
	saveMetrics *telemetry.SaveMetrics
	docMetrics  *telemetry.DocumentMetrics
	tracer      trace.Tracer

	mu      sync.Mutex
	entries map[string]*entry
	closing map[string]chan struct{}
	views   map[string]*View
	closed  bool
}

// NewRegistry creates a Registry writing documents to s
func NewRegistry(s store.ContentStore, opts ...Option) (*Registry, error) {
	if s == nil {
		return nil, fmt.Errorf("content store is required")
	}

	r := &Registry{
		store:   s,
		saveCfg: save.DefaultConfig(),
		clock:   clock.Real(),
		entries: make(map[string]*entry),
		closing: make(map[string]chan struct{}),
		views:   make(map[string]*View),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.validator == nil {
		v, err := content.NewValidator()
		if err != nil {
			return nil, fmt.Errorf("failed to create content validator: %w", err)
		}
		r.validator = v
	}
	if r.keymap == nil {
		r.keymap = keymap.NewManager()
	}

	return r, nil
}

// Keymap returns the shortcut manager views bind their save chords on
func (r *Registry) Keymap() *keymap.Manager {
	return r.keymap
}

// Attach opens a view on documentID. The first view of a document loads its
// persisted content as the coordinator's baseline; later views share the
// same coordinator.
func (r *Registry) Attach(ctx context.Context, documentID string, opts ...AttachOption) (*View, error) {
	if documentID == "" {
		return nil, ErrEmptyDocumentID
	}
	if err := validators.ValidateDocumentID(documentID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocumentID, err)
	}

	o := &attachOptions{}
	for _, opt := range opts {
		opt(o)
	}

	e, created, err := r.acquire(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if created {
		if err := r.open(ctx, e, o.contentType); err != nil {
			r.mu.Lock()
			delete(r.entries, documentID)
			e.err = err
			r.mu.Unlock()
			close(e.ready)
			close(e.disposed)
			return nil, err
		}
		close(e.ready)
	} else {
		<-e.ready
		if e.err != nil {
			return nil, e.err
		}
	}

	if o.contentType != "" && o.contentType != e.contentType {
		r.release(ctx, e, "", false)
		return nil, fmt.Errorf("%w: document '%s' is %s, view declared %s",
			ErrContentTypeMismatch, documentID, e.contentType, o.contentType)
	}

	v := &View{
		id:       uuid.NewString(),
		entry:    e,
		registry: r,
		detached: make(chan struct{}),
	}
	if o.sink != nil {
		v.unsubscribe = e.fanout.Subscribe(o.sink)
	}
	unbind, err := r.keymap.Register(v.id, v.onSaveShortcut, keymap.SaveChords...)
	if err != nil {
		if v.unsubscribe != nil {
			v.unsubscribe()
		}
		r.release(ctx, e, "", false)
		return nil, fmt.Errorf("failed to bind save shortcut: %w", err)
	}
	v.unbindKeys = unbind

	r.mu.Lock()
	if r.closed {
		// CloseAll started while the baseline was loading and did not see this view
		r.mu.Unlock()
		unbind()
		if v.unsubscribe != nil {
			v.unsubscribe()
		}
		r.release(ctx, e, "", false)
		return nil, ErrRegistryClosed
	}
	e.views[v.id] = v
	r.views[v.id] = v
	r.mu.Unlock()

	r.docMetrics.ViewsChanged(ctx, 1)
	slog.Debug("View attached",
		"document", documentID,
		"view", v.id,
		"content_type", e.contentType)
	return v, nil
}

// acquire returns the entry for documentID with a reference taken. When it
// creates the entry the caller must open it and close ready.
func (r *Registry) acquire(ctx context.Context, documentID string) (*entry, bool, error) {
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, false, ErrRegistryClosed
		}
		if e, ok := r.entries[documentID]; ok {
			e.refs++
			r.mu.Unlock()
			return e, false, nil
		}
		if done, ok := r.closing[documentID]; ok {
			// the previous coordinator is still flushing
			r.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, false, ctx.Err()
			}
		}

		e := &entry{
			documentID: documentID,
			refs:       1,
			views:      make(map[string]*View),
			ready:      make(chan struct{}),
			disposed:   make(chan struct{}),
		}
		r.entries[documentID] = e
		r.mu.Unlock()
		return e, true, nil
	}
}

// open loads the baseline of a new entry and creates its coordinator
func (r *Registry) open(ctx context.Context, e *entry, declared content.Type) error {
	e.contentType = declared
	baseline, hasBaseline := "", false

	rec, err := r.store.Load(ctx, e.documentID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if e.contentType == "" {
			e.contentType = content.TypeText
		}
	case err != nil:
		return fmt.Errorf("failed to load document '%s': %w", e.documentID, err)
	default:
		stored, perr := content.ParseType(rec.ContentType)
		if perr != nil {
			return fmt.Errorf("document '%s': %w", e.documentID, perr)
		}
		if e.contentType == "" {
			e.contentType = stored
		}
		if e.contentType != stored {
			return fmt.Errorf("%w: document '%s' is %s, view declared %s",
				ErrContentTypeMismatch, e.documentID, stored, e.contentType)
		}
		baseline, hasBaseline = rec.Payload, true
	}

	e.fanout = status.NewFanout()
	if r.board != nil {
		e.unboard = e.fanout.Subscribe(r.board)
	}

	coordOpts := []save.Option{
		save.WithClock(r.clock),
		save.WithSink(e.fanout),
		save.WithSaveMetrics(r.saveMetrics),
		save.WithTracer(r.tracer),
	}
	if r.journal != nil {
		coordOpts = append(coordOpts, save.WithJournal(r.journal))
	}
	e.coord = save.New(e.documentID,
		&storeWriter{store: r.store, contentType: e.contentType},
		r.saveCfg,
		coordOpts...)
	if hasBaseline {
		e.coord.SetBaseline(baseline)
	}

	r.docMetrics.DocumentOpened(ctx, string(e.contentType))
	slog.Info("Document opened",
		"document", e.documentID,
		"content_type", e.contentType,
		"persisted", hasBaseline)
	return nil
}

// release drops one reference on e. While other references remain the
// document is flushed when flush is set; the last release disposes the
// coordinator.
func (r *Registry) release(ctx context.Context, e *entry, viewID string, flush bool) save.Result {
	r.mu.Lock()
	if viewID != "" {
		delete(e.views, viewID)
		delete(r.views, viewID)
	}
	e.refs--
	last := e.refs == 0
	if last {
		delete(r.entries, e.documentID)
		r.closing[e.documentID] = e.disposed
	}
	r.mu.Unlock()

	if !last {
		if !flush {
			return save.Result{Outcome: save.OutcomeClean}
		}
		return e.coord.SaveNow(ctx)
	}

	res := e.coord.Dispose(ctx)
	if e.unboard != nil {
		e.unboard()
	}
	if r.board != nil && res.OK() {
		r.board.Forget(e.documentID)
	}

	r.mu.Lock()
	if r.closing[e.documentID] == e.disposed {
		delete(r.closing, e.documentID)
	}
	r.mu.Unlock()
	close(e.disposed)

	r.docMetrics.DocumentClosed(ctx, string(e.contentType))
	if res.OK() {
		slog.Info("Document closed", "document", e.documentID, "outcome", res.Outcome)
	} else {
		slog.Error("Document closed with unsaved changes",
			"document", e.documentID,
			"outcome", res.Outcome,
			"error", res.Err)
	}
	return res
}

// Ready returns ErrRegistryClosed once CloseAll has started
func (r *Registry) Ready() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	return nil
}

// View returns the attached view with the given id
func (r *Registry) View(viewID string) (*View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[viewID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, viewID)
	}
	return v, nil
}

// Has reports whether documentID is open
func (r *Registry) Has(documentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[documentID]
	if !ok {
		return false
	}
	select {
	case <-e.ready:
		return e.err == nil
	default:
		return false
	}
}

// UnsavedDocuments returns the ids of open documents with unsaved changes, sorted
func (r *Registry) UnsavedDocuments() []string {
	var ids []string
	for _, e := range r.openEntries() {
		if e.coord.HasUnsavedChanges() {
			ids = append(ids, e.documentID)
		}
	}
	return ids
}

// Documents describes every open document, sorted by id
func (r *Registry) Documents() []DocumentInfo {
	entries := r.openEntries()
	infos := make([]DocumentInfo, 0, len(entries))
	for _, e := range entries {
		r.mu.Lock()
		views := len(e.views)
		r.mu.Unlock()

		info := DocumentInfo{
			ID:          e.documentID,
			ContentType: e.contentType,
			Views:       views,
			State:       e.coord.State(),
			Unsaved:     e.coord.HasUnsavedChanges(),
		}
		if r.board != nil {
			if st, ok := r.board.Get(e.documentID); ok {
				info.Status = &st
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// SaveAll saves every open document in parallel. Failed documents are
// reported in the returned error; the map holds every result.
func (r *Registry) SaveAll(ctx context.Context) (map[string]save.Result, error) {
	entries := r.openEntries()

	var mu sync.Mutex
	results := make(map[string]save.Result, len(entries))
	g := new(errgroup.Group)
	g.SetLimit(parallelFlushLimit)
	for _, e := range entries {
		g.Go(func() error {
			res := e.coord.SaveNow(ctx)
			mu.Lock()
			results[e.documentID] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results, resultsError(results)
}

// CloseAll stops accepting new views and detaches every attached view,
// flushing each document once more. It is safe to call more than once.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	byDocument := make(map[string][]*View)
	for _, v := range r.views {
		id := v.entry.documentID
		byDocument[id] = append(byDocument[id], v)
	}
	r.mu.Unlock()

	var mu sync.Mutex
	results := make(map[string]save.Result, len(byDocument))
	g := new(errgroup.Group)
	g.SetLimit(parallelFlushLimit)
	for id, views := range byDocument {
		g.Go(func() error {
			var res save.Result
			for _, v := range views {
				res = v.Detach(ctx)
			}
			mu.Lock()
			results[id] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Closed all documents", "count", len(results))
	return resultsError(results)
}

// openEntries returns the entries whose coordinator is ready, sorted by id
func (r *Registry) openEntries() []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := slices.Sorted(maps.Keys(r.entries))
	entries := make([]*entry, 0, len(ids))
	for _, id := range ids {
		e := r.entries[id]
		select {
		case <-e.ready:
			if e.err == nil {
				entries = append(entries, e)
			}
		default:
		}
	}
	return entries
}

func resultsError(results map[string]save.Result) error {
	var errs []error
	for _, id := range slices.Sorted(maps.Keys(results)) {
		res := results[id]
		if res.OK() {
			continue
		}
		err := res.Err
		if err == nil {
			err = errors.New(string(res.Outcome))
		}
		errs = append(errs, fmt.Errorf("document '%s': %w", id, err))
	}
	return errors.Join(errs...)
}
