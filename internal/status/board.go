package status

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
)

// subscriberBuffer is the number of events a slow stream subscriber may lag behind
const subscriberBuffer = 32

// Board records the latest status of every document it is notified about and
// streams events to per-document subscribers.
type Board struct {
	mu       sync.RWMutex
	statuses map[string]DocumentStatus
	watchers map[string]map[uint64]chan Event
	next     uint64
}

// NewBoard creates an empty Board
func NewBoard() *Board {
	return &Board{
		statuses: make(map[string]DocumentStatus),
		watchers: make(map[string]map[uint64]chan Event),
	}
}

// Notify implements Sink
func (b *Board) Notify(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.statuses[ev.DocumentID]
	st.Kind = ev.Kind
	st.Reason = ev.Reason
	st.UpdatedAt = ev.At
	switch ev.Kind {
	case KindSaved:
		at := ev.At
		st.LastSavedAt = &at
		st.FailureCount = 0
	case KindError:
		st.FailureCount++
	case KindUnsaved, KindSaving:
		st.Reason = ""
	}
	b.statuses[ev.DocumentID] = st

	for _, ch := range b.watchers[ev.DocumentID] {
		select {
		case ch <- ev:
		default:
			slog.Warn("Dropping status event for slow subscriber",
				"document", ev.DocumentID,
				"kind", ev.Kind)
		}
	}
}

// Get returns the latest status of a document
func (b *Board) Get(documentID string) (DocumentStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.statuses[documentID]
	return st, ok
}

// Snapshot returns a copy of every known status keyed by document id
func (b *Board) Snapshot() map[string]DocumentStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.statuses)
}

// Forget drops the status of a document and closes its subscriptions
func (b *Board) Forget(documentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.statuses, documentID)
	for id, ch := range b.watchers[documentID] {
		close(ch)
		delete(b.watchers[documentID], id)
	}
	delete(b.watchers, documentID)
}

// Subscribe streams future events of a document. The returned function
// closes the channel and must be called once the caller stops reading.
func (b *Board) Subscribe(documentID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	id := b.next
	ch := make(chan Event, subscriberBuffer)
	if b.watchers[documentID] == nil {
		b.watchers[documentID] = make(map[uint64]chan Event)
	}
	b.watchers[documentID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if w, ok := b.watchers[documentID][id]; ok {
				close(w)
				delete(b.watchers[documentID], id)
			}
		})
	}
}

// Persist saves every known status through p
func (b *Board) Persist(ctx context.Context, p Persistence) error {
	for documentID, st := range b.Snapshot() {
		if err := p.SaveStatus(ctx, documentID, &st); err != nil {
			return fmt.Errorf("failed to persist status for document '%s': %w", documentID, err)
		}
	}
	return nil
}

// Restore loads previously persisted statuses. Statuses already on the
// board are kept.
func (b *Board) Restore(ctx context.Context, p Persistence) error {
	all, err := p.LoadAllStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore document statuses: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for documentID, st := range all {
		if _, ok := b.statuses[documentID]; !ok {
			b.statuses[documentID] = *st
		}
	}
	return nil
}
