// Package pending holds the latest unsaved content of a document.
package pending

import "sync"

// Buffer keeps at most one payload per document. Update always replaces the
// held payload; nothing is queued.
type Buffer struct {
	documentID string

	mu      sync.Mutex
	payload string
	dirty   bool
}

// NewBuffer creates an empty, clean buffer for a document
func NewBuffer(documentID string) *Buffer {
	return &Buffer{documentID: documentID}
}

// DocumentID returns the document the buffer belongs to
func (b *Buffer) DocumentID() string {
	return b.documentID
}

// Update stores payload and marks the buffer dirty
func (b *Buffer) Update(payload string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payload = payload
	b.dirty = true
}

// Peek returns the held payload and whether it still needs writing
func (b *Buffer) Peek() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.payload, b.dirty
}

// Dirty reports whether the held payload still needs writing
func (b *Buffer) Dirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty
}

// MarkClean clears the dirty flag only if the held payload is still
// confirmed. It returns whether the buffer is clean afterwards.
func (b *Buffer) MarkClean(confirmed string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.payload == confirmed {
		b.dirty = false
	}
	return !b.dirty
}

// Pending returns the payload waiting to be written, if any
func (b *Buffer) Pending() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty {
		return "", false
	}
	return b.payload, true
}
