package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	closed  bool
	now     func() time.Time
}

var _ ContentStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Load returns a copy of the stored record
func (m *MemoryStore) Load(ctx context.Context, documentID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	rec, ok := m.records[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	recCopy := *rec
	return &recCopy, nil
}

// Write creates or replaces the record of documentID
func (m *MemoryStore) Write(ctx context.Context, documentID, payload, contentType string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	rec := nextRecord(m.records[documentID], documentID, payload, contentType, m.now().UTC(), uuid.NewString)
	m.records[documentID] = rec
	recCopy := *rec
	return &recCopy, nil
}

// Close drops all records
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.records = nil
	return nil
}
