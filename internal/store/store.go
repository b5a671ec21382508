// Package store persists document content. Every backend offers the same
// create-or-update semantics: a write replaces the stored payload and bumps
// the record version, and writing the same payload twice is harmless.
package store

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -destination=mocks/mock_content_store.go -package=mocks -source=store.go ContentStore

// DefaultContentType is recorded when a document is created without a content type
const DefaultContentType = "text"

var (
	// ErrNotFound is returned by Load when no record exists for the document
	ErrNotFound = errors.New("document not found")

	// ErrLocked is returned when another process already owns the store
	ErrLocked = errors.New("store is locked by another process")

	// ErrClosed is returned by operations on a closed store
	ErrClosed = errors.New("store is closed")
)

// Record is the persisted content of a document
type Record struct {
	// ID identifies this record; it stays stable across writes
	ID string `yaml:"id" json:"id"`

	// DocumentID is the key the record is stored under
	DocumentID string `yaml:"documentId" json:"documentId"`

	// ContentType is the editor kind that produced the payload
	ContentType string `yaml:"contentType" json:"contentType"`

	// Payload is the opaque serialized document
	Payload string `yaml:"payload" json:"payload"`

	// Version starts at 1 and increments on every write
	Version int64 `yaml:"version" json:"version"`

	CreatedAt time.Time `yaml:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `yaml:"updatedAt" json:"updatedAt"`
}

// ContentStore is the persistent store keyed by document id
type ContentStore interface {
	// Load returns the stored record or ErrNotFound
	Load(ctx context.Context, documentID string) (*Record, error)

	// Write creates or replaces the record of documentID
	Write(ctx context.Context, documentID, payload, contentType string) (*Record, error)

	// Close releases the store. Further calls fail with ErrClosed.
	Close() error
}

// nextRecord builds the record that a write of payload produces on top of prev
func nextRecord(prev *Record, documentID, payload, contentType string, now time.Time, newID func() string) *Record {
	if prev == nil {
		if contentType == "" {
			contentType = DefaultContentType
		}
		return &Record{
			ID:          newID(),
			DocumentID:  documentID,
			ContentType: contentType,
			Payload:     payload,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	next := *prev
	next.Payload = payload
	if contentType != "" {
		next.ContentType = contentType
	}
	next.Version++
	next.UpdatedAt = now
	return &next
}
