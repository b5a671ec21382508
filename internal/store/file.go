package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	// recordFileSuffix is appended to the escaped document id
	recordFileSuffix = ".yaml"

	// LockFileName is the advisory lock taken by the process owning a data directory
	LockFileName = ".grain.lock"
)

// FileStore keeps one YAML file per document in a directory. A single
// process may own the directory at a time.
type FileStore struct {
	dir  string
	lock *flock.Flock
	now  func() time.Time

	mu     sync.RWMutex
	closed bool
}

var _ ContentStore = (*FileStore)(nil)

// NewFileStore opens dir, creating it if needed, and takes its lock
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create document directory: %w", err)
	}

	lock, err := acquireLock(filepath.Join(dir, LockFileName))
	if err != nil {
		return nil, err
	}

	slog.Info("File store opened", "path", dir)
	return &FileStore{
		dir:  dir,
		lock: lock,
		now:  time.Now,
	}, nil
}

// acquireLock takes the exclusive lock at path without waiting
func acquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return lock, nil
}

// recordPath escapes the document id so ids containing separators stay in dir
func (f *FileStore) recordPath(documentID string) string {
	return filepath.Join(f.dir, url.PathEscape(documentID)+recordFileSuffix)
}

// Load reads the record of documentID
func (f *FileStore) Load(ctx context.Context, documentID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}
	return f.readLocked(documentID)
}

func (f *FileStore) readLocked(documentID string) (*Record, error) {
	data, err := os.ReadFile(f.recordPath(documentID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read document '%s': %w", documentID, err)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse document '%s': %w", documentID, err)
	}
	return &rec, nil
}

// Write replaces the record of documentID using a temporary file and an atomic rename
func (f *FileStore) Write(ctx context.Context, documentID, payload, contentType string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	prev, err := f.readLocked(documentID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	rec := nextRecord(prev, documentID, payload, contentType, f.now().UTC(), uuid.NewString)

	data, err := yaml.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document '%s': %w", documentID, err)
	}

	path := f.recordPath(documentID)
	tempFile, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempPath := tempFile.Name()
	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("failed to write document '%s': %w", documentID, err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("failed to sync document '%s': %w", documentID, err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("failed to replace document '%s': %w", documentID, err)
	}

	slog.Debug("Document file written", "document", documentID, "version", rec.Version)
	return rec, nil
}

// Close releases the directory lock
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if err := f.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to release store lock: %w", err)
	}
	return nil
}
