// Package watch turns a file on disk into an editing surface. Every change
// an external editor writes to the file is handed to a view as a user edit.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Surface receives the content of the watched file
type Surface interface {
	// DocumentID returns the document the surface edits
	DocumentID() string

	// OnChange hands the new content to the document
	OnChange(payload string, isUserEdit bool) error
}

// FileSurface mirrors a single file into a Surface. The file is only read,
// never written.
type FileSurface struct {
	path    string
	surface Surface

	mu      sync.Mutex
	last    string
	hasLast bool

	watcherMu sync.Mutex
	watcher   *fsnotify.Watcher
}

// NewFileSurface creates a FileSurface for path
func NewFileSurface(path string, surface Surface) (*FileSurface, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return &FileSurface{path: abs, surface: surface}, nil
}

// Path returns the absolute path of the watched file
func (f *FileSurface) Path() string {
	return f.path
}

// Sync reads the file and forwards its content when it changed since the
// last read. It reports whether the content was forwarded.
func (f *FileSurface) Sync() (bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	payload := string(data)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hasLast && payload == f.last {
		return false, nil
	}
	if err := f.surface.OnChange(payload, true); err != nil {
		return false, err
	}
	f.last = payload
	f.hasLast = true

	slog.Debug("File change forwarded",
		"document", f.surface.DocumentID(),
		"path", f.path,
		"bytes", len(data))
	return true, nil
}

// Watch forwards every change of the file until ctx is done. The parent
// directory is watched so editors that replace the file by renaming a
// temporary file are followed.
func (f *FileSurface) Watch(ctx context.Context) error {
	f.watcherMu.Lock()
	if f.watcher != nil {
		f.watcherMu.Unlock()
		return fmt.Errorf("file watcher is already running")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.watcherMu.Unlock()
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	f.watcher = watcher
	f.watcherMu.Unlock()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", f.path, err)
	}

	if _, err := f.Sync(); err != nil {
		slog.Warn("Initial file sync failed", "path", f.path, "error", err)
	}
	slog.Info("Watching file", "document", f.surface.DocumentID(), "path", f.path)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping file watcher", "path", f.path)
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher event channel closed")
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				if _, err := f.Sync(); err != nil {
					// keep the last good content and wait for the next write
					slog.Warn("Ignoring file change", "path", f.path, "error", err)
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				slog.Debug("Watched file moved away", "path", f.path, "op", event.Op.String())
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// events were lost, the file may have changed
				if _, serr := f.Sync(); serr != nil {
					slog.Warn("Resync after overflow failed", "path", f.path, "error", serr)
				}
				continue
			}
			slog.Error("File watcher error", "path", f.path, "error", err)
		}
	}
}

// Close releases the file watcher
func (f *FileSurface) Close() error {
	f.watcherMu.Lock()
	defer f.watcherMu.Unlock()

	if f.watcher != nil {
		if err := f.watcher.Close(); err != nil {
			return fmt.Errorf("failed to close file watcher: %w", err)
		}
		f.watcher = nil
	}
	return nil
}
