// Package journal keeps document payloads that could not be written when
// their editing surface closed, so a later run can replay them.
//
// The journal is a single append-only file of CBOR records. Writers and the
// replaying command may run in different processes; every access takes an
// advisory file lock next to the journal.
package journal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/grain-editor/grain-shell/internal/versions"
)

const (
	// FileName is the name of the journal file inside its directory
	FileName = "recovery.cbor"

	lockSuffix     = ".lock"
	lockRetryDelay = 50 * time.Millisecond
)

// Entry is one unsaved payload
type Entry struct {
	ID         string    `cbor:"1,keyasint"`
	DocumentID string    `cbor:"2,keyasint"`
	Payload    string    `cbor:"3,keyasint"`
	Reason     string    `cbor:"4,keyasint,omitempty"`
	RecordedAt time.Time `cbor:"5,keyasint"`
	AppVersion string    `cbor:"6,keyasint,omitempty"`
}

// Journal is the file-backed recovery journal
type Journal struct {
	path    string
	lock    *flock.Flock
	now     func() time.Time
	version string
}

// Open prepares the journal in dir, creating the directory if needed
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	path := filepath.Join(dir, FileName)
	return &Journal{
		path: path,
		lock:    flock.New(path + lockSuffix),
		now:     time.Now,
		version: versions.Current(),
	}, nil
}

// Path returns the journal file path
func (j *Journal) Path() string {
	return j.path
}

// RecordFailedFlush appends an entry for a payload whose final write failed
func (j *Journal) RecordFailedFlush(ctx context.Context, documentID, payload string, cause error) error {
	entry := Entry{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Payload:    payload,
		RecordedAt: j.now().UTC(),
		AppVersion: j.version,
	}
	if cause != nil {
		entry.Reason = cause.Error()
	}
	return j.Append(ctx, entry)
}

// Append writes entry to the end of the journal
func (j *Journal) Append(ctx context.Context, entry Entry) error {
	data, err := cbor.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}

	return j.withLock(ctx, func() error {
		f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to append journal entry: %w", err)
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to sync journal: %w", err)
		}
		return f.Close()
	})
}

// Entries returns every entry in the order it was recorded
func (j *Journal) Entries(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := j.withLock(ctx, func() error {
		var err error
		entries, err = j.readLocked()
		return err
	})
	return entries, err
}

// Replay hands each entry to apply in recording order and removes the
// entries that apply accepted. It returns how many entries were replayed.
// An apply error keeps the entry and replay continues with the next one.
func (j *Journal) Replay(ctx context.Context, apply func(ctx context.Context, e Entry) error) (int, error) {
	replayed := 0
	err := j.withLock(ctx, func() error {
		entries, err := j.readLocked()
		if err != nil {
			return err
		}

		var keep []Entry
		for _, e := range entries {
			if ctx.Err() != nil {
				keep = append(keep, e)
				continue
			}
			if versions.WrittenByNewer(e.AppVersion, j.version) {
				slog.Warn("Replaying journal entry written by a newer release",
					"entry", e.ID,
					"document", e.DocumentID,
					"recorded_by", e.AppVersion,
					"running", j.version)
			}
			if err := apply(ctx, e); err != nil {
				slog.Warn("Failed to replay journal entry",
					"entry", e.ID,
					"document", e.DocumentID,
					"error", err)
				keep = append(keep, e)
				continue
			}
			replayed++
		}
		return j.rewriteLocked(keep)
	})
	return replayed, err
}

// Remove drops the entries with the given ids
func (j *Journal) Remove(ctx context.Context, ids ...string) error {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	return j.withLock(ctx, func() error {
		entries, err := j.readLocked()
		if err != nil {
			return err
		}
		keep := entries[:0]
		for _, e := range entries {
			if _, ok := drop[e.ID]; !ok {
				keep = append(keep, e)
			}
		}
		return j.rewriteLocked(keep)
	})
}

func (j *Journal) withLock(ctx context.Context, fn func() error) error {
	locked, err := j.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock journal: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock journal: %w", ctx.Err())
	}
	defer func() {
		if err := j.lock.Unlock(); err != nil {
			slog.Warn("Failed to unlock journal", "error", err)
		}
	}()
	return fn()
}

func (j *Journal) readLocked() ([]Entry, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	var entries []Entry
	dec := cbor.NewDecoder(bytes.NewReader(data))
	for {
		var e Entry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// a crash while appending leaves a torn last record
			slog.Warn("Ignoring truncated journal tail", "path", j.path, "offset", dec.NumBytesRead())
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode journal entry: %w", err)
		}
		entries = append(entries, e)
	}
}

// rewriteLocked replaces the journal with entries, removing the file when empty
func (j *Journal) rewriteLocked(entries []Entry) error {
	if len(entries) == 0 {
		if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove journal: %w", err)
		}
		return nil
	}

	var buf bytes.Buffer
	enc := cbor.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode journal entry: %w", err)
		}
	}

	tempPath := j.path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write temporary journal: %w", err)
	}
	if err := os.Rename(tempPath, j.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to replace journal: %w", err)
	}
	return nil
}
