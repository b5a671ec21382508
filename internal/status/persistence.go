// Package status provides document save status events, sinks and their
// persistence across restarts.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go Persistence

const (
	// StatusFileName is the name of the status file
	StatusFileName = "status.json"
)

// Persistence defines the interface for document status persistence
type Persistence interface {
	// SaveStatus saves the status of a document to persistent storage
	SaveStatus(ctx context.Context, documentID string, status *DocumentStatus) error

	// LoadStatus loads the status of a document from persistent storage
	// Returns an empty DocumentStatus if nothing was saved yet
	LoadStatus(ctx context.Context, documentID string) (*DocumentStatus, error)

	// LoadAllStatus loads the status of all documents
	LoadAllStatus(ctx context.Context) (map[string]*DocumentStatus, error)
}

// fileStatusPersistence implements Persistence using local filesystem
type fileStatusPersistence struct {
	basePath string
}

// NewFilePersistence creates a new file-based status persistence
// basePath is the base directory where per-document status files will be stored
func NewFilePersistence(basePath string) Persistence {
	return &fileStatusPersistence{
		basePath: basePath,
	}
}

// documentDir escapes the document id so ids containing separators stay in basePath
func (f *fileStatusPersistence) documentDir(documentID string) string {
	return filepath.Join(f.basePath, url.PathEscape(documentID))
}

// SaveStatus saves the status to a JSON file in a document-specific directory
func (f *fileStatusPersistence) SaveStatus(_ context.Context, documentID string, status *DocumentStatus) error {
	dir := f.documentDir(documentID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create status directory for document '%s': %w", documentID, err)
	}

	filePath := filepath.Join(dir, StatusFileName)

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status data for document '%s': %w", documentID, err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file for document '%s': %w", documentID, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file for document '%s': %w", documentID, err)
	}

	return nil
}

// LoadStatus loads the status of a document from its JSON file
func (f *fileStatusPersistence) LoadStatus(_ context.Context, documentID string) (*DocumentStatus, error) {
	filePath := filepath.Join(f.documentDir(documentID), StatusFileName)

	// #nosec G304 -- filePath is basePath plus an escaped document id
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &DocumentStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file for document '%s': %w", documentID, err)
	}

	var status DocumentStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data for document '%s': %w", documentID, err)
	}

	return &status, nil
}

// LoadAllStatus loads the status of every document found under basePath
func (f *fileStatusPersistence) LoadAllStatus(ctx context.Context) (map[string]*DocumentStatus, error) {
	result := make(map[string]*DocumentStatus)

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read status directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		documentID, err := url.PathUnescape(entry.Name())
		if err != nil {
			slog.Warn("Skipping status directory with invalid name", "name", entry.Name())
			continue
		}
		status, err := f.LoadStatus(ctx, documentID)
		if err != nil {
			// Keep partial results if some documents fail to load
			slog.Warn("Failed to load document status", "document", documentID, "error", err)
			continue
		}

		result[documentID] = status
	}

	return result, nil
}
