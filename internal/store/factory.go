package store

import (
	"context"
	"fmt"

	"github.com/grain-editor/grain-shell/internal/config"
)

// New creates the ContentStore selected by the storage configuration
func New(ctx context.Context, cfg *config.StorageConfig, opts ...Option) (ContentStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage configuration is required")
	}

	switch cfg.GetType() {
	case config.StorageTypeMemory:
		return NewMemoryStore(), nil
	case config.StorageTypeFile:
		s, err := NewFileStore(cfg.GetDocumentsDir())
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageTypeSQLite:
		s, err := NewSQLiteStore(ctx, cfg.GetSQLitePath(), opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageTypeDatabase:
		s, err := NewPostgresStore(ctx, cfg.Database, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type '%s'", cfg.Type)
	}
}
