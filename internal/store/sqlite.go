package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	// registers the sqlite3 database/sql driver
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/trace"

	"github.com/grain-editor/grain-shell/database"
	"github.com/grain-editor/grain-shell/internal/otel"
)

const (
	sqliteBusyTimeout = 5 * time.Second

	sqliteLoadQuery = `
SELECT record_id, content_type, payload, version, created_at, updated_at
FROM documents WHERE document_id = ?`

	sqliteUpsertQuery = `
INSERT INTO documents (document_id, record_id, content_type, payload, version, created_at, updated_at)
VALUES (?1, ?2, ?3, ?4, 1, ?5, ?5)
ON CONFLICT(document_id) DO UPDATE SET
    payload = excluded.payload,
    content_type = CASE WHEN ?6 = '' THEN documents.content_type ELSE excluded.content_type END,
    version = documents.version + 1,
    updated_at = excluded.updated_at
RETURNING record_id, content_type, payload, version, created_at, updated_at`
)

// SQLiteStore keeps documents in an embedded SQLite database owned by one process
type SQLiteStore struct {
	path   string
	db     *sql.DB
	lock   *flock.Flock
	tracer trace.Tracer
	now    func() time.Time

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ ContentStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path, applying pending migrations
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := newOptions(opts)

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	lock, err := acquireLock(path + ".lock")
	if err != nil {
		return nil, err
	}

	if err := database.Run(database.DialectSQLite, database.SQLiteURL(path)); err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", path, sqliteBusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; SQLite serializes writes anyway
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Failed to close database after ping failure", "error", closeErr)
		}
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("SQLite store opened", "path", path)
	return &SQLiteStore{
		path:   path,
		db:     db,
		lock:   lock,
		tracer: o.tracer,
		now:    time.Now,
	}, nil
}

// Load reads the record of documentID
func (s *SQLiteStore) Load(ctx context.Context, documentID string) (*Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	ctx, span := startSpan(ctx, s.tracer, dbSystemSQLite, "store.sqlite.load", documentID)
	defer span.End()

	rec, err := scanSQLiteRecord(documentID, s.db.QueryRowContext(ctx, sqliteLoadQuery, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		err = fmt.Errorf("failed to load document '%s': %w", documentID, err)
		otel.RecordError(span, err)
		return nil, err
	}
	return rec, nil
}

// Write creates or replaces the record of documentID
func (s *SQLiteStore) Write(ctx context.Context, documentID, payload, contentType string) (*Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	ctx, span := startSpan(ctx, s.tracer, dbSystemSQLite, "store.sqlite.write", documentID)
	defer span.End()

	insertType := contentType
	if insertType == "" {
		insertType = DefaultContentType
	}

	row := s.db.QueryRowContext(ctx, sqliteUpsertQuery,
		documentID,
		uuid.NewString(),
		insertType,
		payload,
		s.now().UTC().UnixMilli(),
		contentType,
	)
	rec, err := scanSQLiteRecord(documentID, row)
	if err != nil {
		err = fmt.Errorf("failed to write document '%s': %w", documentID, err)
		otel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(otel.AttrRecordVer.Int64(rec.Version))
	return rec, nil
}

func scanSQLiteRecord(documentID string, row *sql.Row) (*Record, error) {
	var (
		rec                  = Record{DocumentID: documentID}
		createdAt, updatedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.ContentType, &rec.Payload, &rec.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &rec, nil
}

// Close closes the database and releases its lock
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		slog.Info("Closing SQLite store", "path", s.path)
		dbErr := s.db.Close()
		lockErr := s.lock.Unlock()
		s.closeErr = errors.Join(dbErr, lockErr)
	})
	return s.closeErr
}
