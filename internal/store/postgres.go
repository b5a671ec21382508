package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/grain-editor/grain-shell/database"
	"github.com/grain-editor/grain-shell/internal/config"
	"github.com/grain-editor/grain-shell/internal/otel"
)

const (
	defaultMaxConns        = 10
	defaultConnMaxLifetime = 5 * time.Minute

	postgresLoadQuery = `
SELECT record_id::text, content_type, payload, version, created_at, updated_at
FROM documents WHERE document_id = $1`

	postgresUpsertQuery = `
INSERT INTO documents (document_id, record_id, content_type, payload, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, 1, $5, $5)
ON CONFLICT (document_id) DO UPDATE SET
    payload = EXCLUDED.payload,
    content_type = CASE WHEN $6 = '' THEN documents.content_type ELSE EXCLUDED.content_type END,
    version = documents.version + 1,
    updated_at = EXCLUDED.updated_at
RETURNING record_id::text, content_type, payload, version, created_at, updated_at`
)

// PostgresStore keeps documents in a PostgreSQL database
type PostgresStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	now    func() time.Time
	closed atomic.Bool
}

var _ ContentStore = (*PostgresStore)(nil)

// NewPostgresStore connects to the database described by cfg and applies pending migrations
func NewPostgresStore(ctx context.Context, cfg *config.DatabaseConfig, opts ...Option) (*PostgresStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	connString, err := cfg.GetConnectionString()
	if err != nil {
		return nil, fmt.Errorf("failed to get database password: %w", err)
	}

	if err := database.Run(database.DialectPostgres, migrationURL(connString)); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	poolCfg.MaxConns = defaultMaxConns
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = cfg.MaxOpenConns
	}
	poolCfg.MaxConnLifetime = defaultConnMaxLifetime
	if cfg.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid connection max lifetime: %w", err)
		}
		poolCfg.MaxConnLifetime = lifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connection established",
		"user", cfg.User,
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database)

	return NewPostgresStoreWithPool(pool, opts...), nil
}

// NewPostgresStoreWithPool wraps an existing pool. The store closes the pool on Close.
func NewPostgresStoreWithPool(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	o := newOptions(opts)
	return &PostgresStore{
		pool:   pool,
		tracer: o.tracer,
		now:    time.Now,
	}
}

// migrationURL turns a postgres:// connection string into the migrate driver scheme
func migrationURL(connString string) string {
	return "pgx5" + strings.TrimPrefix(connString, "postgres")
}

// Load reads the record of documentID
func (p *PostgresStore) Load(ctx context.Context, documentID string) (*Record, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	ctx, span := startSpan(ctx, p.tracer, dbSystemPostgres, "store.postgres.load", documentID)
	defer span.End()

	rec, err := scanPostgresRecord(documentID, p.pool.QueryRow(ctx, postgresLoadQuery, documentID))
	if errors.Is(err, pgx.ErrNoRows) {
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
func (p *PostgresStore) Write(ctx context.Context, documentID, payload, contentType string) (*Record, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	ctx, span := startSpan(ctx, p.tracer, dbSystemPostgres, "store.postgres.write", documentID)
	defer span.End()

	insertType := contentType
	if insertType == "" {
		insertType = DefaultContentType
	}

	row := p.pool.QueryRow(ctx, postgresUpsertQuery,
		documentID,
		uuid.New(),
		insertType,
		payload,
		p.now().UTC(),
		contentType,
	)
	rec, err := scanPostgresRecord(documentID, row)
	if err != nil {
		err = fmt.Errorf("failed to write document '%s': %w", documentID, err)
		otel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(otel.AttrRecordVer.Int64(rec.Version))
	return rec, nil
}

func scanPostgresRecord(documentID string, row pgx.Row) (*Record, error) {
	rec := Record{DocumentID: documentID}
	if err := row.Scan(&rec.ID, &rec.ContentType, &rec.Payload, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

// Close closes the connection pool
func (p *PostgresStore) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		slog.Info("Closing database connection")
		p.pool.Close()
	}
	return nil
}
