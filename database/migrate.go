package database

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
)

// SQLiteURL returns the migration connection string for the SQLite file at path
func SQLiteURL(path string) string {
	return "sqlite3://" + path
}

// PostgresURL returns the migration connection string for a PostgreSQL server
func PostgresURL(host string, port int, user, password, dbName, sslMode string) string {
	u := url.URL{
		Scheme: "pgx5",
		User:   url.UserPassword(user, password),
		Host:   host + ":" + strconv.Itoa(port),
		Path:   "/" + dbName,
	}
	if sslMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{sslMode}}.Encode()
	}
	return u.String()
}

// MigrateUp applies all pending migrations. An up to date schema is not an error.
func MigrateUp(m Migrator) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logVersion(m)
	return nil
}

// MigrateDown reverts the given number of migrations
func MigrateDown(m Migrator, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to revert migrations: %w", err)
	}
	logVersion(m)
	return nil
}

// Run opens a migrator for connString, applies every pending migration and closes it
func Run(dialect Dialect, connString string) error {
	m, err := NewFromConnectionString(dialect, connString)
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			slog.Warn("Failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()
	return MigrateUp(m)
}

func logVersion(m Migrator) {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		slog.Info("Database schema is empty")
	case err != nil:
		slog.Warn("Failed to read schema version", "error", err)
	default:
		slog.Info("Database schema version", "version", version, "dirty", dirty)
	}
}
