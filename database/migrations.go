// Package database provides the schema migrations for the SQL document stores.
package database

import (
	"embed"
	"fmt"
	"path"

	"github.com/golang-migrate/migrate/v4"
	// registers the pgx5:// database driver
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// registers the sqlite3:// database driver
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// Dialect selects the migration set and the database driver
type Dialect string

const (
	// DialectSQLite is the embedded SQLite database
	DialectSQLite Dialect = "sqlite"

	// DialectPostgres is a PostgreSQL server
	DialectPostgres Dialect = "postgres"
)

// migrationsFromSource returns a migration source driver from the embedded migrations.
func migrationsFromSource(dialect Dialect) (source.Driver, error) {
	switch dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return iofs.New(migrationsFS, path.Join("migrations", string(dialect)))
}

// Migrator is the interface for the migration tooling.
type Migrator interface {
	Up() error
	Down() error
	Steps(int) error
	Version() (uint, bool, error)
	Close() (error, error)
}

// NewFromConnectionString returns a new migration instance for the given
// dialect. connString must use the scheme of the dialect's driver, see
// SQLiteURL and PostgresURL.
func NewFromConnectionString(dialect Dialect, connString string) (Migrator, error) {
	d, err := migrationsFromSource(dialect)
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}
