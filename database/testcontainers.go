package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type nopLogger struct{}

func (*nopLogger) Printf(_ string, _ ...any) {}

var _ tclog.Logger = (*nopLogger)(nil)

var (
	dbName = "testdb"
	dbUser = "testuser"
	dbPass = "testpass"
)

// SetupTestDBContainer starts a Postgres container and returns a migration
// connection string for it together with a cleanup function. The schema is
// left empty.
func SetupTestDBContainer(t *testing.T) (string, func()) {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPass),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(&nopLogger{}),
	)
	require.NoError(t, err)

	host, err := postgresContainer.Host(ctx)
	require.NoError(t, err)
	port, err := postgresContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	connString := PostgresURL(host, port.Int(), dbUser, dbPass, dbName, "disable")

	cleanupFunc := func() {
		tc.CleanupContainer(t, postgresContainer)
	}

	return connString, cleanupFunc
}

// SetupTestDB starts a Postgres container with the schema applied and returns
// a pgx connection string for it.
func SetupTestDB(t *testing.T) (string, func()) {
	t.Helper()

	connString, cleanup := SetupTestDBContainer(t)
	if err := Run(DialectPostgres, connString); err != nil {
		cleanup()
		require.NoError(t, err)
	}

	return "postgres" + connString[len("pgx5"):], cleanup
}
