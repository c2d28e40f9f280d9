package testdb

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/twosmallonions/recipes/backend/internal/database"
	"github.com/twosmallonions/recipes/backend/migrations"
	"go.uber.org/zap/zaptest"
)

// TestDB wraps a test database instance
type TestDB struct {
	*database.DB
	Container testcontainers.Container
}

// Close cleans up the test database
func (td *TestDB) Close() error {
	err := td.DB.Close()
	if td.Container != nil {
		if terr := testcontainers.TerminateContainer(td.Container); terr != nil && err == nil {
			err = terr
		}
	}
	return err
}

// SetupSQLite creates a private in-memory database with the schema applied.
func SetupSQLite(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	dsn := database.SQLitePrefix + "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := database.New(ctx, dsn, database.Options{Logger: logger})
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(ctx, db, migrations.FS, logger))

	return register(t, &TestDB{DB: db})
}

// SetupPostgres starts a throwaway PostgreSQL container and applies the SQL
// migrations. The test is skipped in -short mode or without docker.
func SetupPostgres(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("recipes"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		require.NoError(t, err)
	}

	db, err := database.New(ctx, dsn, database.Options{Logger: logger, MaxRetries: 5})
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		require.NoError(t, err)
	}
	testDB := register(t, &TestDB{DB: db, Container: container})

	require.NoError(t, database.RunMigrations(ctx, db, migrations.FS, logger))
	return testDB
}

func register(t *testing.T, td *TestDB) *TestDB {
	t.Cleanup(func() {
		if err := td.Close(); err != nil {
			t.Logf("Error cleaning up test database: %v", err)
		}
	})
	return td
}
