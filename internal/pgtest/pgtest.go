// Package pgtest starts a disposable Postgres container with the schema
// migrated, for integration tests of the pgx stores.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmitrymomot/meterkit/internal/db"
	"github.com/dmitrymomot/meterkit/pkg/pg"
)

// Pool returns a pool connected to a fresh migrated database. The test is
// skipped under -short. The container is terminated on cleanup.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("meterkit_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := pg.Config{
		ConnectionString: dsn,
		MaxOpenConns:     50,
		MaxIdleConns:     1,
		RetryAttempts:    5,
		RetryInterval:    200 * time.Millisecond,
		MigrationsTable:  "meterkit_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, db.Migrations, db.MigrationsDir, cfg, nil))
	return pool
}
