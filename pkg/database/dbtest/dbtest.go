// Package dbtest starts a throwaway Postgres for repository tests.
package dbtest

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/campus-events/backend/pkg/database"
)

var (
	once    sync.Once
	pool    *pgxpool.Pool
	initErr error
)

// Pool returns a migrated pool shared by every test in the process, with all
// tables truncated. It skips the test under -short or when Docker is unavailable.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}
	once.Do(start)
	if initErr != nil {
		if os.Getenv("CI") != "" {
			require.NoError(t, initErr)
		}
		t.Skipf("postgres unavailable: %v", initErr)
	}
	reset(t)
	return pool
}

func start() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("campus"),
		postgres.WithUsername("campus"),
		postgres.WithPassword("campus"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		initErr = err
		return
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		initErr = err
		return
	}
	p, err := database.NewPostgresPool(ctx, dsn, database.PoolOptions{MaxConns: 40}, nil)
	if err != nil {
		initErr = err
		return
	}
	if err := database.Migrate(ctx, p, nil); err != nil {
		p.Close()
		initErr = err
		return
	}
	pool = p
}

func reset(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := pool.Exec(ctx, `TRUNCATE email_logs, audit_logs, analytics_snapshots, registrations, events, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}
