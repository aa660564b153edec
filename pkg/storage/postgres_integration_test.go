package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestPostgresMigrations runs the schema against a real postgres to catch
// DDL that sqlite happens to accept. Needs Docker; enable with
// TASKHIVE_INTEGRATION=1.
func TestPostgresMigrations(t *testing.T) {
	if os.Getenv("TASKHIVE_INTEGRATION") == "" {
		t.Skip("set TASKHIVE_INTEGRATION=1 to run container-backed tests")
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("taskhive"),
		tcpostgres.WithUsername("taskhive"),
		tcpostgres.WithPassword("taskhive"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if ctr == nil {
			return
		}
		if err := ctr.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, Config{
		Driver:       DriverPostgres,
		PostgresURL:  connStr,
		MaxOpenConns: 5,
	})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	// The upsert dialect the stores rely on has to work here too.
	upsert := `
		INSERT INTO permissions (id, name, resource, action, created_at)
		VALUES ($1, 'tasks:read', 'tasks', 'read', $2)
		ON CONFLICT (name) DO NOTHING
	`
	now := time.Now().UTC()
	_, err = db.ExecContext(ctx, upsert, "p1", now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, upsert, "p2", now)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM permissions WHERE name = 'tasks:read'`).Scan(&count))
	assert.Equal(t, 1, count)
}
