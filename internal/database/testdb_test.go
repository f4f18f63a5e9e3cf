package database

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// testDatabaseURL returns the Postgres DSN used by this package's tests,
// skipping the test when none is configured. Unlike the teacher's
// file-backed SQLite databases, a Postgres pool needs a live server to
// connect to; TEST_DATABASE_URL lets these tests run against a local
// docker-compose Postgres in CI while staying a no-op (not a failure) in
// any environment without one configured, so the suite never makes an
// unexpected network call on its own.
func testDatabaseURL(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres-backed test")
	}
	return dsn
}

// dropAllTestTables truncates every table this package's migrations create,
// so each test starts from a clean slate against a shared database/server
// instead of requiring a fresh database per test.
func dropAllTestTables(t *testing.T, dsn string) {
	t.Helper()
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect for cleanup: %v", err)
	}
	defer pool.Close()

	for _, table := range []string{"outcomes", "signals", "positions", "windows", "auto_stop_state", "strategies", "schema_migrations"} {
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)); err != nil {
			t.Fatalf("failed to drop table %s: %v", table, err)
		}
	}
}
