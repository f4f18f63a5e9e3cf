package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := testDatabaseURL(t)
	dropAllTestTables(t, dsn)

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func writeMigration(t *testing.T, dir, filename, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(body), 0644))
}

func TestRunMigrations_AppliesInOrderAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001-create-foo.sql", `CREATE TABLE foo (id INTEGER PRIMARY KEY);`)
	writeMigration(t, dir, "002-create-bar.sql", `CREATE TABLE bar (id INTEGER PRIMARY KEY);`)

	pool := openTestPool(t)
	ctx := context.Background()
	require.NoError(t, runMigrations(ctx, pool, dir))
	require.NoError(t, runMigrations(ctx, pool, dir)) // idempotent re-run

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 2, count)

	_, err := pool.Exec(ctx, `INSERT INTO foo (id) VALUES (1)`)
	assert.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO bar (id) VALUES (1)`)
	assert.NoError(t, err)

	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DROP TABLE IF EXISTS foo, bar CASCADE`)
	})
}

func TestRunMigrations_RejectsDuplicateVersion(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001-first.sql", `CREATE TABLE a (id INTEGER);`)
	writeMigration(t, dir, "001-second.sql", `CREATE TABLE b (id INTEGER);`)

	pool := openTestPool(t)
	err := runMigrations(context.Background(), pool, dir)
	require.Error(t, err)
}

func TestPreflight_ReportsPendingAndExtra(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001-create-foo.sql", `CREATE TABLE foo (id INTEGER PRIMARY KEY);`)

	pool := openTestPool(t)
	ctx := context.Background()
	require.NoError(t, runMigrations(ctx, pool, dir))
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DROP TABLE IF EXISTS foo CASCADE`)
	})

	// A migration that was applied but whose file is later removed.
	_, err := pool.Exec(ctx, `INSERT INTO schema_migrations (version, name, applied_at) VALUES (2, 'removed', 0)`)
	require.NoError(t, err)

	writeMigration(t, dir, "003-create-baz.sql", `CREATE TABLE baz (id INTEGER PRIMARY KEY);`)

	report, err := Preflight(ctx, pool, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"003-create-baz.sql"}, report.Pending)
	assert.Equal(t, []string{"002-removed"}, report.Extra)
}

func TestLoadMigrationFiles_SkipsNonMatchingFilenames(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001-valid.sql", `CREATE TABLE a (id INTEGER);`)
	writeMigration(t, dir, "README.md", `not a migration`)
	writeMigration(t, dir, "abc-invalid.sql", `CREATE TABLE b (id INTEGER);`)

	files, err := loadMigrationFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "valid", files[0].name)
}
