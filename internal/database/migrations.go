package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationNameRe matches the wire-level migration filename contract
// (spec.md §6): N >= 3 digits, a dash, a description, any extension.
var migrationNameRe = regexp.MustCompile(`^(\d{3,})-([a-z0-9][a-z0-9_-]*)\.\w+$`)

type migrationFile struct {
	version  int
	name     string
	filename string
}

// DefaultMigrationsDir locates the migrations directory using the source
// code location, the same way the teacher's schema loader did: migrations
// are part of the source, not the database, so this resolves correctly
// regardless of working directory, test harness, or deployment layout.
func DefaultMigrationsDir() (string, error) {
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}
	absFile, err := filepath.Abs(currentFile)
	if err != nil {
		return "", fmt.Errorf("failed to resolve source file path: %w", err)
	}
	dir := filepath.Join(filepath.Dir(absFile), "migrations")
	if info, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("migrations directory not found at %s: %w", dir, err)
	} else if !info.IsDir() {
		return "", fmt.Errorf("migrations path exists but is not a directory: %s", dir)
	}
	return dir, nil
}

func loadMigrationFiles(dir string) ([]migrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory %s: %w", dir, err)
	}

	files := make([]migrationFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := migrationNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		version, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("migration filename %s has an unparsable version: %w", e.Name(), err)
		}
		files = append(files, migrationFile{version: version, name: m[2], filename: e.Name()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })

	for i := 1; i < len(files); i++ {
		if files[i].version == files[i-1].version {
			return nil, fmt.Errorf("duplicate migration version %d (%s and %s)",
				files[i].version, files[i-1].filename, files[i].filename)
		}
	}

	return files, nil
}

func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at BIGINT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[int]string, error) {
	rows, err := pool.Query(ctx, `SELECT version, name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]string)
	for rows.Next() {
		var version int
		var name string
		if err := rows.Scan(&version, &name); err != nil {
			return nil, fmt.Errorf("failed to scan schema_migrations row: %w", err)
		}
		applied[version] = name
	}
	return applied, rows.Err()
}

// MigrationPreflight reports files on disk with no matching applied row
// (pending) and applied rows with no matching file on disk (extra — a
// migration someone ran against this database but whose file was later
// removed, or a downgrade to an older checkout).
type MigrationPreflight struct {
	Pending []string // filenames not yet applied
	Extra   []string // "version-name" applied but missing from disk
}

// Preflight computes the migration gap between migrationsDir and the
// database's schema_migrations table without applying anything.
func Preflight(ctx context.Context, pool *pgxpool.Pool, migrationsDir string) (*MigrationPreflight, error) {
	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return nil, err
	}

	files, err := loadMigrationFiles(migrationsDir)
	if err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return nil, err
	}

	report := &MigrationPreflight{}
	seen := make(map[int]bool, len(files))
	for _, f := range files {
		seen[f.version] = true
		if _, ok := applied[f.version]; !ok {
			report.Pending = append(report.Pending, f.filename)
		}
	}
	for version, name := range applied {
		if !seen[version] {
			report.Extra = append(report.Extra, fmt.Sprintf("%03d-%s", version, name))
		}
	}
	sort.Strings(report.Pending)
	sort.Strings(report.Extra)
	return report, nil
}

// runMigrations applies every file in migrationsDir whose version is not yet
// present in schema_migrations, in ascending version order, each inside its
// own transaction. Grounded on the teacher's schema-apply-within-a-transaction
// pattern (db.go's former Migrate), generalized from a fixed per-database
// schema file to a numbered, incrementally-applied migration chain.
func runMigrations(ctx context.Context, pool *pgxpool.Pool, migrationsDir string) error {
	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	files, err := loadMigrationFiles(migrationsDir)
	if err != nil {
		return err
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return err
	}

	for _, f := range files {
		if _, ok := applied[f.version]; ok {
			continue
		}

		content, err := os.ReadFile(filepath.Join(migrationsDir, f.filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", f.filename, err)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", f.filename, err)
		}

		if _, err := tx.Exec(ctx, string(content)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to apply migration %s: %w", f.filename, err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)`,
			f.version, f.name, time.Now().UnixMilli(),
		); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", f.filename, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", f.filename, err)
		}
	}

	return nil
}
