// Package database provides database connection and initialization functionality.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DatabaseProfile selects a pool-tuning preset for a connection pool's role.
// The teacher tuned per-database SQLite PRAGMAs by profile; the same three
// presets here tune pgxpool sizing and connection lifetime instead.
type DatabaseProfile string

const (
	// ProfileLedger - conservative pool for transactional writes against
	// money-moving tables (strategies, signals, outcomes, positions,
	// auto_stop_state).
	ProfileLedger DatabaseProfile = "ledger"
	// ProfileCache - larger, short-lived pool for read-mostly reporting
	// queries.
	ProfileCache DatabaseProfile = "cache"
	// ProfileStandard - balanced preset for anything else.
	ProfileStandard DatabaseProfile = "standard"
)

// DB wraps a pgxpool.Pool with production-grade pool configuration.
type DB struct {
	pool    *pgxpool.Pool
	profile DatabaseProfile
	name    string
}

// Config holds database connection configuration.
type Config struct {
	DSN     string // postgres:// or postgresql:// connection string
	Profile DatabaseProfile
	Name    string // friendly name for logging
}

// New creates a new pgxpool.Pool with production-grade configuration.
func New(cfg Config) (*DB, error) {
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN for %s: %w", cfg.Name, err)
	}
	applyPoolProfile(poolCfg, cfg.Profile)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{pool: pool, profile: cfg.Profile, name: cfg.Name}, nil
}

// applyPoolProfile tunes pool size and connection lifetime by profile, the
// way the teacher's buildConnectionString/configureConnectionPool tuned
// PRAGMAs and sql.DB limits by profile.
func applyPoolProfile(cfg *pgxpool.Config, profile DatabaseProfile) {
	cfg.MaxConnLifetime = 24 * time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	switch profile {
	case ProfileLedger:
		// Small, strict pool — every connection touches the audit trail.
		cfg.MaxConns = 10
		cfg.MinConns = 2
	case ProfileCache:
		// Larger pool for read-mostly reporting traffic; conns recycle
		// sooner since staleness matters less than throughput here.
		cfg.MaxConns = 25
		cfg.MinConns = 2
		cfg.MaxConnIdleTime = 10 * time.Minute
	case ProfileStandard:
		cfg.MaxConns = 15
		cfg.MinConns = 2
	}
}

// Close closes the pool.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// Pool returns the underlying pgxpool.Pool. Used by repositories to run
// queries.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Name returns the database name for logging.
func (db *DB) Name() string {
	return db.name
}

// Profile returns the configured pool profile.
func (db *DB) Profile() DatabaseProfile {
	return db.profile
}

// Migrate applies every pending numbered migration from migrationsDir, in
// order, tracking progress in the schema_migrations table. See migrations.go.
func (db *DB) Migrate(ctx context.Context, migrationsDir string) error {
	return runMigrations(ctx, db.pool, migrationsDir)
}

// BeginTx starts a new transaction.
func (db *DB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return db.pool.Begin(ctx)
}

// WithTransaction executes fn within a transaction on pool. It handles
// begin, commit, rollback, and panic recovery automatically: if fn returns
// an error or panics, the transaction is rolled back; otherwise it commits.
func WithTransaction(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) (err error) {
	if pool == nil {
		return fmt.Errorf("database pool is nil")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			err = fmt.Errorf("panic in transaction: %v", p)
			return
		}
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rollbackErr)
			} else {
				err = fmt.Errorf("transaction failed: %w", err)
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck performs a health check on the database: a ping plus a
// round-trip query, the way the teacher's integrity_check verified more
// than mere TCP reachability.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed for %s: %w", db.name, err)
	}

	var one int
	if err := db.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("round-trip query failed for %s: %w", db.name, err)
	}
	if one != 1 {
		return fmt.Errorf("round-trip query returned unexpected value for %s: %d", db.name, one)
	}

	return nil
}

// QuickCheck performs a quick health check (ping only).
func (db *DB) QuickCheck(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Vacuum runs VACUUM to reclaim space and update planner statistics.
// Should only be run during maintenance windows.
func (db *DB) Vacuum(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum failed for %s: %w", db.name, err)
	}
	return nil
}

// Stats mirrors pgxpool's own pool statistics.
type Stats struct {
	AcquiredConns int32
	IdleConns     int32
	TotalConns    int32
	MaxConns      int32
}

// GetStats retrieves pool statistics.
func (db *DB) GetStats() *Stats {
	s := db.pool.Stat()
	return &Stats{
		AcquiredConns: s.AcquiredConns(),
		IdleConns:     s.IdleConns(),
		TotalConns:    s.TotalConns(),
		MaxConns:      s.MaxConns(),
	}
}
