package database

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/strikewindow/internal/codes"
)

// GatewayConfig configures the two-pool persistence gateway.
type GatewayConfig struct {
	DSN           string // postgres:// or postgresql:// connection string
	MigrationsDir string // empty uses DefaultMigrationsDir()
	QueryTimeout  time.Duration

	RetryAttempts  int // max attempts for write-path transient failures
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	BreakerFailureThreshold int
	BreakerCooldown         time.Duration
}

// DefaultGatewayConfig returns the spec.md §4.B defaults: 500ms base delay,
// 5s cap, 3 attempts.
func DefaultGatewayConfig(dsn string) GatewayConfig {
	return GatewayConfig{
		DSN:                     dsn,
		QueryTimeout:            5 * time.Second,
		RetryAttempts:           3,
		RetryBaseDelay:          500 * time.Millisecond,
		RetryMaxDelay:           5 * time.Second,
		BreakerFailureThreshold: 5,
		BreakerCooldown:         30 * time.Second,
	}
}

// Gateway fronts two connection pools against the same database: a
// ledger-profile pool for transactional writes (strategies, signals,
// outcomes, positions, auto_stop_state) with retry-with-backoff on
// transient failures, and a cache-profile pool for read-mostly reporting
// queries guarded by a circuit breaker so a struggling reporting workload
// degrades instead of starving the write path's connection budget.
type Gateway struct {
	primary   *DB
	reporting *DB
	breaker   *CircuitBreaker
	cfg       GatewayConfig
	log       zerolog.Logger
}

// NewGateway opens both pools against cfg.DSN, applies pending migrations
// against the primary pool, and returns the ready gateway.
func NewGateway(cfg GatewayConfig, log zerolog.Logger) (*Gateway, error) {
	primary, err := New(Config{DSN: cfg.DSN, Profile: ProfileLedger, Name: "strikewindow"})
	if err != nil {
		return nil, codes.Wrap(codes.DatabaseFatal, "failed to open primary pool", err, nil)
	}

	reporting, err := New(Config{DSN: cfg.DSN, Profile: ProfileCache, Name: "strikewindow-reporting"})
	if err != nil {
		_ = primary.Close()
		return nil, codes.Wrap(codes.DatabaseFatal, "failed to open reporting pool", err, nil)
	}

	migrationsDir := cfg.MigrationsDir
	if migrationsDir == "" {
		migrationsDir, err = DefaultMigrationsDir()
		if err != nil {
			_ = primary.Close()
			_ = reporting.Close()
			return nil, codes.Wrap(codes.DatabaseFatal, "failed to locate migrations directory", err, nil)
		}
	}
	if err := primary.Migrate(context.Background(), migrationsDir); err != nil {
		_ = primary.Close()
		_ = reporting.Close()
		return nil, codes.Wrap(codes.DatabaseFatal, "failed to apply migrations", err, nil)
	}

	gwLog := log.With().Str("component", "database_gateway").Logger()
	return &Gateway{
		primary:   primary,
		reporting: reporting,
		breaker:   NewCircuitBreaker(cfg.BreakerFailureThreshold, cfg.BreakerCooldown, gwLog),
		cfg:       cfg,
		log:       gwLog,
	}, nil
}

// Close closes both pools.
func (g *Gateway) Close() error {
	_ = g.reporting.Close()
	_ = g.primary.Close()
	return nil
}

// BreakerState reports the reporting pool's circuit breaker state, for
// status endpoints.
func (g *Gateway) BreakerState() string {
	return g.breaker.State()
}

// Write runs fn against the primary pool inside a transaction, retrying
// with exponential backoff (grounded on the same doubling-with-ceiling
// formula as feeds.Backoff / websocket_client.go's calculateBackoff) when
// fn returns a DatabaseTransient error. Any other error aborts immediately.
func (g *Gateway) Write(ctx context.Context, fn func(pgx.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.RetryAttempts; attempt++ {
		qCtx, cancel := context.WithTimeout(ctx, g.cfg.QueryTimeout)
		err := g.withTx(qCtx, fn)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !codes.Is(err, codes.DatabaseTransient) {
			return err
		}
		if attempt == g.cfg.RetryAttempts {
			break
		}

		delay := g.retryDelay(attempt)
		g.log.Warn().Int("attempt", attempt).Dur("delay", delay).Err(err).Msg("retrying transient write failure")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return codes.Wrap(codes.DatabaseFatal, "write failed after retries", lastErr, map[string]any{"attempts": g.cfg.RetryAttempts})
}

func (g *Gateway) withTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, txErr := g.primary.Pool().Begin(ctx)
	if txErr != nil {
		return codes.Wrap(codes.DatabaseTransient, "failed to begin transaction", txErr, nil)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return codes.Wrap(codes.DatabaseTransient, "failed to commit transaction", err, nil)
	}
	return nil
}

func (g *Gateway) retryDelay(attempt int) time.Duration {
	delay := float64(g.cfg.RetryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(g.cfg.RetryMaxDelay) {
		delay = float64(g.cfg.RetryMaxDelay)
	}
	return time.Duration(delay)
}

// Read runs query against the reporting pool, short-circuiting with
// codes.DatabaseTransient when the circuit breaker is open rather than
// adding load to a pool that is already failing. A pgx.ErrNoRows from
// query passes through unmodified (it isn't a pool failure) rather than
// tripping the breaker.
func (g *Gateway) Read(ctx context.Context, query func(ctx context.Context, pool pgxPool) error) error {
	if !g.breaker.Allow() {
		return codes.New(codes.DatabaseTransient, "reporting pool circuit breaker open", map[string]any{
			"state": g.breaker.State(),
		})
	}

	qCtx, cancel := context.WithTimeout(ctx, g.cfg.QueryTimeout)
	defer cancel()

	err := query(qCtx, g.reporting.Pool())
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			g.breaker.RecordFailure()
		} else {
			g.breaker.RecordSuccess()
		}
		return err
	}
	g.breaker.RecordSuccess()
	return nil
}

// pgxPool is the subset of *pgxpool.Pool repositories need for reads;
// declared locally so gateway.go doesn't force every caller to import
// pgxpool directly.
type pgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PrimaryPool exposes the primary pool for callers (e.g. outcomes
// aggregates) that need direct access outside a transaction.
func (g *Gateway) PrimaryPool() pgxPool { return g.primary.Pool() }
