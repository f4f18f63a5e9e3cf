package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/strikewindow/internal/codes"
)

// newTestGateway opens a gateway against a scratch "widgets" migration, for
// tests that only exercise Write/Read/retry/breaker mechanics rather than
// the domain schema.
func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	dsn := testDatabaseURL(t)
	dropAllTestTables(t, dsn)

	cfg := DefaultGatewayConfig(dsn)
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 5 * time.Millisecond

	migrationsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(migrationsDir, "001-create-widgets.sql"),
		[]byte(`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`), 0644))
	cfg.MigrationsDir = migrationsDir

	gw, err := NewGateway(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = gw.primary.Pool().Exec(context.Background(), "DROP TABLE IF EXISTS widgets CASCADE")
		gw.Close()
	})
	return gw
}

// newDomainTestGateway opens a gateway against the real, checked-in
// migrations (internal/database/migrations/001-initial-schema.sql), for
// tests of the domain-specific stores (strategies, windows, positions,
// signals/outcomes, auto_stop_state).
func newDomainTestGateway(t *testing.T) *Gateway {
	t.Helper()
	dsn := testDatabaseURL(t)
	dropAllTestTables(t, dsn)

	cfg := DefaultGatewayConfig(dsn)
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 5 * time.Millisecond

	gw, err := NewGateway(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })
	return gw
}

func TestGateway_WriteCommitsAndReadSeesIt(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	err := gw.Write(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO widgets (id, name) VALUES (1, 'alpha')`)
		return err
	})
	require.NoError(t, err)

	var name string
	err = gw.Read(ctx, func(ctx context.Context, pool pgxPool) error {
		return pool.QueryRow(ctx, `SELECT name FROM widgets WHERE id = 1`).Scan(&name)
	})
	require.NoError(t, err)
	assert.Equal(t, "alpha", name)
}

func TestGateway_WriteRetriesTransientThenFails(t *testing.T) {
	gw := newTestGateway(t)
	attempts := 0

	err := gw.Write(context.Background(), func(tx pgx.Tx) error {
		attempts++
		return codes.New(codes.DatabaseTransient, "simulated outage", nil)
	})

	require.Error(t, err)
	assert.Equal(t, gw.cfg.RetryAttempts, attempts)
	assert.True(t, codes.Is(err, codes.DatabaseFatal))
}

func TestGateway_WriteDoesNotRetryNonTransientError(t *testing.T) {
	gw := newTestGateway(t)
	attempts := 0
	sentinel := fmt.Errorf("permanent failure")

	err := gw.Write(context.Background(), func(tx pgx.Tx) error {
		attempts++
		return sentinel
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, sentinel)
}

func TestGateway_ReadShortCircuitsWhenBreakerOpen(t *testing.T) {
	gw := newTestGateway(t)
	gw.breaker = NewCircuitBreaker(1, time.Hour, zerolog.Nop())

	err := gw.Read(context.Background(), func(ctx context.Context, pool pgxPool) error {
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	err = gw.Read(context.Background(), func(ctx context.Context, pool pgxPool) error {
		t.Fatal("query should not run while breaker is open")
		return nil
	})
	require.Error(t, err)
	assert.True(t, codes.Is(err, codes.DatabaseTransient))
}
