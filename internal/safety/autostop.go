// Package safety implements the kill-switch and auto-stop layer (spec.md
// §4.J): a drawdown/daily-loss evaluator with a cron-scheduled daily reset, a bounded-wall-clock
// process kill switch, and a last-known-state snapshot writer.
package safety

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/codes"
	"github.com/aristath/strikewindow/internal/domain"
)

// StateStore is the persistence contract AutoStop needs, satisfied by
// internal/database.AutoStopStore.
type StateStore interface {
	Load() (domain.AutoStopState, error)
	Save(state domain.AutoStopState) error
}

// Limits are the risk thresholds a manifest/config authorizes (spec.md §6).
type Limits struct {
	MaxDrawdownPct      decimal.Decimal
	MaxDailyLossDollars decimal.Decimal
}

// AutoStop tracks process-wide realized P&L and its drawdown from the
// high-water mark, and trips the trading gate
// (internal/orchestrator.AutoStopNotifier) once either limit in Limits is
// breached. It evaluates the limits on every recorded fill; its cron
// schedule runs only the midnight-UTC reset of the daily counter, the way
// the teacher's queue.Scheduler mixed ticker-driven and calendar-driven
// jobs. It does not track exposure: the state's TotalExposure and
// UnrealizedPnL fields are never set here.
type AutoStop struct {
	store  StateStore
	limits Limits
	log    zerolog.Logger

	cron *cron.Cron

	mu    sync.Mutex
	state domain.AutoStopState
	hwm   decimal.Decimal // high-water mark of cumulative realized P&L
}

// New loads the persisted state (or a zero-value untripped state on first
// run) and returns a ready AutoStop. Call Start to begin the cron cadence.
func New(store StateStore, limits Limits, log zerolog.Logger) (*AutoStop, error) {
	state, err := store.Load()
	if err != nil {
		return nil, codes.Wrap(codes.DatabaseFatal, "failed to load auto-stop state", err, nil)
	}

	hwm := state.RealizedPnLToday
	if hwm.IsNegative() {
		hwm = decimal.Zero
	}

	return &AutoStop{
		store:  store,
		limits: limits,
		log:    log.With().Str("component", "auto_stop").Logger(),
		cron:   cron.New(cron.WithSeconds()),
		state:  state,
		hwm:    hwm,
	}, nil
}

// Start registers the midnight-UTC daily-counter reset and starts the cron
// scheduler. It does not block.
func (a *AutoStop) Start() error {
	if _, err := a.cron.AddFunc("0 0 0 * * *", a.resetDaily); err != nil {
		return codes.Wrap(codes.ConfigInvalid, "failed to register auto-stop daily reset", err, nil)
	}
	a.cron.Start()
	a.log.Info().Msg("auto-stop scheduler started")
	return nil
}

// Stop waits for any in-flight cron job to finish and stops the scheduler.
func (a *AutoStop) Stop() {
	ctx := a.cron.Stop()
	<-ctx.Done()
	a.log.Info().Msg("auto-stop scheduler stopped")
}

// RecordFill adds one fill's realized P&L to the daily total, updates the
// high-water mark and drawdown, and re-evaluates the trip condition
// (internal/orchestrator.AutoStopNotifier).
func (a *AutoStop) RecordFill(pnl decimal.Decimal) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.RealizedPnLToday = a.state.RealizedPnLToday.Add(pnl)
	if a.state.RealizedPnLToday.GreaterThan(a.hwm) {
		a.hwm = a.state.RealizedPnLToday
	}
	a.state.DrawdownFromHWM = a.hwm.Sub(a.state.RealizedPnLToday)
	a.state.UpdatedAt = time.Now().UTC()

	a.evaluateLocked()

	if err := a.store.Save(a.state); err != nil {
		return codes.Wrap(codes.DatabaseTransient, "failed to persist auto-stop state", err, nil)
	}
	return nil
}

// Tripped reports whether the kill-switch gate is currently tripped.
func (a *AutoStop) Tripped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Tripped
}

// State returns a copy of the current state, for status endpoints.
func (a *AutoStop) State() domain.AutoStopState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// evaluateLocked checks both limits in Limits and sets Tripped/TrippedReason
// accordingly. Caller holds a.mu. Once tripped, it stays tripped —
// auto-stop never self-clears, New reloads the persisted tripped state on
// restart, and nothing in this package clears it.
func (a *AutoStop) evaluateLocked() {
	if a.state.Tripped {
		return
	}

	if a.limits.MaxDrawdownPct.IsPositive() && !a.hwm.IsZero() {
		drawdownPct := a.state.DrawdownFromHWM.Div(a.hwm)
		if drawdownPct.GreaterThanOrEqual(a.limits.MaxDrawdownPct) {
			a.trip("drawdown from high-water mark exceeded MAX_DRAWDOWN_PCT")
			return
		}
	}

	if a.limits.MaxDailyLossDollars.IsPositive() {
		loss := a.state.RealizedPnLToday.Neg()
		if loss.GreaterThanOrEqual(a.limits.MaxDailyLossDollars) {
			a.trip("realized daily loss exceeded MAX_DAILY_LOSS_DOLLARS")
			return
		}
	}
}

func (a *AutoStop) trip(reason string) {
	a.state.Tripped = true
	a.state.TrippedReason = reason
	a.log.Error().Str("reason", reason).Msg("auto-stop tripped")
}

// resetDaily zeroes the daily realized P&L counter at midnight UTC. It does
// not clear Tripped.
func (a *AutoStop) resetDaily() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.RealizedPnLToday = decimal.Zero
	a.hwm = decimal.Zero
	a.state.DrawdownFromHWM = decimal.Zero
	a.state.UpdatedAt = time.Now().UTC()

	if err := a.store.Save(a.state); err != nil {
		a.log.Error().Err(err).Msg("failed to persist daily auto-stop reset")
	}
}
