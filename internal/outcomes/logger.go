// Package outcomes persists signals and correlates their eventual
// settlement result (spec.md §4.I), using internal/database for storage.
package outcomes

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/domain"
)

// SignalStore is the persistence contract Logger needs, satisfied by
// internal/database.OutcomeStore.
type SignalStore interface {
	RecordSignal(sig domain.Signal) (int64, error)
	RecordOutcome(signalID int64, o domain.SignalOutcome) error
	PendingSignalIDs(windowID string) ([]int64, error)
	GetSignal(signalID int64) (*domain.Signal, error)
}

// unrecordedEntryPriceFallback is used when a position's entry price was
// never recorded (e.g. the process crashed between order fill and position
// persistence). This masks the true cost basis rather than surfacing the
// gap, which is a known, accepted risk (spec.md §9 open question) — not a
// design virtue.
var unrecordedEntryPriceFallback = decimal.NewFromFloat(0.5)

// Logger records signals on entry and correlates settlement on window
// close. Logging a signal is idempotent per (window_id, strategy_id) within
// one process: a second LogSignal call for the same pair is a no-op and
// returns the id recorded by the first call.
type Logger struct {
	store SignalStore
	log   zerolog.Logger

	mu      sync.Mutex
	seen    map[string]int64 // "windowID|strategyID" -> signal_id
}

// NewLogger returns a Logger backed by store.
func NewLogger(store SignalStore, log zerolog.Logger) *Logger {
	return &Logger{
		store: store,
		log:   log.With().Str("component", "outcomes").Logger(),
		seen:  make(map[string]int64),
	}
}

func seenKey(windowID, strategyID string) string { return windowID + "|" + strategyID }

// LogSignal persists sig, or returns the already-recorded id if this
// process already logged a signal for sig's (window_id, strategy_id) pair.
func (l *Logger) LogSignal(sig domain.Signal) (int64, error) {
	key := seenKey(sig.WindowID, sig.StrategyID)

	l.mu.Lock()
	if id, ok := l.seen[key]; ok {
		l.mu.Unlock()
		return id, nil
	}
	l.mu.Unlock()

	id, err := l.store.RecordSignal(sig)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	l.seen[key] = id
	l.mu.Unlock()

	return id, nil
}

// SettlementResult is what the caller needs to know after Settle runs.
type SettlementResult struct {
	Updated bool
	Outcome domain.SignalOutcome
}

// Settle computes and records the outcome for strategyID's signal in
// windowID, given the window's final oracle price and strike, and the
// actual entry/exit price and size the position resolved to. If no signal
// was logged for this (window_id, strategy_id), it logs at debug and
// returns Updated=false (spec.md §4.I).
func (l *Logger) Settle(windowID, strategyID string, finalOraclePrice, strike, entryPrice, exitPrice, size decimal.Decimal, settledAt time.Time) (SettlementResult, error) {
	signalID, sig, err := l.findSignal(windowID, strategyID)
	if err != nil {
		return SettlementResult{}, err
	}
	if sig == nil {
		l.log.Debug().Str("window_id", windowID).Str("strategy_id", strategyID).Msg("no signal recorded for window, skipping settlement")
		return SettlementResult{Updated: false}, nil
	}

	if entryPrice.IsZero() {
		entryPrice = unrecordedEntryPriceFallback
	}

	outcome := finalOraclePrice.GreaterThanOrEqual(strike)
	settlementOutcome := domain.OutcomeDown
	if outcome {
		settlementOutcome = domain.OutcomeUp
	}

	correct := signalCorrect(sig.Direction, settlementOutcome)

	pnl := entryPrice.Neg()
	if correct {
		pnl = decimal.NewFromInt(1).Sub(entryPrice)
	}
	pnl = pnl.Mul(size)

	correctFlag := 0
	if correct {
		correctFlag = 1
	}

	result := domain.SignalOutcome{
		Signal:            *sig,
		FinalOraclePrice:  finalOraclePrice,
		SettlementOutcome: settlementOutcome,
		SignalCorrect:     correctFlag,
		EntryPrice:        entryPrice,
		ExitPrice:         exitPrice,
		Size:              size,
		PnL:               pnl,
		SettledAt:         settledAt,
		HasOutcome:        true,
	}

	if err := l.store.RecordOutcome(signalID, result); err != nil {
		return SettlementResult{}, err
	}

	return SettlementResult{Updated: true, Outcome: result}, nil
}

// signalCorrect reports whether direction was the winning fade given
// outcome: fade_up is correct when the window settles down, and vice versa
// (spec.md §4.I).
func signalCorrect(direction domain.Direction, outcome domain.SettlementOutcome) bool {
	switch direction {
	case domain.DirectionFadeUp:
		return outcome == domain.OutcomeDown
	case domain.DirectionFadeDown:
		return outcome == domain.OutcomeUp
	default:
		return false
	}
}

// findSignal resolves the signal id and row for (windowID, strategyID),
// preferring this process's own cache but falling back to the store (a
// process that restarted between signal logging and settlement has no
// cache entry, but the row still exists).
func (l *Logger) findSignal(windowID, strategyID string) (int64, *domain.Signal, error) {
	l.mu.Lock()
	id, ok := l.seen[seenKey(windowID, strategyID)]
	l.mu.Unlock()
	if ok {
		sig, err := l.store.GetSignal(id)
		return id, sig, err
	}

	ids, err := l.store.PendingSignalIDs(windowID)
	if err != nil {
		return 0, nil, err
	}
	for _, candidateID := range ids {
		sig, err := l.store.GetSignal(candidateID)
		if err != nil {
			return 0, nil, err
		}
		if sig.StrategyID == strategyID {
			return candidateID, sig, nil
		}
	}
	return 0, nil, nil
}
