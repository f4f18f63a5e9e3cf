package database

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/strikewindow/internal/domain"
)

func sampleSignal(windowID, strategyID string) domain.Signal {
	return domain.Signal{
		WindowID:   windowID,
		StrategyID: strategyID,
		Symbol:     "BTC",
		Direction:  domain.DirectionFadeUp,
		Confidence: 0.8,
		TokenID:    "up-token",
		Side:       domain.SideBuy,
		Inputs: domain.SignalInputs{
			TimeRemainingMs:   60_000,
			MarketPrice:       decimal.RequireFromString("0.55"),
			UIPrice:           decimal.RequireFromString("0.56"),
			OraclePrice:       decimal.RequireFromString("65000"),
			OracleStalenessMs: 500,
			SpreadPct:         decimal.RequireFromString("0.02"),
			Strike:            decimal.RequireFromString("65000"),
			StalenessScore:    0.1,
		},
		GeneratedAt: time.Unix(1_700_000_300, 0).UTC(),
	}
}

func TestOutcomeStore_RecordSignalAndOutcome(t *testing.T) {
	gw := newDomainTestGateway(t)
	require.NoError(t, NewStrategyStore(gw).Create(sampleInstance("strategy-1")))
	require.NoError(t, NewWindowStore(gw).Create(sampleWindow("window-1", 1_700_000_100, 1_700_001_000)))
	store := NewOutcomeStore(gw)
	sig := sampleSignal("window-1", "strategy-1")

	id, err := store.RecordSignal(sig)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	pending, err := store.PendingSignalIDs("window-1")
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, pending)

	got, err := store.GetSignal(id)
	require.NoError(t, err)
	assert.Equal(t, sig.Symbol, got.Symbol)
	assert.True(t, got.Inputs.OraclePrice.Equal(sig.Inputs.OraclePrice))

	outcome := domain.SignalOutcome{
		Signal:            sig,
		FinalOraclePrice:  decimal.RequireFromString("65100"),
		SettlementOutcome: domain.OutcomeUp,
		SignalCorrect:     1,
		EntryPrice:        decimal.RequireFromString("0.55"),
		ExitPrice:         decimal.RequireFromString("1"),
		Size:              decimal.RequireFromString("25"),
		PnL:               decimal.RequireFromString("11.25"),
		SettledAt:         time.Unix(1_700_001_000, 0).UTC(),
		HasOutcome:        true,
	}
	require.NoError(t, store.RecordOutcome(id, outcome))

	pending, err = store.PendingSignalIDs("window-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
