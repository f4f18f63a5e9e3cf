package orchestrator

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/strikewindow/internal/domain"
	"github.com/aristath/strikewindow/internal/outcomes"
)

type fakePositionStore struct {
	upserted []domain.Position
}

func (f *fakePositionStore) Upsert(p domain.Position) error {
	f.upserted = append(f.upserted, p)
	return nil
}
func (f *fakePositionStore) ListOpen() ([]*domain.Position, error) { return nil, nil }

type fakeWindowStore struct {
	settledID string
}

func (f *fakeWindowStore) Get(windowID string) (*domain.Window, error) { return nil, nil }
func (f *fakeWindowStore) MarkSettled(windowID string, settledAt time.Time) error {
	f.settledID = windowID
	return nil
}

type fakeSignalStore struct {
	signals map[int64]*domain.Signal
	outcome *domain.SignalOutcome
}

func (f *fakeSignalStore) RecordSignal(sig domain.Signal) (int64, error) { return 0, nil }
func (f *fakeSignalStore) RecordOutcome(signalID int64, o domain.SignalOutcome) error {
	f.outcome = &o
	return nil
}
func (f *fakeSignalStore) PendingSignalIDs(windowID string) ([]int64, error) {
	ids := make([]int64, 0, len(f.signals))
	for id := range f.signals {
		ids = append(ids, id)
	}
	return ids, nil
}
func (f *fakeSignalStore) GetSignal(signalID int64) (*domain.Signal, error) {
	return f.signals[signalID], nil
}

type fakeAutoStop struct {
	pnls []decimal.Decimal
}

func (f *fakeAutoStop) RecordFill(pnl decimal.Decimal) error {
	f.pnls = append(f.pnls, pnl)
	return nil
}

func (f *fakeAutoStop) Tripped() bool { return false }

func TestPayoutPrice_FullPayoutWhenHeldTokenMatchesSettlement(t *testing.T) {
	window := &domain.Window{StrikePrice: decimal.NewFromInt(100), UpTokenID: "up", DownTokenID: "down"}
	assert.True(t, decimal.NewFromInt(1).Equal(payoutPrice("up", window, decimal.NewFromInt(105))))
	assert.True(t, decimal.Zero.Equal(payoutPrice("down", window, decimal.NewFromInt(105))))
}

func TestSettleWindow_ClosesHeldPositionsAndNotifiesAutoStop(t *testing.T) {
	window := &domain.Window{WindowID: "BTC-updown-15m-1", StrikePrice: decimal.NewFromInt(100), UpTokenID: "up", DownTokenID: "down"}
	pos := &domain.Position{StrategyID: "strat-a", WindowID: "BTC-updown-15m-1", TokenID: "up", Size: decimal.NewFromInt(10), EntryPrice: decimal.NewFromFloat(0.5), Status: domain.PositionOpen}

	signalStore := &fakeSignalStore{signals: map[int64]*domain.Signal{
		1: {WindowID: "BTC-updown-15m-1", StrategyID: "strat-a", Direction: domain.DirectionFadeDown},
	}}
	outcomesLogger := outcomes.NewLogger(signalStore, zerolog.Nop())
	positions := &fakePositionStore{}
	windows := &fakeWindowStore{}
	autoStop := &fakeAutoStop{}

	err := settleWindow("BTC-updown-15m-1", decimal.NewFromInt(105), window, []*domain.Position{pos}, positions, windows, outcomesLogger, autoStop, time.Now(), zerolog.Nop())
	require.NoError(t, err)

	require.Len(t, positions.upserted, 1)
	assert.Equal(t, domain.PositionClosed, positions.upserted[0].Status)
	assert.Equal(t, "BTC-updown-15m-1", windows.settledID)
	require.Len(t, autoStop.pnls, 1)
}

func TestSettleWindow_NoHeldPositionsStillMarksWindowSettled(t *testing.T) {
	window := &domain.Window{WindowID: "BTC-updown-15m-1"}
	windows := &fakeWindowStore{}
	err := settleWindow("BTC-updown-15m-1", decimal.NewFromInt(100), window, nil, &fakePositionStore{}, windows, nil, nil, time.Now(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "BTC-updown-15m-1", windows.settledID)
}
