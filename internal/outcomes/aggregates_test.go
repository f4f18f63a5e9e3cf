package outcomes

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/strikewindow/internal/domain"
)

type fakeRecentReader struct {
	rows  []domain.SignalOutcome
	limit int
}

func (f *fakeRecentReader) ListRecent(limit int) ([]domain.SignalOutcome, error) {
	f.limit = limit
	if limit < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func signalRow(symbol string, confidence float64, correct int, pnl float64, pending bool, timeRemainingMs int64) domain.SignalOutcome {
	return domain.SignalOutcome{
		Signal: domain.Signal{
			Symbol:     symbol,
			Confidence: confidence,
			Inputs:     domain.SignalInputs{TimeRemainingMs: timeRemainingMs},
		},
		SignalCorrect: correct,
		PnL:           decimal.NewFromFloat(pnl),
		HasOutcome:    !pending,
		SettledAt:     time.Now(),
	}
}

func TestAggregator_SummarizeCountsAndTotals(t *testing.T) {
	reader := &fakeRecentReader{rows: []domain.SignalOutcome{
		signalRow("BTC", 0.8, 1, 0.5, false, 100000),
		signalRow("BTC", 0.6, 0, -0.5, false, 200000),
		signalRow("ETH", 0.7, 0, 0, true, 50000),
	}}
	agg := NewAggregator(reader)

	summary, err := agg.Summarize(10)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.WithOutcome)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 1, summary.Wins)
	assert.InDelta(t, 0.0, summary.TotalPnL, 1e-9)
	assert.InDelta(t, 0.7, summary.AvgConfidence, 1e-9)
}

func TestAggregator_SummarizeClampsLimitToRange(t *testing.T) {
	reader := &fakeRecentReader{rows: []domain.SignalOutcome{signalRow("BTC", 0.5, 1, 0, false, 1000)}}
	agg := NewAggregator(reader)

	_, err := agg.Summarize(0)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.limit)

	_, err = agg.Summarize(5000)
	require.NoError(t, err)
	assert.Equal(t, 1000, reader.limit)
}

func TestAggregator_SummarizeBucketedGroupsBySymbol(t *testing.T) {
	reader := &fakeRecentReader{rows: []domain.SignalOutcome{
		signalRow("BTC", 0.8, 1, 1, false, 1000),
		signalRow("BTC", 0.6, 0, -1, false, 1000),
		signalRow("ETH", 0.9, 1, 2, false, 1000),
	}}
	agg := NewAggregator(reader)

	buckets, err := agg.SummarizeBucketed(10, BySymbol)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, "BTC", buckets[0].Key)
	assert.Equal(t, 2, buckets[0].Summary.Total)
	assert.Equal(t, "ETH", buckets[1].Key)
	assert.Equal(t, 1, buckets[1].Summary.Total)
}

func TestByTimeRemaining_BandsIntoSixtySecondWidths(t *testing.T) {
	row := signalRow("BTC", 0.5, 1, 0, false, 125_000)
	assert.Equal(t, "120-180", ByTimeRemaining(row))
}

func TestByConfidence_BandsIntoTenths(t *testing.T) {
	row := signalRow("BTC", 0.73, 1, 0, false, 0)
	assert.Equal(t, "7-8", ByConfidence(row))
}

func TestPnLVariance_ReturnsZeroForFewerThanTwoSettledRows(t *testing.T) {
	rows := []domain.SignalOutcome{signalRow("BTC", 0.5, 1, 1, false, 0)}
	variance, stdDev := PnLVariance(rows)
	assert.Equal(t, 0.0, variance)
	assert.Equal(t, 0.0, stdDev)
}

func TestPnLVariance_ComputesOverSettledRowsOnly(t *testing.T) {
	rows := []domain.SignalOutcome{
		signalRow("BTC", 0.5, 1, 1, false, 0),
		signalRow("BTC", 0.5, 0, -1, false, 0),
		signalRow("BTC", 0.5, 1, 0, true, 0),
	}
	variance, stdDev := PnLVariance(rows)
	assert.Greater(t, variance, 0.0)
	assert.Greater(t, stdDev, 0.0)
}
