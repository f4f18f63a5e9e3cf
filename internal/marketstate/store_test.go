package marketstate

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/strikewindow/internal/domain"
)

func TestStore_IngestAndSnapshot_ReflectsLatestPrice(t *testing.T) {
	s := New("BTC", zerolog.Nop())
	now := time.Now()
	s.Ingest(domain.Tick{Source: domain.SourceExchange, Symbol: "BTC", Price: decimal.NewFromInt(100), ReceivedAt: now})

	snap := s.Snapshot(now)
	reading := snap.Sources[domain.SourceExchange]
	assert.True(t, reading.Valid)
	assert.True(t, reading.Price.Equal(decimal.NewFromInt(100)))
}

func TestStore_Snapshot_StalenessReflectsAge(t *testing.T) {
	s := New("BTC", zerolog.Nop())
	receivedAt := time.Now().Add(-5 * time.Second)
	s.Ingest(domain.Tick{Source: domain.SourceExchange, Price: decimal.NewFromInt(100), ReceivedAt: receivedAt})

	snap := s.Snapshot(receivedAt.Add(5 * time.Second))
	assert.GreaterOrEqual(t, snap.StalenessMs[domain.SourceExchange], int64(5000))
}

func TestStore_Snapshot_UnseenSourceIsInvalid(t *testing.T) {
	s := New("BTC", zerolog.Nop())
	snap := s.Snapshot(time.Now())
	assert.False(t, snap.Sources[domain.SourceOracleSSE].Valid)
	assert.Equal(t, int64(-1), snap.StalenessMs[domain.SourceOracleSSE])
}

func TestStore_BookUpdates_AppliedInOrder(t *testing.T) {
	s := New("BTC", zerolog.Nop())
	s.SetWindow("BTC-updown-15m-1700000100", decimal.NewFromInt(60000), "up-token", "down-token")

	s.Ingest(domain.Tick{
		Source: domain.SourceCLOBBook, IsBookDelta: true,
		BookUpdate: &domain.BookUpdate{TokenID: "up-token", Sequence: 1, BestBid: decimal.NewFromFloat(0.5), BestAsk: decimal.NewFromFloat(0.52)},
	})
	s.Ingest(domain.Tick{
		Source: domain.SourceCLOBBook, IsBookDelta: true,
		BookUpdate: &domain.BookUpdate{TokenID: "up-token", Sequence: 2, BestBid: decimal.NewFromFloat(0.55), BestAsk: decimal.NewFromFloat(0.57)},
	})

	snap := s.Snapshot(time.Now())
	require.True(t, snap.UpBook.BestBid.Equal(decimal.NewFromFloat(0.55)))
}

func TestStore_BookUpdates_DropsOutOfOrderDelta(t *testing.T) {
	s := New("BTC", zerolog.Nop())
	s.SetWindow("w", decimal.NewFromInt(60000), "up-token", "down-token")

	s.Ingest(domain.Tick{
		Source: domain.SourceCLOBBook, IsBookDelta: true,
		BookUpdate: &domain.BookUpdate{TokenID: "up-token", Sequence: 5, BestBid: decimal.NewFromFloat(0.6)},
	})
	s.Ingest(domain.Tick{
		Source: domain.SourceCLOBBook, IsBookDelta: true,
		BookUpdate: &domain.BookUpdate{TokenID: "up-token", Sequence: 3, BestBid: decimal.NewFromFloat(0.1)},
	})

	snap := s.Snapshot(time.Now())
	assert.True(t, snap.UpBook.BestBid.Equal(decimal.NewFromFloat(0.6)), "out-of-order delta must be dropped")
}

func TestStore_Snapshot_IsIndependentCopyAcrossCalls(t *testing.T) {
	s := New("BTC", zerolog.Nop())
	now := time.Now()
	s.Ingest(domain.Tick{Source: domain.SourceExchange, Price: decimal.NewFromInt(1), ReceivedAt: now})
	first := s.Snapshot(now)

	s.Ingest(domain.Tick{Source: domain.SourceExchange, Price: decimal.NewFromInt(2), ReceivedAt: now})
	second := s.Snapshot(now)

	assert.True(t, first.Sources[domain.SourceExchange].Price.Equal(decimal.NewFromInt(1)))
	assert.True(t, second.Sources[domain.SourceExchange].Price.Equal(decimal.NewFromInt(2)))
}
