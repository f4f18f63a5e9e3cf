// Package marketstate holds the single-writer-per-source, copy-on-read view
// of current market conditions for each symbol's active window (spec.md
// §4.D). Readers always see a consistent, torn-free MarketSnapshot.
package marketstate

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/domain"
)

// cell holds one source's latest reading behind its own lock, so a writer
// for one source never blocks a writer for another.
type cell struct {
	mu      sync.RWMutex
	reading domain.SourceReading
}

func (c *cell) set(price decimal.Decimal, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reading = domain.SourceReading{Price: price, LastUpdateMs: at.UnixMilli(), Valid: true}
}

func (c *cell) get() domain.SourceReading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reading
}

// book holds one token's order-book top, applying deltas in sequence order.
type book struct {
	mu       sync.RWMutex
	top      domain.BookTop
	sequence int64
}

func (b *book) apply(update domain.BookUpdate, log zerolog.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if update.IsDelta && update.Sequence <= b.sequence && b.sequence != 0 {
		log.Warn().
			Int64("update_sequence", update.Sequence).
			Int64("current_sequence", b.sequence).
			Str("token_id", update.TokenID).
			Msg("dropping out-of-order book delta")
		return
	}

	b.top = domain.BookTop{
		BestBid: update.BestBid,
		BidSize: update.BidSize,
		BestAsk: update.BestAsk,
		AskSize: update.AskSize,
	}
	b.sequence = update.Sequence
}

func (b *book) get() domain.BookTop {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.top
}

// Store is one symbol's market-state cell set: one reading per tick source
// plus an up/down order book.
type Store struct {
	symbol  string
	log     zerolog.Logger
	cells   map[domain.TickSource]*cell
	upBook  *book
	downBook *book

	mu        sync.RWMutex
	windowID  string
	strike    decimal.Decimal
	upTokenID string
	downTokenID string
}

// New returns an empty Store for symbol.
func New(symbol string, log zerolog.Logger) *Store {
	s := &Store{
		symbol:   symbol,
		log:      log.With().Str("component", "marketstate").Str("symbol", symbol).Logger(),
		cells:    make(map[domain.TickSource]*cell),
		upBook:   &book{},
		downBook: &book{},
	}
	for _, source := range []domain.TickSource{domain.SourceExchange, domain.SourceOraclePush, domain.SourceOracleSSE, domain.SourceCLOBBook} {
		s.cells[source] = &cell{}
	}
	return s
}

// SetWindow records which window and strike/token ids the store is
// currently reporting against. Called by the window clock/orchestrator on
// window_open.
func (s *Store) SetWindow(windowID string, strike decimal.Decimal, upTokenID, downTokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windowID = windowID
	s.strike = strike
	s.upTokenID = upTokenID
	s.downTokenID = downTokenID
}

// Ingest applies one normalized tick to its source's cell, or to the
// relevant order book if it carries a book delta.
func (s *Store) Ingest(tick domain.Tick) {
	if tick.IsBookDelta && tick.BookUpdate != nil {
		s.ingestBookUpdate(*tick.BookUpdate)
		return
	}
	c, ok := s.cells[tick.Source]
	if !ok {
		return
	}
	c.set(tick.Price, tick.ReceivedAt)
}

func (s *Store) ingestBookUpdate(update domain.BookUpdate) {
	s.mu.RLock()
	upTokenID, downTokenID := s.upTokenID, s.downTokenID
	s.mu.RUnlock()

	switch update.TokenID {
	case upTokenID:
		s.upBook.apply(update, s.log)
	case downTokenID:
		s.downBook.apply(update, s.log)
	}
}

// BookFor returns the order-book top for tokenID, if it matches the store's
// currently-bound up or down token, for the execution adapter's slippage
// model.
func (s *Store) BookFor(tokenID string) (domain.BookTop, bool) {
	s.mu.RLock()
	upTokenID, downTokenID := s.upTokenID, s.downTokenID
	s.mu.RUnlock()

	switch tokenID {
	case upTokenID:
		return s.upBook.get(), true
	case downTokenID:
		return s.downBook.get(), true
	default:
		return domain.BookTop{}, false
	}
}

// Snapshot returns a consistent, point-in-time copy of every source's
// reading and both order books. Concurrent writers never tear it: each
// cell/book is copied under its own lock, and the result is a plain value.
func (s *Store) Snapshot(now time.Time) domain.MarketSnapshot {
	s.mu.RLock()
	windowID, strike := s.windowID, s.strike
	s.mu.RUnlock()

	sources := make(map[domain.TickSource]domain.SourceReading, len(s.cells))
	staleness := make(map[domain.TickSource]int64, len(s.cells))
	for source, c := range s.cells {
		reading := c.get()
		sources[source] = reading
		if reading.Valid {
			staleness[source] = now.UnixMilli() - reading.LastUpdateMs
		} else {
			staleness[source] = -1
		}
	}

	upTop := s.upBook.get()
	downTop := s.downBook.get()

	mid := decimal.Zero
	if !upTop.BestBid.IsZero() || !upTop.BestAsk.IsZero() {
		mid = upTop.BestBid.Add(upTop.BestAsk).Div(decimal.NewFromInt(2))
	}

	return domain.MarketSnapshot{
		Symbol:      s.symbol,
		WindowID:    windowID,
		Strike:      strike,
		TakenAt:     now,
		Sources:     sources,
		UpBook:      upTop,
		DownBook:    downTop,
		Mid:         mid,
		StalenessMs: staleness,
	}
}
