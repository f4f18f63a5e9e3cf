// Package backtest fixes the contract a historical replay driver needs to
// drive the strategy orchestrator (internal/orchestrator, component G)
// deterministically against recorded data (spec.md §4.K). The replay driver
// itself is an external collaborator outside this repo's scope; only the
// contract and a minimal in-repo harness exercising it live here.
package backtest

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/domain"
	"github.com/aristath/strikewindow/internal/execution"
)

// Clock is a deterministic, manually-advanced time source a replay driver
// substitutes for wall-clock time so a backtest can run faster (or slower)
// than real time while the orchestrator's window-boundary math stays
// unchanged.
type Clock struct {
	now time.Time
}

// NewClock returns a Clock starting at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the clock's current simulated time.
func (c *Clock) Now() time.Time { return c.now }

// Advance moves the simulated clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}

// Feed replays a fixed, time-ordered slice of ticks recorded from a prior
// live run, satisfying the same consumption shape the live internal/feeds
// subscribers produce (C): a channel of domain.Tick, closed when exhausted.
// Unlike the live subscribers it has no reconnect logic — replay data is
// already ordered and complete by construction.
type Feed struct {
	recorded []domain.Tick
	ticks    chan domain.Tick
}

// NewFeed returns a Feed that will emit recorded (sorted by ReceivedAt) once
// Start is called.
func NewFeed(recorded []domain.Tick) *Feed {
	sorted := append([]domain.Tick(nil), recorded...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ReceivedAt.Before(sorted[j].ReceivedAt) })
	return &Feed{recorded: sorted, ticks: make(chan domain.Tick, len(sorted))}
}

// Start feeds every recorded tick onto Ticks in order, then closes the
// channel. It returns immediately; replay runs on its own goroutine.
func (f *Feed) Start(ctx context.Context) error {
	go func() {
		defer close(f.ticks)
		for _, t := range f.recorded {
			select {
			case <-ctx.Done():
				return
			case f.ticks <- t:
			}
		}
	}()
	return nil
}

// Stop is a no-op: Start's goroutine exits on its own once the recorded
// slice is exhausted, or on context cancellation.
func (f *Feed) Stop() error { return nil }

// Ticks returns the channel (C)'s consumers read from.
func (f *Feed) Ticks() <-chan domain.Tick { return f.ticks }

// Adapter is a deterministic fill simulator for (H)'s contract: every order
// fills in full at the requested price with no slippage, so a backtest
// isolates strategy-decision quality from execution-model noise.
type Adapter struct {
	orderSeq int
}

// NewAdapter returns a ready backtest Adapter.
func NewAdapter() *Adapter { return &Adapter{} }

func (a *Adapter) Mode() string { return "BACKTEST" }

func (a *Adapter) PlaceOrder(ctx context.Context, tokenID string, side domain.OrderSide, price, size decimal.Decimal) (*execution.OrderResult, error) {
	a.orderSeq++
	return &execution.OrderResult{
		OrderID: tokenID + "-" + string(side) + "-" + strconv.Itoa(a.orderSeq),
		Status:  execution.OrderStatusMatched,
		Making:  price,
		Taking:  size,
	}, nil
}

func (a *Adapter) Cancel(ctx context.Context, orderID string) error {
	// Every backtest fill is immediate and final; there is nothing in
	// flight to cancel.
	return nil
}

func (a *Adapter) GetBalance(ctx context.Context, tokenID string) (*execution.Balance, error) {
	return &execution.Balance{TokenID: tokenID, Amount: decimal.Zero}, nil
}

// Ensure Adapter satisfies (H)'s contract at compile time.
var _ execution.Adapter = (*Adapter)(nil)
