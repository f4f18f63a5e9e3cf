// Package domain holds the core data model shared by every component:
// windows, ticks, snapshots, signals, positions and the process-wide
// safety state. It has no infrastructure dependencies.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WindowSeconds is the fixed width of a strike window (15 minutes).
const WindowSeconds = 900

// TickSource identifies where a price tick originated.
type TickSource string

const (
	SourceExchange   TickSource = "exchange"
	SourceOraclePush TickSource = "oracle_push"
	SourceOracleSSE  TickSource = "oracle_sse"
	SourceCLOBBook   TickSource = "clob_book"
)

// Direction is the side of the market a signal fades.
type Direction string

const (
	DirectionFadeUp   Direction = "fade_up"
	DirectionFadeDown Direction = "fade_down"
)

// OrderSide is the side of an order sent to the execution adapter.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// SettlementOutcome is which side of the strike the window settled on.
type SettlementOutcome string

const (
	OutcomeUp   SettlementOutcome = "up"
	OutcomeDown SettlementOutcome = "down"
)

// PositionStatus tracks a position's lifecycle.
type PositionStatus string

const (
	PositionOpen    PositionStatus = "open"
	PositionClosing PositionStatus = "closing"
	PositionClosed  PositionStatus = "closed"
)

// Window is a single 15-minute binary contract, immutable once created.
type Window struct {
	WindowID    string
	Symbol      string
	OpenEpoch   int64
	CloseEpoch  int64
	StrikePrice decimal.Decimal
	UpTokenID   string
	DownTokenID string
}

// WindowName formats the wire-level window identifier (spec.md §6).
func WindowName(symbol string, openEpoch int64) string {
	return symbol + "-updown-15m-" + itoa(openEpoch)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// OpenEpochFor returns the epoch-aligned window open time for now.
func OpenEpochFor(now time.Time) int64 {
	sec := now.Unix()
	return (sec / WindowSeconds) * WindowSeconds
}

// Tick is a single normalized price or order-book update from a feed.
type Tick struct {
	Source      TickSource
	Symbol      string
	ReceivedAt  time.Time // monotonic local receive time
	Price       decimal.Decimal
	IsBookDelta bool
	BookUpdate  *BookUpdate
}

// BookUpdate carries an order-book snapshot or delta for one token.
type BookUpdate struct {
	TokenID  string
	Sequence int64
	IsDelta  bool
	BestBid  decimal.Decimal
	BidSize  decimal.Decimal
	BestAsk  decimal.Decimal
	AskSize  decimal.Decimal
}

// SourceReading is the last known state for a single feed source.
type SourceReading struct {
	Price        decimal.Decimal
	LastUpdateMs int64
	Valid        bool
}

// BookTop is the best bid/ask for one token at a point in time.
type BookTop struct {
	BestBid decimal.Decimal
	BidSize decimal.Decimal
	BestAsk decimal.Decimal
	AskSize decimal.Decimal
}

// MarketSnapshot is a consistent, point-in-time view of market state for a
// single symbol's current window. Every field is a copy; callers never see
// a half-updated snapshot (spec.md §3 invariant).
type MarketSnapshot struct {
	Symbol        string
	WindowID      string
	Strike        decimal.Decimal
	TakenAt       time.Time
	Sources       map[TickSource]SourceReading
	UpBook        BookTop
	DownBook      BookTop
	Mid           decimal.Decimal
	StalenessMs   map[TickSource]int64
}

// SignalInputs captures the context a strategy saw when it decided to enter.
type SignalInputs struct {
	TimeRemainingMs  int64
	MarketPrice      decimal.Decimal
	UIPrice          decimal.Decimal
	OraclePrice      decimal.Decimal
	OracleStalenessMs int64
	SpreadPct        decimal.Decimal
	Strike           decimal.Decimal
	StalenessScore   float64
}

// Signal is emitted by the orchestrator when a strategy decides to enter.
type Signal struct {
	WindowID     string
	StrategyID   string
	Symbol       string
	Direction    Direction
	Confidence   float64
	TokenID      string
	Side         OrderSide
	Inputs       SignalInputs
	GeneratedAt  time.Time
}

// SignalOutcome augments a Signal with its eventual settlement result.
type SignalOutcome struct {
	Signal
	FinalOraclePrice  decimal.Decimal
	SettlementOutcome SettlementOutcome
	SignalCorrect     int
	EntryPrice        decimal.Decimal
	ExitPrice         decimal.Decimal
	Size              decimal.Decimal
	PnL               decimal.Decimal
	SettledAt         time.Time
	HasOutcome        bool
}

// Position is a held exposure for one (strategy, window).
type Position struct {
	StrategyID string
	WindowID   string
	TokenID    string
	Side       OrderSide
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	EntryTime  time.Time
	Status     PositionStatus
	ExitPrice  decimal.Decimal
	ExitReason string
}

// AutoStopState is the process-wide exposure/P&L/trip state.
type AutoStopState struct {
	TotalExposure    decimal.Decimal
	RealizedPnLToday decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	DrawdownFromHWM  decimal.Decimal
	Tripped          bool
	TrippedReason    string
	UpdatedAt        time.Time
}
