// Package windowclock drives the 15-minute window lifecycle state machine
// (spec.md §4.E) as a pure function of wall-clock time, so a process that
// sleeps across a boundary replays every intermediate transition in order
// instead of jumping states.
package windowclock

import (
	"time"

	"github.com/aristath/strikewindow/internal/domain"
)

// State is one stage of a single window's lifecycle.
type State string

const (
	StateIdle        State = "idle"
	StateDiscovering State = "discovering"
	StateActive      State = "active"
	StateNearExpiry  State = "near_expiry"
	StateSettling    State = "settling"
	StateSettled     State = "settled"
)

// Event is one state transition the clock emits for a tick.
type Event struct {
	From      State
	To        State
	OpenEpoch int64
	At        time.Time
}

// Clock tracks one symbol's window lifecycle. It is not safe for concurrent
// use by multiple goroutines without external synchronization; the
// orchestrator owns one Clock per symbol and drives it from a single ticker
// goroutine.
type Clock struct {
	symbol             string
	minTimeRemaining   time.Duration
	settlementGrace    time.Duration
	state              State
	openEpoch          int64
	contractResolved   bool
	settlementReceived bool
}

// New returns a Clock starting in state idle for symbol.
func New(symbol string, minTimeRemaining, settlementGrace time.Duration) *Clock {
	return &Clock{
		symbol:           symbol,
		minTimeRemaining: minTimeRemaining,
		settlementGrace:  settlementGrace,
		state:            StateIdle,
	}
}

// State returns the clock's current state.
func (c *Clock) State() State { return c.state }

// OpenEpoch returns the open_epoch of the window the clock currently tracks.
func (c *Clock) OpenEpoch() int64 { return c.openEpoch }

// ResolveContract marks the current window's contract metadata (strike,
// token ids) as resolved, allowing discovering -> active.
func (c *Clock) ResolveContract() { c.contractResolved = true }

// ReceiveSettlement marks the settlement oracle price as received, allowing
// settling -> settled on the next tick.
func (c *Clock) ReceiveSettlement() { c.settlementReceived = true }

// Tick advances the clock to reflect now, returning every intermediate
// transition in order. The clock never skips a state even if now jumps past
// several boundaries (e.g. after a process sleep). A tick that reaches
// settled stops there; the move to the next window's discovering state
// happens on a later tick.
func (c *Clock) Tick(now time.Time) []Event {
	var events []Event

	currentOpenEpoch := domain.OpenEpochFor(now)

	if c.state == StateIdle {
		c.openEpoch = currentOpenEpoch
		c.contractResolved = false
		c.settlementReceived = false
		events = append(events, c.transition(StateDiscovering, now))
	}

	for {
		advanced := c.step(now, currentOpenEpoch)
		if advanced == nil {
			break
		}
		events = append(events, *advanced)
		if advanced.To == StateSettled {
			break
		}
	}

	return events
}

// closeEpoch returns the close time of the window the clock is tracking.
func (c *Clock) closeEpoch() int64 { return c.openEpoch + domain.WindowSeconds }

// step attempts exactly one state transition given now and the
// wall-clock-derived current window's open epoch; it returns nil when no
// further transition is due.
func (c *Clock) step(now time.Time, currentOpenEpoch int64) *Event {
	switch c.state {
	case StateDiscovering:
		if c.contractResolved {
			ev := c.transition(StateActive, now)
			return &ev
		}
		return nil

	case StateActive:
		nearExpiryAt := c.closeEpoch() - int64(c.minTimeRemaining/time.Second)
		if now.Unix() >= nearExpiryAt {
			ev := c.transition(StateNearExpiry, now)
			return &ev
		}
		return nil

	case StateNearExpiry:
		if now.Unix() >= c.closeEpoch() {
			ev := c.transition(StateSettling, now)
			return &ev
		}
		return nil

	case StateSettling:
		graceDeadline := c.closeEpoch() + int64(c.settlementGrace/time.Second)
		if c.settlementReceived || now.Unix() >= graceDeadline {
			ev := c.transition(StateSettled, now)
			return &ev
		}
		return nil

	case StateSettled:
		if currentOpenEpoch != c.openEpoch {
			c.openEpoch = currentOpenEpoch
			c.contractResolved = false
			c.settlementReceived = false
			ev := c.transition(StateDiscovering, now)
			return &ev
		}
		return nil

	default:
		return nil
	}
}

func (c *Clock) transition(to State, at time.Time) Event {
	ev := Event{From: c.state, To: to, OpenEpoch: c.openEpoch, At: at}
	c.state = to
	return ev
}

// WindowID returns the wire-level identifier of the window this clock is
// currently tracking.
func (c *Clock) WindowID() string {
	return domain.WindowName(c.symbol, c.openEpoch)
}
