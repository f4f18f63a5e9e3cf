package windowclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alignedStart() time.Time {
	// A time whose Unix seconds is already a multiple of 900.
	return time.Unix(1_700_000_100, 0).UTC()
}

func TestClock_FirstTickEntersDiscovering(t *testing.T) {
	c := New("BTC", 30*time.Second, 10*time.Second)
	events := c.Tick(alignedStart())
	require.Len(t, events, 1)
	assert.Equal(t, StateIdle, events[0].From)
	assert.Equal(t, StateDiscovering, events[0].To)
	assert.Equal(t, StateDiscovering, c.State())
}

func TestClock_AdvancesToActiveOnceContractResolved(t *testing.T) {
	c := New("BTC", 30*time.Second, 10*time.Second)
	start := alignedStart()
	c.Tick(start)

	c.ResolveContract()
	events := c.Tick(start.Add(time.Second))
	require.Len(t, events, 1)
	assert.Equal(t, StateActive, events[0].To)
}

func TestClock_EntersNearExpiryWithinMinTimeRemaining(t *testing.T) {
	minRemaining := 30 * time.Second
	c := New("BTC", minRemaining, 10*time.Second)
	start := alignedStart()
	c.Tick(start)
	c.ResolveContract()
	c.Tick(start.Add(time.Second))

	closeTime := start.Add(900 * time.Second)
	nearExpiryTime := closeTime.Add(-minRemaining)

	events := c.Tick(nearExpiryTime)
	require.Len(t, events, 1)
	assert.Equal(t, StateNearExpiry, events[0].To)
}

func TestClock_SettlesOnReceiptBeforeGraceExpires(t *testing.T) {
	c := New("BTC", 30*time.Second, 10*time.Second)
	start := alignedStart()
	c.Tick(start)
	c.ResolveContract()
	c.Tick(start.Add(time.Second))
	closeTime := start.Add(900 * time.Second)
	c.Tick(closeTime.Add(-29 * time.Second))
	c.Tick(closeTime)

	require.Equal(t, StateSettling, c.State())

	c.ReceiveSettlement()
	events := c.Tick(closeTime.Add(time.Second))
	require.Len(t, events, 1)
	assert.Equal(t, StateSettled, events[0].To)
}

func TestClock_SettlesOnGraceTimeoutWithoutReceipt(t *testing.T) {
	c := New("BTC", 30*time.Second, 10*time.Second)
	start := alignedStart()
	c.Tick(start)
	c.ResolveContract()
	c.Tick(start.Add(time.Second))
	closeTime := start.Add(900 * time.Second)
	c.Tick(closeTime.Add(-29 * time.Second))
	c.Tick(closeTime)

	events := c.Tick(closeTime.Add(11 * time.Second))
	require.Len(t, events, 1)
	assert.Equal(t, StateSettled, events[0].To)
}

func TestClock_SleepAcrossBoundaryReplaysEveryTransitionInOrder(t *testing.T) {
	c := New("BTC", 30*time.Second, 10*time.Second)
	start := alignedStart()
	c.Tick(start)
	c.ResolveContract()
	c.ReceiveSettlement()

	// Jump straight from discovering at window open to well past close +
	// grace, in a single tick — every intermediate state must still appear.
	closeTime := start.Add(900 * time.Second)
	events := c.Tick(closeTime.Add(time.Minute))

	var seen []State
	for _, ev := range events {
		seen = append(seen, ev.To)
	}
	assert.Equal(t, []State{StateActive, StateNearExpiry, StateSettling, StateSettled}, seen)
}

func TestClock_SettledReturnsToDiscoveringOnNextWindow(t *testing.T) {
	c := New("BTC", 30*time.Second, 10*time.Second)
	start := alignedStart()
	c.Tick(start)
	c.ResolveContract()
	c.ReceiveSettlement()
	closeTime := start.Add(900 * time.Second)
	c.Tick(closeTime.Add(time.Minute))
	require.Equal(t, StateSettled, c.State())

	nextWindowStart := start.Add(900 * time.Second)
	events := c.Tick(nextWindowStart)
	require.Len(t, events, 1)
	assert.Equal(t, StateDiscovering, events[0].To)
}

func TestClock_WindowIDReflectsWireFormat(t *testing.T) {
	c := New("BTC", 30*time.Second, 10*time.Second)
	start := alignedStart()
	c.Tick(start)
	assert.Contains(t, c.WindowID(), "BTC-updown-15m-")
}
