// Package feeds holds one subscriber per upstream price/book source, all
// implementing the shared Subscriber contract (spec.md §4.C): establish a
// connection, normalize every message into a domain.Tick, and reconnect
// with bounded exponential backoff on disconnect.
package feeds

import (
	"math"
	"time"
)

// Backoff computes exponential reconnect delays capped at a ceiling,
// generalized from the teacher's MarketStatusWebSocket.calculateBackoff
// (there fixed at 5s/5min; here configurable so every subscriber shares one
// policy at the spec's 500ms/5s default).
type Backoff struct {
	base time.Duration
	max  time.Duration
}

// NewBackoff returns a Backoff with the given initial delay and ceiling.
func NewBackoff(base, max time.Duration) Backoff {
	return Backoff{base: base, max: max}
}

// DefaultBackoff is the spec's §4.C default: 500ms initial, 5s ceiling.
func DefaultBackoff() Backoff {
	return NewBackoff(500*time.Millisecond, 5*time.Second)
}

// Delay returns the backoff delay for the given 1-indexed attempt number.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(b.base) * math.Pow(2, float64(attempt-1))
	if delay > float64(b.max) {
		delay = float64(b.max)
	}
	return time.Duration(delay)
}
