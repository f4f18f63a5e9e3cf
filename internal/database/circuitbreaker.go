package database

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// breakerState is the circuit breaker's internal state machine.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker trips after a run of consecutive transient failures and
// refuses calls for a cooldown period, then allows a single probe call
// through (half-open) before deciding whether to close or re-open. Grounded
// on the same backoff-with-ceiling shape as feeds.Backoff, applied to query
// retries instead of reconnect attempts.
type CircuitBreaker struct {
	mu sync.Mutex
	log zerolog.Logger

	failureThreshold int
	cooldown         time.Duration

	state       breakerState
	failures    int
	openedAt    time.Time
}

// NewCircuitBreaker builds a breaker that opens after failureThreshold
// consecutive failures and stays open for cooldown before probing again.
func NewCircuitBreaker(failureThreshold int, cooldown time.Duration, log zerolog.Logger) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		state:            breakerClosed,
		log:              log.With().Str("component", "circuit_breaker").Logger(),
	}
}

// Allow reports whether a call may proceed. It transitions open -> half_open
// once the cooldown elapses.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerHalfOpen:
		return true
	case breakerOpen:
		if time.Since(b.openedAt) >= b.cooldown {
			b.transition(breakerHalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != breakerClosed {
		b.transition(breakerClosed)
	}
}

// RecordFailure counts a failure. In half_open, any failure re-opens the
// breaker immediately. In closed, the breaker opens once the threshold is
// reached.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen {
		b.transition(breakerOpen)
		return
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.transition(breakerOpen)
	}
}

// State reports the current state, for health/status reporting.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

// transition must be called with b.mu held.
func (b *CircuitBreaker) transition(to breakerState) {
	from := b.state
	b.state = to
	if to == breakerOpen {
		b.openedAt = time.Now()
	}
	if to == breakerClosed {
		b.failures = 0
	}

	if from == to {
		return
	}
	event := b.log.Info()
	if to == breakerOpen {
		event = b.log.Warn()
	}
	event.Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
}
