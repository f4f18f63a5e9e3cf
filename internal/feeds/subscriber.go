package feeds

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/strikewindow/internal/domain"
)

// Subscriber is the contract every price/book feed implements (spec.md
// §4.C). Ticks is a single long-lived channel for the subscriber's
// lifetime; it is closed after Stop returns.
type Subscriber interface {
	Start(ctx context.Context) error
	Stop() error
	Ticks() <-chan domain.Tick
}

// Dial is one connect attempt. It blocks until the connection ends (error,
// context cancellation, or graceful close) and returns the reason.
type Dial func(ctx context.Context) error

// RunWithReconnect drives dial in a loop with exponential backoff between
// attempts, stopping when ctx is cancelled. It generalizes the teacher's
// MarketStatusWebSocket.reconnectLoop into a transport-agnostic driver so
// every subscriber (websocket, SSE, periodic pull) shares one policy.
func RunWithReconnect(ctx context.Context, backoff Backoff, dial Dial, log zerolog.Logger) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		err := dial(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			attempt = 0
			continue
		}

		attempt++
		delay := backoff.Delay(attempt)
		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("feed disconnected, reconnecting")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}
