// Package oraclesse reads a Server-Sent-Events oracle price stream. It
// shares the Start/backoff/Stop lifecycle contract of the websocket
// subscribers, substituting an SSE transport: standard library only
// (net/http, bufio) since no pack dependency offers an SSE client and
// nhooyr.io/websocket does not apply to a non-websocket transport.
package oraclesse

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/domain"
	"github.com/aristath/strikewindow/internal/feeds"
)

// Subscriber streams oracle price updates over text/event-stream.
type Subscriber struct {
	url    string
	symbol string
	log    zerolog.Logger
	backoff feeds.Backoff
	client  *http.Client

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc

	ticks chan domain.Tick
	done  chan struct{}
}

// New returns a subscriber streaming symbol's oracle price from url.
func New(url, symbol string, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		url:     url,
		symbol:  symbol,
		log:     log.With().Str("component", "feeds.oraclesse").Logger(),
		backoff: feeds.DefaultBackoff(),
		client:  &http.Client{},
		ticks:   make(chan domain.Tick, 256),
		done:    make(chan struct{}),
	}
}

func (s *Subscriber) Ticks() <-chan domain.Tick { return s.ticks }

func (s *Subscriber) Start(ctx context.Context) error {
	go func() {
		defer close(s.done)
		feeds.RunWithReconnect(ctx, s.backoff, s.runOnce, s.log)
	}()
	return nil
}

func (s *Subscriber) Stop() error {
	s.mu.Lock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.done
	close(s.ticks)
	return nil
}

func (s *Subscriber) runOnce(ctx context.Context) error {
	reqCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build SSE request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open SSE stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SSE stream returned status %d", resp.StatusCode)
	}

	s.log.Info().Str("symbol", s.symbol).Msg("oracle SSE feed connected")
	return s.readLoop(resp)
}

// readLoop parses text/event-stream framing: lines beginning "data: " carry
// a payload, and a blank line ends one event.
func (s *Subscriber) readLoop(resp *http.Response) error {
	scanner := bufio.NewScanner(resp.Body)
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(dataLines) > 0 {
				s.handleEvent(strings.Join(dataLines, "\n"))
				dataLines = nil
			}
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// comment or other SSE field; ignored
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("SSE read error: %w", err)
	}
	return nil
}

func (s *Subscriber) handleEvent(payload string) {
	price, err := decimal.NewFromString(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("payload", payload).Msg("failed to parse oracle SSE price, skipping")
		return
	}

	tick := domain.Tick{
		Source:     domain.SourceOracleSSE,
		Symbol:     s.symbol,
		ReceivedAt: time.Now(),
		Price:      price,
	}
	select {
	case s.ticks <- tick:
	default:
		s.log.Warn().Msg("tick channel full, dropping oldest")
		select {
		case <-s.ticks:
		default:
		}
		s.ticks <- tick
	}
}
