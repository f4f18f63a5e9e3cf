// Package oraclepush is a periodic-pull oracle price subscriber: a ticker
// fires an HTTP GET on a fixed interval, reusing the same Subscriber
// contract and backoff helper as the other feeds. Grounded on
// internal/queue.Scheduler's ticker/select/stop idiom.
package oraclepush

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/domain"
	"github.com/aristath/strikewindow/internal/feeds"
)

type priceResponse struct {
	Price string `json:"price"`
}

// Subscriber polls url on a fixed interval for symbol's oracle price.
type Subscriber struct {
	url      string
	symbol   string
	interval time.Duration
	log      zerolog.Logger
	backoff  feeds.Backoff
	client   *http.Client

	mu      sync.Mutex
	stopped bool

	ticks chan domain.Tick
	done  chan struct{}
}

// New returns a subscriber polling url every interval for symbol's price.
func New(url, symbol string, interval time.Duration, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		url:      url,
		symbol:   symbol,
		interval: interval,
		log:      log.With().Str("component", "feeds.oraclepush").Logger(),
		backoff:  feeds.DefaultBackoff(),
		client:   &http.Client{Timeout: 10 * time.Second},
		ticks:    make(chan domain.Tick, 256),
		done:     make(chan struct{}),
	}
}

func (s *Subscriber) Ticks() <-chan domain.Tick { return s.ticks }

func (s *Subscriber) Start(ctx context.Context) error {
	go func() {
		defer close(s.done)
		feeds.RunWithReconnect(ctx, s.backoff, s.pollLoop, s.log)
	}()
	return nil
}

func (s *Subscriber) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	<-s.done
	close(s.ticks)
	return nil
}

// pollLoop runs the ticker until a poll fails or ctx is cancelled; a failed
// poll returns an error so RunWithReconnect applies backoff before retrying.
func (s *Subscriber) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Str("symbol", s.symbol).Dur("interval", s.interval).Msg("oracle push feed started")

	for {
		s.mu.Lock()
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.poll(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Subscriber) poll(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build oracle poll request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("oracle poll failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oracle poll returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read oracle poll response: %w", err)
	}

	var parsed priceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		s.log.Warn().Err(err).Str("body", string(body)).Msg("failed to parse oracle poll response, skipping")
		return nil
	}

	price, err := decimal.NewFromString(parsed.Price)
	if err != nil {
		s.log.Warn().Err(err).Str("price", parsed.Price).Msg("failed to parse oracle poll price, skipping")
		return nil
	}

	tick := domain.Tick{
		Source:     domain.SourceOraclePush,
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
	return nil
}
