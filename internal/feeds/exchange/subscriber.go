// Package exchange is a websocket price-tick subscriber for a spot exchange
// feed, modeled directly on the teacher's MarketStatusWebSocket (dial,
// subscribe, read loop, reconnect-with-backoff), substituting last-trade
// price ticks for market-status messages.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"nhooyr.io/websocket"

	"github.com/aristath/strikewindow/internal/domain"
	"github.com/aristath/strikewindow/internal/feeds"
)

const dialTimeout = 30 * time.Second

// tradeMessage is the wire shape of one last-trade update: ["symbol", "price"].
type tradeMessage struct {
	Symbol string
	Price  string
}

func (m *tradeMessage) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("trade message array too short: expected 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &m.Symbol); err != nil {
		return fmt.Errorf("failed to parse symbol: %w", err)
	}
	if err := json.Unmarshal(raw[1], &m.Price); err != nil {
		return fmt.Errorf("failed to parse price: %w", err)
	}
	return nil
}

// Subscriber is a long-lived websocket connection to a spot exchange's
// last-trade stream for a fixed set of symbols.
type Subscriber struct {
	url     string
	symbols []string
	log     zerolog.Logger
	backoff feeds.Backoff

	mu      sync.RWMutex
	conn    *websocket.Conn
	stopped bool

	ticks chan domain.Tick
	done  chan struct{}
}

// New returns a subscriber that will stream trades for symbols from url
// once Start is called.
func New(url string, symbols []string, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		url:     url,
		symbols: symbols,
		log:     log.With().Str("component", "feeds.exchange").Logger(),
		backoff: feeds.DefaultBackoff(),
		ticks:   make(chan domain.Tick, 256),
		done:    make(chan struct{}),
	}
}

func (s *Subscriber) Ticks() <-chan domain.Tick { return s.ticks }

// Start begins the connect/read/reconnect loop in the background and
// returns nil immediately, without waiting for the first connection attempt.
func (s *Subscriber) Start(ctx context.Context) error {
	go func() {
		defer close(s.done)
		feeds.RunWithReconnect(ctx, s.backoff, s.runOnce, s.log)
	}()
	return nil
}

// Stop closes the active connection and waits for the background loop to
// exit before returning.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	s.stopped = true
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
	<-s.done
	close(s.ticks)
	return nil
}

// runOnce performs one dial, subscribe, and blocking read loop. It returns
// when the connection ends, with the reason as its error (nil on a
// requested stop).
func (s *Subscriber) runOnce(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial exchange feed: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	if err := s.subscribe(ctx, conn); err != nil {
		conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		return err
	}
	s.log.Info().Strs("symbols", s.symbols).Msg("exchange feed connected")

	return s.readLoop(ctx, conn)
}

func (s *Subscriber) subscribe(ctx context.Context, conn *websocket.Conn) error {
	data, err := json.Marshal(s.symbols)
	if err != nil {
		return fmt.Errorf("failed to marshal subscribe message: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}
	return nil
}

func (s *Subscriber) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		s.mu.RLock()
		stopped := s.stopped
		s.mu.RUnlock()
		if stopped {
			return nil
		}

		msgType, raw, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("exchange feed read error: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg tradeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warn().Err(err).Str("message", string(raw)).Msg("failed to parse trade message, skipping")
			continue
		}

		price, err := decimal.NewFromString(msg.Price)
		if err != nil {
			s.log.Warn().Err(err).Str("price", msg.Price).Msg("failed to parse trade price, skipping")
			continue
		}

		tick := domain.Tick{
			Source:     domain.SourceExchange,
			Symbol:     msg.Symbol,
			ReceivedAt: time.Now(),
			Price:      price,
		}
		select {
		case s.ticks <- tick:
		default:
			s.log.Warn().Str("symbol", msg.Symbol).Msg("tick channel full, dropping oldest")
			select {
			case <-s.ticks:
			default:
			}
			s.ticks <- tick
		}
	}
}
