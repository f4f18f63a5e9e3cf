// Package clobbook is a websocket subscriber for a CLOB order-book feed:
// same dial/read/reconnect shape as feeds/exchange, different message
// schema (book snapshot/delta instead of last-trade).
package clobbook

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

// bookMessage is the wire shape of one order-book snapshot or delta.
type bookMessage struct {
	TokenID  string `json:"asset_id"`
	Sequence int64  `json:"sequence"`
	IsDelta  bool   `json:"is_delta"`
	BestBid  string `json:"best_bid"`
	BidSize  string `json:"bid_size"`
	BestAsk  string `json:"best_ask"`
	AskSize  string `json:"ask_size"`
}

// Subscriber is a long-lived websocket connection to a CLOB's book stream
// for a fixed set of token ids.
type Subscriber struct {
	url      string
	tokenIDs []string
	log      zerolog.Logger
	backoff  feeds.Backoff

	mu      sync.RWMutex
	conn    *websocket.Conn
	stopped bool

	ticks chan domain.Tick
	done  chan struct{}
}

// New returns a subscriber for tokenIDs' order books at url.
func New(url string, tokenIDs []string, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		url:      url,
		tokenIDs: tokenIDs,
		log:      log.With().Str("component", "feeds.clobbook").Logger(),
		backoff:  feeds.DefaultBackoff(),
		ticks:    make(chan domain.Tick, 256),
		done:     make(chan struct{}),
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
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
	<-s.done
	close(s.ticks)
	return nil
}

func (s *Subscriber) runOnce(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial CLOB book feed: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	data, err := json.Marshal(map[string]any{"assets_ids": s.tokenIDs, "type": "book"})
	if err != nil {
		return fmt.Errorf("failed to marshal book subscribe message: %w", err)
	}
	writeCtx, writeCancel := context.WithTimeout(ctx, 10*time.Second)
	defer writeCancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		return fmt.Errorf("failed to send book subscribe message: %w", err)
	}

	s.log.Info().Strs("token_ids", s.tokenIDs).Msg("CLOB book feed connected")
	return s.readLoop(ctx, conn)
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
			return fmt.Errorf("CLOB book feed read error: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg bookMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warn().Err(err).Str("message", string(raw)).Msg("failed to parse book message, skipping")
			continue
		}

		update, err := toBookUpdate(msg)
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to parse book update fields, skipping")
			continue
		}

		tick := domain.Tick{
			Source:      domain.SourceCLOBBook,
			ReceivedAt:  time.Now(),
			IsBookDelta: true,
			BookUpdate:  &update,
		}
		select {
		case s.ticks <- tick:
		default:
			s.log.Warn().Str("token_id", msg.TokenID).Msg("tick channel full, dropping oldest")
			select {
			case <-s.ticks:
			default:
			}
			s.ticks <- tick
		}
	}
}

func toBookUpdate(msg bookMessage) (domain.BookUpdate, error) {
	bid, err := decimal.NewFromString(msg.BestBid)
	if err != nil {
		return domain.BookUpdate{}, fmt.Errorf("invalid best_bid: %w", err)
	}
	bidSize, err := decimal.NewFromString(msg.BidSize)
	if err != nil {
		return domain.BookUpdate{}, fmt.Errorf("invalid bid_size: %w", err)
	}
	ask, err := decimal.NewFromString(msg.BestAsk)
	if err != nil {
		return domain.BookUpdate{}, fmt.Errorf("invalid best_ask: %w", err)
	}
	askSize, err := decimal.NewFromString(msg.AskSize)
	if err != nil {
		return domain.BookUpdate{}, fmt.Errorf("invalid ask_size: %w", err)
	}
	return domain.BookUpdate{
		TokenID:  msg.TokenID,
		Sequence: msg.Sequence,
		IsDelta:  msg.IsDelta,
		BestBid:  bid,
		BidSize:  bidSize,
		BestAsk:  ask,
		AskSize:  askSize,
	}, nil
}
