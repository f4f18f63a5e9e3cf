// Package paper implements a deterministic execution.Adapter that fills
// orders against the current order book plus a configurable slippage
// model, with no network I/O (spec.md §4.H).
package paper

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/codes"
	"github.com/aristath/strikewindow/internal/domain"
	"github.com/aristath/strikewindow/internal/execution"
)

// BookProvider exposes the current top-of-book for a token, without
// coupling the simulator to internal/marketstate directly.
type BookProvider interface {
	BookFor(tokenID string) (domain.BookTop, bool)
}

// Slippage maps an order's size against available top-of-book liquidity to
// an execution price adjustment. BpsPerExcessUnit is applied per unit of
// size beyond what the book's top level can absorb.
type Slippage struct {
	BpsPerExcessUnit decimal.Decimal
}

// DefaultSlippage is a conservative flat model: 5bps of adverse movement
// per unit of size that exceeds the top-of-book depth.
func DefaultSlippage() Slippage {
	return Slippage{BpsPerExcessUnit: decimal.NewFromFloat(0.0005)}
}

// Simulator is a deterministic paper-trading execution.Adapter.
type Simulator struct {
	books    BookProvider
	slippage Slippage

	mu       sync.Mutex
	balances map[string]decimal.Decimal
	orders   map[string]*execution.OrderResult
}

var _ execution.Adapter = (*Simulator)(nil)

// New returns a Simulator seeded with a USDC balance of startingBalance
// (every token balance starts at zero), reading order books through books.
func New(books BookProvider, startingBalance decimal.Decimal, slippage Slippage) *Simulator {
	return &Simulator{
		books:    books,
		slippage: slippage,
		balances: map[string]decimal.Decimal{"USDC": startingBalance},
		orders:   make(map[string]*execution.OrderResult),
	}
}

func (s *Simulator) Mode() string { return "PAPER" }

// PlaceOrder fills immediately at the book's top-of-book price adjusted for
// slippage beyond the available depth; it never partially fills silently —
// the filled size is always exactly the requested size, adjusted only in
// price, matching the teacher's all-or-nothing order simulation style.
func (s *Simulator) PlaceOrder(ctx context.Context, tokenID string, side domain.OrderSide, price, size decimal.Decimal) (*execution.OrderResult, error) {
	if size.IsZero() || size.IsNegative() {
		return nil, codes.New(codes.OrderRejected, "order size must be positive", map[string]any{"size": size.String()})
	}

	top, found := s.books.BookFor(tokenID)
	if !found {
		return nil, codes.New(codes.OrderRejected, "unknown token for paper fill", map[string]any{"token_id": tokenID})
	}

	fillPrice := s.fillPrice(top, side, size)

	s.mu.Lock()
	defer s.mu.Unlock()

	cost := fillPrice.Mul(size)
	available := s.balances["USDC"]
	if side == domain.SideBuy && available.LessThan(cost) {
		return nil, codes.New(codes.OrderRejected, "insufficient paper balance", map[string]any{
			"required": cost.String(), "available": available.String(),
		})
	}

	if side == domain.SideBuy {
		s.balances["USDC"] = available.Sub(cost)
		s.balances[tokenID] = s.balances[tokenID].Add(size)
	} else {
		s.balances[tokenID] = s.balances[tokenID].Sub(size)
		s.balances["USDC"] = available.Add(cost)
	}

	result := &execution.OrderResult{
		OrderID: uuid.NewString(),
		Status:  execution.OrderStatusMatched,
		Making:  fillPrice,
		Taking:  size,
	}
	s.orders[result.OrderID] = result
	return result, nil
}

// fillPrice applies the slippage model: the book's best ask (buys) or best
// bid (sells) plus BpsPerExcessUnit per unit of size beyond the top level's
// displayed depth, moving adversely to the taker.
func (s *Simulator) fillPrice(top domain.BookTop, side domain.OrderSide, size decimal.Decimal) decimal.Decimal {
	var base, depth decimal.Decimal
	if side == domain.SideBuy {
		base, depth = top.BestAsk, top.AskSize
	} else {
		base, depth = top.BestBid, top.BidSize
	}

	excess := size.Sub(depth)
	if excess.IsNegative() {
		return base
	}

	adjustment := base.Mul(s.slippage.BpsPerExcessUnit).Mul(excess)
	if side == domain.SideBuy {
		return base.Add(adjustment)
	}
	return base.Sub(adjustment)
}

func (s *Simulator) Cancel(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return codes.New(codes.OrderRejected, "unknown order id", map[string]any{"order_id": orderID})
	}
	order.Status = execution.OrderStatusCanceled
	return nil
}

func (s *Simulator) GetBalance(ctx context.Context, tokenID string) (*execution.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &execution.Balance{TokenID: tokenID, Amount: s.balances[tokenID]}, nil
}
