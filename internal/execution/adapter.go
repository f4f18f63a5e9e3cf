// Package execution defines the venue-agnostic order contract (spec.md
// §4.H) and ships two implementations: a deterministic paper simulator
// (execution/paper) and a live Polymarket CLOB adapter
// (execution/polymarket).
package execution

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/domain"
)

// OrderStatus is the lifecycle state of a submitted order.
type OrderStatus string

const (
	OrderStatusLive     OrderStatus = "live"
	OrderStatusMatched  OrderStatus = "matched"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRejected OrderStatus = "rejected"
)

// OrderResult is the return value of PlaceOrder.
type OrderResult struct {
	OrderID   string
	Status    OrderStatus
	Making    decimal.Decimal
	Taking    decimal.Decimal
	TxHashes  []string
}

// Balance is the return value of GetBalance.
type Balance struct {
	TokenID string
	Amount  decimal.Decimal
}

// Adapter is the contract every execution venue satisfies (spec.md §4.H):
// place/cancel orders and query balance, identically in paper and live
// mode so the orchestrator never branches on mode beyond gate (f).
type Adapter interface {
	PlaceOrder(ctx context.Context, tokenID string, side domain.OrderSide, price, size decimal.Decimal) (*OrderResult, error)
	Cancel(ctx context.Context, orderID string) error
	GetBalance(ctx context.Context, tokenID string) (*Balance, error)
	// Mode reports which trading mode this adapter implements, for gate (f).
	Mode() string
}
