package paper

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/strikewindow/internal/domain"
	"github.com/aristath/strikewindow/internal/execution"
)

type fakeBooks struct {
	books map[string]domain.BookTop
}

func (f fakeBooks) BookFor(tokenID string) (domain.BookTop, bool) {
	b, ok := f.books[tokenID]
	return b, ok
}

func TestSimulator_PlaceOrderFillsAtTopOfBookWithinDepth(t *testing.T) {
	books := fakeBooks{books: map[string]domain.BookTop{
		"up-token": {BestBid: decimal.NewFromFloat(0.48), BidSize: decimal.NewFromInt(100), BestAsk: decimal.NewFromFloat(0.52), AskSize: decimal.NewFromInt(100)},
	}}
	sim := New(books, decimal.NewFromInt(1000), DefaultSlippage())

	result, err := sim.PlaceOrder(context.Background(), "up-token", domain.SideBuy, decimal.NewFromFloat(0.52), decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, execution.OrderStatusMatched, result.Status)

	bal, err := sim.GetBalance(context.Background(), "USDC")
	require.NoError(t, err)
	assert.True(t, bal.Amount.LessThan(decimal.NewFromInt(1000)))
}

func TestSimulator_PlaceOrderAppliesSlippageBeyondDepth(t *testing.T) {
	books := fakeBooks{books: map[string]domain.BookTop{
		"up-token": {BestBid: decimal.NewFromFloat(0.48), BidSize: decimal.NewFromInt(5), BestAsk: decimal.NewFromFloat(0.52), AskSize: decimal.NewFromInt(5)},
	}}
	sim := New(books, decimal.NewFromInt(10000), DefaultSlippage())

	result, err := sim.PlaceOrder(context.Background(), "up-token", domain.SideBuy, decimal.NewFromFloat(0.52), decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Equal(t, decimal.NewFromInt(50), result.Taking)
}

func TestSimulator_PlaceOrderRejectsInsufficientBalance(t *testing.T) {
	books := fakeBooks{books: map[string]domain.BookTop{
		"up-token": {BestBid: decimal.NewFromFloat(0.48), BidSize: decimal.NewFromInt(100), BestAsk: decimal.NewFromFloat(0.52), AskSize: decimal.NewFromInt(100)},
	}}
	sim := New(books, decimal.NewFromInt(1), DefaultSlippage())

	_, err := sim.PlaceOrder(context.Background(), "up-token", domain.SideBuy, decimal.NewFromFloat(0.52), decimal.NewFromInt(10))
	require.Error(t, err)
}

func TestSimulator_PlaceOrderRejectsUnknownToken(t *testing.T) {
	sim := New(fakeBooks{books: map[string]domain.BookTop{}}, decimal.NewFromInt(1000), DefaultSlippage())

	_, err := sim.PlaceOrder(context.Background(), "missing-token", domain.SideBuy, decimal.NewFromFloat(0.5), decimal.NewFromInt(1))
	require.Error(t, err)
}

func TestSimulator_CancelMarksOrderCanceled(t *testing.T) {
	books := fakeBooks{books: map[string]domain.BookTop{
		"up-token": {BestBid: decimal.NewFromFloat(0.48), BidSize: decimal.NewFromInt(100), BestAsk: decimal.NewFromFloat(0.52), AskSize: decimal.NewFromInt(100)},
	}}
	sim := New(books, decimal.NewFromInt(1000), DefaultSlippage())

	result, err := sim.PlaceOrder(context.Background(), "up-token", domain.SideBuy, decimal.NewFromFloat(0.52), decimal.NewFromInt(1))
	require.NoError(t, err)

	require.NoError(t, sim.Cancel(context.Background(), result.OrderID))

	err = sim.Cancel(context.Background(), "nonexistent")
	require.Error(t, err)
}
