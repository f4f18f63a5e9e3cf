package polymarket

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSDK struct {
	balance    decimal.Decimal
	balanceErr error
	orderID    string
	orderErr   error
	canceled   []string
}

func (f *fakeSDK) SubmitOrder(ctx context.Context, order SignedOrder) (string, string, decimal.Decimal, decimal.Decimal, []string, error) {
	if f.orderErr != nil {
		return "", "", decimal.Zero, decimal.Zero, nil, f.orderErr
	}
	return f.orderID, "matched", order.Size, order.Size, nil, nil
}

func (f *fakeSDK) CancelOrder(ctx context.Context, orderID string) error {
	f.canceled = append(f.canceled, orderID)
	return nil
}

func (f *fakeSDK) Balance(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	return f.balance, f.balanceErr
}

func TestNew_ValidatesCredentialsWithBalanceRoundTrip(t *testing.T) {
	sdk := &fakeSDK{balance: decimal.NewFromInt(100)}
	adapter, err := New(sdk, "0xfunder", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "LIVE", adapter.Mode())
}

func TestNew_FailsWhenBalanceCheckErrors(t *testing.T) {
	sdk := &fakeSDK{balanceErr: assert.AnError}
	_, err := New(sdk, "0xfunder", zerolog.Nop())
	require.Error(t, err)
}

func TestAdapter_PlaceOrderReturnsSDKResult(t *testing.T) {
	sdk := &fakeSDK{balance: decimal.NewFromInt(100), orderID: "order-1"}
	adapter, err := New(sdk, "0xfunder", zerolog.Nop())
	require.NoError(t, err)

	result, err := adapter.PlaceOrder(context.Background(), "up-token", "buy", decimal.NewFromFloat(0.5), decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, "order-1", result.OrderID)
}

func TestAdapter_PlaceOrderWrapsSDKError(t *testing.T) {
	sdk := &fakeSDK{balance: decimal.NewFromInt(100), orderErr: assert.AnError}
	adapter, err := New(sdk, "0xfunder", zerolog.Nop())
	require.NoError(t, err)

	_, err = adapter.PlaceOrder(context.Background(), "up-token", "buy", decimal.NewFromFloat(0.5), decimal.NewFromInt(10))
	require.Error(t, err)
}

func TestAdapter_CancelDelegatesToSDK(t *testing.T) {
	sdk := &fakeSDK{balance: decimal.NewFromInt(100)}
	adapter, err := New(sdk, "0xfunder", zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, adapter.Cancel(context.Background(), "order-1"))
	assert.Equal(t, []string{"order-1"}, sdk.canceled)
}
