// Package polymarket is the live execution.Adapter for the Polymarket CLOB,
// grounded on the teacher's tradernet.Client wrapping an injectable SDK
// client interface (see sdk_client.go) so tests never touch the network.
package polymarket

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/codes"
	"github.com/aristath/strikewindow/internal/domain"
	"github.com/aristath/strikewindow/internal/execution"
)

// Adapter is the live execution.Adapter. It owns an SDKClient internally,
// the way TradernetBrokerAdapter owns a *tradernet.Client.
type Adapter struct {
	sdk           SDKClient
	funderAddress string
	log           zerolog.Logger
}

var _ execution.Adapter = (*Adapter)(nil)

// New validates credentials with one balance round-trip under a 10s timeout
// (spec.md §4.H) before returning, so a misconfigured live deployment fails
// fast at startup rather than on the first real order.
func New(sdk SDKClient, funderAddress string, log zerolog.Logger) (*Adapter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := sdk.Balance(ctx, ""); err != nil {
		return nil, codes.Wrap(codes.CredentialsMissing, "failed to validate execution venue credentials", err, nil)
	}

	return &Adapter{
		sdk:           sdk,
		funderAddress: funderAddress,
		log:           log.With().Str("component", "polymarket-adapter").Logger(),
	}, nil
}

func (a *Adapter) Mode() string { return "LIVE" }

// PlaceOrder signs the order with the funder key and submits it through the
// SDK client.
func (a *Adapter) PlaceOrder(ctx context.Context, tokenID string, side domain.OrderSide, price, size decimal.Decimal) (*execution.OrderResult, error) {
	order := SignedOrder{
		TokenID: tokenID,
		Side:    side,
		Price:   price,
		Size:    size,
		Maker:   a.funderAddress,
	}

	orderID, status, making, taking, txHashes, err := a.sdk.SubmitOrder(ctx, order)
	if err != nil {
		return nil, codes.Wrap(codes.OrderRejected, "execution venue rejected order", err, map[string]any{
			"token_id": tokenID, "side": string(side),
		})
	}

	return &execution.OrderResult{
		OrderID:  orderID,
		Status:   execution.OrderStatus(status),
		Making:   making,
		Taking:   taking,
		TxHashes: txHashes,
	}, nil
}

func (a *Adapter) Cancel(ctx context.Context, orderID string) error {
	if err := a.sdk.CancelOrder(ctx, orderID); err != nil {
		return codes.Wrap(codes.OrderRejected, "failed to cancel order", err, map[string]any{"order_id": orderID})
	}
	return nil
}

func (a *Adapter) GetBalance(ctx context.Context, tokenID string) (*execution.Balance, error) {
	amount, err := a.sdk.Balance(ctx, tokenID)
	if err != nil {
		return nil, codes.Wrap(codes.OrderRejected, "failed to query balance", err, map[string]any{"token_id": tokenID})
	}
	return &execution.Balance{TokenID: tokenID, Amount: amount}, nil
}
