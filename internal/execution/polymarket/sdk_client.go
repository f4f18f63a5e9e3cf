package polymarket

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/domain"
)

// SDKClient is the narrow interface Adapter drives, mirroring the teacher's
// tradernet.SDKClient split (a thin interface between the adapter and the
// wire client, so tests inject a fake instead of hitting the network).
type SDKClient interface {
	SubmitOrder(ctx context.Context, signedOrder SignedOrder) (orderID string, status string, making, taking decimal.Decimal, txHashes []string, err error)
	CancelOrder(ctx context.Context, orderID string) error
	Balance(ctx context.Context, tokenID string) (decimal.Decimal, error)
}

// SignedOrder is the order payload the CLOB REST API expects; SubmitOrder
// implementations are responsible for signing it before transmission.
type SignedOrder struct {
	TokenID string
	Side    domain.OrderSide
	Price   decimal.Decimal
	Size    decimal.Decimal
	Maker   string
}
