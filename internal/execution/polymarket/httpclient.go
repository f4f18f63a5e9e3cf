package polymarket

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/codes"
)

// HTTPClient is the real SDKClient, speaking the Polymarket CLOB REST API
// the way the teacher's tradernet/sdk.Client speaks Freedom24's: a single
// base URL, a bounded-timeout http.Client, and API-key headers derived from
// the process credentials.
type HTTPClient struct {
	baseURL       string
	apiKey        string
	apiSecret     string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	funderAddress string
	httpClient    *http.Client
	log           zerolog.Logger
}

// NewHTTPClient parses the configured credentials and returns a client
// ready to sign and submit orders. privateKeyHex is the funder wallet's
// private key, used by sign to sign a keccak256 digest of the order's
// fields (not an EIP-712 typed-data hash).
func NewHTTPClient(baseURL, apiKey, apiSecret, passphrase, privateKeyHex, funderAddress string, log zerolog.Logger) (*HTTPClient, error) {
	key, err := crypto.HexToECDSA(trimHexPrefix(privateKeyHex))
	if err != nil {
		return nil, codes.Wrap(codes.CredentialsMissing, "failed to parse POLYMARKET_PRIVATE_KEY", err, nil)
	}

	return &HTTPClient{
		baseURL:       baseURL,
		apiKey:        apiKey,
		apiSecret:     apiSecret,
		passphrase:    passphrase,
		privateKey:    key,
		funderAddress: funderAddress,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		log:           log.With().Str("component", "polymarket-sdk").Logger(),
	}, nil
}

// sign produces an ECDSA signature over the order's keccak256 digest using
// the funder's private key, the same crypto.Sign/ecdsa.PrivateKey shape the
// blackholedex example uses for on-chain transaction authorization, applied
// here to an off-chain order payload instead of a transaction.
func (c *HTTPClient) sign(order SignedOrder) ([]byte, error) {
	digest := crypto.Keccak256(
		[]byte(order.TokenID),
		[]byte(order.Side),
		[]byte(order.Price.String()),
		[]byte(order.Size.String()),
		[]byte(order.Maker),
	)
	sig, err := crypto.Sign(digest, c.privateKey)
	if err != nil {
		return nil, codes.Wrap(codes.OrderRejected, "failed to sign order", err, nil)
	}
	return sig, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

type submitOrderRequest struct {
	TokenID   string `json:"token_id"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Maker     string `json:"maker"`
	Signature string `json:"signature"`
}

type submitOrderResponse struct {
	OrderID  string   `json:"order_id"`
	Status   string   `json:"status"`
	Making   string   `json:"making_amount"`
	Taking   string   `json:"taking_amount"`
	TxHashes []string `json:"transaction_hashes,omitempty"`
}

// SubmitOrder signs order with the funder's key and posts it to the CLOB.
func (c *HTTPClient) SubmitOrder(ctx context.Context, order SignedOrder) (string, string, decimal.Decimal, decimal.Decimal, []string, error) {
	signature, err := c.sign(order)
	if err != nil {
		return "", "", decimal.Zero, decimal.Zero, nil, err
	}

	req := submitOrderRequest{
		TokenID:   order.TokenID,
		Side:      string(order.Side),
		Price:     order.Price.String(),
		Size:      order.Size.String(),
		Maker:     order.Maker,
		Signature: fmt.Sprintf("0x%x", signature),
	}

	var resp submitOrderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/order", req, &resp); err != nil {
		return "", "", decimal.Zero, decimal.Zero, nil, err
	}

	making, err := decimal.NewFromString(resp.Making)
	if err != nil {
		making = decimal.Zero
	}
	taking, err := decimal.NewFromString(resp.Taking)
	if err != nil {
		taking = decimal.Zero
	}

	return resp.OrderID, resp.Status, making, taking, resp.TxHashes, nil
}

func (c *HTTPClient) CancelOrder(ctx context.Context, orderID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/order/"+orderID, nil, nil)
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

func (c *HTTPClient) Balance(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	path := "/balance"
	if tokenID != "" {
		path = "/balance?token_id=" + tokenID
	}
	var resp balanceResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	bal, err := decimal.NewFromString(resp.Balance)
	if err != nil {
		return decimal.Zero, codes.Wrap(codes.OrderRejected, "balance response was not a valid decimal", err, nil)
	}
	return bal, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return codes.Wrap(codes.OrderRejected, "failed to encode request", err, nil)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return codes.Wrap(codes.OrderRejected, "failed to build request", err, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY-API-KEY", c.apiKey)
	req.Header.Set("POLY-PASSPHRASE", c.passphrase)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return codes.Wrap(codes.OrderTimeout, "request to execution venue failed", err, map[string]any{"path": path})
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return codes.New(codes.OrderRejected, "execution venue rejected request", map[string]any{
			"status": resp.StatusCode, "path": path,
		})
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return codes.Wrap(codes.OrderRejected, "failed to decode response", err, nil)
	}
	return nil
}
