// Package contracts implements the orchestrator's two feed-layer
// collaborators (internal/orchestrator.ContractResolver and
// internal/orchestrator.SettlementSource) on top of each symbol's
// internal/marketstate.Store.
package contracts

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/codes"
	"github.com/aristath/strikewindow/internal/domain"
	"github.com/aristath/strikewindow/internal/marketstate"
)

// WindowCreator is the persistence contract the resolver needs, satisfied
// by internal/database.WindowStore.
type WindowCreator interface {
	Create(w domain.Window) error
}

// Resolver resolves a window's strike price from the oracle reading each
// symbol's marketstate.Store already tracks, and reports the same reading
// back as the settlement price once the window closes. Token ids are
// derived deterministically from the window id rather than looked up
// against a live CLOB market-discovery endpoint — see DESIGN.md for why
// that lookup is out of scope here.
type Resolver struct {
	markets map[string]*marketstate.Store
	windows WindowCreator
	log     zerolog.Logger
}

// New builds a Resolver over one marketstate.Store per manifest symbol.
func New(markets map[string]*marketstate.Store, windows WindowCreator, log zerolog.Logger) *Resolver {
	return &Resolver{
		markets: markets,
		windows: windows,
		log:     log.With().Str("component", "contract_resolver").Logger(),
	}
}

// ResolveContract implements internal/orchestrator.ContractResolver: it
// returns ok=false until the oracle has published at least one valid
// reading for symbol, at which point that reading becomes the window's
// strike (spec.md §6 "Strike: the reference price captured at window
// open").
func (r *Resolver) ResolveContract(symbol string, openEpoch int64) (*domain.Window, bool, error) {
	store, ok := r.markets[symbol]
	if !ok {
		return nil, false, codes.New(codes.ConfigInvalid, "no market state store configured for symbol", map[string]any{"symbol": symbol})
	}

	strike, ok := r.oracleReading(store)
	if !ok {
		return nil, false, nil
	}

	windowID := domain.WindowName(symbol, openEpoch)
	window := domain.Window{
		WindowID:    windowID,
		Symbol:      symbol,
		OpenEpoch:   openEpoch,
		CloseEpoch:  openEpoch + domain.WindowSeconds,
		StrikePrice: strike,
		UpTokenID:   windowID + "-UP",
		DownTokenID: windowID + "-DOWN",
	}

	if err := r.windows.Create(window); err != nil {
		return nil, false, err
	}
	return &window, true, nil
}

// SettlementPrice implements internal/orchestrator.SettlementSource: the
// oracle's latest reading for symbol once it is valid. windowID is accepted
// to satisfy the interface shape but unused — this process tracks only one
// live window per symbol at a time.
func (r *Resolver) SettlementPrice(symbol, windowID string) (decimal.Decimal, bool) {
	store, ok := r.markets[symbol]
	if !ok {
		return decimal.Zero, false
	}
	return r.oracleReading(store)
}

func (r *Resolver) oracleReading(store *marketstate.Store) (decimal.Decimal, bool) {
	snap := store.Snapshot(time.Now())
	if reading, ok := snap.Sources[domain.SourceOraclePush]; ok && reading.Valid {
		return reading.Price, true
	}
	if reading, ok := snap.Sources[domain.SourceOracleSSE]; ok && reading.Valid {
		return reading.Price, true
	}
	return decimal.Zero, false
}
