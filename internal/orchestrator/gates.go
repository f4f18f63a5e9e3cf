package orchestrator

import (
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/codes"
	"github.com/aristath/strikewindow/internal/config"
	"github.com/aristath/strikewindow/internal/domain"
	"github.com/aristath/strikewindow/internal/windowclock"
)

// gateInput carries everything the seven entry gates (spec.md §4.G) need to
// evaluate a candidate signal. Each gate is a pure function of this struct
// so they can be unit tested without a running Orchestrator.
type gateInput struct {
	ClockState        windowclock.State
	ManifestStrategies map[string]bool
	StrategyID        string
	WindowID          string
	AutoStopTripped   bool
	CurrentExposure   decimal.Decimal
	ProposedCost      decimal.Decimal
	MaxExposure       decimal.Decimal
	ExistingPosition  *domain.Position
	AdapterMode       string
	ConfiguredMode    config.Mode
	ProposedSize      decimal.Decimal
	VenueMinimumSize  decimal.Decimal
}

// checkGates runs all seven gates in the order spec.md §4.G lists them,
// returning the first failure.
func checkGates(in gateInput) error {
	if err := gateNotNearExpiry(in); err != nil {
		return err
	}
	if err := gateInManifest(in); err != nil {
		return err
	}
	if err := gateAutoStopNotTripped(in); err != nil {
		return err
	}
	if err := gateExposureWithinLimit(in); err != nil {
		return err
	}
	if err := gateNoExistingPosition(in); err != nil {
		return err
	}
	if err := gateModeMatches(in); err != nil {
		return err
	}
	if err := gateSizeAboveMinimum(in); err != nil {
		return err
	}
	return nil
}

// (a) not in near-expiry substate.
func gateNotNearExpiry(in gateInput) error {
	if in.ClockState == windowclock.StateNearExpiry || in.ClockState == windowclock.StateSettling || in.ClockState == windowclock.StateSettled {
		return codes.New(codes.GateNearExpiry, "window is near expiry or past close", map[string]any{"window_id": in.WindowID, "state": string(in.ClockState)})
	}
	return nil
}

// (b) launch manifest lists this strategy.
func gateInManifest(in gateInput) error {
	if !in.ManifestStrategies[in.StrategyID] {
		return codes.New(codes.GateNotInManifest, "strategy is not listed in the launch manifest", map[string]any{"strategy_id": in.StrategyID})
	}
	return nil
}

// (c) auto-stop not tripped.
func gateAutoStopNotTripped(in gateInput) error {
	if in.AutoStopTripped {
		return codes.New(codes.GateAutoStopTripped, "auto-stop has tripped", nil)
	}
	return nil
}

// (d) total exposure + proposed cost <= max_exposure_dollars.
func gateExposureWithinLimit(in gateInput) error {
	if in.CurrentExposure.Add(in.ProposedCost).GreaterThan(in.MaxExposure) {
		return codes.New(codes.GateExposureExceeded, "proposed order would exceed max exposure", map[string]any{
			"current_exposure": in.CurrentExposure.String(),
			"proposed_cost":     in.ProposedCost.String(),
			"max_exposure":      in.MaxExposure.String(),
		})
	}
	return nil
}

// (e) no existing open position for (strategy_id, window_id).
func gateNoExistingPosition(in gateInput) error {
	if in.ExistingPosition != nil && in.ExistingPosition.Status != domain.PositionClosed {
		return codes.New(codes.GatePositionExists, "a position already exists for this strategy and window", map[string]any{
			"strategy_id": in.StrategyID, "window_id": in.WindowID,
		})
	}
	return nil
}

// (f) paper/live mode matches the execution adapter.
func gateModeMatches(in gateInput) error {
	if in.AdapterMode != string(in.ConfiguredMode) {
		return codes.New(codes.GateModeMismatch, "execution adapter mode does not match configured trading mode", map[string]any{
			"adapter_mode": in.AdapterMode, "configured_mode": string(in.ConfiguredMode),
		})
	}
	return nil
}

// (g) size >= venue minimum.
func gateSizeAboveMinimum(in gateInput) error {
	if in.ProposedSize.LessThan(in.VenueMinimumSize) {
		return codes.New(codes.GateSizeBelowMinimum, "proposed size is below the venue minimum", map[string]any{
			"proposed_size": in.ProposedSize.String(), "venue_minimum": in.VenueMinimumSize.String(),
		})
	}
	return nil
}
