package orchestrator

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/codes"
	"github.com/aristath/strikewindow/internal/domain"
	"github.com/aristath/strikewindow/internal/outcomes"
)

// WindowStore is the window-row persistence contract settlement needs,
// satisfied by internal/database.WindowStore.
type WindowStore interface {
	Get(windowID string) (*domain.Window, error)
	MarkSettled(windowID string, settledAt time.Time) error
}

// PositionStore is the position-row persistence contract settlement needs,
// satisfied by internal/database.PositionStore.
type PositionStore interface {
	Upsert(p domain.Position) error
	ListOpen() ([]*domain.Position, error)
}

// AutoStopNotifier is the one method the safety layer's auto-stop evaluator
// exposes to the orchestrator: feed it every realized fill so it can update
// realized P&L and drawdown from the high-water mark.
type AutoStopNotifier interface {
	RecordFill(pnl decimal.Decimal) error
	Tripped() bool
}

// settleWindow finalizes every held position for windowID once its
// settlement oracle price is known (spec.md §4.G "Settlement"): computes
// each position's binary payoff, records the outcome via (I), notifies (J),
// and marks the position and window closed/settled in storage.
func settleWindow(
	windowID string,
	finalOraclePrice decimal.Decimal,
	window *domain.Window,
	heldPositions []*domain.Position,
	positions PositionStore,
	windows WindowStore,
	outcomesLogger *outcomes.Logger,
	autoStop AutoStopNotifier,
	settledAt time.Time,
	log zerolog.Logger,
) error {
	if len(heldPositions) == 0 {
		return windows.MarkSettled(windowID, settledAt)
	}

	for _, pos := range heldPositions {
		if pos.Status == domain.PositionClosed {
			continue
		}

		exitPrice := payoutPrice(pos.TokenID, window, finalOraclePrice)

		result, err := outcomesLogger.Settle(windowID, pos.StrategyID, finalOraclePrice, window.StrikePrice, pos.EntryPrice, exitPrice, pos.Size, settledAt)
		if err != nil {
			return codes.Wrap(codes.SettlementUnresolved, "failed to record settlement outcome", err, map[string]any{
				"window_id": windowID, "strategy_id": pos.StrategyID,
			})
		}

		pos.Status = domain.PositionClosed
		pos.ExitPrice = exitPrice
		pos.ExitReason = "settled"
		if err := positions.Upsert(*pos); err != nil {
			return codes.Wrap(codes.DatabaseTransient, "failed to persist settled position", err, map[string]any{
				"window_id": windowID, "strategy_id": pos.StrategyID,
			})
		}

		if result.Updated && autoStop != nil {
			if err := autoStop.RecordFill(result.Outcome.PnL); err != nil {
				log.Error().Err(err).Str("window_id", windowID).Str("strategy_id", pos.StrategyID).
					Msg("auto-stop failed to record settled fill")
			}
		}

		log.Info().Str("window_id", windowID).Str("strategy_id", pos.StrategyID).
			Bool("correct", result.Outcome.SignalCorrect == 1).
			Str("pnl", result.Outcome.PnL.String()).
			Msg("position settled")
	}

	return windows.MarkSettled(windowID, settledAt)
}

// payoutPrice returns the binary settlement price a held token realizes:
// 1.0 if the window settled on the side the held token represents, 0.0
// otherwise (spec.md §4.G "binary: 1.0 if the held side matches the
// settlement outcome").
func payoutPrice(heldTokenID string, window *domain.Window, finalOraclePrice decimal.Decimal) decimal.Decimal {
	settledUp := finalOraclePrice.GreaterThanOrEqual(window.StrikePrice)
	heldUp := heldTokenID == window.UpTokenID
	if settledUp == heldUp {
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}
