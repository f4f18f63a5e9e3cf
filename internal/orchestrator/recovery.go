package orchestrator

import (
	"github.com/rs/zerolog"

	"github.com/aristath/strikewindow/internal/domain"
)

// positionKey identifies one strategy's position in one window, the same
// granularity gate (e) and the in-flight registry key on.
type positionKey struct {
	StrategyID string
	WindowID   string
}

// recoverPositions splits the open positions already loaded from storage
// into positions to re-bind (their strategy is still active) and orphans
// to mark for graceful exit (spec.md §4.G "Recovery"). Re-binding means
// nothing more than loading it into the orchestrator's in-memory map before
// the first tick is accepted — the position itself is not modified.
func recoverPositions(open []*domain.Position, activeStrategies map[string]bool, log zerolog.Logger) (rebound map[positionKey]*domain.Position, orphans []*domain.Position) {
	rebound = make(map[positionKey]*domain.Position, len(open))

	for _, p := range open {
		key := positionKey{StrategyID: p.StrategyID, WindowID: p.WindowID}
		if activeStrategies[p.StrategyID] {
			rebound[key] = p
			log.Info().Str("strategy_id", p.StrategyID).Str("window_id", p.WindowID).
				Msg("recovered open position")
			continue
		}
		orphans = append(orphans, p)
		log.Warn().Str("strategy_id", p.StrategyID).Str("window_id", p.WindowID).
			Msg("position's strategy is no longer active, marking for graceful exit")
	}

	return rebound, orphans
}
