package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/codes"
	"github.com/aristath/strikewindow/internal/domain"
)

// AutoStopStore persists the single-row process-wide safety state
// (internal/domain.AutoStopState). The safety task is the sole writer
// (spec.md §5 shared state policy).
type AutoStopStore struct {
	gw *Gateway
}

func NewAutoStopStore(gw *Gateway) *AutoStopStore {
	return &AutoStopStore{gw: gw}
}

// Load returns the persisted state, or a zero-value untripped state if no
// row exists yet (first run).
func (s *AutoStopStore) Load() (domain.AutoStopState, error) {
	var state domain.AutoStopState
	found := false
	err := s.gw.Read(context.Background(), func(ctx context.Context, pool pgxPool) error {
		row := pool.QueryRow(ctx, `
			SELECT total_exposure, realized_pnl_today, unrealized_pnl, drawdown_from_hwm,
			       tripped, tripped_reason, updated_at
			FROM auto_stop_state WHERE id = 1`)
		var (
			totalStr, realizedStr, unrealizedStr, drawdownStr, reason string
			tripped                                                   bool
			updatedAtMs                                               int64
		)
		err := row.Scan(&totalStr, &realizedStr, &unrealizedStr, &drawdownStr, &tripped, &reason, &updatedAtMs)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		found = true

		total, err := decimal.NewFromString(totalStr)
		if err != nil {
			return codes.Wrap(codes.DatabaseFatal, "stored total_exposure is not a valid decimal", err, nil)
		}
		realized, err := decimal.NewFromString(realizedStr)
		if err != nil {
			return codes.Wrap(codes.DatabaseFatal, "stored realized_pnl_today is not a valid decimal", err, nil)
		}
		unrealized, err := decimal.NewFromString(unrealizedStr)
		if err != nil {
			return codes.Wrap(codes.DatabaseFatal, "stored unrealized_pnl is not a valid decimal", err, nil)
		}
		drawdown, err := decimal.NewFromString(drawdownStr)
		if err != nil {
			return codes.Wrap(codes.DatabaseFatal, "stored drawdown_from_hwm is not a valid decimal", err, nil)
		}

		state = domain.AutoStopState{
			TotalExposure:    total,
			RealizedPnLToday: realized,
			UnrealizedPnL:    unrealized,
			DrawdownFromHWM:  drawdown,
			Tripped:          tripped,
			TrippedReason:    reason,
			UpdatedAt:        msToTime(updatedAtMs),
		}
		return nil
	})
	if err != nil {
		return domain.AutoStopState{}, err
	}
	if !found {
		return domain.AutoStopState{
			TotalExposure:    decimal.Zero,
			RealizedPnLToday: decimal.Zero,
			UnrealizedPnL:    decimal.Zero,
			DrawdownFromHWM:  decimal.Zero,
			UpdatedAt:        time.Now().UTC(),
		}, nil
	}
	return state, nil
}

// Save upserts the single state row.
func (s *AutoStopStore) Save(state domain.AutoStopState) error {
	return s.gw.Write(context.Background(), func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), `
			INSERT INTO auto_stop_state (id, total_exposure, realized_pnl_today, unrealized_pnl, drawdown_from_hwm, tripped, tripped_reason, updated_at)
			VALUES (1, $1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				total_exposure = excluded.total_exposure,
				realized_pnl_today = excluded.realized_pnl_today,
				unrealized_pnl = excluded.unrealized_pnl,
				drawdown_from_hwm = excluded.drawdown_from_hwm,
				tripped = excluded.tripped,
				tripped_reason = excluded.tripped_reason,
				updated_at = excluded.updated_at`,
			state.TotalExposure.String(), state.RealizedPnLToday.String(), state.UnrealizedPnL.String(),
			state.DrawdownFromHWM.String(), state.Tripped, state.TrippedReason, state.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return codes.Wrap(codes.DatabaseTransient, "failed to save auto-stop state", err, nil)
		}
		return nil
	})
}
