package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/codes"
	"github.com/aristath/strikewindow/internal/domain"
)

// PositionStore persists positions (internal/domain.Position), one row per
// (strategy, window) exposure.
type PositionStore struct {
	gw *Gateway
}

func NewPositionStore(gw *Gateway) *PositionStore {
	return &PositionStore{gw: gw}
}

func (s *PositionStore) Upsert(p domain.Position) error {
	return s.gw.Write(context.Background(), func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), `
			INSERT INTO positions
				(strategy_id, window_id, token_id, side, size, entry_price, entry_time, status, exit_price, exit_reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (strategy_id, window_id) DO UPDATE SET
				token_id = excluded.token_id,
				side = excluded.side,
				size = excluded.size,
				entry_price = excluded.entry_price,
				entry_time = excluded.entry_time,
				status = excluded.status,
				exit_price = excluded.exit_price,
				exit_reason = excluded.exit_reason`,
			p.StrategyID, p.WindowID, p.TokenID, string(p.Side), p.Size.String(), p.EntryPrice.String(),
			p.EntryTime.UnixMilli(), string(p.Status), p.ExitPrice.String(), p.ExitReason,
		)
		if err != nil {
			return codes.Wrap(codes.DatabaseTransient, "failed to upsert position", err, map[string]any{
				"strategy_id": p.StrategyID, "window_id": p.WindowID,
			})
		}
		return nil
	})
}

func (s *PositionStore) Get(strategyID, windowID string) (*domain.Position, error) {
	var p *domain.Position
	err := s.gw.Read(context.Background(), func(ctx context.Context, pool pgxPool) error {
		row := pool.QueryRow(ctx, `
			SELECT strategy_id, window_id, token_id, side, size, entry_price, entry_time, status, exit_price, exit_reason
			FROM positions WHERE strategy_id = $1 AND window_id = $2`, strategyID, windowID)
		found, err := scanPosition(row)
		if err != nil {
			return err
		}
		p = found
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, codes.New(codes.ComponentNotFound, "position not found", map[string]any{
				"strategy_id": strategyID, "window_id": windowID,
			})
		}
		return nil, err
	}
	return p, nil
}

// ListOpen returns every position not yet closed, for startup recovery.
func (s *PositionStore) ListOpen() ([]*domain.Position, error) {
	var out []*domain.Position
	err := s.gw.Read(context.Background(), func(ctx context.Context, pool pgxPool) error {
		rows, err := pool.Query(ctx, `
			SELECT strategy_id, window_id, token_id, side, size, entry_price, entry_time, status, exit_price, exit_reason
			FROM positions WHERE status != $1 ORDER BY entry_time ASC`, string(domain.PositionClosed))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanPosition(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanPosition(row rowScanner) (*domain.Position, error) {
	var (
		strategyID, windowID, tokenID, side, sizeStr, entryStr, status, exitStr, exitReason string
		entryTimeMs                                                                         int64
	)
	if err := row.Scan(&strategyID, &windowID, &tokenID, &side, &sizeStr, &entryStr, &entryTimeMs, &status, &exitStr, &exitReason); err != nil {
		return nil, err
	}
	size, err := decimal.NewFromString(sizeStr)
	if err != nil {
		return nil, codes.Wrap(codes.DatabaseFatal, "stored size is not a valid decimal", err, nil)
	}
	entry, err := decimal.NewFromString(entryStr)
	if err != nil {
		return nil, codes.Wrap(codes.DatabaseFatal, "stored entry price is not a valid decimal", err, nil)
	}
	exit, err := decimal.NewFromString(exitStr)
	if err != nil {
		return nil, codes.Wrap(codes.DatabaseFatal, "stored exit price is not a valid decimal", err, nil)
	}
	return &domain.Position{
		StrategyID: strategyID,
		WindowID:   windowID,
		TokenID:    tokenID,
		Side:       domain.OrderSide(side),
		Size:       size,
		EntryPrice: entry,
		EntryTime:  msToTime(entryTimeMs),
		Status:     domain.PositionStatus(status),
		ExitPrice:  exit,
		ExitReason: exitReason,
	}, nil
}
