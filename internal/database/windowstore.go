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

// WindowStore persists windows (internal/domain.Window), one row per
// 15-minute contract, immutable except for the settled_at stamp.
type WindowStore struct {
	gw *Gateway
}

func NewWindowStore(gw *Gateway) *WindowStore {
	return &WindowStore{gw: gw}
}

func (s *WindowStore) Create(w domain.Window) error {
	return s.gw.Write(context.Background(), func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), `
			INSERT INTO windows
				(window_id, symbol, open_epoch, close_epoch, strike_price, up_token_id, down_token_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (window_id) DO NOTHING`,
			w.WindowID, w.Symbol, w.OpenEpoch, w.CloseEpoch, w.StrikePrice.String(), w.UpTokenID, w.DownTokenID,
		)
		if err != nil {
			return codes.Wrap(codes.DatabaseTransient, "failed to insert window", err, map[string]any{"window_id": w.WindowID})
		}
		return nil
	})
}

func (s *WindowStore) Get(windowID string) (*domain.Window, error) {
	var w *domain.Window
	err := s.gw.Read(context.Background(), func(ctx context.Context, pool pgxPool) error {
		row := pool.QueryRow(ctx, `
			SELECT window_id, symbol, open_epoch, close_epoch, strike_price, up_token_id, down_token_id
			FROM windows WHERE window_id = $1`, windowID)
		found, err := scanWindow(row)
		if err != nil {
			return err
		}
		w = found
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, codes.New(codes.ComponentNotFound, "window not found", map[string]any{"window_id": windowID})
		}
		return nil, err
	}
	return w, nil
}

func (s *WindowStore) MarkSettled(windowID string, settledAt time.Time) error {
	return s.gw.Write(context.Background(), func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), `UPDATE windows SET settled_at = $1 WHERE window_id = $2`, settledAt.UnixMilli(), windowID)
		if err != nil {
			return codes.Wrap(codes.DatabaseTransient, "failed to mark window settled", err, map[string]any{"window_id": windowID})
		}
		return nil
	})
}

// ListUnsettled returns windows whose close_epoch has passed but have no
// settled_at stamp, for startup recovery (spec.md §4.G).
func (s *WindowStore) ListUnsettled(asOf time.Time) ([]*domain.Window, error) {
	var out []*domain.Window
	err := s.gw.Read(context.Background(), func(ctx context.Context, pool pgxPool) error {
		rows, err := pool.Query(ctx, `
			SELECT window_id, symbol, open_epoch, close_epoch, strike_price, up_token_id, down_token_id
			FROM windows WHERE settled_at IS NULL AND close_epoch <= $1 ORDER BY close_epoch ASC`,
			asOf.Unix())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			w, err := scanWindow(rows)
			if err != nil {
				return err
			}
			out = append(out, w)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanWindow(row rowScanner) (*domain.Window, error) {
	var (
		windowID, symbol, upToken, downToken, strikeStr string
		openEpoch, closeEpoch                            int64
	)
	if err := row.Scan(&windowID, &symbol, &openEpoch, &closeEpoch, &strikeStr, &upToken, &downToken); err != nil {
		return nil, err
	}
	strike, err := decimal.NewFromString(strikeStr)
	if err != nil {
		return nil, codes.Wrap(codes.DatabaseFatal, "stored strike price is not a valid decimal", err, map[string]any{"window_id": windowID})
	}
	return &domain.Window{
		WindowID:    windowID,
		Symbol:      symbol,
		OpenEpoch:   openEpoch,
		CloseEpoch:  closeEpoch,
		StrikePrice: strike,
		UpTokenID:   upToken,
		DownTokenID: downToken,
	}, nil
}
