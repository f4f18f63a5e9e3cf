package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/codes"
	"github.com/aristath/strikewindow/internal/domain"
)

// OutcomeStore persists signals (internal/domain.Signal) and their eventual
// settlement outcomes (internal/domain.SignalOutcome), used by
// internal/outcomes.
type OutcomeStore struct {
	gw *Gateway
}

func NewOutcomeStore(gw *Gateway) *OutcomeStore {
	return &OutcomeStore{gw: gw}
}

// RecordSignal inserts a signal row and returns its generated id, which
// callers use later to correlate the settlement outcome.
func (s *OutcomeStore) RecordSignal(sig domain.Signal) (int64, error) {
	var id int64
	err := s.gw.Write(context.Background(), func(tx pgx.Tx) error {
		row := tx.QueryRow(context.Background(), `
			INSERT INTO signals
				(window_id, strategy_id, symbol, direction, confidence, token_id, side,
				 time_remaining_ms, market_price, ui_price, oracle_price, oracle_staleness_ms,
				 spread_pct, strike, staleness_score, generated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING signal_id`,
			sig.WindowID, sig.StrategyID, sig.Symbol, string(sig.Direction), sig.Confidence,
			sig.TokenID, string(sig.Side), sig.Inputs.TimeRemainingMs,
			sig.Inputs.MarketPrice.String(), sig.Inputs.UIPrice.String(), sig.Inputs.OraclePrice.String(),
			sig.Inputs.OracleStalenessMs, sig.Inputs.SpreadPct.String(), sig.Inputs.Strike.String(),
			sig.Inputs.StalenessScore, sig.GeneratedAt.UnixMilli(),
		)
		if err := row.Scan(&id); err != nil {
			return codes.Wrap(codes.DatabaseTransient, "failed to insert signal", err, map[string]any{
				"window_id": sig.WindowID, "strategy_id": sig.StrategyID,
			})
		}
		return nil
	})
	return id, err
}

// RecordOutcome inserts the settlement outcome for signalID.
func (s *OutcomeStore) RecordOutcome(signalID int64, o domain.SignalOutcome) error {
	return s.gw.Write(context.Background(), func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), `
			INSERT INTO outcomes
				(signal_id, final_oracle_price, settlement_outcome, signal_correct,
				 entry_price, exit_price, size, pnl, settled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			signalID, o.FinalOraclePrice.String(), string(o.SettlementOutcome), o.SignalCorrect,
			o.EntryPrice.String(), o.ExitPrice.String(), o.Size.String(), o.PnL.String(), o.SettledAt.UnixMilli(),
		)
		if err != nil {
			return codes.Wrap(codes.DatabaseTransient, "failed to insert outcome", err, map[string]any{"signal_id": signalID})
		}
		return nil
	})
}

// PendingSignalIDs returns signal ids for a window that have no recorded
// outcome yet, for settlement correlation (spec.md §4.I).
func (s *OutcomeStore) PendingSignalIDs(windowID string) ([]int64, error) {
	var out []int64
	err := s.gw.Read(context.Background(), func(ctx context.Context, pool pgxPool) error {
		rows, err := pool.Query(ctx, `
			SELECT s.signal_id FROM signals s
			LEFT JOIN outcomes o ON o.signal_id = s.signal_id
			WHERE s.window_id = $1 AND o.signal_id IS NULL`, windowID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			out = append(out, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListRecent returns the most recent signals joined with their outcome (if
// any), most-recent first, for internal/outcomes' aggregate queries.
// HasOutcome is false for signals still pending settlement. limit is
// clamped to [1, 1000] by the caller (spec.md §4.I).
func (s *OutcomeStore) ListRecent(limit int) ([]domain.SignalOutcome, error) {
	var out []domain.SignalOutcome
	err := s.gw.Read(context.Background(), func(ctx context.Context, pool pgxPool) error {
		rows, err := pool.Query(ctx, `
			SELECT s.window_id, s.strategy_id, s.symbol, s.direction, s.confidence, s.token_id, s.side,
			       s.time_remaining_ms, s.market_price, s.ui_price, s.oracle_price, s.oracle_staleness_ms,
			       s.spread_pct, s.strike, s.staleness_score, s.generated_at,
			       o.final_oracle_price, o.settlement_outcome, o.signal_correct, o.entry_price, o.exit_price,
			       o.size, o.pnl, o.settled_at
			FROM signals s
			LEFT JOIN outcomes o ON o.signal_id = s.signal_id
			ORDER BY s.generated_at DESC
			LIMIT $1`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			so, err := scanSignalOutcome(rows)
			if err != nil {
				return err
			}
			out = append(out, so)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanSignalOutcome(row rowScanner) (domain.SignalOutcome, error) {
	var (
		windowID, strategyID, symbol, direction, tokenID, side string
		marketStr, uiStr, oracleStr, spreadStr, strikeStr      string
		confidence, staleness                                  float64
		timeRemainingMs, oracleStalenessMs, generatedAtMs      int64

		finalOracleStr, settlementOutcome, entryStr, exitStr, sizeStr, pnlStr *string
		signalCorrect                                                        *int
		settledAtMs                                                          *int64
	)
	if err := row.Scan(
		&windowID, &strategyID, &symbol, &direction, &confidence, &tokenID, &side,
		&timeRemainingMs, &marketStr, &uiStr, &oracleStr, &oracleStalenessMs,
		&spreadStr, &strikeStr, &staleness, &generatedAtMs,
		&finalOracleStr, &settlementOutcome, &signalCorrect, &entryStr, &exitStr, &sizeStr, &pnlStr, &settledAtMs,
	); err != nil {
		return domain.SignalOutcome{}, err
	}

	market, err := decimal.NewFromString(marketStr)
	if err != nil {
		return domain.SignalOutcome{}, codes.Wrap(codes.DatabaseFatal, "stored market price is not a valid decimal", err, nil)
	}
	ui, err := decimal.NewFromString(uiStr)
	if err != nil {
		return domain.SignalOutcome{}, codes.Wrap(codes.DatabaseFatal, "stored ui price is not a valid decimal", err, nil)
	}
	oracle, err := decimal.NewFromString(oracleStr)
	if err != nil {
		return domain.SignalOutcome{}, codes.Wrap(codes.DatabaseFatal, "stored oracle price is not a valid decimal", err, nil)
	}
	spread, err := decimal.NewFromString(spreadStr)
	if err != nil {
		return domain.SignalOutcome{}, codes.Wrap(codes.DatabaseFatal, "stored spread is not a valid decimal", err, nil)
	}
	strike, err := decimal.NewFromString(strikeStr)
	if err != nil {
		return domain.SignalOutcome{}, codes.Wrap(codes.DatabaseFatal, "stored strike is not a valid decimal", err, nil)
	}

	so := domain.SignalOutcome{
		Signal: domain.Signal{
			WindowID:   windowID,
			StrategyID: strategyID,
			Symbol:     symbol,
			Direction:  domain.Direction(direction),
			Confidence: confidence,
			TokenID:    tokenID,
			Side:       domain.OrderSide(side),
			Inputs: domain.SignalInputs{
				TimeRemainingMs:   timeRemainingMs,
				MarketPrice:       market,
				UIPrice:           ui,
				OraclePrice:       oracle,
				OracleStalenessMs: oracleStalenessMs,
				SpreadPct:         spread,
				Strike:            strike,
				StalenessScore:    staleness,
			},
			GeneratedAt: msToTime(generatedAtMs),
		},
	}

	if finalOracleStr == nil {
		return so, nil
	}

	so.HasOutcome = true
	if fo, err := decimal.NewFromString(*finalOracleStr); err == nil {
		so.FinalOraclePrice = fo
	}
	so.SettlementOutcome = domain.SettlementOutcome(*settlementOutcome)
	if signalCorrect != nil {
		so.SignalCorrect = *signalCorrect
	}
	if entryStr != nil {
		if v, err := decimal.NewFromString(*entryStr); err == nil {
			so.EntryPrice = v
		}
	}
	if exitStr != nil {
		if v, err := decimal.NewFromString(*exitStr); err == nil {
			so.ExitPrice = v
		}
	}
	if sizeStr != nil {
		if v, err := decimal.NewFromString(*sizeStr); err == nil {
			so.Size = v
		}
	}
	if pnlStr != nil {
		if v, err := decimal.NewFromString(*pnlStr); err == nil {
			so.PnL = v
		}
	}
	if settledAtMs != nil {
		so.SettledAt = msToTime(*settledAtMs)
	}

	return so, nil
}

// GetSignal fetches a single signal row by id, used to rebuild the outcome
// at settlement time.
func (s *OutcomeStore) GetSignal(signalID int64) (*domain.Signal, error) {
	var sig *domain.Signal
	err := s.gw.Read(context.Background(), func(ctx context.Context, pool pgxPool) error {
		row := pool.QueryRow(ctx, `
			SELECT window_id, strategy_id, symbol, direction, confidence, token_id, side,
			       time_remaining_ms, market_price, ui_price, oracle_price, oracle_staleness_ms,
			       spread_pct, strike, staleness_score, generated_at
			FROM signals WHERE signal_id = $1`, signalID)
		found, err := scanSignal(row)
		if err != nil {
			return err
		}
		sig = found
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, codes.New(codes.ComponentNotFound, "signal not found", map[string]any{"signal_id": signalID})
		}
		return nil, err
	}
	return sig, nil
}

func scanSignal(row rowScanner) (*domain.Signal, error) {
	var (
		windowID, strategyID, symbol, direction, tokenID, side string
		marketStr, uiStr, oracleStr, spreadStr, strikeStr      string
		confidence, staleness                                  float64
		timeRemainingMs, oracleStalenessMs, generatedAtMs      int64
	)
	if err := row.Scan(
		&windowID, &strategyID, &symbol, &direction, &confidence, &tokenID, &side,
		&timeRemainingMs, &marketStr, &uiStr, &oracleStr, &oracleStalenessMs,
		&spreadStr, &strikeStr, &staleness, &generatedAtMs,
	); err != nil {
		return nil, err
	}

	market, err := decimal.NewFromString(marketStr)
	if err != nil {
		return nil, codes.Wrap(codes.DatabaseFatal, "stored market price is not a valid decimal", err, nil)
	}
	ui, err := decimal.NewFromString(uiStr)
	if err != nil {
		return nil, codes.Wrap(codes.DatabaseFatal, "stored ui price is not a valid decimal", err, nil)
	}
	oracle, err := decimal.NewFromString(oracleStr)
	if err != nil {
		return nil, codes.Wrap(codes.DatabaseFatal, "stored oracle price is not a valid decimal", err, nil)
	}
	spread, err := decimal.NewFromString(spreadStr)
	if err != nil {
		return nil, codes.Wrap(codes.DatabaseFatal, "stored spread is not a valid decimal", err, nil)
	}
	strike, err := decimal.NewFromString(strikeStr)
	if err != nil {
		return nil, codes.Wrap(codes.DatabaseFatal, "stored strike is not a valid decimal", err, nil)
	}

	return &domain.Signal{
		WindowID:   windowID,
		StrategyID: strategyID,
		Symbol:     symbol,
		Direction:  domain.Direction(direction),
		Confidence: confidence,
		TokenID:    tokenID,
		Side:       domain.OrderSide(side),
		Inputs: domain.SignalInputs{
			TimeRemainingMs:   timeRemainingMs,
			MarketPrice:       market,
			UIPrice:           ui,
			OraclePrice:       oracle,
			OracleStalenessMs: oracleStalenessMs,
			SpreadPct:         spread,
			Strike:            strike,
			StalenessScore:    staleness,
		},
		GeneratedAt: msToTime(generatedAtMs),
	}, nil
}
