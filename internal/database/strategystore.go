package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aristath/strikewindow/internal/codes"
	"github.com/aristath/strikewindow/internal/strategy"
)

// StrategyStore is the SQL-backed strategy.Store, fronting the strategies
// table through the gateway's retry/circuit-breaker pools.
type StrategyStore struct {
	gw *Gateway
}

// NewStrategyStore wraps gw as a strategy.Store.
func NewStrategyStore(gw *Gateway) *StrategyStore {
	return &StrategyStore{gw: gw}
}

func (s *StrategyStore) Create(inst *strategy.Instance) error {
	configJSON, err := json.Marshal(inst.Config)
	if err != nil {
		return codes.Wrap(codes.StrategyValidationFailed, "failed to marshal strategy config", err, nil)
	}

	return s.gw.Write(context.Background(), func(tx pgx.Tx) error {
		var parent any
		if inst.BaseStrategyID != "" {
			parent = inst.BaseStrategyID
		}
		_, err := tx.Exec(context.Background(), `
			INSERT INTO strategies
				(instance_id, name, prob_version, entry_version, sizing_version, exit_version, config_json, parent_id, created_at, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			inst.ID, inst.Name,
			inst.Components.Probability, inst.Components.Entry, inst.Components.Sizing, inst.Components.Exit,
			string(configJSON), parent, inst.CreatedAt.UnixMilli(), inst.Active,
		)
		if err != nil {
			return codes.Wrap(codes.DatabaseTransient, "failed to insert strategy", err, map[string]any{"strategy_id": inst.ID})
		}
		return nil
	})
}

func (s *StrategyStore) Get(id string) (*strategy.Instance, error) {
	var inst *strategy.Instance
	err := s.gw.Read(context.Background(), func(ctx context.Context, pool pgxPool) error {
		row := pool.QueryRow(ctx, `
			SELECT instance_id, name, prob_version, entry_version, sizing_version, exit_version,
			       config_json, COALESCE(parent_id, ''), created_at, active
			FROM strategies WHERE instance_id = $1`, id)
		found, err := scanInstance(row)
		if err != nil {
			return err
		}
		inst = found
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, codes.New(codes.StrategyNotFound, "strategy not found", map[string]any{"strategy_id": id})
		}
		return nil, err
	}
	return inst, nil
}

func (s *StrategyStore) Update(inst *strategy.Instance) error {
	configJSON, err := json.Marshal(inst.Config)
	if err != nil {
		return codes.Wrap(codes.StrategyValidationFailed, "failed to marshal strategy config", err, nil)
	}

	return s.gw.Write(context.Background(), func(tx pgx.Tx) error {
		res, err := tx.Exec(context.Background(), `
			UPDATE strategies
			SET name = $1, prob_version = $2, entry_version = $3, sizing_version = $4, exit_version = $5,
			    config_json = $6, active = $7
			WHERE instance_id = $8`,
			inst.Name, inst.Components.Probability, inst.Components.Entry, inst.Components.Sizing, inst.Components.Exit,
			string(configJSON), inst.Active, inst.ID,
		)
		if err != nil {
			return codes.Wrap(codes.DatabaseTransient, "failed to update strategy", err, map[string]any{"strategy_id": inst.ID})
		}
		if res.RowsAffected() == 0 {
			return codes.New(codes.StrategyNotFound, "strategy not found", map[string]any{"strategy_id": inst.ID})
		}
		return nil
	})
}

func (s *StrategyStore) List() ([]*strategy.Instance, error) {
	var out []*strategy.Instance
	err := s.gw.Read(context.Background(), func(ctx context.Context, pool pgxPool) error {
		rows, err := pool.Query(ctx, `
			SELECT instance_id, name, prob_version, entry_version, sizing_version, exit_version,
			       config_json, COALESCE(parent_id, ''), created_at, active
			FROM strategies ORDER BY created_at ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			inst, err := scanInstance(rows)
			if err != nil {
				return err
			}
			out = append(out, inst)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StrategyStore) Children(parentID string) ([]*strategy.Instance, error) {
	var out []*strategy.Instance
	err := s.gw.Read(context.Background(), func(ctx context.Context, pool pgxPool) error {
		rows, err := pool.Query(ctx, `
			SELECT instance_id, name, prob_version, entry_version, sizing_version, exit_version,
			       config_json, COALESCE(parent_id, ''), created_at, active
			FROM strategies WHERE parent_id = $1 ORDER BY created_at ASC`, parentID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			inst, err := scanInstance(rows)
			if err != nil {
				return err
			}
			out = append(out, inst)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// rowScanner abstracts over pgx.Row and pgx.Rows, both of which expose Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*strategy.Instance, error) {
	var (
		id, name, prob, entry, sizing, exit, configJSON, parentID string
		createdAtMs                                               int64
		active                                                    bool
	)
	if err := row.Scan(&id, &name, &prob, &entry, &sizing, &exit, &configJSON, &parentID, &createdAtMs, &active); err != nil {
		return nil, err
	}

	var config map[string]any
	if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
		return nil, codes.Wrap(codes.StrategyValidationFailed, "failed to unmarshal strategy config", err, map[string]any{"strategy_id": id})
	}

	return &strategy.Instance{
		ID:   id,
		Name: name,
		Components: strategy.Components{
			Probability: prob, Entry: entry, Sizing: sizing, Exit: exit,
		},
		Config:         config,
		Active:         active,
		BaseStrategyID: parentID,
		CreatedAt:      time.UnixMilli(createdAtMs).UTC(),
	}, nil
}
