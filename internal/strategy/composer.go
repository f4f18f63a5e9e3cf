package strategy

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/codes"
	"github.com/aristath/strikewindow/internal/registry"
)

var slotOrder = []string{"probability", "entry", "sizing", "exit"}

var slotType = map[string]registry.ComponentType{
	"probability": registry.TypeProbability,
	"entry":       registry.TypeEntry,
	"sizing":      registry.TypeSizing,
	"exit":        registry.TypeExit,
}

// validateComponents checks that every slot is present, references a
// catalog entry, and that entry's type matches the slot (spec.md §4.F
// createStrategy steps 1-3). It returns the first offending slot's error.
func validateComponents(catalog *registry.Catalog, c Components) (map[string]registry.Component, error) {
	resolved := make(map[string]registry.Component, 4)
	for _, slot := range slotOrder {
		versionID := c.Slot(slot)
		if versionID == "" {
			return nil, codes.New(codes.StrategyValidationFailed, "missing component slot", map[string]any{"slot": slot})
		}
		comp, err := catalog.Get(versionID)
		if err != nil {
			return nil, codes.Wrap(codes.StrategyValidationFailed, "component slot does not exist", err, map[string]any{"slot": slot, "version_id": versionID})
		}
		if comp.Metadata().Type != slotType[slot] {
			return nil, codes.New(codes.ComponentTypeMismatch, "component type does not match slot", map[string]any{"slot": slot, "version_id": versionID, "type": string(comp.Metadata().Type)})
		}
		resolved[slot] = comp
	}
	return resolved, nil
}

// validateConfig runs every resolved component's ValidateConfig against
// config and aggregates failures, keyed by slot.
func validateConfig(resolved map[string]registry.Component, config map[string]any) error {
	var errs []string
	for _, slot := range slotOrder {
		result := resolved[slot].ValidateConfig(config)
		if !result.Valid {
			for _, e := range result.Errors {
				errs = append(errs, slot+": "+e)
			}
		}
	}
	if len(errs) > 0 {
		return codes.New(codes.ConfigValidationFailed, "config failed component validation", map[string]any{"errors": errs})
	}
	return nil
}

// CreateStrategy validates and persists a new strategy instance. Partial
// state is never written: validation runs to completion before Store.Create
// is called.
func CreateStrategy(catalog *registry.Catalog, store Store, name string, components Components, config map[string]any) (*Instance, error) {
	resolved, err := validateComponents(catalog, components)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(resolved, config); err != nil {
		return nil, err
	}

	inst := &Instance{
		ID:         uuid.NewString(),
		Name:       name,
		Components: components,
		Config:     config,
		Active:     true,
		CreatedAt:  time.Now(),
	}
	if err := store.Create(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// ExecuteStrategy runs the fixed probability -> entry -> sizing -> exit
// pipeline and aggregates the per-stage results into a Decision.
func ExecuteStrategy(catalog *registry.Catalog, store Store, strategyID string, evalCtx registry.EvalContext) (*Decision, error) {
	inst, err := store.Get(strategyID)
	if err != nil {
		return nil, err
	}
	if !inst.Active {
		return nil, codes.New(codes.StrategyInactive, "strategy is not active", map[string]any{"strategy_id": strategyID})
	}

	resolved, err := validateComponents(catalog, inst.Components)
	if err != nil {
		return nil, err
	}

	prevResults := make(map[string]registry.StageResult, 4)
	for _, slot := range slotOrder {
		result, err := resolved[slot].Evaluate(evalCtx, inst.Config, prevResults)
		if err != nil {
			return nil, codes.Wrap(codes.ComponentExecutionFailed, "component evaluate failed", err, map[string]any{
				"strategy_id":  strategyID,
				"slot":         slot,
				"prev_results": prevResults,
			})
		}
		if result == nil {
			return nil, codes.New(codes.ComponentOutputInvalid, "component returned a non-object result", map[string]any{
				"strategy_id":  strategyID,
				"slot":         slot,
				"prev_results": prevResults,
			})
		}
		prevResults[slot] = result
	}

	return aggregateDecision(prevResults), nil
}

func aggregateDecision(prevResults map[string]registry.StageResult) *Decision {
	entry := prevResults["entry"]
	sizing := prevResults["sizing"]
	exit := prevResults["exit"]
	probability := prevResults["probability"]

	shouldEnter, _ := entry["should_enter"].(bool)
	shouldExit, _ := exit["should_exit"].(bool)

	action := "hold"
	if shouldEnter {
		action = "enter"
	} else if shouldExit {
		action = "exit"
	}

	direction, _ := entry["direction"].(string)
	if direction == "" {
		direction, _ = entry["side"].(string)
	}

	size := decimal.Zero
	if adjusted, ok := sizing["adjusted_size"].(decimal.Decimal); ok {
		size = adjusted
	} else if s, ok := sizing["size_dollars"].(decimal.Decimal); ok {
		size = s
	} else if s, ok := sizing["size"].(decimal.Decimal); ok {
		size = s
	}

	var stopLoss, takeProfit *decimal.Decimal
	if sl, ok := exit["stop_loss"].(map[string]any); ok {
		if price, ok := sl["price"].(decimal.Decimal); ok {
			stopLoss = &price
		}
	}
	if tp, ok := exit["take_profit"].(map[string]any); ok {
		if price, ok := tp["price"].(decimal.Decimal); ok {
			takeProfit = &price
		}
	}

	prob, _ := probability["fade_probability"].(float64)
	if prob == 0 {
		prob, _ = probability["probability"].(float64)
	}
	confidence, _ := probability["confidence"].(float64)

	return &Decision{
		Action:      action,
		Direction:   direction,
		Size:        size,
		StopLoss:    stopLoss,
		TakeProfit:  takeProfit,
		Probability: prob,
		Confidence:  confidence,
	}
}
