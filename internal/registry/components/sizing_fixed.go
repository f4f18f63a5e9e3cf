package components

import (
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/registry"
)

// FixedSizing is a sizing-stage component: every entered position is sized
// at the fixed dollar amount in config's size_dollars (50 when it is absent
// or not a parseable decimal string); no cap is applied.
type FixedSizing struct {
	version int
}

func NewFixedSizing(version int) *FixedSizing {
	return &FixedSizing{version: version}
}

func (c *FixedSizing) Metadata() registry.Metadata {
	return registry.Metadata{
		Name:        "fixed",
		Version:     c.version,
		Type:        registry.TypeSizing,
		Description: "sizes every position at a fixed dollar amount",
		Author:      "strikewindow",
	}
}

func (c *FixedSizing) ValidateConfig(config map[string]any) registry.ValidationResult {
	var errs []string
	v, ok := config["size_dollars"]
	if !ok {
		errs = append(errs, "size_dollars is required")
	} else if s, isString := v.(string); isString {
		d, err := decimal.NewFromString(s)
		if err != nil || !d.IsPositive() {
			errs = append(errs, "size_dollars must be a positive decimal string")
		}
	} else {
		errs = append(errs, "size_dollars must be a decimal string")
	}
	return registry.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (c *FixedSizing) Evaluate(ctx registry.EvalContext, config map[string]any, prevResults map[string]registry.StageResult) (registry.StageResult, error) {
	size := decimal.NewFromInt(50)
	if s, ok := config["size_dollars"].(string); ok {
		if d, err := decimal.NewFromString(s); err == nil {
			size = d
		}
	}

	return registry.StageResult{
		"size_dollars": size,
	}, nil
}
