package components

import (
	"github.com/aristath/strikewindow/internal/registry"
)

// NearExpiryHold is an exit-stage component: it holds every position to
// settlement, the simplest possible exit policy and the default for
// strategies that don't manage intra-window exits.
type NearExpiryHold struct {
	version int
}

func NewNearExpiryHold(version int) *NearExpiryHold {
	return &NearExpiryHold{version: version}
}

func (c *NearExpiryHold) Metadata() registry.Metadata {
	return registry.Metadata{
		Name:        "hold-to-settlement",
		Version:     c.version,
		Type:        registry.TypeExit,
		Description: "never exits early; position is closed out only at settlement",
		Author:      "strikewindow",
	}
}

func (c *NearExpiryHold) ValidateConfig(config map[string]any) registry.ValidationResult {
	return registry.ValidationResult{Valid: true}
}

func (c *NearExpiryHold) Evaluate(ctx registry.EvalContext, config map[string]any, prevResults map[string]registry.StageResult) (registry.StageResult, error) {
	return registry.StageResult{
		"should_exit": false,
	}, nil
}
