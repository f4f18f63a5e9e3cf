package components

import (
	"github.com/aristath/strikewindow/internal/registry"
)

// ThresholdEntry is an entry-stage component: it gates on the probability
// stage's confidence and fade_probability exceeding configured thresholds,
// and on enough time remaining in the window.
type ThresholdEntry struct {
	version int
}

func NewThresholdEntry(version int) *ThresholdEntry {
	return &ThresholdEntry{version: version}
}

func (c *ThresholdEntry) Metadata() registry.Metadata {
	return registry.Metadata{
		Name:        "threshold",
		Version:     c.version,
		Type:        registry.TypeEntry,
		Description: "enters when fade probability and confidence clear fixed thresholds",
		Author:      "strikewindow",
	}
}

func (c *ThresholdEntry) ValidateConfig(config map[string]any) registry.ValidationResult {
	var errs []string
	if v, ok := config["min_probability"]; ok {
		if f, isFloat := v.(float64); !isFloat || f < 0.5 || f > 1 {
			errs = append(errs, "min_probability must be a float between 0.5 and 1")
		}
	}
	if v, ok := config["min_confidence"]; ok {
		if f, isFloat := v.(float64); !isFloat || f < 0 || f > 1 {
			errs = append(errs, "min_confidence must be a float between 0 and 1")
		}
	}
	return registry.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (c *ThresholdEntry) Evaluate(ctx registry.EvalContext, config map[string]any, prevResults map[string]registry.StageResult) (registry.StageResult, error) {
	minProbability := 0.6
	if v, ok := config["min_probability"].(float64); ok {
		minProbability = v
	}
	minConfidence := 0.2
	if v, ok := config["min_confidence"].(float64); ok {
		minConfidence = v
	}
	minTimeRemainingMs := int64(30_000)
	if v, ok := config["min_time_remaining_ms"].(int64); ok {
		minTimeRemainingMs = v
	}

	prob, _ := prevResults["probability"]["fade_probability"].(float64)
	conf, _ := prevResults["probability"]["confidence"].(float64)
	dir, _ := prevResults["probability"]["direction"].(string)

	shouldEnter := prob >= minProbability &&
		conf >= minConfidence &&
		ctx.TimeRemainingMs >= minTimeRemainingMs

	return registry.StageResult{
		"should_enter": shouldEnter,
		"direction":    dir,
	}, nil
}
