// Package components holds reference implementations of the four pipeline
// stages, registered into the catalog at process start. They exist to give
// new strategies a working starting point and to exercise every stage of
// registry.Component end to end.
package components

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/aristath/strikewindow/internal/registry"
)

// RSIDivergence is a probability-stage component: it estimates how likely
// price is to revert toward the strike based on short-horizon RSI extremity,
// the way CalculateRSI does in the teacher's formula library (adapted here
// to trading a 15-minute binary outcome instead of a portfolio score).
type RSIDivergence struct {
	version int
}

// NewRSIDivergence returns the named version of the RSI-divergence
// probability component.
func NewRSIDivergence(version int) *RSIDivergence {
	return &RSIDivergence{version: version}
}

func (c *RSIDivergence) Metadata() registry.Metadata {
	return registry.Metadata{
		Name:        "rsi-divergence",
		Version:     c.version,
		Type:        registry.TypeProbability,
		Description: "estimates fade probability from RSI extremity on recent closes",
		Author:      "strikewindow",
	}
}

func (c *RSIDivergence) ValidateConfig(config map[string]any) registry.ValidationResult {
	var errs []string
	period, ok := config["rsi_period"]
	if ok {
		p, isInt := period.(int)
		if !isInt || p < 2 || p > 200 {
			errs = append(errs, "rsi_period must be an int between 2 and 200")
		}
	}
	return registry.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (c *RSIDivergence) Evaluate(ctx registry.EvalContext, config map[string]any, prevResults map[string]registry.StageResult) (registry.StageResult, error) {
	period := 14
	if p, ok := config["rsi_period"].(int); ok && p > 0 {
		period = p
	}

	closes, _ := config["recent_closes"].([]float64)
	if len(closes) < period+1 {
		return registry.StageResult{
			"fade_probability": 0.5,
			"confidence":       0.0,
		}, nil
	}

	rsi := talib.Rsi(closes, period)
	last := rsi[len(rsi)-1]
	if math.IsNaN(last) {
		return registry.StageResult{
			"fade_probability": 0.5,
			"confidence":       0.0,
		}, nil
	}

	// Extremity away from the 50 midline maps to a fade-probability skew:
	// an overbought reading favors fading up, oversold favors fading down.
	extremity := math.Abs(last-50) / 50
	fadeProbability := 0.5 + extremity*0.3

	dir := "fade_down"
	if last > 50 {
		dir = "fade_up"
	}

	return registry.StageResult{
		"fade_probability": fadeProbability,
		"confidence":        math.Min(extremity*2, 1.0),
		"direction":         dir,
		"rsi":               last,
	}, nil
}
