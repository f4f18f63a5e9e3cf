package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepMerge_ScalarOverrideWins(t *testing.T) {
	base := map[string]any{"min_probability": 0.6}
	override := map[string]any{"min_probability": 0.8}
	result := deepMerge(base, override)
	assert.Equal(t, 0.8, result["min_probability"])
}

func TestDeepMerge_ObjectsMergeRecursively(t *testing.T) {
	base := map[string]any{"limits": map[string]any{"max": 10, "min": 1}}
	override := map[string]any{"limits": map[string]any{"max": 20}}
	result := deepMerge(base, override)
	limits := result["limits"].(map[string]any)
	assert.Equal(t, 20, limits["max"])
	assert.Equal(t, 1, limits["min"])
}

func TestDeepMerge_ArraysReplaceWholesale(t *testing.T) {
	base := map[string]any{"symbols": []string{"BTC", "ETH"}}
	override := map[string]any{"symbols": []string{"SOL"}}
	result := deepMerge(base, override)
	assert.Equal(t, []string{"SOL"}, result["symbols"])
}

func TestDeepMerge_DoesNotMutateInputs(t *testing.T) {
	base := map[string]any{"a": 1}
	override := map[string]any{"b": 2}
	_ = deepMerge(base, override)
	assert.Len(t, base, 1)
	assert.Len(t, override, 1)
}
