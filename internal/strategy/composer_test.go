package strategy

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/strikewindow/internal/registry"
)

type stubComponent struct {
	md       registry.Metadata
	result   registry.StageResult
	evalErr  error
	valid    registry.ValidationResult
}

func (s stubComponent) Metadata() registry.Metadata { return s.md }

func (s stubComponent) Evaluate(ctx registry.EvalContext, config map[string]any, prev map[string]registry.StageResult) (registry.StageResult, error) {
	if s.evalErr != nil {
		return nil, s.evalErr
	}
	return s.result, nil
}

func (s stubComponent) ValidateConfig(config map[string]any) registry.ValidationResult {
	return s.valid
}

func okValidation() registry.ValidationResult { return registry.ValidationResult{Valid: true} }

func buildCatalog(t *testing.T) (*registry.Catalog, Components) {
	t.Helper()
	catalog := registry.NewCatalog()

	prob := stubComponent{
		md:     registry.Metadata{Type: registry.TypeProbability, Name: "p", Version: 1},
		result: registry.StageResult{"fade_probability": 0.7, "confidence": 0.5, "direction": "fade_up"},
		valid:  okValidation(),
	}
	entry := stubComponent{
		md:     registry.Metadata{Type: registry.TypeEntry, Name: "e", Version: 1},
		result: registry.StageResult{"should_enter": true, "direction": "fade_up"},
		valid:  okValidation(),
	}
	sizing := stubComponent{
		md:     registry.Metadata{Type: registry.TypeSizing, Name: "s", Version: 1},
		result: registry.StageResult{"size_dollars": decimal.NewFromInt(50)},
		valid:  okValidation(),
	}
	exit := stubComponent{
		md:     registry.Metadata{Type: registry.TypeExit, Name: "x", Version: 1},
		result: registry.StageResult{"should_exit": false},
		valid:  okValidation(),
	}

	require.NoError(t, catalog.Register(prob))
	require.NoError(t, catalog.Register(entry))
	require.NoError(t, catalog.Register(sizing))
	require.NoError(t, catalog.Register(exit))

	components := Components{
		Probability: registry.GenerateVersionID(registry.TypeProbability, "p", 1),
		Entry:       registry.GenerateVersionID(registry.TypeEntry, "e", 1),
		Sizing:      registry.GenerateVersionID(registry.TypeSizing, "s", 1),
		Exit:        registry.GenerateVersionID(registry.TypeExit, "x", 1),
	}
	return catalog, components
}

func TestCreateStrategy_Succeeds(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()

	inst, err := CreateStrategy(catalog, store, "my-strategy", components, map[string]any{})
	require.NoError(t, err)
	assert.NotEmpty(t, inst.ID)
	assert.True(t, inst.Active)
}

func TestCreateStrategy_RejectsMissingSlot(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	components.Exit = ""

	_, err := CreateStrategy(catalog, store, "broken", components, map[string]any{})
	require.Error(t, err)
}

func TestCreateStrategy_RejectsTypeMismatch(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	components.Exit = components.Entry // wrong type for the exit slot

	_, err := CreateStrategy(catalog, store, "broken", components, map[string]any{})
	require.Error(t, err)
}

func TestCreateStrategy_RejectsInvalidConfig(t *testing.T) {
	catalog := registry.NewCatalog()
	bad := stubComponent{
		md:    registry.Metadata{Type: registry.TypeProbability, Name: "p", Version: 1},
		valid: registry.ValidationResult{Valid: false, Errors: []string{"bad"}},
	}
	require.NoError(t, catalog.Register(bad))

	// Stub the remaining three slots so CreateStrategy reaches config
	// validation instead of failing earlier on slot resolution.
	entry := stubComponent{md: registry.Metadata{Type: registry.TypeEntry, Name: "e", Version: 1}, valid: okValidation()}
	sizing := stubComponent{md: registry.Metadata{Type: registry.TypeSizing, Name: "s", Version: 1}, valid: okValidation()}
	exit := stubComponent{md: registry.Metadata{Type: registry.TypeExit, Name: "x", Version: 1}, valid: okValidation()}
	require.NoError(t, catalog.Register(entry))
	require.NoError(t, catalog.Register(sizing))
	require.NoError(t, catalog.Register(exit))

	store := NewInMemoryStore()
	mixed := Components{
		Probability: registry.GenerateVersionID(registry.TypeProbability, "p", 1),
		Entry:       registry.GenerateVersionID(registry.TypeEntry, "e", 1),
		Sizing:      registry.GenerateVersionID(registry.TypeSizing, "s", 1),
		Exit:        registry.GenerateVersionID(registry.TypeExit, "x", 1),
	}
	_, err := CreateStrategy(catalog, store, "broken", mixed, map[string]any{})
	require.Error(t, err)
}

func TestExecuteStrategy_AggregatesEnterDecision(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	inst, err := CreateStrategy(catalog, store, "my-strategy", components, map[string]any{})
	require.NoError(t, err)

	decision, err := ExecuteStrategy(catalog, store, inst.ID, registry.EvalContext{})
	require.NoError(t, err)
	assert.Equal(t, "enter", decision.Action)
	assert.Equal(t, "fade_up", decision.Direction)
	assert.True(t, decision.Size.Equal(decimal.NewFromInt(50)))
}

func TestExecuteStrategy_StopsOnComponentError(t *testing.T) {
	catalog := registry.NewCatalog()
	failing := stubComponent{
		md:      registry.Metadata{Type: registry.TypeProbability, Name: "p", Version: 1},
		evalErr: errors.New("boom"),
		valid:   okValidation(),
	}
	entry := stubComponent{md: registry.Metadata{Type: registry.TypeEntry, Name: "e", Version: 1}, valid: okValidation()}
	sizing := stubComponent{md: registry.Metadata{Type: registry.TypeSizing, Name: "s", Version: 1}, valid: okValidation()}
	exit := stubComponent{md: registry.Metadata{Type: registry.TypeExit, Name: "x", Version: 1}, valid: okValidation()}
	require.NoError(t, catalog.Register(failing))
	require.NoError(t, catalog.Register(entry))
	require.NoError(t, catalog.Register(sizing))
	require.NoError(t, catalog.Register(exit))

	components := Components{
		Probability: registry.GenerateVersionID(registry.TypeProbability, "p", 1),
		Entry:       registry.GenerateVersionID(registry.TypeEntry, "e", 1),
		Sizing:      registry.GenerateVersionID(registry.TypeSizing, "s", 1),
		Exit:        registry.GenerateVersionID(registry.TypeExit, "x", 1),
	}
	store := NewInMemoryStore()
	inst, err := CreateStrategy(catalog, store, "my-strategy", components, map[string]any{})
	require.NoError(t, err)

	_, err = ExecuteStrategy(catalog, store, inst.ID, registry.EvalContext{})
	require.Error(t, err)
}

func TestExecuteStrategy_RejectsInactiveStrategy(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	inst, err := CreateStrategy(catalog, store, "my-strategy", components, map[string]any{})
	require.NoError(t, err)

	inst.Active = false
	require.NoError(t, store.Update(inst))

	_, err = ExecuteStrategy(catalog, store, inst.ID, registry.EvalContext{})
	require.Error(t, err)
}
