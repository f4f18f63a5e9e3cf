package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/strikewindow/internal/registry"
)

func registerExitV2(t *testing.T, catalog *registry.Catalog) string {
	t.Helper()
	v2 := stubComponent{md: registry.Metadata{Type: registry.TypeExit, Name: "x", Version: 2}, valid: okValidation()}
	require.NoError(t, catalog.Register(v2))
	return registry.GenerateVersionID(registry.TypeExit, "x", 2)
}

func TestUpgradeStrategyComponent_Succeeds(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	inst, err := CreateStrategy(catalog, store, "s", components, map[string]any{})
	require.NoError(t, err)

	newVersion := registerExitV2(t, catalog)
	previous, err := UpgradeStrategyComponent(catalog, store, inst.ID, "exit", newVersion)
	require.NoError(t, err)
	assert.Equal(t, components.Exit, previous)

	updated, err := store.Get(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, newVersion, updated.Components.Exit)
}

func TestUpgradeStrategyComponent_RejectsTypeMismatch(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	inst, err := CreateStrategy(catalog, store, "s", components, map[string]any{})
	require.NoError(t, err)

	_, err = UpgradeStrategyComponent(catalog, store, inst.ID, "exit", components.Entry)
	require.Error(t, err)
}

func TestUpgradeStrategyComponent_RejectsInactiveStrategy(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	inst, err := CreateStrategy(catalog, store, "s", components, map[string]any{})
	require.NoError(t, err)
	inst.Active = false
	require.NoError(t, store.Update(inst))

	newVersion := registerExitV2(t, catalog)
	_, err = UpgradeStrategyComponent(catalog, store, inst.ID, "exit", newVersion)
	require.Error(t, err)
}

func TestPreviewComponentUpgrade_DoesNotPersist(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	inst, err := CreateStrategy(catalog, store, "s", components, map[string]any{})
	require.NoError(t, err)

	newVersion := registerExitV2(t, catalog)
	require.NoError(t, PreviewComponentUpgrade(catalog, store, inst.ID, "exit", newVersion))

	unchanged, err := store.Get(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, components.Exit, unchanged.Components.Exit)
}

func TestBatchUpgradeComponent_ActiveOnlySkipsInactive(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	one, err := CreateStrategy(catalog, store, "one", components, map[string]any{})
	require.NoError(t, err)
	two, err := CreateStrategy(catalog, store, "two", components, map[string]any{})
	require.NoError(t, err)
	two.Active = false
	require.NoError(t, store.Update(two))

	newVersion := registerExitV2(t, catalog)
	report, err := BatchUpgradeComponent(catalog, store, components.Exit, newVersion, BatchUpgradeOptions{ActiveOnly: true})
	require.NoError(t, err)

	assert.Len(t, report.Successes, 1)
	assert.Equal(t, one.ID, report.Successes[0].StrategyID)
	assert.Empty(t, report.Failures)
}

func TestUpdateStrategyConfig_MergesByDefault(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	inst, err := CreateStrategy(catalog, store, "s", components, map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)

	err = UpdateStrategyConfig(catalog, store, inst.ID, map[string]any{"b": 5}, DefaultUpdateStrategyConfigOptions())
	require.NoError(t, err)

	updated, err := store.Get(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Config["a"])
	assert.Equal(t, 5, updated.Config["b"])
}

func TestUpdateStrategyConfig_ReplaceDiscardsOldKeys(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	inst, err := CreateStrategy(catalog, store, "s", components, map[string]any{"a": 1})
	require.NoError(t, err)

	err = UpdateStrategyConfig(catalog, store, inst.ID, map[string]any{"b": 2}, UpdateStrategyConfigOptions{Merge: false})
	require.NoError(t, err)

	updated, err := store.Get(inst.ID)
	require.NoError(t, err)
	_, hasA := updated.Config["a"]
	assert.False(t, hasA)
	assert.Equal(t, 2, updated.Config["b"])
}
