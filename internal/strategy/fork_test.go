package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForkStrategy_InheritsAndOverrides(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	parent, err := CreateStrategy(catalog, store, "parent", components, map[string]any{"min_probability": 0.6})
	require.NoError(t, err)

	fork, err := ForkStrategy(catalog, store, parent.ID, "child", ForkOverrides{
		Config: map[string]any{"min_probability": 0.8},
	})
	require.NoError(t, err)

	assert.Equal(t, parent.ID, fork.BaseStrategyID)
	assert.Equal(t, parent.Components, fork.Components)
	assert.Equal(t, 0.8, fork.Config["min_probability"])
}

func TestForkStrategy_RejectsInactiveParent(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	parent, err := CreateStrategy(catalog, store, "parent", components, map[string]any{})
	require.NoError(t, err)
	parent.Active = false
	require.NoError(t, store.Update(parent))

	_, err = ForkStrategy(catalog, store, parent.ID, "child", ForkOverrides{})
	require.Error(t, err)
}

func TestForkStrategy_RejectsUnknownParent(t *testing.T) {
	catalog, _ := buildCatalog(t)
	store := NewInMemoryStore()

	_, err := ForkStrategy(catalog, store, "does-not-exist", "child", ForkOverrides{})
	require.Error(t, err)
}

func TestGetStrategyLineage_WalksToRoot(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	root, err := CreateStrategy(catalog, store, "root", components, map[string]any{})
	require.NoError(t, err)
	child, err := ForkStrategy(catalog, store, root.ID, "child", ForkOverrides{})
	require.NoError(t, err)
	grandchild, err := ForkStrategy(catalog, store, child.ID, "grandchild", ForkOverrides{})
	require.NoError(t, err)

	lineage, err := GetStrategyLineage(store, grandchild.ID)
	require.NoError(t, err)
	require.Len(t, lineage, 3)
	assert.Equal(t, grandchild.ID, lineage[0].ID)
	assert.Equal(t, 0, lineage[0].Depth)
	assert.Equal(t, root.ID, lineage[2].ID)
	assert.Equal(t, 2, lineage[2].Depth)
}

func TestGetStrategyLineage_TerminatesOnCycle(t *testing.T) {
	store := NewInMemoryStore()
	a := &Instance{ID: "a", BaseStrategyID: "b"}
	b := &Instance{ID: "b", BaseStrategyID: "a"}
	require.NoError(t, store.Create(a))
	require.NoError(t, store.Create(b))

	lineage, err := GetStrategyLineage(store, "a")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(lineage), 2)
}

func TestGetStrategyForks_FiltersActiveOnly(t *testing.T) {
	catalog, components := buildCatalog(t)
	store := NewInMemoryStore()
	root, err := CreateStrategy(catalog, store, "root", components, map[string]any{})
	require.NoError(t, err)
	activeChild, err := ForkStrategy(catalog, store, root.ID, "active-child", ForkOverrides{})
	require.NoError(t, err)
	inactiveChild, err := ForkStrategy(catalog, store, root.ID, "inactive-child", ForkOverrides{})
	require.NoError(t, err)
	inactiveChild.Active = false
	require.NoError(t, store.Update(inactiveChild))

	all, err := GetStrategyForks(store, root.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := GetStrategyForks(store, root.ID, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, activeChild.ID, active[0].ID)
}
