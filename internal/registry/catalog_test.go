package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	md Metadata
}

func (f fakeComponent) Metadata() Metadata { return f.md }

func (f fakeComponent) Evaluate(ctx EvalContext, config map[string]any, prev map[string]StageResult) (StageResult, error) {
	return StageResult{}, nil
}

func (f fakeComponent) ValidateConfig(config map[string]any) ValidationResult {
	return ValidationResult{Valid: true}
}

func newFake(t ComponentType, name string, version int) fakeComponent {
	return fakeComponent{md: Metadata{Type: t, Name: name, Version: version}}
}

func TestCatalog_RegisterAndGet(t *testing.T) {
	c := NewCatalog()
	comp := newFake(TypeProbability, "rsi-divergence", 1)
	require.NoError(t, c.Register(comp))

	got, err := c.Get("prob-rsi-divergence-v1")
	require.NoError(t, err)
	assert.Equal(t, comp, got)
}

func TestCatalog_RejectsDuplicateVersion(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(newFake(TypeProbability, "rsi-divergence", 1)))
	err := c.Register(newFake(TypeProbability, "rsi-divergence", 1))
	require.Error(t, err)
}

func TestCatalog_Latest(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(newFake(TypeEntry, "threshold", 1)))
	require.NoError(t, c.Register(newFake(TypeEntry, "threshold", 3)))
	require.NoError(t, c.Register(newFake(TypeEntry, "threshold", 2)))

	latest, err := c.Latest(TypeEntry, "threshold")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Metadata().Version)
}

func TestCatalog_Latest_UnknownNameReturnsError(t *testing.T) {
	c := NewCatalog()
	_, err := c.Latest(TypeEntry, "does-not-exist")
	require.Error(t, err)
}

func TestCatalog_ByType_SortedNameThenVersionDesc(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(newFake(TypeSizing, "fixed", 1)))
	require.NoError(t, c.Register(newFake(TypeSizing, "fixed", 2)))
	require.NoError(t, c.Register(newFake(TypeSizing, "kelly", 1)))

	list := c.ByType(TypeSizing)
	require.Len(t, list, 3)
	assert.Equal(t, "fixed", list[0].Metadata().Name)
	assert.Equal(t, 2, list[0].Metadata().Version)
	assert.Equal(t, "fixed", list[1].Metadata().Name)
	assert.Equal(t, 1, list[1].Metadata().Version)
	assert.Equal(t, "kelly", list[2].Metadata().Name)
}

func TestCatalog_Count(t *testing.T) {
	c := NewCatalog()
	assert.Equal(t, 0, c.Count())
	require.NoError(t, c.Register(newFake(TypeExit, "hold-to-settlement", 1)))
	assert.Equal(t, 1, c.Count())
}
