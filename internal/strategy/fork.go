package strategy

import (
	"time"

	"github.com/google/uuid"

	"github.com/aristath/strikewindow/internal/codes"
	"github.com/aristath/strikewindow/internal/registry"
)

// ForkOverrides is the optional modification a fork applies over its
// parent's components and config.
type ForkOverrides struct {
	Components map[string]string // slot -> version_id, only overridden slots
	Config     map[string]any
}

// ForkStrategy creates a new instance whose components default to the
// parent's (with any overridden slot taking the supplied value) and whose
// config is the deep-merge of the parent's config with the override.
func ForkStrategy(catalog *registry.Catalog, store Store, parentID, name string, overrides ForkOverrides) (*Instance, error) {
	parent, err := store.Get(parentID)
	if err != nil {
		return nil, codes.Wrap(codes.ForkParentNotFound, "fork parent not found", err, map[string]any{"parent_id": parentID})
	}
	if !parent.Active {
		return nil, codes.New(codes.ForkParentInactive, "fork parent is not active", map[string]any{"parent_id": parentID})
	}

	components := parent.Components
	for slot, versionID := range overrides.Components {
		components = components.WithSlot(slot, versionID)
	}

	config := deepMerge(parent.Config, overrides.Config)

	resolved, err := validateComponents(catalog, components)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(resolved, config); err != nil {
		return nil, err
	}

	inst := &Instance{
		ID:             uuid.NewString(),
		Name:           name,
		Components:     components,
		Config:         config,
		Active:         true,
		BaseStrategyID: parent.ID,
		CreatedAt:      time.Now(),
	}
	if err := store.Create(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// GetStrategyLineage walks base_strategy_id upward from id, emitting one
// node per ancestor starting at depth 0. A cycle (an ancestor that is its
// own descendant) terminates the walk without erroring, since the observed
// set bounds it.
func GetStrategyLineage(store Store, id string) ([]LineageNode, error) {
	var lineage []LineageNode
	seen := make(map[string]bool)
	depth := 0
	currentID := id

	for currentID != "" {
		if seen[currentID] {
			break
		}
		seen[currentID] = true

		inst, err := store.Get(currentID)
		if err != nil {
			break
		}
		lineage = append(lineage, LineageNode{
			ID:        inst.ID,
			Name:      inst.Name,
			CreatedAt: inst.CreatedAt,
			Depth:     depth,
		})
		currentID = inst.BaseStrategyID
		depth++
	}
	return lineage, nil
}

// GetStrategyForks enumerates direct children of parentID.
func GetStrategyForks(store Store, parentID string, activeOnly bool) ([]*Instance, error) {
	children, err := store.Children(parentID)
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return children, nil
	}
	active := make([]*Instance, 0, len(children))
	for _, c := range children {
		if c.Active {
			active = append(active, c)
		}
	}
	return active, nil
}
