package strategy

import (
	"github.com/aristath/strikewindow/internal/codes"
	"github.com/aristath/strikewindow/internal/registry"
)

// UpgradeStrategyComponent rewrites one slot of an active strategy to
// newVersionID, after confirming the new component's type matches slot and
// the instance's current config still validates. It returns the previous
// version id on success.
func UpgradeStrategyComponent(catalog *registry.Catalog, store Store, strategyID, slot, newVersionID string) (previousVersionID string, err error) {
	inst, err := store.Get(strategyID)
	if err != nil {
		return "", err
	}
	if !inst.Active {
		return "", codes.New(codes.StrategyInactive, "strategy is not active", map[string]any{"strategy_id": strategyID})
	}

	newComponent, err := catalog.Get(newVersionID)
	if err != nil {
		return "", codes.Wrap(codes.ComponentNotFound, "new component version not found", err, map[string]any{"version_id": newVersionID})
	}
	if newComponent.Metadata().Type != slotType[slot] {
		return "", codes.New(codes.ComponentTypeMismatch, "new component type does not match slot", map[string]any{"slot": slot, "version_id": newVersionID})
	}

	candidate := inst.Components.WithSlot(slot, newVersionID)
	resolved, err := validateComponents(catalog, candidate)
	if err != nil {
		return "", err
	}
	if err := validateConfig(resolved, inst.Config); err != nil {
		return "", codes.Wrap(codes.UpgradeValidationFailed, "current config does not validate against new component", err, map[string]any{"strategy_id": strategyID, "slot": slot})
	}

	previousVersionID = inst.Components.Slot(slot)
	inst.Components = candidate
	if err := store.Update(inst); err != nil {
		return "", err
	}
	return previousVersionID, nil
}

// PreviewComponentUpgrade performs the same validation as
// UpgradeStrategyComponent without persisting anything.
func PreviewComponentUpgrade(catalog *registry.Catalog, store Store, strategyID, slot, newVersionID string) error {
	inst, err := store.Get(strategyID)
	if err != nil {
		return err
	}
	if !inst.Active {
		return codes.New(codes.StrategyInactive, "strategy is not active", map[string]any{"strategy_id": strategyID})
	}
	newComponent, err := catalog.Get(newVersionID)
	if err != nil {
		return codes.Wrap(codes.ComponentNotFound, "new component version not found", err, map[string]any{"version_id": newVersionID})
	}
	if newComponent.Metadata().Type != slotType[slot] {
		return codes.New(codes.ComponentTypeMismatch, "new component type does not match slot", map[string]any{"slot": slot, "version_id": newVersionID})
	}
	candidate := inst.Components.WithSlot(slot, newVersionID)
	resolved, err := validateComponents(catalog, candidate)
	if err != nil {
		return err
	}
	return validateConfig(resolved, inst.Config)
}

// BatchUpgradeOptions scopes which strategies batchUpgradeComponent
// considers.
type BatchUpgradeOptions struct {
	ActiveOnly  bool
	StrategyIDs []string // if non-empty, restricts the candidate set
}

// BatchUpgradeComponent finds every strategy currently bound to oldVersionID
// and upgrades each independently to newVersionID; one strategy's failure
// never rolls back another's success.
func BatchUpgradeComponent(catalog *registry.Catalog, store Store, oldVersionID, newVersionID string, opts BatchUpgradeOptions) (*BatchUpgradeReport, error) {
	parsed := ParseOldVersionSlot(oldVersionID)
	if parsed == "" {
		return nil, codes.New(codes.ComponentInterfaceInvalid, "cannot derive slot from version id", map[string]any{"version_id": oldVersionID})
	}

	all, err := store.List()
	if err != nil {
		return nil, err
	}

	idFilter := map[string]bool{}
	for _, id := range opts.StrategyIDs {
		idFilter[id] = true
	}

	report := &BatchUpgradeReport{}
	for _, inst := range all {
		if opts.ActiveOnly && !inst.Active {
			continue
		}
		if len(idFilter) > 0 && !idFilter[inst.ID] {
			continue
		}
		if inst.Components.Slot(parsed) != oldVersionID {
			continue
		}

		_, err := UpgradeStrategyComponent(catalog, store, inst.ID, parsed, newVersionID)
		if err != nil {
			report.Failures = append(report.Failures, UpgradeResult{StrategyID: inst.ID, Succeeded: false, Error: err})
			continue
		}
		report.Successes = append(report.Successes, UpgradeResult{StrategyID: inst.ID, Succeeded: true})
	}
	return report, nil
}

// ParseOldVersionSlot derives the slot name from a version id's prefix.
func ParseOldVersionSlot(versionID string) string {
	parsed := registry.ParseVersionID(versionID)
	if parsed == nil {
		return ""
	}
	switch parsed.Type {
	case registry.TypeProbability:
		return "probability"
	case registry.TypeEntry:
		return "entry"
	case registry.TypeSizing:
		return "sizing"
	case registry.TypeExit:
		return "exit"
	default:
		return ""
	}
}

// UpdateStrategyConfigOptions controls whether the new config merges with
// or replaces the existing one.
type UpdateStrategyConfigOptions struct {
	Merge bool // default true
}

// DefaultUpdateStrategyConfigOptions returns {Merge: true}, the spec's
// default (Go's zero value for bool is false, so callers that want the
// default must use this rather than a bare struct literal).
func DefaultUpdateStrategyConfigOptions() UpdateStrategyConfigOptions {
	return UpdateStrategyConfigOptions{Merge: true}
}

// UpdateStrategyConfig validates the merged-or-replaced config against all
// four of the strategy's components before persisting; on failure nothing
// changes.
func UpdateStrategyConfig(catalog *registry.Catalog, store Store, strategyID string, newConfig map[string]any, opts UpdateStrategyConfigOptions) error {
	inst, err := store.Get(strategyID)
	if err != nil {
		return err
	}

	finalConfig := newConfig
	if opts.Merge {
		finalConfig = deepMerge(inst.Config, newConfig)
	}

	resolved, err := validateComponents(catalog, inst.Components)
	if err != nil {
		return err
	}
	if err := validateConfig(resolved, finalConfig); err != nil {
		return err
	}

	inst.Config = finalConfig
	return store.Update(inst)
}
