package strategy

// DiffStrategies compares two instances per-slot and per-config-key, and
// reports whether they share a common root ancestor.
func DiffStrategies(store Store, a, b *Instance) Diff {
	components := make(map[string]SlotDiff, 4)
	for _, slot := range slotOrder {
		va, vb := a.Components.Slot(slot), b.Components.Slot(slot)
		components[slot] = SlotDiff{Match: va == vb, A: va, B: vb}
	}

	return Diff{
		Components: components,
		Config:     diffConfig(a.Config, b.Config),
		SameBase:   sameRoot(store, a.ID, b.ID),
	}
}

func diffConfig(a, b map[string]any) ConfigDiff {
	added := map[string]any{}
	removed := map[string]any{}
	changed := map[string]ChangedValue{}

	for k, bv := range b {
		av, existsInA := a[k]
		if !existsInA {
			added[k] = bv
			continue
		}
		if !valuesEqual(av, bv) {
			changed[k] = ChangedValue{From: av, To: bv}
		}
	}
	for k, av := range a {
		if _, existsInB := b[k]; !existsInB {
			removed[k] = av
		}
	}

	return ConfigDiff{Added: added, Removed: removed, Changed: changed}
}

func valuesEqual(a, b any) bool {
	am, aIsMap := a.(map[string]any)
	bm, bIsMap := b.(map[string]any)
	if aIsMap && bIsMap {
		d := diffConfig(am, bm)
		return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
	}
	return a == b
}

// sameRoot reports whether a and b's lineage walks terminate at the same
// root ancestor (including the degenerate case where one is the other's
// root, or a == b).
func sameRoot(store Store, a, b string) bool {
	rootA := rootOf(store, a)
	rootB := rootOf(store, b)
	return rootA != "" && rootA == rootB
}

func rootOf(store Store, id string) string {
	lineage, err := GetStrategyLineage(store, id)
	if err != nil || len(lineage) == 0 {
		return ""
	}
	return lineage[len(lineage)-1].ID
}
