package registry

import (
	"sort"
	"sync"

	"github.com/aristath/strikewindow/internal/codes"
)

// entry pairs a registered component with its version id, so the catalog
// can key and report it without re-deriving the id from the component every
// call.
type entry struct {
	versionID string
	component Component
}

// Catalog holds every registered component, keyed by version id, with a
// cached per-type view that a write marks dirty and the next read rebuilds
// (adapted from the
// work-type registry's reorder-on-write pattern).
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]*entry          // version_id -> entry
	byType  map[ComponentType][]*entry // cached, sorted by name then version desc
	dirty   bool
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		entries: make(map[string]*entry),
		byType:  make(map[ComponentType][]*entry),
	}
}

// Register adds a component under its self-reported metadata. Re-registering
// the same version id is rejected — versions are immutable once published.
func (c *Catalog) Register(component Component) error {
	md := component.Metadata()
	versionID := GenerateVersionID(md.Type, md.Name, md.Version)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[versionID]; exists {
		return codes.New(codes.ComponentVersionExists, "component version already registered", map[string]any{"version_id": versionID})
	}

	c.entries[versionID] = &entry{versionID: versionID, component: component}
	c.dirty = true
	return nil
}

// Get returns the component for an exact version id.
func (c *Catalog) Get(versionID string) (Component, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[versionID]
	if !ok {
		return nil, codes.New(codes.ComponentNotFound, "no component with this version id", map[string]any{"version_id": versionID})
	}
	return e.component, nil
}

// Latest returns the highest-numbered registered version of name within
// type t.
func (c *Catalog) Latest(t ComponentType, name string) (Component, error) {
	c.mu.Lock()
	if c.dirty {
		c.refresh()
		c.dirty = false
	}
	group := c.byType[t]
	c.mu.Unlock()

	var best *entry
	for _, e := range group {
		md := e.component.Metadata()
		if md.Name != name {
			continue
		}
		if best == nil || md.Version > best.component.Metadata().Version {
			best = e
		}
	}
	if best == nil {
		return nil, codes.New(codes.ComponentNotFound, "no registered version for component name", map[string]any{"type": string(t), "name": name})
	}
	return best.component, nil
}

// ByType returns every registered component of type t, sorted by name then
// version descending, newest first within a name.
func (c *Catalog) ByType(t ComponentType) []Component {
	c.mu.Lock()
	if c.dirty {
		c.refresh()
		c.dirty = false
	}
	group := c.byType[t]
	c.mu.Unlock()

	result := make([]Component, len(group))
	for i, e := range group {
		result[i] = e.component
	}
	return result
}

// Count returns the number of registered component versions.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// refresh rebuilds the byType cache. Must be called with the write lock held.
func (c *Catalog) refresh() {
	byType := make(map[ComponentType][]*entry)
	for _, e := range c.entries {
		md := e.component.Metadata()
		byType[md.Type] = append(byType[md.Type], e)
	}
	for t, group := range byType {
		sort.Slice(group, func(i, j int) bool {
			mi, mj := group[i].component.Metadata(), group[j].component.Metadata()
			if mi.Name != mj.Name {
				return mi.Name < mj.Name
			}
			return mi.Version > mj.Version
		})
		byType[t] = group
	}
	c.byType = byType
}
