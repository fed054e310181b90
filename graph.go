package knot

// BindingGraph is the resolved structure for one component: a mapping
// from each reached Key to the binding satisfying it and the component
// owning that resolution, plus the keys that could not be satisfied
// and the keys implicated in an illegal cycle.
type BindingGraph struct {
	cr *componentResolution
}

// Component returns the component this graph was resolved for.
func (g *BindingGraph) Component() *Component { return g.cr.component }

// Keys returns the keys owned by this component in first-discovery
// order.
func (g *BindingGraph) Keys() []Key {
	out := make([]Key, len(g.cr.order))
	copy(out, g.cr.order)
	return out
}

// Binding returns the binding satisfying key as seen from this
// component, walking the ancestor chain for inherited resolutions.
func (g *BindingGraph) Binding(key Key) (*Binding, bool) {
	if res, ok := g.cr.chainLookup(key); ok {
		return res.binding, true
	}
	return nil, false
}

// Owner returns the component owning the resolution of key as seen
// from this component.
func (g *BindingGraph) Owner(key Key) (*Component, bool) {
	if res, ok := g.cr.chainLookup(key); ok {
		return res.owner.component, true
	}
	return nil, false
}

// Missing returns the keys requested from this component that no
// binding satisfies.
func (g *BindingGraph) Missing() []Key {
	out := make([]Key, 0, len(g.cr.missing))
	for _, key := range missingOrder(g.cr) {
		out = append(out, key)
	}
	return out
}

// MissingPath returns the dependency path from the nearest entry
// point to an unsatisfied key.
func (g *BindingGraph) MissingPath(key Key) []Key {
	return g.cr.missing[key]
}

// CycleKeys returns the keys implicated in an illegal cycle owned by
// this component.
func (g *BindingGraph) CycleKeys() []Key {
	out := make([]Key, 0, len(g.cr.cycleKeys))
	for _, key := range g.cr.order {
		if _, ok := g.cr.cycleKeys[key]; ok {
			out = append(out, key)
		}
	}
	return out
}

// Subgraphs returns graphs for the subcomponents reached from this
// component's entry points, in discovery order.  Declared but
// unreached subcomponents are pruned and have no graph.
func (g *BindingGraph) Subgraphs() []*BindingGraph {
	out := make([]*BindingGraph, len(g.cr.children))
	for i, child := range g.cr.children {
		out[i] = &BindingGraph{cr: child}
	}
	return out
}

// missingOrder walks failure keys in deterministic (shortest path,
// then display name) order rather than map order.
func missingOrder(cr *componentResolution) []Key {
	type entry struct {
		key  Key
		path []Key
	}
	entries := make([]entry, 0, len(cr.missing))
	for key, path := range cr.missing {
		entries = append(entries, entry{key: key, path: path})
	}
	less := func(a, b entry) bool {
		if len(a.path) != len(b.path) {
			return len(a.path) < len(b.path)
		}
		return a.key.String() < b.key.String()
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && less(entries[j], entries[j-1]); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	out := make([]Key, len(entries))
	for i, e := range entries {
		out[i] = e.key
	}
	return out
}
