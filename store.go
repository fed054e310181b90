package knot

import "fmt"

// declaration is one binding as seen from one store, carrying the
// store-local discovery order.  Order lives here rather than on the
// Binding itself: the declaration model is shared, immutable input,
// and the same binding may sit at different positions in different
// components' stores.
type declaration struct {
	binding     *Binding
	moduleOrder int
	declOrder   int
}

// Store collects every binding declaration visible from one component:
// its installed modules expanded transitively, its component
// dependencies' exported keys, its builder-settable keys, and the
// factory bindings of subcomponents declared installable.  A store is
// built fresh per component per invocation and discarded with the
// graph; population reads the declaration model without writing to it.
type Store struct {
	component *Component
	byKey     map[Key][]declaration
	ordered   []declaration
	malformed []*Binding // declarations rejected during population
}

// NewStore populates a store for one component.  Module includes are
// expanded breadth-first from the directly-installed set,
// short-circuiting on a module already visited by identity, so the
// expansion terminates even with diamond or cyclic include graphs and
// a module reached via two paths contributes its bindings once.
func NewStore(c *Component) *Store {
	s := &Store{
		component: c,
		byKey:     make(map[Key][]declaration),
	}
	s.populate()
	return s
}

func (s *Store) populate() {
	c := s.component
	debugf("populate store for %s", c.name)

	seen := make(map[*Module]struct{})
	frontier := make([]*Module, 0, len(c.modules))
	frontier = append(frontier, c.modules...)
	order := 0
	for len(frontier) > 0 {
		m := frontier[0]
		frontier = frontier[1:]
		if m == nil {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		order++
		for i, b := range m.bindings {
			if b == nil || b.key.zero() {
				s.malformed = append(s.malformed, b)
				continue
			}
			s.add(b, order, i)
		}
		for i, child := range m.children {
			f := ChildFactory(child)
			f.module = m
			s.add(f, order, len(m.bindings)+i)
		}
		frontier = append(frontier, m.includes...)
	}

	// Component dependencies export their entry points.
	for _, dep := range c.deps {
		order++
		for i, k := range dep.entryPoints {
			b := newBinding(dependencyBinding, k)
			b.source = fmt.Sprintf("%s accessor for %s", dep.name, k)
			s.add(b, order, i)
		}
	}

	// Builder-bound instances.
	order++
	for i, bk := range c.builderKeys {
		b := Instance(bk.key)
		b.required = bk.required
		b.nullable = !bk.required
		b.source = fmt.Sprintf("%s builder", c.name)
		s.add(b, order, i)
	}

	// Directly attached children.
	order++
	for i, child := range c.children {
		s.add(ChildFactory(child), order, i)
	}
}

func (s *Store) add(b *Binding, moduleOrder, declOrder int) {
	for _, have := range s.byKey[b.key] {
		if have.binding == b {
			return
		}
	}
	d := declaration{binding: b, moduleOrder: moduleOrder, declOrder: declOrder}
	s.byKey[b.key] = append(s.byKey[b.key], d)
	s.ordered = append(s.ordered, d)
}

// Declarations returns the declarations for key visible in this
// store, in discovery order.
func (s *Store) Declarations(key Key) []*Binding {
	entries := s.byKey[key]
	if len(entries) == 0 {
		return nil
	}
	out := make([]*Binding, len(entries))
	for i, d := range entries {
		out[i] = d.binding
	}
	return out
}

// entriesFor returns the declarations with their store-local order.
func (s *Store) entriesFor(key Key) []declaration {
	return s.byKey[key]
}

// declares reports whether this exact declaration came from this
// store.
func (s *Store) declares(b *Binding) bool {
	for _, d := range s.byKey[b.key] {
		if d.binding == b {
			return true
		}
	}
	return false
}

// Rebuild repopulates the store from its component's current
// declarations.  Multi-round generation rebuilds stores whenever a
// round makes new declarations available; bounding the number of
// rounds is the caller's concern.
func (s *Store) Rebuild() {
	s.byKey = make(map[Key][]declaration)
	s.ordered = nil
	s.malformed = nil
	s.populate()
}
