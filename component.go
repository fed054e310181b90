package knot

// Scope is a tag tying a binding's cache lifetime to a component
// instance.  The empty Scope is "unscoped": never cached, resolved
// again at every use site within the owning component.
type Scope string

// Unscoped is the absent scope.
const Unscoped Scope = ""

// Module is a named group of binding declarations.  A module may
// include other modules; includes are expanded breadth-first with an
// identity-based visited set, so diamond and even cyclic include
// graphs terminate and a module reached twice contributes once.
type Module struct {
	name     string
	includes []*Module
	bindings []*Binding
	children []*Component // subcomponents installable via this module
}

// NewModule creates a module from binding declarations.  Declaration
// order within the module is part of the stable discovery order.
func NewModule(name string, bindings ...*Binding) *Module {
	m := &Module{
		name:     name,
		bindings: bindings,
	}
	for _, b := range bindings {
		if b != nil && b.module == nil {
			b.module = m
		}
	}
	return m
}

// Add appends binding declarations to the module.
func (m *Module) Add(bindings ...*Binding) *Module {
	for _, b := range bindings {
		if b == nil {
			continue
		}
		if b.module == nil {
			b.module = m
		}
		m.bindings = append(m.bindings, b)
	}
	return m
}

// Include adds included modules.  Only declarations listed here are
// expanded; a module's ancestry in the source language contributes
// nothing unless the most-derived declaration re-lists it.
func (m *Module) Include(mods ...*Module) *Module {
	m.includes = append(m.includes, mods...)
	return m
}

// Declares marks child components as installable through this module.
// A declared child that is never reached from an entry point is
// pruned: no plan is built for it and none of its bindings leak.
func (m *Module) Declares(children ...*Component) *Module {
	m.children = append(m.children, children...)
	return m
}

// Name returns the module's name.
func (m *Module) Name() string { return m.name }

type builderKey struct {
	key      Key
	required bool
}

// Component composes modules, component dependencies, and child
// subcomponents into a constructible object graph with declared entry
// points.  Root components have no parent; every other component has
// exactly one.
type Component struct {
	name        string
	scope       Scope
	entryPoints []Key
	modules     []*Module
	deps        []*Component
	builderKeys []builderKey
	children    []*Component
}

// NewComponent creates an empty component descriptor.
func NewComponent(name string) *Component {
	return &Component{name: name}
}

// InScope declares the component's scope.
func (c *Component) InScope(s Scope) *Component {
	c.scope = s
	return c
}

// EntryPoint adds accessor keys.  A key requested twice collapses to
// one resolution: supertype flattening happens at model construction,
// not at resolve time.
func (c *Component) EntryPoint(keys ...Key) *Component {
	for _, k := range keys {
		if !c.hasEntryPoint(k) {
			c.entryPoints = append(c.entryPoints, k)
		}
	}
	return c
}

func (c *Component) hasEntryPoint(k Key) bool {
	for _, have := range c.entryPoints {
		if have == k {
			return true
		}
	}
	return false
}

// Install adds directly-installed modules.
func (c *Component) Install(mods ...*Module) *Component {
	c.modules = append(c.modules, mods...)
	return c
}

// DependsOn adds component dependencies.  Each dependency's entry
// points become bindings visible in this component, satisfied by the
// dependency instance supplied at build time.
func (c *Component) DependsOn(deps ...*Component) *Component {
	c.deps = append(c.deps, deps...)
	return c
}

// BindsInstance declares a builder-settable key that must be set
// before the generated builder's assembly operation; an unset required
// key is a fatal build-time error, not a resolution error.
func (c *Component) BindsInstance(keys ...Key) *Component {
	for _, k := range keys {
		c.builderKeys = append(c.builderKeys, builderKey{key: k, required: true})
	}
	return c
}

// OptionalInstance declares a builder-settable key that may be left
// unset.  Bindings for optional instance keys are nullable.
func (c *Component) OptionalInstance(keys ...Key) *Component {
	for _, k := range keys {
		c.builderKeys = append(c.builderKeys, builderKey{key: k})
	}
	return c
}

// Child attaches a subcomponent directly (without going through a
// module declaration) and adds its factory key as an entry point.
func (c *Component) Child(child *Component) *Component {
	c.children = append(c.children, child)
	c.EntryPoint(child.FactoryKey())
	return c
}

// Name returns the component's name.
func (c *Component) Name() string { return c.name }

// DeclaredScope returns the component's scope, or Unscoped.
func (c *Component) DeclaredScope() Scope { return c.scope }

// EntryPoints returns the flattened, deduplicated entry-point keys in
// declaration order.  The slice is shared; do not modify it.
func (c *Component) EntryPoints() []Key { return c.entryPoints }

// FactoryKey returns the key under which this component's
// builder/factory is requested from its parent.
func (c *Component) FactoryKey() Key {
	return KeyOf(OpaqueType(c.name+".Factory"), "")
}

// declaredChildren returns subcomponents installable from this
// component: directly attached children plus children declared by any
// module visible from it.
func (c *Component) declaredChildren() []*Component {
	children := make([]*Component, 0, len(c.children))
	children = append(children, c.children...)
	seen := make(map[*Module]struct{})
	frontier := make([]*Module, 0, len(c.modules))
	frontier = append(frontier, c.modules...)
	for len(frontier) > 0 {
		m := frontier[0]
		frontier = frontier[1:]
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		children = append(children, m.children...)
		frontier = append(frontier, m.includes...)
	}
	return children
}
