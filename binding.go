package knot

import (
	"fmt"
	"strings"
)

type bindingKind int

const (
	unsetBinding      bindingKind = iota // ?
	provisionBinding                     // provision
	delegateBinding                      // delegate
	instanceBinding                      // instance
	multiboundBinding                    // multibound
	subcomponentBinding                  // subcomponent
	dependencyBinding                    // component-dependency
	aggregateBinding                     // multibinding-aggregate
	deferredBinding                      // deferred-wrapper
)

func (k bindingKind) String() string {
	switch k {
	case provisionBinding:
		return "provision"
	case delegateBinding:
		return "delegate"
	case instanceBinding:
		return "instance"
	case multiboundBinding:
		return "multibound"
	case subcomponentBinding:
		return "subcomponent"
	case dependencyBinding:
		return "component-dependency"
	case aggregateBinding:
		return "multibinding-aggregate"
	case deferredBinding:
		return "deferred-wrapper"
	default:
		return "?"
	}
}

// Binding is one declared way to produce a Key.  Bindings are built by
// the declaration model provider and handed to the core inside Modules
// and Components; the core itself synthesizes aggregate and
// deferred-wrapper bindings during resolution.
type Binding struct {
	kind     bindingKind
	key      Key
	deps     []Key
	module   *Module // nil for constructor-style and builder-bound bindings
	scope    Scope
	nullable bool
	source   string // identity for diagnostics, eg "provideList(Repo)"
	required bool   // builder-bound instance that must be set before build

	delegateTo Key        // delegateBinding
	mapKey     string     // multiboundBinding into a map, "" for element contributions
	mapKeyName string     // display name of the map's key type
	child      *Component // subcomponentBinding

	// set when an aggregate is synthesized
	contributions []*Binding
}

func newBinding(kind bindingKind, key Key) *Binding {
	return &Binding{
		kind: kind,
		key:  key,
	}
}

// Provision declares a constructor or provider method producing key
// from the given dependency keys, in order.
func Provision(key Key, deps ...Key) *Binding {
	b := newBinding(provisionBinding, key)
	b.deps = deps
	return b
}

// Delegate declares that key is satisfied by re-using the binding for
// target without synthesizing a new instance.
func Delegate(key Key, target Key) *Binding {
	b := newBinding(delegateBinding, key)
	b.delegateTo = target
	b.deps = []Key{target}
	return b
}

// Instance declares a value supplied at component-build time.  It has
// no dependencies and never carries a scope.
func Instance(key Key) *Binding {
	return newBinding(instanceBinding, key)
}

// IntoCollection declares a contribution of elem into the collection
// key []elem.  Multiple contributions to the same collection key
// aggregate in discovery order.
func IntoCollection(elem Key, deps ...Key) *Binding {
	b := newBinding(multiboundBinding, elem.collectionOf())
	b.deps = deps
	return b
}

// IntoMap declares a keyed contribution of elem into the collection
// key map[keyName]elem under entry mapKey.  Two contributions with the
// same entry key are a structural error.
func IntoMap(keyName, mapKey string, elem Key, deps ...Key) *Binding {
	b := newBinding(multiboundBinding, elem.mapCollectionOf(keyName))
	b.mapKey = mapKey
	b.mapKeyName = keyName
	b.deps = deps
	return b
}

// ChildFactory declares a binding producing child's builder/factory.
// The child's builder-settable keys are supplied through the factory
// at build time, not resolved here; the child is resolved only if
// this binding is reached from an entry point.
func ChildFactory(child *Component) *Binding {
	b := newBinding(subcomponentBinding, child.FactoryKey())
	b.child = child
	return b
}

// Scoped annotates the binding with a scope.  A scoped binding may
// only be owned by a component carrying that exact scope.
func (b *Binding) Scoped(s Scope) *Binding {
	b.scope = s
	return b
}

// Nullable annotates the binding as allowed to produce an absent
// value; no nil check is generated for it.
func (b *Binding) Nullable() *Binding {
	b.nullable = true
	return b
}

// From records the binding's source identity for diagnostics.
func (b *Binding) From(source string) *Binding {
	b.source = source
	return b
}

// Key returns the key this binding produces.
func (b *Binding) Key() Key { return b.key }

// Dependencies returns the binding's dependency keys in declaration
// order.  The slice is shared; do not modify it.
func (b *Binding) Dependencies() []Key { return b.deps }

// DeclaredScope returns the binding's scope, or Unscoped.
func (b *Binding) DeclaredScope() Scope { return b.scope }

// Module returns the owning module, or nil for constructor-style,
// builder-bound, and synthesized bindings.
func (b *Binding) Module() *Module { return b.module }

// Required reports whether this is a builder-bound instance that must
// be set before assembly.
func (b *Binding) Required() bool { return b.required }

// Contributions returns, for a synthesized collection binding, the
// multibinding declarations that aggregate into it, in contribution
// order.  Nil for every other binding.
func (b *Binding) Contributions() []*Binding { return b.contributions }

// MapKey returns the entry key of a keyed-map contribution, or "".
func (b *Binding) MapKey() string { return b.mapKey }

func (b *Binding) String() string {
	var sb strings.Builder
	sb.WriteString(b.kind.String())
	sb.WriteString(" ")
	sb.WriteString(b.key.String())
	if b.source != "" {
		fmt.Fprintf(&sb, " %s", b.source)
	}
	if b.mapKey != "" {
		fmt.Fprintf(&sb, " [%s=%s]", b.mapKeyName, b.mapKey)
	}
	if b.module != nil {
		fmt.Fprintf(&sb, " in %s", b.module.name)
	}
	return sb.String()
}

// signature renders the binding the way duplicate-binding diagnostics
// enumerate conflicting declarations: module first, then source.
func (b *Binding) signature() string {
	switch {
	case b.module != nil && b.source != "":
		return b.module.name + "." + b.source
	case b.module != nil:
		return b.module.name + "." + b.key.String()
	case b.source != "":
		return b.source
	default:
		return b.kind.String() + " for " + b.key.String()
	}
}

// eagerDep reports whether the i'th dependency edge requires the
// dependency's construction to complete before b can be constructed.
// Deferred-access requests and the synthesized wrappers that satisfy
// them are the only non-eager edges.
func (b *Binding) eagerDep(i int) bool {
	if b.kind == deferredBinding {
		return false
	}
	if t := b.deps[i].Type(); t.Kind == KindDeferred {
		return false
	}
	return true
}
