// Obligatory // comment

/*

Package knot is a compile-time dependency-injection graph compiler.
It consumes a declaration model (components, modules, and binding
declarations, produced by an external model provider such as the
reflectmodel subpackage) and emits, per root component, a validated
binding graph and a deterministic generation plan for an external
code emitter.

Keys and bindings

Everything a component can request is identified by a Key: a type
plus an optional qualifier.  A Binding is one declared way to produce
a Key: a provision (constructor or provider method), a delegate
(alias), a build-time instance, a multibinding contribution, or a
subcomponent factory.  Modules group bindings; components install
modules and declare entry points.

	widget := knot.KeyOf(knot.OpaqueType("Widget"), "")
	frame := knot.KeyOf(knot.OpaqueType("Frame"), "")

	m := knot.NewModule("widgets",
		knot.Provision(widget, frame).From("provideWidget(Frame)"),
		knot.Provision(frame).From("provideFrame()"),
	)
	root := knot.NewComponent("Root").
		Install(m).
		EntryPoint(widget)

	result := knot.Resolve(root)
	if err := result.Err(); err != nil {
		log.Fatal(knot.DetailedError(err))
	}

Resolution walks breadth-first from the entry points, satisfying each
requested key with exactly one binding.  All structural defects found
in one run (duplicate bindings, missing bindings, illegal cycles,
scope conflicts) are aggregated and reported together; nothing fails
fast.

Scopes and ownership

A scoped binding is owned by the nearest component in the requester's
ancestor chain carrying that scope, and gets exactly one cached
storage cell per component instance.  An unscoped binding is owned by
the requesting component and constructed inline at every use site.
Inheriting components reuse the ancestor's resolution; they never
re-declare it.

Cycles

A dependency cycle is legal only if at least one edge along it is a
deferred-access request (knot.DeferredOf).  A request for a deferred
key with no explicit binding synthesizes a wrapper that constructs
the underlying key lazily, which is what breaks the cycle.

The generation plan

Each reached component gets a GenerationPlan: an ordered list of
instantiation steps tagged Inline, CachedField, DeferredWrapper, or
BuilderSupplied, plus the owned-vs-inherited split, delegate aliases,
and the list of declared-but-unreached subcomponents that were
pruned.  Resolving the same model twice yields identical plans.

*/
package knot
