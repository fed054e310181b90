package knot

// Structural validation runs after resolution in a single aggregation
// pass: every independent defect is reported, nothing fails fast.
// Missing bindings, duplicates, unplaceable scopes, and illegal cycles
// are recorded while the graph is walked (resolve.go, cycle.go); the
// checks below need the finished component tree.

func validate(root *componentResolution, diags *diagnostics) {
	validateScopes(root, diags, make(map[Scope]*componentResolution))
}

func validateScopes(cr *componentResolution, diags *diagnostics, chain map[Scope]*componentResolution) {
	scope := cr.component.scope
	if scope != Unscoped {
		if prior, ok := chain[scope]; ok {
			diags.add(Diagnostic{
				Severity:  Error,
				Component: cr.component.name,
				Message: "scope " + string(scope) + " is declared on both " +
					prior.component.name + " and " + cr.component.name +
					": ambiguous cache owner",
			})
		} else {
			chain[scope] = cr
			defer delete(chain, scope)
		}
	}

	for _, key := range cr.order {
		res := cr.resolved[key]
		b := res.binding
		if b.kind == instanceBinding && b.scope != Unscoped {
			diags.add(Diagnostic{
				Severity:  Error,
				Component: cr.component.name,
				Message:   key.String() + " is a builder-bound instance and may not declare a scope",
				Keys:      []Key{key},
				Bindings:  []*Binding{b},
			})
		}
		if b.kind == delegateBinding && b.key == b.delegateTo {
			diags.add(Diagnostic{
				Severity:  Error,
				Component: cr.component.name,
				Message:   key.String() + " delegates to itself",
				Keys:      []Key{key},
				Bindings:  []*Binding{b},
			})
		}
	}

	for _, child := range cr.children {
		validateScopes(child, diags, chain)
	}
}
