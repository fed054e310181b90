package knot

// The generation plan is what the external code emitter consumes: one
// ordered list of instantiation steps per component, each tagged with
// a strategy, plus the owned-vs-inherited split and the list of
// subcomponents that were declared but never reached.

// Strategy is the instantiation strategy for one owned key.
type Strategy int

const (
	// Inline constructs at every use site; unscoped, no caching.
	Inline Strategy = iota
	// CachedField allocates one storage cell per component
	// instance; first access constructs and stores, later accesses
	// read the cell.
	CachedField
	// DeferredWrapper emits an indirection object that constructs
	// the underlying key lazily; its dependencies need not be
	// resolved before the wrapper itself is constructed.
	DeferredWrapper
	// BuilderSupplied reads a builder-set field; there is no
	// construction logic.
	BuilderSupplied
)

func (s Strategy) String() string {
	switch s {
	case Inline:
		return "inline"
	case CachedField:
		return "cached-field"
	case DeferredWrapper:
		return "deferred-wrapper"
	case BuilderSupplied:
		return "builder-supplied"
	default:
		return "?"
	}
}

// StepOrigin distinguishes where a nil-contract failure would be
// reported from.
type StepOrigin int

const (
	// OriginProvider marks a step reached through another binding.
	OriginProvider StepOrigin = iota
	// OriginAccessor marks a step backing a component accessor
	// method.
	OriginAccessor
)

func (o StepOrigin) String() string {
	if o == OriginAccessor {
		return "component accessor method"
	}
	return "provider method"
}

// Step is one instantiation step in a component's emission sequence.
type Step struct {
	Key          Key
	Strategy     Strategy
	Binding      *Binding
	Dependencies []Key

	// NilCheck is set when the binding's type is a non-primitive
	// reference not declared nullable: emitted code must fail fast
	// with a message naming Origin when the constructed value is
	// absent.
	NilCheck bool
	Origin   StepOrigin
}

// GenerationPlan is the deterministic emission plan for one component.
type GenerationPlan struct {
	Component string

	// Steps in emission order: a dependency's step precedes its
	// dependents' except across deferred-wrapper edges.
	Steps []Step

	// Owned lists this component's keys in first-discovery order;
	// this is the order fields are declared in emitted code.
	Owned []Key

	// Inherited maps keys used here but resolved by an ancestor to
	// the owning component's name.  Inherited keys get no steps;
	// emitted code references the ancestor's cell or factory.
	Inherited map[Key]string

	// Aliases maps delegated keys to their targets.  An unscoped
	// alias synthesizes no instance and needs no step.
	Aliases map[Key]Key

	// PrunedSubcomponents names child components that were declared
	// installable but never reached from any entry point.  No code
	// is generated for them.
	PrunedSubcomponents []string
}

// buildPlans converts a validated, error-free component tree into
// plans, root first, then reached subcomponents in discovery order.
func buildPlans(root *componentResolution) []*GenerationPlan {
	var plans []*GenerationPlan
	var walk func(cr *componentResolution)
	walk = func(cr *componentResolution) {
		plans = append(plans, buildPlan(cr))
		for _, child := range cr.children {
			walk(child)
		}
	}
	walk(root)
	return plans
}

func buildPlan(cr *componentResolution) *GenerationPlan {
	plan := &GenerationPlan{
		Component: cr.component.name,
		Owned:     make([]Key, len(cr.order)),
		Inherited: make(map[Key]string, len(cr.inherited)),
		Aliases:   make(map[Key]Key, len(cr.aliases)),
	}
	copy(plan.Owned, cr.order)
	for key, owner := range cr.inherited {
		plan.Inherited[key] = owner.component.name
	}
	for key, target := range cr.aliases {
		plan.Aliases[key] = target
	}
	for _, child := range cr.component.declaredChildren() {
		if _, reached := cr.byChild[child]; !reached {
			plan.PrunedSubcomponents = append(plan.PrunedSubcomponents, child.name)
		}
	}

	steps := make([]Step, 0, len(cr.order))
	for _, key := range cr.order {
		if step, ok := buildStep(cr, cr.resolved[key]); ok {
			steps = append(steps, step)
		}
	}
	plan.Steps = orderSteps(cr, steps)
	return plan
}

func buildStep(cr *componentResolution, res *resolution) (Step, bool) {
	b := res.binding
	if b.kind == delegateBinding && b.scope == Unscoped {
		// Pure alias: the emitter redirects references, nothing
		// to instantiate.
		return Step{}, false
	}
	step := Step{
		Key:          res.key,
		Binding:      b,
		Dependencies: b.deps,
		Origin:       stepOrigin(cr, res.key),
	}
	switch {
	case b.kind == instanceBinding || b.kind == dependencyBinding:
		step.Strategy = BuilderSupplied
	case b.kind == deferredBinding:
		step.Strategy = DeferredWrapper
	case b.scope != Unscoped:
		step.Strategy = CachedField
	default:
		step.Strategy = Inline
	}
	switch b.kind {
	case provisionBinding, dependencyBinding, delegateBinding:
		step.NilCheck = res.key.nilable() && !b.nullable
	}
	return step, true
}

func stepOrigin(cr *componentResolution, key Key) StepOrigin {
	if cr.component.hasEntryPoint(key) {
		return OriginAccessor
	}
	return OriginProvider
}

// orderSteps sorts steps so that a dependency's step precedes its
// dependents', with first-discovery order as the stable tiebreak.
// Deferred-wrapper edges are exempt; that exemption is what allows a
// plan to exist for graphs with legal cycles.
func orderSteps(cr *componentResolution, steps []Step) []Step {
	index := make(map[Key]int, len(steps))
	for i, s := range steps {
		index[s.Key] = i
	}
	indegree := make([]int, len(steps))
	dependents := make([][]int, len(steps))
	for i, s := range steps {
		for d, dep := range s.Dependencies {
			if !s.Binding.eagerDep(d) {
				continue
			}
			j, owned := index[dep]
			if !owned || j == i {
				continue
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	ordered := make([]Step, 0, len(steps))
	emitted := make([]bool, len(steps))
	for len(ordered) < len(steps) {
		picked := -1
		for i := range steps {
			if !emitted[i] && indegree[i] == 0 {
				picked = i
				break
			}
		}
		if picked == -1 {
			// Leftover eager cycle; validation already rejected
			// the graph, emit in discovery order to stay total.
			for i := range steps {
				if !emitted[i] {
					picked = i
					break
				}
			}
		}
		emitted[picked] = true
		ordered = append(ordered, steps[picked])
		for _, dep := range dependents[picked] {
			indegree[dep]--
		}
	}
	return ordered
}
