package knot

import (
	"sort"
	"sync"
)

// Graph resolution walks breadth-first from a component's entry
// points, satisfying each requested Key with exactly one binding and
// enqueueing that binding's dependencies.  The walk is single
// threaded, deterministic, and side-effect-free aside from diagnostic
// accumulation; per-component resolution order is the insertion order
// of first discovery, which fixes the field order of the generation
// plan across runs.

// resolution is one Key satisfied in one component.
type resolution struct {
	key     Key
	binding *Binding
	owner   *componentResolution
	path    []Key // discovery path from the nearest entry point
}

// componentResolution is the working state and result for one
// component in the tree.  Lookups walk the parent chain; writes go to
// the owning component only.
type componentResolution struct {
	component *Component
	parent    *componentResolution
	store     *Store
	resolved  map[Key]*resolution
	order     []Key
	inherited map[Key]*componentResolution
	aliases   map[Key]Key
	failed    map[Key]struct{} // duplicate or missing; do not expand again
	missing   map[Key][]Key    // key -> discovery path
	cycleKeys map[Key]struct{}
	children  []*componentResolution
	byChild   map[*Component]*componentResolution
}

func newComponentResolution(c *Component, parent *componentResolution) *componentResolution {
	cr := &componentResolution{
		component: c,
		parent:    parent,
		store:     NewStore(c),
		resolved:  make(map[Key]*resolution),
		inherited: make(map[Key]*componentResolution),
		aliases:   make(map[Key]Key),
		failed:    make(map[Key]struct{}),
		missing:   make(map[Key][]Key),
		cycleKeys: make(map[Key]struct{}),
		byChild:   make(map[*Component]*componentResolution),
	}
	return cr
}

type request struct {
	cr   *componentResolution
	key  Key
	path []Key
}

type resolver struct {
	root  *componentResolution
	diags *diagnostics
	queue []request
}

func resolveComponent(root *Component) (*componentResolution, *diagnostics) {
	debugf("BEGIN resolve %s", root.name)
	defer debugf("END resolve %s", root.name)

	r := &resolver{
		root:  newComponentResolution(root, nil),
		diags: &diagnostics{},
	}
	r.reportMalformed(r.root)
	r.enqueueEntryPoints(r.root)
	for len(r.queue) > 0 {
		req := r.queue[0]
		r.queue = r.queue[1:]
		r.resolveRequest(req)
	}
	findCycles(r.root, r.diags)
	validate(r.root, r.diags)
	return r.root, r.diags
}

func (r *resolver) enqueueEntryPoints(cr *componentResolution) {
	for _, k := range cr.component.entryPoints {
		r.queue = append(r.queue, request{cr: cr, key: k})
	}
	// Builder-settable keys resolve even without an accessor so that
	// the generated builder has a step to store them into.
	for _, bk := range cr.component.builderKeys {
		r.queue = append(r.queue, request{cr: cr, key: bk.key})
	}
}

func (r *resolver) reportMalformed(cr *componentResolution) {
	for range cr.store.malformed {
		r.diags.errorf(cr.component.name, nil,
			"a module installed in %s has malformed declarations", cr.component.name)
	}
}

func (r *resolver) resolveRequest(req request) {
	// Already settled somewhere in the ancestor chain?  Inheriting
	// components reuse the ancestor's resolution; they never
	// re-declare it.
	for cr := req.cr; cr != nil; cr = cr.parent {
		if res, ok := cr.resolved[req.key]; ok {
			if cr != req.cr {
				req.cr.inherited[req.key] = cr
				r.checkShadowing(req, res)
			}
			return
		}
		if _, ok := cr.failed[req.key]; ok {
			return
		}
	}

	candidates := r.gatherCandidates(req.cr, req.key)
	debugf("resolve %s in %s: %d candidate(s)", req.key, req.cr.component.name, len(candidates))

	switch {
	case len(candidates) == 0:
		r.resolveImplicit(req)
	case allMultibound(candidates):
		r.resolveAggregate(req, candidates)
	case len(candidates) > 1:
		r.reportDuplicate(req, candidates)
	default:
		r.record(req, candidates[0].binding)
	}
}

// candidate is one visible declaration for a requested key: the
// binding plus where it was seen (distance up the ancestor chain from
// the requester) and its order within that store.
type candidate struct {
	binding     *Binding
	depth       int
	moduleOrder int
	declOrder   int
}

// gatherCandidates collects every declaration for key visible from cr:
// its own store first, then ancestor stores.  The same declaration
// reached through two stores counts once, with the order metadata of
// the store nearest the requester.
func (r *resolver) gatherCandidates(cr *componentResolution, key Key) []candidate {
	var out []candidate
	seen := make(map[*Binding]struct{})
	depth := 0
	for ; cr != nil; cr = cr.parent {
		for _, d := range cr.store.entriesFor(key) {
			if _, ok := seen[d.binding]; ok {
				continue
			}
			seen[d.binding] = struct{}{}
			out = append(out, candidate{
				binding:     d.binding,
				depth:       depth,
				moduleOrder: d.moduleOrder,
				declOrder:   d.declOrder,
			})
		}
		depth++
	}
	return out
}

// checkShadowing reports a conflicting declaration below the owner of
// an inherited resolution.
func (r *resolver) checkShadowing(req request, res *resolution) {
	for cr := req.cr; cr != nil && cr != res.owner; cr = cr.parent {
		for _, b := range cr.store.Declarations(req.key) {
			if b == res.binding {
				continue
			}
			if b.kind == multiboundBinding && res.binding.kind == aggregateBinding {
				// A contribution meeting an inherited aggregate is the
				// multibinding's normal shape, not a competing
				// declaration.
				continue
			}
			r.diags.add(Diagnostic{
				Severity:  Error,
				Component: req.cr.component.name,
				Message:   req.key.String() + " is bound multiple times",
				Keys:      []Key{req.key},
				Bindings:  []*Binding{res.binding, b},
				Path:      req.path,
			})
			cr.failed[req.key] = struct{}{}
			return
		}
	}
}

func allMultibound(candidates []candidate) bool {
	for _, c := range candidates {
		if c.binding.kind != multiboundBinding {
			return false
		}
	}
	return len(candidates) > 0
}

// resolveImplicit handles keys with no explicit declaration: deferred
// wrappers are synthesized, structurally un-bindable types are
// reported, everything else is a missing binding.
func (r *resolver) resolveImplicit(req request) {
	if elem, ok := req.key.deferredElem(); ok {
		b := newBinding(deferredBinding, req.key)
		b.deps = []Key{elem}
		r.record(req, b)
		return
	}
	r.reportMissing(req)
}

func (r *resolver) reportMissing(req request) {
	req.cr.failed[req.key] = struct{}{}
	if !req.key.unbindable() {
		// Arrays and wildcard-bounded types stay out of the missing
		// set: no later generation round can supply them.
		req.cr.missing[req.key] = req.path
	}
	r.diags.add(Diagnostic{
		Severity:  Error,
		Component: req.cr.component.name,
		Message:   req.key.String() + " cannot be provided without an explicit binding",
		Keys:      []Key{req.key},
		Path:      req.path,
	})
}

func (r *resolver) reportDuplicate(req request, candidates []candidate) {
	// Do not expand further from this key: reporting each conflict
	// once avoids a combinatorial error explosion downstream.
	req.cr.failed[req.key] = struct{}{}
	bindings := make([]*Binding, len(candidates))
	for i, c := range candidates {
		bindings[i] = c.binding
	}
	r.diags.add(Diagnostic{
		Severity:  Error,
		Component: req.cr.component.name,
		Message:   req.key.String() + " is bound multiple times",
		Keys:      []Key{req.key},
		Bindings:  bindings,
		Path:      req.path,
	})
}

// resolveAggregate synthesizes the collection binding for a set of
// multibinding contributions.  Contribution order is stable: outermost
// component first, then the requesting-side store's module inclusion
// order, then declaration order.  The order is taken from the stores,
// not the declarations, so one module shared by several components
// contributes in each component's own inclusion order.
func (r *resolver) resolveAggregate(req request, contributions []candidate) {
	if !req.key.isCollection() {
		r.reportDuplicate(req, contributions)
		return
	}
	sorted := make([]candidate, len(contributions))
	copy(sorted, contributions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].depth != sorted[j].depth {
			return sorted[i].depth > sorted[j].depth
		}
		if sorted[i].moduleOrder != sorted[j].moduleOrder {
			return sorted[i].moduleOrder < sorted[j].moduleOrder
		}
		return sorted[i].declOrder < sorted[j].declOrder
	})
	ordered := make([]*Binding, len(sorted))
	for i, c := range sorted {
		ordered[i] = c.binding
	}

	if req.key.Type().Kind == KindMap {
		seen := make(map[string]*Binding)
		for _, b := range ordered {
			if prior, ok := seen[b.mapKey]; ok {
				r.diags.add(Diagnostic{
					Severity:  Error,
					Component: req.cr.component.name,
					Message:   "duplicate map key " + b.mapKey + " for " + req.key.String(),
					Keys:      []Key{req.key},
					Bindings:  []*Binding{prior, b},
					Path:      req.path,
				})
			}
			seen[b.mapKey] = b
		}
	}

	agg := newBinding(aggregateBinding, req.key)
	agg.contributions = ordered
	for _, b := range ordered {
		agg.deps = append(agg.deps, b.deps...)
	}
	r.record(req, agg)
}

// record places a resolution with its owner and expands the binding's
// dependencies.  Ownership: the nearest component walking from the
// requester to the root whose scope matches the binding's scope, or
// the requester itself for unscoped bindings.
func (r *resolver) record(req request, b *Binding) {
	owner := req.cr
	if b.scope != Unscoped {
		owner = nil
		for cr := req.cr; cr != nil; cr = cr.parent {
			if cr.component.scope == b.scope {
				owner = cr
				break
			}
		}
		if owner == nil {
			r.diags.add(Diagnostic{
				Severity:  Error,
				Component: req.cr.component.name,
				Message:   "scope " + string(b.scope) + " not found in hierarchy for " + req.key.String(),
				Keys:      []Key{req.key},
				Bindings:  []*Binding{b},
				Path:      req.path,
			})
			owner = req.cr
		}
	}

	res := &resolution{
		key:     req.key,
		binding: b,
		owner:   owner,
		path:    req.path,
	}
	owner.resolved[req.key] = res
	owner.order = append(owner.order, req.key)
	if owner != req.cr {
		req.cr.inherited[req.key] = owner
	}
	dumpResolution("resolved "+req.key.String(), res)

	if b.kind == delegateBinding {
		owner.aliases[req.key] = b.delegateTo
	}
	if b.kind == subcomponentBinding {
		r.attachChild(owner, b)
	}

	// A binding's dependencies resolve in the component that owns it;
	// anything the owner cannot see is a missing binding there.
	path := appendPath(req.path, req.key)
	for _, dep := range b.deps {
		r.queue = append(r.queue, request{cr: owner, key: dep, path: path})
	}
}

// attachChild hangs a reached subcomponent under the component whose
// store declares its factory binding, which may sit above the
// requester in the chain.  The declaration model is never consulted
// for parentage; for a shared module the same child descriptor may be
// declared by several components, each getting its own resolution.
func (r *resolver) attachChild(parent *componentResolution, b *Binding) {
	child := b.child
	declaredIn := parent
	for cr := parent; cr != nil; cr = cr.parent {
		if cr.store.declares(b) {
			declaredIn = cr
			break
		}
	}
	if _, ok := declaredIn.byChild[child]; ok {
		return
	}
	ccr := newComponentResolution(child, declaredIn)
	declaredIn.byChild[child] = ccr
	declaredIn.children = append(declaredIn.children, ccr)
	r.reportMalformed(ccr)
	r.enqueueEntryPoints(ccr)
}

func appendPath(path []Key, k Key) []Key {
	n := make([]Key, len(path), len(path)+1)
	copy(n, path)
	return append(n, k)
}

// chainLookup finds the resolution for key visible from cr.
func (cr *componentResolution) chainLookup(key Key) (*resolution, bool) {
	for c := cr; c != nil; c = c.parent {
		if res, ok := c.resolved[key]; ok {
			return res, true
		}
	}
	return nil, false
}

// Result is the outcome of resolving one root component.
type Result struct {
	Component   *Component
	Graph       *BindingGraph
	Plans       []*GenerationPlan // nil when Diagnostics contains errors
	Diagnostics []Diagnostic

	cr    *componentResolution
	trace string
}

// Err returns nil if the resolution produced generation plans, or an
// error aggregating every diagnostic otherwise.  DetailedError() on
// the returned error includes the captured resolution trace.
func (r *Result) Err() error {
	if !hasErrors(r.Diagnostics) {
		return nil
	}
	return newGraphError(r.Component.name, r.Diagnostics, r.trace)
}

func hasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Resolve builds the binding graph for a root component tree, runs the
// structural checks, and, if no errors were found, builds one
// generation plan per reached component (root first, then reached
// subcomponents in discovery order).
func Resolve(root *Component) *Result {
	res := resolveFast(root)
	if hasErrors(res.Diagnostics) {
		res.attachDebugging(captureResolveDebugging(root))
	}
	return res
}

func resolveFast(root *Component) *Result {
	debugLock.RLock()
	defer debugLock.RUnlock()
	cr, diags := resolveComponent(root)
	res := &Result{
		Component:   root,
		Graph:       &BindingGraph{cr: cr},
		Diagnostics: diags.list,
		cr:          cr,
	}
	if !diags.hasErrors() {
		res.Plans = buildPlans(cr)
	}
	return res
}

func (r *Result) attachDebugging(trace string) {
	r.trace = trace
}

// ResolveAll resolves several independent root components.  Each root
// is resolved in its own goroutine: they share only the immutable
// declaration model and the append-only type-interning table, and
// write to disjoint result structures.  Results come back in input
// order; a failed root does not disturb the others.
func ResolveAll(roots ...*Component) []*Result {
	results := make([]*Result, len(roots))
	var wg sync.WaitGroup
	for i, root := range roots {
		wg.Add(1)
		go func(i int, root *Component) {
			defer wg.Done()
			results[i] = Resolve(root)
		}(i, root)
	}
	wg.Wait()
	return results
}
