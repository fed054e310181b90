package knot

// Cycle legality: a cycle is legal only if at least one edge along it
// is a deferred-access request.  The walk below only follows eager
// edges, so any cycle it finds is illegal.  Whether a cycle is broken
// by one deferred edge or several makes no difference: each non-eager
// edge independently removes the completed-construction requirement.

const (
	colorWhite = iota
	colorGray
	colorBlack
)

type cycleFinder struct {
	color    map[*resolution]int
	stack    []*resolution
	reported map[*resolution]struct{}
	diags    *diagnostics
}

func findCycles(root *componentResolution, diags *diagnostics) {
	cf := &cycleFinder{
		color:    make(map[*resolution]int),
		reported: make(map[*resolution]struct{}),
		diags:    diags,
	}
	cf.walkComponent(root)
}

func (cf *cycleFinder) walkComponent(cr *componentResolution) {
	for _, key := range cr.order {
		cf.visit(cr.resolved[key])
	}
	for _, child := range cr.children {
		cf.walkComponent(child)
	}
}

func (cf *cycleFinder) visit(res *resolution) {
	if res == nil || cf.color[res] == colorBlack {
		return
	}
	if cf.color[res] == colorGray {
		cf.report(res)
		return
	}
	cf.color[res] = colorGray
	cf.stack = append(cf.stack, res)
	for i, dep := range res.binding.deps {
		if !res.binding.eagerDep(i) {
			continue
		}
		if depRes, ok := res.owner.chainLookup(dep); ok {
			cf.visit(depRes)
		}
	}
	cf.stack = cf.stack[:len(cf.stack)-1]
	cf.color[res] = colorBlack
}

// report extracts the cycle from the gray stack and reports it once.
func (cf *cycleFinder) report(head *resolution) {
	start := -1
	for i, res := range cf.stack {
		if res == head {
			start = i
			break
		}
	}
	if start == -1 {
		return
	}
	cycle := cf.stack[start:]
	if _, ok := cf.reported[head]; ok {
		return
	}
	for _, res := range cycle {
		cf.reported[res] = struct{}{}
		res.owner.cycleKeys[res.key] = struct{}{}
	}
	keys := make([]Key, 0, len(cycle)+1)
	for _, res := range cycle {
		keys = append(keys, res.key)
	}
	keys = append(keys, head.key)
	cf.diags.add(Diagnostic{
		Severity:  Error,
		Component: head.owner.component.name,
		Message:   "dependency cycle: " + formatPath(keys),
		Keys:      keys[:len(keys)-1],
		Path:      head.path,
	})
}
