package knot

import (
	"fmt"
	"strings"
)

// Severity classifies a diagnostic.
type Severity int

const (
	// Error diagnostics abort the affected component's generation
	// plan.  Other root components in the same invocation still
	// complete and report their own diagnostics.
	Error Severity = iota
	// Warning diagnostics never abort anything.
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one problem found while resolving or validating a
// component's graph.  All independent defects found in a single run
// are reported together; nothing fails fast.
type Diagnostic struct {
	Severity  Severity
	Message   string
	Component string     // component at which the problem surfaced
	Keys      []Key      // implicated keys, if any
	Bindings  []*Binding // offending declarations, if any
	Path      []Key      // dependency path from the nearest entry point
}

func (d Diagnostic) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s: %s", d.Severity, d.Component, d.Message)
	if len(d.Path) > 0 {
		sb.WriteString("\n    requested via")
		for _, k := range d.Path {
			sb.WriteString("\n        " + k.String())
		}
	}
	for _, b := range d.Bindings {
		sb.WriteString("\n    " + b.signature())
	}
	return sb.String()
}

// diagnostics accumulates Diagnostics in discovery order.  It is the
// only mutable state the resolver writes besides its own result
// structures.
type diagnostics struct {
	list []Diagnostic
}

func (ds *diagnostics) add(d Diagnostic) {
	ds.list = append(ds.list, d)
	debugf("diagnostic: %s", d.Message)
}

func (ds *diagnostics) errorf(component string, path []Key, format string, args ...interface{}) {
	ds.add(Diagnostic{
		Severity:  Error,
		Component: component,
		Message:   fmt.Sprintf(format, args...),
		Path:      path,
	})
}

func (ds *diagnostics) hasErrors() bool {
	for _, d := range ds.list {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

func formatPath(path []Key) string {
	parts := make([]string, len(path))
	for i, k := range path {
		parts[i] = k.String()
	}
	return strings.Join(parts, " -> ")
}
