package knot

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

type graphError struct {
	err     error
	details string
}

func (ge *graphError) Error() string {
	return ge.err.Error()
}

func newGraphError(component string, diags []Diagnostic, trace string) error {
	var sb strings.Builder
	n := 0
	for _, d := range diags {
		if d.Severity != Error {
			continue
		}
		if n > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(d.String())
		n++
	}
	return &graphError{
		err:     fmt.Errorf("%s: %d error(s) resolving binding graph:\n%s", component, n, sb.String()),
		details: trace,
	}
}

// DetailedError transforms errors into strings.  If the error happens
// to be an error returned by Resolve() then the result includes the
// captured resolution trace, which is much more useful for diagnosing
// graph problems than the error message alone.
func DetailedError(err error) string {
	var ge *graphError
	if errors.As(err, &ge) {
		out := err.Error()
		if ge.details != "" {
			out += "\n\n" + ge.details
		}
		if dups := duplicateTypeNames(); dups != "" {
			out += "\n\nWarning: the following type names refer to more than one type:\n" + dups
		}
		return out
	}
	return err.Error()
}

var (
	duplicatesThrough int
	dupLock           sync.Mutex
	duplicates        string
	duplicatesFound   = make(map[string]struct{})
)

// duplicateTypeNames scans the interning table for distinct types that
// render to the same display name, which makes diagnostics ambiguous.
func duplicateTypeNames() string {
	max := func() int {
		typeLock.Lock()
		defer typeLock.Unlock()
		return typeCounter
	}()
	dupLock.Lock()
	defer dupLock.Unlock()
	if duplicatesThrough == max {
		return duplicates
	}
	names := make(map[string]struct{})
	for i := 1; i <= max; i++ {
		n := typeCode(i).String()
		if _, ok := names[n]; ok {
			if _, ok := duplicatesFound[n]; !ok {
				duplicates += " " + n
				duplicatesFound[n] = struct{}{}
			}
		}
		names[n] = struct{}{}
	}
	duplicatesThrough = max
	return duplicates
}
