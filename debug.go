package knot

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Resolution is silent and fast until something goes wrong: when a
// graph fails, the resolution is re-run with tracing enabled and the
// captured trace rides along inside the returned error (see
// DetailedError).

var (
	debugLock     sync.RWMutex
	debug         uint32
	debugOutput   string
	debugOutputMu sync.Mutex
)

var (
	debuglnHook func(...any)
	debugfHook  func(string, ...any)
)

func debugEnabled() bool {
	return atomic.LoadUint32(&debug) == 1
}

func debugln(stuff ...any) {
	if !debugEnabled() {
		return
	}

	debugOutputMu.Lock()
	if debuglnHook != nil {
		debuglnHook(stuff...)
	} else {
		debugOutput += fmt.Sprintln(stuff...)
	}
	debugOutputMu.Unlock()
}

func debugf(format string, stuff ...any) {
	if !debugEnabled() {
		return
	}

	debugOutputMu.Lock()
	if debugfHook != nil {
		debugfHook(format, stuff...)
	} else {
		debugOutput += fmt.Sprintf(format+"\n", stuff...)
	}
	debugOutputMu.Unlock()
}

// captureResolveDebugging re-runs a failed resolution with the trace
// enabled and returns the captured output.  Resolution is
// deterministic, so the re-run reproduces the failure exactly.
func captureResolveDebugging(root *Component) string {
	debugLock.Lock()
	if atomic.SwapUint32(&debug, 1) == 1 {
		return "already capturing"
	}
	defer func() {
		atomic.StoreUint32(&debug, 0)
		debugLock.Unlock()
	}()

	debugOutputMu.Lock()
	debugOutput = ""
	debugOutputMu.Unlock()

	_, _ = resolveComponent(root)

	debugOutputMu.Lock()
	out := debugOutput
	debugOutputMu.Unlock()
	return out
}

func dumpResolution(context string, res *resolution) {
	if !debugEnabled() {
		return
	}
	out := fmt.Sprintf("%s: %s", context, res.binding)
	out += fmt.Sprintf("\n\towner: %s", res.owner.component.name)
	if len(res.binding.deps) > 0 {
		out += "\n\tdeps: " + formatPath(res.binding.deps)
	}
	if len(res.path) > 0 {
		out += "\n\tvia: " + formatPath(res.path)
	}
	debugln(out)
}
