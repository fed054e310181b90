package knot

// Runtime support for emitted code.  The compiler core is pure and
// single-threaded; the types below are what the generated program
// links against, and they carry the concurrency guarantees the plan
// imposes on generated output: for a scoped cache, the first caller
// wins, every later caller observes the already-constructed instance,
// and the constructed value is visible across threads.

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
)

// Cell is the per-component-instance storage behind a CachedField
// step.  Construction happens at most once, under double-checked
// locking.
type Cell[T any] struct {
	done  uint32
	mu    sync.Mutex
	value T
}

// Get returns the cached value, constructing it on first access.  If
// several goroutines race the first access, exactly one runs build.
func (c *Cell[T]) Get(build func() T) T {
	if atomic.LoadUint32(&c.done) == 1 {
		return c.value
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == 0 {
		c.value = build()
		atomic.StoreUint32(&c.done, 1)
	}
	return c.value
}

// Deferred is the indirection object behind a DeferredWrapper step: it
// captures just enough context to construct the underlying key on
// first use, so the wrapper itself can be handed out before its
// target's construction has completed.
type Deferred[T any] struct {
	cell  Cell[T]
	build func() T
}

// Defer wraps a construction function.
func Defer[T any](build func() T) *Deferred[T] {
	return &Deferred[T]{build: build}
}

// Get constructs the underlying value on first call and returns the
// same value afterwards.
func (d *Deferred[T]) Get() T {
	return d.cell.Get(d.build)
}

// CheckProvided enforces the nil contract on a provider or factory
// method result.  It is a fatal error for a provider that is not
// declared nullable to produce an absent value.
func CheckProvided[T any](v T, source string) T {
	if isNil(v) {
		panic(fmt.Sprintf("cannot return nil from a non-nullable provider method: %s", source))
	}
	return v
}

// CheckAccessed enforces the nil contract at a component accessor
// method.
func CheckAccessed[T any](v T, source string) T {
	if isNil(v) {
		panic(fmt.Sprintf("cannot return nil from a non-nullable component accessor method: %s", source))
	}
	return v
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

// BuilderState tracks which required builder keys have been set.  The
// generated builder feeds it from every setter and calls Assemble
// inside build(); an unset required key is a fatal construction
// error, raised at build time rather than compile time.
type BuilderState struct {
	missing []string
}

// Require records that the named required key was (or was not) set.
func (bs *BuilderState) Require(name string, set bool) {
	if !set {
		bs.missing = append(bs.missing, name)
	}
}

// Assemble returns an error naming every required key that was never
// set, or nil when the builder is complete.
func (bs *BuilderState) Assemble() error {
	if len(bs.missing) == 0 {
		return nil
	}
	return fmt.Errorf("cannot build: required value(s) not set: %s", strings.Join(bs.missing, ", "))
}
