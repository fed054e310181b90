// Package reflectmodel elaborates Go functions, values, and struct
// types into the declaration model that the knot core consumes.  The
// core itself never inspects Go syntax or reflection; this package is
// one possible model provider for it.
package reflectmodel

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/muir/reflectutils"

	"github.com/knotdi/knot"
)

// TypeRefOf maps a reflect.Type to the core's structural type model.
// Nullary single-result functions become deferred-access wrappers;
// slices and maps become multibinding collection types.
func TypeRefOf(t reflect.Type) knot.TypeRef {
	switch t.Kind() {
	case reflect.Func:
		if t.NumIn() == 0 && t.NumOut() == 1 {
			return knot.DeferredOf(TypeRefOf(t.Out(0)))
		}
		return knot.OpaqueType(reflectutils.TypeName(t))
	case reflect.Slice:
		return knot.SliceOf(TypeRefOf(t.Elem()))
	case reflect.Array:
		return knot.ArrayOf(TypeRefOf(t.Elem()))
	case reflect.Map:
		return knot.MapOf(reflectutils.TypeName(t.Key()), TypeRefOf(t.Elem()))
	case reflect.Ptr:
		return knot.PointerTo(TypeRefOf(t.Elem()))
	case reflect.Interface, reflect.Chan:
		return knot.OpaqueType(reflectutils.TypeName(t))
	default:
		return knot.PrimitiveType(reflectutils.TypeName(t))
	}
}

// Key returns the unqualified key for T.
func Key[T any]() knot.Key {
	return knot.KeyOf(TypeRefOf(typeOf[T]()), "")
}

// Named returns the key for T qualified by name.
func Named[T any](name string) knot.Key {
	return knot.KeyOf(TypeRefOf(typeOf[T]()), name)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Provides elaborates a constructor function into a provision
// binding: each parameter type becomes a dependency key and the
// single result type becomes the provided key.
func Provides(fn any) *knot.Binding {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Type().Kind() != reflect.Func {
		panic(fmt.Sprintf("Provides must be passed a function, got %T", fn))
	}
	t := v.Type()
	if t.NumOut() != 1 {
		panic(fmt.Sprintf("Provides function %s must return exactly one value", funcName(v)))
	}
	deps := make([]knot.Key, t.NumIn())
	for i := 0; i < t.NumIn(); i++ {
		deps[i] = knot.KeyOf(TypeRefOf(t.In(i)), "")
	}
	key := knot.KeyOf(TypeRefOf(t.Out(0)), "")
	return knot.Provision(key, deps...).From(funcName(v))
}

// Struct elaborates T into a member-injection style provision: each
// exported field becomes a dependency key.  The "inject" struct tag
// qualifies a field's key; a tag of "-" skips the field.
func Struct[T any]() *knot.Binding {
	t := typeOf[T]()
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("Struct requires a struct type, got %s", reflectutils.TypeName(t)))
	}
	var deps []knot.Key
	var names []string
	reflectutils.WalkStructElements(t, func(field reflect.StructField) bool {
		if field.PkgPath != "" {
			return true
		}
		qualifier := ""
		if tag, ok := field.Tag.Lookup("inject"); ok {
			if tag == "-" {
				return true
			}
			qualifier = tag
		}
		deps = append(deps, knot.KeyOf(TypeRefOf(field.Type), qualifier))
		names = append(names, field.Name)
		return true
	})
	source := reflectutils.TypeName(t) + "{" + strings.Join(names, ", ") + "}"
	return knot.Provision(Key[T](), deps...).From(source)
}

// Value elaborates a literal into an instance binding for its type.
func Value(v any) *knot.Binding {
	t := reflect.TypeOf(v)
	if t == nil {
		panic("Value must be passed a non-nil value")
	}
	return knot.Instance(knot.KeyOf(TypeRefOf(t), "")).From(fmt.Sprintf("literal %s", reflectutils.TypeName(t)))
}

// Module groups items into a knot module.  Items may be *knot.Binding
// or plain constructor functions (elaborated with Provides).
func Module(name string, items ...any) *knot.Module {
	bindings := make([]*knot.Binding, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case nil:
			continue
		case *knot.Binding:
			bindings = append(bindings, v)
		default:
			bindings = append(bindings, Provides(item))
		}
	}
	return knot.NewModule(name, bindings...)
}

func funcName(v reflect.Value) string {
	n := runtime.FuncForPC(v.Pointer()).Name()
	if i := strings.LastIndex(n, "/"); i != -1 {
		n = n[i+1:]
	}
	return n
}
