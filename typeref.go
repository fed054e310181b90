package knot

// The core never inspects source syntax.  The declaration model provider
// hands it TypeRefs: structural descriptions of the types of the language
// being compiled.  TypeRefs are interned into integer typeCodes so that
// Keys are cheap map keys and so that duplicate display names can be
// detected when formatting diagnostics.

import (
	"strconv"
	"sync"
)

// TypeKind describes the structural shape of a TypeRef.
type TypeKind int

const (
	KindOpaque   TypeKind = iota // opaque
	KindPointer                  // pointer
	KindSlice                    // slice
	KindMap                      // map
	KindArray                    // array
	KindDeferred                 // deferred
	KindWildcard                 // wildcard
)

func (k TypeKind) String() string {
	switch k {
	case KindOpaque:
		return "opaque"
	case KindPointer:
		return "pointer"
	case KindSlice:
		return "slice"
	case KindMap:
		return "map"
	case KindArray:
		return "array"
	case KindDeferred:
		return "deferred"
	case KindWildcard:
		return "wildcard"
	default:
		return "?"
	}
}

// TypeRef is the structural description of a type as elaborated by the
// declaration model provider.  Two TypeRefs that are structurally equal
// refer to the same type no matter how or when they were built.
type TypeRef struct {
	Kind TypeKind

	// Name is the display name for KindOpaque and the key type
	// name for KindMap.  For KindWildcard it describes the bound.
	Name string

	// Elem is set for pointer, slice, map, array, and deferred kinds.
	Elem *TypeRef

	// Nilable marks opaque types whose values can be absent
	// (object references, as opposed to primitives).  Pointer,
	// slice, map, and deferred types are always nilable.
	Nilable bool
}

// OpaqueType returns a TypeRef for a named reference type.
func OpaqueType(name string) TypeRef {
	return TypeRef{Kind: KindOpaque, Name: name, Nilable: true}
}

// PrimitiveType returns a TypeRef for a named value type.  No nil
// checks are ever generated for primitive-typed bindings.
func PrimitiveType(name string) TypeRef {
	return TypeRef{Kind: KindOpaque, Name: name}
}

// PointerTo wraps a TypeRef in a pointer.
func PointerTo(t TypeRef) TypeRef {
	return TypeRef{Kind: KindPointer, Elem: &t, Nilable: true}
}

// SliceOf returns the collection type that element multibinding
// contributions for t aggregate into.
func SliceOf(t TypeRef) TypeRef {
	return TypeRef{Kind: KindSlice, Elem: &t, Nilable: true}
}

// MapOf returns the collection type that keyed multibinding
// contributions for t aggregate into.  keyName names the map's key
// type for display purposes only.
func MapOf(keyName string, t TypeRef) TypeRef {
	return TypeRef{Kind: KindMap, Name: keyName, Elem: &t, Nilable: true}
}

// ArrayOf returns an array type.  Array types cannot be provided
// without an explicit binding.
func ArrayOf(t TypeRef) TypeRef {
	return TypeRef{Kind: KindArray, Elem: &t}
}

// DeferredOf wraps a TypeRef in a deferred-access wrapper.  A request
// for a deferred type can be satisfied without the underlying type's
// construction having completed; this is what makes cycles legal.
func DeferredOf(t TypeRef) TypeRef {
	return TypeRef{Kind: KindDeferred, Elem: &t, Nilable: true}
}

// WildcardType returns a TypeRef for a wildcard-bounded generic type.
// Wildcard types cannot be provided without an explicit binding.
func WildcardType(bound string) TypeRef {
	return TypeRef{Kind: KindWildcard, Name: bound}
}

func (t TypeRef) String() string {
	switch t.Kind {
	case KindOpaque:
		return t.Name
	case KindPointer:
		return "*" + t.Elem.String()
	case KindSlice:
		return "[]" + t.Elem.String()
	case KindMap:
		return "map[" + t.Name + "]" + t.Elem.String()
	case KindArray:
		return t.Elem.String() + "[]"
	case KindDeferred:
		return "deferred " + t.Elem.String()
	case KindWildcard:
		return "? extends " + t.Name
	default:
		return "invalid type"
	}
}

// canonical is the interning identity.  It differs from String() in
// that it encodes nilability so that a reference type and a primitive
// that happen to share a display name do not collapse.
func (t TypeRef) canonical() string {
	n := "v"
	if t.Nilable {
		n = "r"
	}
	switch t.Kind {
	case KindOpaque:
		return n + ":" + t.Name
	case KindWildcard:
		return "w:" + t.Name
	case KindMap:
		return "m:" + t.Name + ":" + t.Elem.canonical()
	default:
		return strconv.Itoa(int(t.Kind)) + ":" + t.Elem.canonical()
	}
}

type typeCode int

var (
	typeCounter = 0
	typeLock    sync.Mutex
	typeMap     = make(map[string]typeCode)
	reverseMap  = make(map[typeCode]TypeRef)
)

// getTypeCode interns a TypeRef.  The table is append-only and shared
// process-wide; structurally equal TypeRefs always get the same code.
func getTypeCode(t TypeRef) typeCode {
	c := t.canonical()
	typeLock.Lock()
	defer typeLock.Unlock()
	if tc, found := typeMap[c]; found {
		return tc
	}
	typeCounter++
	tc := typeCode(typeCounter)
	typeMap[c] = tc
	reverseMap[tc] = t
	return tc
}

// Ref returns the TypeRef for this typeCode
func (tc typeCode) Ref() TypeRef {
	typeLock.Lock()
	defer typeLock.Unlock()
	return reverseMap[tc]
}

func (tc typeCode) String() string {
	return tc.Ref().String()
}
