package knot

// Key is the universal lookup identity: everything a component can
// request, and everything a binding can produce, is a Key.

// Key identifies an injectable dependency: a type plus an optional
// qualifier.  Keys are comparable values; two Keys built from
// structurally equal (type, qualifier) pairs are identical for map
// lookup no matter where or when they were built.
type Key struct {
	tc        typeCode
	qualifier string
}

// KeyOf builds a Key from a type and an optional qualifier.  Pass ""
// for an unqualified key.
func KeyOf(t TypeRef, qualifier string) Key {
	return Key{
		tc:        getTypeCode(t),
		qualifier: qualifier,
	}
}

// Type returns the TypeRef this Key requests.
func (k Key) Type() TypeRef { return k.tc.Ref() }

// Qualifier returns the qualifier annotation, or "" if there is none.
func (k Key) Qualifier() string { return k.qualifier }

func (k Key) String() string {
	if k.qualifier != "" {
		return "@" + k.qualifier + " " + k.tc.String()
	}
	return k.tc.String()
}

// zero reports whether k is the zero Key (no type at all).
func (k Key) zero() bool { return k.tc == 0 }

// deferredElem unwraps a deferred-access key.  The element key keeps
// the qualifier: a request for "deferred @q T" is satisfied through
// the binding for "@q T".
func (k Key) deferredElem() (Key, bool) {
	t := k.Type()
	if t.Kind != KindDeferred {
		return Key{}, false
	}
	return Key{tc: getTypeCode(*t.Elem), qualifier: k.qualifier}, true
}

// isCollection reports whether k is a multibinding collection key.
func (k Key) isCollection() bool {
	kind := k.Type().Kind
	return kind == KindSlice || kind == KindMap
}

// collectionOf returns the collection key that an element contribution
// for k aggregates into.
func (k Key) collectionOf() Key {
	return Key{tc: getTypeCode(SliceOf(k.Type())), qualifier: k.qualifier}
}

// mapCollectionOf returns the keyed-map collection key that a keyed
// contribution for k aggregates into.
func (k Key) mapCollectionOf(keyName string) Key {
	return Key{tc: getTypeCode(MapOf(keyName, k.Type())), qualifier: k.qualifier}
}

// unbindable reports whether k's type can never be satisfied without
// an explicit binding: raw arrays and wildcard-bounded generics.
func (k Key) unbindable() bool {
	kind := k.Type().Kind
	return kind == KindArray || kind == KindWildcard
}

// nilable reports whether values of k's type can be absent.  Bindings
// for nilable keys that are not declared nullable get a nil check in
// the generation plan.
func (k Key) nilable() bool { return k.Type().Nilable }
