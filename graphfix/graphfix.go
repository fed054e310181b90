// Package graphfix loads declaration models from YAML documents so
// that graph scenarios can be table-tested without defining Go types
// for every case.  It is test harness material: the core consumes the
// same model no matter which provider built it.
//
// Key syntax inside fixtures:
//
//	Widget            opaque reference type
//	int               primitive (lowercase first letter)
//	*Widget           pointer
//	[]Widget          multibinding collection
//	map[string]Widget keyed multibinding collection
//	array Widget      array type (unbindable without an explicit binding)
//	wildcard Widget   wildcard-bounded generic (likewise unbindable)
//	deferred Widget   deferred-access wrapper
//	@name Widget      qualified key
package graphfix

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/knotdi/knot"
)

type bindingDoc struct {
	Provides     string   `yaml:"provides"`
	Delegate     string   `yaml:"delegate"`
	To           string   `yaml:"to"`
	Instance     string   `yaml:"instance"`
	Element      string   `yaml:"element"`
	MapEntry     string   `yaml:"mapEntry"`
	Key          string   `yaml:"key"`
	Subcomponent string   `yaml:"subcomponent"`
	Deps         []string `yaml:"deps"`
	Scope        string   `yaml:"scope"`
	Nullable     bool     `yaml:"nullable"`
	Source       string   `yaml:"source"`
}

type moduleDoc struct {
	Name     string       `yaml:"name"`
	Includes []string     `yaml:"includes"`
	Bindings []bindingDoc `yaml:"bindings"`
}

type componentDoc struct {
	Name             string   `yaml:"name"`
	Scope            string   `yaml:"scope"`
	Modules          []string `yaml:"modules"`
	EntryPoints      []string `yaml:"entryPoints"`
	DependsOn        []string `yaml:"dependsOn"`
	BindsInstance    []string `yaml:"bindsInstance"`
	OptionalInstance []string `yaml:"optionalInstance"`
	Children         []string `yaml:"children"`
}

type fixtureDoc struct {
	Modules    []moduleDoc    `yaml:"modules"`
	Components []componentDoc `yaml:"components"`
	Roots      []string       `yaml:"roots"`
}

// Fixture is a loaded declaration model.
type Fixture struct {
	modules    map[string]*knot.Module
	components map[string]*knot.Component
	roots      []*knot.Component
}

// Load parses a YAML fixture into a declaration model.
func Load(data []byte) (*Fixture, error) {
	var doc fixtureDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot decode fixture: %w", err)
	}
	f := &Fixture{
		modules:    make(map[string]*knot.Module),
		components: make(map[string]*knot.Component),
	}

	// Names must exist before cross-references resolve.
	for _, md := range doc.Modules {
		if md.Name == "" {
			return nil, fmt.Errorf("fixture module with no name")
		}
		f.modules[md.Name] = knot.NewModule(md.Name)
	}
	for _, cd := range doc.Components {
		if cd.Name == "" {
			return nil, fmt.Errorf("fixture component with no name")
		}
		f.components[cd.Name] = knot.NewComponent(cd.Name)
	}

	for _, md := range doc.Modules {
		if err := f.fillModule(md); err != nil {
			return nil, err
		}
	}
	for _, cd := range doc.Components {
		if err := f.fillComponent(cd); err != nil {
			return nil, err
		}
	}
	for _, name := range doc.Roots {
		c, ok := f.components[name]
		if !ok {
			return nil, fmt.Errorf("root %s is not a declared component", name)
		}
		f.roots = append(f.roots, c)
	}
	return f, nil
}

// MustLoad is a wrapper for Load that panics on error; fixtures are
// compiled into tests, so a bad one is a programming mistake.
func MustLoad(data []byte) *Fixture {
	f, err := Load(data)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Fixture) fillModule(md moduleDoc) error {
	m := f.modules[md.Name]
	for _, inc := range md.Includes {
		other, ok := f.modules[inc]
		if !ok {
			return fmt.Errorf("module %s includes unknown module %s", md.Name, inc)
		}
		m.Include(other)
	}
	for i, bd := range md.Bindings {
		b, err := f.binding(md.Name, i, bd)
		if err != nil {
			return err
		}
		if b != nil {
			m.Add(b)
		}
	}
	return nil
}

func (f *Fixture) binding(module string, index int, bd bindingDoc) (*knot.Binding, error) {
	deps, err := parseKeys(bd.Deps)
	if err != nil {
		return nil, fmt.Errorf("module %s binding %d: %w", module, index, err)
	}
	var b *knot.Binding
	switch {
	case bd.Provides != "":
		key, err := ParseKey(bd.Provides)
		if err != nil {
			return nil, err
		}
		b = knot.Provision(key, deps...)
	case bd.Delegate != "":
		key, err := ParseKey(bd.Delegate)
		if err != nil {
			return nil, err
		}
		target, err := ParseKey(bd.To)
		if err != nil {
			return nil, err
		}
		b = knot.Delegate(key, target)
	case bd.Instance != "":
		key, err := ParseKey(bd.Instance)
		if err != nil {
			return nil, err
		}
		b = knot.Instance(key)
	case bd.Element != "":
		elem, err := ParseKey(bd.Element)
		if err != nil {
			return nil, err
		}
		b = knot.IntoCollection(elem, deps...)
	case bd.MapEntry != "":
		elem, err := ParseKey(bd.MapEntry)
		if err != nil {
			return nil, err
		}
		b = knot.IntoMap("string", bd.Key, elem, deps...)
	case bd.Subcomponent != "":
		child, ok := f.components[bd.Subcomponent]
		if !ok {
			return nil, fmt.Errorf("module %s declares unknown subcomponent %s", module, bd.Subcomponent)
		}
		f.modules[module].Declares(child)
		return nil, nil
	default:
		return nil, fmt.Errorf("module %s binding %d declares nothing", module, index)
	}
	if bd.Scope != "" {
		b.Scoped(knot.Scope(bd.Scope))
	}
	if bd.Nullable {
		b.Nullable()
	}
	if bd.Source != "" {
		b.From(bd.Source)
	} else {
		b.From(fmt.Sprintf("%s#%d", module, index))
	}
	return b, nil
}

func (f *Fixture) fillComponent(cd componentDoc) error {
	c := f.components[cd.Name]
	if cd.Scope != "" {
		c.InScope(knot.Scope(cd.Scope))
	}
	for _, name := range cd.Modules {
		m, ok := f.modules[name]
		if !ok {
			return fmt.Errorf("component %s installs unknown module %s", cd.Name, name)
		}
		c.Install(m)
	}
	eps, err := parseKeys(cd.EntryPoints)
	if err != nil {
		return fmt.Errorf("component %s: %w", cd.Name, err)
	}
	c.EntryPoint(eps...)
	for _, name := range cd.DependsOn {
		dep, ok := f.components[name]
		if !ok {
			return fmt.Errorf("component %s depends on unknown component %s", cd.Name, name)
		}
		c.DependsOn(dep)
	}
	bi, err := parseKeys(cd.BindsInstance)
	if err != nil {
		return fmt.Errorf("component %s: %w", cd.Name, err)
	}
	c.BindsInstance(bi...)
	oi, err := parseKeys(cd.OptionalInstance)
	if err != nil {
		return fmt.Errorf("component %s: %w", cd.Name, err)
	}
	c.OptionalInstance(oi...)
	for _, name := range cd.Children {
		child, ok := f.components[name]
		if !ok {
			return fmt.Errorf("component %s attaches unknown child %s", cd.Name, name)
		}
		c.Child(child)
	}
	return nil
}

// Component returns a declared component by name.
func (f *Fixture) Component(name string) *knot.Component {
	return f.components[name]
}

// Module returns a declared module by name.
func (f *Fixture) Module(name string) *knot.Module {
	return f.modules[name]
}

// Roots returns the fixture's root components in declaration order.
func (f *Fixture) Roots() []*knot.Component {
	return f.roots
}

// ParseKey parses the fixture key syntax described in the package
// comment.
func ParseKey(s string) (knot.Key, error) {
	s = strings.TrimSpace(s)
	qualifier := ""
	if strings.HasPrefix(s, "@") {
		rest := strings.SplitN(s[1:], " ", 2)
		if len(rest) != 2 {
			return knot.Key{}, fmt.Errorf("qualified key %q needs a type after the qualifier", s)
		}
		qualifier = rest[0]
		s = strings.TrimSpace(rest[1])
	}
	t, err := parseTypeRef(s)
	if err != nil {
		return knot.Key{}, err
	}
	return knot.KeyOf(t, qualifier), nil
}

func parseTypeRef(s string) (knot.TypeRef, error) {
	switch {
	case s == "":
		return knot.TypeRef{}, fmt.Errorf("empty type")
	case strings.HasPrefix(s, "deferred "):
		elem, err := parseTypeRef(strings.TrimPrefix(s, "deferred "))
		if err != nil {
			return knot.TypeRef{}, err
		}
		return knot.DeferredOf(elem), nil
	case strings.HasPrefix(s, "array "):
		elem, err := parseTypeRef(strings.TrimPrefix(s, "array "))
		if err != nil {
			return knot.TypeRef{}, err
		}
		return knot.ArrayOf(elem), nil
	case strings.HasPrefix(s, "wildcard "):
		return knot.WildcardType(strings.TrimPrefix(s, "wildcard ")), nil
	case strings.HasPrefix(s, "*"):
		elem, err := parseTypeRef(s[1:])
		if err != nil {
			return knot.TypeRef{}, err
		}
		return knot.PointerTo(elem), nil
	case strings.HasPrefix(s, "[]"):
		elem, err := parseTypeRef(s[2:])
		if err != nil {
			return knot.TypeRef{}, err
		}
		return knot.SliceOf(elem), nil
	case strings.HasPrefix(s, "map["):
		end := strings.Index(s, "]")
		if end == -1 {
			return knot.TypeRef{}, fmt.Errorf("unterminated map key in %q", s)
		}
		elem, err := parseTypeRef(s[end+1:])
		if err != nil {
			return knot.TypeRef{}, err
		}
		return knot.MapOf(s[4:end], elem), nil
	default:
		r, _ := utf8.DecodeRuneInString(s)
		if unicode.IsLower(r) {
			return knot.PrimitiveType(s), nil
		}
		return knot.OpaqueType(s), nil
	}
}

func parseKeys(in []string) ([]knot.Key, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]knot.Key, len(in))
	for i, s := range in {
		k, err := ParseKey(s)
		if err != nil {
			return nil, err
		}
		out[i] = k
	}
	return out, nil
}
