package render

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formly/pkg/form"
)

// TypeOption describes a field type: the component rendered for it and the
// wrappers applied when the field declares none. Extends names a parent type
// whose settings fill the blanks.
type TypeOption struct {
	Name      string
	Component any
	Wrappers  []string
	Extends   string
}

// WrapperOption describes a wrapper component. Types lists field types the
// wrapper is appended to by default.
type WrapperOption struct {
	Name      string
	Component any
	Types     []string
}

// Matcher picks a type for fields that do not declare one.
type Matcher func(field *form.Field) bool

type rule struct {
	name     string
	priority int
	match    Matcher
	order    int
}

// Registry stores field types, wrappers and type matchers. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	types    map[string]TypeOption
	wrappers map[string]WrapperOption
	rules    []rule
}

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	return &Registry{
		types:    make(map[string]TypeOption),
		wrappers: make(map[string]WrapperOption),
	}
}

// SetType registers a field type. Duplicate names return an error.
func (r *Registry) SetType(opt TypeOption) error {
	opt.Name = strings.TrimSpace(opt.Name)
	if opt.Name == "" {
		return fmt.Errorf("render: type name is required")
	}
	if opt.Component == nil && opt.Extends == "" {
		return fmt.Errorf("render: type %q needs a component or a parent type", opt.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[opt.Name]; exists {
		return fmt.Errorf("render: type %q already registered", opt.Name)
	}
	opt.Wrappers = append([]string(nil), opt.Wrappers...)
	r.types[opt.Name] = opt
	return nil
}

// SetWrapper registers a wrapper and appends it to the default wrappers of
// every type listed in opt.Types.
func (r *Registry) SetWrapper(opt WrapperOption) error {
	opt.Name = strings.TrimSpace(opt.Name)
	if opt.Name == "" {
		return fmt.Errorf("render: wrapper name is required")
	}
	if opt.Component == nil {
		return fmt.Errorf("render: wrapper %q needs a component", opt.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.wrappers[opt.Name]; exists {
		return fmt.Errorf("render: wrapper %q already registered", opt.Name)
	}
	for _, typeName := range opt.Types {
		t, ok := r.types[typeName]
		if !ok {
			return fmt.Errorf("render: wrapper %q targets unknown type %q", opt.Name, typeName)
		}
		t.Wrappers = append(t.Wrappers, opt.Name)
		r.types[typeName] = t
	}
	r.wrappers[opt.Name] = opt
	return nil
}

// MustSetType panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustSetType(opt TypeOption) {
	if err := r.SetType(opt); err != nil {
		panic(err)
	}
}

// MustSetWrapper panics on registration failure.
func (r *Registry) MustSetWrapper(opt WrapperOption) {
	if err := r.SetWrapper(opt); err != nil {
		panic(err)
	}
}

// RegisterMatcher routes untyped fields accepted by m to typeName. Higher
// priority wins; ties fall back to registration order.
func (r *Registry) RegisterMatcher(typeName string, priority int, m Matcher) {
	trimmed := strings.TrimSpace(typeName)
	if trimmed == "" || m == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{name: trimmed, priority: priority, match: m, order: len(r.rules)})
}

// Type returns the named type with its parent chain merged in.
func (r *Registry) Type(name string) (TypeOption, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveType(name, map[string]bool{})
}

func (r *Registry) resolveType(name string, seen map[string]bool) (TypeOption, error) {
	if seen[name] {
		return TypeOption{}, fmt.Errorf("render: type %q extends itself", name)
	}
	seen[name] = true

	t, ok := r.types[name]
	if !ok {
		return TypeOption{}, fmt.Errorf("render: type %q not found", name)
	}
	if t.Extends == "" {
		return t, nil
	}
	parent, err := r.resolveType(t.Extends, seen)
	if err != nil {
		return TypeOption{}, err
	}
	if t.Component == nil {
		t.Component = parent.Component
	}
	if len(t.Wrappers) == 0 {
		t.Wrappers = append([]string(nil), parent.Wrappers...)
	}
	return t, nil
}

// Wrapper retrieves a wrapper by name.
func (r *Registry) Wrapper(name string) (WrapperOption, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.wrappers[name]
	if !ok {
		return WrapperOption{}, fmt.Errorf("render: wrapper %q not found", name)
	}
	return w, nil
}

// Resolve returns the type used to render field: its declared type, or the
// first matcher that accepts it.
func (r *Registry) Resolve(field *form.Field) (TypeOption, error) {
	if name := field.Type(); name != "" {
		return r.Type(name)
	}

	r.mu.RLock()
	rules := append([]rule(nil), r.rules...)
	r.mu.RUnlock()
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	for _, entry := range rules {
		if entry.match(field) {
			return r.Type(entry.name)
		}
	}
	return TypeOption{}, fmt.Errorf("render: no type for field %q", field.Key())
}

// WrappersFor lists the wrappers applied to field, outermost first. A field's
// own wrappers replace the type defaults.
func (r *Registry) WrappersFor(field *form.Field) ([]WrapperOption, error) {
	names := field.Wrappers()
	if len(names) == 0 && field.Type() != "" {
		t, err := r.Type(field.Type())
		if err != nil {
			return nil, err
		}
		names = t.Wrappers
	}
	out := make([]WrapperOption, 0, len(names))
	for _, name := range names {
		w, err := r.Wrapper(name)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// Types returns the sorted type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.types)
}

// Wrappers returns the sorted wrapper names.
func (r *Registry) Wrappers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.wrappers)
}

// Has reports whether a type is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
