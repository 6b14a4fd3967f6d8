package observe

import "github.com/goliatone/go-formly/internal/pathutil"

// Object is a plain nested property bag usable as a Target.
type Object struct {
	values map[string]any
}

// NewObject wraps values (copied shallowly) in an observable Object.
func NewObject(values map[string]any) *Object {
	obj := &Object{values: make(map[string]any, len(values))}
	for k, v := range values {
		obj.values[k] = v
	}
	return obj
}

// Lookup implements Target.
func (o *Object) Lookup(path []string) (any, bool) {
	if o == nil {
		return nil, false
	}
	return pathutil.Get(o.values, path)
}

// Assign implements Target.
func (o *Object) Assign(path []string, value any) error {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	return pathutil.Set(o.values, path, value)
}

// Values exposes the underlying map. Writes made directly on it bypass
// watchers.
func (o *Object) Values() map[string]any {
	if o == nil {
		return nil
	}
	return o.values
}
