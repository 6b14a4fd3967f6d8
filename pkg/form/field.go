package form

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formly/internal/pathutil"
	"github.com/goliatone/go-formly/pkg/control"
	"github.com/goliatone/go-formly/pkg/expression"
	"github.com/goliatone/go-formly/pkg/observe"
	"github.com/goliatone/go-formly/pkg/stream"
)

const (
	propHide            = "hide"
	propClassName       = "className"
	propTemplateOptions = "templateOptions"
	propHidden          = "templateOptions.hidden"
	propDisabled        = "templateOptions.disabled"
)

// Field is a built, runtime field. Parent and children are arena references
// resolved through the owning Form.
type Field struct {
	id       FieldID
	parent   FieldID
	children []FieldID
	form     *Form
	index    int

	key      []string
	typ      string
	wrappers []string

	// scope is the object the key resolves against; model is what the field
	// exposes to expressions (the sub-object for keyed groups).
	scope Model
	model Model

	control control.Control
	props   *observe.Object

	hideSrc *source
	exprs   []*propertySource

	parsers          []Parser
	modelOptions     ModelOptions
	staticDisabled   bool
	hasDisabledExpr  bool
	inheritsDisabled bool

	observers []*observe.Handle
	installed bool
	binding   *valueBinding

	hooks           Hooks
	hookSubs        []*stream.Subscription
	initialized     bool
	viewInitialized bool

	componentRefs []any
	destroyed     bool
}

var _ observe.Target = (*Field)(nil)
var _ expression.FieldScope = (*Field)(nil)

func (n *Field) ID() FieldID { return n.id }

// Key returns the dotted key, or "" for keyless fields.
func (n *Field) Key() string { return strings.Join(n.key, ".") }

// KeyPath returns a copy of the key segments.
func (n *Field) KeyPath() []string { return append([]string(nil), n.key...) }

func (n *Field) Type() string { return n.typ }

func (n *Field) Wrappers() []string { return append([]string(nil), n.wrappers...) }

// Index is the field's position among its siblings.
func (n *Field) Index() int { return n.index }

func (n *Field) Form() *Form { return n.form }

// Parent returns the enclosing field, or nil for the implicit root.
func (n *Field) Parent() *Field {
	if n.form == nil || n.parent == 0 {
		return nil
	}
	return n.form.node(n.parent)
}

// FieldGroup returns the live children in declaration order.
func (n *Field) FieldGroup() []*Field {
	if n.form == nil {
		return nil
	}
	out := make([]*Field, 0, len(n.children))
	for _, id := range n.children {
		if child := n.form.node(id); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// Model returns the object expressions of this field see as `model`.
func (n *Field) Model() Model { return n.model }

// Control returns the field's own control; keyless fields have none.
func (n *Field) Control() control.Control { return n.control }

// Value reads the field's key from its scope object.
func (n *Field) Value() any {
	if len(n.key) == 0 {
		return nil
	}
	v, _ := pathutil.Get(n.scope, n.key)
	return v
}

// Hidden reports the field's own hide flag. Ancestors are not consulted.
func (n *Field) Hidden() bool {
	v, _ := n.props.Lookup([]string{propHide})
	hidden, _ := v.(bool)
	return hidden
}

// SetHide changes the hide flag. The control is attached or detached on the
// next CheckField.
func (n *Field) SetHide(hide bool) error {
	return n.SetProp(propHide, hide)
}

// Prop reads a property such as "className" or "templateOptions.label".
func (n *Field) Prop(path string) any {
	v, _ := n.props.Lookup(observe.SplitPath(path))
	return v
}

// SetProp writes a property through the change-detection hub so watchers fire.
func (n *Field) SetProp(path string, value any) error {
	if n.destroyed {
		return ErrDestroyed
	}
	return n.form.hub.Set(n, path, value)
}

// TemplateOptions returns the live template options map.
func (n *Field) TemplateOptions() map[string]any {
	to, _ := n.props.Values()[propTemplateOptions].(map[string]any)
	return to
}

func (n *Field) ClassName() string {
	s, _ := n.Prop(propClassName).(string)
	return s
}

// Disabled reports the effective templateOptions.disabled value.
func (n *Field) Disabled() bool {
	return expression.Truthy(n.Prop(propDisabled))
}

// Observe installs a watcher on one of the field's properties. The watcher is
// removed when the field is destroyed.
func (n *Field) Observe(path string, cb observe.Callback) (*observe.Handle, error) {
	if n.destroyed {
		return nil, ErrDestroyed
	}
	h, err := n.form.hub.Observe(n, path, cb)
	if h != nil {
		n.observers = append(n.observers, h)
	}
	return h, err
}

// DOMID is a stable identifier suitable for labelling rendered controls.
func (n *Field) DOMID() string {
	form := ""
	if n.form != nil && len(n.form.id) >= 8 {
		form = n.form.id[:8]
	}
	return fmt.Sprintf("formly_%s_%s_%s_%d", form, n.typ, strings.Join(n.key, "_"), n.index)
}

// Lookup implements observe.Target and expression.FieldScope.
func (n *Field) Lookup(path []string) (any, bool) {
	if len(path) == 1 {
		switch path[0] {
		case "key":
			return n.Key(), true
		case "type":
			return n.typ, true
		case "id":
			return n.DOMID(), true
		case "index":
			return n.index, true
		}
	}
	return n.props.Lookup(path)
}

// Assign implements observe.Target.
func (n *Field) Assign(path []string, value any) error {
	if len(path) == 1 {
		switch path[0] {
		case "key", "type", "id", "index":
			return fmt.Errorf("form: %s is read-only", path[0])
		}
	}
	return n.props.Assign(path, value)
}

// Snapshot returns a shallow copy of the field's properties plus identity.
func (n *Field) Snapshot() map[string]any {
	out := make(map[string]any, len(n.props.Values())+4)
	for k, v := range n.props.Values() {
		out[k] = v
	}
	out["key"] = n.Key()
	out["type"] = n.typ
	out["id"] = n.DOMID()
	out["index"] = n.index
	return out
}

// AttachComponentRef records a rendered component bound to this field.
func (n *Field) AttachComponentRef(ref any) {
	if ref != nil {
		n.componentRefs = append(n.componentRefs, ref)
	}
}

// DetachComponentRef forgets ref.
func (n *Field) DetachComponentRef(ref any) {
	for i, existing := range n.componentRefs {
		if existing == ref {
			n.componentRefs = append(n.componentRefs[:i], n.componentRefs[i+1:]...)
			return
		}
	}
}

// ComponentRefs lists the rendered components bound to this field.
func (n *Field) ComponentRefs() []any { return append([]any(nil), n.componentRefs...) }

// Destroyed reports whether the field has been torn down.
func (n *Field) Destroyed() bool { return n.destroyed }

func (n *Field) isGroup() bool {
	_, ok := n.control.(*control.Group)
	return ok || (n.control == nil && len(n.children) > 0)
}

func (n *Field) isKeyedLeaf() bool {
	_, ok := n.control.(*control.Input)
	return ok && len(n.key) > 0
}

func (n *Field) describe() string {
	return fmt.Sprintf("#%d", n.id)
}
