package form

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/copystructure"
	"github.com/xlab/treeprint"

	"github.com/goliatone/go-formly/pkg/control"
	"github.com/goliatone/go-formly/pkg/observe"
)

// Form owns a built field tree, its control tree and the model.
type Form struct {
	id    string
	opts  *Options
	log   hclog.Logger
	hub   *observe.Hub
	group *control.Group

	nodes []*Field
	root  *Field

	// owners lists the fields bound to each control; slots lists the fields
	// declared for the same key under the same scope.
	owners map[control.Control][]FieldID
	slots  map[slotKey][]FieldID

	checking       bool
	building       int
	pending        []FieldID
	hiddenForCheck []FieldID
	changed        map[FieldID]bool

	queueMu sync.Mutex
	queue   []func() error
	wake    chan struct{}
	timers  int

	errs      *multierror.Error
	destroyed bool
}

type slotKey struct {
	group *control.Group
	key   string
}

// ID is the form's unique identifier.
func (f *Form) ID() string { return f.id }

// Root returns the implicit keyless field holding the top-level configs.
func (f *Form) Root() *Field { return f.root }

// Fields returns the top-level fields.
func (f *Form) Fields() []*Field { return f.root.FieldGroup() }

// Control returns the root control group.
func (f *Form) Control() *control.Group { return f.group }

// Model returns the shared model object.
func (f *Form) Model() Model { return f.root.model }

// Options returns the per-form options. FormState may be mutated by callers
// between checks.
func (f *Form) Options() *Options { return f.opts }

// Logger returns the form's named logger.
func (f *Form) Logger() hclog.Logger { return f.log }

// Hub exposes the change-detection hub shared by the form's fields.
func (f *Form) Hub() *observe.Hub { return f.hub }

// Field returns the live field with id.
func (f *Form) Field(id FieldID) (*Field, bool) {
	n := f.node(id)
	return n, n != nil
}

// Walk visits the live fields below the root in pre-order. Returning false
// from fn skips the field's children.
func (f *Form) Walk(fn func(*Field) bool) {
	var visit func(*Field)
	visit = func(n *Field) {
		for _, child := range n.FieldGroup() {
			if fn(child) {
				visit(child)
			}
		}
	}
	visit(f.root)
}

// ModelSnapshot returns a deep copy of the model.
func (f *Form) ModelSnapshot() (Model, error) {
	copied, err := copystructure.Copy(f.root.model)
	if err != nil {
		return nil, fmt.Errorf("form: snapshot model: %w", err)
	}
	out, _ := copied.(map[string]any)
	return out, nil
}

// IsHidden reports whether n or any of its ancestors is hidden.
func (f *Form) IsHidden(n *Field) bool {
	for cur := n; cur != nil; cur = f.node(cur.parent) {
		if cur.Hidden() {
			return true
		}
	}
	return false
}

// Tree renders the field tree with each field's state, for debugging.
func (f *Form) Tree() string {
	tree := treeprint.NewWithRoot(fmt.Sprintf("form %s", f.id))
	var add func(branch treeprint.Tree, n *Field)
	add = func(branch treeprint.Tree, n *Field) {
		for _, child := range n.FieldGroup() {
			label := f.treeLabel(child)
			if len(child.children) == 0 {
				branch.AddNode(label)
				continue
			}
			add(branch.AddBranch(label), child)
		}
	}
	add(tree, f.root)
	return tree.String()
}

func (f *Form) treeLabel(n *Field) string {
	name := n.Key()
	if name == "" {
		name = "(group)"
	}
	label := name
	if n.typ != "" {
		label += " [" + n.typ + "]"
	}
	if n.Hidden() {
		label += " hidden"
	}
	if n.control != nil && len(n.key) > 0 && n.control.Parent() == nil {
		label += " detached"
	}
	if n.Disabled() {
		label += " disabled"
	}
	return label
}

// Destroy tears down every field: watchers, stream subscriptions, value
// bindings and pending debounce timers. Later calls return ErrDestroyed.
func (f *Form) Destroy() {
	if f.destroyed {
		return
	}
	f.destroyed = true
	for _, child := range append([]FieldID(nil), f.root.children...) {
		if n := f.node(child); n != nil {
			f.destroyField(n)
		}
	}
	f.root.children = nil
	f.hub.Release(f.root)

	f.queueMu.Lock()
	f.queue = nil
	f.queueMu.Unlock()
	f.log.Debug("form destroyed")
}

func (f *Form) node(id FieldID) *Field {
	if id == 0 || int(id) > len(f.nodes) {
		return nil
	}
	return f.nodes[id-1]
}

func (f *Form) newField(parent *Field) *Field {
	n := &Field{form: f, id: FieldID(len(f.nodes) + 1)}
	f.nodes = append(f.nodes, n)
	if parent != nil {
		n.parent = parent.id
		parent.children = append(parent.children, n.id)
	}
	return n
}

// modelGroup returns the control group whose value mirrors n.Model().
func (f *Form) modelGroup(n *Field) *control.Group {
	for cur := n; cur != nil; cur = f.node(cur.parent) {
		if cur == f.root {
			return f.group
		}
		if len(cur.key) > 0 {
			if g, ok := cur.control.(*control.Group); ok {
				return g
			}
		}
	}
	return f.group
}

func (f *Form) isAncestor(ancestor, n *Field) bool {
	for cur := f.node(n.parent); cur != nil; cur = f.node(cur.parent) {
		if cur == ancestor {
			return true
		}
	}
	return false
}

func (f *Form) emit(change FieldChange) {
	if f.opts.FieldChanges != nil {
		f.opts.FieldChanges.Next(change)
	}
}

func (f *Form) recordError(err error) {
	if err != nil {
		f.errs = multierror.Append(f.errs, err)
	}
}

func (f *Form) takeErrors() error {
	err := f.errs.ErrorOrNil()
	f.errs = nil
	return err
}
