package form

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/copystructure"

	"github.com/goliatone/go-formly/internal/pathutil"
	"github.com/goliatone/go-formly/pkg/control"
	"github.com/goliatone/go-formly/pkg/expression"
	"github.com/goliatone/go-formly/pkg/observe"
)

// Build turns configs into a live form bound to model. Every field is
// normalised, controls are created or reused and attached, watchers are
// installed and an initial check runs with expression caches ignored. A nil
// model is replaced with an empty one.
func Build(fields []FieldConfig, model Model, options ...Option) (*Form, error) {
	opts := defaultOptions()
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	if model == nil {
		model = Model{}
	}

	f := &Form{
		id:     uuid.NewString(),
		opts:   opts,
		hub:    observe.NewHub(),
		group:  control.NewGroup(),
		owners: make(map[control.Control][]FieldID),
		slots:  make(map[slotKey][]FieldID),
		wake:   make(chan struct{}, 1),
	}
	f.log = opts.Logger.Named("formly").With("form", f.id)

	root := f.newField(nil)
	root.scope = model
	root.model = model
	root.control = f.group
	root.props = observe.NewObject(map[string]any{
		propHide:            false,
		propTemplateOptions: map[string]any{},
	})
	f.root = root

	f.building++
	for i, cfg := range fields {
		if _, err := f.buildField(root, cfg, i, fmt.Sprintf("fields[%d]", i)); err != nil {
			f.Destroy()
			return nil, err
		}
	}
	f.building--
	if err := f.check(root, true); err != nil {
		f.Destroy()
		return nil, err
	}
	if err := f.takeErrors(); err != nil {
		f.Destroy()
		return nil, err
	}
	if err := f.initialise(root); err != nil {
		f.Destroy()
		return nil, err
	}
	if err := f.takeErrors(); err != nil {
		f.Destroy()
		return nil, err
	}

	if f.log.IsDebug() {
		f.log.Debug("form built", "fields", len(f.nodes)-1)
	}
	return f, nil
}

// SetFieldGroup replaces the children of parent with freshly built fields and
// checks the subtree.
func (f *Form) SetFieldGroup(parent *Field, fields []FieldConfig) error {
	if f.destroyed || parent == nil || parent.destroyed {
		return ErrDestroyed
	}
	if parent.isKeyedLeaf() {
		return &ConfigError{Path: parent.describe(), Reason: "field group on a leaf field"}
	}

	for _, id := range append([]FieldID(nil), parent.children...) {
		if child := f.node(id); child != nil {
			f.destroyField(child)
		}
	}
	parent.children = nil

	f.building++
	for i, cfg := range fields {
		if _, err := f.buildField(parent, cfg, i, fmt.Sprintf("%s.fieldGroup[%d]", parent.describe(), i)); err != nil {
			f.building--
			return err
		}
	}
	f.building--
	if err := f.CheckField(parent); err != nil {
		return err
	}
	if err := f.initialise(parent); err != nil {
		return err
	}
	return f.takeErrors()
}

// Rebuild re-attaches the controls and reinstalls any missing watchers or
// bindings in the subtree of n, then checks it. It can be called repeatedly.
func (f *Form) Rebuild(n *Field) error {
	if f.destroyed || n == nil || n.destroyed {
		return ErrDestroyed
	}
	var err error
	f.building++
	f.walk(n, func(node *Field) bool {
		if node == f.root {
			return true
		}
		if !f.IsHidden(node) && node.control != nil && len(node.key) > 0 {
			if err = f.register(node); err != nil {
				return false
			}
		}
		if err = f.installObservers(node); err != nil {
			return false
		}
		if node.isKeyedLeaf() && node.binding == nil {
			if err = f.bindValueChanges(node); err != nil {
				return false
			}
		}
		return true
	})
	f.building--
	if err != nil {
		return err
	}
	if err := f.CheckField(n); err != nil {
		return err
	}
	if err := f.initialise(n); err != nil {
		return err
	}
	return f.takeErrors()
}

func (f *Form) buildField(parent *Field, cfg FieldConfig, index int, path string) (*Field, error) {
	n := f.newField(parent)
	n.index = index
	n.typ = cfg.Type
	n.wrappers = append([]string(nil), cfg.Wrappers...)
	n.parsers = append([]Parser(nil), cfg.Parsers...)
	n.modelOptions = cfg.ModelOptions
	n.hooks = cfg.Hooks
	n.key = observe.SplitPath(cfg.Key)
	if strings.TrimSpace(cfg.Key) != "" && len(n.key) != len(strings.Split(cfg.Key, ".")) {
		return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("invalid key %q", cfg.Key)}
	}
	isGroup := cfg.isGroup()

	templateOptions := make(map[string]any, len(cfg.TemplateOptions))
	for k, v := range cfg.TemplateOptions {
		templateOptions[k] = v
	}
	n.props = observe.NewObject(map[string]any{
		propHide:            cfg.Hide,
		propClassName:       cfg.ClassName,
		propTemplateOptions: templateOptions,
	})
	n.staticDisabled = expression.Truthy(templateOptions["disabled"])

	if err := f.resolveModel(n, parent, cfg, isGroup, path); err != nil {
		return nil, err
	}
	if len(n.key) > 0 {
		if err := f.resolveControl(n, parent, cfg, isGroup, path); err != nil {
			return nil, err
		}
	}
	if err := f.compileSources(n, cfg, path); err != nil {
		return nil, err
	}
	n.inheritsDisabled = n.hasDisabledExpr || parent.inheritsDisabled

	if err := f.installObservers(n); err != nil {
		return nil, err
	}

	for i, child := range cfg.FieldGroup {
		if _, err := f.buildField(n, child, i, fmt.Sprintf("%s.fieldGroup[%d]", path, i)); err != nil {
			return nil, err
		}
	}

	if n.isKeyedLeaf() {
		if err := f.bindValueChanges(n); err != nil {
			return nil, err
		}
	}

	if f.log.IsTrace() {
		f.log.Trace("field built", "field", n.describe(), "key", n.Key(), "type", n.typ)
	}
	return n, nil
}

func (f *Form) resolveModel(n, parent *Field, cfg FieldConfig, isGroup bool, path string) error {
	n.scope = parent.model
	switch {
	case cfg.Model != nil:
		if len(n.key) == 0 || !isGroup {
			return &ConfigError{Path: path, Reason: "model override requires a keyed field group"}
		}
		if existing, ok := pathutil.Get(n.scope, n.key); ok && existing != nil {
			if _, isMap := existing.(map[string]any); !isMap {
				return &ConfigError{Path: path, Reason: fmt.Sprintf("model at %q is not an object", n.Key())}
			}
		}
		if err := pathutil.Set(n.scope, n.key, cfg.Model); err != nil {
			return &ConfigError{Path: path, Reason: "model override", Err: err}
		}
		n.model = cfg.Model
	case len(n.key) > 0 && isGroup:
		obj, err := pathutil.EnsureObject(n.scope, n.key)
		if err != nil {
			return &ConfigError{Path: path, Reason: fmt.Sprintf("model at %q is not an object", n.Key()), Err: err}
		}
		n.model = obj
	default:
		n.model = n.scope
		if len(n.key) > 0 {
			if err := pathutil.CheckDescend(n.scope, n.key); err != nil {
				return &ConfigError{Path: path, Reason: fmt.Sprintf("cannot resolve key %q", n.Key()), Err: err}
			}
		}
	}

	if len(n.key) > 0 && !isGroup && cfg.DefaultValue != nil {
		if current, ok := pathutil.Get(n.scope, n.key); !ok || current == nil {
			value, err := copystructure.Copy(cfg.DefaultValue)
			if err != nil {
				return &ConfigError{Path: path, Reason: "copy default value", Err: err}
			}
			if err := pathutil.Set(n.scope, n.key, value); err != nil {
				return &ConfigError{Path: path, Reason: "assign default value", Err: err}
			}
		}
	}
	return nil
}

// rescope re-reads the scope and model of n's ancestors, n and its
// descendants from the model, so a keyed group follows its sub-object after
// the model replaced it.
func (f *Form) rescope(n *Field) {
	f.rescopeLineage(n)
	for _, id := range n.children {
		f.walk(f.node(id), func(node *Field) bool {
			f.resolveScope(node)
			return true
		})
	}
}

// rescopeLineage resolves every field from the top-level ancestor down to n.
func (f *Form) rescopeLineage(n *Field) {
	var chain []*Field
	for cur := n; cur != nil && cur != f.root; cur = f.node(cur.parent) {
		chain = append(chain, cur)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		f.resolveScope(chain[i])
	}
}

func (f *Form) resolveScope(n *Field) {
	parent := f.node(n.parent)
	if parent == nil || n.destroyed {
		return
	}
	n.scope = parent.model
	if _, ok := n.control.(*control.Group); !ok || len(n.key) == 0 {
		n.model = n.scope
		return
	}
	obj, err := pathutil.EnsureObject(n.scope, n.key)
	if err != nil {
		if f.log.IsDebug() {
			f.log.Debug("keeping previous group model", "field", n.describe(), "key", n.Key(), "error", err)
		}
		return
	}
	n.model = obj
}

func (f *Form) resolveControl(n, parent *Field, cfg FieldConfig, isGroup bool, path string) error {
	base := f.modelGroup(parent)
	switch {
	case cfg.Control != nil:
		if (cfg.Control.Kind() == control.KindGroup) != isGroup {
			return &ConfigError{Path: path, Reason: fmt.Sprintf("supplied %s control does not match field", cfg.Control.Kind())}
		}
		n.control = cfg.Control
	default:
		existing := base.Get(n.key...)
		if existing != nil && (existing.Kind() == control.KindGroup) == isGroup {
			n.control = existing
		} else if isGroup {
			n.control = control.NewGroup()
		} else {
			value, _ := pathutil.Get(n.scope, n.key)
			n.control = control.NewInput(value)
		}
	}

	f.owners[n.control] = append(f.owners[n.control], n.id)
	sk := slotKey{group: base, key: n.Key()}
	f.slots[sk] = append(f.slots[sk], n.id)

	if err := f.register(n); err != nil {
		return err
	}
	if n.staticDisabled {
		n.control.SetDisabled(true)
	}
	return nil
}

func (f *Form) compileSources(n *Field, cfg FieldConfig, path string) error {
	src, err := f.compileSource(cfg.HideExpression)
	if err != nil {
		return &ConfigError{Path: path, Reason: "hideExpression", Err: err}
	}
	n.hideSrc = src

	keys := make([]string, 0, len(cfg.ExpressionProperties))
	for k := range cfg.ExpressionProperties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		segments := observe.SplitPath(k)
		if len(segments) == 0 {
			return &ConfigError{Path: path, Reason: fmt.Sprintf("invalid expression property %q", k)}
		}
		target := strings.Join(segments, ".")
		src, err := f.compileSource(cfg.ExpressionProperties[k])
		if err != nil {
			return &ConfigError{Path: path, Reason: fmt.Sprintf("expressionProperties[%s]", k), Err: err}
		}
		if src == nil {
			continue
		}
		if target == propDisabled {
			n.hasDisabledExpr = true
		}
		n.exprs = append(n.exprs, &propertySource{path: target, src: src})
	}
	return nil
}

// installObservers wires the hide watcher (which queues the field for a
// control toggle) and the disabled watcher (which mirrors the flag onto the
// control). It is a no-op when already installed.
func (f *Form) installObservers(n *Field) error {
	if n.installed {
		return nil
	}
	n.installed = true

	hide, err := f.hub.Observe(n, propHide, func(c observe.Change) error {
		if !c.FirstChange || c.Current == true {
			f.hiddenForCheck = append(f.hiddenForCheck, n.id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	n.observers = append(n.observers, hide)

	if n.control == nil || len(n.key) == 0 {
		return nil
	}
	disabled, err := f.hub.Observe(n, propDisabled, func(c observe.Change) error {
		if c.FirstChange && c.Current == nil {
			return nil
		}
		n.control.SetDisabled(expression.Truthy(c.Current))
		return nil
	})
	if err != nil {
		return err
	}
	n.observers = append(n.observers, disabled)
	return nil
}

func (f *Form) destroyField(n *Field) {
	if n.destroyed {
		return
	}
	if n.initialized {
		if _, err := f.runHook(n, n.hooks.OnDestroy, HookOnDestroy); err != nil {
			f.log.Warn("destroy hook failed", "field", n.describe(), "key", n.Key(), "error", err)
			f.recordError(err)
		}
	}
	for _, id := range append([]FieldID(nil), n.children...) {
		if child := f.node(id); child != nil {
			f.destroyField(child)
		}
	}
	f.releaseHooks(n)

	for _, h := range n.observers {
		h.Unsubscribe()
	}
	n.observers = nil
	f.hub.Release(n)

	if n.binding != nil {
		n.binding.release(f)
		n.binding = nil
	}
	n.hideSrc.release()
	for _, p := range n.exprs {
		p.src.release()
	}

	if n.control != nil && len(n.key) > 0 {
		owners := removeID(f.owners[n.control], n.id)
		freed := false
		if len(owners) == 0 {
			delete(f.owners, n.control)
			freed = f.detach(n)
		} else {
			f.owners[n.control] = owners
		}
		sk := slotKey{group: f.modelGroup(f.node(n.parent)), key: n.Key()}
		if rest := removeID(f.slots[sk], n.id); len(rest) > 0 {
			f.slots[sk] = rest
		} else {
			delete(f.slots, sk)
		}
		if freed && !f.destroyed {
			if err := f.reassignSlot(n); err != nil {
				f.log.Warn("reassign slot", "key", n.Key(), "error", err)
			}
		}
	}

	n.destroyed = true
	n.componentRefs = nil
	f.nodes[n.id-1] = nil
	if parent := f.node(n.parent); parent != nil {
		parent.children = removeID(parent.children, n.id)
	}
	if f.log.IsTrace() {
		f.log.Trace("field destroyed", "field", n.describe(), "key", n.Key())
	}
}

func removeID(ids []FieldID, id FieldID) []FieldID {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
