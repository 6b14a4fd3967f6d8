package form

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-formly/internal/pathutil"
	"github.com/goliatone/go-formly/pkg/expression"
	"github.com/goliatone/go-formly/pkg/observe"
)

const modelPrefix = "model."

// CheckField re-evaluates every expression in the subtree of n (the whole
// form when n is nil), applies hide changes to the control tree and repeats
// until nothing changes. A call made while a check is already running (from
// a watcher, an expression or a stream emission) is folded into the running
// check.
func (f *Form) CheckField(n *Field) error {
	if f.destroyed {
		return ErrDestroyed
	}
	if n == nil {
		n = f.root
	}
	if n.destroyed {
		return ErrDestroyed
	}
	if f.checking {
		f.pending = append(f.pending, n.id)
		return nil
	}
	return f.check(n, false)
}

func (f *Form) check(root *Field, ignoreCache bool) error {
	f.checking = true
	defer func() {
		f.checking = false
		f.pending = nil
		f.changed = nil
	}()

	roots := []*Field{root}
	for pass := 0; ; pass++ {
		if len(roots) == 0 {
			// change hooks may mutate state and ask for another check
			if err := f.runChangeHooks(); err != nil {
				return err
			}
			roots = f.takePending()
			if len(roots) == 0 {
				return nil
			}
		}
		if pass >= f.opts.MaxCheckPasses {
			f.log.Warn("check did not settle", "field", root.describe(), "passes", pass)
			return fmt.Errorf("form: check %s after %d passes: %w", root.describe(), pass, ErrNoFixedPoint)
		}

		var next []*Field
		for _, n := range f.outermost(roots) {
			changed, err := f.checkPass(n, ignoreCache && pass == 0)
			if err != nil {
				return err
			}
			if changed {
				next = append(next, n)
			}
		}
		roots = append(next, f.takePending()...)
	}
}

func (f *Form) takePending() []*Field {
	var out []*Field
	for _, id := range f.pending {
		if n := f.node(id); n != nil {
			out = append(out, n)
		}
	}
	f.pending = nil
	return out
}

// outermost drops destroyed and duplicate roots, and roots nested in another
// root.
func (f *Form) outermost(roots []*Field) []*Field {
	out := make([]*Field, 0, len(roots))
	for i, n := range roots {
		if n == nil || n.destroyed {
			continue
		}
		covered := false
		for j, other := range roots {
			if other == nil || other.destroyed || i == j {
				continue
			}
			if (other == n && j < i) || f.isAncestor(other, n) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, n)
		}
	}
	return out
}

// checkPass re-resolves model scopes, then runs the four phases over the
// subtree of n once: hide expressions, control toggles, model-to-control sync
// and expression properties.
func (f *Form) checkPass(n *Field, ignoreCache bool) (bool, error) {
	changed := false
	var err error

	f.rescope(n)

	f.walk(n, func(node *Field) bool {
		var c bool
		c, err = f.checkHide(node, ignoreCache)
		changed = changed || c
		return err == nil
	})
	if err != nil {
		return changed, err
	}

	toggled, err := f.applyHidden()
	if err != nil {
		return changed, err
	}
	changed = changed || toggled

	f.walk(n, func(node *Field) bool {
		f.syncControl(node)
		return true
	})

	f.walk(n, func(node *Field) bool {
		var c bool
		c, err = f.checkExpressions(node, ignoreCache)
		changed = changed || c
		return err == nil
	})
	if err != nil {
		return changed, err
	}

	// expression properties may have flipped hide through a watcher
	if len(f.hiddenForCheck) > 0 {
		toggled, err := f.applyHidden()
		if err != nil {
			return changed, err
		}
		changed = changed || toggled
	}
	return changed, nil
}

// walk visits n and its descendants in pre-order. Returning false stops the
// whole walk.
func (f *Form) walk(n *Field, fn func(*Field) bool) bool {
	if n == nil || n.destroyed {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, id := range append([]FieldID(nil), n.children...) {
		if !f.walk(f.node(id), fn) {
			return false
		}
	}
	return true
}

func (f *Form) checkHide(n *Field, ignoreCache bool) (bool, error) {
	if n.hideSrc == nil {
		return false, nil
	}
	v, err := f.evaluate(n, n.hideSrc, propHide)
	if err != nil {
		return false, err
	}
	hide := expression.Truthy(v)
	if hide == n.Hidden() && !ignoreCache {
		return false, nil
	}
	if err := f.hub.Set(n, propHide, hide); err != nil {
		return false, f.expressionError(n, propHide, err)
	}
	if err := f.hub.Set(n, propHidden, hide); err != nil {
		return false, f.expressionError(n, propHidden, err)
	}
	f.markChanged(n)
	return true, nil
}

// applyHidden attaches or detaches the controls of the fields queued by the
// hide watcher. Hidden fields go first so a visible field sharing a key finds
// its slot free.
func (f *Form) applyHidden() (bool, error) {
	if len(f.hiddenForCheck) == 0 {
		return false, nil
	}
	queued := f.hiddenForCheck
	f.hiddenForCheck = nil

	seen := make(map[FieldID]bool, len(queued))
	nodes := make([]*Field, 0, len(queued))
	for _, id := range queued {
		n := f.node(id)
		if n == nil || seen[id] {
			continue
		}
		seen[id] = true
		nodes = append(nodes, n)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Hidden() && !nodes[j].Hidden()
	})

	for _, n := range nodes {
		parentHidden := false
		if parent := f.node(n.parent); parent != nil {
			parentHidden = f.IsHidden(parent)
		}
		if err := f.toggle(n, parentHidden); err != nil {
			return true, err
		}
		f.emit(FieldChange{Field: n, Type: EventHidden, Value: n.Hidden()})
		if f.log.IsTrace() {
			f.log.Trace("field visibility changed", "field", n.describe(), "key", n.Key(), "hidden", n.Hidden())
		}
	}
	return len(nodes) > 0, nil
}

func (f *Form) syncControl(n *Field) {
	if !n.isKeyedLeaf() || n.control.Parent() == nil {
		return
	}
	if n.binding != nil && n.binding.pending() {
		return
	}
	value, _ := pathutil.Get(n.scope, n.key)
	if observe.Equal(value, n.control.Value()) {
		return
	}
	n.control.SetValue(value, controlSilent)
	if n.binding != nil {
		n.binding.remember(value)
	}
}

func (f *Form) checkExpressions(n *Field, ignoreCache bool) (bool, error) {
	changed := false
	for _, prop := range n.exprs {
		v, err := f.evaluate(n, prop.src, prop.path)
		if err != nil {
			return changed, err
		}
		if prop.path == propDisabled {
			v = expression.Truthy(v) || f.parentDisabled(n)
		}
		if !ignoreCache && prop.hasLast && observe.Equal(prop.last, v) {
			continue
		}
		prop.last, prop.hasLast = v, true
		if err := f.assignExpression(n, prop.path, v); err != nil {
			return true, f.expressionError(n, prop.path, err)
		}
		f.emit(FieldChange{Field: n, Type: EventExpressionChanges, Property: prop.path, Value: v})
		f.markChanged(n)
		changed = true
	}

	if n.inheritsDisabled && !n.hasDisabledExpr {
		v := n.staticDisabled || f.parentDisabled(n)
		if n.Disabled() != v {
			if err := f.hub.Set(n, propDisabled, v); err != nil {
				return true, f.expressionError(n, propDisabled, err)
			}
			changed = true
		}
	}
	return changed, nil
}

func (f *Form) parentDisabled(n *Field) bool {
	parent := f.node(n.parent)
	if parent == nil || parent == f.root {
		return false
	}
	return parent.Disabled()
}

// assignExpression writes an expression result. Targets under "model." go to
// the field's model and to the control mirroring that path; everything else
// is a field property.
func (f *Form) assignExpression(n *Field, path string, v any) error {
	if !strings.HasPrefix(path, modelPrefix) {
		return f.hub.Set(n, path, v)
	}
	segments := observe.SplitPath(strings.TrimPrefix(path, modelPrefix))
	if err := pathutil.Set(n.model, segments, v); err != nil {
		return err
	}
	if c := f.modelGroup(n).Get(segments...); c != nil && !observe.Equal(c.Value(), v) {
		c.SetValue(v)
	}
	return nil
}
