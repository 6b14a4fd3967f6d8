package form

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-formly/pkg/stream"
)

// Lifecycle hook names, as reported by HookError.
const (
	HookOnInit           = "onInit"
	HookAfterContentInit = "afterContentInit"
	HookAfterViewInit    = "afterViewInit"
	HookOnChanges        = "onChanges"
	HookOnDestroy        = "onDestroy"
)

// Hook runs at one point of a field's lifecycle. A stream.Stream[any]
// returned from OnInit, AfterContentInit or AfterViewInit is subscribed until
// the field is destroyed. Any other result is ignored.
type Hook func(field *Field) (any, error)

// Hooks are the lifecycle callbacks of one field.
type Hooks struct {
	// OnInit runs once the field is built and checked. A parent runs it before
	// its children.
	OnInit Hook
	// AfterContentInit runs after the children of the field ran OnInit.
	AfterContentInit Hook
	// AfterViewInit runs the first time a renderer mounts the field.
	AfterViewInit Hook
	// OnChanges runs after a check that changed the field's hide flag or one
	// of its expression properties.
	OnChanges Hook
	// OnDestroy runs before the field is torn down.
	OnDestroy Hook
}

// initFields initialises the fields below n that have not been initialised
// yet and reports whether any hook ran.
func (f *Form) initFields(n *Field) (bool, error) {
	ran := false
	for _, id := range append([]FieldID(nil), n.children...) {
		child := f.node(id)
		if child == nil {
			continue
		}
		r, err := f.initField(child)
		ran = ran || r
		if err != nil {
			return ran, err
		}
	}
	return ran, nil
}

func (f *Form) initField(n *Field) (bool, error) {
	fresh := !n.initialized
	ran := false
	if fresh {
		n.initialized = true
		r, err := f.runHook(n, n.hooks.OnInit, HookOnInit)
		ran = r
		if err != nil {
			return ran, err
		}
	}
	r, err := f.initFields(n)
	ran = ran || r
	if err != nil || !fresh {
		return ran, err
	}
	r, err = f.runHook(n, n.hooks.AfterContentInit, HookAfterContentInit)
	return ran || r, err
}

// initialise runs the init hooks of the subtree of n and re-checks it when a
// hook ran, so state set from a hook is applied before returning.
func (f *Form) initialise(n *Field) error {
	var ran bool
	var err error
	if n == f.root {
		ran, err = f.initFields(n)
	} else {
		ran, err = f.initField(n)
	}
	if err != nil || !ran {
		return err
	}
	return f.CheckField(n)
}

// AfterViewInit runs the field's AfterViewInit hook the first time it is
// called for that field. Renderers call it once the field's view exists.
func (f *Form) AfterViewInit(n *Field) error {
	if f.destroyed || n == nil || n.destroyed {
		return ErrDestroyed
	}
	if n.viewInitialized {
		return nil
	}
	n.viewInitialized = true
	_, err := f.runHook(n, n.hooks.AfterViewInit, HookAfterViewInit)
	return err
}

func (f *Form) markChanged(n *Field) {
	if n.hooks.OnChanges == nil || !n.initialized {
		return
	}
	if f.changed == nil {
		f.changed = make(map[FieldID]bool)
	}
	f.changed[n.id] = true
}

// runChangeHooks calls OnChanges for the fields changed since the last call,
// in declaration order.
func (f *Form) runChangeHooks() error {
	if len(f.changed) == 0 {
		return nil
	}
	ids := make([]FieldID, 0, len(f.changed))
	for id := range f.changed {
		ids = append(ids, id)
	}
	f.changed = nil
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if n := f.node(id); n != nil {
			if _, err := f.runHook(n, n.hooks.OnChanges, HookOnChanges); err != nil {
				return err
			}
		}
	}
	return nil
}

// runHook calls hook and reports whether one was present. A stream returned
// from an init hook stays subscribed until the field is destroyed.
func (f *Form) runHook(n *Field, hook Hook, name string) (ran bool, err error) {
	if hook == nil {
		return false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			ran = true
			err = &HookError{Field: n.id, Key: n.Key(), Hook: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if f.log.IsTrace() {
		f.log.Trace("running hook", "field", n.describe(), "key", n.Key(), "hook", name)
	}
	result, err := hook(n)
	if err != nil {
		return true, &HookError{Field: n.id, Key: n.Key(), Hook: name, Err: err}
	}
	switch name {
	case HookOnInit, HookAfterContentInit, HookAfterViewInit:
	default:
		return true, nil
	}
	if s, ok := result.(stream.Stream[any]); ok && s != nil && !n.destroyed {
		n.hookSubs = append(n.hookSubs, s.Subscribe(func(any) {}))
	}
	return true, nil
}

func (f *Form) releaseHooks(n *Field) {
	for _, sub := range n.hookSubs {
		sub.Unsubscribe()
	}
	n.hookSubs = nil
}
