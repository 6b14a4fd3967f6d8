package form

import (
	"errors"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/goliatone/go-formly/internal/pathutil"
	"github.com/goliatone/go-formly/pkg/control"
	"github.com/goliatone/go-formly/pkg/observe"
)

var controlSilent = control.WithoutEvent()

// valueBinding connects a leaf control's emissions to the model.
type valueBinding struct {
	cancel   func()
	debounce time.Duration
	last     any
	hasLast  bool
	released bool

	timer clock.Timer
	gen   uint64
	value any
}

func (b *valueBinding) pending() bool { return b.timer != nil }

func (b *valueBinding) remember(v any) {
	b.last, b.hasLast = v, true
}

func (b *valueBinding) release(f *Form) {
	if b.released {
		return
	}
	b.released = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
		f.timers--
	}
	if b.cancel != nil {
		b.cancel()
	}
}

// bindValueChanges subscribes n to its control. Without debounce, repeated
// values are dropped and a control value that differs from the model is
// written once at bind time. With a debounce window neither applies: each
// burst of emissions produces one write of the latest value.
func (f *Form) bindValueChanges(n *Field) error {
	in, ok := n.control.(*control.Input)
	if !ok {
		return nil
	}
	if n.binding != nil {
		n.binding.release(f)
	}
	b := &valueBinding{debounce: n.modelOptions.debounce()}
	n.binding = b

	b.cancel = in.Subscribe(func(v any) {
		if b.released || n.destroyed {
			return
		}
		if b.debounce > 0 {
			f.schedule(n, b, v)
			return
		}
		if b.hasLast && observe.Equal(b.last, v) {
			return
		}
		b.remember(v)
		f.recordError(f.applyControlValue(n, v))
	})

	if b.debounce > 0 {
		return nil
	}
	current := in.Value()
	b.remember(current)
	if modelValue, _ := pathutil.Get(n.scope, n.key); !observe.Equal(current, modelValue) {
		return f.applyControlValue(n, current)
	}
	return nil
}

// schedule restarts the debounce timer of b with v as the pending value. The
// timer only posts the write; it runs on the form goroutine.
func (f *Form) schedule(n *Field, b *valueBinding, v any) {
	if b.timer != nil {
		b.timer.Stop()
	} else {
		f.timers++
	}
	b.gen++
	gen := b.gen
	b.value = v
	b.timer = f.opts.Clock.AfterFunc(b.debounce, func() {
		f.post(func() error {
			if b.released || gen != b.gen {
				return nil
			}
			b.timer = nil
			f.timers--
			value := b.value
			b.value = nil
			return f.applyControlValue(n, value)
		})
	})
}

// applyControlValue runs the parsers, writes the result into the model,
// mirrors the raw value onto duplicate-key siblings, publishes a valueChanges
// event and re-checks the form. While fields are being built the check is left
// to the builder.
func (f *Form) applyControlValue(n *Field, v any) error {
	if n.destroyed || f.destroyed {
		return nil
	}
	if owner := f.primaryOwner(n.control); owner != nil && owner != n {
		return nil
	}
	f.rescopeLineage(n)

	value := v
	for _, parse := range n.parsers {
		if parse != nil {
			value = parse(value)
		}
	}
	if err := pathutil.Set(n.scope, n.key, value); err != nil {
		return fmt.Errorf("form: assign %s: %w", n.Key(), err)
	}

	for _, sibling := range f.slotSiblings(n) {
		if sibling.control != n.control && sibling.isKeyedLeaf() {
			sibling.control.SetValue(v, controlSilent)
			if sibling.binding != nil {
				sibling.binding.remember(v)
			}
		}
	}

	if f.log.IsTrace() {
		f.log.Trace("model updated", "field", n.describe(), "key", n.Key())
	}
	f.emit(FieldChange{Field: n, Type: EventValueChanges, Value: value})
	if f.building > 0 {
		return nil
	}
	return f.CheckField(f.root)
}

// SetControlValue sets the value of n's control as user input would, and
// returns the errors raised while propagating it. Unless the field debounces,
// the model write and the check it triggers have completed on return.
func (f *Form) SetControlValue(n *Field, v any) error {
	if f.destroyed || n == nil || n.destroyed {
		return ErrDestroyed
	}
	if n.control == nil {
		return errors.New("form: field has no control")
	}
	n.control.SetValue(v)
	return f.takeErrors()
}
