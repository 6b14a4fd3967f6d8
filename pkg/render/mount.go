package render

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-formly/pkg/form"
	"github.com/goliatone/go-formly/pkg/observe"
)

// Unit is one rendered component.
type Unit interface {
	Destroy()
}

// Container hosts the units of a mounted field. A Unit that also implements
// Container receives the next unit of the wrapper chain.
type Container interface {
	Attach(Unit) error
	Clear()
	SetHidden(bool)
	SetClass(string)
}

// Factory instantiates registered components for a field.
type Factory interface {
	Create(component any, field *form.Field) (Unit, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(component any, field *form.Field) (Unit, error)

// Create implements Factory.
func (fn FactoryFunc) Create(component any, field *form.Field) (Unit, error) {
	return fn(component, field)
}

// MountOptions tune how an outlet reacts to visibility changes.
type MountOptions struct {
	Lazy bool
}

// MountOption customises MountOptions.
type MountOption func(*MountOptions)

// WithLazyRender destroys the rendered chain while the field is hidden and
// rebuilds it when the field becomes visible again.
func WithLazyRender() MountOption {
	return func(o *MountOptions) {
		o.Lazy = true
	}
}

// Outlet is a field mounted into a Container.
type Outlet struct {
	reg       *Registry
	factory   Factory
	container Container
	field     *form.Field
	opts      MountOptions

	units     []Unit
	rendered  bool
	handles   []*observe.Handle
	destroyed bool
}

// Mount renders field into container and keeps it in sync with the field's
// hide and className properties.
func Mount(reg *Registry, factory Factory, container Container, field *form.Field, opts ...MountOption) (*Outlet, error) {
	switch {
	case reg == nil:
		return nil, errors.New("render: registry is required")
	case factory == nil:
		return nil, errors.New("render: factory is required")
	case container == nil:
		return nil, errors.New("render: container is required")
	case field == nil:
		return nil, errors.New("render: field is required")
	}

	o := &Outlet{reg: reg, factory: factory, container: container, field: field}
	for _, opt := range opts {
		if opt != nil {
			opt(&o.opts)
		}
	}

	hide, err := field.Observe("hide", o.onHide)
	if hide != nil {
		o.handles = append(o.handles, hide)
	}
	if err != nil {
		o.Destroy()
		return nil, err
	}
	class, err := field.Observe("className", func(change observe.Change) error {
		s, _ := change.Current.(string)
		container.SetClass(s)
		return nil
	})
	if class != nil {
		o.handles = append(o.handles, class)
	}
	if err != nil {
		o.Destroy()
		return nil, err
	}
	return o, nil
}

func (o *Outlet) onHide(change observe.Change) error {
	hidden := change.Current == true
	if o.opts.Lazy {
		if hidden {
			o.clear()
			return nil
		}
		return o.render()
	}
	if !o.rendered {
		if err := o.render(); err != nil {
			return err
		}
	}
	o.container.SetHidden(hidden)
	return nil
}

func (o *Outlet) render() error {
	if o.rendered {
		return nil
	}
	typ, err := o.reg.Resolve(o.field)
	if err != nil {
		return err
	}
	wrappers, err := o.reg.WrappersFor(o.field)
	if err != nil {
		return err
	}

	host := o.container
	for _, w := range wrappers {
		unit, err := o.attach(host, w.Component)
		if err != nil {
			o.clear()
			return fmt.Errorf("render: wrapper %q: %w", w.Name, err)
		}
		next, ok := unit.(Container)
		if !ok {
			o.clear()
			return fmt.Errorf("render: wrapper %q does not host children", w.Name)
		}
		host = next
	}
	if _, err := o.attach(host, typ.Component); err != nil {
		o.clear()
		return fmt.Errorf("render: type %q: %w", typ.Name, err)
	}
	o.rendered = true
	return o.field.Form().AfterViewInit(o.field)
}

func (o *Outlet) attach(host Container, component any) (Unit, error) {
	unit, err := o.factory.Create(component, o.field)
	if err != nil {
		return nil, err
	}
	if err := host.Attach(unit); err != nil {
		unit.Destroy()
		return nil, err
	}
	o.units = append(o.units, unit)
	o.field.AttachComponentRef(unit)
	return unit, nil
}

func (o *Outlet) clear() {
	for i := len(o.units) - 1; i >= 0; i-- {
		o.field.DetachComponentRef(o.units[i])
		o.units[i].Destroy()
	}
	o.units = nil
	o.container.Clear()
	o.rendered = false
}

// Units lists the rendered components, outermost first.
func (o *Outlet) Units() []Unit {
	return append([]Unit(nil), o.units...)
}

// Rendered reports whether the wrapper chain is currently built.
func (o *Outlet) Rendered() bool { return o.rendered }

// Destroy stops observing the field and tears down the rendered chain.
func (o *Outlet) Destroy() {
	if o == nil || o.destroyed {
		return
	}
	o.destroyed = true
	for _, h := range o.handles {
		h.Unsubscribe()
	}
	o.handles = nil
	if len(o.units) > 0 {
		o.clear()
	}
}
