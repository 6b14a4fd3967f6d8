package render

import (
	"github.com/goliatone/go-formly/pkg/control"
	"github.com/goliatone/go-formly/pkg/form"
)

// Built-in component identifiers registered by Bootstrap. Factories switch on
// these to build their concrete widgets.
const (
	ComponentInput             = "input"
	ComponentCheckbox          = "checkbox"
	ComponentRadio             = "radio"
	ComponentSelect            = "select"
	ComponentTextarea          = "textarea"
	ComponentMultiCheckbox     = "multicheckbox"
	ComponentGroup             = "formly-group"
	ComponentLabel             = "label"
	ComponentDescription       = "description"
	ComponentValidationMessage = "validation-message"
	ComponentFieldset          = "fieldset"
)

// Bootstrap returns a registry preloaded with the standard field types and
// wrappers. Keyless and grouped fields without a type resolve to
// formly-group.
func Bootstrap() *Registry {
	r := NewRegistry()
	for _, name := range []string{ComponentInput, ComponentRadio, ComponentSelect, ComponentTextarea, ComponentMultiCheckbox} {
		r.MustSetType(TypeOption{Name: name, Component: name, Wrappers: []string{ComponentFieldset, ComponentLabel}})
	}
	r.MustSetType(TypeOption{Name: ComponentCheckbox, Component: ComponentCheckbox, Wrappers: []string{ComponentFieldset}})
	r.MustSetType(TypeOption{Name: ComponentGroup, Component: ComponentGroup})

	for _, name := range []string{ComponentLabel, ComponentDescription, ComponentValidationMessage, ComponentFieldset} {
		r.MustSetWrapper(WrapperOption{Name: name, Component: name})
	}

	r.RegisterMatcher(ComponentGroup, 10, func(field *form.Field) bool {
		c := field.Control()
		return c == nil || c.Kind() == control.KindGroup
	})
	r.RegisterMatcher(ComponentInput, 0, func(*form.Field) bool { return true })
	return r
}
