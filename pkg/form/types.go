package form

import (
	"strings"
	"time"

	"github.com/goliatone/go-formly/pkg/control"
)

// Model is the plain data object a form reads and writes. It is shared by
// reference with the caller.
type Model = map[string]any

// FieldID addresses a field inside its form's arena. Zero is never assigned.
type FieldID uint32

// Parser transforms a raw control value before it is written to the model.
type Parser func(value any) any

// ExpressionFunc computes a derived value from the field's model, the form
// state and the field itself. It may return a stream.Stream[any], in which case
// every emission becomes the new value.
type ExpressionFunc func(model Model, formState map[string]any, field *Field) (any, error)

// Update timings accepted by ModelOptions.UpdateOn.
const (
	UpdateOnChange = "change"
	UpdateOnBlur   = "blur"
	UpdateOnSubmit = "submit"
)

// ModelOptions controls when control values reach the model.
type ModelOptions struct {
	UpdateOn string
	Debounce Debounce
}

// Debounce holds debounce windows in milliseconds.
type Debounce struct {
	Default int
}

func (o ModelOptions) debounce() time.Duration {
	updateOn := strings.TrimSpace(o.UpdateOn)
	if updateOn != "" && updateOn != UpdateOnChange {
		return 0
	}
	if o.Debounce.Default <= 0 {
		return 0
	}
	return time.Duration(o.Debounce.Default) * time.Millisecond
}

// FieldConfig is the raw declarative description of one field.
//
// HideExpression and the ExpressionProperties values accept nil, a bool, a
// string expression, an ExpressionFunc (or a plain func with the same
// arguments returning any) or a stream.Stream[any].
type FieldConfig struct {
	Key                  string
	Type                 string
	Wrappers             []string
	ClassName            string
	DefaultValue         any
	Hide                 bool
	HideExpression       any
	ExpressionProperties map[string]any
	TemplateOptions      map[string]any
	FieldGroup           []FieldConfig
	Parsers              []Parser
	ModelOptions         ModelOptions

	// Control supplies a pre-built control instead of letting the builder
	// create or reuse one.
	Control control.Control

	// Model overrides the scope object of a keyed field group.
	Model Model

	Hooks Hooks
}

func (c FieldConfig) isGroup() bool {
	return c.FieldGroup != nil
}

// Change types published on the FieldChanges stream.
const (
	EventHidden            = "hidden"
	EventValueChanges      = "valueChanges"
	EventExpressionChanges = "expressionChanges"
)

// FieldChange is one observable transition of a field.
type FieldChange struct {
	Field    *Field
	Type     string
	Property string
	Value    any
}
