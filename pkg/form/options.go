package form

import (
	"github.com/hashicorp/go-hclog"
	"k8s.io/utils/clock"

	"github.com/goliatone/go-formly/pkg/expression"
	"github.com/goliatone/go-formly/pkg/stream"
)

const defaultMaxCheckPasses = 16

// Options is the per-form context shared by every field. FormState and the
// FieldChanges subject may be used by callers; the remaining fields are fixed
// once the form is built.
type Options struct {
	FormState      map[string]any
	FieldChanges   *stream.Subject[FieldChange]
	Logger         hclog.Logger
	Clock          clock.WithDelayedExecution
	Compiler       expression.Compiler
	MaxCheckPasses int
}

// Option customises the form options.
type Option func(*Options)

// WithFormState shares state with every expression under the formState name.
func WithFormState(state map[string]any) Option {
	return func(o *Options) {
		if state != nil {
			o.FormState = state
		}
	}
}

// WithFieldChanges publishes field transitions on subject.
func WithFieldChanges(subject *stream.Subject[FieldChange]) Option {
	return func(o *Options) {
		if subject != nil {
			o.FieldChanges = subject
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger hclog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithClock replaces the clock used for debounce timers.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(o *Options) {
		if c != nil {
			o.Clock = c
		}
	}
}

// WithCompiler selects the dialect used for string expressions.
func WithCompiler(c expression.Compiler) Option {
	return func(o *Options) {
		if c != nil {
			o.Compiler = c
		}
	}
}

// WithMaxCheckPasses bounds the number of passes one CheckField call may run
// before failing with ErrNoFixedPoint.
func WithMaxCheckPasses(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxCheckPasses = n
		}
	}
}

func defaultOptions() *Options {
	return &Options{
		FormState:      make(map[string]any),
		FieldChanges:   stream.NewSubject[FieldChange](),
		Logger:         hclog.NewNullLogger(),
		Clock:          clock.RealClock{},
		Compiler:       expression.New(),
		MaxCheckPasses: defaultMaxCheckPasses,
	}
}
