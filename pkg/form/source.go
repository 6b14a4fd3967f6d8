package form

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-formly/pkg/expression"
	"github.com/goliatone/go-formly/pkg/stream"
)

type sourceKind int

const (
	sourceLiteral sourceKind = iota
	sourceProgram
	sourceFunc
	sourceStream
)

// source is a compiled expression value provider. Stream sources cache their
// latest emission.
type source struct {
	kind    sourceKind
	literal any
	program expression.Program
	fn      ExpressionFunc
	stream  stream.Stream[any]

	subscribed stream.Stream[any]
	sub        *stream.Subscription
	value      any
}

// propertySource binds a source to a property path and remembers the last
// value it produced.
type propertySource struct {
	path    string
	src     *source
	last    any
	hasLast bool
}

func (s *source) release() {
	if s == nil || s.sub == nil {
		return
	}
	s.sub.Unsubscribe()
	s.sub = nil
	s.subscribed = nil
}

func (f *Form) compileSource(raw any) (*source, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case bool:
		return &source{kind: sourceLiteral, literal: v}, nil
	case string:
		program, err := f.opts.Compiler.Compile(v)
		if err != nil {
			return nil, err
		}
		return &source{kind: sourceProgram, program: program}, nil
	case ExpressionFunc:
		if v == nil {
			return nil, nil
		}
		return &source{kind: sourceFunc, fn: v}, nil
	case func(Model, map[string]any, *Field) (any, error):
		if v == nil {
			return nil, nil
		}
		return &source{kind: sourceFunc, fn: v}, nil
	case func(Model, map[string]any, *Field) any:
		if v == nil {
			return nil, nil
		}
		return &source{kind: sourceFunc, fn: func(m Model, s map[string]any, field *Field) (any, error) {
			return v(m, s, field), nil
		}}, nil
	case stream.Stream[any]:
		return &source{kind: sourceStream, stream: v}, nil
	default:
		return nil, fmt.Errorf("unsupported expression type %T", raw)
	}
}

// evaluate produces the current value of src for n. property names the
// target for error reporting.
func (f *Form) evaluate(n *Field, src *source, property string) (any, error) {
	switch src.kind {
	case sourceLiteral:
		return src.literal, nil
	case sourceProgram:
		v, err := src.program.Eval(expression.Env{
			Model:     n.model,
			FormState: f.opts.FormState,
			Field:     n,
		})
		if err != nil {
			return nil, f.expressionError(n, property, err)
		}
		return v, nil
	case sourceFunc:
		v, err := f.call(n, src.fn)
		if err != nil {
			return nil, f.expressionError(n, property, err)
		}
		if s, ok := v.(stream.Stream[any]); ok {
			f.subscribe(n, src, s)
			return src.value, nil
		}
		return v, nil
	case sourceStream:
		f.subscribe(n, src, src.stream)
		return src.value, nil
	}
	return nil, f.expressionError(n, property, errors.New("unknown source"))
}

func (f *Form) call(n *Field, fn ExpressionFunc) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(n.model, f.opts.FormState, n)
}

// subscribe binds s to src unless it is already the active stream. Each
// emission stores the value and re-checks n; emissions during a check are
// coalesced into the running one.
func (f *Form) subscribe(n *Field, src *source, s stream.Stream[any]) {
	if src.sub != nil && src.subscribed == s {
		return
	}
	src.release()
	src.subscribed = s
	src.value = nil
	src.sub = s.Subscribe(func(v any) {
		src.value = v
		if n.destroyed || f.destroyed {
			return
		}
		f.recordError(f.CheckField(n))
	})
}

func (f *Form) expressionError(n *Field, property string, err error) error {
	var exprErr *ExpressionError
	if errors.As(err, &exprErr) {
		return err
	}
	return &ExpressionError{Field: n.id, Key: n.Key(), Property: property, Err: err}
}
