// Package hclexpr is an alternative expression dialect that evaluates HCL
// native-syntax expressions. The model, form state and field snapshot are
// exposed as the `model`, `formState` and `field` variables; `try` and `can`
// are available to guard optional attributes:
//
//	!try(model.visibilityToggle, false)
//	model.type == "company" && formState.readOnly
package hclexpr

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/tryfunc"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/goliatone/go-formly/pkg/expression"
)

const filename = "expression.hcl"

// Compiler implements expression.Compiler for HCL syntax.
type Compiler struct{}

var _ expression.Compiler = (*Compiler)(nil)

// New returns an HCL expression compiler.
func New() *Compiler { return &Compiler{} }

// Compile parses source and checks that every referenced variable is one of
// the supported roots.
func (c *Compiler) Compile(source string) (expression.Program, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(source), filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("hclexpr: parse %q: %s", source, diags.Error())
	}
	for _, traversal := range expr.Variables() {
		switch root := traversal.RootName(); root {
		case expression.RootModel, expression.RootFormState, expression.RootField:
		default:
			return nil, fmt.Errorf("hclexpr: unknown variable %q in %q", root, source)
		}
	}
	return &program{source: source, expr: expr}, nil
}

type program struct {
	source string
	expr   hclsyntax.Expression
}

func (p *program) Source() string { return p.source }

func (p *program) Eval(env expression.Env) (any, error) {
	model, err := toCty(env.Model)
	if err != nil {
		return nil, fmt.Errorf("hclexpr: model: %w", err)
	}
	formState, err := toCty(env.FormState)
	if err != nil {
		return nil, fmt.Errorf("hclexpr: formState: %w", err)
	}
	var fieldSnapshot map[string]any
	if env.Field != nil {
		fieldSnapshot = env.Field.Snapshot()
	}
	field, err := toCty(fieldSnapshot)
	if err != nil {
		return nil, fmt.Errorf("hclexpr: field: %w", err)
	}

	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			expression.RootModel:     model,
			expression.RootFormState: formState,
			expression.RootField:     field,
		},
		Functions: map[string]function.Function{
			"try": tryfunc.TryFunc,
			"can": tryfunc.CanFunc,
		},
	}

	val, diags := p.expr.Value(ctx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("hclexpr: eval %q: %s", p.source, diags.Error())
	}
	return fromCty(val)
}

func toCty(values map[string]any) (cty.Value, error) {
	if len(values) == 0 {
		return cty.EmptyObjectVal, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return cty.NilVal, err
	}
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return cty.NilVal, err
	}
	return ctyjson.Unmarshal(raw, ty)
}

func fromCty(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("hclexpr: result is not known")
	}
	raw, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
