package fieldconfig

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/goliatone/go-formly/pkg/form"
	"github.com/goliatone/go-formly/pkg/observe"
)

// Validate reports every problem found in fields instead of stopping at the
// first one. String expressions are compiled with the configured dialect.
func Validate(fields []form.FieldConfig, opts ...Option) error {
	o := resolveOptions(opts)
	var result *multierror.Error
	for i, cfg := range fields {
		result = validateField(result, cfg, fmt.Sprintf("fields[%d]", i), o)
	}
	return result.ErrorOrNil()
}

func validateField(result *multierror.Error, cfg form.FieldConfig, path string, o *Options) *multierror.Error {
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...)))
	}

	if cfg.Key != "" && len(observe.SplitPath(cfg.Key)) != len(strings.Split(cfg.Key, ".")) {
		fail("key %q has empty segments", cfg.Key)
	}
	if cfg.Key == "" && cfg.Type == "" && cfg.FieldGroup == nil {
		fail("field needs a key, a type or a fieldGroup")
	}
	if cfg.FieldGroup != nil && len(cfg.Parsers) > 0 {
		fail("parsers have no effect on a field group")
	}

	switch cfg.ModelOptions.UpdateOn {
	case "", form.UpdateOnChange, form.UpdateOnBlur, form.UpdateOnSubmit:
	default:
		fail("unsupported modelOptions.updateOn %q", cfg.ModelOptions.UpdateOn)
	}
	if cfg.ModelOptions.Debounce.Default < 0 {
		fail("modelOptions.debounce.default must not be negative")
	}

	if err := compileCheck(cfg.HideExpression, o); err != nil {
		fail("hideExpression: %v", err)
	}
	for target, expr := range cfg.ExpressionProperties {
		if len(observe.SplitPath(target)) == 0 {
			fail("expressionProperties has an empty target")
			continue
		}
		if err := compileCheck(expr, o); err != nil {
			fail("expressionProperties[%s]: %v", target, err)
		}
	}

	for i, child := range cfg.FieldGroup {
		result = validateField(result, child, fmt.Sprintf("%s.fieldGroup[%d]", path, i), o)
	}
	return result
}

func compileCheck(expr any, o *Options) error {
	source, ok := expr.(string)
	if !ok {
		return nil
	}
	_, err := o.Compiler.Compile(source)
	return err
}
