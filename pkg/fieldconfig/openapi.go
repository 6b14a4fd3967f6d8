package fieldconfig

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formly/pkg/form"
)

// Schema extensions read by FromOpenAPI.
const (
	ExtHideExpression       = "x-formly-hide-expression"
	ExtExpressionProperties = "x-formly-expression-properties"
	ExtType                 = "x-formly-type"
)

// FromOpenAPI loads the document at path and converts the named component
// schema into fields.
func FromOpenAPI(ctx context.Context, path, schemaName string) ([]form.FieldConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fieldconfig: read %s: %w", path, err)
	}
	return FromOpenAPIData(ctx, data, schemaName)
}

// FromOpenAPIData converts the named component schema of an in-memory OpenAPI
// document. Object properties become keyed field groups, enums become selects
// and booleans become checkboxes; the rest are inputs.
func FromOpenAPIData(ctx context.Context, data []byte, schemaName string) ([]form.FieldConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("fieldconfig: load openapi document: %w", err)
	}
	if doc.Components == nil || doc.Components.Schemas == nil {
		return nil, fmt.Errorf("fieldconfig: openapi document has no component schemas")
	}
	ref, ok := doc.Components.Schemas[schemaName]
	if !ok || ref == nil || ref.Value == nil {
		return nil, fmt.Errorf("fieldconfig: schema %q not found", schemaName)
	}
	if t := firstSchemaType(ref.Value.Type); t != "" && t != openapi3.TypeObject {
		return nil, fmt.Errorf("fieldconfig: schema %q is %s, want object", schemaName, t)
	}
	return schemaFields(ref.Value, map[*openapi3.Schema]bool{})
}

func schemaFields(schema *openapi3.Schema, visiting map[*openapi3.Schema]bool) ([]form.FieldConfig, error) {
	if visiting[schema] {
		return nil, fmt.Errorf("fieldconfig: schema cycle through %q", schema.Title)
	}
	visiting[schema] = true
	defer delete(visiting, schema)

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]form.FieldConfig, 0, len(names))
	for _, name := range names {
		prop := schema.Properties[name]
		if prop == nil || prop.Value == nil {
			continue
		}
		cfg, err := propertyField(name, prop.Value, required[name], visiting)
		if err != nil {
			return nil, err
		}
		fields = append(fields, cfg)
	}
	return fields, nil
}

func propertyField(name string, s *openapi3.Schema, required bool, visiting map[*openapi3.Schema]bool) (form.FieldConfig, error) {
	label := s.Title
	if label == "" {
		label = name
	}
	to := map[string]any{"label": label}
	if s.Description != "" {
		to["description"] = s.Description
	}
	if required {
		to["required"] = true
	}

	cfg := form.FieldConfig{Key: name, TemplateOptions: to, DefaultValue: s.Default}
	schemaType := firstSchemaType(s.Type)

	switch {
	case schemaType == openapi3.TypeObject:
		children, err := schemaFields(s, visiting)
		if err != nil {
			return form.FieldConfig{}, err
		}
		cfg.FieldGroup = children
		cfg.DefaultValue = nil
	case len(s.Enum) > 0:
		cfg.Type = "select"
		to["options"] = enumOptions(s.Enum)
	case schemaType == openapi3.TypeBoolean:
		cfg.Type = "checkbox"
	case schemaType == openapi3.TypeArray && s.Items != nil && s.Items.Value != nil && len(s.Items.Value.Enum) > 0:
		cfg.Type = "multicheckbox"
		to["options"] = enumOptions(s.Items.Value.Enum)
	case schemaType == openapi3.TypeInteger:
		cfg.Type = "input"
		to["type"] = "number"
		cfg.Parsers = []form.Parser{parseInteger}
	case schemaType == openapi3.TypeNumber:
		cfg.Type = "input"
		to["type"] = "number"
		cfg.Parsers = []form.Parser{parseNumber}
	case s.Format == "textarea" || (s.MaxLength != nil && *s.MaxLength > 255):
		cfg.Type = "textarea"
	default:
		cfg.Type = "input"
	}

	if s.MinLength > 0 {
		to["minLength"] = int(s.MinLength)
	}
	if s.MaxLength != nil {
		to["maxLength"] = int(*s.MaxLength)
	}
	if s.Pattern != "" {
		to["pattern"] = s.Pattern
	}
	if s.Min != nil {
		to["min"] = *s.Min
	}
	if s.Max != nil {
		to["max"] = *s.Max
	}

	if err := applyExtensions(&cfg, s.Extensions); err != nil {
		return form.FieldConfig{}, fmt.Errorf("fieldconfig: property %s: %w", name, err)
	}
	return cfg, nil
}

func applyExtensions(cfg *form.FieldConfig, ext map[string]any) error {
	if raw, ok := ext[ExtType]; ok {
		typ, isString := raw.(string)
		if !isString {
			return fmt.Errorf("%s must be a string", ExtType)
		}
		cfg.Type = typ
	}
	if raw, ok := ext[ExtHideExpression]; ok {
		expr, err := documentExpression(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", ExtHideExpression, err)
		}
		cfg.HideExpression = expr
	}
	if raw, ok := ext[ExtExpressionProperties]; ok {
		props, isMap := raw.(map[string]any)
		if !isMap {
			return fmt.Errorf("%s must be an object", ExtExpressionProperties)
		}
		cfg.ExpressionProperties = make(map[string]any, len(props))
		for target, value := range props {
			expr, err := documentExpression(value)
			if err != nil {
				return fmt.Errorf("%s[%s]: %w", ExtExpressionProperties, target, err)
			}
			cfg.ExpressionProperties[target] = expr
		}
	}
	return nil
}

func enumOptions(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, map[string]any{"value": v, "label": fmt.Sprint(v)})
	}
	return out
}

func firstSchemaType(types *openapi3.Types) string {
	if types == nil {
		return ""
	}
	values := types.Slice()
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	default:
		return strings.Join(values, ",")
	}
}
