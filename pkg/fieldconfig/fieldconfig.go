// Package fieldconfig loads form field configurations from JSON or YAML
// documents and from OpenAPI component schemas.
//
// A document is either a bare list of fields or an object:
//
//	fields:
//	  - key: name
//	    type: input
//	    hideExpression: "!model.enabled"
//	model: {}
//	formState: {}
//
// Expressions in documents are strings or booleans; parsers are referenced by
// name (see WithParser for registering more).
package fieldconfig

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formly/pkg/expression"
	"github.com/goliatone/go-formly/pkg/form"
)

// Document is a parsed configuration file.
type Document struct {
	Source    string
	Fields    []form.FieldConfig
	Model     form.Model
	FormState map[string]any
}

type documentFile struct {
	Fields    []fieldFile    `json:"fields"`
	Model     map[string]any `json:"model"`
	FormState map[string]any `json:"formState"`
}

type fieldFile struct {
	Key                  string           `json:"key"`
	Type                 string           `json:"type"`
	Wrappers             []string         `json:"wrappers"`
	ClassName            string           `json:"className"`
	DefaultValue         any              `json:"defaultValue"`
	Hide                 bool             `json:"hide"`
	HideExpression       any              `json:"hideExpression"`
	ExpressionProperties map[string]any   `json:"expressionProperties"`
	TemplateOptions      map[string]any   `json:"templateOptions"`
	FieldGroup           []fieldFile      `json:"fieldGroup"`
	Parsers              []string         `json:"parsers"`
	ModelOptions         modelOptionsFile `json:"modelOptions"`
}

type modelOptionsFile struct {
	UpdateOn string `json:"updateOn"`
	Debounce struct {
		Default int `json:"default"`
	} `json:"debounce"`
}

// Options configures parsing and validation.
type Options struct {
	Parsers  map[string]form.Parser
	Compiler expression.Compiler
}

// Option customises Options.
type Option func(*Options)

// WithParser makes p available to documents under name.
func WithParser(name string, p form.Parser) Option {
	return func(o *Options) {
		if name = strings.TrimSpace(name); name != "" && p != nil {
			o.Parsers[name] = p
		}
	}
}

// WithCompiler selects the expression dialect Validate compiles against.
func WithCompiler(c expression.Compiler) Option {
	return func(o *Options) {
		if c != nil {
			o.Compiler = c
		}
	}
}

func resolveOptions(opts []Option) *Options {
	o := &Options{Parsers: builtinParsers(), Compiler: expression.New()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Parse decodes data and returns its fields.
func Parse(data []byte, source string, opts ...Option) ([]form.FieldConfig, error) {
	doc, err := ParseDocument(data, source, opts...)
	if err != nil {
		return nil, err
	}
	return doc.Fields, nil
}

// ParseDocument decodes data as JSON, falling back to YAML.
func ParseDocument(data []byte, source string, opts ...Option) (Document, error) {
	o := resolveOptions(opts)
	if len(strings.TrimSpace(string(data))) == 0 {
		return Document{}, fmt.Errorf("fieldconfig: file %s is empty", source)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		if yamlErr := yaml.Unmarshal(data, &raw); yamlErr != nil {
			return Document{}, fmt.Errorf("fieldconfig: parse %s: invalid JSON or YAML: %w", source, yamlErr)
		}
	}

	var file documentFile
	switch raw.(type) {
	case []any:
		if err := decode(raw, &file.Fields); err != nil {
			return Document{}, fmt.Errorf("fieldconfig: decode %s: %w", source, err)
		}
	case map[string]any:
		if err := decode(raw, &file); err != nil {
			return Document{}, fmt.Errorf("fieldconfig: decode %s: %w", source, err)
		}
	default:
		return Document{}, fmt.Errorf("fieldconfig: %s must be a list of fields or an object with fields", source)
	}

	fields, err := convertFields(file.Fields, "fields", o)
	if err != nil {
		return Document{}, fmt.Errorf("fieldconfig: %s: %w", source, err)
	}
	return Document{Source: source, Fields: fields, Model: file.Model, FormState: file.FormState}, nil
}

// LoadFile reads and parses the document at path.
func LoadFile(path string, opts ...Option) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("fieldconfig: read %s: %w", path, err)
	}
	return ParseDocument(data, path, opts...)
}

// LoadFS reads and parses the document at path inside fsys.
func LoadFS(fsys fs.FS, path string, opts ...Option) (Document, error) {
	if fsys == nil {
		return Document{}, fmt.Errorf("fieldconfig: nil filesystem")
	}
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return Document{}, fmt.Errorf("fieldconfig: read %s: %w", path, err)
	}
	return ParseDocument(data, path, opts...)
}

func decode(input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		TagName:     "json",
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func convertFields(files []fieldFile, path string, o *Options) ([]form.FieldConfig, error) {
	if files == nil {
		return nil, nil
	}
	out := make([]form.FieldConfig, 0, len(files))
	for i, file := range files {
		cfg, err := convertField(file, fmt.Sprintf("%s[%d]", path, i), o)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func convertField(file fieldFile, path string, o *Options) (form.FieldConfig, error) {
	cfg := form.FieldConfig{
		Key:             file.Key,
		Type:            file.Type,
		Wrappers:        append([]string(nil), file.Wrappers...),
		ClassName:       file.ClassName,
		DefaultValue:    file.DefaultValue,
		Hide:            file.Hide,
		TemplateOptions: file.TemplateOptions,
		ModelOptions: form.ModelOptions{
			UpdateOn: file.ModelOptions.UpdateOn,
			Debounce: form.Debounce{Default: file.ModelOptions.Debounce.Default},
		},
	}

	hide, err := documentExpression(file.HideExpression)
	if err != nil {
		return form.FieldConfig{}, fmt.Errorf("%s.hideExpression: %w", path, err)
	}
	cfg.HideExpression = hide

	if len(file.ExpressionProperties) > 0 {
		cfg.ExpressionProperties = make(map[string]any, len(file.ExpressionProperties))
		for target, raw := range file.ExpressionProperties {
			value, err := documentExpression(raw)
			if err != nil {
				return form.FieldConfig{}, fmt.Errorf("%s.expressionProperties[%s]: %w", path, target, err)
			}
			cfg.ExpressionProperties[target] = value
		}
	}

	for _, name := range file.Parsers {
		p, ok := o.Parsers[strings.TrimSpace(name)]
		if !ok {
			return form.FieldConfig{}, fmt.Errorf("%s.parsers: unknown parser %q", path, name)
		}
		cfg.Parsers = append(cfg.Parsers, p)
	}

	if file.FieldGroup != nil {
		children, err := convertFields(file.FieldGroup, path+".fieldGroup", o)
		if err != nil {
			return form.FieldConfig{}, err
		}
		if children == nil {
			children = []form.FieldConfig{}
		}
		cfg.FieldGroup = children
	}
	return cfg, nil
}

func documentExpression(raw any) (any, error) {
	switch v := raw.(type) {
	case nil, bool, string:
		return v, nil
	default:
		return nil, fmt.Errorf("expected a string or boolean, got %T", raw)
	}
}
