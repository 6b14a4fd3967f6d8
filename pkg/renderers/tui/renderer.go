package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formly/pkg/control"
	"github.com/goliatone/go-formly/pkg/expression"
	"github.com/goliatone/go-formly/pkg/form"
)

// Renderer drives a form from the terminal. It prompts for every visible keyed
// leaf in declaration order and feeds each answer back through the form, so
// answers can reveal or hide the fields that follow.
type Renderer struct {
	driver            PromptDriver
	outputFormat      OutputFormat
	submitTransformer SubmitTransformer
	theme             Theme
	logger            hclog.Logger
	policy            *bluemonday.Policy
}

// New constructs a TUI renderer with defaults (survey driver, JSON output).
func New(options ...Option) (*Renderer, error) {
	r := &Renderer{
		outputFormat: OutputFormatJSON,
		logger:       hclog.NewNullLogger(),
		policy:       bluemonday.StrictPolicy(),
	}

	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}

	if r.driver == nil {
		r.driver = NewSurveyDriver()
	}
	switch r.outputFormat {
	case OutputFormatJSON, OutputFormatFormURLEncoded, OutputFormatPrettyText:
	default:
		return nil, fmt.Errorf("tui: unknown output format %q", r.outputFormat)
	}
	return r, nil
}

// Name reports the renderer identifier.
func (r *Renderer) Name() string {
	return "tui"
}

// ContentType reports the serialization format used by Render.
func (r *Renderer) ContentType() string {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return "application/x-www-form-urlencoded"
	case OutputFormatPrettyText:
		return "text/plain"
	default:
		return "application/json"
	}
}

// Render collects answers for f and serializes the resulting model.
func (r *Renderer) Render(ctx context.Context, f *form.Form) ([]byte, error) {
	values, err := r.Collect(ctx, f)
	if err != nil {
		return nil, err
	}
	return r.Serialize(values)
}

// Collect prompts for every visible field and returns a copy of the final
// model.
func (r *Renderer) Collect(ctx context.Context, f *form.Form) (form.Model, error) {
	if ctx == nil {
		return nil, errors.New("tui: context is required")
	}
	if f == nil {
		return nil, errors.New("tui: form is required")
	}
	if err := r.visit(ctx, f, f.Root()); err != nil {
		return nil, err
	}

	values, err := f.ModelSnapshot()
	if err != nil {
		return nil, fmt.Errorf("tui: snapshot model: %w", err)
	}
	if r.submitTransformer != nil {
		values, err = r.submitTransformer(values)
		if err != nil {
			return nil, fmt.Errorf("tui: submit transformer: %w", err)
		}
	}
	return values, nil
}

func (r *Renderer) visit(ctx context.Context, f *form.Form, n *form.Field) error {
	for _, child := range n.FieldGroup() {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Earlier answers may have changed visibility.
		if child.Destroyed() || f.IsHidden(child) {
			r.logger.Trace("skipping hidden field", "field", child.Key())
			continue
		}
		if !promptable(child) {
			if err := r.visit(ctx, f, child); err != nil {
				return err
			}
			continue
		}
		if child.Disabled() {
			if err := r.info(ctx, fmt.Sprintf("%s: %v", r.label(child), child.Value())); err != nil {
				return err
			}
			continue
		}

		value, err := r.prompt(ctx, child)
		if err != nil {
			return err
		}
		if err := r.apply(ctx, f, child, value); err != nil {
			return err
		}
	}
	return nil
}

func promptable(n *form.Field) bool {
	c := n.Control()
	return c != nil && c.Kind() == control.KindInput && n.Key() != ""
}

func (r *Renderer) apply(ctx context.Context, f *form.Form, n *form.Field, value any) error {
	r.logger.Debug("answer", "field", n.Key(), "value", value)
	if err := f.SetControlValue(n, value); err != nil {
		return err
	}
	return f.Settle(ctx)
}

func (r *Renderer) prompt(ctx context.Context, n *form.Field) (any, error) {
	to := n.TemplateOptions()
	label := r.label(n)
	help := r.sanitize(stringOption(to, "description"))
	current := n.Value()

	switch n.Type() {
	case "checkbox":
		return r.driver.Confirm(ctx, ConfirmConfig{Message: label, Default: expression.Truthy(current), Help: help})
	case "select", "radio":
		opts := r.options(to)
		if len(opts) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoOptions, n.Key())
		}
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      label,
			Options:      optionLabels(opts),
			DefaultIndex: indexOfValue(opts, current),
			Help:         help,
		})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(opts) {
			return nil, fmt.Errorf("tui: %s: selection %d out of range", n.Key(), idx)
		}
		return opts[idx].value, nil
	case "multicheckbox":
		opts := r.options(to)
		if len(opts) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoOptions, n.Key())
		}
		picked, err := r.driver.MultiSelect(ctx, SelectConfig{
			Message:  label,
			Options:  optionLabels(opts),
			Defaults: indicesOfValues(opts, current),
			Help:     help,
		})
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(picked))
		for _, idx := range picked {
			if idx >= 0 && idx < len(opts) {
				out = append(out, opts[idx].value)
			}
		}
		return out, nil
	default:
		return r.promptString(ctx, n, label, help, current)
	}
}

func (r *Renderer) promptString(ctx context.Context, n *form.Field, label, help string, current any) (string, error) {
	to := n.TemplateOptions()
	rules := collectValidationRules(to)
	defaultVal := ""
	if current != nil {
		defaultVal = fmt.Sprint(current)
	}

	for {
		var response string
		var err error
		switch {
		case n.Type() == "textarea":
			response, err = r.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: defaultVal, Help: help})
		case stringOption(to, "type") == "password":
			response, err = r.driver.Password(ctx, InputConfig{Message: label, Help: help})
		default:
			response, err = r.driver.Input(ctx, InputConfig{Message: label, Default: defaultVal, Help: help})
		}
		if err != nil {
			return "", err
		}

		if err := rules.validateString(response); err != nil {
			if infoErr := r.warn(ctx, fmt.Sprintf("Invalid %s: %v", n.Key(), err)); infoErr != nil {
				return "", infoErr
			}
			continue
		}
		return response, nil
	}
}

func (r *Renderer) info(ctx context.Context, msg string) error {
	return r.driver.Info(ctx, r.theme.InfoPrefix+msg)
}

func (r *Renderer) warn(ctx context.Context, msg string) error {
	return r.driver.Info(ctx, r.theme.ErrorPrefix+msg)
}

func (r *Renderer) label(n *form.Field) string {
	if label := r.sanitize(stringOption(n.TemplateOptions(), "label")); label != "" {
		return label
	}
	return n.Key()
}

// sanitize strips markup and returns plain text for the terminal.
func (r *Renderer) sanitize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(r.policy.Sanitize(trimmed)))
}

type option struct {
	label string
	value any
}

// options reads templateOptions.options: a list of {label, value} maps or
// plain scalars.
func (r *Renderer) options(to map[string]any) []option {
	raw, _ := to["options"].([]any)
	out := make([]option, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case map[string]any:
			value := v["value"]
			label := r.sanitize(fmt.Sprint(v["label"]))
			if _, ok := v["label"]; !ok || label == "" {
				label = fmt.Sprint(value)
			}
			out = append(out, option{label: label, value: value})
		default:
			out = append(out, option{label: r.sanitize(fmt.Sprint(v)), value: v})
		}
	}
	return out
}

func optionLabels(opts []option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.label
	}
	return out
}

func indexOfValue(opts []option, value any) int {
	for i, o := range opts {
		if expression.LooseEqual(o.value, value) {
			return i
		}
	}
	return 0
}

func indicesOfValues(opts []option, value any) []int {
	values, _ := value.([]any)
	var out []int
	for i, o := range opts {
		for _, v := range values {
			if expression.LooseEqual(o.value, v) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

type validationRules struct {
	required bool
	numeric  bool
	minLen   *int
	maxLen   *int
	min      *float64
	max      *float64
	pattern  *regexp.Regexp
}

func collectValidationRules(to map[string]any) validationRules {
	rules := validationRules{
		required: expression.Truthy(to["required"]),
		numeric:  stringOption(to, "type") == "number",
	}
	if v, ok := intOption(to, "minLength"); ok {
		rules.minLen = &v
	}
	if v, ok := intOption(to, "maxLength"); ok {
		rules.maxLen = &v
	}
	if v, ok := floatOption(to, "min"); ok {
		rules.min = &v
	}
	if v, ok := floatOption(to, "max"); ok {
		rules.max = &v
	}
	if expr := stringOption(to, "pattern"); expr != "" {
		if re, err := regexp.Compile(expr); err == nil {
			rules.pattern = re
		}
	}
	return rules
}

func (r validationRules) validateString(value string) error {
	if strings.TrimSpace(value) == "" {
		if r.required {
			return errors.New("required")
		}
		return nil
	}
	if r.minLen != nil && len(value) < *r.minLen {
		return fmt.Errorf("min length %d", *r.minLen)
	}
	if r.maxLen != nil && len(value) > *r.maxLen {
		return fmt.Errorf("max length %d", *r.maxLen)
	}
	if r.pattern != nil && !r.pattern.MatchString(value) {
		return errors.New("does not match required pattern")
	}
	if r.numeric {
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return errors.New("expected a number")
		}
		if r.min != nil && n < *r.min {
			return fmt.Errorf("min %v", *r.min)
		}
		if r.max != nil && n > *r.max {
			return fmt.Errorf("max %v", *r.max)
		}
	}
	return nil
}

func stringOption(to map[string]any, key string) string {
	s, _ := to[key].(string)
	return s
}

func intOption(to map[string]any, key string) (int, bool) {
	f, ok := floatOption(to, key)
	return int(f), ok
}

func floatOption(to map[string]any, key string) (float64, bool) {
	switch v := to[key].(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Serialize encodes values in the configured output format.
func (r *Renderer) Serialize(values form.Model) ([]byte, error) {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return []byte(flattenForm(values)), nil
	case OutputFormatPrettyText:
		return []byte(prettyPrint(values)), nil
	default:
		return json.MarshalIndent(values, "", "  ")
	}
}

func flattenForm(values map[string]any) string {
	flattened := url.Values{}
	flatten("", values, flattened)
	return flattened.Encode()
}

func flatten(prefix string, value any, out url.Values) {
	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			flatten(next, val, out)
		}
	case []any:
		for _, val := range v {
			out.Add(prefix+"[]", fmt.Sprint(val))
		}
	case nil:
		out.Set(prefix, "")
	default:
		out.Set(prefix, fmt.Sprint(v))
	}
}

func prettyPrint(values map[string]any) string {
	var b strings.Builder
	writePretty(&b, "", values)
	return b.String()
}

func writePretty(b *strings.Builder, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			writePretty(b, next, v[key])
		}
	case []any:
		for idx, val := range v {
			writePretty(b, fmt.Sprintf("%s[%d]", prefix, idx), val)
		}
	default:
		if prefix != "" {
			fmt.Fprintf(b, "%s=%v\n", prefix, v)
		}
	}
}
