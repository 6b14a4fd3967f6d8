package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formly/pkg/form"
)

type stubDriver struct {
	inputs       []string
	selectIdx    []int
	multiIdx     [][]int
	confirm      []bool
	textAreas    []string
	passwords    []string
	infoMessages []string
	prompted     []string
	inputPos     int
	selectPos    int
	multiPos     int
	confirmPos   int
	textPos      int
	passPos      int
	inputErr     error
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	s.prompted = append(s.prompted, cfg.Message)
	if s.inputErr != nil {
		return "", s.inputErr
	}
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Password(_ context.Context, cfg InputConfig) (string, error) {
	s.prompted = append(s.prompted, cfg.Message)
	if s.passPos >= len(s.passwords) {
		return "", errors.New("no password scripted")
	}
	val := s.passwords[s.passPos]
	s.passPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, cfg ConfirmConfig) (bool, error) {
	s.prompted = append(s.prompted, cfg.Message)
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	s.prompted = append(s.prompted, cfg.Message)
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) MultiSelect(_ context.Context, cfg SelectConfig) ([]int, error) {
	s.prompted = append(s.prompted, cfg.Message)
	if s.multiPos >= len(s.multiIdx) {
		return nil, errors.New("no multiselect scripted")
	}
	val := s.multiIdx[s.multiPos]
	s.multiPos++
	return val, nil
}

func (s *stubDriver) TextArea(_ context.Context, cfg TextAreaConfig) (string, error) {
	s.prompted = append(s.prompted, cfg.Message)
	if s.textPos >= len(s.textAreas) {
		return "", errors.New("no textarea scripted")
	}
	val := s.textAreas[s.textPos]
	s.textPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

func profileFields() []form.FieldConfig {
	return []form.FieldConfig{
		{Key: "name", Type: "input", TemplateOptions: map[string]any{"label": "<b>Full</b> name", "required": true}},
		{Key: "subscribe", Type: "checkbox", TemplateOptions: map[string]any{"label": "Subscribe"}},
		{Key: "topics", Type: "multicheckbox", HideExpression: "!model.subscribe", TemplateOptions: map[string]any{
			"label":   "Topics",
			"options": []any{map[string]any{"label": "Go", "value": "go"}, "rust"},
		}},
		{Key: "role", Type: "select", TemplateOptions: map[string]any{
			"label":   "Role",
			"options": []any{map[string]any{"label": "Admin", "value": "admin"}, map[string]any{"label": "User", "value": "user"}},
		}},
		{Key: "company", Type: "input", HideExpression: "model.role != 'admin'", TemplateOptions: map[string]any{"label": "Company"}},
		{Key: "age", Type: "input", TemplateOptions: map[string]any{"label": "Age", "type": "number", "min": 18}},
	}
}

func newForm(t *testing.T, fields []form.FieldConfig, model form.Model) *form.Form {
	t.Helper()
	f, err := form.Build(fields, model)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(f.Destroy)
	return f
}

func TestCollectFollowsVisibility(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"", "Ada", "12", "42"},
		confirm:   []bool{true},
		multiIdx:  [][]int{{0, 1}},
		selectIdx: []int{1},
	}
	r, err := New(WithPromptDriver(driver), WithTheme(Theme{ErrorPrefix: "! "}))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	f := newForm(t, profileFields(), form.Model{})
	values, err := r.Collect(context.Background(), f)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	want := []string{"Full name", "Full name", "Subscribe", "Topics", "Role", "Age", "Age"}
	if diff := cmp.Diff(want, driver.prompted); diff != "" {
		t.Fatalf("prompt order mismatch (-want +got):\n%s", diff)
	}
	if len(driver.infoMessages) != 2 || !strings.HasPrefix(driver.infoMessages[0], "! Invalid name") {
		t.Fatalf("expected validation messages, got %v", driver.infoMessages)
	}

	if values["name"] != "Ada" || values["subscribe"] != true || values["role"] != "user" || values["age"] != "42" {
		t.Fatalf("unexpected values: %v", values)
	}
	if diff := cmp.Diff([]any{"go", "rust"}, values["topics"]); diff != "" {
		t.Fatalf("topics mismatch (-want +got):\n%s", diff)
	}
	if _, ok := values["company"]; ok {
		t.Fatalf("hidden company must not be collected: %v", values)
	}
}

func TestCollectRevealsLaterFields(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"Ada", "ACME", "30"},
		confirm:   []bool{false},
		selectIdx: []int{0},
	}
	r, err := New(WithPromptDriver(driver))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	f := newForm(t, profileFields(), nil)
	values, err := r.Collect(context.Background(), f)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{"Full name", "Subscribe", "Role", "Company", "Age"}
	if diff := cmp.Diff(want, driver.prompted); diff != "" {
		t.Fatalf("prompt order mismatch (-want +got):\n%s", diff)
	}
	if values["company"] != "ACME" {
		t.Fatalf("expected company collected, got %v", values)
	}
}

func TestCollectNestedGroupsAndDisabledFields(t *testing.T) {
	driver := &stubDriver{
		textAreas: []string{"Likes Go"},
		passwords: []string{"s3cret"},
	}
	r, err := New(WithPromptDriver(driver), WithTheme(Theme{InfoPrefix: "- "}))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	f := newForm(t, []form.FieldConfig{
		{Key: "id", Type: "input", ExpressionProperties: map[string]any{"templateOptions.disabled": true}},
		{Key: "profile", FieldGroup: []form.FieldConfig{
			{Key: "bio", Type: "textarea"},
			{FieldGroup: []form.FieldConfig{
				{Key: "secret", Type: "input", TemplateOptions: map[string]any{"type": "password"}},
			}},
		}},
	}, form.Model{"id": 7})

	values, err := r.Collect(context.Background(), f)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := form.Model{
		"id":      7,
		"profile": map[string]any{"bio": "Likes Go", "secret": "s3cret"},
	}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("model mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"- id: 7"}, driver.infoMessages); diff != "" {
		t.Fatalf("info mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectErrors(t *testing.T) {
	r, err := New(WithPromptDriver(&stubDriver{inputErr: ErrAborted}))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	f := newForm(t, []form.FieldConfig{{Key: "name", Type: "input"}}, nil)
	if _, err := r.Collect(context.Background(), f); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}

	r, _ = New(WithPromptDriver(&stubDriver{}))
	f = newForm(t, []form.FieldConfig{{Key: "role", Type: "select"}}, nil)
	if _, err := r.Collect(context.Background(), f); !errors.Is(err, ErrNoOptions) {
		t.Fatalf("expected ErrNoOptions, got %v", err)
	}

	if _, err := New(WithOutputFormat("xml")); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestRenderFormats(t *testing.T) {
	fields := []form.FieldConfig{
		{Key: "name", Type: "input"},
		{Key: "address", FieldGroup: []form.FieldConfig{{Key: "city", Type: "input"}}},
	}
	cases := []struct {
		format      OutputFormat
		contentType string
		want        string
	}{
		{OutputFormatPrettyText, "text/plain", "address.city=Oslo\nname=Ada\n"},
		{OutputFormatFormURLEncoded, "application/x-www-form-urlencoded", "address.city=Oslo&name=ADA"},
		{OutputFormatJSON, "application/json", "{\n  \"address\": {\n    \"city\": \"Oslo\"\n  },\n  \"name\": \"Ada\"\n}"},
	}
	for _, tc := range cases {
		t.Run(string(tc.format), func(t *testing.T) {
			opts := []Option{
				WithPromptDriver(&stubDriver{inputs: []string{"Ada", "Oslo"}}),
				WithOutputFormat(tc.format),
			}
			if tc.format == OutputFormatFormURLEncoded {
				opts = append(opts, WithSubmitTransformer(func(m form.Model) (form.Model, error) {
					m["name"] = strings.ToUpper(m["name"].(string))
					return m, nil
				}))
			}
			r, err := New(opts...)
			if err != nil {
				t.Fatalf("new renderer: %v", err)
			}
			if r.ContentType() != tc.contentType {
				t.Fatalf("content type %q, want %q", r.ContentType(), tc.contentType)
			}
			out, err := r.Render(context.Background(), newForm(t, fields, nil))
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if diff := cmp.Diff(tc.want, string(out)); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
