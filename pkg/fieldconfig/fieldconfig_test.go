package fieldconfig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"

	"github.com/goliatone/go-formly/pkg/expression/hclexpr"
	"github.com/goliatone/go-formly/pkg/form"
)

func TestParseJSONList(t *testing.T) {
	data := []byte(`[
		{"key": "name", "type": "input", "hideExpression": "!model.enabled", "wrappers": ["label"]},
		{"key": "flag", "type": "checkbox", "hideExpression": true}
	]`)

	fields, err := Parse(data, "inline.json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].HideExpression != "!model.enabled" || fields[1].HideExpression != true {
		t.Fatalf("unexpected hide expressions: %#v, %#v", fields[0].HideExpression, fields[1].HideExpression)
	}
	if diff := cmp.Diff([]string{"label"}, fields[0].Wrappers); diff != "" {
		t.Fatalf("wrappers mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileYAMLDocument(t *testing.T) {
	doc, err := LoadFile(filepath.Join("testdata", "profile.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if diff := cmp.Diff(form.Model{"visibilityToggle": false}, doc.Model); diff != "" {
		t.Fatalf("model mismatch (-want +got):\n%s", diff)
	}
	if doc.FormState["mode"] != "edit" {
		t.Fatalf("expected form state, got %v", doc.FormState)
	}

	details := doc.Fields[1]
	if details.FieldGroup == nil || len(details.FieldGroup) != 3 {
		t.Fatalf("expected details group with 3 children, got %#v", details.FieldGroup)
	}
	age := details.FieldGroup[1]
	if age.ModelOptions.Debounce.Default != 200 {
		t.Fatalf("expected debounce 200, got %d", age.ModelOptions.Debounce.Default)
	}
	if len(age.Parsers) != 1 || age.Parsers[0]("42") != 42 {
		t.Fatalf("expected integer parser on age")
	}
	if err := Validate(doc.Fields); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadedDocumentBuilds(t *testing.T) {
	fsys := fstest.MapFS{}
	data, err := os.ReadFile(filepath.Join("testdata", "profile.yaml"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	fsys["forms/profile.yaml"] = &fstest.MapFile{Data: data}

	doc, err := LoadFS(fsys, "forms/profile.yaml")
	if err != nil {
		t.Fatalf("load fs: %v", err)
	}
	f, err := form.Build(doc.Fields, doc.Model, form.WithFormState(doc.FormState))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer f.Destroy()

	details := f.Fields()[1]
	if !details.Hidden() {
		t.Fatalf("expected details hidden until showDetails is set")
	}
	name := details.FieldGroup()[0]
	nickname := details.FieldGroup()[2]
	if !nickname.Disabled() {
		t.Fatalf("expected nickname disabled without a name")
	}

	doc.FormState["showDetails"] = true
	if err := f.CheckField(nil); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := f.SetControlValue(name, "  Ada "); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if details.Hidden() || nickname.Disabled() {
		t.Fatalf("expected details visible and nickname enabled")
	}
	if got := doc.Model["details"].(map[string]any)["name"]; got != "Ada" {
		t.Fatalf("expected trimmed name, got %q", got)
	}
}

func TestParseRejectsMalformedDocuments(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{"empty", "  ", "empty"},
		{"scalar", "42", "list of fields"},
		{"unknown key", `[{"key": "a", "hideExpresion": "x"}]`, "hideExpresion"},
		{"expression type", `[{"key": "a", "hideExpression": 3}]`, "hideExpression"},
		{"unknown parser", `[{"key": "a", "parsers": ["reverse"]}]`, "reverse"},
		{"yaml syntax", "fields: [", "invalid JSON or YAML"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data), tc.name)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestWithParser(t *testing.T) {
	reverse := func(v any) any {
		s, _ := v.(string)
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes)
	}
	fields, err := Parse([]byte(`[{"key": "a", "parsers": ["reverse", "upper"]}]`), "inline", WithParser("reverse", reverse))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	value := any("abc")
	for _, p := range fields[0].Parsers {
		value = p(value)
	}
	if value != "CBA" {
		t.Fatalf("expected parsers applied in order, got %v", value)
	}
}

func TestValidateAggregatesProblems(t *testing.T) {
	fields := []form.FieldConfig{
		{Key: "a..b"},
		{},
		{Key: "c", ModelOptions: form.ModelOptions{UpdateOn: "keyup", Debounce: form.Debounce{Default: -1}}},
		{Key: "d", HideExpression: "model..x", ExpressionProperties: map[string]any{" ": "model.y"}},
		{Key: "e", FieldGroup: []form.FieldConfig{{Key: "f", HideExpression: "(model.a"}}},
	}

	err := Validate(fields)
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("expected multierror, got %v", err)
	}
	if got := len(merr.Errors); got != 7 {
		t.Fatalf("expected 7 problems, got %d:\n%v", got, err)
	}
	if !strings.Contains(err.Error(), "fields[4].fieldGroup[0]") {
		t.Fatalf("expected nested path in errors:\n%v", err)
	}
}

func TestValidateWithCompiler(t *testing.T) {
	fields := []form.FieldConfig{{Key: "a", HideExpression: "!try(model.flag, false)"}}
	if err := Validate(fields); err == nil {
		t.Fatalf("expected default dialect to reject HCL syntax")
	}
	if err := Validate(fields, WithCompiler(hclexpr.New())); err != nil {
		t.Fatalf("expected HCL dialect to accept expression: %v", err)
	}
}

func TestFromOpenAPI(t *testing.T) {
	fields, err := FromOpenAPI(context.Background(), filepath.Join("testdata", "openapi.yaml"), "Profile")
	if err != nil {
		t.Fatalf("from openapi: %v", err)
	}

	byKey := make(map[string]form.FieldConfig, len(fields))
	var keys []string
	for _, f := range fields {
		byKey[f.Key] = f
		keys = append(keys, f.Key)
	}
	wantKeys := []string{"address", "age", "bio", "company", "name", "newsletter", "role", "topics"}
	if diff := cmp.Diff(wantKeys, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}

	types := map[string]string{
		"age": "input", "bio": "textarea", "company": "input", "name": "input",
		"newsletter": "checkbox", "role": "select", "topics": "multicheckbox",
	}
	for key, want := range types {
		if got := byKey[key].Type; got != want {
			t.Fatalf("%s: type %q, want %q", key, got, want)
		}
	}

	name := byKey["name"].TemplateOptions
	if name["label"] != "Full name" || name["required"] != true || name["minLength"] != 2 {
		t.Fatalf("unexpected name template options: %v", name)
	}
	if byKey["newsletter"].DefaultValue != true {
		t.Fatalf("expected default carried over")
	}
	if byKey["company"].HideExpression != "model.role != 'admin'" {
		t.Fatalf("expected hide expression extension, got %v", byKey["company"].HideExpression)
	}
	address := byKey["address"]
	if len(address.FieldGroup) != 1 || address.FieldGroup[0].TemplateOptions["description"] != "City of residence" {
		t.Fatalf("expected nested address group, got %#v", address.FieldGroup)
	}
	if to := byKey["age"].TemplateOptions; to["min"] != float64(0) || to["max"] != float64(130) {
		t.Fatalf("expected numeric bounds on age, got %v", to)
	}
	if byKey["age"].Parsers[0]("7") != 7 {
		t.Fatalf("expected integer parser on age")
	}
	if err := Validate(fields); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestFromOpenAPIErrors(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "openapi.yaml"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, name := range []string{"Missing", "Scalar"} {
		if _, err := FromOpenAPIData(context.Background(), data, name); err == nil {
			t.Fatalf("expected error for schema %s", name)
		}
	}
}
