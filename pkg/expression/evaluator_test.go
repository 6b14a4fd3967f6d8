package expression

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeField map[string]any

func (f fakeField) Lookup(path []string) (any, bool) {
	v, ok := f[strings.Join(path, ".")]
	return v, ok
}

func (f fakeField) Snapshot() map[string]any { return map[string]any(f) }

func mustEval(t *testing.T, source string, env Env) any {
	t.Helper()
	prog, err := New().Compile(source)
	if err != nil {
		t.Fatalf("compile %q: %v", source, err)
	}
	v, err := prog.Eval(env)
	if err != nil {
		t.Fatalf("eval %q: %v", source, err)
	}
	return v
}

func TestEvaluatorNegationOfMissingPath(t *testing.T) {
	t.Parallel()

	env := Env{Model: map[string]any{}}
	if got := mustEval(t, "!model.visibilityToggle", env); got != true {
		t.Fatalf("expected true for missing toggle, got %v", got)
	}

	env.Model["visibilityToggle"] = "test"
	if got := mustEval(t, "!model.visibilityToggle", env); got != false {
		t.Fatalf("expected false once toggle is set, got %v", got)
	}
}

func TestEvaluatorResolvesRoots(t *testing.T) {
	t.Parallel()

	env := Env{
		Model:     map[string]any{"label": "test", "address": map[string]any{"city": "Oslo"}},
		FormState: map[string]any{"className": "name_test"},
		Field:     fakeField{"key": "name"},
	}

	cases := []struct {
		source string
		want   any
	}{
		{"formState.className", "name_test"},
		{"field.key", "name"},
		{"model.label", "test"},
		{"model.address.city", "Oslo"},
		{"model.missing.deep", nil},
		{"field.unknown", nil},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, mustEval(t, tc.source, env)); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", tc.source, diff)
		}
	}
}

func TestEvaluatorEquality(t *testing.T) {
	t.Parallel()

	env := Env{Model: map[string]any{
		"type":    "company",
		"count":   3,
		"enabled": "true",
		"other":   "company",
	}}

	cases := []struct {
		source string
		want   bool
	}{
		{`model.type == "company"`, true},
		{`model.type != 'company'`, false},
		{`model.type === "company"`, true},
		{`model.count == 3`, true},
		{`model.count == "3"`, true},
		{`model.enabled == true`, true},
		{`model.missing == null`, true},
		{`model.type == model.other`, true},
		{`"company" == model.type`, true},
		{`!(model.type == "person")`, true},
	}
	for _, tc := range cases {
		if got := mustEval(t, tc.source, env); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.source, got, tc.want)
		}
	}
}

func TestEvaluatorComposition(t *testing.T) {
	t.Parallel()

	env := Env{Model: map[string]any{"a": true, "b": false, "name": ""}}

	if got := mustEval(t, "model.a && !model.b", env); got != true {
		t.Fatalf("expected true, got %v", got)
	}
	if got := mustEval(t, "model.b || model.a", env); got != true {
		t.Fatalf("expected true, got %v", got)
	}
	if got := mustEval(t, "model.name || 'fallback'", env); got != "fallback" {
		t.Fatalf("expected operand value from ||, got %v", got)
	}
	if got := mustEval(t, "model.b && model.a", env); got != false {
		t.Fatalf("expected false short-circuit, got %v", got)
	}
}

func TestEvaluatorDoesNotMutateModel(t *testing.T) {
	t.Parallel()

	model := map[string]any{"a": map[string]any{}}
	mustEval(t, "model.a.b.c == 1", Env{Model: model})
	if diff := cmp.Diff(map[string]any{"a": map[string]any{}}, model); diff != "" {
		t.Fatalf("model mutated (-want +got):\n%s", diff)
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"visibilityToggle",
		"model.a = 1",
		"model.a &",
		"(model.a",
		`model.a == "open`,
		"model..a",
		"model.a ==",
	}
	for _, source := range cases {
		if _, err := New().Compile(source); err == nil {
			t.Fatalf("expected compile error for %q", source)
		}
	}
}

func TestTruthy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		value any
		want  bool
	}{
		{nil, false},
		{"", false},
		{" ", true},
		{0, false},
		{0.0, false},
		{1, true},
		{map[string]any{}, true},
		{[]any{}, true},
		{false, false},
	}
	for _, tc := range cases {
		if got := Truthy(tc.value); got != tc.want {
			t.Fatalf("Truthy(%#v) = %v, want %v", tc.value, got, tc.want)
		}
	}
}
