package form

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/goliatone/go-formly/pkg/control"
)

func setValue(t *testing.T, form *Form, n *Field, v any) {
	t.Helper()
	if err := form.SetControlValue(n, v); err != nil {
		t.Fatalf("set control value: %v", err)
	}
}

func TestControlValueRunsParsersInOrder(t *testing.T) {
	model := Model{}
	suffix := func(s string) Parser {
		return func(v any) any { return v.(string) + s }
	}
	form, rec := build(t, []FieldConfig{{
		Key:     "name",
		Parsers: []Parser{suffix("-a"), suffix("-b")},
	}}, model)
	field := form.Fields()[0]

	setValue(t, form, field, "x")

	if model["name"] != "x-a-b" {
		t.Fatalf("expected parsed value in model, got %v", model["name"])
	}
	want := []event{{Key: "name", Type: EventValueChanges, Value: "x-a-b"}}
	if diff := cmp.Diff(want, rec.of(EventValueChanges)); diff != "" {
		t.Fatalf("value events mismatch (-want +got):\n%s", diff)
	}
}

func TestControlValueRechecksForm(t *testing.T) {
	model := Model{}
	form, rec := build(t, []FieldConfig{
		{Key: "a"},
		{
			Key:                  "b",
			HideExpression:       `model.a == "x"`,
			ExpressionProperties: map[string]any{"templateOptions.label": "model.a"},
		},
	}, model)
	a, b := form.Fields()[0], form.Fields()[1]
	rec.reset()

	setValue(t, form, a, "x")

	if !b.Hidden() || attached(form, b) {
		t.Fatalf("expected b hidden and detached after the edit, model=%v", model)
	}
	if got := b.TemplateOptions()["label"]; got != "x" {
		t.Fatalf("expected label re-evaluated, got %v", got)
	}
	want := []event{{Key: "b", Type: EventHidden, Value: true}}
	if diff := cmp.Diff(want, rec.of(EventHidden)); diff != "" {
		t.Fatalf("hidden events mismatch (-want +got):\n%s", diff)
	}
}

func TestRepeatedControlValuesAreDropped(t *testing.T) {
	form, rec := build(t, []FieldConfig{{Key: "name"}}, nil)
	field := form.Fields()[0]

	setValue(t, form, field, "a")
	setValue(t, form, field, "a")
	setValue(t, form, field, "b")

	if got := len(rec.of(EventValueChanges)); got != 2 {
		t.Fatalf("expected 2 value events, got %d", got)
	}
}

func TestSuppliedControlValueSeedsModel(t *testing.T) {
	model := Model{}
	build(t, []FieldConfig{{Key: "name", Control: control.NewInput("seed")}}, model)

	if model["name"] != "seed" {
		t.Fatalf("expected control value written at bind time, got %v", model["name"])
	}
}

func TestDefaultValueIsCopied(t *testing.T) {
	defaults := []any{"a"}
	model := Model{"kept": "x"}
	build(t, []FieldConfig{
		{Key: "tags", DefaultValue: defaults},
		{Key: "kept", DefaultValue: "ignored"},
	}, model)

	defaults[0] = "changed"
	if diff := cmp.Diff(Model{"tags": []any{"a"}, "kept": "x"}, model); diff != "" {
		t.Fatalf("model mismatch (-want +got):\n%s", diff)
	}
}

func TestDebounceWritesLatestValueOnce(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	model := Model{}
	form, rec := build(t, []FieldConfig{{
		Key:          "name",
		ModelOptions: ModelOptions{Debounce: Debounce{Default: 100}},
	}}, model, WithClock(clk))
	field := form.Fields()[0]

	setValue(t, form, field, "a")
	clk.Step(50 * time.Millisecond)
	setValue(t, form, field, "ab")
	clk.Step(99 * time.Millisecond)
	if err := form.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, ok := model["name"]; ok {
		t.Fatalf("expected no write inside the debounce window")
	}

	clk.Step(time.Millisecond)
	if err := form.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if model["name"] != "ab" {
		t.Fatalf("expected latest value after the window, got %v", model["name"])
	}
	if got := len(rec.of(EventValueChanges)); got != 1 {
		t.Fatalf("expected a single value event, got %d", got)
	}
}

func TestDebounceDoesNotDropRepeatedValues(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	form, rec := build(t, []FieldConfig{{
		Key:          "name",
		ModelOptions: ModelOptions{UpdateOn: UpdateOnChange, Debounce: Debounce{Default: 100}},
	}}, nil, WithClock(clk))
	field := form.Fields()[0]

	for i := 0; i < 2; i++ {
		setValue(t, form, field, "a")
		clk.Step(100 * time.Millisecond)
		if err := form.Flush(); err != nil {
			t.Fatalf("flush: %v", err)
		}
	}
	if got := len(rec.of(EventValueChanges)); got != 2 {
		t.Fatalf("expected each window to write, got %d events", got)
	}
}

func TestDebounceIgnoredForBlurUpdates(t *testing.T) {
	model := Model{}
	form, _ := build(t, []FieldConfig{{
		Key:          "name",
		ModelOptions: ModelOptions{UpdateOn: UpdateOnBlur, Debounce: Debounce{Default: 100}},
	}}, model)

	setValue(t, form, form.Fields()[0], "a")
	if model["name"] != "a" {
		t.Fatalf("expected immediate write, got %v", model["name"])
	}
}

func TestDestroyCancelsPendingDebounce(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	model := Model{}
	form, err := Build([]FieldConfig{{
		Key:          "name",
		ModelOptions: ModelOptions{Debounce: Debounce{Default: 100}},
	}}, model, WithClock(clk))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	field := form.Fields()[0]
	input := field.Control().(*control.Input)

	setValue(t, form, field, "a")
	form.Destroy()
	clk.Step(time.Second)

	if err := form.Flush(); err != nil {
		t.Fatalf("flush after destroy: %v", err)
	}
	if _, ok := model["name"]; ok {
		t.Fatalf("expected no write after destroy")
	}
	if input.Subscribers() != 0 {
		t.Fatalf("expected value subscription released")
	}
	if !errors.Is(form.CheckField(nil), ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed after destroy")
	}
}

func TestSettleWaitsForDebounce(t *testing.T) {
	model := Model{}
	form, _ := build(t, []FieldConfig{{
		Key:          "name",
		ModelOptions: ModelOptions{Debounce: Debounce{Default: 5}},
	}}, model)

	setValue(t, form, form.Fields()[0], "a")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := form.Settle(ctx); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if model["name"] != "a" {
		t.Fatalf("expected debounced write after settle, got %v", model["name"])
	}
}

func TestDuplicateKeySiblingsReceiveValue(t *testing.T) {
	model := Model{}
	form, rec := build(t, []FieldConfig{
		{Key: "key1", Control: control.NewInput(nil)},
		{Key: "key1", Hide: true, Control: control.NewInput(nil)},
	}, model)
	first, second := form.Fields()[0], form.Fields()[1]

	setValue(t, form, first, "v")

	if second.Control().Value() != "v" {
		t.Fatalf("expected sibling control patched, got %v", second.Control().Value())
	}
	if got := len(rec.of(EventValueChanges)); got != 1 {
		t.Fatalf("expected sibling patch without events, got %d value events", got)
	}
}

func TestSharedControlWritesOnce(t *testing.T) {
	model := Model{}
	form, rec := build(t, []FieldConfig{{Key: "key1"}, {Key: "key1"}}, model)

	setValue(t, form, form.Fields()[1], "v")

	if model["key1"] != "v" {
		t.Fatalf("expected model written, got %v", model["key1"])
	}
	if got := rec.of(EventValueChanges); len(got) != 1 {
		t.Fatalf("expected one write for a shared control, got %v", got)
	}
}

func TestModelChangesSyncToControlOnCheck(t *testing.T) {
	model := Model{"name": "a"}
	form, _ := build(t, []FieldConfig{{Key: "name"}}, model)
	field := form.Fields()[0]

	model["name"] = "b"
	check(t, form, nil)
	if field.Control().Value() != "b" {
		t.Fatalf("expected control synced from model, got %v", field.Control().Value())
	}
}

func TestRunProcessesPostedTasks(t *testing.T) {
	form, _ := build(t, []FieldConfig{{Key: "name"}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- form.Run(ctx) }()

	done := make(chan struct{})
	go form.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("posted task did not run")
	}
	cancel()
	if err := <-result; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
