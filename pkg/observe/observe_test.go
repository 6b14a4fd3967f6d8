package observe

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestObserveFiresFirstChangeOnInstall(t *testing.T) {
	hub := NewHub()
	obj := NewObject(map[string]any{"hide": true})

	var got []Change
	if _, err := hub.Observe(obj, "hide", func(c Change) error {
		got = append(got, c)
		return nil
	}); err != nil {
		t.Fatalf("observe: %v", err)
	}

	want := []Change{{Current: true, FirstChange: true}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}
}

func TestSetNotifiesOnlyOnChange(t *testing.T) {
	hub := NewHub()
	obj := NewObject(nil)

	var got []Change
	if _, err := hub.Observe(obj, "templateOptions.label", func(c Change) error {
		got = append(got, c)
		return nil
	}); err != nil {
		t.Fatalf("observe: %v", err)
	}

	for _, v := range []any{"a", "a", "b"} {
		if err := hub.Set(obj, "templateOptions.label", v); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	want := []Change{
		{FirstChange: true},
		{Previous: nil, Current: "a"},
		{Previous: "a", Current: "b"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}
	if v, _ := obj.Lookup([]string{"templateOptions", "label"}); v != "b" {
		t.Fatalf("expected nested value to be written, got %v", v)
	}
}

func TestWatchersComposeAndUnsubscribeIndependently(t *testing.T) {
	hub := NewHub()
	obj := NewObject(nil)

	var first, second int
	h1, _ := hub.Observe(obj, "className", func(c Change) error {
		if !c.FirstChange {
			first++
		}
		return nil
	})
	if _, err := hub.Observe(obj, "className", func(c Change) error {
		if !c.FirstChange {
			second++
		}
		return nil
	}); err != nil {
		t.Fatalf("observe: %v", err)
	}

	_ = hub.Set(obj, "className", "a")
	h1.Unsubscribe()
	h1.Unsubscribe()
	_ = hub.Set(obj, "className", "b")

	if first != 1 || second != 2 {
		t.Fatalf("expected first=1 second=2, got first=%d second=%d", first, second)
	}
	if n := hub.Watching(obj, "className"); n != 1 {
		t.Fatalf("expected 1 remaining watcher, got %d", n)
	}
}

func TestCallbackErrorAbortsLaterWatchers(t *testing.T) {
	hub := NewHub()
	obj := NewObject(nil)
	boom := errors.New("boom")

	_, _ = hub.Observe(obj, "hide", func(c Change) error {
		if c.FirstChange {
			return nil
		}
		return boom
	})
	called := false
	_, _ = hub.Observe(obj, "hide", func(c Change) error {
		if !c.FirstChange {
			called = true
		}
		return nil
	})

	if err := hub.Set(obj, "hide", true); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if called {
		t.Fatalf("second watcher should not run after the first failed")
	}
}

func TestHandleSetValueDoesNotNotify(t *testing.T) {
	hub := NewHub()
	obj := NewObject(nil)

	calls := 0
	h, _ := hub.Observe(obj, "hide", func(c Change) error {
		calls++
		return nil
	})
	if err := h.SetValue(true); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected only the install call, got %d", calls)
	}
	if v, _ := obj.Lookup([]string{"hide"}); v != true {
		t.Fatalf("expected silent write to land, got %v", v)
	}
}

func TestRelease(t *testing.T) {
	hub := NewHub()
	obj := NewObject(nil)
	_, _ = hub.Observe(obj, "a", func(Change) error { return nil })
	_, _ = hub.Observe(obj, "b.c", func(Change) error { return nil })

	hub.Release(obj)

	if hub.Watching(obj, "a") != 0 || hub.Watching(obj, "b.c") != 0 {
		t.Fatalf("expected all watchers released")
	}
}

type wrapped struct {
	V any
}

func TestEqual(t *testing.T) {
	shared := &wrapped{V: 1}
	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{"nil", nil, nil, true},
		{"nil vs value", nil, false, false},
		{"strings", "a", "a", true},
		{"different types", 1, 1.0, false},
		{"maps", map[string]any{"a": 1}, map[string]any{"a": 1}, true},
		{"slices", []any{1}, []any{2}, false},
		{"struct holding maps", wrapped{map[string]any{}}, wrapped{map[string]any{}}, true},
		{"struct holding different maps", wrapped{map[string]any{"a": 1}}, wrapped{map[string]any{"a": 2}}, false},
		{"struct holding scalars", wrapped{1}, wrapped{1}, true},
		{"array of interfaces", [1]any{[]any{1}}, [1]any{[]any{1}}, true},
		{"same pointer", shared, shared, true},
		{"distinct pointers", &wrapped{V: 1}, &wrapped{V: 1}, false},
	}
	for _, tc := range cases {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Fatalf("%s: Equal = %v, want %v", tc.name, got, tc.want)
		}
	}
}
