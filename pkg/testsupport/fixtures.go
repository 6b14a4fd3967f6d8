package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formly/pkg/fieldconfig"
	"github.com/goliatone/go-formly/pkg/form"
	"github.com/goliatone/go-formly/pkg/stream"
)

// LoadDocument reads a field configuration fixture. Testing helpers fail the
// test on error to keep contract tests concise.
func LoadDocument(t *testing.T, path string, opts ...fieldconfig.Option) fieldconfig.Document {
	t.Helper()

	doc, err := fieldconfig.LoadFile(path, opts...)
	if err != nil {
		t.Fatalf("load document: %v", err)
	}
	return doc
}

// Change is the comparable part of a form.FieldChange.
type Change struct {
	Key      string
	Type     string
	Property string `json:",omitempty"`
	Value    any
}

// Recorder collects the field changes emitted by a form.
type Recorder struct {
	Changes []Change
}

// Of returns the recorded changes of one event type.
func (r *Recorder) Of(kind string) []Change {
	var out []Change
	for _, c := range r.Changes {
		if c.Type == kind {
			out = append(out, c)
		}
	}
	return out
}

// Reset drops recorded changes.
func (r *Recorder) Reset() { r.Changes = nil }

// MustBuild builds the document's form with a recorder attached to its
// change stream. The form is destroyed when the test ends.
func MustBuild(t *testing.T, doc fieldconfig.Document, opts ...form.Option) (*form.Form, *Recorder) {
	t.Helper()

	rec := &Recorder{}
	changes := stream.NewSubject[form.FieldChange]()
	changes.Subscribe(func(c form.FieldChange) {
		rec.Changes = append(rec.Changes, Change{Key: c.Field.Key(), Type: c.Type, Property: c.Property, Value: c.Value})
	})

	base := []form.Option{form.WithFieldChanges(changes)}
	if doc.FormState != nil {
		base = append(base, form.WithFormState(doc.FormState))
	}
	model := doc.Model
	if model == nil {
		model = form.Model{}
	}
	f, err := form.Build(doc.Fields, model, append(base, opts...)...)
	if err != nil {
		t.Fatalf("build form: %v", err)
	}
	t.Cleanup(f.Destroy)
	return f, rec
}

// WriteGolden writes arbitrary data to a golden file when UPDATE_GOLDENS is set.
func WriteGolden(t *testing.T, path string, value any) {
	t.Helper()

	if os.Getenv("UPDATE_GOLDENS") == "" {
		return
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
}

// CompareGoldenJSON decodes the golden at path and diffs it against got after
// a JSON round trip, so numeric types line up.
func CompareGoldenJSON(t *testing.T, path string, got any) string {
	t.Helper()

	payload, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal value: %v", err)
	}
	var normalized any
	if err := json.Unmarshal(payload, &normalized); err != nil {
		t.Fatalf("normalise value: %v", err)
	}
	var want any
	if err := json.Unmarshal(MustReadGolden(t, path), &want); err != nil {
		t.Fatalf("unmarshal golden: %v", err)
	}
	return cmp.Diff(want, normalized)
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}
