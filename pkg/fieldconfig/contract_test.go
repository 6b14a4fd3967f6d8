package fieldconfig_test

import (
	"path/filepath"
	"testing"

	"github.com/goliatone/go-formly/pkg/form"
	"github.com/goliatone/go-formly/pkg/testsupport"
)

func TestProfileSessionGolden(t *testing.T) {
	doc := testsupport.LoadDocument(t, filepath.Join("testdata", "profile.yaml"))
	f, rec := testsupport.MustBuild(t, doc)

	details := f.Fields()[1]
	name, age := details.FieldGroup()[0], details.FieldGroup()[1]

	doc.FormState["showDetails"] = true
	if err := f.CheckField(nil); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := f.SetControlValue(name, " Ada "); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if err := f.SetControlValue(age, "36"); err != nil {
		t.Fatalf("set age: %v", err)
	}
	if err := f.Settle(testsupport.Context()); err != nil {
		t.Fatalf("settle: %v", err)
	}

	snapshot, err := f.ModelSnapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	got := map[string]any{
		"model":  snapshot,
		"hidden": rec.Of(form.EventHidden),
		"values": rec.Of(form.EventValueChanges),
	}

	golden := filepath.Join("testdata", "golden", "profile_session.json")
	testsupport.WriteGolden(t, golden, got)
	if diff := testsupport.CompareGoldenJSON(t, golden, got); diff != "" {
		t.Fatalf("golden mismatch (-want +got):\n%s", diff)
	}
}
