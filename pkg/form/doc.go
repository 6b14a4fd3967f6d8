// Package form is the reactivity engine behind declarative field configs. It
// builds a tree of fields from []FieldConfig, keeps a control tree and a
// shared model object in sync with it, and recomputes derived field state
// (hidden flags, expression properties, disabled state) whenever CheckField
// runs.
//
// A Form is owned by one goroutine. Work that originates elsewhere (debounce
// timers, streams fed from other goroutines) is handed over with Post and runs
// when the owner calls Flush, Settle or Run.
package form
