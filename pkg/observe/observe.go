// Package observe provides the change-detection primitive used by the form
// engine. Instead of intercepting property assignments, every write goes
// through Hub.Set, which stores the value on the target and notifies the
// watchers registered for that (target, path) pair in installation order.
package observe

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Target is an object whose nested properties can be observed. Implementations
// must be comparable (typically pointer types) because the hub keys watchers
// by target identity.
type Target interface {
	Lookup(path []string) (any, bool)
	Assign(path []string, value any) error
}

// Change describes one observed transition.
type Change struct {
	Previous    any
	Current     any
	FirstChange bool
}

// Callback receives change notifications. Returning an error stops delivery to
// the remaining watchers of the same path and surfaces the error to the caller
// of Set.
type Callback func(Change) error

type key struct {
	target Target
	path   string
}

type watcher struct {
	cb      Callback
	removed bool
}

// Hub stores watchers keyed by target identity and dotted path. A Hub is not
// safe for concurrent use; the owning form serialises access.
type Hub struct {
	watchers map[key][]*watcher
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{watchers: make(map[key][]*watcher)}
}

// Handle identifies one installed watcher.
type Handle struct {
	hub    *Hub
	key    key
	w      *watcher
	active bool
}

// Observe installs cb on target at path and immediately invokes it once with
// FirstChange set and the current value. Several watchers may be installed on
// the same path; each fires independently.
func (h *Hub) Observe(target Target, path string, cb Callback) (*Handle, error) {
	if h == nil {
		return nil, errors.New("observe: hub is nil")
	}
	if target == nil {
		return nil, errors.New("observe: target is nil")
	}
	if cb == nil {
		return nil, errors.New("observe: callback is nil")
	}
	segments := SplitPath(path)
	if len(segments) == 0 {
		return nil, fmt.Errorf("observe: empty path")
	}

	k := key{target: target, path: strings.Join(segments, ".")}
	w := &watcher{cb: cb}
	h.watchers[k] = append(h.watchers[k], w)

	handle := &Handle{hub: h, key: k, w: w, active: true}
	current, _ := target.Lookup(segments)
	if err := cb(Change{Current: current, FirstChange: true}); err != nil {
		return handle, err
	}
	return handle, nil
}

// Set assigns value at path on target. Watchers are notified only when the
// stored value actually changes.
func (h *Hub) Set(target Target, path string, value any) error {
	if target == nil {
		return errors.New("observe: target is nil")
	}
	segments := SplitPath(path)
	if len(segments) == 0 {
		return fmt.Errorf("observe: empty path")
	}

	previous, _ := target.Lookup(segments)
	if Equal(previous, value) {
		return nil
	}
	if err := target.Assign(segments, value); err != nil {
		return fmt.Errorf("observe: assign %s: %w", path, err)
	}
	if h == nil {
		return nil
	}

	k := key{target: target, path: strings.Join(segments, ".")}
	watchers := append([]*watcher(nil), h.watchers[k]...)
	for _, w := range watchers {
		if w.removed {
			continue
		}
		if err := w.cb(Change{Previous: previous, Current: value}); err != nil {
			return err
		}
	}
	return nil
}

// Watching reports how many watchers are installed for target at path.
func (h *Hub) Watching(target Target, path string) int {
	if h == nil {
		return 0
	}
	return len(h.watchers[key{target: target, path: strings.Join(SplitPath(path), ".")}])
}

// Release removes every watcher installed on target.
func (h *Hub) Release(target Target) {
	if h == nil {
		return
	}
	for k, list := range h.watchers {
		if k.target != target {
			continue
		}
		for _, w := range list {
			w.removed = true
		}
		delete(h.watchers, k)
	}
}

// SetValue writes value through the handle's path without notifying watchers.
func (hd *Handle) SetValue(value any) error {
	if hd == nil {
		return nil
	}
	return hd.key.target.Assign(SplitPath(hd.key.path), value)
}

// Unsubscribe removes the watcher. Calling it more than once is a no-op.
func (hd *Handle) Unsubscribe() {
	if hd == nil || !hd.active {
		return
	}
	hd.active = false
	hd.w.removed = true

	list := hd.hub.watchers[hd.key]
	for i, w := range list {
		if w == hd.w {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(hd.hub.watchers, hd.key)
		return
	}
	hd.hub.watchers[hd.key] = list
}

// SplitPath turns a dotted path into trimmed, non-empty segments.
func SplitPath(path string) []string {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// Equal compares two observed values. Scalars, pointers and channels use ==;
// everything else, including structs whose fields hold maps, goes through
// reflect.DeepEqual.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	switch ta.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
