// Package pathutil reads and writes dotted paths inside nested
// map[string]any / []any values.
package pathutil

import (
	"fmt"
	"strconv"
)

// CollisionError reports a path segment that cannot be descended because a
// non-container value already occupies it.
type CollisionError struct {
	Path    []string
	Segment string
	Value   any
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("pathutil: cannot descend into %q (holds %T)", e.Segment, e.Value)
}

// Get resolves segments inside root. Numeric segments index into []any.
func Get(root any, segments []string) (any, bool) {
	if root == nil {
		return nil, false
	}
	current := root
	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Set writes value at segments inside root, creating intermediate maps when a
// segment is missing or nil. Existing slices are indexed in place; a
// non-container value in the way yields a *CollisionError.
func Set(root map[string]any, segments []string, value any) error {
	if root == nil {
		return fmt.Errorf("pathutil: root map is nil")
	}
	if len(segments) == 0 {
		return fmt.Errorf("pathutil: empty path")
	}

	var current any = root
	for i, segment := range segments {
		last := i == len(segments)-1
		switch node := current.(type) {
		case map[string]any:
			if last {
				node[segment] = value
				return nil
			}
			next, ok := node[segment]
			if !ok || next == nil {
				child := make(map[string]any)
				node[segment] = child
				current = child
				continue
			}
			if !isContainer(next) {
				return &CollisionError{Path: segments, Segment: segment, Value: next}
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return fmt.Errorf("pathutil: index %q out of range", segment)
			}
			if last {
				node[idx] = value
				return nil
			}
			next := node[idx]
			if next == nil {
				child := make(map[string]any)
				node[idx] = child
				current = child
				continue
			}
			if !isContainer(next) {
				return &CollisionError{Path: segments, Segment: segment, Value: next}
			}
			current = next
		default:
			return &CollisionError{Path: segments, Segment: segment, Value: node}
		}
	}
	return nil
}

// EnsureObject returns the map stored at segments, creating it (and any
// intermediates) when absent.
func EnsureObject(root map[string]any, segments []string) (map[string]any, error) {
	if len(segments) == 0 {
		return root, nil
	}
	if existing, ok := Get(root, segments); ok && existing != nil {
		obj, isMap := existing.(map[string]any)
		if !isMap {
			return nil, &CollisionError{Path: segments, Segment: segments[len(segments)-1], Value: existing}
		}
		return obj, nil
	}
	obj := make(map[string]any)
	if err := Set(root, segments, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// CheckDescend verifies every intermediate segment of path is either absent or
// a container, without mutating root.
func CheckDescend(root map[string]any, segments []string) error {
	if len(segments) < 2 {
		return nil
	}
	var current any = root
	for i := 0; i < len(segments)-1; i++ {
		next, ok := Get(current, segments[i:i+1])
		if !ok || next == nil {
			return nil
		}
		if !isContainer(next) {
			return &CollisionError{Path: segments, Segment: segments[i], Value: next}
		}
		current = next
	}
	return nil
}

func isContainer(value any) bool {
	switch value.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}
