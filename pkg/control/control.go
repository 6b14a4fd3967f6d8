// Package control implements the attachable value holders bound to form
// fields. An Input holds a single value; a Group holds named child controls
// and exposes their values as a map. Controls are detached from a group
// without being destroyed, so a hidden field keeps its value and can be
// re-attached later.
package control

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-formly/pkg/observe"
)

// Kind distinguishes leaf controls from groups.
type Kind int

const (
	KindInput Kind = iota
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	default:
		return "input"
	}
}

// Control is the common surface of Input and Group.
type Control interface {
	Kind() Kind
	Value() any
	SetValue(value any, opts ...SetOption)
	Parent() *Group
	Disabled() bool
	SetDisabled(disabled bool)
	setParent(*Group)
}

type setOptions struct {
	emitEvent bool
}

// SetOption tweaks SetValue behaviour.
type SetOption func(*setOptions)

// WithoutEvent suppresses value-change notifications for the write.
func WithoutEvent() SetOption {
	return func(o *setOptions) {
		o.emitEvent = false
	}
}

func resolveSetOptions(opts []SetOption) setOptions {
	out := setOptions{emitEvent: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&out)
		}
	}
	return out
}

// Input is a leaf control.
type Input struct {
	value    any
	parent   *Group
	disabled bool
	nextID   int
	subs     map[int]func(any)
	order    []int
}

// NewInput constructs an Input seeded with value.
func NewInput(value any) *Input {
	return &Input{value: value, subs: make(map[int]func(any))}
}

func (c *Input) Kind() Kind { return KindInput }

func (c *Input) Value() any { return c.value }

// SetValue stores value and, unless WithoutEvent is supplied, notifies
// subscribers in subscription order.
func (c *Input) SetValue(value any, opts ...SetOption) {
	o := resolveSetOptions(opts)
	c.value = value
	if !o.emitEvent {
		return
	}
	for _, id := range append([]int(nil), c.order...) {
		if fn, ok := c.subs[id]; ok {
			fn(value)
		}
	}
}

// Subscribe registers fn for value emissions and returns a cancel function.
func (c *Input) Subscribe(fn func(any)) func() {
	if fn == nil {
		return func() {}
	}
	if c.subs == nil {
		c.subs = make(map[int]func(any))
	}
	c.nextID++
	id := c.nextID
	c.subs[id] = fn
	c.order = append(c.order, id)
	return func() {
		if _, ok := c.subs[id]; !ok {
			return
		}
		delete(c.subs, id)
		for i, existing := range c.order {
			if existing == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

// Subscribers reports the number of active value subscriptions.
func (c *Input) Subscribers() int { return len(c.subs) }

func (c *Input) Parent() *Group { return c.parent }

func (c *Input) setParent(g *Group) { c.parent = g }

func (c *Input) Disabled() bool { return c.disabled }

func (c *Input) SetDisabled(disabled bool) { c.disabled = disabled }

// Group holds named child controls.
type Group struct {
	children map[string]Control
	parent   *Group
	disabled bool
}

// NewGroup constructs an empty Group.
func NewGroup() *Group {
	return &Group{children: make(map[string]Control)}
}

func (g *Group) Kind() Kind { return KindGroup }

// Value returns a fresh map of the attached children's values.
func (g *Group) Value() any {
	out := make(map[string]any, len(g.children))
	for name, child := range g.children {
		out[name] = child.Value()
	}
	return out
}

// SetValue patches attached children from a map value. Keys without a
// matching child are ignored.
func (g *Group) SetValue(value any, opts ...SetOption) {
	values, ok := value.(map[string]any)
	if !ok {
		return
	}
	for _, name := range g.Keys() {
		if v, present := values[name]; present {
			g.children[name].SetValue(v, opts...)
		}
	}
}

func (g *Group) Parent() *Group { return g.parent }

func (g *Group) setParent(p *Group) { g.parent = p }

func (g *Group) Disabled() bool { return g.disabled }

// SetDisabled marks the group and its attached children.
func (g *Group) SetDisabled(disabled bool) {
	g.disabled = disabled
	for _, child := range g.children {
		child.SetDisabled(disabled)
	}
}

// Keys lists attached child names in sorted order.
func (g *Group) Keys() []string {
	keys := make([]string, 0, len(g.children))
	for name := range g.children {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// Child returns the direct child attached under name.
func (g *Group) Child(name string) (Control, bool) {
	c, ok := g.children[name]
	return c, ok
}

// Get resolves a path of child names (or a single dotted string) from this
// group. It returns nil when any segment is missing.
func (g *Group) Get(path ...string) Control {
	if len(path) == 1 && strings.Contains(path[0], ".") {
		path = observe.SplitPath(path[0])
	}
	var current Control = g
	for _, segment := range path {
		group, ok := current.(*Group)
		if !ok {
			return nil
		}
		next, exists := group.children[segment]
		if !exists {
			return nil
		}
		current = next
	}
	return current
}

// SetControl attaches c under name, replacing (and detaching) any previous
// occupant.
func (g *Group) SetControl(name string, c Control) error {
	if c == nil {
		return fmt.Errorf("control: nil control for %q", name)
	}
	if existing, ok := g.children[name]; ok && existing != c {
		existing.setParent(nil)
	}
	if prev := c.Parent(); prev != nil && prev != g {
		prev.removeChild(c)
	}
	g.children[name] = c
	c.setParent(g)
	return nil
}

// RemoveControl detaches the child stored under name.
func (g *Group) RemoveControl(name string) {
	if existing, ok := g.children[name]; ok {
		existing.setParent(nil)
		delete(g.children, name)
	}
}

func (g *Group) removeChild(c Control) {
	for name, child := range g.children {
		if child == c {
			delete(g.children, name)
			return
		}
	}
}

// Ensure returns the child group at name, creating it when absent. A non-group
// occupant is reported as an error.
func (g *Group) Ensure(name string) (*Group, error) {
	if existing, ok := g.children[name]; ok {
		group, isGroup := existing.(*Group)
		if !isGroup {
			return nil, fmt.Errorf("control: slot %q holds an %s control", name, existing.Kind())
		}
		return group, nil
	}
	child := NewGroup()
	g.children[name] = child
	child.setParent(g)
	return child, nil
}
