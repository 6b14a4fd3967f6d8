package form

import (
	"fmt"

	"github.com/goliatone/go-formly/pkg/control"
)

// register attaches n's control under its key, creating intermediate groups
// as needed. When the slot already holds another control owned by a visible
// field declared earlier, that control keeps the slot and n stays detached.
func (f *Form) register(n *Field) error {
	group := f.modelGroup(f.node(n.parent))
	last := len(n.key) - 1
	for _, segment := range n.key[:last] {
		next, err := group.Ensure(segment)
		if err != nil {
			return &AttachError{Field: n.id, Key: n.Key(), Reason: err.Error()}
		}
		group = next
	}

	slot := n.key[last]
	occupant, ok := group.Child(slot)
	if ok && occupant == n.control {
		return nil
	}
	if ok {
		owner := f.visibleOwner(occupant)
		if owner != nil && occupant.Kind() != n.control.Kind() {
			return &AttachError{
				Field:  n.id,
				Key:    n.Key(),
				Reason: fmt.Sprintf("slot %q holds a %s control owned by %s", slot, occupant.Kind(), owner.describe()),
			}
		}
		if owner != nil && owner.id < n.id {
			if f.log.IsTrace() {
				f.log.Trace("slot taken", "field", n.describe(), "key", n.Key(), "owner", owner.describe())
			}
			return nil
		}
	}

	if err := group.SetControl(slot, n.control); err != nil {
		return &AttachError{Field: n.id, Key: n.Key(), Reason: err.Error()}
	}
	return nil
}

// detach removes n's control from its slot if it is the current occupant and
// reports whether it did.
func (f *Form) detach(n *Field) bool {
	parent := n.control.Parent()
	if parent == nil {
		return false
	}
	slot := n.key[len(n.key)-1]
	if occupant, ok := parent.Child(slot); ok && occupant == n.control {
		parent.RemoveControl(slot)
		return true
	}
	return false
}

// reassignSlot hands the slot n just left to the first visible field declared
// for the same key.
func (f *Form) reassignSlot(n *Field) error {
	for _, sibling := range f.slotSiblings(n) {
		if sibling.control == nil || sibling.control == n.control || f.IsHidden(sibling) {
			continue
		}
		if f.log.IsTrace() {
			f.log.Trace("slot reassigned", "key", n.Key(), "from", n.describe(), "to", sibling.describe())
		}
		return f.register(sibling)
	}
	return nil
}

// toggle applies the effective visibility of n to its control and recurses
// into the children.
func (f *Form) toggle(n *Field, parentHidden bool) error {
	hidden := parentHidden || n.Hidden()
	if n.control != nil && len(n.key) > 0 {
		if hidden {
			if f.allOwnersHidden(n.control) && f.detach(n) {
				if err := f.reassignSlot(n); err != nil {
					return err
				}
			}
		} else if err := f.register(n); err != nil {
			return err
		}
	}
	for _, id := range append([]FieldID(nil), n.children...) {
		if child := f.node(id); child != nil {
			if err := f.toggle(child, hidden); err != nil {
				return err
			}
		}
	}
	return nil
}

// visibleOwner returns the first effectively visible field bound to c.
func (f *Form) visibleOwner(c control.Control) *Field {
	for _, id := range f.owners[c] {
		if n := f.node(id); n != nil && !f.IsHidden(n) {
			return n
		}
	}
	return nil
}

func (f *Form) allOwnersHidden(c control.Control) bool {
	return f.visibleOwner(c) == nil
}

// primaryOwner is the field that handles emissions of a shared control: the
// first visible owner, or the first owner when all are hidden.
func (f *Form) primaryOwner(c control.Control) *Field {
	if n := f.visibleOwner(c); n != nil {
		return n
	}
	for _, id := range f.owners[c] {
		if n := f.node(id); n != nil {
			return n
		}
	}
	return nil
}

// slotSiblings lists the other fields declared for n's key in the same scope.
func (f *Form) slotSiblings(n *Field) []*Field {
	sk := slotKey{group: f.modelGroup(f.node(n.parent)), key: n.Key()}
	var out []*Field
	for _, id := range f.slots[sk] {
		if id == n.id {
			continue
		}
		if sibling := f.node(id); sibling != nil {
			out = append(out, sibling)
		}
	}
	return out
}
