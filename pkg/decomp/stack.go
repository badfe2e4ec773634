package decomp

import (
	"errors"
	"fmt"
	"strings"
)

var errEmpty = errors.New("pop on empty stack")

// Stack is the simulated operand/locals stack of one subroutine pass. All
// coordinates are absolute bottom-based cell indices; the walker converts
// SP-relative byte operands.
type Stack struct {
	entries []StackEntry
}

func NewStack() *Stack { return &Stack{} }

// Push places e on top of the stack.
func (s *Stack) Push(e StackEntry) {
	s.entries = append(s.entries, e)
}

// Remove pops and returns the top entry.
func (s *Stack) Remove() (StackEntry, error) {
	if len(s.entries) == 0 {
		return nil, errEmpty
	}
	e := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return e, nil
}

// Top returns the top entry without removing it, or nil on an empty stack.
func (s *Stack) Top() StackEntry {
	if len(s.entries) == 0 {
		return nil
	}
	return s.entries[len(s.entries)-1]
}

// Len returns the number of entries.
func (s *Stack) Len() int { return len(s.entries) }

// Slots returns the occupied size in stack cells.
func (s *Stack) Slots() int {
	n := 0
	for _, e := range s.entries {
		n += e.Size()
	}
	return n
}

// Get returns the entry holding the given cell without removing it. When the
// cell starts a member of a composite, the member is returned; a cell in the
// middle of an atomic entry yields the containing entry.
func (s *Stack) Get(slot int) (StackEntry, error) {
	if slot < 0 || slot >= s.Slots() {
		return nil, fmt.Errorf("cell %d out of range (stack holds %d)", slot, s.Slots())
	}
	at := 0
	for _, e := range s.entries {
		if slot < at+e.Size() {
			return memberAt(e, slot-at), nil
		}
		at += e.Size()
	}
	return nil, fmt.Errorf("cell %d out of range", slot)
}

func memberAt(e StackEntry, rel int) StackEntry {
	if rel == 0 {
		return e
	}
	st, ok := e.(*VarStruct)
	if !ok {
		return e
	}
	at := 0
	for _, m := range st.Members {
		if rel < at+m.Size() {
			return memberAt(m, rel-at)
		}
		at += m.Size()
	}
	return e
}

// ensureBoundary makes the given cell index fall between entries, expanding
// composites in place as needed. A boundary inside an atomic entry (a
// vector-typed variable) is an error.
func (s *Stack) ensureBoundary(slot int) error {
	if slot < 0 || slot > s.Slots() {
		return fmt.Errorf("cell %d out of range (stack holds %d)", slot, s.Slots())
	}
	for {
		at := 0
		idx := -1
		for i, e := range s.entries {
			if slot == at {
				return nil
			}
			if slot < at+e.Size() {
				idx = i
				break
			}
			at += e.Size()
		}
		if idx < 0 {
			return nil // slot == Slots()
		}
		st, ok := s.entries[idx].(*VarStruct)
		if !ok {
			return fmt.Errorf("cell %d splits an atomic %d-cell value", slot, s.entries[idx].Size())
		}
		expanded := make([]StackEntry, 0, len(s.entries)+len(st.Members)-1)
		expanded = append(expanded, s.entries[:idx]...)
		expanded = append(expanded, st.Members...)
		expanded = append(expanded, s.entries[idx+1:]...)
		s.entries = expanded
	}
}

// indexAt returns the entry index whose range starts at the given cell.
// Boundaries must already be ensured.
func (s *Stack) indexAt(slot int) int {
	at := 0
	for i, e := range s.entries {
		if at == slot {
			return i
		}
		at += e.Size()
	}
	return len(s.entries)
}

// Structify replaces the count cells starting at start with one composite
// holding the covered entries in order. Grouping an already-grouped exact
// range returns the existing composite.
func (s *Stack) Structify(start, count int) (*VarStruct, error) {
	if count < 1 {
		return nil, fmt.Errorf("structify of %d cells", count)
	}
	if err := s.ensureBoundary(start); err != nil {
		return nil, err
	}
	if err := s.ensureBoundary(start + count); err != nil {
		return nil, err
	}
	i0 := s.indexAt(start)
	i1 := s.indexAt(start + count)
	if i1 == i0+1 {
		if st, ok := s.entries[i0].(*VarStruct); ok {
			return st, nil
		}
	}
	members := make([]StackEntry, i1-i0)
	copy(members, s.entries[i0:i1])
	st := &VarStruct{Members: members}

	joined := make([]StackEntry, 0, len(s.entries)-len(members)+1)
	joined = append(joined, s.entries[:i0]...)
	joined = append(joined, st)
	joined = append(joined, s.entries[i1:]...)
	s.entries = joined
	return st, nil
}

// Destruct removes the top removeSlots cells, preserving the sub-range of
// saveSlots cells starting at the absolute cell saveStart. Composites
// overlapping the saved range are re-expanded so a partial struct teardown
// keeps exactly the described members. Preserved entries slide to the top in
// their original order; a preserved composite dissolves back to its members
// there, which makes Destruct the exact inverse of Structify over the same
// range. Returns kept and removed entries.
func (s *Stack) Destruct(removeSlots, saveStart, saveSlots int) (kept, removed []StackEntry, err error) {
	total := s.Slots()
	regionStart := total - removeSlots
	if regionStart < 0 {
		return nil, nil, errEmpty
	}
	if saveSlots > 0 {
		if saveStart < regionStart || saveStart+saveSlots > total {
			return nil, nil, fmt.Errorf("destruct: saved range [%d,%d) outside removed region [%d,%d)",
				saveStart, saveStart+saveSlots, regionStart, total)
		}
	}
	if err := s.ensureBoundary(regionStart); err != nil {
		return nil, nil, err
	}
	if saveSlots > 0 {
		if err := s.ensureBoundary(saveStart); err != nil {
			return nil, nil, err
		}
		if err := s.ensureBoundary(saveStart + saveSlots); err != nil {
			return nil, nil, err
		}
	}

	i0 := s.indexAt(regionStart)
	at := regionStart
	for _, e := range s.entries[i0:] {
		if saveSlots > 0 && at >= saveStart && at < saveStart+saveSlots {
			kept = append(kept, e)
		} else {
			removed = append(removed, e)
		}
		at += e.Size()
	}
	flat := make([]StackEntry, 0, len(kept))
	for _, e := range kept {
		if st, ok := e.(*VarStruct); ok {
			flat = append(flat, st.Members...)
		} else {
			flat = append(flat, e)
		}
	}
	s.entries = append(s.entries[:i0], flat...)
	return kept, removed, nil
}

// Clone returns an independently mutable copy. Containers are copied;
// Variable identity is shared, so materializing a variable is visible
// through every copy that refers to it.
func (s *Stack) Clone() *Stack {
	c := &Stack{entries: make([]StackEntry, len(s.entries))}
	for i, e := range s.entries {
		c.entries[i] = cloneEntry(e)
	}
	return c
}

func cloneEntry(e StackEntry) StackEntry {
	st, ok := e.(*VarStruct)
	if !ok {
		return e
	}
	members := make([]StackEntry, len(st.Members))
	for i, m := range st.Members {
		members[i] = cloneEntry(m)
	}
	return &VarStruct{Members: members}
}

// ShapeString renders the stack shape, bottom to top, for join-point
// comparison. Shape covers entry kinds and sizes, not variable identity.
func (s *Stack) ShapeString() string {
	var b strings.Builder
	for i, e := range s.entries {
		if i > 0 {
			b.WriteByte(' ')
		}
		writeShape(&b, e)
	}
	return b.String()
}

func writeShape(b *strings.Builder, e StackEntry) {
	switch v := e.(type) {
	case *Variable:
		fmt.Fprintf(b, "v:%s", v.Type)
	case *Const:
		fmt.Fprintf(b, "c:%s", v.Type)
	case *VarStruct:
		b.WriteByte('{')
		for i, m := range v.Members {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeShape(b, m)
		}
		b.WriteByte('}')
	}
}

// Dump renders the stack top-first for error reports.
func (s *Stack) Dump() string {
	if len(s.entries) == 0 {
		return "  (empty)"
	}
	var b strings.Builder
	slot := s.Slots()
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		slot -= e.Size()
		fmt.Fprintf(&b, "  [%3d] %s", slot, describe(e))
		if i > 0 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func describe(e StackEntry) string {
	switch v := e.(type) {
	case *Variable:
		flags := ""
		if v.Placeholder {
			flags = ", placeholder"
		}
		return fmt.Sprintf("%s (%s%s)", v, v.Type, flags)
	case *Const:
		return fmt.Sprintf("%s (%s const)", v, v.Type)
	case *VarStruct:
		return fmt.Sprintf("%s (%d cells)", v, v.Size())
	}
	return e.String()
}
