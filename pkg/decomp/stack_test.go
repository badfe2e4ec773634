package decomp

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xplshn/ncsdec/pkg/ncs"
)

func intVar(id int) *Variable {
	return &Variable{Type: ncs.Int, ID: id, OnStack: true}
}

func intConst(v int32) *Const {
	return &Const{Type: ncs.Int, IntVal: v}
}

func TestStackPushRemove(t *testing.T) {
	s := NewStack()
	if _, err := s.Remove(); err == nil {
		t.Fatal("Remove on empty stack did not fail")
	}
	a, b := intVar(1), intConst(5)
	s.Push(a)
	s.Push(b)
	if s.Len() != 2 || s.Slots() != 2 {
		t.Fatalf("Len/Slots = %d/%d, want 2/2", s.Len(), s.Slots())
	}
	if s.Top() != b {
		t.Error("Top is not the last pushed entry")
	}
	got, err := s.Remove()
	if err != nil || got != b {
		t.Fatalf("Remove = %v, %v; want the const", got, err)
	}
	if s.Top() != a {
		t.Error("second entry not exposed after Remove")
	}
}

func TestStackGet(t *testing.T) {
	s := NewStack()
	v1, v2, v3 := intVar(1), intVar(2), intVar(3)
	s.Push(v1)
	s.Push(&VarStruct{Members: []StackEntry{v2, v3}})

	cases := []struct {
		slot int
		want StackEntry
	}{
		{0, v1},
		{2, v3}, // member starting mid-composite
	}
	for _, tc := range cases {
		got, err := s.Get(tc.slot)
		if err != nil || got != tc.want {
			t.Errorf("Get(%d) = %v, %v; want %v", tc.slot, got, err, tc.want)
		}
	}
	if st, err := s.Get(1); err != nil || st != v2 {
		t.Errorf("Get(1) = %v, %v; want composite head member", st, err)
	}
	if _, err := s.Get(3); err == nil {
		t.Error("Get past the top did not fail")
	}
	if _, err := s.Get(-1); err == nil {
		t.Error("Get below the bottom did not fail")
	}
}

func TestStackGetInsideAtomic(t *testing.T) {
	s := NewStack()
	vec := &Variable{Type: ncs.Vector, ID: 1, OnStack: true}
	s.Push(vec)
	got, err := s.Get(1)
	if err != nil || got != vec {
		t.Errorf("Get inside a vector = %v, %v; want the vector itself", got, err)
	}
}

func TestStructifyRoundTrip(t *testing.T) {
	s := NewStack()
	vars := []*Variable{intVar(1), intVar(2), intVar(3), intVar(4)}
	for _, v := range vars {
		s.Push(v)
	}

	st, err := s.Structify(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 || s.Slots() != 4 {
		t.Fatalf("after structify Len/Slots = %d/%d, want 3/4", s.Len(), s.Slots())
	}
	if len(st.Members) != 2 || st.Members[0] != vars[1] || st.Members[1] != vars[2] {
		t.Fatalf("composite members = %v", st.Members)
	}

	// Regrouping the exact range yields the same composite.
	again, err := s.Structify(1, 2)
	if err != nil || again != st {
		t.Fatalf("regroup = %v, %v; want identical composite", again, err)
	}

	// Destructing the grouped range restores the flat layout.
	kept, removed, err := s.Destruct(3, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("v:int v:int v:int", s.ShapeString()); diff != "" {
		t.Errorf("shape after round trip (-want +got):\n%s", diff)
	}
	if len(kept) != 1 || kept[0] != st {
		t.Errorf("kept = %v, want the composite", kept)
	}
	if len(removed) != 1 || removed[0] != vars[3] {
		t.Errorf("removed = %v, want the old top", removed)
	}
}

func TestStructifyNested(t *testing.T) {
	s := NewStack()
	s.Push(intVar(1))
	s.Push(intVar(2))
	inner, err := s.Structify(0, 2)
	if err != nil {
		t.Fatal(err)
	}
	s.Push(intVar(3))
	outer, err := s.Structify(0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(outer.Members) != 2 || outer.Members[0] != inner {
		t.Fatalf("outer members = %v, want nested composite first", outer.Members)
	}
	if outer.Size() != 3 {
		t.Errorf("outer size = %d, want 3", outer.Size())
	}
}

func TestStructifySplitsAtomicFails(t *testing.T) {
	s := NewStack()
	s.Push(&Variable{Type: ncs.Vector, ID: 1, OnStack: true})
	s.Push(intVar(2))
	if _, err := s.Structify(2, 2); err == nil {
		t.Error("structify through the middle of a vector did not fail")
	}
}

func TestDestructPartialSave(t *testing.T) {
	s := NewStack()
	vars := []*Variable{intVar(1), intVar(2), intVar(3), intVar(4), intVar(5)}
	for _, v := range vars {
		s.Push(v)
	}
	// Remove the top 4 cells, keeping the 2 cells starting at cell 2.
	kept, removed, err := s.Destruct(4, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	wantKept := []StackEntry{vars[2], vars[3]}
	wantRemoved := []StackEntry{vars[1], vars[4]}
	if diff := cmp.Diff(wantKept, kept); diff != "" {
		t.Errorf("kept (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantRemoved, removed); diff != "" {
		t.Errorf("removed (-want +got):\n%s", diff)
	}
	// Preserved entries slid down next to the untouched bottom.
	if s.Slots() != 3 {
		t.Fatalf("Slots = %d, want 3", s.Slots())
	}
	if top := s.Top(); top != vars[3] {
		t.Errorf("top = %v, want %v", top, vars[3])
	}
}

func TestDestructReexpandsComposite(t *testing.T) {
	s := NewStack()
	vars := []*Variable{intVar(1), intVar(2), intVar(3)}
	for _, v := range vars {
		s.Push(v)
	}
	if _, err := s.Structify(0, 3); err != nil {
		t.Fatal(err)
	}
	// Saving one member from inside the composite forces re-expansion.
	kept, _, err := s.Destruct(3, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 1 || kept[0] != vars[1] {
		t.Fatalf("kept = %v, want the middle member", kept)
	}
	if s.ShapeString() != "v:int" {
		t.Errorf("shape = %q, want single int", s.ShapeString())
	}
}

func TestDestructErrors(t *testing.T) {
	s := NewStack()
	s.Push(intVar(1))
	if _, _, err := s.Destruct(2, 0, 0); err == nil {
		t.Error("destruct deeper than the stack did not fail")
	}
	if _, _, err := s.Destruct(1, 0, 5); err == nil {
		t.Error("saved range outside the removed region did not fail")
	}
}

func TestCloneSharesVariables(t *testing.T) {
	s := NewStack()
	v := intVar(1)
	v.Placeholder = true
	s.Push(v)
	s.Push(intConst(9))
	if _, err := s.Structify(0, 2); err != nil {
		t.Fatal(err)
	}

	c := s.Clone()
	if c.ShapeString() != s.ShapeString() {
		t.Fatalf("clone shape %q != original %q", c.ShapeString(), s.ShapeString())
	}

	// Containers are independent.
	if _, err := c.Remove(); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Error("removing from the clone changed the original")
	}

	// Variable identity is shared: materializing through one copy is
	// visible through the other.
	got, err := s.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	EachVariable(got, func(sv *Variable) { sv.Placeholder = false })
	if v.Placeholder {
		t.Error("materialization not visible through the shared pointer")
	}
}

func TestShapeString(t *testing.T) {
	s := NewStack()
	s.Push(intVar(1))
	s.Push(&Const{Type: ncs.Float, FloatVal: 2})
	s.Push(&VarStruct{Members: []StackEntry{intVar(2), intVar(3)}})
	want := "v:int c:float {v:int v:int}"
	if got := s.ShapeString(); got != want {
		t.Errorf("ShapeString = %q, want %q", got, want)
	}
}

func TestDump(t *testing.T) {
	s := NewStack()
	if s.Dump() != "  (empty)" {
		t.Errorf("empty dump = %q", s.Dump())
	}
	v := intVar(7)
	v.Placeholder = true
	s.Push(v)
	d := s.Dump()
	if !strings.Contains(d, "var_7") || !strings.Contains(d, "placeholder") {
		t.Errorf("dump = %q", d)
	}
}

func TestConstFromInst(t *testing.T) {
	in := &ncs.Instruction{Op: ncs.OpCONST, Qual: ncs.QualString, StrVal: "hi"}
	c, err := ConstFromInst(in)
	if err != nil {
		t.Fatal(err)
	}
	if c.Type != ncs.String || c.String() != `"hi"` {
		t.Errorf("const = %v %q", c.Type, c.String())
	}
	in = &ncs.Instruction{Op: ncs.OpCONST, Qual: ncs.QualVV}
	if _, err := ConstFromInst(in); err == nil {
		t.Error("bad qualifier did not fail")
	}
}
