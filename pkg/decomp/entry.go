// Package decomp implements the stack-reconstruction pass: it simulates the
// operand/locals stack over a subroutine's control-flow graph and hands
// resolved, typed operations to an emitter.
package decomp

import (
	"fmt"
	"strings"

	"github.com/xplshn/ncsdec/pkg/ncs"
)

// StackEntry is a value on the simulated stack.
type StackEntry interface {
	// Size is the number of 4-byte stack cells the entry occupies.
	Size() int
	String() string
	entry()
}

// Variable is a named stack slot.
type Variable struct {
	Type ncs.DataType
	ID   int

	// Placeholder is set when the slot was reserved (RSADD) and no concrete
	// value has been copied into it yet. The emitter must not reference a
	// placeholder until it is materialized.
	Placeholder bool

	// OnStack distinguishes a slot still physically resident from one
	// already logically consumed by the emitter.
	OnStack bool
}

func (v *Variable) Size() int {
	return v.Type.SlotSize()
}

func (v *Variable) String() string {
	return fmt.Sprintf("var_%d", v.ID)
}

func (v *Variable) entry() {}

// Const is a literal pushed by a CONST instruction. Always one cell.
type Const struct {
	Type     ncs.DataType
	IntVal   int32
	FloatVal float32
	StrVal   string
	ObjVal   uint32
}

func (c *Const) Size() int { return 1 }

func (c *Const) String() string {
	switch c.Type {
	case ncs.Int:
		return fmt.Sprintf("%d", c.IntVal)
	case ncs.Float:
		return fmt.Sprintf("%g", c.FloatVal)
	case ncs.String:
		return fmt.Sprintf("%q", c.StrVal)
	case ncs.Object:
		return fmt.Sprintf("object(%#x)", c.ObjVal)
	}
	return "const?"
}

func (c *Const) entry() {}

// ConstFromInst builds the entry for a decoded CONST instruction.
func ConstFromInst(in *ncs.Instruction) (*Const, error) {
	t, ok := in.Qual.ScalarType()
	if !ok {
		return nil, fmt.Errorf("CONST at %#x: bad type qualifier %#02x", in.PC, byte(in.Qual))
	}
	return &Const{
		Type:     t,
		IntVal:   in.IntVal,
		FloatVal: in.FloatVal,
		StrVal:   in.StrVal,
		ObjVal:   in.ObjVal,
	}, nil
}

// VarStruct groups contiguous stack cells into one composite value
// (a vector or a script struct). Produced by Stack.Structify.
type VarStruct struct {
	Members []StackEntry
}

func (s *VarStruct) Size() int {
	n := 0
	for _, m := range s.Members {
		n += m.Size()
	}
	return n
}

func (s *VarStruct) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, m := range s.Members {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(m.String())
	}
	b.WriteByte('}')
	return b.String()
}

func (s *VarStruct) entry() {}

// EachVariable calls fn for every Variable inside e, descending into
// composites.
func EachVariable(e StackEntry, fn func(*Variable)) {
	switch v := e.(type) {
	case *Variable:
		fn(v)
	case *VarStruct:
		for _, m := range v.Members {
			EachVariable(m, fn)
		}
	}
}
