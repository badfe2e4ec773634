package ncs

import (
	"fmt"
	"strconv"
)

// Instruction is one decoded NCS instruction.
//
// Operand fields are populated per opcode: Offset holds the SP/BP-relative
// byte offset of copy and pointer-move instructions and the relative
// displacement of jumps; Size holds the copy/compare size in bytes, or the
// total size removed by DESTRUCT.
type Instruction struct {
	PC   uint32 // byte offset of this instruction in the script
	Len  uint32 // encoded length in bytes
	Op   Op
	Qual Qual

	Offset int32
	Size   uint16

	// DESTRUCT only: byte range preserved inside the removed region.
	SaveStart int16
	SaveSize  uint16

	// ACTION only.
	Routine  uint16
	ArgCount uint8

	// STORE_STATE only: saved BP and SP region sizes.
	StateBP int32
	StateSP int32

	// CONST payload, selected by Qual.
	IntVal   int32
	FloatVal float32
	StrVal   string
	ObjVal   uint32
}

// Target returns the absolute PC of a jump destination.
func (in *Instruction) Target() uint32 {
	return uint32(int64(in.PC) + int64(in.Offset))
}

// ConstString renders the literal carried by a CONST instruction.
func (in *Instruction) ConstString() string {
	switch in.Qual {
	case QualInt:
		return strconv.FormatInt(int64(in.IntVal), 10)
	case QualFloat:
		return strconv.FormatFloat(float64(in.FloatVal), 'g', -1, 32)
	case QualString:
		return strconv.Quote(in.StrVal)
	case QualObject:
		return fmt.Sprintf("object(%#x)", in.ObjVal)
	}
	return "?"
}

// String renders one disassembly line.
func (in *Instruction) String() string {
	head := fmt.Sprintf("%08x  %-14s", in.PC, opQualName(in.Op, in.Qual))
	switch in.Op {
	case OpCPDOWNSP, OpCPTOPSP, OpCPDOWNBP, OpCPTOPBP:
		return fmt.Sprintf("%s %d, %d", head, in.Offset, in.Size)
	case OpCONST:
		return fmt.Sprintf("%s %s", head, in.ConstString())
	case OpACTION:
		return fmt.Sprintf("%s %d, %d", head, in.Routine, in.ArgCount)
	case OpMOVSP, OpDECISP, OpINCISP, OpDECIBP, OpINCIBP:
		return fmt.Sprintf("%s %d", head, in.Offset)
	case OpJMP, OpJSR, OpJZ, OpJNZ:
		return fmt.Sprintf("%s %08x", head, in.Target())
	case OpDESTRUCT:
		return fmt.Sprintf("%s %d, %d, %d", head, in.Size, in.SaveStart, in.SaveSize)
	case OpEQUAL, OpNEQUAL:
		if in.Qual == QualTT {
			return fmt.Sprintf("%s %d", head, in.Size)
		}
	case OpSTORE_STATE:
		return fmt.Sprintf("%s %d, %d", head, in.StateBP, in.StateSP)
	}
	return head
}

func opQualName(op Op, q Qual) string {
	if s := q.String(); s != "" {
		return op.String() + s
	}
	return op.String()
}

// Script is one decoded NCS file.
type Script struct {
	Name         string
	Size         uint32 // total size declared by the header
	Instructions []*Instruction
}

// At returns the instruction starting at the given PC, or nil.
func (s *Script) At(pc uint32) *Instruction {
	for _, in := range s.Instructions {
		if in.PC == pc {
			return in
		}
	}
	return nil
}
