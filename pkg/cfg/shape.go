package cfg

import (
	"github.com/xplshn/ncsdec/pkg/actions"
	"github.com/xplshn/ncsdec/pkg/ncs"
)

// detectShape infers a subroutine's parameter slot count and return kind
// from how its body reaches below its own frame.
//
// The simulation is shape-only: a linear scan tracking the net stack depth
// in slots. Reads (CPTOPSP) below depth zero are parameter accesses; writes
// (CPDOWNSP) below the deepest parameter are return-slot writes. JSR net
// effects are unknown at this point and treated as zero, which is accurate
// for the compiler's calling convention (the callee consumes its own
// arguments).
func detectShape(sub *Subroutine, tbl *actions.Table) {
	depth := 0
	lowRead := 0
	lowWrite := 0
	retSlots := 0

	for _, n := range sub.Nodes {
		in := n.Inst
		switch in.Op {
		case ncs.OpCPTOPSP:
			at := depth + int(in.Offset)/ncs.CellSize
			if at < lowRead {
				lowRead = at
			}
		case ncs.OpCPDOWNSP:
			at := depth + int(in.Offset)/ncs.CellSize
			if at < lowWrite {
				lowWrite = at
				retSlots = int(in.Size) / ncs.CellSize
			}
		}
		depth += slotEffect(in, tbl)
		if depth < 0 {
			depth = 0 // shape scan only; the walker diagnoses real underflow
		}
	}

	sub.ParamSlots = -lowRead

	// A copy-down reaching deeper than any parameter read lands in the
	// caller-reserved return slot.
	if lowWrite < lowRead {
		if retSlots >= 3 {
			sub.Return = ReturnVector
		} else {
			sub.Return = ReturnScalar
		}
	}
}

// slotEffect returns the net stack effect of one instruction in slots.
func slotEffect(in *ncs.Instruction, tbl *actions.Table) int {
	switch in.Op {
	case ncs.OpRSADD, ncs.OpCONST:
		return 1
	case ncs.OpCPTOPSP, ncs.OpCPTOPBP:
		return int(in.Size) / ncs.CellSize
	case ncs.OpACTION:
		ret := 0
		params := int(in.ArgCount)
		if sig, ok := tbl.Lookup(in.Routine); ok {
			params = sig.Params
			ret = sig.Return.SlotSize()
			if sig.Return == ncs.Void {
				ret = 0
			}
		}
		return ret - params
	case ncs.OpLOGAND, ncs.OpLOGOR, ncs.OpINCOR, ncs.OpEXCOR, ncs.OpBOOLAND,
		ncs.OpGEQ, ncs.OpGT, ncs.OpLT, ncs.OpLEQ,
		ncs.OpSHLEFT, ncs.OpSHRIGHT, ncs.OpUSHRIGHT, ncs.OpMOD:
		return -1
	case ncs.OpEQUAL, ncs.OpNEQUAL:
		if in.Qual == ncs.QualTT {
			return 1 - 2*int(in.Size)/ncs.CellSize
		}
		l, r, _ := in.Qual.OperandTypes()
		return 1 - l.SlotSize() - r.SlotSize()
	case ncs.OpADD, ncs.OpSUB, ncs.OpMUL, ncs.OpDIV:
		l, r, _ := in.Qual.OperandTypes()
		return in.Qual.ArithmeticResult().SlotSize() - l.SlotSize() - r.SlotSize()
	case ncs.OpMOVSP:
		return int(in.Offset) / ncs.CellSize
	case ncs.OpJZ, ncs.OpJNZ:
		return -1
	case ncs.OpDESTRUCT:
		return (int(in.SaveSize) - int(in.Size)) / ncs.CellSize
	}
	return 0
}
