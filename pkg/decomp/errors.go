package decomp

import (
	"fmt"

	"github.com/xplshn/ncsdec/pkg/ncs"
)

// StackUnderflowError reports a pop on an empty (or too-shallow) simulated
// stack. It indicates a bytecode or modeling defect; no local recovery is
// possible because every later structify/destruct offset would be wrong.
type StackUnderflowError struct {
	Op ncs.Op
	PC uint32
}

func (e *StackUnderflowError) Error() string {
	return fmt.Sprintf("stack underflow at %#x (%s)", e.PC, e.Op)
}

// InconsistentFinalStackError reports a residual stack at the end of a
// subroutine that does not match its return convention.
type InconsistentFinalStackError struct {
	Sub    string
	Return string
	Dump   string
}

func (e *InconsistentFinalStackError) Error() string {
	return fmt.Sprintf("%s: inconsistent stack at return (%s return); residual:\n%s",
		e.Sub, e.Return, e.Dump)
}

// UnsupportedOpcodeError reports a CFG node the walker has no handler for.
type UnsupportedOpcodeError struct {
	Op ncs.Op
	PC uint32
}

func (e *UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("unsupported opcode %s at %#x", e.Op, e.PC)
}
