package decomp

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/xplshn/ncsdec/pkg/actions"
	"github.com/xplshn/ncsdec/pkg/cfg"
	"github.com/xplshn/ncsdec/pkg/ncs"
)

var log = commonlog.GetLogger("ncsdec.walker")

// Walker drives one stack-reconstruction pass: a single pruned depth-first
// traversal of a subroutine's CFG, threading one mutable stack plus an
// optional deferred MOVSP backup, dispatching one handler per opcode family.
type Walker struct {
	sub     *cfg.Subroutine
	an      Analyzer
	tbl     *actions.Table
	em      Emitter
	stack   *Stack
	backup  *Stack // pre-drop shape saved by MOVSP, consumed by the next JMP
	globals *Stack // caller-frame stack addressed by BP-relative opcodes
	varID   int
	warn    func(pc uint32, format string, args ...any)
}

// NewWalker prepares a pass over one subroutine.
func NewWalker(sub *cfg.Subroutine, an Analyzer, tbl *actions.Table, em Emitter) *Walker {
	return &Walker{
		sub:   sub,
		an:    an,
		tbl:   tbl,
		em:    em,
		stack: NewStack(),
		warn:  func(uint32, string, ...any) {},
	}
}

// SetGlobals installs the shared caller-frame stack used by BP-relative
// copies. The driver threads it across subroutine passes.
func (w *Walker) SetGlobals(g *Stack) { w.globals = g }

// Globals returns the caller-frame stack, which SAVEBP may have replaced.
func (w *Walker) Globals() *Stack { return w.globals }

// OnWarning installs a diagnostic sink for recoverable oddities.
func (w *Walker) OnWarning(fn func(pc uint32, format string, args ...any)) {
	if fn != nil {
		w.warn = fn
	}
}

// Run visits every node of the subroutine in pruned depth-first order. The
// first error terminates this subroutine's pass only.
func (w *Walker) Run() error {
	log.Debugf("%s: %d nodes, %d parameter cells, %s return",
		w.sub.Name(), len(w.sub.Order), w.sub.ParamSlots, w.sub.Return)
	// Parameters occupy the bottom of the frame; the callee drops them
	// itself before RETN. Their scalar types are not recoverable from the
	// access pattern alone.
	for i := 0; i < w.sub.ParamSlots; i++ {
		w.stack.Push(w.newVar(ncs.Int))
	}
	for _, n := range w.sub.Order {
		if err := w.visit(n); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) visit(n *cfg.Node) error {
	if s := w.an.Stack(n); s != nil {
		// A stored snapshot replaces the live stack wholesale, so every
		// path into this join point continues from the same shape.
		log.Debugf("%s: restore snapshot at %#x (%d cells)", w.sub.Name(), n.Inst.PC, s.Slots())
		w.stack = s
	}
	if origin := w.an.RemoveLastOrigin(n); origin != nil {
		w.em.ResolveOrigin(n, origin)
	}
	if w.an.DeadCode(n) {
		// A dead jump still proposes its current shape to the target; a
		// recording from a live path supersedes it.
		if in := n.Inst; in.Op.IsJump() && in.Op != ncs.OpJSR && n.Target != nil && n.Target.Sub == w.sub {
			w.an.SetStack(n.Target, w.stack, true)
		}
		w.em.Dead(n)
		return nil
	}
	if !w.an.ProcessCode(n) {
		return nil
	}

	in := n.Inst
	switch in.Op {
	case ncs.OpRSADD:
		return w.reserve(n)
	case ncs.OpCONST:
		return w.pushConst(n)
	case ncs.OpCPDOWNSP:
		return w.copyDown(n, w.stack)
	case ncs.OpCPDOWNBP:
		return w.copyDown(n, w.globals)
	case ncs.OpCPTOPSP:
		return w.copyTop(n, w.stack)
	case ncs.OpCPTOPBP:
		return w.copyTop(n, w.globals)
	case ncs.OpACTION:
		return w.action(n)
	case ncs.OpLOGAND, ncs.OpLOGOR:
		return w.logical(n)
	case ncs.OpEQUAL, ncs.OpNEQUAL, ncs.OpGEQ, ncs.OpGT, ncs.OpLT, ncs.OpLEQ,
		ncs.OpINCOR, ncs.OpEXCOR, ncs.OpBOOLAND,
		ncs.OpSHLEFT, ncs.OpSHRIGHT, ncs.OpUSHRIGHT,
		ncs.OpADD, ncs.OpSUB, ncs.OpMUL, ncs.OpDIV, ncs.OpMOD:
		return w.binary(n)
	case ncs.OpNEG, ncs.OpCOMP, ncs.OpNOT:
		return w.unary(n)
	case ncs.OpMOVSP:
		return w.moveSP(n)
	case ncs.OpJZ, ncs.OpJNZ:
		return w.condJump(n)
	case ncs.OpJMP:
		return w.jump(n)
	case ncs.OpJSR:
		return w.call(n)
	case ncs.OpDESTRUCT:
		return w.destruct(n)
	case ncs.OpDECISP, ncs.OpINCISP:
		return w.crement(n, w.stack)
	case ncs.OpDECIBP, ncs.OpINCIBP:
		return w.crement(n, w.globals)
	case ncs.OpSTORE_STATE, ncs.OpSTORE_STATEALL:
		w.backup = nil
		w.em.StoreState(n)
		return nil
	case ncs.OpRETN:
		return w.ret(n)
	case ncs.OpSAVEBP:
		w.globals = w.stack.Clone()
		w.em.Generic(n)
		return nil
	case ncs.OpRESTOREBP, ncs.OpNOP:
		w.em.Generic(n)
		return nil
	}
	return &UnsupportedOpcodeError{Op: in.Op, PC: in.PC}
}

func (w *Walker) newVar(t ncs.DataType) *Variable {
	w.varID++
	return &Variable{Type: t, ID: w.varID, OnStack: true}
}

func (w *Walker) underflow(n *cfg.Node) error {
	return &StackUnderflowError{Op: n.Inst.Op, PC: n.Inst.PC}
}

func (w *Walker) reserve(n *cfg.Node) error {
	t, ok := n.Inst.Qual.ScalarType()
	if !ok {
		return &UnsupportedOpcodeError{Op: n.Inst.Op, PC: n.Inst.PC}
	}
	v := w.newVar(t)
	v.Placeholder = true
	w.stack.Push(v)
	w.em.Reserve(n, v)
	return nil
}

func (w *Walker) pushConst(n *cfg.Node) error {
	c, err := ConstFromInst(n.Inst)
	if err != nil {
		return err
	}
	w.stack.Push(c)
	w.em.PushConst(n, c)
	return nil
}

// copyDown writes the top of the local stack into an addressed span of frame
// (the local frame for CPDOWNSP, the caller frame for CPDOWNBP). Multi-cell
// targets are structified first so the assignment is atomic.
func (w *Walker) copyDown(n *cfg.Node, frame *Stack) error {
	in := n.Inst
	count := int(in.Size) / ncs.CellSize
	src, err := w.topSpan(n, count)
	if err != nil {
		return err
	}

	if frame == nil {
		return fmt.Errorf("%s at %#x: no caller frame", in.Op, in.PC)
	}
	start := frame.Slots() + int(in.Offset)/ncs.CellSize
	if start < 0 && frame == w.stack {
		// The write lands below this frame: the caller-reserved return
		// slot. The local stack is untouched.
		w.em.AssignReturn(n, src)
		return nil
	}

	var dst StackEntry
	if count > 1 {
		dst, err = frame.Structify(start, count)
	} else {
		dst, err = frame.Get(start)
	}
	if err != nil {
		return fmt.Errorf("%s at %#x: %w", in.Op, in.PC, err)
	}
	EachVariable(dst, func(v *Variable) { v.Placeholder = false })
	w.em.Assign(n, dst, src)
	return nil
}

// copyTop duplicates an addressed span onto the top of the local stack.
// Multi-cell sources are structified and pushed as one composite; a
// single-cell source is pushed as a shallow duplicate.
func (w *Walker) copyTop(n *cfg.Node, frame *Stack) error {
	in := n.Inst
	if frame == nil {
		return fmt.Errorf("%s at %#x: no caller frame", in.Op, in.PC)
	}
	count := int(in.Size) / ncs.CellSize
	start := frame.Slots() + int(in.Offset)/ncs.CellSize

	var e StackEntry
	var err error
	if count > 1 {
		e, err = frame.Structify(start, count)
	} else {
		e, err = frame.Get(start)
	}
	if err != nil {
		return fmt.Errorf("%s at %#x: %w", in.Op, in.PC, err)
	}
	w.stack.Push(e)
	w.em.Copy(n, e)
	return nil
}

func (w *Walker) action(n *cfg.Node) error {
	in := n.Inst
	sig, ok := w.tbl.Lookup(in.Routine)
	if !ok {
		w.warn(in.PC, "no signature for action %d; assuming %d cells and an int result",
			in.Routine, in.ArgCount)
		sig = actions.Signature{
			ID:     in.Routine,
			Name:   fmt.Sprintf("action_%d", in.Routine),
			Params: int(in.ArgCount),
			Return: ncs.Int,
		}
	}

	args, err := w.popCells(n, sig.Params)
	if err != nil {
		return err
	}

	switch {
	case sig.Return == ncs.Void:
		w.em.Action(n, sig, args, nil)
	case sig.ReturnsVector():
		// The raw effect reserves three scalar cells; the resolved value
		// is one composite.
		for i := 0; i < 3; i++ {
			f := w.newVar(ncs.Float)
			f.Placeholder = true
			w.stack.Push(f)
		}
		st, err := w.stack.Structify(w.stack.Slots()-3, 3)
		if err != nil {
			return err
		}
		w.em.Action(n, sig, args, st)
	default:
		v := w.newVar(sig.Return)
		v.Placeholder = true
		w.stack.Push(v)
		w.em.Action(n, sig, args, v)
	}
	return nil
}

func (w *Walker) logical(n *cfg.Node) error {
	right, err := w.popOperand(n, 1)
	if err != nil {
		return err
	}
	left, err := w.popOperand(n, 1)
	if err != nil {
		return err
	}
	v := w.newVar(ncs.Int)
	w.stack.Push(v)
	w.em.Binary(n, v, left, right)
	return nil
}

func (w *Walker) binary(n *cfg.Node) error {
	in := n.Inst
	leftSlots, rightSlots, resType := operandShape(in)
	right, err := w.popOperand(n, rightSlots)
	if err != nil {
		return err
	}
	left, err := w.popOperand(n, leftSlots)
	if err != nil {
		return err
	}
	v := w.newVar(resType)
	w.stack.Push(v)
	w.em.Binary(n, v, left, right)
	return nil
}

// operandShape returns the operand cell counts and result type of a binary
// opcode. Equality on composites consumes the declared sizes but always
// yields a one-cell boolean; vector arithmetic follows the qualifier.
func operandShape(in *ncs.Instruction) (left, right int, res ncs.DataType) {
	switch in.Op {
	case ncs.OpEQUAL, ncs.OpNEQUAL:
		if in.Qual == ncs.QualTT {
			n := int(in.Size) / ncs.CellSize
			return n, n, ncs.Int
		}
		l, r, _ := in.Qual.OperandTypes()
		return l.SlotSize(), r.SlotSize(), ncs.Int
	case ncs.OpGEQ, ncs.OpGT, ncs.OpLT, ncs.OpLEQ:
		return 1, 1, ncs.Int
	case ncs.OpADD, ncs.OpSUB, ncs.OpMUL, ncs.OpDIV:
		l, r, _ := in.Qual.OperandTypes()
		return l.SlotSize(), r.SlotSize(), in.Qual.ArithmeticResult()
	}
	// Shifts, bitwise ops, MOD: one cell in, one cell in, int out.
	return 1, 1, ncs.Int
}

func (w *Walker) unary(n *cfg.Node) error {
	operand, err := w.popOperand(n, 1)
	if err != nil {
		return err
	}
	t := ncs.Int
	if n.Inst.Op == ncs.OpNEG {
		if st, ok := n.Inst.Qual.ScalarType(); ok {
			t = st
		}
	}
	v := w.newVar(t)
	w.stack.Push(v)
	w.em.Unary(n, v, operand)
	return nil
}

// moveSP drops the declared number of cells. The pre-drop stack is kept as
// a resumable backup: an outgoing unconditional jump may need the pre-drop
// shape at its destination.
func (w *Walker) moveSP(n *cfg.Node) error {
	in := n.Inst
	drop := -int(in.Offset) / ncs.CellSize
	if drop < 0 {
		return fmt.Errorf("MOVSP at %#x: positive offset %d", in.PC, in.Offset)
	}
	w.backup = w.stack.Clone()

	var removed []*Variable
	for drop > 0 {
		top := w.stack.Top()
		if top == nil {
			return w.underflow(n)
		}
		if top.Size() > drop {
			if err := w.stack.ensureBoundary(w.stack.Slots() - drop); err != nil {
				return fmt.Errorf("MOVSP at %#x: %w", in.PC, err)
			}
			continue
		}
		e, err := w.stack.Remove()
		if err != nil {
			return w.underflow(n)
		}
		drop -= e.Size()
		EachVariable(e, func(v *Variable) {
			switch {
			case v.Placeholder:
				v.OnStack = false
				w.em.PlaceholderRemoved(v)
			case v.OnStack:
				v.OnStack = false
				removed = append(removed, v)
			}
		})
	}
	if len(removed) > 0 {
		w.em.RemoveLocals(removed)
	}
	w.em.Move(n)
	return nil
}

// A jump out of the subroutine cannot be modeled: the pruned traversal
// never visits the target, and the analysis tracks no data for it.
func (w *Walker) localTarget(n *cfg.Node) error {
	if n.Target != nil && n.Target.Sub != w.sub {
		return fmt.Errorf("%s at %#x: target %#x lies outside %s", n.Inst.Op, n.Inst.PC, n.Inst.Target(), w.sub.Name())
	}
	return nil
}

func (w *Walker) condJump(n *cfg.Node) error {
	if err := w.localTarget(n); err != nil {
		return err
	}
	cond, err := w.popOperand(n, 1)
	if err != nil {
		return err
	}
	if w.an.IsOrTail(n) {
		// Compiled tail of a short-circuit OR: emitted differently and the
		// destination keeps whatever shape it already has.
		w.em.OrJump(n, cond)
		return nil
	}
	if n.Target != nil {
		// Only live nodes reach the handlers; dead jumps record their
		// shape in visit.
		w.an.SetStack(n.Target, w.stack, false)
	}
	w.em.CondJump(n, cond)
	return nil
}

func (w *Walker) jump(n *cfg.Node) error {
	if err := w.localTarget(n); err != nil {
		return err
	}
	w.em.Jump(n)
	if n.Target != nil {
		w.an.SetStack(n.Target, w.stack, false)
	}
	if w.backup != nil {
		w.stack = w.backup
		w.backup = nil
	}
	return nil
}

func (w *Walker) call(n *cfg.Node) error {
	params := 0
	var callee *cfg.Subroutine
	if n.Target != nil {
		callee = n.Target.Sub
	}
	if callee != nil {
		params = callee.ParamSlots
	}
	args, err := w.popCells(n, params)
	if err != nil {
		return err
	}
	w.em.Call(n, callee, args)
	return nil
}

func (w *Walker) destruct(n *cfg.Node) error {
	in := n.Inst
	removeSlots := int(in.Size) / ncs.CellSize
	saveSlots := int(in.SaveSize) / ncs.CellSize
	saveStart := w.stack.Slots() - removeSlots + int(in.SaveStart)/ncs.CellSize

	kept, removed, err := w.stack.Destruct(removeSlots, saveStart, saveSlots)
	if err != nil {
		if err == errEmpty {
			return w.underflow(n)
		}
		return fmt.Errorf("DESTRUCT at %#x: %w", in.PC, err)
	}
	for _, e := range removed {
		EachVariable(e, func(v *Variable) {
			if v.Placeholder {
				v.OnStack = false
				w.em.PlaceholderRemoved(v)
			} else {
				v.OnStack = false
			}
		})
	}
	w.em.Destructure(n, kept, removed)
	return nil
}

func (w *Walker) crement(n *cfg.Node, frame *Stack) error {
	in := n.Inst
	if frame == nil {
		return fmt.Errorf("%s at %#x: no caller frame", in.Op, in.PC)
	}
	e, err := frame.Get(frame.Slots() + int(in.Offset)/ncs.CellSize)
	if err != nil {
		return fmt.Errorf("%s at %#x: %w", in.Op, in.PC, err)
	}
	EachVariable(e, func(v *Variable) { v.Placeholder = false })
	w.em.Crement(n, e)
	return nil
}

func (w *Walker) ret(n *cfg.Node) error {
	w.em.Return(n)
	if w.stack.Slots() != 0 {
		return &InconsistentFinalStackError{
			Sub:    w.sub.Name(),
			Return: w.sub.Return.String(),
			Dump:   w.stack.Dump(),
		}
	}
	return nil
}

// popOperand removes one value spanning the given number of cells,
// structifying the span first when it is wider than one cell.
func (w *Walker) popOperand(n *cfg.Node, slots int) (StackEntry, error) {
	if w.stack.Slots() < slots {
		return nil, w.underflow(n)
	}
	if slots > 1 {
		if _, err := w.stack.Structify(w.stack.Slots()-slots, slots); err != nil {
			return nil, fmt.Errorf("%s at %#x: %w", n.Inst.Op, n.Inst.PC, err)
		}
	}
	e, err := w.stack.Remove()
	if err != nil {
		return nil, w.underflow(n)
	}
	w.noticePlaceholders(e)
	return e, nil
}

// popCells removes entries until the given number of cells is consumed,
// re-expanding a composite that would straddle the boundary. Entries are
// returned in pop order (topmost first).
func (w *Walker) popCells(n *cfg.Node, cells int) ([]StackEntry, error) {
	var out []StackEntry
	for cells > 0 {
		top := w.stack.Top()
		if top == nil {
			return nil, w.underflow(n)
		}
		if top.Size() > cells {
			if err := w.stack.ensureBoundary(w.stack.Slots() - cells); err != nil {
				return nil, fmt.Errorf("%s at %#x: %w", n.Inst.Op, n.Inst.PC, err)
			}
			continue
		}
		e, err := w.stack.Remove()
		if err != nil {
			return nil, w.underflow(n)
		}
		cells -= e.Size()
		w.noticePlaceholders(e)
		out = append(out, e)
	}
	return out, nil
}

// noticePlaceholders reports reserved slots consumed before any value was
// written into them.
func (w *Walker) noticePlaceholders(e StackEntry) {
	EachVariable(e, func(v *Variable) {
		if v.Placeholder && v.OnStack {
			v.OnStack = false
			w.em.PlaceholderRemoved(v)
		}
	})
}

// topSpan resolves the top count cells as one entry for use as a copy
// source, grouping them if needed.
func (w *Walker) topSpan(n *cfg.Node, count int) (StackEntry, error) {
	if w.stack.Slots() < count || count < 1 {
		return nil, w.underflow(n)
	}
	if count == 1 {
		return w.stack.Get(w.stack.Slots() - 1)
	}
	st, err := w.stack.Structify(w.stack.Slots()-count, count)
	if err != nil {
		return nil, fmt.Errorf("%s at %#x: %w", n.Inst.Op, n.Inst.PC, err)
	}
	return st, nil
}
