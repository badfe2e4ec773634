// Package emit renders the walker's resolved operations. Printer produces a
// flat pseudocode listing; Recorder captures emissions for tests.
package emit

import (
	"fmt"
	"io"
	"strings"

	"github.com/xplshn/ncsdec/pkg/actions"
	"github.com/xplshn/ncsdec/pkg/cfg"
	"github.com/xplshn/ncsdec/pkg/decomp"
	"github.com/xplshn/ncsdec/pkg/ncs"
)

// Printer writes one pseudocode statement per resolved operation, with
// labels at jump targets. The control flow stays flat: structured loops and
// conditionals are not recovered.
type Printer struct {
	w       io.Writer
	err     error
	labeled map[*cfg.Node]bool

	// ShowDead carries unreachable instructions into the listing as
	// comments. Labels on dead nodes are kept either way.
	ShowDead bool
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, labeled: make(map[*cfg.Node]bool), ShowDead: true}
}

// Err returns the first write error, if any.
func (p *Printer) Err() error { return p.err }

// BeginSub opens a subroutine body.
func (p *Printer) BeginSub(sub *cfg.Subroutine) {
	p.printf("\n%s:  // %d parameter cells, %s return\n", sub.Name(), sub.ParamSlots, sub.Return)
}

// FailSub closes a subroutine whose pass was aborted.
func (p *Printer) FailSub(sub *cfg.Subroutine, err error) {
	p.printf("  // pass aborted: %v\n", err)
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) stmt(n *cfg.Node, format string, args ...any) {
	if n.IsJumpTarget() && !p.labeled[n] {
		p.labeled[n] = true
		p.printf("loc_%08x:\n", n.Inst.PC)
	}
	if format != "" {
		p.printf("  "+format+"\n", args...)
	}
}

func (p *Printer) Reserve(n *cfg.Node, v *decomp.Variable) {
	p.stmt(n, "%s %s;", v.Type, v)
}

func (p *Printer) PushConst(n *cfg.Node, c *decomp.Const) {
	p.stmt(n, "push %s;", c)
}

func (p *Printer) Copy(n *cfg.Node, e decomp.StackEntry) {
	p.stmt(n, "push %s;", e)
}

func (p *Printer) Assign(n *cfg.Node, dst, src decomp.StackEntry) {
	p.stmt(n, "%s = %s;", dst, src)
}

func (p *Printer) AssignReturn(n *cfg.Node, src decomp.StackEntry) {
	p.stmt(n, "retval = %s;", src)
}

func (p *Printer) Action(n *cfg.Node, sig actions.Signature, args []decomp.StackEntry, result decomp.StackEntry) {
	call := fmt.Sprintf("%s(%s)", sig.Name, entryList(args))
	if result == nil {
		p.stmt(n, "%s;", call)
		return
	}
	p.stmt(n, "%s = %s;", result, call)
}

func (p *Printer) Binary(n *cfg.Node, result, left, right decomp.StackEntry) {
	p.stmt(n, "%s = %s %s %s;", result, left, binarySym(n.Inst.Op), right)
}

func (p *Printer) Unary(n *cfg.Node, result, operand decomp.StackEntry) {
	p.stmt(n, "%s = %s%s;", result, unarySym(n.Inst.Op), operand)
}

func (p *Printer) Crement(n *cfg.Node, target decomp.StackEntry) {
	switch n.Inst.Op {
	case ncs.OpINCISP, ncs.OpINCIBP:
		p.stmt(n, "%s++;", target)
	default:
		p.stmt(n, "%s--;", target)
	}
}

func (p *Printer) Move(n *cfg.Node) {
	p.stmt(n, "")
}

func (p *Printer) CondJump(n *cfg.Node, cond decomp.StackEntry) {
	if n.Inst.Op == ncs.OpJZ {
		p.stmt(n, "if (!%s) goto loc_%08x;", cond, n.Inst.Target())
		return
	}
	p.stmt(n, "if (%s) goto loc_%08x;", cond, n.Inst.Target())
}

func (p *Printer) OrJump(n *cfg.Node, cond decomp.StackEntry) {
	p.stmt(n, "if (%s) goto loc_%08x;  // short-circuit", cond, n.Inst.Target())
}

func (p *Printer) Jump(n *cfg.Node) {
	p.stmt(n, "goto loc_%08x;", n.Inst.Target())
}

func (p *Printer) Call(n *cfg.Node, callee *cfg.Subroutine, args []decomp.StackEntry) {
	name := fmt.Sprintf("sub_%08x", n.Inst.Target())
	if callee != nil {
		name = callee.Name()
	}
	p.stmt(n, "%s(%s);", name, entryList(args))
}

func (p *Printer) Destructure(n *cfg.Node, kept, removed []decomp.StackEntry) {
	if len(kept) > 0 {
		p.stmt(n, "keep %s;", entryList(kept))
		return
	}
	p.stmt(n, "destruct;")
}

func (p *Printer) StoreState(n *cfg.Node) {
	p.stmt(n, "store_state;")
}

func (p *Printer) Return(n *cfg.Node) {
	p.stmt(n, "return;")
}

func (p *Printer) Generic(n *cfg.Node) {
	p.stmt(n, "")
}

func (p *Printer) Dead(n *cfg.Node) {
	if !p.ShowDead {
		p.stmt(n, "")
		return
	}
	p.stmt(n, "// dead: %s", strings.TrimSpace(n.Inst.String()))
}

func (p *Printer) PlaceholderRemoved(v *decomp.Variable) {
	p.printf("  // %s reserved but never written\n", v)
}

func (p *Printer) RemoveLocals(vars []*decomp.Variable) {
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.String()
	}
	p.printf("  // end of scope for %s\n", strings.Join(names, ", "))
}

func (p *Printer) ResolveOrigin(n, origin *cfg.Node) {
	p.printf("  // joined from %08x\n", origin.Inst.PC)
}

func entryList(entries []decomp.StackEntry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

func binarySym(op ncs.Op) string {
	switch op {
	case ncs.OpADD:
		return "+"
	case ncs.OpSUB:
		return "-"
	case ncs.OpMUL:
		return "*"
	case ncs.OpDIV:
		return "/"
	case ncs.OpMOD:
		return "%"
	case ncs.OpEQUAL:
		return "=="
	case ncs.OpNEQUAL:
		return "!="
	case ncs.OpGEQ:
		return ">="
	case ncs.OpGT:
		return ">"
	case ncs.OpLT:
		return "<"
	case ncs.OpLEQ:
		return "<="
	case ncs.OpLOGAND:
		return "&&"
	case ncs.OpLOGOR:
		return "||"
	case ncs.OpINCOR:
		return "|"
	case ncs.OpEXCOR:
		return "^"
	case ncs.OpBOOLAND:
		return "&"
	case ncs.OpSHLEFT:
		return "<<"
	case ncs.OpSHRIGHT:
		return ">>"
	case ncs.OpUSHRIGHT:
		return ">>>"
	}
	return "?"
}

func unarySym(op ncs.Op) string {
	switch op {
	case ncs.OpNEG:
		return "-"
	case ncs.OpCOMP:
		return "~"
	case ncs.OpNOT:
		return "!"
	}
	return "?"
}
