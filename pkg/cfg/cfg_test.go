package cfg_test

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xplshn/ncsdec/pkg/actions"
	"github.com/xplshn/ncsdec/pkg/cfg"
	"github.com/xplshn/ncsdec/pkg/ncs"
)

const headerSize = 13

// prog assembles NCS bytecode with label-based jump displacements.
type prog struct {
	body   []byte
	labels map[string]uint32
	fixups []progFixup
}

type progFixup struct {
	at    int
	pc    uint32
	label string
}

func newProg() *prog { return &prog{labels: make(map[string]uint32)} }

func (p *prog) pc() uint32 { return uint32(headerSize + len(p.body)) }

func (p *prog) label(name string) { p.labels[name] = p.pc() }

func (p *prog) op(op ncs.Op, q ncs.Qual) { p.body = append(p.body, byte(op), byte(q)) }

func (p *prog) i32(v int32) {
	p.body = binary.BigEndian.AppendUint32(p.body, uint32(v))
}

func (p *prog) u16(v uint16) {
	p.body = binary.BigEndian.AppendUint16(p.body, v)
}

func (p *prog) rsadd(q ncs.Qual) { p.op(ncs.OpRSADD, q) }

func (p *prog) constInt(v int32) {
	p.op(ncs.OpCONST, ncs.QualInt)
	p.i32(v)
}

func (p *prog) cptopsp(off int32, size uint16) {
	p.op(ncs.OpCPTOPSP, ncs.QualStack)
	p.i32(off)
	p.u16(size)
}

func (p *prog) cpdownsp(off int32, size uint16) {
	p.op(ncs.OpCPDOWNSP, ncs.QualStack)
	p.i32(off)
	p.u16(size)
}

func (p *prog) movsp(off int32) {
	p.op(ncs.OpMOVSP, ncs.QualStack)
	p.i32(off)
}

func (p *prog) action(id uint16, argc uint8) {
	p.op(ncs.OpACTION, ncs.QualNone)
	p.u16(id)
	p.body = append(p.body, argc)
}

func (p *prog) jump(op ncs.Op, label string) {
	pc := p.pc()
	p.op(op, ncs.QualNone)
	p.fixups = append(p.fixups, progFixup{at: len(p.body), pc: pc, label: label})
	p.i32(0)
}

func (p *prog) retn() { p.op(ncs.OpRETN, ncs.QualNone) }

func (p *prog) build(t *testing.T) *cfg.Graph {
	t.Helper()
	for _, f := range p.fixups {
		target, ok := p.labels[f.label]
		if !ok {
			t.Fatalf("undefined label %q", f.label)
		}
		binary.BigEndian.PutUint32(p.body[f.at:], uint32(int32(target)-int32(f.pc)))
	}
	data := []byte("NCS V1.0")
	data = append(data, 0x42)
	data = binary.BigEndian.AppendUint32(data, uint32(headerSize+len(p.body)))
	data = append(data, p.body...)

	script, err := ncs.ReadScript("test", data)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	g, err := cfg.Build(script, actions.NewTable())
	if err != nil {
		t.Fatalf("cfg: %v", err)
	}
	return g
}

func orderIDs(sub *cfg.Subroutine) []int {
	ids := make([]int, len(sub.Order))
	for i, n := range sub.Order {
		ids[i] = n.ID
	}
	return ids
}

func TestSplitSubroutines(t *testing.T) {
	p := newProg()
	p.constInt(7)
	p.jump(ncs.OpJSR, "sub")
	p.movsp(-4)
	p.retn()
	p.label("sub")
	p.constInt(1)
	p.movsp(-4)
	p.retn()

	g := p.build(t)
	if len(g.Subs) != 2 {
		t.Fatalf("subroutines = %d, want 2", len(g.Subs))
	}
	main, callee := g.Subs[0], g.Subs[1]
	if got := len(main.Nodes); got != 4 {
		t.Errorf("entry subroutine nodes = %d, want 4", got)
	}
	if callee.Entry.ID != 4 {
		t.Errorf("callee entry = #%d, want #4", callee.Entry.ID)
	}
	if got := callee.Name(); got != "sub_00000021" {
		t.Errorf("callee name = %q", got)
	}
	if g.Nodes[1].Target != callee.Entry {
		t.Error("JSR edge does not reach the callee entry")
	}
	for _, n := range main.Nodes {
		if n.Next != nil && n.Next.Sub != main {
			t.Errorf("fallthrough from #%d crosses the subroutine boundary", n.ID)
		}
	}
}

func TestSplitCutsFallthroughAtBoundary(t *testing.T) {
	// A JSR as the last instruction of the caller: its fallthrough edge
	// would land on the callee entry and must be cut.
	p := newProg()
	p.jump(ncs.OpJSR, "sub")
	p.label("sub")
	p.retn()

	g := p.build(t)
	if len(g.Subs) != 2 {
		t.Fatalf("subroutines = %d, want 2", len(g.Subs))
	}
	if g.Nodes[0].Next != nil {
		t.Error("JSR fallthrough crosses into the callee")
	}
	if g.Nodes[0].Target != g.Subs[1].Entry {
		t.Error("JSR call edge lost")
	}
}

func TestPruneOrderFallthroughFirst(t *testing.T) {
	p := newProg()
	p.constInt(1)            // 0
	p.jump(ncs.OpJZ, "else") // 1
	p.constInt(2)            // 2
	p.movsp(-4)              // 3
	p.jump(ncs.OpJMP, "end") // 4
	p.label("else")
	p.constInt(3) // 5
	p.movsp(-4)   // 6
	p.label("end")
	p.retn() // 7

	g := p.build(t)
	want := []int{0, 1, 2, 3, 4, 7, 5, 6}
	if diff := cmp.Diff(want, orderIDs(g.Subs[0])); diff != "" {
		t.Errorf("traversal order (-want +got):\n%s", diff)
	}
	if !g.Nodes[5].IsJumpTarget() || !g.Nodes[7].IsJumpTarget() {
		t.Error("jump targets not flagged")
	}
	if g.Nodes[2].IsJumpTarget() {
		t.Error("fallthrough-only node flagged as jump target")
	}
}

func TestPruneOrderAppendsUnreachable(t *testing.T) {
	p := newProg()
	p.jump(ncs.OpJMP, "end") // 0
	p.constInt(5)            // 1, unreachable
	p.movsp(-4)              // 2, unreachable
	p.label("end")
	p.retn() // 3

	g := p.build(t)
	want := []int{0, 3, 1, 2}
	if diff := cmp.Diff(want, orderIDs(g.Subs[0])); diff != "" {
		t.Errorf("traversal order (-want +got):\n%s", diff)
	}
}

func TestDetectShapeParameters(t *testing.T) {
	p := newProg()
	p.constInt(7)
	p.jump(ncs.OpJSR, "sub")
	p.retn()
	p.label("sub")
	p.cptopsp(-4, 4) // reads one slot below the frame
	p.movsp(-4)
	p.movsp(-4)
	p.retn()

	g := p.build(t)
	main, callee := g.Subs[0], g.Subs[1]
	if main.ParamSlots != 0 || main.Return != cfg.ReturnVoid {
		t.Errorf("entry shape = %d slots, %v return", main.ParamSlots, main.Return)
	}
	if callee.ParamSlots != 1 {
		t.Errorf("callee ParamSlots = %d, want 1", callee.ParamSlots)
	}
	if callee.Return != cfg.ReturnVoid {
		t.Errorf("callee return = %v, want void", callee.Return)
	}
}

func TestDetectShapeScalarReturn(t *testing.T) {
	p := newProg()
	p.rsadd(ncs.QualInt)
	p.jump(ncs.OpJSR, "sub")
	p.movsp(-4)
	p.retn()
	p.label("sub")
	p.constInt(5)
	p.cpdownsp(-8, 4) // one slot past the frame bottom: the return slot
	p.movsp(-4)
	p.retn()

	g := p.build(t)
	callee := g.Subs[1]
	if callee.Return != cfg.ReturnScalar {
		t.Errorf("return kind = %v, want scalar", callee.Return)
	}
	if callee.ParamSlots != 0 {
		t.Errorf("ParamSlots = %d, want 0", callee.ParamSlots)
	}
}

func TestDetectShapeVectorReturn(t *testing.T) {
	p := newProg()
	p.rsadd(ncs.QualFloat)
	p.rsadd(ncs.QualFloat)
	p.rsadd(ncs.QualFloat)
	p.jump(ncs.OpJSR, "sub")
	p.movsp(-12)
	p.retn()
	p.label("sub")
	p.rsadd(ncs.QualFloat)
	p.rsadd(ncs.QualFloat)
	p.rsadd(ncs.QualFloat)
	p.cpdownsp(-24, 12)
	p.movsp(-12)
	p.retn()

	g := p.build(t)
	if got := g.Subs[1].Return; got != cfg.ReturnVector {
		t.Errorf("return kind = %v, want vector", got)
	}
}

func TestDetectShapeTracksActionDepth(t *testing.T) {
	// Random consumes its argument and leaves one result cell. A copy of
	// that cell is a local read, not a parameter access.
	p := newProg()
	p.constInt(6)
	p.action(0, 1)
	p.cptopsp(-4, 4)
	p.movsp(-8)
	p.retn()

	g := p.build(t)
	if got := g.Subs[0].ParamSlots; got != 0 {
		t.Errorf("ParamSlots = %d, want 0", got)
	}
}
