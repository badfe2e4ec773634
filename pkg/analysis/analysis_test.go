package analysis_test

import (
	"fmt"
	"testing"

	"github.com/xplshn/ncsdec/pkg/analysis"
	"github.com/xplshn/ncsdec/pkg/cfg"
	"github.com/xplshn/ncsdec/pkg/decomp"
	"github.com/xplshn/ncsdec/pkg/ncs"
)

// sub builds a subroutine from a straight-line op sequence. Fallthrough
// edges follow instruction order; jump edges are wired by the caller.
func sub(ops ...ncs.Op) *cfg.Subroutine {
	nodes := make([]*cfg.Node, len(ops))
	for i, op := range ops {
		nodes[i] = &cfg.Node{ID: i, Inst: &ncs.Instruction{Op: op, PC: uint32(13 + 2*i)}}
	}
	for i, n := range nodes {
		if !n.Inst.Op.Terminates() && i+1 < len(nodes) {
			n.Next = nodes[i+1]
		}
	}
	s := &cfg.Subroutine{Entry: nodes[0], Nodes: nodes}
	for _, n := range nodes {
		n.Sub = s
	}
	return s
}

func link(from, to *cfg.Node) {
	from.Target = to
	from.Inst.Offset = int32(to.Inst.PC) - int32(from.Inst.PC)
	to.Preds = append(to.Preds, from)
}

func intStack(n int) *decomp.Stack {
	s := decomp.NewStack()
	for i := 0; i < n; i++ {
		s.Push(&decomp.Const{Type: ncs.Int, IntVal: int32(i)})
	}
	return s
}

func TestReachability(t *testing.T) {
	// JSR is a call edge, not a control transfer: its target must not be
	// marked reachable through it.
	s := sub(ncs.OpJSR, ncs.OpRETN, ncs.OpNOP)
	link(s.Nodes[0], s.Nodes[2])

	d := analysis.New(s)
	if d.DeadCode(s.Nodes[0]) || d.DeadCode(s.Nodes[1]) {
		t.Error("fallthrough chain marked dead")
	}
	if !d.DeadCode(s.Nodes[2]) {
		t.Error("node after RETN reachable only through JSR not marked dead")
	}
}

func TestReachabilityThroughJump(t *testing.T) {
	s := sub(ncs.OpJMP, ncs.OpNOP, ncs.OpRETN)
	link(s.Nodes[0], s.Nodes[2])

	d := analysis.New(s)
	if !d.DeadCode(s.Nodes[1]) {
		t.Error("node skipped by JMP not marked dead")
	}
	if d.DeadCode(s.Nodes[2]) {
		t.Error("JMP target marked dead")
	}
}

func TestProcessCodeOnce(t *testing.T) {
	s := sub(ncs.OpRETN)
	d := analysis.New(s)
	if !d.ProcessCode(s.Nodes[0]) {
		t.Fatal("first ProcessCode = false")
	}
	if d.ProcessCode(s.Nodes[0]) {
		t.Error("second ProcessCode = true, want consumed")
	}
}

func TestOrTailDetection(t *testing.T) {
	s := sub(ncs.OpJZ, ncs.OpJNZ, ncs.OpRETN)
	link(s.Nodes[0], s.Nodes[2])
	link(s.Nodes[1], s.Nodes[2])

	d := analysis.New(s)
	if d.IsOrTail(s.Nodes[0]) {
		t.Error("JZ classified as an OR tail")
	}
	if !d.IsOrTail(s.Nodes[1]) {
		t.Error("JNZ not classified as an OR tail")
	}

	d.SetOrDetect(false)
	if d.IsOrTail(s.Nodes[1]) {
		t.Error("OR tail survived SetOrDetect(false)")
	}
}

func TestOriginsPopInReverse(t *testing.T) {
	s := sub(ncs.OpJZ, ncs.OpJZ, ncs.OpRETN)
	link(s.Nodes[0], s.Nodes[2])
	link(s.Nodes[1], s.Nodes[2])

	d := analysis.New(s)
	if got := d.RemoveLastOrigin(s.Nodes[2]); got != s.Nodes[1] {
		t.Errorf("first pop = %v, want the later jump", got)
	}
	if got := d.RemoveLastOrigin(s.Nodes[2]); got != s.Nodes[0] {
		t.Errorf("second pop = %v, want the earlier jump", got)
	}
	if got := d.RemoveLastOrigin(s.Nodes[2]); got != nil {
		t.Errorf("third pop = %v, want nil", got)
	}
}

func TestSnapshotFirstLiveWins(t *testing.T) {
	s := sub(ncs.OpRETN)
	n := s.Nodes[0]
	d := analysis.New(s)

	if d.Stack(n) != nil {
		t.Fatal("snapshot present before any recording")
	}
	d.SetStack(n, intStack(2), false)
	got := d.Stack(n)
	if got == nil || got.Slots() != 2 {
		t.Fatalf("stored snapshot = %v", got)
	}

	// The returned copy is owned by the caller.
	if _, err := got.Remove(); err != nil {
		t.Fatal(err)
	}
	if d.Stack(n).Slots() != 2 {
		t.Error("mutating the returned copy changed the stored snapshot")
	}
}

func TestSnapshotDeadNeverDisplacesLive(t *testing.T) {
	s := sub(ncs.OpRETN)
	n := s.Nodes[0]
	d := analysis.New(s)

	d.SetStack(n, intStack(2), false)
	d.SetStack(n, intStack(5), true)
	if got := d.Stack(n).Slots(); got != 2 {
		t.Errorf("snapshot slots = %d, want the live recording kept", got)
	}
}

func TestSnapshotLiveSupersedesDead(t *testing.T) {
	s := sub(ncs.OpRETN)
	n := s.Nodes[0]
	d := analysis.New(s)

	d.SetStack(n, intStack(5), true)
	d.SetStack(n, intStack(2), false)
	if got := d.Stack(n).Slots(); got != 2 {
		t.Errorf("snapshot slots = %d, want the live recording", got)
	}

	// No warning for the dead/live shape difference.
	var warned bool
	d.OnWarning(func(uint32, string, ...any) { warned = true })
	d.SetStack(n, intStack(2), false)
	if warned {
		t.Error("matching live recording warned")
	}
}

func TestSnapshotMismatchWarns(t *testing.T) {
	s := sub(ncs.OpRETN)
	n := s.Nodes[0]
	d := analysis.New(s)

	var warnings []string
	d.OnWarning(func(pc uint32, format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	d.SetStack(n, intStack(2), false)
	d.SetStack(n, intStack(3), false)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one mismatch", warnings)
	}
	// The canonical snapshot is untouched by the mismatching recording.
	if got := d.Stack(n).Slots(); got != 2 {
		t.Errorf("snapshot slots = %d, want the first live recording", got)
	}
}
