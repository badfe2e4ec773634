// Package analysis computes per-node facts the walker consumes: dead-code
// classification, origin bookkeeping for retroactive declarations,
// logical-OR jump detection and the per-node stack snapshot store.
package analysis

import (
	"github.com/cespare/xxhash/v2"
	"github.com/tliron/commonlog"

	"github.com/xplshn/ncsdec/pkg/cfg"
	"github.com/xplshn/ncsdec/pkg/decomp"
	"github.com/xplshn/ncsdec/pkg/ncs"
)

var log = commonlog.GetLogger("ncsdec.analysis")

type nodeData struct {
	dead      bool
	processed bool
	orTail    bool
	origins   []*cfg.Node

	snapshot *decomp.Stack
	digest   uint64
	snapDead bool
	hasSnap  bool
}

// Data holds the analysis results for one subroutine. It implements
// decomp.Analyzer.
type Data struct {
	sub   *cfg.Subroutine
	nodes map[*cfg.Node]*nodeData
	warn  func(pc uint32, format string, args ...any)
}

// New analyzes one subroutine: reachability from its entry, jump origins,
// and short-circuit OR tails.
func New(sub *cfg.Subroutine) *Data {
	d := &Data{
		sub:   sub,
		nodes: make(map[*cfg.Node]*nodeData, len(sub.Nodes)),
		warn:  func(uint32, string, ...any) {},
	}
	for _, n := range sub.Nodes {
		d.nodes[n] = &nodeData{}
	}

	d.markReachable()
	for _, n := range sub.Nodes {
		// The compiler emits JZ for if/while conditions; JNZ only appears
		// as the short-circuit jump of a compiled ||.
		if n.Inst.Op == ncs.OpJNZ {
			d.nodes[n].orTail = true
		}
		if n.Inst.Op.IsJump() && n.Inst.Op != ncs.OpJSR && n.Target != nil && n.Target.Sub == sub {
			d.nodes[n.Target].origins = append(d.nodes[n.Target].origins, n)
		}
	}
	return d
}

// SetOrDetect clears the OR-tail classification when folding is disabled;
// JNZ then decompiles as a plain conditional jump.
func (d *Data) SetOrDetect(enabled bool) {
	if enabled {
		return
	}
	for _, nd := range d.nodes {
		nd.orTail = false
	}
}

// OnWarning installs a diagnostic sink for join-shape mismatches.
func (d *Data) OnWarning(fn func(pc uint32, format string, args ...any)) {
	if fn != nil {
		d.warn = fn
	}
}

func (d *Data) markReachable() {
	seen := make(map[*cfg.Node]bool, len(d.sub.Nodes))
	stack := []*cfg.Node{d.sub.Entry}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil || n.Sub != d.sub || seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, n.Next)
		if n.Inst.Op != ncs.OpJSR {
			stack = append(stack, n.Target)
		}
	}
	for _, n := range d.sub.Nodes {
		d.nodes[n].dead = !seen[n]
	}
}

// DeadCode reports whether the node is unreachable from the entry.
func (d *Data) DeadCode(n *cfg.Node) bool {
	return d.nodes[n].dead
}

// ProcessCode reports whether the node still needs processing and marks it
// consumed.
func (d *Data) ProcessCode(n *cfg.Node) bool {
	nd := d.nodes[n]
	if nd.processed {
		return false
	}
	nd.processed = true
	return true
}

// IsOrTail reports whether a conditional jump was compiled from the tail of
// a short-circuit OR.
func (d *Data) IsOrTail(n *cfg.Node) bool {
	return d.nodes[n].orTail
}

// RemoveLastOrigin pops one pending jump origin recorded for n.
func (d *Data) RemoveLastOrigin(n *cfg.Node) *cfg.Node {
	nd := d.nodes[n]
	if len(nd.origins) == 0 {
		return nil
	}
	o := nd.origins[len(nd.origins)-1]
	nd.origins = nd.origins[:len(nd.origins)-1]
	return o
}

// Stack returns an owned copy of the snapshot stored for n, or nil.
func (d *Data) Stack(n *cfg.Node) *decomp.Stack {
	nd := d.nodes[n]
	if !nd.hasSnap {
		return nil
	}
	return nd.snapshot.Clone()
}

// SetStack records the stack shape an incoming edge carries to n. The first
// recording from a live path is canonical; later live recordings must match
// its shape digest. Snapshots from dead paths never displace live ones.
func (d *Data) SetStack(n *cfg.Node, s *decomp.Stack, isDead bool) {
	nd := d.nodes[n]
	digest := xxhash.Sum64String(s.ShapeString())

	if nd.hasSnap {
		if isDead {
			return
		}
		if nd.snapDead {
			// A live path supersedes a dead recording.
			nd.snapshot, nd.digest, nd.snapDead = s.Clone(), digest, false
			return
		}
		if nd.digest != digest {
			d.warn(n.Inst.PC, "paths joining at %#x disagree on stack shape (%#x vs %#x)",
				n.Inst.PC, nd.digest, digest)
		}
		return
	}
	log.Debugf("snapshot at %#x: %d cells, digest %#x", n.Inst.PC, s.Slots(), digest)
	nd.snapshot, nd.digest, nd.snapDead, nd.hasSnap = s.Clone(), digest, isDead, true
}
