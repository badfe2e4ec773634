// Package cfg builds a control-flow graph of NCS instructions: one node per
// instruction, with fallthrough and jump edges, partitioned into
// subroutines at JSR targets.
package cfg

import (
	"fmt"
	"sort"

	"github.com/xplshn/ncsdec/pkg/actions"
	"github.com/xplshn/ncsdec/pkg/ncs"
)

// Node is one instruction in the graph.
type Node struct {
	ID     int
	Inst   *ncs.Instruction
	Next   *Node // fallthrough edge, nil after JMP/RETN or at a subroutine end
	Target *Node // jump/call edge
	Preds  []*Node
	Sub    *Subroutine
}

// IsJumpTarget reports whether any jump instruction lands on this node.
func (n *Node) IsJumpTarget() bool {
	for _, p := range n.Preds {
		if p.Inst.Op.IsJump() && p.Inst.Op != ncs.OpJSR && p.Target == n {
			return true
		}
	}
	return false
}

func (n *Node) String() string {
	return fmt.Sprintf("#%d %s", n.ID, n.Inst.Op)
}

// ReturnKind classifies what a subroutine leaves for its caller.
type ReturnKind int

const (
	ReturnVoid ReturnKind = iota
	ReturnScalar
	ReturnVector
)

func (k ReturnKind) String() string {
	switch k {
	case ReturnScalar:
		return "scalar"
	case ReturnVector:
		return "vector"
	}
	return "void"
}

// Subroutine is a contiguous run of instructions entered through JSR (or the
// script entry point).
type Subroutine struct {
	Entry      *Node
	Nodes      []*Node // address order
	Order      []*Node // pruned depth-first order
	ParamSlots int
	Return     ReturnKind
}

// Name derives the conventional label for the subroutine.
func (s *Subroutine) Name() string {
	return fmt.Sprintf("sub_%08x", s.Entry.Inst.PC)
}

// Graph is the CFG of one script.
type Graph struct {
	Script *ncs.Script
	Nodes  []*Node
	Subs   []*Subroutine

	byPC map[uint32]*Node
}

// NodeAt returns the node at an absolute PC, or nil.
func (g *Graph) NodeAt(pc uint32) *Node {
	return g.byPC[pc]
}

// Build constructs the graph. The action table is consulted by the
// parameter-shape prepass; jump targets were bounds-checked by the decoder.
func Build(script *ncs.Script, tbl *actions.Table) (*Graph, error) {
	g := &Graph{Script: script, byPC: make(map[uint32]*Node)}
	for i, in := range script.Instructions {
		n := &Node{ID: i, Inst: in}
		g.Nodes = append(g.Nodes, n)
		g.byPC[in.PC] = n
	}
	for i, n := range g.Nodes {
		if !n.Inst.Op.Terminates() && i+1 < len(g.Nodes) {
			n.Next = g.Nodes[i+1]
		}
		if n.Inst.Op.IsJump() {
			t := g.byPC[n.Inst.Target()]
			if t == nil {
				return nil, fmt.Errorf("%s at %#x: no node at target %#x",
					n.Inst.Op, n.Inst.PC, n.Inst.Target())
			}
			n.Target = t
			t.Preds = append(t.Preds, n)
		}
	}
	for _, n := range g.Nodes {
		if n.Next != nil {
			n.Next.Preds = append(n.Next.Preds, n)
		}
	}

	g.splitSubroutines()
	for _, sub := range g.Subs {
		sub.Order = pruneDFS(sub)
		detectShape(sub, tbl)
	}
	return g, nil
}

// splitSubroutines partitions nodes into contiguous address ranges starting
// at the script entry and at every JSR target.
func (g *Graph) splitSubroutines() {
	if len(g.Nodes) == 0 {
		return
	}
	entrySet := map[*Node]bool{g.Nodes[0]: true}
	for _, n := range g.Nodes {
		if n.Inst.Op == ncs.OpJSR {
			entrySet[n.Target] = true
		}
	}
	var entries []*Node
	for n := range entrySet {
		entries = append(entries, n)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	for i, entry := range entries {
		end := len(g.Nodes)
		if i+1 < len(entries) {
			end = entries[i+1].ID
		}
		sub := &Subroutine{Entry: entry, Nodes: g.Nodes[entry.ID:end]}
		for _, n := range sub.Nodes {
			n.Sub = sub
		}
		g.Subs = append(g.Subs, sub)
	}

	// A fallthrough edge never crosses a subroutine boundary.
	for _, n := range g.Nodes {
		if n.Next != nil && n.Next.Sub != n.Sub {
			n.Next = nil
		}
	}
}

// pruneDFS computes the traversal order the walker consumes: depth-first
// from the entry, fallthrough edge before jump edge, each node once. JSR
// edges are calls and are not followed.
func pruneDFS(sub *Subroutine) []*Node {
	var order []*Node
	seen := make(map[*Node]bool, len(sub.Nodes))
	stack := []*Node{sub.Entry}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] || n.Sub != sub {
			continue
		}
		seen[n] = true
		order = append(order, n)
		if n.Target != nil && n.Inst.Op != ncs.OpJSR {
			stack = append(stack, n.Target)
		}
		if n.Next != nil {
			stack = append(stack, n.Next)
		}
	}

	// Unreachable nodes still get visited (they route to the dead-code
	// emission), appended in address order.
	for _, n := range sub.Nodes {
		if !seen[n] {
			order = append(order, n)
		}
	}
	return order
}
