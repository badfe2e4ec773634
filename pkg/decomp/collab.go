package decomp

import (
	"github.com/xplshn/ncsdec/pkg/actions"
	"github.com/xplshn/ncsdec/pkg/cfg"
)

// Analyzer is the node-analysis collaborator the walker consumes: dead-code
// verdicts, origin bookkeeping and the per-node stack snapshot store. The
// collaborator owns the policy of which recorded stack shape is canonical
// at a join point; the walker only consumes its verdicts.
type Analyzer interface {
	// Stack returns an owned copy of the snapshot stored for the node, or
	// nil when none was recorded.
	Stack(n *cfg.Node) *Stack

	// SetStack records the stack shape an incoming edge carries to n.
	// isDead marks recordings made from unreachable paths.
	SetStack(n *cfg.Node, s *Stack, isDead bool)

	// RemoveLastOrigin pops one pending jump origin recorded for n.
	RemoveLastOrigin(n *cfg.Node) *cfg.Node

	DeadCode(n *cfg.Node) bool

	// ProcessCode reports whether the node still needs processing; it
	// flips to false once consumed.
	ProcessCode(n *cfg.Node) bool

	// IsOrTail reports whether a conditional jump is the compiled tail of
	// a short-circuit OR.
	IsOrTail(n *cfg.Node) bool
}

// Emitter receives one call per visited instruction plus the notifications
// that drive retroactive declaration-point synthesis. Dead instructions
// route exclusively to Dead.
type Emitter interface {
	Reserve(n *cfg.Node, v *Variable)
	PushConst(n *cfg.Node, c *Const)
	Copy(n *cfg.Node, e StackEntry)
	Assign(n *cfg.Node, dst, src StackEntry)
	AssignReturn(n *cfg.Node, src StackEntry)
	Action(n *cfg.Node, sig actions.Signature, args []StackEntry, result StackEntry)
	Binary(n *cfg.Node, result, left, right StackEntry)
	Unary(n *cfg.Node, result, operand StackEntry)
	Crement(n *cfg.Node, target StackEntry)
	Move(n *cfg.Node)
	CondJump(n *cfg.Node, cond StackEntry)
	OrJump(n *cfg.Node, cond StackEntry)
	Jump(n *cfg.Node)
	Call(n *cfg.Node, callee *cfg.Subroutine, args []StackEntry)
	Destructure(n *cfg.Node, kept, removed []StackEntry)
	StoreState(n *cfg.Node)
	Return(n *cfg.Node)
	Generic(n *cfg.Node)
	Dead(n *cfg.Node)

	PlaceholderRemoved(v *Variable)
	RemoveLocals(vars []*Variable)
	ResolveOrigin(n, origin *cfg.Node)
}
