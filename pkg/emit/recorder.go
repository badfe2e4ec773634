package emit

import (
	"github.com/xplshn/ncsdec/pkg/actions"
	"github.com/xplshn/ncsdec/pkg/cfg"
	"github.com/xplshn/ncsdec/pkg/decomp"
)

// Event is one recorded emission.
type Event struct {
	Kind    string
	Node    *cfg.Node
	Entries []decomp.StackEntry
	Var     *decomp.Variable
	Vars    []*decomp.Variable
	Sig     actions.Signature
	Callee  *cfg.Subroutine
	Origin  *cfg.Node
}

// Recorder is a decomp.Emitter that captures every emission in order.
type Recorder struct {
	Events []Event
}

func (r *Recorder) add(e Event) { r.Events = append(r.Events, e) }

// Kinds returns the recorded event kinds in order.
func (r *Recorder) Kinds() []string {
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Kind
	}
	return out
}

// ByKind returns the recorded events of one kind.
func (r *Recorder) ByKind(kind string) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Reserve(n *cfg.Node, v *decomp.Variable) {
	r.add(Event{Kind: "reserve", Node: n, Var: v})
}

func (r *Recorder) PushConst(n *cfg.Node, c *decomp.Const) {
	r.add(Event{Kind: "const", Node: n, Entries: []decomp.StackEntry{c}})
}

func (r *Recorder) Copy(n *cfg.Node, e decomp.StackEntry) {
	r.add(Event{Kind: "copy", Node: n, Entries: []decomp.StackEntry{e}})
}

func (r *Recorder) Assign(n *cfg.Node, dst, src decomp.StackEntry) {
	r.add(Event{Kind: "assign", Node: n, Entries: []decomp.StackEntry{dst, src}})
}

func (r *Recorder) AssignReturn(n *cfg.Node, src decomp.StackEntry) {
	r.add(Event{Kind: "assign-return", Node: n, Entries: []decomp.StackEntry{src}})
}

func (r *Recorder) Action(n *cfg.Node, sig actions.Signature, args []decomp.StackEntry, result decomp.StackEntry) {
	ev := Event{Kind: "action", Node: n, Sig: sig, Entries: args}
	if result != nil {
		ev.Entries = append([]decomp.StackEntry{result}, args...)
	}
	r.add(ev)
}

func (r *Recorder) Binary(n *cfg.Node, result, left, right decomp.StackEntry) {
	r.add(Event{Kind: "binary", Node: n, Entries: []decomp.StackEntry{result, left, right}})
}

func (r *Recorder) Unary(n *cfg.Node, result, operand decomp.StackEntry) {
	r.add(Event{Kind: "unary", Node: n, Entries: []decomp.StackEntry{result, operand}})
}

func (r *Recorder) Crement(n *cfg.Node, target decomp.StackEntry) {
	r.add(Event{Kind: "crement", Node: n, Entries: []decomp.StackEntry{target}})
}

func (r *Recorder) Move(n *cfg.Node) {
	r.add(Event{Kind: "move", Node: n})
}

func (r *Recorder) CondJump(n *cfg.Node, cond decomp.StackEntry) {
	r.add(Event{Kind: "cond-jump", Node: n, Entries: []decomp.StackEntry{cond}})
}

func (r *Recorder) OrJump(n *cfg.Node, cond decomp.StackEntry) {
	r.add(Event{Kind: "or-jump", Node: n, Entries: []decomp.StackEntry{cond}})
}

func (r *Recorder) Jump(n *cfg.Node) {
	r.add(Event{Kind: "jump", Node: n})
}

func (r *Recorder) Call(n *cfg.Node, callee *cfg.Subroutine, args []decomp.StackEntry) {
	r.add(Event{Kind: "call", Node: n, Callee: callee, Entries: args})
}

func (r *Recorder) Destructure(n *cfg.Node, kept, removed []decomp.StackEntry) {
	r.add(Event{Kind: "destruct", Node: n, Entries: kept})
}

func (r *Recorder) StoreState(n *cfg.Node) {
	r.add(Event{Kind: "store-state", Node: n})
}

func (r *Recorder) Return(n *cfg.Node) {
	r.add(Event{Kind: "return", Node: n})
}

func (r *Recorder) Generic(n *cfg.Node) {
	r.add(Event{Kind: "generic", Node: n})
}

func (r *Recorder) Dead(n *cfg.Node) {
	r.add(Event{Kind: "dead", Node: n})
}

func (r *Recorder) PlaceholderRemoved(v *decomp.Variable) {
	r.add(Event{Kind: "placeholder-removed", Var: v})
}

func (r *Recorder) RemoveLocals(vars []*decomp.Variable) {
	r.add(Event{Kind: "remove-locals", Vars: vars})
}

func (r *Recorder) ResolveOrigin(n, origin *cfg.Node) {
	r.add(Event{Kind: "resolve-origin", Node: n, Origin: origin})
}
