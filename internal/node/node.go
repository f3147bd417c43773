// Package node implements the Node lifecycle (C3) and the per-type body
// specializations (C4): Empty, Assignment, Command, Update, NodeList, and
// LibraryCall. A Node owns its condition slots, its local variable
// scope, its state/outcome/failure fields, and a polymorphic body that
// supplies the type-specific EXECUTING-entry action and implicit end
// condition.
package node

import (
	"time"

	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/plexpr"
	"github.com/arclight-systems/planexec/internal/scope"
)

// Timepoint is a (state, enteredAt) tuple recorded every time a node
// enters a state (spec.md §3, glossary "Timepoint").
type Timepoint struct {
	State     domain.NodeState
	EnteredAt time.Time
}

// Body is the polymorphic per-type payload (C4). Each NodeType has
// exactly one Body implementation; see body_*.go.
type Body interface {
	Type() domain.NodeType
	// OnEnterExecuting runs the type's EXECUTING-entry action (invoke a
	// command, snapshot pairs — spec.md §4.4). It is a no-op for
	// Assignment, whose write the scheduler commits from Q3, and for
	// List/LibraryCall, whose children the scheduler activates.
	OnEnterExecuting(n *Node)
	// OnEnterFailing runs the type's abort path (a no-op for
	// Assignment/Update; invokes the interface's abort for Command).
	OnEnterFailing(n *Node)
	// ImplicitEnd returns the expression that must be ANDed with any
	// user-supplied EndCondition (spec.md §4.3's "end-condition
	// wrapping"), or nil if the type has none of its own (Empty).
	ImplicitEnd() plexpr.Expression
}

// Node is one node of the plan tree. Children are owned (List/LibraryCall
// only); the Parent back-pointer is non-owning (spec.md §9 design note).
type Node struct {
	ID       string
	Parent   *Node // non-owning
	nodeType domain.NodeType
	Children []*Node // owning; List/LibraryCall only

	clock *plexpr.Clock
	Scope *scope.Scope

	conditions      [domain.NumConditionSlots()]plexpr.Expression
	conditionsOwned [domain.NumConditionSlots()]bool
	finalized       bool
	userEnd         plexpr.Expression // raw user EndCondition, pre-wrapping

	state   domain.NodeState
	outcome domain.NodeOutcome
	failure domain.FailureType

	pendingState   domain.NodeState
	pendingOutcome domain.NodeOutcome
	pendingFailure domain.FailureType
	hasPending     bool

	enteredAt  map[domain.NodeState]time.Time
	timepoints []Timepoint

	// QueueStatus is a bitmask of which scheduler queues this node
	// currently sits on, so it is enqueued at most once per queue per
	// cycle (spec.md §4.5).
	QueueStatus byte

	Body Body

	stateVar   *plexpr.StateVariable
	outcomeVar *plexpr.OutcomeVariable
	failureVar *plexpr.FailureVariable

	// dirty marks that some expression this node listens on (one of its
	// own active condition slots) published a change since the scheduler
	// last swept it — see NotifyChanged.
	dirty bool

	// PostResult, when set by the scheduler, routes an asynchronous
	// external-interface callback (a Command handle, an assignment/update
	// ack) through the scheduler's locked inbound queue instead of
	// applying it inline (spec.md §5). Nil means apply immediately, the
	// node package's own isolated unit tests' behavior.
	PostResult func(apply func())
}

// Queue bits for QueueStatus.
const (
	QueueCheckConditions byte = 1 << iota
	QueueTransition
	QueueAssignment
)

// New creates a node of the given type with an empty local scope. parent
// may be nil for the plan root. A LibraryCall node's own scope blocks
// lookups from walking past it to its parent (spec.md §4.2: "the current
// node is a LibraryCall body, which blocks the walk") — its children's
// scopes are ordinary and simply chain up through it, so a callee sees
// the LibraryCall's alias bindings (declared as that node's own local
// variables) but nothing above it.
func New(clock *plexpr.Clock, id string, nodeType domain.NodeType, parent *Node) *Node {
	var parentScope *scope.Scope
	if parent != nil {
		parentScope = parent.Scope
	}
	n := &Node{
		ID:        id,
		Parent:    parent,
		nodeType:  nodeType,
		clock:     clock,
		Scope:     scope.New(parentScope, nodeType == domain.TypeLibraryCall),
		state:     domain.StateInactive,
		outcome:   domain.OutcomeNone,
		failure:   domain.FailureNone,
		enteredAt: map[domain.NodeState]time.Time{domain.StateInactive: {}},
	}
	n.stateVar = plexpr.NewStateVariable(clock, n)
	n.outcomeVar = plexpr.NewOutcomeVariable(clock, n)
	n.failureVar = plexpr.NewFailureVariable(clock, n)
	return n
}

// NodeID satisfies library.Parent/library.Child.
func (n *Node) NodeID() string { return n.ID }

// Type returns the node's closed body kind.
func (n *Node) Type() domain.NodeType { return n.nodeType }

// NodeState, NodeOutcome, NodeFailure implement plexpr.NodeHandle so the
// three internal variables (and NodeTimepointValue) can read this node's
// fields without an import cycle.
func (n *Node) NodeState() domain.NodeState     { return n.state }
func (n *Node) NodeOutcome() domain.NodeOutcome { return n.outcome }
func (n *Node) NodeFailure() domain.FailureType { return n.failure }

func (n *Node) TimepointEntered(s domain.NodeState) (time.Time, bool) {
	t, ok := n.enteredAt[s]
	return t, ok
}

// Timepoints returns the full entry-time history in chronological order
// (SPEC_FULL.md supplemented feature 1, grounded on
// original_source/NodeVariables.hh's per-state timing accessors).
func (n *Node) Timepoints() []Timepoint {
	out := make([]Timepoint, len(n.timepoints))
	copy(out, n.timepoints)
	return out
}

// StateVariable, OutcomeVariable, FailureVariable expose this node's
// three internal variables for wiring into condition expressions
// (ancestorInvariant referencing a parent's InvariantCondition, a sibling
// reading this node's StateVariable, etc).
func (n *Node) StateVariable() *plexpr.StateVariable     { return n.stateVar }
func (n *Node) OutcomeVariable() *plexpr.OutcomeVariable { return n.outcomeVar }
func (n *Node) FailureVariable() *plexpr.FailureVariable { return n.failureVar }

// Clock returns the shared notifier epoch clock for this node's tree.
func (n *Node) Clock() *plexpr.Clock { return n.clock }

// NotifyChanged implements plexpr.Listener: Node registers itself as a
// listener on every condition slot active in its current state (see
// activateSlotsFor), so a change anywhere in that slot's expression
// subtree — a sibling Assignment's target, an external Lookup, another
// node's StateVariable — marks this node dirty instead of relying on
// being a transitioning node's self/parent/child (spec.md §2's "C1
// change events -> C3 condition re-evaluation -> C6 enqueues node").
func (n *Node) NotifyChanged() { n.dirty = true }

// Dirty reports whether a condition this node listens on has changed
// since the last sweep.
func (n *Node) Dirty() bool { return n.dirty }

// ClearDirty resets the dirty flag once the scheduler has enqueued this
// node for re-evaluation.
func (n *Node) ClearDirty() { n.dirty = false }

// postResult runs apply through PostResult when the scheduler has wired
// one (spec.md §5: a body's asynchronous external callback — a command
// handle, a return value, an abort ack — arriving on another goroutine),
// falling back to applying inline for bodies exercised outside a
// Scheduler (this package's own unit tests). Either way, apply is
// expected to call SetValue/PublishChange on an expression this node
// listens on, which marks the node dirty for the next sweep.
func (n *Node) postResult(apply func()) {
	if n.PostResult != nil {
		n.PostResult(apply)
		return
	}
	apply()
}

// AddLocalVariable implements the parser-facing contract of spec.md §6.1.
func (n *Node) AddLocalVariable(name string, e plexpr.Expression) error {
	return n.Scope.Declare(name, e)
}

// AddUserCondition installs a user-supplied condition in the given slot.
// owned marks whether this node is responsible for the expression's
// teardown (spec.md §3's "per-slot owned-garbage flags"). Calling this
// after FinalizeConditions is a programmer error — the parser must add
// all user conditions before finalizing.
func (n *Node) AddUserCondition(slot domain.ConditionSlot, e plexpr.Expression, owned bool) {
	if slot == domain.SlotEnd {
		n.userEnd = e
		return
	}
	n.conditions[slot] = e
	n.conditionsOwned[slot] = owned
}

// AddChild appends an owned child (List/LibraryCall bodies only).
func (n *Node) AddChild(child *Node) {
	n.Children = append(n.Children, child)
}

// Condition returns the (possibly nil) expression installed in slot. For
// SlotEnd after finalization, this is the implicit-wrapped end condition,
// not the raw user one.
func (n *Node) Condition(slot domain.ConditionSlot) plexpr.Expression {
	return n.conditions[slot]
}

// FinalizeConditions wires the implicit-end contributor (spec.md §4.3)
// and must be called exactly once, after every user condition has been
// added and before the node is ever activated. Absent conditions default
// per spec.md's gate semantics so evaluation never sees "missing" — only
// a user expression can yield "unknown".
func (n *Node) FinalizeConditions() {
	if n.finalized {
		return
	}
	n.finalized = true

	defaultTrue := func(slot domain.ConditionSlot) {
		if n.conditions[slot] == nil {
			n.conditions[slot] = plexpr.NewConstant(n.clock, plexpr.TypeBoolean, true)
			n.conditionsOwned[slot] = true
		}
	}
	defaultFalse := func(slot domain.ConditionSlot) {
		if n.conditions[slot] == nil {
			n.conditions[slot] = plexpr.NewConstant(n.clock, plexpr.TypeBoolean, false)
			n.conditionsOwned[slot] = true
		}
	}
	defaultFalse(domain.SlotSkip)
	defaultFalse(domain.SlotStart)
	defaultTrue(domain.SlotPre)
	defaultFalse(domain.SlotExit)
	defaultTrue(domain.SlotInvariant)
	defaultTrue(domain.SlotPost)
	defaultFalse(domain.SlotRepeat)
	// Ancestor slots are overwritten by WireAncestorConditions once the
	// tree builder knows the parent; these are placeholders for a
	// parentless root.
	defaultFalse(domain.SlotAncestorExit)
	defaultTrue(domain.SlotAncestorInvariant)
	defaultTrue(domain.SlotAncestorEnd)

	implicit := n.Body.ImplicitEnd()
	userEnd := n.userEnd
	if userEnd == nil {
		userEnd = plexpr.NewConstant(n.clock, plexpr.TypeBoolean, true)
	}
	end := userEnd
	if implicit != nil {
		end = plexpr.And(n.clock, userEnd, implicit)
	}
	n.conditions[domain.SlotEnd] = end
	n.conditionsOwned[domain.SlotEnd] = true

	// actionComplete/abortComplete are body-internal (Command's handle
	// and abort-ack predicates); CommandBody installs them directly
	// during construction. Default to always-true for every other type
	// (Empty, Assignment, Update, List, LibraryCall), whose bodies never
	// set them.
	defaultTrue(domain.SlotActionComplete)
	defaultTrue(domain.SlotAbortComplete)
}

// WireAncestorConditions points this node's ancestor-* slots at the
// parent's own exit/invariant/end expressions directly — not clones
// (spec.md invariant: "Ancestor conditions... refer to the parent's
// expression objects"). Call after both this node and its parent have
// been finalized.
func (n *Node) WireAncestorConditions() {
	if n.Parent == nil {
		return
	}
	p := n.Parent
	n.conditions[domain.SlotAncestorExit] = plexpr.Or(n.clock, p.conditions[domain.SlotAncestorExit], p.conditions[domain.SlotExit])
	n.conditions[domain.SlotAncestorInvariant] = plexpr.And(n.clock, p.conditions[domain.SlotAncestorInvariant], p.conditions[domain.SlotInvariant])
	n.conditions[domain.SlotAncestorEnd] = p.conditions[domain.SlotEnd]
	n.conditionsOwned[domain.SlotAncestorExit] = true
	n.conditionsOwned[domain.SlotAncestorInvariant] = true
	n.conditionsOwned[domain.SlotAncestorEnd] = false
}

// activateSlotsFor turns on the condition expressions gated while the
// node occupies state s (spec.md §4.3's per-state transition arrows).
func (n *Node) activateSlotsFor(s domain.NodeState) {
	for _, slot := range n.slotsActiveIn(s) {
		if e := n.conditions[slot]; e != nil {
			e.Activate()
			e.AddListener(n)
		}
	}
}

func (n *Node) deactivateSlotsFor(s domain.NodeState) {
	for _, slot := range n.slotsActiveIn(s) {
		if e := n.conditions[slot]; e != nil {
			e.RemoveListener(n)
			e.Deactivate()
		}
	}
}

func (n *Node) slotsActiveIn(s domain.NodeState) []domain.ConditionSlot {
	switch s {
	case domain.StateWaiting:
		return []domain.ConditionSlot{domain.SlotSkip, domain.SlotAncestorExit, domain.SlotAncestorInvariant, domain.SlotStart, domain.SlotPre}
	case domain.StateExecuting:
		return []domain.ConditionSlot{domain.SlotAncestorExit, domain.SlotExit, domain.SlotAncestorInvariant, domain.SlotInvariant, domain.SlotEnd, domain.SlotPost}
	case domain.StateFinishing:
		return []domain.ConditionSlot{domain.SlotActionComplete, domain.SlotPost}
	case domain.StateFailing:
		return []domain.ConditionSlot{domain.SlotActionComplete}
	case domain.StateIterationEnded:
		return []domain.ConditionSlot{domain.SlotAncestorExit, domain.SlotAncestorInvariant, domain.SlotRepeat}
	default:
		return nil
	}
}

// Reset returns a FINISHED node to INACTIVE (spec.md's "FINISHED ─ parent
// resets ─► INACTIVE"), clearing outcome/failure so a repeated parent
// iteration sees a clean child.
func (n *Node) Reset() {
	n.state = domain.StateInactive
	n.outcome = domain.OutcomeNone
	n.failure = domain.FailureNone
	n.hasPending = false
	for _, c := range n.Children {
		c.Reset()
	}
}

// Destroy tears down this node's owned conditions before its local
// variables, and ancestor-slot wrappers before the local expressions
// they wrap (spec.md invariant P7 / §3's cleanup-order invariant). Local
// variables are simply dropped with the Scope; a Go garbage collector
// reclaims the rest once nothing references them.
func (n *Node) Destroy() {
	for _, c := range n.Children {
		c.Destroy()
	}
	ancestorSlots := []domain.ConditionSlot{domain.SlotAncestorExit, domain.SlotAncestorInvariant, domain.SlotAncestorEnd}
	for _, slot := range ancestorSlots {
		if n.conditionsOwned[slot] {
			n.conditions[slot] = nil
		}
	}
	for slot := domain.ConditionSlot(0); slot < domain.ConditionSlot(domain.NumConditionSlots()); slot++ {
		if n.conditionsOwned[slot] {
			n.conditions[slot] = nil
		}
	}
	n.Scope = nil
}
