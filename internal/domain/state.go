// Package domain holds the value types shared across the plan execution
// core: node states, outcomes, failure types, condition slots, and the
// error taxonomy. Nothing here depends on the expression graph, the node
// tree, or the scheduler, so any of those packages can import it freely.
package domain

// NodeState is the lifecycle state of a Node. Declared in the order the
// state machine advances through them; ordering is not load-bearing for
// comparisons, only for readability (legality checks below use set
// membership, not numeric order).
type NodeState int

const (
	StateInactive NodeState = iota
	StateWaiting
	StateExecuting
	StateIterationEnded
	StateFinished
	StateFailing
	StateFinishing
)

func (s NodeState) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateWaiting:
		return "WAITING"
	case StateExecuting:
		return "EXECUTING"
	case StateIterationEnded:
		return "ITERATION_ENDED"
	case StateFinished:
		return "FINISHED"
	case StateFailing:
		return "FAILING"
	case StateFinishing:
		return "FINISHING"
	default:
		return "UNKNOWN_STATE"
	}
}

// NodeOutcome is the result recorded when a node leaves EXECUTING/FINISHING/
// FAILING for ITERATION_ENDED or FINISHED.
type NodeOutcome int

const (
	OutcomeNone NodeOutcome = iota
	OutcomeSuccess
	OutcomeFailure
	OutcomeSkipped
	OutcomeInterrupted
)

func (o NodeOutcome) String() string {
	switch o {
	case OutcomeNone:
		return "NO_OUTCOME"
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeFailure:
		return "FAILURE"
	case OutcomeSkipped:
		return "SKIPPED"
	case OutcomeInterrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN_OUTCOME"
	}
}

// IsKnown implements the "NO_OUTCOME reports as unknown" invariant of
// spec.md §3.
func (o NodeOutcome) IsKnown() bool {
	return o != OutcomeNone
}

// FailureType refines an OutcomeFailure/OutcomeInterrupted with the reason.
type FailureType int

const (
	FailureNone FailureType = iota
	FailurePreCondition
	FailurePostCondition
	FailureInvariantCondition
	FailureParentFailed
	FailureExited
	FailureParentExited
)

func (f FailureType) String() string {
	switch f {
	case FailureNone:
		return "NO_FAILURE"
	case FailurePreCondition:
		return "PRE_CONDITION_FAILED"
	case FailurePostCondition:
		return "POST_CONDITION_FAILED"
	case FailureInvariantCondition:
		return "INVARIANT_CONDITION_FAILED"
	case FailureParentFailed:
		return "PARENT_FAILED"
	case FailureExited:
		return "EXITED"
	case FailureParentExited:
		return "PARENT_EXITED"
	default:
		return "UNKNOWN_FAILURE"
	}
}

// ConditionSlot indexes the thirteen gate-condition slots of spec.md §3.
// Order matters: ancestor slots precede their local counterparts so that
// node teardown can release them in the order invariant (7) requires.
type ConditionSlot int

const (
	SlotAncestorExit ConditionSlot = iota
	SlotAncestorInvariant
	SlotAncestorEnd
	SlotSkip
	SlotStart
	SlotPre
	SlotExit
	SlotInvariant
	SlotEnd
	SlotPost
	SlotRepeat
	SlotActionComplete
	SlotAbortComplete

	numConditionSlots
)

func (s ConditionSlot) String() string {
	switch s {
	case SlotAncestorExit:
		return "ancestorExit"
	case SlotAncestorInvariant:
		return "ancestorInvariant"
	case SlotAncestorEnd:
		return "ancestorEnd"
	case SlotSkip:
		return "skip"
	case SlotStart:
		return "start"
	case SlotPre:
		return "pre"
	case SlotExit:
		return "exit"
	case SlotInvariant:
		return "invariant"
	case SlotEnd:
		return "end"
	case SlotPost:
		return "post"
	case SlotRepeat:
		return "repeat"
	case SlotActionComplete:
		return "actionComplete"
	case SlotAbortComplete:
		return "abortComplete"
	default:
		return "unknownSlot"
	}
}

// NumConditionSlots is the fixed width of a Node's condition-slot array.
func NumConditionSlots() int { return int(numConditionSlots) }

// NodeType is the closed set of node body kinds (spec.md §3).
type NodeType int

const (
	TypeEmpty NodeType = iota
	TypeAssignment
	TypeCommand
	TypeUpdate
	TypeNodeList
	TypeLibraryCall
)

func (t NodeType) String() string {
	switch t {
	case TypeEmpty:
		return "Empty"
	case TypeAssignment:
		return "Assignment"
	case TypeCommand:
		return "Command"
	case TypeUpdate:
		return "Update"
	case TypeNodeList:
		return "NodeList"
	case TypeLibraryCall:
		return "LibraryNodeCall"
	default:
		return "UnknownNodeType"
	}
}

// legalStates enumerates, per spec.md §4.3's type specializations, the
// states a node of this type may ever occupy. FINISHED is terminal and
// reachable by every type; it is not "beyond" FAILING/FINISHING in any
// numeric sense, so legality is a set membership check rather than a
// numeric cutoff against a single "maxState" integer.
var legalStates = map[NodeType]map[NodeState]bool{
	TypeEmpty: {
		StateInactive: true, StateWaiting: true, StateExecuting: true,
		StateIterationEnded: true, StateFinished: true,
	},
	TypeAssignment: {
		StateInactive: true, StateWaiting: true, StateExecuting: true,
		StateIterationEnded: true, StateFinished: true, StateFailing: true,
	},
	TypeUpdate: {
		StateInactive: true, StateWaiting: true, StateExecuting: true,
		StateIterationEnded: true, StateFinished: true, StateFailing: true,
	},
	TypeCommand: {
		StateInactive: true, StateWaiting: true, StateExecuting: true,
		StateIterationEnded: true, StateFinished: true, StateFailing: true,
		StateFinishing: true,
	},
	TypeNodeList: {
		StateInactive: true, StateWaiting: true, StateExecuting: true,
		StateIterationEnded: true, StateFinished: true, StateFailing: true,
		StateFinishing: true,
	},
	TypeLibraryCall: {
		StateInactive: true, StateWaiting: true, StateExecuting: true,
		StateIterationEnded: true, StateFinished: true, StateFailing: true,
		StateFinishing: true,
	},
}

// IsLegalState reports whether a node of this type may occupy the given
// state. Used to enforce spec.md's "the executor never assigns a state
// outside maxState" invariant (P1).
func (t NodeType) IsLegalState(s NodeState) bool {
	states, ok := legalStates[t]
	if !ok {
		return false
	}
	return states[s]
}

// HasFailing reports whether this node type ever routes through FAILING.
// Empty nodes do not (spec.md §4.3: the ancestorExit/exit→FAILING
// transition is listed for List/Command/Update/Assignment only).
func (t NodeType) HasFailing() bool {
	return t != TypeEmpty
}

// HasFinishing reports whether this node type routes EXECUTING→FINISHING
// on end, versus Empty/Assignment/Update which go straight to
// ITERATION_ENDED.
func (t NodeType) HasFinishing() bool {
	switch t {
	case TypeCommand, TypeNodeList, TypeLibraryCall:
		return true
	default:
		return false
	}
}
