package node

import (
	"time"

	"github.com/arclight-systems/planexec/internal/domain"
)

// destResult is the side-effect-free output of GetDestState.
type destResult struct {
	state   domain.NodeState
	outcome domain.NodeOutcome
	failure domain.FailureType
	changed bool
}

// Changed reports whether GetDestState found an applicable transition.
// Exported so the scheduler package can decide whether to enqueue a node
// for commit without needing to name the unexported destResult type.
func (d destResult) Changed() bool { return d.changed }

func known(cond interface {
	GetValue() (any, bool)
}) (bool, bool) {
	v, ok := cond.GetValue()
	if !ok {
		return false, false
	}
	b, _ := v.(bool)
	return b, true
}

// GetDestState computes, without mutating anything, the state this node
// would transition to given its current condition values (spec.md
// §4.3/§8 P2/P3: total given known conditions, idempotent, side-effect
// free). Returns changed=false when no transition applies — either the
// node is in a terminal/quiescent configuration, or a gating condition is
// still unknown.
func (n *Node) GetDestState() destResult {
	switch n.state {
	case domain.StateInactive:
		return destResult{}
	case domain.StateWaiting:
		return n.destFromWaiting()
	case domain.StateExecuting:
		return n.destFromExecuting()
	case domain.StateFinishing:
		return n.destFromFinishing()
	case domain.StateFailing:
		return n.destFromFailing()
	case domain.StateIterationEnded:
		return n.destFromIterationEnded()
	case domain.StateFinished:
		return destResult{}
	default:
		return destResult{}
	}
}

func (n *Node) destFromWaiting() destResult {
	if v, ok := known(n.conditions[domain.SlotAncestorExit]); ok && v {
		return destResult{domain.StateFinished, domain.OutcomeInterrupted, domain.FailureParentExited, true}
	}
	if v, ok := known(n.conditions[domain.SlotAncestorInvariant]); ok && !v {
		return destResult{domain.StateFinished, domain.OutcomeFailure, domain.FailureParentFailed, true}
	}
	if v, ok := known(n.conditions[domain.SlotSkip]); ok && v {
		return destResult{domain.StateFinished, domain.OutcomeSkipped, domain.FailureNone, true}
	}
	startOK, startKnown := known(n.conditions[domain.SlotStart])
	if !startKnown || !startOK {
		return destResult{}
	}
	preOK, preKnown := known(n.conditions[domain.SlotPre])
	if !preKnown {
		return destResult{}
	}
	if preOK {
		return destResult{domain.StateExecuting, domain.OutcomeNone, domain.FailureNone, true}
	}
	return destResult{domain.StateIterationEnded, domain.OutcomeFailure, domain.FailurePreCondition, true}
}

func (n *Node) destFromExecuting() destResult {
	hasFailing := n.nodeType.HasFailing()
	failDest := domain.StateFailing
	if !hasFailing {
		failDest = domain.StateIterationEnded
	}

	if v, ok := known(n.conditions[domain.SlotAncestorExit]); ok && v {
		return destResult{failDest, domain.OutcomeInterrupted, domain.FailureParentExited, true}
	}
	if v, ok := known(n.conditions[domain.SlotExit]); ok && v {
		return destResult{failDest, domain.OutcomeInterrupted, domain.FailureExited, true}
	}
	if v, ok := known(n.conditions[domain.SlotAncestorInvariant]); ok && !v {
		return destResult{failDest, domain.OutcomeFailure, domain.FailureParentFailed, true}
	}
	if v, ok := known(n.conditions[domain.SlotInvariant]); ok && !v {
		return destResult{failDest, domain.OutcomeFailure, domain.FailureInvariantCondition, true}
	}
	endOK, endKnown := known(n.conditions[domain.SlotEnd])
	if !endKnown || !endOK {
		return destResult{}
	}
	if n.nodeType.HasFinishing() {
		return destResult{domain.StateFinishing, domain.OutcomeNone, domain.FailureNone, true}
	}
	postOK, postKnown := known(n.conditions[domain.SlotPost])
	if !postKnown {
		return destResult{}
	}
	if postOK {
		return destResult{domain.StateIterationEnded, domain.OutcomeSuccess, domain.FailureNone, true}
	}
	return destResult{domain.StateIterationEnded, domain.OutcomeFailure, domain.FailurePostCondition, true}
}

func (n *Node) destFromFinishing() destResult {
	acOK, acKnown := known(n.conditions[domain.SlotActionComplete])
	if !acKnown || !acOK {
		return destResult{}
	}
	postOK, postKnown := known(n.conditions[domain.SlotPost])
	if !postKnown {
		return destResult{}
	}
	if postOK {
		return destResult{domain.StateIterationEnded, domain.OutcomeSuccess, domain.FailureNone, true}
	}
	return destResult{domain.StateIterationEnded, domain.OutcomeFailure, domain.FailurePostCondition, true}
}

func (n *Node) destFromFailing() destResult {
	acOK, acKnown := known(n.conditions[domain.SlotActionComplete])
	if !acKnown || !acOK {
		return destResult{}
	}
	if n.failure == domain.FailureParentFailed || n.failure == domain.FailureParentExited {
		return destResult{domain.StateFinished, n.outcome, n.failure, true}
	}
	return destResult{domain.StateIterationEnded, n.outcome, n.failure, true}
}

func (n *Node) destFromIterationEnded() destResult {
	if v, ok := known(n.conditions[domain.SlotAncestorExit]); ok && v {
		return destResult{domain.StateFinished, n.outcome, n.failure, true}
	}
	if v, ok := known(n.conditions[domain.SlotAncestorInvariant]); ok && !v {
		return destResult{domain.StateFinished, n.outcome, n.failure, true}
	}
	repeatOK, repeatKnown := known(n.conditions[domain.SlotRepeat])
	if !repeatKnown {
		return destResult{}
	}
	if repeatOK {
		return destResult{domain.StateWaiting, domain.OutcomeNone, domain.FailureNone, true}
	}
	return destResult{domain.StateFinished, n.outcome, n.failure, true}
}

// Transition commits the result of the most recent GetDestState call,
// timestamps the new state, and runs the type-specific entry actions
// (spec.md §4.3: "transition commits them and records a timepoint entry").
// now is supplied by the caller (the scheduler) rather than read via
// time.Now() here, keeping this method deterministic and testable.
func (n *Node) Transition(now time.Time, dest destResult) {
	if !dest.changed {
		return
	}
	old := n.state
	n.deactivateSlotsFor(old)

	n.state = dest.state
	if dest.outcome != domain.OutcomeNone || dest.state == domain.StateFinished || dest.state == domain.StateIterationEnded {
		n.outcome = dest.outcome
	}
	n.failure = dest.failure

	n.enteredAt[dest.state] = now
	n.timepoints = append(n.timepoints, Timepoint{State: dest.state, EnteredAt: now})

	// The three internal node variables (spec.md §3) just changed value;
	// publish so any condition elsewhere in the tree that reads this
	// node's StateVariable/OutcomeVariable/FailureVariable re-evaluates.
	n.stateVar.PublishChange()
	n.outcomeVar.PublishChange()
	n.failureVar.PublishChange()

	if dest.state == domain.StateWaiting {
		n.outcome = domain.OutcomeNone
		n.failure = domain.FailureNone
		for _, c := range n.Children {
			c.Reset()
		}
	}

	n.activateSlotsFor(dest.state)

	switch dest.state {
	case domain.StateExecuting:
		n.Body.OnEnterExecuting(n)
	case domain.StateFailing:
		n.Body.OnEnterFailing(n)
	}
}

// ForceTransition drives a node directly into state/outcome/failure
// outside the normal condition-derived GetDestState/Transition path. The
// only caller is the scheduler's assignment-conflict resolution (spec.md
// §4.5.1): every Assignment that does not win its group (tied or lower
// priority) is forced into FAILING with INVARIANT_CONDITION_FAILED/FAILURE
// rather than committing its write.
func (n *Node) ForceTransition(now time.Time, state domain.NodeState, outcome domain.NodeOutcome, failure domain.FailureType) {
	n.Transition(now, destResult{state: state, outcome: outcome, failure: failure, changed: true})
}

// Activate moves a node from INACTIVE to WAITING. Called by the
// scheduler when the parent (or the host, for the plan root) first
// admits this node — spec.md's "INACTIVE ─ parent WAITING/EXECUTING ─►
// WAITING".
func (n *Node) Activate(now time.Time) {
	if n.state != domain.StateInactive {
		return
	}
	n.state = domain.StateWaiting
	n.enteredAt[domain.StateWaiting] = now
	n.timepoints = append(n.timepoints, Timepoint{State: domain.StateWaiting, EnteredAt: now})
	n.stateVar.PublishChange()
	n.activateSlotsFor(domain.StateWaiting)
}

// AllChildrenFinished implements the NodeList/LibraryCall implicit
// contributor to the end condition (spec.md §4.4): true iff every child
// is in FINISHED.
func (n *Node) AllChildrenFinished() bool {
	for _, c := range n.Children {
		if c.state != domain.StateFinished {
			return false
		}
	}
	return true
}
