// Package scheduler implements the Exec scheduler (C6): a
// single-threaded cooperative loop draining its check-conditions queue
// (which also commits transitions) and its assignment queue to quiescence,
// resolving Assignment conflicts by priority at the end of each
// macro-step (spec.md §4.5).
package scheduler

import (
	"sync"
	"time"

	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/node"
	"github.com/arclight-systems/planexec/internal/plexpr"
	"github.com/arclight-systems/planexec/internal/telemetry"
	"github.com/rs/zerolog"
)

// assignmentBody is the slice of AssignmentBody's surface the scheduler
// needs; matched structurally against node.Body so this package never
// imports node's unexported body types.
type assignmentBody interface {
	ReadyToCommit() bool
	RootVariable() plexpr.Assignable
	ConflictPriority() int32
	Commit()
}

// inboundResult is one asynchronous callback delivery (a command handle,
// return value or abort ack, an assignment or update ack) queued by a
// node body's external-interface callback
// from another goroutine (spec.md §5: "results MUST be posted into a
// lock-protected inbound queue that the scheduler drains at the top of
// each macro-step").
type inboundResult struct {
	apply func()
}

// Scheduler owns one node tree and drives it to quiescence. It is not
// safe for concurrent use except through PostResult, which is the only
// entry point intended to be called from another goroutine.
type Scheduler struct {
	Root     *node.Node
	PlanID   string
	Policy   ConflictPolicy
	Log      zerolog.Logger
	Observer telemetry.TransitionObserver // optional; nil is a valid no-op

	mu      sync.Mutex
	inbound []inboundResult

	q1 map[*node.Node]bool // check-conditions
	q3 map[*node.Node]bool // assignment-ready
}

// New builds a Scheduler over root, using the default tie-break-as-
// failure conflict policy unless overridden by the caller.
func New(root *node.Node, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		Root:   root,
		Policy: DefaultPolicy{},
		Log:    logger,
		q1:     make(map[*node.Node]bool),
		q3:     make(map[*node.Node]bool),
	}
}

// observe forwards a committed transition to the configured telemetry
// observer, if any (internal/telemetry's audit store and websocket
// broadcaster both implement it; neither feeds back into scheduling).
func (s *Scheduler) observe(now time.Time, n *node.Node) {
	if s.Observer == nil {
		return
	}
	s.Observer.ObserveTransition(telemetry.TransitionEvent{
		Timestamp: now,
		PlanID:    s.PlanID,
		NodeID:    n.ID,
		State:     n.NodeState(),
		Outcome:   n.NodeOutcome(),
		Failure:   n.NodeFailure(),
	})
}

// PostResult enqueues an externally-delivered callback for application at
// the top of the next macro-step. This is the only method safe to call
// from a goroutine other than the one driving RunToQuiescence — spec.md
// §5's "exactly one mutex protecting the inbound queue. No other locks."
func (s *Scheduler) PostResult(apply func()) {
	s.mu.Lock()
	s.inbound = append(s.inbound, inboundResult{apply: apply})
	s.mu.Unlock()
}

func (s *Scheduler) drainInbound() bool {
	s.mu.Lock()
	pending := s.inbound
	s.inbound = nil
	s.mu.Unlock()
	for _, r := range pending {
		r.apply()
	}
	return len(pending) > 0
}

func (s *Scheduler) pendingInbound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inbound) > 0
}

// EnqueueCheckConditions puts n on Q1, deduplicated per spec.md §4.5's
// "at most once per queue per cycle".
func (s *Scheduler) EnqueueCheckConditions(n *node.Node) {
	if n.QueueStatus&node.QueueCheckConditions != 0 {
		return
	}
	n.QueueStatus |= node.QueueCheckConditions
	s.q1[n] = true
}

func (s *Scheduler) enqueueAssignment(n *node.Node) {
	if n.QueueStatus&node.QueueAssignment != 0 {
		return
	}
	n.QueueStatus |= node.QueueAssignment
	s.q3[n] = true
}

// Activate admits n (not its children, which macroStep activates once n
// enters EXECUTING) from INACTIVE into WAITING and seeds Q1 so gate
// conditions are
// evaluated on the next macro-step. It also wires n.PostResult to this
// scheduler's locked inbound queue (spec.md §5), so a body's external
// callbacks (a Command handle, an assignment/update ack) land back on
// the scheduler's own goroutine instead of applying inline.
func (s *Scheduler) Activate(n *node.Node, now time.Time) {
	n.PostResult = s.PostResult
	n.Activate(now)
	s.EnqueueCheckConditions(n)
}

// RunToQuiescence runs macro-steps until Q1 and Q3 are both empty and no
// inbound results are pending (spec.md §4.5's "Macro-step" loop: "repeat
// until all three queues are empty and no external events are pending").
// now is the timestamp recorded on every transition this drain commits;
// callers that need distinct wall-clock timestamps per step should call
// RunToQuiescence repeatedly rather than looping across real time
// internally.
//
// Each iteration is one micro-step (spec.md §4.5 step 4): the clock ticks
// once before any inbound callback or commit runs, so every C1 change
// published during the round shares one epoch, then sweepDirty drains the
// per-node "dirty" set C1 published into and enqueues every affected node
// on Q1 — not just the self/parent/children of a node that just
// transitioned (spec.md §2's "C1 change events -> C3 condition
// re-evaluation -> C6 enqueues node").
func (s *Scheduler) RunToQuiescence(now time.Time) {
	for {
		s.Root.Clock().Tick()
		gotInbound := s.drainInbound()
		didWork := s.macroStep(now)
		s.sweepDirty()
		if !gotInbound && !didWork && len(s.q1) == 0 && len(s.q3) == 0 && !s.pendingInbound() {
			return
		}
	}
}

// sweepDirty enqueues every node in the tree whose NotifyChanged fired
// since the last sweep (see node.Node.NotifyChanged/Dirty/ClearDirty),
// closing the C1 -> C6 gap a purely structural (self/parent/child)
// re-enqueue misses: a sibling's Assignment target, an external Lookup,
// another node's StateVariable/OutcomeVariable.
func (s *Scheduler) sweepDirty() {
	s.sweepDirtyNode(s.Root)
}

func (s *Scheduler) sweepDirtyNode(n *node.Node) {
	if n.Dirty() {
		n.ClearDirty()
		s.EnqueueCheckConditions(n)
	}
	for _, c := range n.Children {
		s.sweepDirtyNode(c)
	}
}

// macroStep drains Q1 (re-checking, committing, and re-enqueueing
// neighbors as needed) then Q3 (assignment conflict resolution) once, and
// reports whether either did anything.
func (s *Scheduler) macroStep(now time.Time) bool {
	didWork := false

	for len(s.q1) > 0 {
		n := popOne(s.q1)
		n.QueueStatus &^= node.QueueCheckConditions

		wasExecuting := isExecuting(n)
		dest := n.GetDestState()
		if dest.Changed() {
			n.Transition(now, dest)
			didWork = true
			s.Log.Debug().Str("node", n.ID).Str("state", n.NodeState().String()).Msg("transition committed")
			s.observe(now, n)

			s.EnqueueCheckConditions(n)
			if n.Parent != nil {
				s.EnqueueCheckConditions(n.Parent)
			}
			nowExecuting := isExecuting(n)
			if !wasExecuting && nowExecuting {
				for _, c := range n.Children {
					s.Activate(c, now)
				}
			}
			for _, c := range n.Children {
				s.EnqueueCheckConditions(c)
			}
		}

		if ab, ok := n.Body.(assignmentBody); ok && isExecuting(n) && ab.ReadyToCommit() {
			s.enqueueAssignment(n)
		}
	}

	if len(s.q3) > 0 {
		s.resolveAssignments(now)
		didWork = true
	}

	return didWork
}

func isExecuting(n *node.Node) bool {
	return n.NodeState() == domain.StateExecuting
}

func popOne(m map[*node.Node]bool) *node.Node {
	for n := range m {
		delete(m, n)
		return n
	}
	return nil
}
