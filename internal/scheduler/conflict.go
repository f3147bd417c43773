package scheduler

import (
	"time"

	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/node"
	"github.com/arclight-systems/planexec/internal/plexpr"
)

// ConflictPolicy decides the winner among Assignment nodes that target
// the same root variable in the same macro-step (spec.md §4.5.1). It is
// the Open-Question hook SPEC_FULL.md records: a plan may substitute a
// different tie-break (e.g. first-declared-wins) without touching the
// scheduler's drain loop.
type ConflictPolicy interface {
	// Resolve returns the winning node among candidates targeting the
	// same root variable, or nil if the group is tied and every
	// candidate must fail instead of committing.
	Resolve(candidates []*node.Node, priorityOf func(*node.Node) int32) *node.Node
}

// DefaultPolicy implements spec.md §4.5.1's strictly-highest-priority-wins
// rule: a single highest priority commits; a tie between two or more
// candidates fails all of them, not a lucky first-found one.
type DefaultPolicy struct{}

func (DefaultPolicy) Resolve(candidates []*node.Node, priorityOf func(*node.Node) int32) *node.Node {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	bestPriority := priorityOf(best)
	tied := false
	for _, c := range candidates[1:] {
		p := priorityOf(c)
		switch {
		case p > bestPriority:
			best, bestPriority, tied = c, p, false
		case p == bestPriority:
			tied = true
		}
	}
	if tied {
		return nil
	}
	return best
}

// resolveAssignments drains Q3: groups ready Assignment nodes by their
// root destination variable (spec.md §4.5.1: "grouped by root destination
// variable — not by the alias used to reach it"), lets the configured
// Policy pick a winner per group, commits the winner's write, and forces
// every loser straight into FAILING with INVARIANT_CONDITION_FAILED
// (spec.md: "a losing Assignment fails its own INVARIANT_CONDITION_FAILED,
// not a silently-dropped write").
func (s *Scheduler) resolveAssignments(now time.Time) {
	groups := make(map[plexpr.Assignable][]*node.Node)
	priorities := make(map[*node.Node]int32)
	bodies := make(map[*node.Node]assignmentBody)

	for n := range s.q3 {
		delete(s.q3, n)
		n.QueueStatus &^= node.QueueAssignment
		ab, ok := n.Body.(assignmentBody)
		if !ok {
			continue
		}
		if !ab.ReadyToCommit() {
			continue
		}
		root := ab.RootVariable()
		groups[root] = append(groups[root], n)
		bodies[n] = ab
		priorities[n] = ab.ConflictPriority()
	}

	for _, candidates := range groups {
		priorityOf := func(n *node.Node) int32 { return priorities[n] }
		winner := s.Policy.Resolve(candidates, priorityOf)
		for _, n := range candidates {
			if n == winner {
				bodies[n].Commit()
				s.EnqueueCheckConditions(n)
				continue
			}
			// Every other candidate in this macro-step's group fails here,
			// not just the tied-highest ones spec.md §4.5.1 names — a
			// strictly-lower-priority candidate that could still win on a
			// later macro-step (once the current winner is no longer in the
			// running) is forced to FAILING immediately instead of staying
			// in Q3. Scenario §8.4 expects exactly this (the priority-1
			// loser ends in FAILING against a same-step priority-2 winner),
			// so this is left as-is rather than re-queued.
			n.ForceTransition(now, domain.StateFailing, domain.OutcomeFailure, domain.FailureInvariantCondition)
			s.observe(now, n)
			s.EnqueueCheckConditions(n)
			if n.Parent != nil {
				s.EnqueueCheckConditions(n.Parent)
			}
		}
	}
}
