package scheduler

import (
	"testing"
	"time"

	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/iface"
	"github.com/arclight-systems/planexec/internal/node"
	"github.com/arclight-systems/planexec/internal/plexpr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerDrivesEmptyNodeToFinished(t *testing.T) {
	clock := plexpr.NewClock()
	n := node.New(clock, "n", domain.TypeEmpty, nil)
	node.NewEmptyBody(n)
	n.AddUserCondition(domain.SlotStart, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	n.AddUserCondition(domain.SlotEnd, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	n.FinalizeConditions()
	activateAllConditions(n)

	s := New(n, zerolog.Nop())
	now := time.Now()
	s.Activate(n, now)
	s.RunToQuiescence(now)

	assert.Equal(t, domain.StateFinished, n.NodeState())
	assert.Equal(t, domain.OutcomeSuccess, n.NodeOutcome())
}

func TestSchedulerResolvesAssignmentConflictByPriority(t *testing.T) {
	clock := plexpr.NewClock()
	root := node.New(clock, "root", domain.TypeNodeList, nil)
	node.NewNodeListBody(root)

	target := plexpr.NewUserVariable(clock, plexpr.TypeInteger)
	target.Activate()
	ext := iface.NewRecorder()

	low := node.New(clock, "low", domain.TypeAssignment, root)
	node.NewAssignmentBody(low, target, plexpr.NewConstant(clock, plexpr.TypeInteger, int64(1)), 1, ext)
	low.AddUserCondition(domain.SlotStart, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	low.FinalizeConditions()

	high := node.New(clock, "high", domain.TypeAssignment, root)
	node.NewAssignmentBody(high, target, plexpr.NewConstant(clock, plexpr.TypeInteger, int64(2)), 2, ext)
	high.AddUserCondition(domain.SlotStart, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	high.FinalizeConditions()

	root.AddChild(low)
	root.AddChild(high)
	root.AddUserCondition(domain.SlotStart, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	root.FinalizeConditions()
	low.WireAncestorConditions()
	high.WireAncestorConditions()
	activateAllConditions(root)

	s := New(root, zerolog.Nop())
	now := time.Now()
	s.Activate(root, now)
	s.RunToQuiescence(now)

	assert.Equal(t, domain.StateFinished, high.NodeState())
	assert.Equal(t, domain.OutcomeSuccess, high.NodeOutcome())
	assert.Equal(t, domain.StateFinished, low.NodeState())
	assert.Equal(t, domain.OutcomeFailure, low.NodeOutcome())
	assert.Equal(t, domain.FailureInvariantCondition, low.NodeFailure())

	val, ok := target.GetValue()
	require.True(t, ok)
	assert.Equal(t, int64(2), val)
}

func TestSchedulerTiedPriorityFailsBothAssignments(t *testing.T) {
	clock := plexpr.NewClock()
	root := node.New(clock, "root", domain.TypeNodeList, nil)
	node.NewNodeListBody(root)

	target := plexpr.NewUserVariable(clock, plexpr.TypeInteger)
	target.Activate()
	ext := iface.NewRecorder()

	a := node.New(clock, "a", domain.TypeAssignment, root)
	node.NewAssignmentBody(a, target, plexpr.NewConstant(clock, plexpr.TypeInteger, int64(1)), 5, ext)
	a.AddUserCondition(domain.SlotStart, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	a.FinalizeConditions()

	b := node.New(clock, "b", domain.TypeAssignment, root)
	node.NewAssignmentBody(b, target, plexpr.NewConstant(clock, plexpr.TypeInteger, int64(2)), 5, ext)
	b.AddUserCondition(domain.SlotStart, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	b.FinalizeConditions()

	root.AddChild(a)
	root.AddChild(b)
	root.AddUserCondition(domain.SlotStart, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	root.FinalizeConditions()
	a.WireAncestorConditions()
	b.WireAncestorConditions()
	activateAllConditions(root)

	s := New(root, zerolog.Nop())
	now := time.Now()
	s.Activate(root, now)
	s.RunToQuiescence(now)

	assert.Equal(t, domain.OutcomeFailure, a.NodeOutcome())
	assert.Equal(t, domain.FailureInvariantCondition, a.NodeFailure())
	assert.Equal(t, domain.OutcomeFailure, b.NodeOutcome())
	assert.Equal(t, domain.FailureInvariantCondition, b.NodeFailure())

	_, ok := target.GetValue()
	assert.False(t, ok)
}

func activateAllConditions(n *node.Node) {
	for slot := domain.ConditionSlot(0); slot < domain.ConditionSlot(domain.NumConditionSlots()); slot++ {
		if c := n.Condition(slot); c != nil {
			c.Activate()
		}
	}
	for _, c := range n.Children {
		activateAllConditions(c)
	}
}
