package node

import (
	"testing"
	"time"

	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/iface"
	"github.com/arclight-systems/planexec/internal/plexpr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// driveToQuiescence repeatedly computes and commits transitions for n and
// (recursively) its children until nothing changes, a minimal stand-in
// for the real scheduler's Q1/Q2 drain used only to exercise Node/Body
// semantics in isolation.
func driveToQuiescence(t *testing.T, n *Node, now time.Time) {
	t.Helper()
	for i := 0; i < 64; i++ {
		changed := false
		var walk func(*Node)
		walk = func(node *Node) {
			if node.state == domain.StateInactive {
				return
			}
			dest := node.GetDestState()
			if dest.changed {
				wasExecuting := node.state != domain.StateExecuting
				node.Transition(now, dest)
				changed = true
				if wasExecuting && node.state == domain.StateExecuting {
					for _, c := range node.Children {
						c.Activate(now)
					}
				}
			}
			for _, c := range node.Children {
				walk(c)
			}
		}
		walk(n)
		if !changed {
			return
		}
	}
	t.Fatal("did not reach quiescence")
}

func TestEmptyNodeHappyPath(t *testing.T) {
	clock := plexpr.NewClock()
	n := New(clock, "n", domain.TypeEmpty, nil)
	NewEmptyBody(n)
	n.AddUserCondition(domain.SlotStart, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	n.AddUserCondition(domain.SlotEnd, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	n.FinalizeConditions()
	for slot := domain.ConditionSlot(0); slot < domain.ConditionSlot(domain.NumConditionSlots()); slot++ {
		if c := n.Condition(slot); c != nil {
			c.Activate()
		}
	}

	now := time.Now()
	n.Activate(now)
	driveToQuiescence(t, n, now)

	assert.Equal(t, domain.StateFinished, n.NodeState())
	assert.Equal(t, domain.OutcomeSuccess, n.NodeOutcome())
}

func TestEmptyNodePreConditionFailure(t *testing.T) {
	clock := plexpr.NewClock()
	n := New(clock, "n", domain.TypeEmpty, nil)
	NewEmptyBody(n)
	n.AddUserCondition(domain.SlotStart, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	n.AddUserCondition(domain.SlotPre, plexpr.NewConstant(clock, plexpr.TypeBoolean, false), true)
	n.FinalizeConditions()
	for slot := domain.ConditionSlot(0); slot < domain.ConditionSlot(domain.NumConditionSlots()); slot++ {
		if c := n.Condition(slot); c != nil {
			c.Activate()
		}
	}

	now := time.Now()
	n.Activate(now)
	driveToQuiescence(t, n, now)

	assert.Equal(t, domain.StateFinished, n.NodeState())
	assert.Equal(t, domain.OutcomeFailure, n.NodeOutcome())
	assert.Equal(t, domain.FailurePreCondition, n.NodeFailure())
}

func TestEmptyNodeRepeatLoop(t *testing.T) {
	clock := plexpr.NewClock()
	n := New(clock, "n", domain.TypeEmpty, nil)
	NewEmptyBody(n)

	counter := plexpr.NewUserVariable(clock, plexpr.TypeInteger)
	counter.SetInitializer(plexpr.NewConstant(clock, plexpr.TypeInteger, int64(0)), true)
	require.NoError(t, n.AddLocalVariable("counter", counter))

	n.AddUserCondition(domain.SlotStart, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	incremented, err := plexpr.CompileExpr(clock, "counter + 1", map[string]plexpr.Expression{"counter": counter}, plexpr.TypeInteger)
	require.NoError(t, err)
	_ = incremented
	n.AddUserCondition(domain.SlotEnd, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	repeatExpr, err := plexpr.CompileExpr(clock, "counter < 3", map[string]plexpr.Expression{"counter": counter}, plexpr.TypeBoolean)
	require.NoError(t, err)
	n.AddUserCondition(domain.SlotRepeat, repeatExpr, true)
	n.FinalizeConditions()
	for slot := domain.ConditionSlot(0); slot < domain.ConditionSlot(domain.NumConditionSlots()); slot++ {
		if c := n.Condition(slot); c != nil {
			c.Activate()
		}
	}
	counter.Activate()

	now := time.Now()
	n.Activate(now)

	for i := 0; i < 3; i++ {
		driveToQuiescenceOnce(n, now)
		require.Equal(t, domain.StateIterationEnded, n.NodeState())
		val, _ := counter.GetValue()
		counter.SetValue(val.(int64) + 1)
		driveToQuiescenceOnce(n, now)
	}

	assert.Equal(t, domain.StateFinished, n.NodeState())
	assert.Equal(t, domain.OutcomeSuccess, n.NodeOutcome())
}

func driveToQuiescenceOnce(n *Node, now time.Time) {
	for i := 0; i < 8; i++ {
		dest := n.GetDestState()
		if !dest.changed {
			return
		}
		n.Transition(now, dest)
		if dest.state == domain.StateIterationEnded {
			return
		}
	}
}

func TestAssignmentConflictTwoChildrenPriority(t *testing.T) {
	clock := plexpr.NewClock()
	root := New(clock, "root", domain.TypeNodeList, nil)
	NewNodeListBody(root)

	target := plexpr.NewUserVariable(clock, plexpr.TypeInteger)
	target.Activate()
	ext := iface.NewRecorder()

	low := New(clock, "low", domain.TypeAssignment, root)
	lowBody := NewAssignmentBody(low, target, plexpr.NewConstant(clock, plexpr.TypeInteger, int64(1)), 1, ext)
	_ = lowBody
	low.AddUserCondition(domain.SlotStart, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	low.FinalizeConditions()

	high := New(clock, "high", domain.TypeAssignment, root)
	highBody := NewAssignmentBody(high, target, plexpr.NewConstant(clock, plexpr.TypeInteger, int64(2)), 2, ext)
	high.AddUserCondition(domain.SlotStart, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	high.FinalizeConditions()

	root.AddChild(low)
	root.AddChild(high)
	root.AddUserCondition(domain.SlotStart, plexpr.NewConstant(clock, plexpr.TypeBoolean, true), true)
	root.FinalizeConditions()
	low.WireAncestorConditions()
	high.WireAncestorConditions()

	activateAll(root)

	now := time.Now()
	root.Activate(now)
	for i := 0; i < 4; i++ {
		dest := root.GetDestState()
		if dest.changed {
			root.Transition(now, dest)
		}
	}
	low.Activate(now)
	high.Activate(now)
	for i := 0; i < 4; i++ {
		for _, c := range root.Children {
			dest := c.GetDestState()
			if dest.changed {
				c.Transition(now, dest)
			}
		}
	}

	// Conflict resolution itself is the scheduler's job (internal/scheduler);
	// here we just confirm both assignments staged their RHS and are ready
	// to be resolved by priority.
	assert.True(t, lowBody.ReadyToCommit())
	assert.True(t, highBody.ReadyToCommit())
	assert.Equal(t, plexpr.Assignable(target), lowBody.RootVariable())
	assert.Equal(t, plexpr.Assignable(target), highBody.RootVariable())
}

func activateAll(n *Node) {
	for slot := domain.ConditionSlot(0); slot < domain.ConditionSlot(domain.NumConditionSlots()); slot++ {
		if c := n.Condition(slot); c != nil {
			c.Activate()
		}
	}
	for _, c := range n.Children {
		activateAll(c)
	}
}

func TestLibraryCallAliasInjectionIsReadOnly(t *testing.T) {
	clock := plexpr.NewClock()
	caller := New(clock, "caller", domain.TypeLibraryCall, nil)
	lib := NewLibraryCallBody(caller, "SomeLib")

	callerInt := plexpr.NewUserVariable(clock, plexpr.TypeInteger)
	callerInt.Activate()
	callerInt.SetValue(int64(19))

	alias := plexpr.NewAlias(clock, callerInt, false, false)
	require.NoError(t, lib.AddAlias("defInInt", alias))

	callee := New(clock, "callee", domain.TypeEmpty, caller)
	NewEmptyBody(callee)
	caller.AddChild(callee)

	found, ok := callee.Scope.Lookup("defInInt")
	require.True(t, ok)
	assert.False(t, found.IsAssignable())
	found.Activate()
	val, ok := found.GetValue()
	require.True(t, ok)
	assert.Equal(t, int64(19), val)

	_, ok = callee.Scope.Lookup("someUnrelatedCallerVar")
	assert.False(t, ok)
}
