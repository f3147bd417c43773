package node

import (
	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/iface"
	"github.com/arclight-systems/planexec/internal/plexpr"
)

// AssignmentBody holds { destExpr, rhsExpr, priority, ackVariable } per
// spec.md §4.4. Unlike Command, an Assignment's write is not submitted to
// the external interface the instant EXECUTING is entered: it is staged
// and the scheduler's Q3 conflict-resolution pass (spec.md §4.5.1) picks
// the commit moment, since two sibling Assignments may target the same
// root variable in the same macro-step.
type AssignmentBody struct {
	Dest     plexpr.Assignable
	RHS      plexpr.Expression
	Priority int32
	Ext      iface.ExternalInterface

	node      *Node
	ack       *plexpr.UserVariable
	committed bool
}

// NewAssignmentBody attaches an AssignmentBody to n. Its ack variable
// becomes the implicit End contributor (see ImplicitEnd); ActionComplete
// is only consulted if this node ever reaches FAILING (an exit/invariant
// failure mid-write), where it defaults to always-true since "abort is a
// no-op" for Assignment.
func NewAssignmentBody(n *Node, dest plexpr.Assignable, rhs plexpr.Expression, priority int32, ext iface.ExternalInterface) *AssignmentBody {
	b := &AssignmentBody{Dest: dest, RHS: rhs, Priority: priority, Ext: ext, node: n, ack: plexpr.NewUserVariable(n.Clock(), plexpr.TypeBoolean)}
	n.Body = b
	return b
}

func (b *AssignmentBody) Type() domain.NodeType { return domain.TypeAssignment }

// OnEnterExecuting does nothing itself: the scheduler discovers this
// node is ready to commit by calling ReadyToCommit/RootVariable/Commit
// once its RHS is known, as part of draining Q3.
func (b *AssignmentBody) OnEnterExecuting(n *Node) {}

// OnEnterFailing is a no-op: "abort is a no-op" for Assignment
// (spec.md §4.3).
func (b *AssignmentBody) OnEnterFailing(n *Node) {}

func (b *AssignmentBody) ImplicitEnd() plexpr.Expression { return b.ack }

// ReadyToCommit reports whether the RHS has a known value this node has
// not yet submitted.
func (b *AssignmentBody) ReadyToCommit() bool {
	return !b.committed && b.RHS.IsKnown()
}

// RootVariable is the group key for conflict resolution (spec.md §4.5.1
// groups Q3 "by root destination variable").
func (b *AssignmentBody) RootVariable() plexpr.Assignable {
	return b.Dest.GetBaseVariable()
}

// ConflictPriority exposes the priority field (spec.md §4.5.1) under a
// method name distinct from the Priority field itself, for the
// scheduler's conflict policy to read without depending on the field.
func (b *AssignmentBody) ConflictPriority() int32 { return b.Priority }

// Commit performs the write through the external interface and acks.
func (b *AssignmentBody) Commit() {
	b.committed = true
	val, _ := b.RHS.GetValue()
	b.Ext.PerformAssignment(b.Dest, val, func(bool) {
		b.node.postResult(func() { b.ack.SetValue(true) })
	})
}
