package node

import (
	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/iface"
	"github.com/arclight-systems/planexec/internal/plexpr"
)

// ResourceSpec is a Command's unevaluated ResourceList entry (spec.md
// §6.3's Resource element): name and priority are always present, the
// numeric bounds are optional.
type ResourceSpec struct {
	NameExpr                 plexpr.Expression
	PriorityExpr             plexpr.Expression
	LowerBoundExpr           plexpr.Expression
	UpperBoundExpr           plexpr.Expression
	HasBounds                bool
	ReleaseAtTermination     bool
}

// CommandBody holds { nameExpr, argExprs, resourceExprs, destExpr?,
// commandHandle, abortHandle } per spec.md §4.4. Unlike Assignment, a
// Command's external call is submitted directly on EXECUTING entry; the
// scheduler is not involved in sequencing it.
type CommandBody struct {
	NameExpr  plexpr.Expression
	ArgExprs  []plexpr.Expression
	Resources []ResourceSpec
	DestExpr  plexpr.Assignable // optional; nil if the command has no return destination
	Ext       iface.ExternalInterface

	handle      iface.CommandHandle
	handleGate  *commandHandleGate
	abortAckVar *plexpr.UserVariable
}

// NewCommandBody attaches a CommandBody to n, wiring the command-handle
// gate into ActionComplete and the abort acknowledgement into
// AbortComplete.
func NewCommandBody(n *Node, nameExpr plexpr.Expression, argExprs []plexpr.Expression, resources []ResourceSpec, destExpr plexpr.Assignable, ext iface.ExternalInterface) *CommandBody {
	b := &CommandBody{NameExpr: nameExpr, ArgExprs: argExprs, Resources: resources, DestExpr: destExpr, Ext: ext}
	b.handleGate = newCommandHandleGate(n.Clock(), b)
	b.abortAckVar = plexpr.NewUserVariable(n.Clock(), plexpr.TypeBoolean)
	n.AddUserCondition(domain.SlotActionComplete, b.handleGate, true)
	n.AddUserCondition(domain.SlotAbortComplete, b.abortAckVar, true)
	n.Body = b
	return b
}

func (b *CommandBody) Type() domain.NodeType { return domain.TypeCommand }

func (b *CommandBody) OnEnterExecuting(n *Node) {
	name, _ := b.NameExpr.GetValue()
	nameStr, _ := name.(string)

	args := make([]any, len(b.ArgExprs))
	for i, a := range b.ArgExprs {
		v, _ := a.GetValue()
		args[i] = v
	}

	resources := make([]iface.ResourceRequest, 0, len(b.Resources))
	for _, r := range b.Resources {
		rv, _ := r.NameExpr.GetValue()
		rName, _ := rv.(string)
		pv, _ := r.PriorityExpr.GetValue()
		priority, _ := toInt32(pv)
		req := iface.ResourceRequest{Name: rName, Priority: priority, ReleaseAtTermination: r.ReleaseAtTermination}
		if r.HasBounds {
			lv, _ := r.LowerBoundExpr.GetValue()
			uv, _ := r.UpperBoundExpr.GetValue()
			req.LowerBound, _ = toFloat64(lv)
			req.UpperBound, _ = toFloat64(uv)
			req.HasBounds = true
		}
		resources = append(resources, req)
	}

	b.Ext.ExecuteCommand(nameStr, args, resources,
		func(h iface.CommandHandle) {
			n.postResult(func() {
				b.handle = h
				b.handleGate.PublishChange()
			})
		},
		func(ret any) {
			n.postResult(func() {
				if b.DestExpr != nil {
					b.DestExpr.SetValue(ret)
				}
			})
		},
		func(ok bool) {
			n.postResult(func() {
				b.abortAckVar.SetValue(ok)
			})
		},
	)
}

// OnEnterFailing invokes the interface's abort path, per spec.md §4.3:
// "the interface's abort path is invoked on FAILING."
func (b *CommandBody) OnEnterFailing(n *Node) {
	name, _ := b.NameExpr.GetValue()
	nameStr, _ := name.(string)
	args := make([]any, len(b.ArgExprs))
	for i, a := range b.ArgExprs {
		v, _ := a.GetValue()
		args[i] = v
	}
	b.Ext.AbortCommand(nameStr, args, func(ok bool) {
		n.postResult(func() {
			b.abortAckVar.SetValue(ok)
		})
	})
}

func (b *CommandBody) ImplicitEnd() plexpr.Expression { return b.handleGate }

// Handle returns the most recently reported command handle.
func (b *CommandBody) Handle() iface.CommandHandle { return b.handle }

// commandHandleGate is a hand-rolled Expression (rather than an Operator
// over a variable) because the raw CommandHandle enum, not a value the
// expression graph would otherwise carry, is what needs translating into
// the boolean "action complete" predicate of spec.md §4.3: "a command has
// an implicit end = commandHandle ∈ {SENT_TO_SYSTEM, RCVD_BY_SYSTEM,
// SUCCESS, FAILURE, DENIED}".
type commandHandleGate struct {
	plexpr.Base
	body *CommandBody
}

func newCommandHandleGate(clock *plexpr.Clock, body *CommandBody) *commandHandleGate {
	return &commandHandleGate{Base: plexpr.NewBase(clock), body: body}
}

func (g *commandHandleGate) ValueType() plexpr.ValueType { return plexpr.TypeBoolean }
func (g *commandHandleGate) IsConstant() bool             { return false }
func (g *commandHandleGate) IsAssignable() bool           { return false }
func (g *commandHandleGate) IsKnown() bool                { return g.body.handle != iface.CommandUnknown }
func (g *commandHandleGate) GetValue() (any, bool) {
	if g.body.handle == iface.CommandUnknown {
		return nil, false
	}
	return g.body.handle.IsActionComplete(), true
}

func toInt32(v any) (int32, bool) {
	switch n := v.(type) {
	case int64:
		return int32(n), true
	case int:
		return int32(n), true
	case float64:
		return int32(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
