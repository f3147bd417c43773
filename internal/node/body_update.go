package node

import (
	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/iface"
	"github.com/arclight-systems/planexec/internal/plexpr"
)

// UpdateBody holds { ackVariable, pairs } per spec.md §4.4: on EXECUTING
// entry it snapshots every pair's current value and sends one planner
// update; the returned ack drives the implicit End condition.
type UpdateBody struct {
	Name  string
	Pairs []UpdatePair
	Ext   iface.ExternalInterface

	ack *plexpr.UserVariable
}

// UpdatePair is one ordered name→expr entry of an Update node's pair set.
type UpdatePair struct {
	Name string
	Expr plexpr.Expression
}

// NewUpdateBody attaches an UpdateBody to n.
func NewUpdateBody(n *Node, name string, pairs []UpdatePair, ext iface.ExternalInterface) *UpdateBody {
	b := &UpdateBody{Name: name, Pairs: pairs, Ext: ext, ack: plexpr.NewUserVariable(n.Clock(), plexpr.TypeBoolean)}
	n.Body = b
	return b
}

func (b *UpdateBody) Type() domain.NodeType { return domain.TypeUpdate }

func (b *UpdateBody) OnEnterExecuting(n *Node) {
	snapshot := make(map[string]any, len(b.Pairs))
	for _, p := range b.Pairs {
		if v, ok := p.Expr.GetValue(); ok {
			snapshot[p.Name] = v
		}
	}
	b.Ext.SendPlannerUpdate(b.Name, snapshot, func(bool) {
		n.postResult(func() { b.ack.SetValue(true) })
	})
}

// OnEnterFailing is a no-op: Update has no abort path distinct from the
// Assignment-style "no-op" (spec.md §4.3: Update maxState = FAILING).
func (b *UpdateBody) OnEnterFailing(n *Node) {}

func (b *UpdateBody) ImplicitEnd() plexpr.Expression { return b.ack }
