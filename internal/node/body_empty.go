package node

import (
	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/plexpr"
)

// EmptyBody is the no-op body: it has no implicit end contributor and no
// external effect, so EXECUTING→ITERATION_ENDED is driven entirely by the
// user's own EndCondition (spec.md §4.3 "Empty: no FINISHING/FAILING.
// EXECUTING→ITERATION_ENDED directly on end.").
type EmptyBody struct{}

// NewEmptyBody attaches an EmptyBody to n and returns it.
func NewEmptyBody(n *Node) *EmptyBody {
	b := &EmptyBody{}
	n.Body = b
	return b
}

func (b *EmptyBody) Type() domain.NodeType          { return domain.TypeEmpty }
func (b *EmptyBody) OnEnterExecuting(n *Node)       {}
func (b *EmptyBody) OnEnterFailing(n *Node)         {}
func (b *EmptyBody) ImplicitEnd() plexpr.Expression { return nil }
