package node

import (
	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/plexpr"
)

// NodeListBody holds an owned children vector and contributes
// AllChildrenFinished as the implicit end condition (spec.md §4.4).
type NodeListBody struct {
	node *Node
	gate *allChildrenFinishedGate
}

// NewNodeListBody attaches a NodeListBody to n.
func NewNodeListBody(n *Node) *NodeListBody {
	b := &NodeListBody{node: n}
	b.gate = &allChildrenFinishedGate{Base: plexpr.NewBase(n.Clock()), node: n}
	n.Body = b
	return b
}

func (b *NodeListBody) Type() domain.NodeType { return domain.TypeNodeList }

// OnEnterExecuting does nothing itself. Admitting the children from
// INACTIVE into WAITING (spec.md's "NodeList: On EXECUTING, activates
// children") is done by the scheduler, which calls Activate on each
// child with the current timestamp once this node enters EXECUTING,
// since Node.Activate requires a timestamp the body layer does not own.
func (b *NodeListBody) OnEnterExecuting(n *Node) {}

func (b *NodeListBody) OnEnterFailing(n *Node) {}

func (b *NodeListBody) ImplicitEnd() plexpr.Expression { return b.gate }

// LibraryCallBody is a NodeListBody plus an alias map (spec.md §4.4:
// "LibraryCall adds { aliasMap } and overrides variable lookup to return
// only the alias map"). The lookup-blocking itself lives in the node's
// Scope (constructed with blocked=true by the tree builder); this type
// only carries the alias bindings the builder installs into that scope.
type LibraryCallBody struct {
	NodeListBody
	LibraryName string
	Aliases     map[string]*plexpr.Alias
}

// NewLibraryCallBody attaches a LibraryCallBody to n.
func NewLibraryCallBody(n *Node, libraryName string) *LibraryCallBody {
	b := &LibraryCallBody{LibraryName: libraryName, Aliases: make(map[string]*plexpr.Alias)}
	b.node = n
	b.gate = &allChildrenFinishedGate{Base: plexpr.NewBase(n.Clock()), node: n}
	n.Body = b
	return b
}

func (b *LibraryCallBody) Type() domain.NodeType { return domain.TypeLibraryCall }

// AddAlias installs a binding into both the alias map and the blocked
// local scope, implementing the parser-facing
// "LibraryCallNode.addAlias(name, expr, owned)" contract of spec.md §6.1.
func (b *LibraryCallBody) AddAlias(name string, a *plexpr.Alias) error {
	b.Aliases[name] = a
	return b.node.AddLocalVariable(name, a)
}

// allChildrenFinishedGate is a hand-rolled Expression reading the owning
// node's Children slice directly, rather than an Operator over
// StateVariables: it needs to re-evaluate membership (a child reaching
// FINISHED) without each child publishing into a shared Operator that
// would have to be rebuilt whenever children are added during parsing.
type allChildrenFinishedGate struct {
	plexpr.Base
	node *Node
}

func (g *allChildrenFinishedGate) ValueType() plexpr.ValueType { return plexpr.TypeBoolean }
func (g *allChildrenFinishedGate) IsConstant() bool             { return false }
func (g *allChildrenFinishedGate) IsAssignable() bool           { return false }
func (g *allChildrenFinishedGate) IsKnown() bool                { return true }
func (g *allChildrenFinishedGate) GetValue() (any, bool) {
	return g.node.AllChildrenFinished(), true
}
