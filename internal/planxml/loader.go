package planxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/iface"
	"github.com/arclight-systems/planexec/internal/library"
	"github.com/arclight-systems/planexec/internal/node"
	"github.com/arclight-systems/planexec/internal/plexpr"
	"github.com/arclight-systems/planexec/internal/scope"
)

// Loader builds node.Node trees from plan documents, resolving
// LibraryNodeCall references against a shared catalog and routing every
// Command/Assignment/Update body to a single external interface (spec.md
// §6.1/§6.2).
type Loader struct {
	Catalog *library.Catalog
	Ext     iface.ExternalInterface
}

// New builds a Loader. catalog may be a fresh library.NewCatalog() the
// caller populates via LoadLibrary before loading the top-level plan.
func New(catalog *library.Catalog, ext iface.ExternalInterface) *Loader {
	return &Loader{Catalog: catalog, Ext: ext}
}

// Load parses a top-level plan document and returns its finalized,
// ancestor-wired root node, ready for a Scheduler to Activate.
func (l *Loader) Load(r io.Reader) (*plexpr.Clock, *node.Node, error) {
	var doc xmlDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, domain.NewError(domain.ErrCodeParseError, "malformed plan document", err)
	}
	clock := plexpr.NewClock()
	root, err := l.buildNode(clock, &doc.Node, nil, "")
	if err != nil {
		return nil, nil, err
	}
	finalizeTree(root)
	return clock, root, nil
}

// LoadLibrary parses a library plan document and registers it under its
// root NodeId, re-running buildNode fresh (with a uniquified ID prefix)
// every time a LibraryCall references it — spec.md §6.1's
// "findLibraryNode(name) → NodeTree" is therefore a template, not a
// shared instance: two calls to the same library never share node
// identity (invariant P7's teardown-independence requirement).
func (l *Loader) LoadLibrary(r io.Reader) error {
	var doc xmlDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return domain.NewError(domain.ErrCodeParseError, "malformed library document", err)
	}
	xn := doc.Node
	return l.Catalog.Register(library.Template{
		Name: xn.NodeId,
		Build: func(parent library.Parent, callSiteID string) (library.Child, error) {
			parentNode, ok := parent.(*node.Node)
			if !ok {
				return nil, domain.NewError(domain.ErrCodeParseError, "library call site is not a *node.Node", nil)
			}
			child, err := l.buildNode(parentNode.Clock(), &xn, parentNode, callSiteID+"/")
			if err != nil {
				return nil, err
			}
			finalizeTree(child)
			return child, nil
		},
	})
}

// buildNode recursively constructs one node.Node (and, for NodeList/
// LibraryCall, its children) from its XML element. idPrefix uniquifies a
// library template's instantiated IDs per call site; it is empty for the
// top-level plan.
func (l *Loader) buildNode(clock *plexpr.Clock, xn *xmlNode, parent *node.Node, idPrefix string) (*node.Node, error) {
	nodeType, err := parseNodeType(xn.NodeType)
	if err != nil {
		return nil, err
	}
	n := node.New(clock, idPrefix+xn.NodeId, nodeType, parent)

	if err := l.declareVariables(n, xn.VariableDeclarations); err != nil {
		return nil, err
	}
	if err := l.resolveInterface(n, xn.Interface); err != nil {
		return nil, err
	}

	switch nodeType {
	case domain.TypeEmpty:
		node.NewEmptyBody(n)
	case domain.TypeNodeList:
		node.NewNodeListBody(n)
		if xn.NodeBody == nil || xn.NodeBody.NodeList == nil {
			return nil, domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("NodeList %q has no NodeBody/NodeList", n.ID), nil)
		}
		for _, childXML := range xn.NodeBody.NodeList.Node {
			childXML := childXML
			child, err := l.buildNode(clock, &childXML, n, idPrefix)
			if err != nil {
				return nil, err
			}
			n.AddChild(child)
		}
	case domain.TypeAssignment:
		if err := l.buildAssignment(n, xn); err != nil {
			return nil, err
		}
	case domain.TypeCommand:
		if err := l.buildCommand(n, xn); err != nil {
			return nil, err
		}
	case domain.TypeUpdate:
		if err := l.buildUpdate(n, xn); err != nil {
			return nil, err
		}
	case domain.TypeLibraryCall:
		if err := l.buildLibraryCall(n, xn, idPrefix); err != nil {
			return nil, err
		}
	}

	if err := l.addConditions(n, xn); err != nil {
		return nil, err
	}

	return n, nil
}

// finalizeTree runs FinalizeConditions top-down and wires ancestor
// conditions once a node and its parent are both finalized (spec.md
// §6.1: "finalizeConditions() must be called after all user conditions
// are added").
func finalizeTree(n *node.Node) {
	n.FinalizeConditions()
	for _, c := range n.Children {
		c.FinalizeConditions()
		c.WireAncestorConditions()
		finalizeTree(c)
	}
}

func (l *Loader) declareVariables(n *node.Node, decls *xmlVarDecls) error {
	if decls == nil {
		return nil
	}
	for _, v := range decls.DeclareVariable {
		valType, err := parseValueType(v.Type)
		if err != nil {
			return err
		}
		variable := plexpr.NewUserVariable(n.Clock(), valType)
		if v.InitialValue != nil {
			lit, err := parseLiteral(valType, *v.InitialValue)
			if err != nil {
				return err
			}
			variable.SetInitializer(plexpr.NewConstant(n.Clock(), valType, lit), true)
		}
		variable.Activate()
		if err := n.AddLocalVariable(v.Name, variable); err != nil {
			return err
		}
	}
	for _, a := range decls.DeclareArray {
		elemType, err := parseValueType(a.Type)
		if err != nil {
			return err
		}
		arr := plexpr.NewArrayVariable(n.Clock(), elemType, a.MaxSize)
		if a.InitialValue != nil {
			values := strings.Split(*a.InitialValue, ",")
			if len(values) > a.MaxSize {
				return domain.NewError(domain.ErrCodeParseError,
					fmt.Sprintf("array %q initializer exceeds MaxSize %d", a.Name, a.MaxSize), nil)
			}
			literals := make([]any, len(values))
			for i, raw := range values {
				lit, err := parseLiteral(elemType, strings.TrimSpace(raw))
				if err != nil {
					return err
				}
				literals[i] = lit
			}
			arr.SetValue(literals)
		}
		arr.Activate()
		if err := n.AddLocalVariable(a.Name, arr); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) resolveInterface(n *node.Node, ifc *xmlInterface) error {
	if ifc == nil {
		return nil
	}
	lookupFrom := n.Parent
	resolveGroup := func(decls *xmlVarDecls, inout bool) error {
		if decls == nil {
			return nil
		}
		for _, v := range decls.DeclareVariable {
			valType, err := parseValueType(v.Type)
			if err != nil {
				return err
			}
			var defaultExpr plexpr.Expression
			if v.InitialValue != nil {
				lit, err := parseLiteral(valType, *v.InitialValue)
				if err != nil {
					return err
				}
				defaultExpr = plexpr.NewConstant(n.Clock(), valType, lit)
			}
			var alias *plexpr.Alias
			if lookupFrom == nil {
				return domain.NewError(domain.ErrCodeMissingInVariable,
					fmt.Sprintf("interface variable %q declared on a root node with no parent scope", v.Name), nil)
			}
			if inout {
				alias, err = scopeResolveInOut(n, lookupFrom, v.Name, valType, defaultExpr)
			} else {
				alias, err = scopeResolveIn(n, lookupFrom, v.Name, valType, defaultExpr)
			}
			if err != nil {
				return err
			}
			alias.Activate()
			if err := n.AddLocalVariable(v.Name, alias); err != nil {
				return err
			}
		}
		return nil
	}
	if err := resolveGroup(ifc.In, false); err != nil {
		return err
	}
	return resolveGroup(ifc.InOut, true)
}

func (l *Loader) buildAssignment(n *node.Node, xn *xmlNode) error {
	if xn.NodeBody == nil || xn.NodeBody.Assignment == nil {
		return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("Assignment %q has no NodeBody/Assignment", n.ID), nil)
	}
	a := xn.NodeBody.Assignment
	dest, ok := n.Scope.Lookup(a.LHS)
	if !ok {
		return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("Assignment %q: LHS %q not in scope", n.ID, a.LHS), nil)
	}
	assignableDest, ok := dest.(plexpr.Assignable)
	if !ok {
		return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("Assignment %q: LHS %q is not assignable", n.ID, a.LHS), nil)
	}

	valType := assignableDest.ValueType()
	var rhsText *string
	switch {
	case a.NumericRHS != nil:
		rhsText = a.NumericRHS
	case a.StringRHS != nil:
		rhsText = a.StringRHS
	case a.BooleanRHS != nil:
		rhsText = a.BooleanRHS
	case a.ArrayRHS != nil:
		rhsText = a.ArrayRHS
	default:
		return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("Assignment %q has no RHS", n.ID), nil)
	}
	rhs, err := plexpr.CompileExpr(n.Clock(), *rhsText, n.Scope.Visible(), valType)
	if err != nil {
		return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("Assignment %q RHS", n.ID), err)
	}
	rhs.Activate()

	var priority int32
	if xn.Priority != nil {
		priority = *xn.Priority
	}
	node.NewAssignmentBody(n, assignableDest, rhs, priority, l.Ext)
	return nil
}

func (l *Loader) buildCommand(n *node.Node, xn *xmlNode) error {
	if xn.NodeBody == nil || xn.NodeBody.Command == nil {
		return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("Command %q has no NodeBody/Command", n.ID), nil)
	}
	c := xn.NodeBody.Command
	nameExpr := plexpr.NewConstant(n.Clock(), plexpr.TypeString, c.Name)

	var argExprs []plexpr.Expression
	if c.Arguments != nil {
		for _, raw := range c.Arguments.Value {
			e, err := plexpr.CompileExpr(n.Clock(), raw, n.Scope.Visible(), plexpr.TypeUnknown)
			if err != nil {
				return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("Command %q argument", n.ID), err)
			}
			e.Activate()
			argExprs = append(argExprs, e)
		}
	}

	var resources []node.ResourceSpec
	if c.ResourceList != nil {
		for _, r := range c.ResourceList.Resource {
			spec := node.ResourceSpec{
				NameExpr:     plexpr.NewConstant(n.Clock(), plexpr.TypeString, r.ResourceName),
				PriorityExpr: plexpr.NewConstant(n.Clock(), plexpr.TypeInteger, int64(mustAtoi(r.ResourcePriority))),
			}
			if r.ResourceReleaseAtTermination != nil {
				spec.ReleaseAtTermination = strings.EqualFold(*r.ResourceReleaseAtTermination, "true")
			}
			if r.ResourceLowerBound != nil && r.ResourceUpperBound != nil {
				lb, err := strconv.ParseFloat(*r.ResourceLowerBound, 64)
				if err != nil {
					return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("Command %q resource bound", n.ID), err)
				}
				ub, err := strconv.ParseFloat(*r.ResourceUpperBound, 64)
				if err != nil {
					return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("Command %q resource bound", n.ID), err)
				}
				spec.LowerBoundExpr = plexpr.NewConstant(n.Clock(), plexpr.TypeReal, lb)
				spec.UpperBoundExpr = plexpr.NewConstant(n.Clock(), plexpr.TypeReal, ub)
				spec.HasBounds = true
			}
			resources = append(resources, spec)
		}
	}

	var destExpr plexpr.Assignable
	if c.LHS != nil {
		dest, ok := n.Scope.Lookup(*c.LHS)
		if !ok {
			return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("Command %q: LHS %q not in scope", n.ID, *c.LHS), nil)
		}
		destExpr, ok = dest.(plexpr.Assignable)
		if !ok {
			return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("Command %q: LHS %q is not assignable", n.ID, *c.LHS), nil)
		}
	}

	node.NewCommandBody(n, nameExpr, argExprs, resources, destExpr, l.Ext)
	return nil
}

func (l *Loader) buildUpdate(n *node.Node, xn *xmlNode) error {
	if xn.NodeBody == nil || xn.NodeBody.Update == nil {
		return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("Update %q has no NodeBody/Update", n.ID), nil)
	}
	var pairs []node.UpdatePair
	for _, p := range xn.NodeBody.Update.Pair {
		e, err := plexpr.CompileExpr(n.Clock(), p.Expr, n.Scope.Visible(), plexpr.TypeUnknown)
		if err != nil {
			return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("Update %q pair %q", n.ID, p.Name), err)
		}
		e.Activate()
		pairs = append(pairs, node.UpdatePair{Name: p.Name, Expr: e})
	}
	node.NewUpdateBody(n, n.ID, pairs, l.Ext)
	return nil
}

func (l *Loader) buildLibraryCall(n *node.Node, xn *xmlNode, idPrefix string) error {
	if xn.NodeBody == nil || xn.NodeBody.LibraryNodeCall == nil {
		return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("LibraryNodeCall %q has no NodeBody/LibraryNodeCall", n.ID), nil)
	}
	lc := xn.NodeBody.LibraryNodeCall
	tmpl, ok := l.Catalog.FindLibraryNode(lc.NodeId)
	if !ok {
		return domain.NewError(domain.ErrCodeUnresolvedLibraryCall, fmt.Sprintf("library %q not found for call site %q", lc.NodeId, n.ID), nil)
	}

	body := node.NewLibraryCallBody(n, lc.NodeId)
	// Alias expressions are written in the caller's terms, so they are
	// compiled against the scope above the call site's blocked scope.
	aliasScope := n.Scope.Visible()
	if n.Parent != nil {
		aliasScope = n.Parent.Scope.Visible()
	}
	for _, a := range lc.Alias {
		e, err := plexpr.CompileExpr(n.Clock(), a.Expr, aliasScope, plexpr.TypeUnknown)
		if err != nil {
			return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("LibraryNodeCall %q alias %q", n.ID, a.NodeParameter), err)
		}
		e.Activate()
		var alias *plexpr.Alias
		if assignable, ok := e.(plexpr.Assignable); ok {
			alias = plexpr.NewAlias(n.Clock(), assignable, false, true)
		} else {
			alias = plexpr.NewAlias(n.Clock(), e, false, false)
		}
		alias.Activate()
		if err := body.AddAlias(a.NodeParameter, alias); err != nil {
			return err
		}
	}

	child, err := tmpl.Build(n, idPrefix+n.ID)
	if err != nil {
		return err
	}
	callee, ok := child.(*node.Node)
	if !ok {
		return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("library %q did not build a *node.Node", lc.NodeId), nil)
	}
	n.AddChild(callee)
	return nil
}

func (l *Loader) addConditions(n *node.Node, xn *xmlNode) error {
	add := func(slot domain.ConditionSlot, text *string) error {
		if text == nil {
			return nil
		}
		e, err := plexpr.CompileExpr(n.Clock(), *text, n.Scope.Visible(), plexpr.TypeBoolean)
		if err != nil {
			return domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("node %q condition %s", n.ID, slot), err)
		}
		e.Activate()
		n.AddUserCondition(slot, e, true)
		return nil
	}
	if err := add(domain.SlotSkip, xn.SkipCondition); err != nil {
		return err
	}
	if err := add(domain.SlotStart, xn.StartCondition); err != nil {
		return err
	}
	if err := add(domain.SlotPre, xn.PreCondition); err != nil {
		return err
	}
	if err := add(domain.SlotExit, xn.ExitCondition); err != nil {
		return err
	}
	if err := add(domain.SlotInvariant, xn.InvariantCondition); err != nil {
		return err
	}
	if err := add(domain.SlotEnd, xn.EndCondition); err != nil {
		return err
	}
	if err := add(domain.SlotPost, xn.PostCondition); err != nil {
		return err
	}
	return add(domain.SlotRepeat, xn.RepeatCondition)
}

func scopeResolveIn(n *node.Node, lookupFrom *node.Node, name string, valType plexpr.ValueType, def plexpr.Expression) (*plexpr.Alias, error) {
	return scope.ResolveIn(n.Clock(), lookupFrom.Scope, name, valType, def)
}

func scopeResolveInOut(n *node.Node, lookupFrom *node.Node, name string, valType plexpr.ValueType, def plexpr.Expression) (*plexpr.Alias, error) {
	return scope.ResolveInOut(n.Clock(), lookupFrom.Scope, name, valType, def)
}

func parseNodeType(s string) (domain.NodeType, error) {
	switch s {
	case "Empty":
		return domain.TypeEmpty, nil
	case "Assignment":
		return domain.TypeAssignment, nil
	case "Command":
		return domain.TypeCommand, nil
	case "Update":
		return domain.TypeUpdate, nil
	case "NodeList":
		return domain.TypeNodeList, nil
	case "LibraryNodeCall":
		return domain.TypeLibraryCall, nil
	default:
		return 0, domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("unknown NodeType %q", s), nil)
	}
}

func parseValueType(s string) (plexpr.ValueType, error) {
	switch s {
	case "Boolean":
		return plexpr.TypeBoolean, nil
	case "Integer":
		return plexpr.TypeInteger, nil
	case "Real":
		return plexpr.TypeReal, nil
	case "String":
		return plexpr.TypeString, nil
	default:
		return plexpr.TypeUnknown, domain.NewError(domain.ErrCodeParseError, fmt.Sprintf("unknown variable Type %q", s), nil)
	}
}

func parseLiteral(valType plexpr.ValueType, text string) (any, error) {
	switch valType {
	case plexpr.TypeBoolean:
		return strconv.ParseBool(text)
	case plexpr.TypeInteger:
		return strconv.ParseInt(text, 10, 64)
	case plexpr.TypeReal:
		return strconv.ParseFloat(text, 64)
	case plexpr.TypeString:
		return text, nil
	default:
		return text, nil
	}
}

func mustAtoi(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
