package plexpr

import (
	"time"

	"github.com/arclight-systems/planexec/internal/domain"
)

// NodeHandle is the minimal view of a Node that the internal node
// variables and NodeTimepointValue need. The node package's *node.Node
// satisfies this by duck typing; plexpr never imports node, avoiding an
// import cycle (node imports plexpr for condition slots).
type NodeHandle interface {
	NodeState() domain.NodeState
	NodeOutcome() domain.NodeOutcome
	NodeFailure() domain.FailureType
	TimepointEntered(s domain.NodeState) (time.Time, bool)
}

// StateVariable, OutcomeVariable and FailureVariable are the three
// internal node variables of spec.md §3: always active and read-only.
// State is always known; outcome reports "known" per NodeOutcome.IsKnown,
// and failure is unknown while the node has no failure.
type StateVariable struct {
	Base
	node NodeHandle
}

func NewStateVariable(clock *Clock, node NodeHandle) *StateVariable {
	return &StateVariable{Base: NewAlwaysActiveBase(clock), node: node}
}

func (s *StateVariable) ValueType() ValueType { return TypeString }
func (s *StateVariable) IsKnown() bool        { return true }
func (s *StateVariable) IsConstant() bool     { return false }
func (s *StateVariable) IsAssignable() bool   { return false }
func (s *StateVariable) GetValue() (any, bool) {
	return s.node.NodeState().String(), true
}

type OutcomeVariable struct {
	Base
	node NodeHandle
}

func NewOutcomeVariable(clock *Clock, node NodeHandle) *OutcomeVariable {
	return &OutcomeVariable{Base: NewAlwaysActiveBase(clock), node: node}
}

func (o *OutcomeVariable) ValueType() ValueType { return TypeString }
func (o *OutcomeVariable) IsConstant() bool     { return false }
func (o *OutcomeVariable) IsAssignable() bool   { return false }
func (o *OutcomeVariable) IsKnown() bool        { return o.node.NodeOutcome().IsKnown() }
func (o *OutcomeVariable) GetValue() (any, bool) {
	oc := o.node.NodeOutcome()
	if !oc.IsKnown() {
		return nil, false
	}
	return oc.String(), true
}

type FailureVariable struct {
	Base
	node NodeHandle
}

func NewFailureVariable(clock *Clock, node NodeHandle) *FailureVariable {
	return &FailureVariable{Base: NewAlwaysActiveBase(clock), node: node}
}

func (f *FailureVariable) ValueType() ValueType { return TypeString }
func (f *FailureVariable) IsConstant() bool     { return false }
func (f *FailureVariable) IsAssignable() bool   { return false }
func (f *FailureVariable) IsKnown() bool        { return f.node.NodeFailure() != domain.FailureNone }
func (f *FailureVariable) GetValue() (any, bool) {
	ft := f.node.NodeFailure()
	if ft == domain.FailureNone {
		return nil, false
	}
	return ft.String(), true
}

// NodeTimepointValue reads the timestamp (as Unix seconds, Real) at which
// a given node entered a given state, supplementing the spec from
// original_source/Modules/Core/Plexil/include/NodeVariables.hh's
// timepoint expressions (spec.md SPEC_FULL.md item 3).
type NodeTimepointValue struct {
	Base
	node  NodeHandle
	state domain.NodeState
}

func NewNodeTimepointValue(clock *Clock, node NodeHandle, state domain.NodeState) *NodeTimepointValue {
	return &NodeTimepointValue{Base: NewAlwaysActiveBase(clock), node: node, state: state}
}

func (t *NodeTimepointValue) ValueType() ValueType { return TypeReal }
func (t *NodeTimepointValue) IsConstant() bool      { return false }
func (t *NodeTimepointValue) IsAssignable() bool    { return false }

func (t *NodeTimepointValue) IsKnown() bool {
	_, ok := t.node.TimepointEntered(t.state)
	return ok
}

func (t *NodeTimepointValue) GetValue() (any, bool) {
	at, ok := t.node.TimepointEntered(t.state)
	if !ok {
		return nil, false
	}
	return float64(at.UnixNano()) / 1e9, true
}
