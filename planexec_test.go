package planexec_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclight-systems/planexec"
	"github.com/arclight-systems/planexec/internal/domain"
)

const simplePlan = `<Node NodeType="NodeList">
  <NodeId>Root</NodeId>
  <VariableDeclarations>
    <DeclareVariable><Name>target</Name><Type>Integer</Type></DeclareVariable>
  </VariableDeclarations>
  <StartCondition>true</StartCondition>
  <NodeBody>
    <NodeList>
      <Node NodeType="Assignment">
        <NodeId>SetTarget</NodeId>
        <StartCondition>true</StartCondition>
        <NodeBody>
          <Assignment>
            <LHS>target</LHS>
            <NumericRHS>42</NumericRHS>
          </Assignment>
        </NodeBody>
      </Node>
    </NodeList>
  </NodeBody>
</Node>`

func TestEngineRunDrivesPlanToQuiescence(t *testing.T) {
	var observed []planexec.TransitionEvent
	recorder := recorderObserver(func(e planexec.TransitionEvent) { observed = append(observed, e) })

	engine := planexec.NewEngine(planexec.EngineConfig{PlanID: "p1", Observer: recorder})

	root, err := engine.Run(strings.NewReader(simplePlan), time.Now())
	require.NoError(t, err)

	assert.Equal(t, domain.StateFinished, root.NodeState())
	assert.Equal(t, domain.OutcomeSuccess, root.NodeOutcome())
	assert.NotEmpty(t, observed)
	for _, e := range observed {
		assert.Equal(t, "p1", e.PlanID)
	}
}

func TestEngineLoadReturnsIndependentSchedulersPerCall(t *testing.T) {
	engine := planexec.NewEngine(planexec.EngineConfig{})

	first, err := engine.Load(strings.NewReader(simplePlan))
	require.NoError(t, err)
	second, err := engine.Load(strings.NewReader(simplePlan))
	require.NoError(t, err)

	assert.NotSame(t, first.Root, second.Root)
}

type recorderObserver func(planexec.TransitionEvent)

func (f recorderObserver) ObserveTransition(e planexec.TransitionEvent) { f(e) }
