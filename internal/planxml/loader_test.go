package planxml

import (
	"strings"
	"testing"
	"time"

	"github.com/arclight-systems/planexec/internal/domain"
	"github.com/arclight-systems/planexec/internal/iface"
	"github.com/arclight-systems/planexec/internal/library"
	"github.com/arclight-systems/planexec/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestLoadSimplePlanRunsToCompletion(t *testing.T) {
	ext := iface.NewRecorder()
	loader := New(library.NewCatalog(), ext)
	clock, root, err := loader.Load(strings.NewReader(simplePlan))
	require.NoError(t, err)
	require.NotNil(t, clock)

	s := scheduler.New(root, zerolog.Nop())
	now := time.Now()
	s.Activate(root, now)
	s.RunToQuiescence(now)

	assert.Equal(t, domain.StateFinished, root.NodeState())
	target, ok := root.Scope.Lookup("target")
	require.True(t, ok)
	val, known := target.GetValue()
	require.True(t, known)
	assert.Equal(t, int64(42), val)
}

const libraryPlan = `<Node NodeType="Empty">
  <NodeId>Helper</NodeId>
  <Interface>
    <In>
      <DeclareVariable><Name>seed</Name><Type>Integer</Type></DeclareVariable>
    </In>
  </Interface>
  <StartCondition>true</StartCondition>
</Node>`

const callerPlan = `<Node NodeType="NodeList">
  <NodeId>Caller</NodeId>
  <VariableDeclarations>
    <DeclareVariable><Name>value</Name><Type>Integer</Type><InitialValue>7</InitialValue></DeclareVariable>
  </VariableDeclarations>
  <StartCondition>true</StartCondition>
  <NodeBody>
    <NodeList>
      <Node NodeType="LibraryNodeCall">
        <NodeId>CallHelper</NodeId>
        <StartCondition>true</StartCondition>
        <NodeBody>
          <LibraryNodeCall>
            <NodeId>Helper</NodeId>
            <Alias NodeParameter="seed">value</Alias>
          </LibraryNodeCall>
        </NodeBody>
      </Node>
    </NodeList>
  </NodeBody>
</Node>`

func TestLoadLibraryCallResolvesAliasAndRunsToCompletion(t *testing.T) {
	ext := iface.NewRecorder()
	catalog := library.NewCatalog()
	loader := New(catalog, ext)

	require.NoError(t, loader.LoadLibrary(strings.NewReader(libraryPlan)))

	clock, root, err := loader.Load(strings.NewReader(callerPlan))
	require.NoError(t, err)
	require.NotNil(t, clock)

	s := scheduler.New(root, zerolog.Nop())
	now := time.Now()
	s.Activate(root, now)
	s.RunToQuiescence(now)

	assert.Equal(t, domain.StateFinished, root.NodeState())
	require.Len(t, root.Children, 1)
	callSite := root.Children[0]
	assert.Equal(t, domain.TypeLibraryCall, callSite.Type())
	require.Len(t, callSite.Children, 1)
	assert.Equal(t, domain.StateFinished, callSite.Children[0].NodeState())
	seed, ok := callSite.Children[0].Scope.Lookup("seed")
	require.True(t, ok)
	seedVal, seedKnown := seed.GetValue()
	assert.True(t, seedKnown)
	assert.Equal(t, int64(7), seedVal)
}
