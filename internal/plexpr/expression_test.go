package plexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserVariableSetValueTypeMismatch(t *testing.T) {
	clock := NewClock()
	v := NewUserVariable(clock, TypeInteger)
	v.Activate()

	assert.False(t, v.SetValue("not an int"))
	assert.False(t, v.IsKnown())

	assert.True(t, v.SetValue(int64(42)))
	val, ok := v.GetValue()
	require.True(t, ok)
	assert.Equal(t, int64(42), val)
}

func TestUserVariableWideningIntegerToReal(t *testing.T) {
	clock := NewClock()
	v := NewUserVariable(clock, TypeReal)
	v.Activate()

	require.True(t, v.SetValue(3))
	val, ok := v.GetValue()
	require.True(t, ok)
	assert.Equal(t, float64(3), val)
}

func TestActivationIsReferenceCounted(t *testing.T) {
	clock := NewClock()
	v := NewUserVariable(clock, TypeBoolean)

	assert.False(t, v.IsActive())
	v.Activate()
	v.Activate()
	assert.True(t, v.IsActive())
	v.Deactivate()
	assert.True(t, v.IsActive())
	v.Deactivate()
	assert.False(t, v.IsActive())
}

func TestPublishChangeIdempotentWithinEpoch(t *testing.T) {
	clock := NewClock()
	v := NewUserVariable(clock, TypeInteger)
	v.Activate()

	calls := 0
	v.AddListener(ListenerFunc(func() { calls++ }))

	clock.Tick()
	v.SetValue(int64(1)) // fires PublishChange internally
	v.PublishChange()    // same epoch, must not double-notify
	assert.Equal(t, 1, calls)

	clock.Tick()
	v.PublishChange()
	assert.Equal(t, 2, calls)
}

func TestInactiveExpressionIgnoresChange(t *testing.T) {
	clock := NewClock()
	v := NewUserVariable(clock, TypeInteger)
	calls := 0
	v.AddListener(ListenerFunc(func() { calls++ }))

	v.SetValue(int64(5)) // inactive: PublishChange must no-op
	assert.Equal(t, 0, calls)
}

func TestAliasReadOnlyRejectsWrite(t *testing.T) {
	clock := NewClock()
	inner := NewUserVariable(clock, TypeInteger)
	inner.Activate()
	inner.SetValue(int64(19))

	alias := NewAlias(clock, inner, false, false)
	alias.Activate()

	assert.False(t, alias.IsAssignable())
	assert.False(t, alias.SetValue(int64(20)))

	val, ok := alias.GetValue()
	require.True(t, ok)
	assert.Equal(t, int64(19), val)
}

func TestAliasWritableForwardsToInner(t *testing.T) {
	clock := NewClock()
	inner := NewUserVariable(clock, TypeInteger)
	inner.Activate()

	alias := NewAlias(clock, inner, false, true)
	alias.Activate()

	require.True(t, alias.SetValue(int64(7)))
	val, ok := inner.GetValue()
	require.True(t, ok)
	assert.Equal(t, int64(7), val)
	assert.Same(t, Assignable(inner), alias.GetBaseVariable())
}

func TestArrayElementReference(t *testing.T) {
	clock := NewClock()
	arr := NewArrayVariable(clock, TypeInteger, 3)
	arr.Activate()

	ref := NewArrayElementReference(clock, arr, 1)
	ref.Activate()

	assert.False(t, ref.IsKnown())
	require.True(t, ref.SetValue(int64(9)))
	val, ok := ref.GetValue()
	require.True(t, ok)
	assert.Equal(t, int64(9), val)
	assert.Same(t, Assignable(arr), ref.GetBaseVariable())
}

func TestAndOperatorUnknownPropagation(t *testing.T) {
	clock := NewClock()
	knownTrue := NewConstant(clock, TypeBoolean, true)
	unknown := NewUnknownConstant(clock, TypeBoolean)
	knownFalse := NewConstant(clock, TypeBoolean, false)

	and := And(clock, knownTrue, unknown)
	_, ok := and.GetValue()
	assert.False(t, ok, "And with an unknown, non-falsifying operand is unknown")

	andFalse := And(clock, knownFalse, unknown)
	v, ok := andFalse.GetValue()
	require.True(t, ok, "And short-circuits to known-false")
	assert.Equal(t, false, v)
}

func TestCompiledExprOverChildVariables(t *testing.T) {
	clock := NewClock()
	counter := NewUserVariable(clock, TypeInteger)
	counter.Activate()
	counter.SetValue(int64(2))

	ce, err := CompileExpr(clock, "counter < 3", map[string]Expression{"counter": counter}, TypeBoolean)
	require.NoError(t, err)
	ce.Activate()

	v, ok := ce.GetValue()
	require.True(t, ok)
	assert.Equal(t, true, v)

	counter.SetValue(int64(5))
	v, ok = ce.GetValue()
	require.True(t, ok)
	assert.Equal(t, false, v)
}

func TestNodeTimepointValueUnknownUntilEntered(t *testing.T) {
	clock := NewClock()
	fake := &fakeNode{}
	tp := NewNodeTimepointValue(clock, fake, 2 /* some state */)
	assert.False(t, tp.IsKnown())
}
