package scope

import (
	"testing"

	"github.com/arclight-systems/planexec/internal/plexpr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupWalksParentChain(t *testing.T) {
	clock := plexpr.NewClock()
	root := New(nil, false)
	x := plexpr.NewUserVariable(clock, plexpr.TypeInteger)
	require.NoError(t, root.Declare("x", x))

	child := New(root, false)
	found, ok := child.Lookup("x")
	assert.True(t, ok)
	assert.Same(t, plexpr.Expression(x), found)
}

func TestLookupBlockedStopsAtLibraryCallBoundary(t *testing.T) {
	clock := plexpr.NewClock()
	root := New(nil, false)
	require.NoError(t, root.Declare("x", plexpr.NewUserVariable(clock, plexpr.TypeInteger)))

	callBody := New(root, true)
	_, ok := callBody.Lookup("x")
	assert.False(t, ok, "a LibraryCall body must not see the caller's free variables")
}

func TestDeclareDuplicateNameFails(t *testing.T) {
	clock := plexpr.NewClock()
	s := New(nil, false)
	require.NoError(t, s.Declare("x", plexpr.NewUserVariable(clock, plexpr.TypeInteger)))
	err := s.Declare("x", plexpr.NewUserVariable(clock, plexpr.TypeInteger))
	require.Error(t, err)
}

func TestResolveInFromAncestor(t *testing.T) {
	clock := plexpr.NewClock()
	root := New(nil, false)
	x := plexpr.NewUserVariable(clock, plexpr.TypeInteger)
	x.Activate()
	x.SetValue(int64(3))
	require.NoError(t, root.Declare("x", x))

	alias, err := ResolveIn(clock, root, "x", plexpr.TypeInteger, nil)
	require.NoError(t, err)
	alias.Activate()
	val, ok := alias.GetValue()
	require.True(t, ok)
	assert.Equal(t, int64(3), val)
	assert.False(t, alias.IsAssignable())
}

func TestResolveInMissingWithoutDefaultFails(t *testing.T) {
	clock := plexpr.NewClock()
	root := New(nil, false)
	_, err := ResolveIn(clock, root, "missing", plexpr.TypeInteger, nil)
	require.Error(t, err)
}

func TestResolveInUsesDefaultWhenOmitted(t *testing.T) {
	clock := plexpr.NewClock()
	root := New(nil, false)
	def := plexpr.NewConstant(clock, plexpr.TypeInteger, int64(7))

	alias, err := ResolveIn(clock, root, "missing", plexpr.TypeInteger, def)
	require.NoError(t, err)
	alias.Activate()
	val, ok := alias.GetValue()
	require.True(t, ok)
	assert.Equal(t, int64(7), val)
}

func TestResolveInOutRejectsNonAssignableAncestor(t *testing.T) {
	clock := plexpr.NewClock()
	root := New(nil, false)
	require.NoError(t, root.Declare("k", plexpr.NewConstant(clock, plexpr.TypeInteger, int64(1))))

	_, err := ResolveInOut(clock, root, "k", plexpr.TypeInteger, nil)
	require.Error(t, err)
}

func TestResolveInOutForwardsWrites(t *testing.T) {
	clock := plexpr.NewClock()
	root := New(nil, false)
	x := plexpr.NewUserVariable(clock, plexpr.TypeInteger)
	x.Activate()
	require.NoError(t, root.Declare("x", x))

	alias, err := ResolveInOut(clock, root, "x", plexpr.TypeInteger, nil)
	require.NoError(t, err)
	alias.Activate()
	require.True(t, alias.SetValue(int64(42)))
	val, ok := x.GetValue()
	require.True(t, ok)
	assert.Equal(t, int64(42), val)
}

func TestResolveInOutTypeMismatch(t *testing.T) {
	clock := plexpr.NewClock()
	root := New(nil, false)
	s := plexpr.NewUserVariable(clock, plexpr.TypeString)
	require.NoError(t, root.Declare("s", s))

	_, err := ResolveInOut(clock, root, "s", plexpr.TypeInteger, nil)
	require.Error(t, err)
}
