package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triadops/triad/pkg/types"
)

func fsResource(id string) *types.Resource {
	return types.NewResource(id, id, &types.FileSystemSpec{
		NetworkID:     "net-1",
		RemovalPolicy: types.RemovalPolicyDestroy,
	})
}

func TestAdd(t *testing.T) {
	g := New()
	require.NoError(t, g.Add(fsResource("a")))
	assert.True(t, g.Contains("a"))
	assert.Equal(t, 1, g.Len())

	err := g.Add(fsResource("a"))
	assert.ErrorIs(t, err, ErrDuplicateResource)
}

func TestAddRejectsInvalidSpec(t *testing.T) {
	g := New()
	err := g.Add(types.NewResource("bad", "bad", &types.FileSystemSpec{}))
	assert.Error(t, err)
	assert.False(t, g.Contains("bad"))
}

func TestAddDependencyUnresolvedReference(t *testing.T) {
	g := New()
	require.NoError(t, g.Add(fsResource("a")))

	err := g.AddDependency("a", "missing")
	assert.ErrorIs(t, err, ErrUnresolvedReference)

	err = g.AddDependency("missing", "a")
	assert.ErrorIs(t, err, ErrUnresolvedReference)
}

func TestTopoSortRespectsDependencies(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, g.Add(fsResource(id)))
	}
	require.NoError(t, g.AddDependency("b", "a"))
	require.NoError(t, g.AddDependency("c", "a"))
	require.NoError(t, g.AddDependency("d", "b"))
	require.NoError(t, g.AddDependency("d", "c"))

	ordered, err := g.TopoSort()
	require.NoError(t, err)
	require.Len(t, ordered, 4)

	pos := make(map[string]int)
	for i, res := range ordered {
		pos[res.ID] = i
	}
	assert.Less(t, pos["a"], pos["b"])
	assert.Less(t, pos["a"], pos["c"])
	assert.Less(t, pos["b"], pos["d"])
	assert.Less(t, pos["c"], pos["d"])
}

func TestTopoSortDeterministic(t *testing.T) {
	g := New()
	for _, id := range []string{"z", "m", "a"} {
		require.NoError(t, g.Add(fsResource(id)))
	}

	// No edges: order must fall back to declaration order, stably.
	for i := 0; i < 5; i++ {
		ordered, err := g.TopoSort()
		require.NoError(t, err)
		assert.Equal(t, "z", ordered[0].ID)
		assert.Equal(t, "m", ordered[1].ID)
		assert.Equal(t, "a", ordered[2].ID)
	}
}

func TestTopoSortCycle(t *testing.T) {
	g := New()
	require.NoError(t, g.Add(fsResource("a")))
	require.NoError(t, g.Add(fsResource("b")))
	require.NoError(t, g.AddDependency("a", "b"))
	require.NoError(t, g.AddDependency("b", "a"))

	_, err := g.TopoSort()
	assert.ErrorIs(t, err, ErrCycle)
}

func TestDependsOnTransitive(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, g.Add(fsResource(id)))
	}
	require.NoError(t, g.AddDependency("b", "a"))
	require.NoError(t, g.AddDependency("c", "b"))

	assert.True(t, g.DependsOn("c", "a"))
	assert.True(t, g.DependsOn("b", "a"))
	assert.False(t, g.DependsOn("a", "c"))
	assert.False(t, g.DependsOn("b", "c"))
}

func TestDependenciesAreCopied(t *testing.T) {
	g := New()
	require.NoError(t, g.Add(fsResource("a")))
	require.NoError(t, g.Add(fsResource("b")))
	require.NoError(t, g.AddDependency("b", "a"))

	deps := g.Dependencies("b")
	deps[0] = "mutated"
	assert.Equal(t, []string{"a"}, g.Dependencies("b"))
}

func TestDuplicateDependencyIgnored(t *testing.T) {
	g := New()
	require.NoError(t, g.Add(fsResource("a")))
	require.NoError(t, g.Add(fsResource("b")))
	require.NoError(t, g.AddDependency("b", "a"))
	require.NoError(t, g.AddDependency("b", "a"))
	assert.Len(t, g.Dependencies("b"), 1)
}
