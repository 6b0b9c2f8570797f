package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triadops/triad/pkg/graph"
	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/types"
)

func buildStorageGraph(t *testing.T) (*graph.Graph, *types.AccessPointSpec) {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.Add(types.NewResource("fs", "shared-fs", &types.FileSystemSpec{
		NetworkID:     "net-default",
		RemovalPolicy: types.RemovalPolicyDestroy,
	})))
	apSpec := &types.AccessPointSpec{
		FileSystemID: types.Ref("fs", types.AttrID),
		RootPath:     "/",
	}
	require.NoError(t, g.Add(types.NewResource("ap", "shared-fs-ap", apSpec)))
	require.NoError(t, g.AddDependency("ap", "fs"))
	return g, apSpec
}

func TestApplyHonorsDependencyEdges(t *testing.T) {
	g := graph.New()
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		require.NoError(t, g.Add(types.NewResource(id, id, &types.FileSystemSpec{
			NetworkID: "net", RemovalPolicy: types.RemovalPolicyDestroy,
		})))
	}
	require.NoError(t, g.AddDependency("b", "a"))
	require.NoError(t, g.AddDependency("c", "b"))
	// d is independent and may land anywhere.

	fake := provider.NewFake()
	result, err := New(fake, WithParallelism(8)).Apply(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, result.Order, 4)

	pos := make(map[string]int)
	for i, id := range fake.CreationOrder() {
		pos[id] = i
	}
	assert.Less(t, pos["a"], pos["b"])
	assert.Less(t, pos["b"], pos["c"])
}

func TestApplyResolvesReferences(t *testing.T) {
	g, apSpec := buildStorageGraph(t)

	fake := provider.NewFake()
	result, err := New(fake).Apply(context.Background(), g)
	require.NoError(t, err)

	fsHandle := result.Handles["fs"]
	require.NotNil(t, fsHandle)
	assert.Equal(t, fsHandle.ID, apSpec.FileSystemID,
		"access point spec must reach the provider with the filesystem handle substituted")
}

func TestApplyUnresolvedTokenIsFatal(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Add(types.NewResource("ap", "ap", &types.AccessPointSpec{
		FileSystemID: types.Ref("ghost", types.AttrID),
	})))

	result, err := New(provider.NewFake()).Apply(context.Background(), g)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, graph.ErrUnresolvedReference)
}

func TestApplyProviderFailureIsFatal(t *testing.T) {
	g, _ := buildStorageGraph(t)

	fake := provider.NewFake()
	fake.FailNode = "ap"

	result, err := New(fake).Apply(context.Background(), g)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ap")
}

func TestApplyFailureCancelsRemainingWork(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Add(types.NewResource("a", "a", &types.FileSystemSpec{
		NetworkID: "net", RemovalPolicy: types.RemovalPolicyDestroy,
	})))
	require.NoError(t, g.Add(types.NewResource("b", "b", &types.FileSystemSpec{
		NetworkID: "net", RemovalPolicy: types.RemovalPolicyDestroy,
	})))
	require.NoError(t, g.AddDependency("b", "a"))

	fake := provider.NewFake()
	fake.FailNode = "a"

	result, err := New(fake).Apply(context.Background(), g)
	assert.Nil(t, result)
	require.Error(t, err)
	// b depends on a, so it must never reach the provider.
	assert.NotContains(t, fake.CreationOrder(), "b")
}

func TestResultResolve(t *testing.T) {
	g, _ := buildStorageGraph(t)

	result, err := New(provider.NewFake()).Apply(context.Background(), g)
	require.NoError(t, err)

	id, err := result.Resolve(types.Ref("fs", types.AttrID))
	require.NoError(t, err)
	assert.Equal(t, result.Handles["fs"].ID, id)

	_, err = result.Resolve(types.Ref("fs", "no_such_attribute"))
	assert.ErrorIs(t, err, graph.ErrUnresolvedReference)

	_, err = result.Resolve(types.Ref("ghost", types.AttrID))
	assert.ErrorIs(t, err, graph.ErrUnresolvedReference)
}

func TestDestroyReverseOrder(t *testing.T) {
	g, _ := buildStorageGraph(t)

	fake := provider.NewFake()
	eng := New(fake)
	result, err := eng.Apply(context.Background(), g)
	require.NoError(t, err)

	require.NoError(t, eng.Destroy(context.Background(), result.Order))

	deleted := fake.Deleted()
	require.Len(t, deleted, 2)
	// The access point was created last, so it must be deleted first.
	assert.Equal(t, result.Order[1].Handle.ID, deleted[0])
	assert.Equal(t, result.Order[0].Handle.ID, deleted[1])
}

func TestApplyRejectsCyclicGraph(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.Add(types.NewResource("a", "a", &types.FileSystemSpec{
		NetworkID: "net", RemovalPolicy: types.RemovalPolicyDestroy,
	})))
	require.NoError(t, g.Add(types.NewResource("b", "b", &types.FileSystemSpec{
		NetworkID: "net", RemovalPolicy: types.RemovalPolicyDestroy,
	})))
	require.NoError(t, g.AddDependency("a", "b"))
	require.NoError(t, g.AddDependency("b", "a"))

	fake := provider.NewFake()
	_, err := New(fake).Apply(context.Background(), g)
	assert.ErrorIs(t, err, graph.ErrCycle)
	assert.Empty(t, fake.CreationOrder())
}
