package balancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triadops/triad/pkg/graph"
	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/types"
)

func testNetwork() *provider.Network {
	return &provider.Network{ID: "net-default"}
}

func declareWorkers(t *testing.T, g *graph.Graph) {
	t.Helper()
	require.NoError(t, g.Add(types.NewResource("compute/vm", "vm-worker", &types.InstanceSpec{
		NetworkID:    "net-default",
		MachineImage: "canonical-ubuntu-22.04-amd64",
		ServicePort:  3000,
	})))
	require.NoError(t, g.Add(types.NewResource("compute/service", "service-worker", &types.ContainerServiceSpec{
		NetworkID: "net-default",
		Image:     "registry.example.com/app:v1",
		Port:      3000,
	})))
	require.NoError(t, g.Add(types.NewResource("compute/function", "function-worker", &types.FunctionSpec{
		NetworkID: "net-default",
		Image:     "registry.example.com/app:v1",
	})))
}

func testTargets(vm, svc, fn int) []types.TrafficTarget {
	return []types.TrafficTarget{
		{Shape: types.TargetShapeInstance, ResourceID: "compute/vm", Port: 3000, Weight: vm},
		{Shape: types.TargetShapeService, ResourceID: "compute/service", Port: 3000, Weight: svc},
		{Shape: types.TargetShapeFunction, ResourceID: "compute/function", Weight: fn},
	}
}

func TestProvisionDeclaresSplitter(t *testing.T) {
	g := graph.New()
	declareWorkers(t, g)

	b, err := Provision(g, testNetwork(), 80, testTargets(1, 1, 1))
	require.NoError(t, err)

	assert.True(t, g.Contains(NodeLoadBalancer))
	assert.True(t, g.Contains(NodeListener))
	require.Len(t, b.TargetGroups(), 3)

	// The listener waits for the load balancer and for every group.
	assert.True(t, g.DependsOn(NodeListener, NodeLoadBalancer))
	for _, tgID := range b.TargetGroups() {
		assert.True(t, g.DependsOn(NodeListener, tgID))
	}

	// Each group waits for the worker it fronts.
	assert.True(t, g.DependsOn(TargetGroupNode(types.TargetShapeInstance), "compute/vm"))
	assert.True(t, g.DependsOn(TargetGroupNode(types.TargetShapeService), "compute/service"))
	assert.True(t, g.DependsOn(TargetGroupNode(types.TargetShapeFunction), "compute/function"))
}

func TestProvisionWeightsCarriedVerbatim(t *testing.T) {
	g := graph.New()
	declareWorkers(t, g)

	_, err := Provision(g, testNetwork(), 80, testTargets(0, 2, 1))
	require.NoError(t, err)

	listener, err := g.Resource(NodeListener)
	require.NoError(t, err)
	spec := listener.Spec.(*types.ListenerSpec)
	require.Len(t, spec.Forward, 3)

	weights := make(map[string]int)
	for _, wt := range spec.Forward {
		weights[wt.TargetGroupID] = wt.Weight
	}
	assert.Equal(t, 0, weights[types.Ref(TargetGroupNode(types.TargetShapeInstance), types.AttrARN)])
	assert.Equal(t, 2, weights[types.Ref(TargetGroupNode(types.TargetShapeService), types.AttrARN)])
	assert.Equal(t, 1, weights[types.Ref(TargetGroupNode(types.TargetShapeFunction), types.AttrARN)])

	// Weight zero still declares and wires the group.
	assert.True(t, g.Contains(TargetGroupNode(types.TargetShapeInstance)))
}

func TestProvisionAllZeroWeightsIsFatal(t *testing.T) {
	g := graph.New()
	declareWorkers(t, g)

	_, err := Provision(g, testNetwork(), 80, testTargets(0, 0, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight")
}

func TestProvisionUndeclaredWorkerIsFatal(t *testing.T) {
	g := graph.New()
	declareWorkers(t, g)

	targets := testTargets(1, 1, 1)
	targets[2].ResourceID = "compute/ghost"

	_, err := Provision(g, testNetwork(), 80, targets)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrUnresolvedReference)
	assert.False(t, g.Contains(NodeLoadBalancer), "no partial splitter may be declared")
}

func TestProvisionMissingShapeIsFatal(t *testing.T) {
	g := graph.New()
	declareWorkers(t, g)

	_, err := Provision(g, testNetwork(), 80, testTargets(1, 1, 1)[:2])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function")
}

func TestInstanceTrafficGrant(t *testing.T) {
	g := graph.New()
	declareWorkers(t, g)

	_, err := Provision(g, testNetwork(), 80, testTargets(1, 1, 1))
	require.NoError(t, err)

	grant, err := g.Resource(NodeAllowVM)
	require.NoError(t, err)
	spec := grant.Spec.(*types.ConnectionGrantSpec)
	assert.Equal(t, types.Ref(NodeLoadBalancer, types.AttrNetworkIdentity), spec.FromID)
	assert.Equal(t, types.Ref("compute/vm", types.AttrNetworkIdentity), spec.ToID)
	assert.Equal(t, 3000, spec.Port)
	assert.True(t, g.DependsOn(NodeAllowVM, NodeLoadBalancer))
	assert.True(t, g.DependsOn(NodeAllowVM, "compute/vm"))
}

func TestEndpointIsResolvableToken(t *testing.T) {
	g := graph.New()
	declareWorkers(t, g)

	b, err := Provision(g, testNetwork(), 80, testTargets(1, 1, 1))
	require.NoError(t, err)

	refs := types.ParseRefs(b.Endpoint())
	require.Len(t, refs, 1)
	assert.Equal(t, NodeLoadBalancer, refs[0].NodeID)
	assert.Equal(t, types.AttrDNSName, refs[0].Attribute)
}
