package deploy

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triadops/triad/pkg/balancer"
	"github.com/triadops/triad/pkg/compute"
	"github.com/triadops/triad/pkg/config"
	"github.com/triadops/triad/pkg/datastore"
	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/state"
	"github.com/triadops/triad/pkg/types"
)

func testConfig(name string) *config.Config {
	cfg := &config.Config{
		Name:  name,
		Image: "registry.example.com/app:v1",
	}
	cfg.ApplyDefaults()
	return cfg
}

func testDeployer(t *testing.T, fake *provider.Fake) (*Deployer, state.Store) {
	t.Helper()
	store, err := state.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(fake, store), store
}

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

func TestDeployEndToEnd(t *testing.T) {
	fake := provider.NewFake()
	d, store := testDeployer(t, fake)

	deployment, err := d.Deploy(context.Background(), testConfig("demo"))
	require.NoError(t, err)

	// The endpoint is the splitter's resolved address, not a token.
	assert.True(t, strings.HasSuffix(deployment.Endpoint, ".elb.fake.example.com"),
		"endpoint %q should be resolved", deployment.Endpoint)
	assert.NotContains(t, deployment.Endpoint, "${ref:")

	// The record is persisted and replayable.
	saved, err := store.GetDeployment("demo")
	require.NoError(t, err)
	assert.Equal(t, deployment.Endpoint, saved.Endpoint)
	assert.Len(t, saved.Resources, len(fake.Created()))

	order := fake.CreationOrder()

	// Storage precedes everything that mounts it.
	fs := indexOf(order, datastore.NodeFileSystem)
	ap := indexOf(order, datastore.NodeAccessPoint)
	vm := indexOf(order, compute.NodeVM)
	svc := indexOf(order, compute.NodeService)
	fn := indexOf(order, compute.NodeFunction)
	listener := indexOf(order, balancer.NodeListener)
	require.NotEqual(t, -1, fs)
	require.NotEqual(t, -1, listener)

	assert.Less(t, fs, ap)
	assert.Less(t, ap, vm)

	// The VM worker completes before the other two begin.
	assert.Less(t, vm, svc)
	assert.Less(t, vm, fn)

	// The listener comes after every target group.
	for _, shape := range []types.TargetShape{types.TargetShapeInstance, types.TargetShapeService, types.TargetShapeFunction} {
		tg := indexOf(order, balancer.TargetGroupNode(shape))
		require.NotEqual(t, -1, tg)
		assert.Less(t, tg, listener)
	}
}

func TestDeployResolvesStorageIdentities(t *testing.T) {
	fake := provider.NewFake()
	d, _ := testDeployer(t, fake)

	_, err := d.Deploy(context.Background(), testConfig("demo"))
	require.NoError(t, err)

	var fsHandle, apHandle string
	for _, c := range fake.Created() {
		switch c.NodeID {
		case datastore.NodeFileSystem:
			fsHandle = c.HandleID
		case datastore.NodeAccessPoint:
			apHandle = c.HandleID
		}
	}
	require.NotEmpty(t, fsHandle)
	require.NotEmpty(t, apHandle)

	for _, c := range fake.Created() {
		switch spec := c.Spec.(type) {
		case *types.InstanceSpec:
			script := strings.Join(spec.Bootstrap, "\n")
			assert.Contains(t, script, fsHandle)
			assert.Contains(t, script, apHandle)
			assert.NotContains(t, script, "${ref:")
		case *types.ContainerServiceSpec:
			assert.Equal(t, fsHandle, spec.Mount.FileSystemID)
			assert.Equal(t, apHandle, spec.Mount.AccessPointID)
		case *types.FunctionSpec:
			assert.Equal(t, fsHandle, spec.Mount.FileSystemID)
			assert.Equal(t, apHandle, spec.Mount.AccessPointID)
		}
	}
}

func TestDeployGrantCoverage(t *testing.T) {
	fake := provider.NewFake()
	d, _ := testDeployer(t, fake)

	_, err := d.Deploy(context.Background(), testConfig("demo"))
	require.NoError(t, err)

	var storageGrants, splitterGrants int
	for _, c := range fake.Created() {
		if c.Kind != types.KindConnectionGrant {
			continue
		}
		spec := c.Spec.(*types.ConnectionGrantSpec)
		assert.NotContains(t, spec.FromID, "${ref:", "grant endpoints must be resolved")
		assert.NotContains(t, spec.ToID, "${ref:")
		switch spec.Port {
		case config.StoragePort:
			storageGrants++
		case config.ServicePort:
			splitterGrants++
		}
	}

	// One storage grant per worker plus the splitter's grant into the VM.
	assert.Equal(t, 3, storageGrants)
	assert.Equal(t, 1, splitterGrants)
}

func TestDeployWeightsIncludingZero(t *testing.T) {
	fake := provider.NewFake()
	d, _ := testDeployer(t, fake)

	zero, two, one := 0, 2, 1
	cfg := testConfig("demo")
	cfg.Weights = &config.WeightConfig{VM: &zero, Service: &two, Function: &one}

	_, err := d.Deploy(context.Background(), cfg)
	require.NoError(t, err)

	var listenerSpec *types.ListenerSpec
	for _, c := range fake.Created() {
		if c.NodeID == balancer.NodeListener {
			listenerSpec = c.Spec.(*types.ListenerSpec)
		}
	}
	require.NotNil(t, listenerSpec)
	require.Len(t, listenerSpec.Forward, 3, "a drained target still has its group")

	weights := make([]int, 0, 3)
	for _, wt := range listenerSpec.Forward {
		assert.NotContains(t, wt.TargetGroupID, "${ref:")
		weights = append(weights, wt.Weight)
	}
	assert.ElementsMatch(t, []int{0, 2, 1}, weights)
}

func TestDeployFailureIsFatal(t *testing.T) {
	fake := provider.NewFake()
	fake.FailNode = compute.NodeFunction
	d, store := testDeployer(t, fake)

	deployment, err := d.Deploy(context.Background(), testConfig("demo"))
	require.Error(t, err)
	assert.Nil(t, deployment)

	// No endpoint, no record.
	_, err = store.GetDeployment("demo")
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestDestroyReversesCreation(t *testing.T) {
	fake := provider.NewFake()
	d, store := testDeployer(t, fake)

	_, err := d.Deploy(context.Background(), testConfig("demo"))
	require.NoError(t, err)

	created := fake.Created()
	require.NoError(t, d.Destroy(context.Background(), "demo"))

	deleted := fake.Deleted()
	require.Len(t, deleted, len(created))
	for i, c := range created {
		assert.Equal(t, c.HandleID, deleted[len(deleted)-1-i])
	}

	_, err = store.GetDeployment("demo")
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestDestroyUnknownDeployment(t *testing.T) {
	fake := provider.NewFake()
	d, _ := testDeployer(t, fake)

	err := d.Destroy(context.Background(), "absent")
	assert.ErrorIs(t, err, state.ErrNotFound)
}
