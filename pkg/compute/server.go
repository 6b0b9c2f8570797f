package compute

import (
	"github.com/triadops/triad/pkg/graph"
	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/types"
)

// provisionVM declares the persistent VM worker on a public network
// segment, grants it remote-session and storage capability policies,
// and assigns its first-boot bootstrap procedure: update the OS, install
// the storage client, mount shared storage, install the build
// toolchain, install the runtime engine, seed the application artifact
// onto shared storage, and launch the runtime on the service port.
func provisionVM(g *graph.Graph, network *provider.Network, storage types.SharedStorage, opts Options) (*VMWorker, error) {
	script := NewScriptBuilder()
	script.UpdateSystem()
	script.InstallStorageClient()
	script.MountStorage(storage.VolumeID, storage.AccessPointID, storage.MountPath)
	script.InstallToolchain()
	script.InstallRuntime()
	script.SeedApplication(storage.MountPath)
	script.LaunchRuntime(storage.MountPath, opts.ServicePort)

	node := types.NewResource(NodeVM, "vm-worker", &types.InstanceSpec{
		NetworkID:    network.ID,
		SubnetTier:   types.SubnetTierPublic,
		InstanceType: opts.InstanceType,
		MachineImage: opts.MachineImage,
		Policies: []types.CapabilityPolicy{
			types.PolicyRemoteSession,
			types.PolicyStorageReadWrite,
		},
		Bootstrap:   script.Build(),
		ServicePort: opts.ServicePort,
		Env: map[string]string{
			opts.MountPathEnvVar: storage.MountPath,
		},
	})
	if err := g.Add(node); err != nil {
		return nil, err
	}
	if err := addStorageDependencies(g, NodeVM, storage); err != nil {
		return nil, err
	}

	return &VMWorker{node: node, servicePort: opts.ServicePort}, nil
}
