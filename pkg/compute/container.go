package compute

import (
	"github.com/triadops/triad/pkg/graph"
	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/types"
)

// Sizing for the container worker's task
const (
	serviceCPUUnits  = 256
	serviceMemoryMiB = 512
)

// provisionService declares the managed container worker: one
// long-running containerized service on the provider's container
// execution substrate, serving the shared image with the shared storage
// volume mounted at the common path.
func provisionService(g *graph.Graph, network *provider.Network, storage types.SharedStorage, opts Options) (*ServiceWorker, error) {
	node := types.NewResource(NodeService, "service-worker", &types.ContainerServiceSpec{
		NetworkID:      network.ID,
		Image:          opts.Image,
		CPU:            serviceCPUUnits,
		MemoryMiB:      serviceMemoryMiB,
		Port:           opts.ServicePort,
		AssignPublicIP: true,
		Env: map[string]string{
			opts.MountPathEnvVar: storage.MountPath,
		},
		Mount: &types.StorageMount{
			FileSystemID:      storage.VolumeID,
			AccessPointID:     storage.AccessPointID,
			Path:              storage.MountPath,
			TransitEncryption: true,
		},
		Policies: []types.CapabilityPolicy{
			types.PolicyStorageReadWrite,
		},
	})
	if err := g.Add(node); err != nil {
		return nil, err
	}
	if err := addStorageDependencies(g, NodeService, storage); err != nil {
		return nil, err
	}

	return &ServiceWorker{node: node, servicePort: opts.ServicePort}, nil
}
