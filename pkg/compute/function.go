package compute

import (
	"github.com/triadops/triad/pkg/graph"
	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/types"
)

const functionMemoryMiB = 512

// provisionFunction declares the serverless worker: one image-based
// function attached to the shared network and the same storage access
// point at the same mount path as the other two workers.
func provisionFunction(g *graph.Graph, network *provider.Network, storage types.SharedStorage, opts Options) (*FunctionWorker, error) {
	node := types.NewResource(NodeFunction, "function-worker", &types.FunctionSpec{
		NetworkID: network.ID,
		Image:     opts.Image,
		MemoryMiB: functionMemoryMiB,
		Env: map[string]string{
			opts.MountPathEnvVar: storage.MountPath,
		},
		Mount: &types.StorageMount{
			FileSystemID:      storage.VolumeID,
			AccessPointID:     storage.AccessPointID,
			Path:              storage.MountPath,
			TransitEncryption: true,
		},
		AllowPublicSubnet: true,
	})
	if err := g.Add(node); err != nil {
		return nil, err
	}
	if err := addStorageDependencies(g, NodeFunction, storage); err != nil {
		return nil, err
	}

	return &FunctionWorker{node: node}, nil
}
