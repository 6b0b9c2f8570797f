package datastore

import (
	"fmt"

	"github.com/triadops/triad/pkg/config"
	"github.com/triadops/triad/pkg/graph"
	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/types"
)

// Graph node IDs owned by this component
const (
	NodeFileSystem  = "datastore/filesystem"
	NodeAccessPoint = "datastore/access-point"
)

// Principal is a compute resource that needs network access to the
// shared storage. Its network identity is a reference token resolved at
// provisioning time; a principal whose identity cannot be resolved is a
// caller ordering bug and fails the deployment.
type Principal interface {
	ResourceID() string
	NetworkIdentity() string
}

// Datastore declares the deployment's shared storage: one network
// filesystem plus one scoped access point into it. The filesystem uses a
// destructive removal policy, so its data does not outlive the
// deployment.
type Datastore struct {
	graph     *graph.Graph
	mountPath string
	grants    []string
}

// Provision declares the filesystem and access point nodes
func Provision(g *graph.Graph, network *provider.Network, mountPath string) (*Datastore, error) {
	fs := types.NewResource(NodeFileSystem, "shared-storage", &types.FileSystemSpec{
		NetworkID:     network.ID,
		Encrypted:     true,
		RemovalPolicy: types.RemovalPolicyDestroy,
	})
	if err := g.Add(fs); err != nil {
		return nil, err
	}

	ap := types.NewResource(NodeAccessPoint, "shared-storage-ap", &types.AccessPointSpec{
		FileSystemID: types.Ref(NodeFileSystem, types.AttrID),
		RootPath:     "/",
	})
	if err := g.Add(ap); err != nil {
		return nil, err
	}
	if err := g.AddDependency(NodeAccessPoint, NodeFileSystem); err != nil {
		return nil, err
	}

	return &Datastore{graph: g, mountPath: mountPath}, nil
}

// SharedStorage returns the storage identity handed to every compute
// worker. VolumeID and AccessPointID are reference tokens.
func (d *Datastore) SharedStorage() types.SharedStorage {
	return types.SharedStorage{
		VolumeID:      types.Ref(NodeFileSystem, types.AttrID),
		AccessPointID: types.Ref(NodeAccessPoint, types.AttrID),
		MountPath:     d.mountPath,
		RemovalPolicy: types.RemovalPolicyDestroy,
	}
}

// AllowConnectionsFrom grants each principal network access to the
// storage's service port. Both the storage and every principal must
// already be declared; a missing principal is fatal, not retryable.
func (d *Datastore) AllowConnectionsFrom(principals ...Principal) error {
	for _, p := range principals {
		if !d.graph.Contains(p.ResourceID()) {
			return fmt.Errorf("%w: principal %s", graph.ErrUnresolvedReference, p.ResourceID())
		}

		id := "datastore/grant/" + p.ResourceID()
		grant := types.NewResource(id, "storage-access", &types.ConnectionGrantSpec{
			FromID:      p.NetworkIdentity(),
			ToID:        types.Ref(NodeFileSystem, types.AttrNetworkIdentity),
			Port:        config.StoragePort,
			Description: fmt.Sprintf("shared storage access for %s", p.ResourceID()),
		})
		if err := d.graph.Add(grant); err != nil {
			return err
		}
		if err := d.graph.AddDependency(id, NodeFileSystem); err != nil {
			return err
		}
		if err := d.graph.AddDependency(id, p.ResourceID()); err != nil {
			return err
		}
		d.grants = append(d.grants, id)
	}
	return nil
}

// Grants returns the node IDs of all connection grants declared so far
func (d *Datastore) Grants() []string {
	out := make([]string, len(d.grants))
	copy(out, d.grants)
	return out
}
