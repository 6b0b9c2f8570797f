package compute

import (
	"fmt"

	"github.com/triadops/triad/pkg/graph"
	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/types"
)

// Graph node IDs owned by this component
const (
	NodeVM       = "compute/vm"
	NodeService  = "compute/service"
	NodeFunction = "compute/function"
)

// Defaults for the VM worker
const (
	DefaultInstanceType = "t3.micro"
	DefaultMachineImage = "canonical-ubuntu-22.04-amd64"
)

// Options configures the compute topology
type Options struct {
	// Image is the deployable application image shared by all workers
	Image string

	// ServicePort is the port the application runtime listens on
	ServicePort int

	// MountPathEnvVar names the environment variable carrying the
	// shared mount path into each worker's runtime
	MountPathEnvVar string

	// InstanceType and MachineImage select the VM worker's hardware
	// and guest OS; empty values use the defaults
	InstanceType string
	MachineImage string
}

// Topology is the deployment's set of compute workers
type Topology struct {
	VM       *VMWorker
	Service  *ServiceWorker
	Function *FunctionWorker
}

// Workers returns all three workers
func (t *Topology) Workers() []Worker {
	return []Worker{t.VM, t.Service, t.Function}
}

// Targets builds one traffic target per worker with the given weights
func (t *Topology) Targets(vmWeight, serviceWeight, functionWeight int) []types.TrafficTarget {
	return []types.TrafficTarget{
		t.VM.Target(vmWeight),
		t.Service.Target(serviceWeight),
		t.Function.Target(functionWeight),
	}
}

// Provision declares the three workers against the same shared storage
// and image. The VM worker comes first; the service and function
// workers each declare a provisioning dependency on it, because the VM's
// bootstrap seeds the application artifact they all serve. The ordering
// is on provisioning completion only: the VM emits no readiness signal,
// so traffic may reach it before its bootstrap finishes. Service and
// function do not depend on each other and may provision concurrently.
//
// An unresolvable image reference fails the whole topology; no partial
// topology is left addressable.
func Provision(g *graph.Graph, network *provider.Network, storage types.SharedStorage, opts Options) (*Topology, error) {
	if opts.Image == "" {
		return nil, fmt.Errorf("compute topology: image reference resolution failed (empty reference)")
	}
	if opts.ServicePort <= 0 {
		return nil, fmt.Errorf("compute topology: service port must be positive")
	}

	if opts.InstanceType == "" {
		opts.InstanceType = DefaultInstanceType
	}
	if opts.MachineImage == "" {
		opts.MachineImage = DefaultMachineImage
	}

	vm, err := provisionVM(g, network, storage, opts)
	if err != nil {
		return nil, err
	}

	service, err := provisionService(g, network, storage, opts)
	if err != nil {
		return nil, err
	}

	function, err := provisionFunction(g, network, storage, opts)
	if err != nil {
		return nil, err
	}

	// Both downstream workers wait for the VM's provisioning node, not
	// for the seeded artifact itself.
	if err := g.AddDependency(NodeService, NodeVM); err != nil {
		return nil, err
	}
	if err := g.AddDependency(NodeFunction, NodeVM); err != nil {
		return nil, err
	}

	return &Topology{VM: vm, Service: service, Function: function}, nil
}

// storageDependencies extracts the graph node IDs behind the storage
// identity's reference tokens, so workers can declare explicit edges on
// the filesystem and access point
func storageDependencies(storage types.SharedStorage) []string {
	var deps []string
	seen := make(map[string]bool)
	for _, token := range []string{storage.VolumeID, storage.AccessPointID} {
		for _, ref := range types.ParseRefs(token) {
			if !seen[ref.NodeID] {
				seen[ref.NodeID] = true
				deps = append(deps, ref.NodeID)
			}
		}
	}
	return deps
}

func addStorageDependencies(g *graph.Graph, workerID string, storage types.SharedStorage) error {
	for _, dep := range storageDependencies(storage) {
		if err := g.AddDependency(workerID, dep); err != nil {
			return err
		}
	}
	return nil
}
