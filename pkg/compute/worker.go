package compute

import (
	"github.com/triadops/triad/pkg/types"
)

// Worker is one compute backend of the deployment. Each variant knows
// its graph node, its network identity (a reference token usable in
// connection grants), and how to describe itself as a traffic target.
type Worker interface {
	ResourceID() string
	NetworkIdentity() string
	Target(weight int) types.TrafficTarget
}

// VMWorker is the persistent virtual machine. It performs the one-time
// seed/build of the application artifact onto shared storage during its
// bootstrap, which is why the other two workers are ordered after it.
type VMWorker struct {
	node        *types.Resource
	servicePort int
}

func (w *VMWorker) ResourceID() string { return w.node.ID }

func (w *VMWorker) NetworkIdentity() string {
	return types.Ref(w.node.ID, types.AttrNetworkIdentity)
}

func (w *VMWorker) Target(weight int) types.TrafficTarget {
	return types.TrafficTarget{
		Shape:      types.TargetShapeInstance,
		ResourceID: w.node.ID,
		Port:       w.servicePort,
		Weight:     weight,
	}
}

// Bootstrap returns the VM's ordered bootstrap procedure
func (w *VMWorker) Bootstrap() []string {
	spec := w.node.Spec.(*types.InstanceSpec)
	out := make([]string, len(spec.Bootstrap))
	copy(out, spec.Bootstrap)
	return out
}

// ServiceWorker is the managed, container-based long-running instance
type ServiceWorker struct {
	node        *types.Resource
	servicePort int
}

func (w *ServiceWorker) ResourceID() string { return w.node.ID }

func (w *ServiceWorker) NetworkIdentity() string {
	return types.Ref(w.node.ID, types.AttrNetworkIdentity)
}

func (w *ServiceWorker) Target(weight int) types.TrafficTarget {
	return types.TrafficTarget{
		Shape:      types.TargetShapeService,
		ResourceID: w.node.ID,
		Port:       w.servicePort,
		Weight:     weight,
	}
}

// FunctionWorker is the event-invoked, image-based serverless unit
type FunctionWorker struct {
	node *types.Resource
}

func (w *FunctionWorker) ResourceID() string { return w.node.ID }

func (w *FunctionWorker) NetworkIdentity() string {
	return types.Ref(w.node.ID, types.AttrNetworkIdentity)
}

func (w *FunctionWorker) Target(weight int) types.TrafficTarget {
	return types.TrafficTarget{
		Shape:      types.TargetShapeFunction,
		ResourceID: w.node.ID,
		Weight:     weight,
	}
}
