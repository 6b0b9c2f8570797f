package types

import (
	"time"
)

// ResourceKind identifies the kind of an infrastructure resource node
type ResourceKind string

const (
	KindFileSystem       ResourceKind = "filesystem"
	KindAccessPoint      ResourceKind = "access-point"
	KindInstance         ResourceKind = "instance"
	KindContainerService ResourceKind = "container-service"
	KindFunction         ResourceKind = "function"
	KindLoadBalancer     ResourceKind = "load-balancer"
	KindListener         ResourceKind = "listener"
	KindTargetGroup      ResourceKind = "target-group"
	KindConnectionGrant  ResourceKind = "connection-grant"
)

// Resource is a single node in the provisioning graph: a typed declaration
// that the provider turns into one concrete infrastructure resource.
type Resource struct {
	ID   string
	Name string
	Kind ResourceKind
	Spec Spec
}

// NewResource creates a resource node for the given spec
func NewResource(id, name string, spec Spec) *Resource {
	return &Resource{
		ID:   id,
		Name: name,
		Kind: spec.Kind(),
		Spec: spec,
	}
}

// Handle is the provider-assigned identity of a created resource.
// Attributes carry provider-specific values (DNS names, ARNs, network
// identities) that dependents reference via ${ref:...} tokens.
type Handle struct {
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Well-known handle attribute names
const (
	AttrID              = "id"
	AttrDNSName         = "dns_name"
	AttrARN             = "arn"
	AttrNetworkIdentity = "network_identity"
)

// Attr returns a named attribute of the handle. AttrID maps to the
// handle's primary identity.
func (h *Handle) Attr(name string) (string, bool) {
	if name == AttrID {
		return h.ID, h.ID != ""
	}
	v, ok := h.Attributes[name]
	return v, ok
}

// RemovalPolicy controls what happens to a resource's data on teardown
type RemovalPolicy string

const (
	RemovalPolicyDestroy RemovalPolicy = "destroy"
	RemovalPolicyRetain  RemovalPolicy = "retain"
)

// SubnetTier selects network placement for a compute resource
type SubnetTier string

const (
	SubnetTierPublic  SubnetTier = "public"
	SubnetTierPrivate SubnetTier = "private"
)

// CapabilityPolicy is an opaque capability grant attached to a compute
// identity, resolved by the provider to its own policy mechanism
type CapabilityPolicy string

const (
	// PolicyRemoteSession allows interactive remote sessions into a VM
	PolicyRemoteSession CapabilityPolicy = "remote-session"

	// PolicyStorageReadWrite allows read/write access to shared storage
	PolicyStorageReadWrite CapabilityPolicy = "storage-read-write"
)

// SharedStorage is the identity of the deployment's shared filesystem as
// seen by compute workers: the volume, the scoped access point into it,
// and the path every worker mounts it at. VolumeID and AccessPointID are
// reference tokens resolved at provisioning time.
type SharedStorage struct {
	VolumeID      string
	AccessPointID string
	MountPath     string
	RemovalPolicy RemovalPolicy
}

// TargetShape distinguishes the three incompatible target addressing
// modes a traffic splitter must support
type TargetShape string

const (
	TargetShapeInstance TargetShape = "instance"
	TargetShapeService  TargetShape = "service"
	TargetShapeFunction TargetShape = "function"
)

// TrafficTarget is a worker's variant-specific descriptor consumed
// uniformly by the traffic splitter. ResourceID names the worker's graph
// node; Port is meaningful for instance and service shapes only.
type TrafficTarget struct {
	Shape      TargetShape
	ResourceID string
	Port       int
	Weight     int
}

// Deployment is the persisted record of one provisioned deployment.
// Resources are stored in creation order so teardown can run in reverse.
type Deployment struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Image     string                `json:"image"`
	Endpoint  string                `json:"endpoint"`
	CreatedAt time.Time             `json:"created_at"`
	Resources []ProvisionedResource `json:"resources"`
}

// ProvisionedResource pairs a graph node with the handle the provider
// returned for it
type ProvisionedResource struct {
	NodeID string       `json:"node_id"`
	Kind   ResourceKind `json:"kind"`
	Handle Handle       `json:"handle"`
}
