package types

import (
	"fmt"
	"strings"
)

// Spec is the variant-specific declaration carried by a resource node.
// ResolveRefs is called by the provisioning engine immediately before the
// provider creates the resource; resolve substitutes ${ref:...} tokens in
// a string and fails if any referenced node has not been created yet.
type Spec interface {
	Kind() ResourceKind
	Validate() error
	ResolveRefs(resolve func(string) (string, error)) error
}

// FileSystemSpec declares a shared, network-attached filesystem
type FileSystemSpec struct {
	NetworkID     string
	Encrypted     bool
	RemovalPolicy RemovalPolicy
}

func (s *FileSystemSpec) Kind() ResourceKind { return KindFileSystem }

func (s *FileSystemSpec) Validate() error {
	if s.NetworkID == "" {
		return fmt.Errorf("filesystem: network placement is required")
	}
	return nil
}

func (s *FileSystemSpec) ResolveRefs(func(string) (string, error)) error { return nil }

// AccessPointSpec declares a scoped entry point into a filesystem.
// FileSystemID is a reference token; an access point is always bound to
// exactly one filesystem node.
type AccessPointSpec struct {
	FileSystemID string
	RootPath     string
}

func (s *AccessPointSpec) Kind() ResourceKind { return KindAccessPoint }

func (s *AccessPointSpec) Validate() error {
	if s.FileSystemID == "" {
		return fmt.Errorf("access point: filesystem reference is required")
	}
	return nil
}

func (s *AccessPointSpec) ResolveRefs(resolve func(string) (string, error)) error {
	return resolveFields(resolve, &s.FileSystemID)
}

// StorageMount attaches shared storage to a container or function at Path.
// FileSystemID and AccessPointID are reference tokens.
type StorageMount struct {
	FileSystemID      string
	AccessPointID     string
	Path              string
	ReadOnly          bool
	TransitEncryption bool
}

func (m *StorageMount) validate() error {
	if m.FileSystemID == "" || m.AccessPointID == "" {
		return fmt.Errorf("storage mount: filesystem and access point references are required")
	}
	if !strings.HasPrefix(m.Path, "/") {
		return fmt.Errorf("storage mount: path must be absolute, got %q", m.Path)
	}
	return nil
}

// InstanceSpec declares a persistent virtual machine. Bootstrap is an
// ordered, opaque command list run once at first boot; its commands may
// embed reference tokens (filesystem and access point ids).
type InstanceSpec struct {
	NetworkID    string
	SubnetTier   SubnetTier
	InstanceType string
	MachineImage string
	Policies     []CapabilityPolicy
	Bootstrap    []string
	ServicePort  int
	Env          map[string]string
}

func (s *InstanceSpec) Kind() ResourceKind { return KindInstance }

func (s *InstanceSpec) Validate() error {
	if s.NetworkID == "" {
		return fmt.Errorf("instance: network placement is required")
	}
	if s.MachineImage == "" {
		return fmt.Errorf("instance: machine image is required")
	}
	if s.ServicePort <= 0 {
		return fmt.Errorf("instance: service port must be positive")
	}
	return nil
}

func (s *InstanceSpec) ResolveRefs(resolve func(string) (string, error)) error {
	if err := resolveSlice(resolve, s.Bootstrap); err != nil {
		return err
	}
	return resolveMap(resolve, s.Env)
}

// ContainerServiceSpec declares a managed, long-running containerized
// service on the provider's container execution substrate
type ContainerServiceSpec struct {
	NetworkID      string
	Image          string
	CPU            int
	MemoryMiB      int
	Port           int
	AssignPublicIP bool
	Env            map[string]string
	Mount          *StorageMount
	Policies       []CapabilityPolicy
}

func (s *ContainerServiceSpec) Kind() ResourceKind { return KindContainerService }

func (s *ContainerServiceSpec) Validate() error {
	if s.NetworkID == "" {
		return fmt.Errorf("container service: network placement is required")
	}
	if s.Image == "" {
		return fmt.Errorf("container service: image reference is required")
	}
	if s.Port <= 0 {
		return fmt.Errorf("container service: port must be positive")
	}
	if s.Mount != nil {
		return s.Mount.validate()
	}
	return nil
}

func (s *ContainerServiceSpec) ResolveRefs(resolve func(string) (string, error)) error {
	if err := resolveMap(resolve, s.Env); err != nil {
		return err
	}
	if s.Mount != nil {
		return resolveFields(resolve, &s.Mount.FileSystemID, &s.Mount.AccessPointID)
	}
	return nil
}

// FunctionSpec declares an image-based serverless function attached to
// the shared network and shared storage
type FunctionSpec struct {
	NetworkID         string
	Image             string
	MemoryMiB         int
	Env               map[string]string
	Mount             *StorageMount
	AllowPublicSubnet bool
}

func (s *FunctionSpec) Kind() ResourceKind { return KindFunction }

func (s *FunctionSpec) Validate() error {
	if s.NetworkID == "" {
		return fmt.Errorf("function: network placement is required")
	}
	if s.Image == "" {
		return fmt.Errorf("function: image reference is required")
	}
	if s.Mount != nil {
		return s.Mount.validate()
	}
	return nil
}

func (s *FunctionSpec) ResolveRefs(resolve func(string) (string, error)) error {
	if err := resolveMap(resolve, s.Env); err != nil {
		return err
	}
	if s.Mount != nil {
		return resolveFields(resolve, &s.Mount.FileSystemID, &s.Mount.AccessPointID)
	}
	return nil
}

// LoadBalancerSpec declares the internet-facing entry point of the
// traffic splitter
type LoadBalancerSpec struct {
	NetworkID      string
	InternetFacing bool
}

func (s *LoadBalancerSpec) Kind() ResourceKind { return KindLoadBalancer }

func (s *LoadBalancerSpec) Validate() error {
	if s.NetworkID == "" {
		return fmt.Errorf("load balancer: network placement is required")
	}
	return nil
}

func (s *LoadBalancerSpec) ResolveRefs(func(string) (string, error)) error { return nil }

// TargetGroupSpec declares one weighted group of the splitter, addressed
// by the shape appropriate to its worker variant. TargetID is a reference
// token naming the backing worker's provider identity.
type TargetGroupSpec struct {
	NetworkID string
	Shape     TargetShape
	Port      int
	Protocol  string
	TargetID  string
}

func (s *TargetGroupSpec) Kind() ResourceKind { return KindTargetGroup }

func (s *TargetGroupSpec) Validate() error {
	switch s.Shape {
	case TargetShapeInstance, TargetShapeService:
		if s.Port <= 0 {
			return fmt.Errorf("target group: %s shape requires a positive port", s.Shape)
		}
	case TargetShapeFunction:
		// function targets are invoked, not addressed by port
	default:
		return fmt.Errorf("target group: unknown shape %q", s.Shape)
	}
	if s.TargetID == "" {
		return fmt.Errorf("target group: target reference is required")
	}
	return nil
}

func (s *TargetGroupSpec) ResolveRefs(resolve func(string) (string, error)) error {
	return resolveFields(resolve, &s.TargetID)
}

// WeightedTarget is one entry of a listener's weighted-forward rule.
// TargetGroupID is a reference token.
type WeightedTarget struct {
	TargetGroupID string
	Weight        int
}

// ListenerSpec declares the splitter's single listener and its
// weighted-forward rule across all target groups
type ListenerSpec struct {
	LoadBalancerID string
	Port           int
	Protocol       string
	Forward        []WeightedTarget
}

func (s *ListenerSpec) Kind() ResourceKind { return KindListener }

func (s *ListenerSpec) Validate() error {
	if s.LoadBalancerID == "" {
		return fmt.Errorf("listener: load balancer reference is required")
	}
	if s.Port <= 0 {
		return fmt.Errorf("listener: port must be positive")
	}
	if len(s.Forward) == 0 {
		return fmt.Errorf("listener: weighted-forward rule needs at least one target group")
	}
	positive := false
	for _, wt := range s.Forward {
		if wt.Weight < 0 {
			return fmt.Errorf("listener: target weight must be non-negative")
		}
		if wt.Weight > 0 {
			positive = true
		}
	}
	if !positive {
		return fmt.Errorf("listener: at least one target group must have weight > 0")
	}
	return nil
}

func (s *ListenerSpec) ResolveRefs(resolve func(string) (string, error)) error {
	if err := resolveFields(resolve, &s.LoadBalancerID); err != nil {
		return err
	}
	for i := range s.Forward {
		if err := resolveFields(resolve, &s.Forward[i].TargetGroupID); err != nil {
			return err
		}
	}
	return nil
}

// ConnectionGrantSpec authorizes network access from one resource's
// network identity to another on a single port. Both endpoints are
// reference tokens naming network identities.
type ConnectionGrantSpec struct {
	FromID      string
	ToID        string
	Port        int
	Description string
}

func (s *ConnectionGrantSpec) Kind() ResourceKind { return KindConnectionGrant }

func (s *ConnectionGrantSpec) Validate() error {
	if s.FromID == "" || s.ToID == "" {
		return fmt.Errorf("connection grant: both endpoints are required")
	}
	if s.Port <= 0 {
		return fmt.Errorf("connection grant: port must be positive")
	}
	return nil
}

func (s *ConnectionGrantSpec) ResolveRefs(resolve func(string) (string, error)) error {
	return resolveFields(resolve, &s.FromID, &s.ToID)
}

func resolveFields(resolve func(string) (string, error), fields ...*string) error {
	for _, f := range fields {
		v, err := resolve(*f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

func resolveSlice(resolve func(string) (string, error), items []string) error {
	for i := range items {
		v, err := resolve(items[i])
		if err != nil {
			return err
		}
		items[i] = v
	}
	return nil
}

func resolveMap(resolve func(string) (string, error), m map[string]string) error {
	for k, val := range m {
		v, err := resolve(val)
		if err != nil {
			return err
		}
		m[k] = v
	}
	return nil
}
