package provider

import (
	"context"

	"github.com/triadops/triad/pkg/types"
)

// Network is the resolved network placement shared by every resource of
// a deployment
type Network struct {
	ID             string
	CIDR           string
	PublicSubnets  []string
	PrivateSubnets []string
}

// Provider is the infrastructure provider consumed by the provisioning
// engine. Implementations perform the actual (blocking) cloud-side
// resource creation; the rest of the system never does I/O.
//
// Create receives a resource whose spec has every reference token
// already substituted, and returns a stable handle usable by dependents.
// Delete tears one resource down; the engine calls it in reverse
// creation order.
type Provider interface {
	// ResolveNetwork resolves the network placement for a deployment.
	// An empty name selects the provider's default network.
	ResolveNetwork(ctx context.Context, name string) (*Network, error)

	Create(ctx context.Context, res *types.Resource) (*types.Handle, error)

	Delete(ctx context.Context, kind types.ResourceKind, handle *types.Handle) error
}
