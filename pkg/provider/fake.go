package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/triadops/triad/pkg/types"
)

// Fake is an in-memory Provider used by tests. It records every call in
// order, assigns deterministic handles, and can be programmed to fail on
// a given node or kind.
type Fake struct {
	mu      sync.Mutex
	seq     int
	created []FakeCreation
	deleted []string

	// FailNode and FailKind make Create fail for a matching resource
	FailNode string
	FailKind types.ResourceKind

	// NetworkErr makes ResolveNetwork fail
	NetworkErr error
}

// FakeCreation records one Create call
type FakeCreation struct {
	NodeID   string
	Kind     types.ResourceKind
	Spec     types.Spec
	HandleID string
}

// NewFake creates a fake provider
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) ResolveNetwork(_ context.Context, name string) (*Network, error) {
	if f.NetworkErr != nil {
		return nil, f.NetworkErr
	}
	if name == "" {
		name = "default"
	}
	return &Network{
		ID:             "net-" + name,
		CIDR:           "10.0.0.0/16",
		PublicSubnets:  []string{"subnet-pub-a", "subnet-pub-b"},
		PrivateSubnets: []string{"subnet-priv-a", "subnet-priv-b"},
	}, nil
}

func (f *Fake) Create(_ context.Context, res *types.Resource) (*types.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailNode != "" && f.FailNode == res.ID {
		return nil, fmt.Errorf("fake provider: creation of %s rejected", res.ID)
	}
	if f.FailKind != "" && f.FailKind == res.Kind {
		return nil, fmt.Errorf("fake provider: creation of kind %s rejected", res.Kind)
	}

	f.seq++
	id := fmt.Sprintf("fake-%s-%d", res.Kind, f.seq)
	handle := &types.Handle{
		ID: id,
		Attributes: map[string]string{
			types.AttrARN: "arn:fake:" + id,
		},
	}
	switch res.Kind {
	case types.KindLoadBalancer:
		handle.Attributes[types.AttrDNSName] = id + ".elb.fake.example.com"
		handle.Attributes[types.AttrNetworkIdentity] = fmt.Sprintf("sg-%d", f.seq)
	case types.KindInstance, types.KindContainerService, types.KindFunction,
		types.KindFileSystem:
		handle.Attributes[types.AttrNetworkIdentity] = fmt.Sprintf("sg-%d", f.seq)
	}

	f.created = append(f.created, FakeCreation{
		NodeID:   res.ID,
		Kind:     res.Kind,
		Spec:     res.Spec,
		HandleID: id,
	})
	return handle, nil
}

func (f *Fake) Delete(_ context.Context, kind types.ResourceKind, handle *types.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, handle.ID)
	return nil
}

// Created returns every Create call in the order it happened
func (f *Fake) Created() []FakeCreation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCreation, len(f.created))
	copy(out, f.created)
	return out
}

// CreationOrder returns the node IDs of all created resources in order
func (f *Fake) CreationOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.created))
	for _, c := range f.created {
		out = append(out, c.NodeID)
	}
	return out
}

// Deleted returns the handle IDs of all deleted resources in order
func (f *Fake) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleted))
	copy(out, f.deleted)
	return out
}
