package balancer

import (
	"fmt"

	"github.com/triadops/triad/pkg/graph"
	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/types"
)

// Graph node IDs owned by this component
const (
	NodeLoadBalancer = "balancer/lb"
	NodeListener     = "balancer/listener"
	NodeAllowVM      = "balancer/allow-vm"

	targetGroupPrefix = "balancer/target-group/"
)

// TargetGroupNode returns the graph node ID of the target group serving
// the given shape
func TargetGroupNode(shape types.TargetShape) string {
	return targetGroupPrefix + string(shape)
}

// Balancer is the deployment's single traffic splitter: one
// internet-facing load balancer, one listener, and one weighted target
// group per compute worker variant.
type Balancer struct {
	targetGroups []string
}

// Provision declares the splitter over the given traffic targets. It
// requires exactly one target per shape and at least one target with a
// positive weight; a target whose backing worker node is not declared in
// the graph is a caller ordering bug and fails the deployment. A target
// with weight zero is still declared and registered, it just receives no
// traffic.
func Provision(g *graph.Graph, network *provider.Network, listenerPort int, targets []types.TrafficTarget) (*Balancer, error) {
	byShape := make(map[types.TargetShape]types.TrafficTarget, len(targets))
	for _, target := range targets {
		if _, dup := byShape[target.Shape]; dup {
			return nil, fmt.Errorf("traffic splitter: duplicate target shape %q", target.Shape)
		}
		if !g.Contains(target.ResourceID) {
			return nil, fmt.Errorf("%w: traffic target %s", graph.ErrUnresolvedReference, target.ResourceID)
		}
		byShape[target.Shape] = target
	}
	for _, shape := range []types.TargetShape{types.TargetShapeInstance, types.TargetShapeService, types.TargetShapeFunction} {
		if _, ok := byShape[shape]; !ok {
			return nil, fmt.Errorf("traffic splitter: missing target for shape %q", shape)
		}
	}

	lb := types.NewResource(NodeLoadBalancer, "splitter", &types.LoadBalancerSpec{
		NetworkID:      network.ID,
		InternetFacing: true,
	})
	if err := g.Add(lb); err != nil {
		return nil, err
	}

	b := &Balancer{}
	forward := make([]types.WeightedTarget, 0, len(targets))
	for _, target := range targets {
		tgID, err := provisionTargetGroup(g, network, byShape[target.Shape])
		if err != nil {
			return nil, err
		}
		b.targetGroups = append(b.targetGroups, tgID)
		forward = append(forward, types.WeightedTarget{
			TargetGroupID: types.Ref(tgID, types.AttrARN),
			Weight:        target.Weight,
		})
	}

	listener := types.NewResource(NodeListener, "splitter-listener", &types.ListenerSpec{
		LoadBalancerID: types.Ref(NodeLoadBalancer, types.AttrID),
		Port:           listenerPort,
		Protocol:       "HTTP",
		Forward:        forward,
	})
	if err := g.Add(listener); err != nil {
		return nil, err
	}
	if err := g.AddDependency(NodeListener, NodeLoadBalancer); err != nil {
		return nil, err
	}
	for _, tgID := range b.targetGroups {
		if err := g.AddDependency(NodeListener, tgID); err != nil {
			return nil, err
		}
	}

	// The instance target is addressed over plain TCP, so the splitter
	// needs an explicit grant into the VM on its service port. Service
	// and function targets are reached through the provider's own
	// routing and carry no such grant.
	if err := allowInstanceTraffic(g, byShape[types.TargetShapeInstance]); err != nil {
		return nil, err
	}

	return b, nil
}

func provisionTargetGroup(g *graph.Graph, network *provider.Network, target types.TrafficTarget) (string, error) {
	id := TargetGroupNode(target.Shape)

	// Function targets are invoked by ARN; the other two shapes are
	// addressed by provider identity and port.
	attr := types.AttrID
	if target.Shape == types.TargetShapeFunction {
		attr = types.AttrARN
	}

	tg := types.NewResource(id, "splitter-"+string(target.Shape), &types.TargetGroupSpec{
		NetworkID: network.ID,
		Shape:     target.Shape,
		Port:      target.Port,
		Protocol:  "HTTP",
		TargetID:  types.Ref(target.ResourceID, attr),
	})
	if err := g.Add(tg); err != nil {
		return "", err
	}
	if err := g.AddDependency(id, target.ResourceID); err != nil {
		return "", err
	}
	return id, nil
}

func allowInstanceTraffic(g *graph.Graph, target types.TrafficTarget) error {
	grant := types.NewResource(NodeAllowVM, "splitter-to-vm", &types.ConnectionGrantSpec{
		FromID:      types.Ref(NodeLoadBalancer, types.AttrNetworkIdentity),
		ToID:        types.Ref(target.ResourceID, types.AttrNetworkIdentity),
		Port:        target.Port,
		Description: "splitter traffic to the instance worker",
	})
	if err := g.Add(grant); err != nil {
		return err
	}
	if err := g.AddDependency(NodeAllowVM, NodeLoadBalancer); err != nil {
		return err
	}
	return g.AddDependency(NodeAllowVM, target.ResourceID)
}

// TargetGroups returns the declared target group node IDs in target order
func (b *Balancer) TargetGroups() []string {
	out := make([]string, len(b.targetGroups))
	copy(out, b.targetGroups)
	return out
}

// Endpoint returns the splitter's public address as a reference token,
// resolvable once the load balancer has been created
func (b *Balancer) Endpoint() string {
	return types.Ref(NodeLoadBalancer, types.AttrDNSName)
}
