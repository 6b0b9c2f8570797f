package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/triadops/triad/pkg/provider"
)

// ResolveNetwork finds the VPC to deploy into and partitions its subnets
// into public and private tiers. An empty name selects the account's
// default VPC; otherwise the VPC is looked up by its Name tag. The
// resolved network is cached for subsequent Create calls.
func (p *Provider) ResolveNetwork(ctx context.Context, name string) (*provider.Network, error) {
	input := &ec2.DescribeVpcsInput{}
	if name == "" {
		input.Filters = []ec2types.Filter{{
			Name:   aws.String("is-default"),
			Values: []string{"true"},
		}}
	} else {
		input.Filters = []ec2types.Filter{{
			Name:   aws.String("tag:Name"),
			Values: []string{name},
		}}
	}

	vpcs, err := p.ec2Client.DescribeVpcs(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to describe VPCs: %w", err)
	}
	if len(vpcs.Vpcs) == 0 {
		if name == "" {
			return nil, fmt.Errorf("no default VPC in this account")
		}
		return nil, fmt.Errorf("no VPC named %q", name)
	}
	vpc := vpcs.Vpcs[0]
	vpcID := aws.ToString(vpc.VpcId)

	subnets, err := p.ec2Client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String("vpc-id"),
			Values: []string{vpcID},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe subnets: %w", err)
	}

	network := &provider.Network{
		ID:   vpcID,
		CIDR: aws.ToString(vpc.CidrBlock),
	}
	for _, subnet := range subnets.Subnets {
		id := aws.ToString(subnet.SubnetId)
		if aws.ToBool(subnet.MapPublicIpOnLaunch) {
			network.PublicSubnets = append(network.PublicSubnets, id)
		} else {
			network.PrivateSubnets = append(network.PrivateSubnets, id)
		}
	}
	if len(network.PublicSubnets) == 0 {
		return nil, fmt.Errorf("VPC %s has no public subnets", vpcID)
	}

	p.mu.Lock()
	p.network = network
	p.mu.Unlock()

	p.logger.Info().Str("vpc", vpcID).
		Int("public_subnets", len(network.PublicSubnets)).
		Int("private_subnets", len(network.PrivateSubnets)).
		Msg("network resolved")
	return network, nil
}
