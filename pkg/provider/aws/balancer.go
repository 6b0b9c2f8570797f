package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/types"
)

func (p *Provider) createLoadBalancer(ctx context.Context, res *types.Resource,
	spec *types.LoadBalancerSpec, network *provider.Network) (*types.Handle, error) {

	sgID, err := p.createSecurityGroup(ctx, spec.NetworkID, resourceName(res),
		"traffic splitter")
	if err != nil {
		return nil, err
	}

	scheme := elbv2types.LoadBalancerSchemeEnumInternal
	if spec.InternetFacing {
		scheme = elbv2types.LoadBalancerSchemeEnumInternetFacing
	}

	out, err := p.elbClient.CreateLoadBalancer(ctx, &elbv2.CreateLoadBalancerInput{
		Name:           aws.String(resourceName(res)),
		Subnets:        network.PublicSubnets,
		SecurityGroups: []string{sgID},
		Scheme:         scheme,
		Type:           elbv2types.LoadBalancerTypeEnumApplication,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create load balancer: %w", err)
	}
	lb := out.LoadBalancers[0]

	return &types.Handle{
		ID: aws.ToString(lb.LoadBalancerArn),
		Attributes: map[string]string{
			types.AttrARN:             aws.ToString(lb.LoadBalancerArn),
			types.AttrDNSName:         aws.ToString(lb.DNSName),
			types.AttrNetworkIdentity: sgID,
		},
	}, nil
}

func (p *Provider) createTargetGroup(ctx context.Context, res *types.Resource,
	spec *types.TargetGroupSpec, network *provider.Network) (*types.Handle, error) {

	input := &elbv2.CreateTargetGroupInput{
		Name: aws.String(resourceName(res)),
	}
	switch spec.Shape {
	case types.TargetShapeInstance:
		input.TargetType = elbv2types.TargetTypeEnumInstance
		input.Protocol = elbv2types.ProtocolEnumHttp
		input.Port = aws.Int32(int32(spec.Port))
		input.VpcId = aws.String(spec.NetworkID)
	case types.TargetShapeService:
		input.TargetType = elbv2types.TargetTypeEnumIp
		input.Protocol = elbv2types.ProtocolEnumHttp
		input.Port = aws.Int32(int32(spec.Port))
		input.VpcId = aws.String(spec.NetworkID)
	case types.TargetShapeFunction:
		input.TargetType = elbv2types.TargetTypeEnumLambda
	default:
		return nil, fmt.Errorf("unknown target shape %q", spec.Shape)
	}

	out, err := p.elbClient.CreateTargetGroup(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create target group: %w", err)
	}
	tgARN := aws.ToString(out.TargetGroups[0].TargetGroupArn)

	switch spec.Shape {
	case types.TargetShapeInstance:
		err = p.registerInstanceTarget(ctx, tgARN, spec.TargetID, spec.Port)
	case types.TargetShapeService:
		err = p.attachServiceTarget(ctx, tgARN, spec.TargetID, spec.Port)
	case types.TargetShapeFunction:
		err = p.registerFunctionTarget(ctx, tgARN, spec.TargetID)
	}
	if err != nil {
		return nil, err
	}

	return &types.Handle{
		ID: tgARN,
		Attributes: map[string]string{
			types.AttrARN: tgARN,
		},
	}, nil
}

func (p *Provider) registerInstanceTarget(ctx context.Context, tgARN, instanceID string, port int) error {
	_, err := p.elbClient.RegisterTargets(ctx, &elbv2.RegisterTargetsInput{
		TargetGroupArn: aws.String(tgARN),
		Targets: []elbv2types.TargetDescription{{
			Id:   aws.String(instanceID),
			Port: aws.Int32(int32(port)),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to register instance target: %w", err)
	}
	return nil
}

// attachServiceTarget points the container service at the target group.
// The container substrate registers and deregisters task IPs itself.
func (p *Provider) attachServiceTarget(ctx context.Context, tgARN, serviceARN string, port int) error {
	cluster, service, err := parseServiceARN(serviceARN)
	if err != nil {
		return err
	}
	_, err = p.ecsClient.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster: aws.String(cluster),
		Service: aws.String(service),
		LoadBalancers: []ecstypes.LoadBalancer{{
			TargetGroupArn: aws.String(tgARN),
			ContainerName:  aws.String(containerName),
			ContainerPort:  aws.Int32(int32(port)),
		}},
		ForceNewDeployment: true,
	})
	if err != nil {
		return fmt.Errorf("failed to attach service to target group: %w", err)
	}
	return nil
}

// registerFunctionTarget grants the splitter invoke permission before
// registering the function, as registration validates the permission
func (p *Provider) registerFunctionTarget(ctx context.Context, tgARN, functionARN string) error {
	_, err := p.lambdaClient.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: aws.String(functionARN),
		StatementId:  aws.String("splitter-invoke"),
		Action:       aws.String("lambda:InvokeFunction"),
		Principal:    aws.String("elasticloadbalancing.amazonaws.com"),
		SourceArn:    aws.String(tgARN),
	})
	if err != nil {
		return fmt.Errorf("failed to grant invoke permission: %w", err)
	}

	_, err = p.elbClient.RegisterTargets(ctx, &elbv2.RegisterTargetsInput{
		TargetGroupArn: aws.String(tgARN),
		Targets: []elbv2types.TargetDescription{{
			Id: aws.String(functionARN),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to register function target: %w", err)
	}
	return nil
}

// parseServiceARN splits arn:aws:ecs:region:account:service/cluster/name
func parseServiceARN(arn string) (cluster, service string, err error) {
	parts := strings.Split(arn, "/")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("malformed service ARN %q", arn)
	}
	return parts[1], parts[2], nil
}

func (p *Provider) createListener(ctx context.Context, res *types.Resource,
	spec *types.ListenerSpec) (*types.Handle, error) {

	tuples := make([]elbv2types.TargetGroupTuple, 0, len(spec.Forward))
	for _, wt := range spec.Forward {
		tuples = append(tuples, elbv2types.TargetGroupTuple{
			TargetGroupArn: aws.String(wt.TargetGroupID),
			Weight:         aws.Int32(int32(wt.Weight)),
		})
	}

	out, err := p.elbClient.CreateListener(ctx, &elbv2.CreateListenerInput{
		LoadBalancerArn: aws.String(spec.LoadBalancerID),
		Port:            aws.Int32(int32(spec.Port)),
		Protocol:        elbv2types.ProtocolEnumHttp,
		DefaultActions: []elbv2types.Action{{
			Type: elbv2types.ActionTypeEnumForward,
			ForwardConfig: &elbv2types.ForwardActionConfig{
				TargetGroups: tuples,
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	// Open the splitter's own group on the listener port.
	if err := p.openListenerPort(ctx, spec.LoadBalancerID, spec.Port); err != nil {
		return nil, err
	}

	return &types.Handle{
		ID: aws.ToString(out.Listeners[0].ListenerArn),
		Attributes: map[string]string{
			types.AttrARN: aws.ToString(out.Listeners[0].ListenerArn),
		},
	}, nil
}

func (p *Provider) openListenerPort(ctx context.Context, lbARN string, port int) error {
	lbs, err := p.elbClient.DescribeLoadBalancers(ctx, &elbv2.DescribeLoadBalancersInput{
		LoadBalancerArns: []string{lbARN},
	})
	if err != nil {
		return fmt.Errorf("failed to describe load balancer: %w", err)
	}
	if len(lbs.LoadBalancers) == 0 || len(lbs.LoadBalancers[0].SecurityGroups) == 0 {
		return fmt.Errorf("load balancer %s has no security group", lbARN)
	}
	sgID := lbs.LoadBalancers[0].SecurityGroups[0]

	_, err = p.ec2Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(sgID),
		IpPermissions: []ec2types.IpPermission{{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(int32(port)),
			ToPort:     aws.Int32(int32(port)),
			IpRanges: []ec2types.IpRange{{
				CidrIp:      aws.String("0.0.0.0/0"),
				Description: aws.String("public listener"),
			}},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to open listener port: %w", err)
	}
	return nil
}

func (p *Provider) deleteLoadBalancer(ctx context.Context, handle *types.Handle) error {
	_, err := p.elbClient.DeleteLoadBalancer(ctx, &elbv2.DeleteLoadBalancerInput{
		LoadBalancerArn: aws.String(handle.ID),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete load balancer: %w", err)
	}
	if sgID, ok := handle.Attr(types.AttrNetworkIdentity); ok {
		return p.deleteSecurityGroup(ctx, sgID)
	}
	return nil
}

func (p *Provider) deleteTargetGroup(ctx context.Context, handle *types.Handle) error {
	_, err := p.elbClient.DeleteTargetGroup(ctx, &elbv2.DeleteTargetGroupInput{
		TargetGroupArn: aws.String(handle.ID),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete target group: %w", err)
	}
	return nil
}

func (p *Provider) deleteListener(ctx context.Context, handle *types.Handle) error {
	_, err := p.elbClient.DeleteListener(ctx, &elbv2.DeleteListenerInput{
		ListenerArn: aws.String(handle.ID),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete listener: %w", err)
	}
	return nil
}
