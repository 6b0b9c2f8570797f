package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/triadops/triad/pkg/log"
	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/types"
)

// Provider implements provider.Provider against AWS. One Provider serves
// one deployment at a time: ResolveNetwork must be called before Create,
// and the resolved network is reused for every resource placement.
type Provider struct {
	ec2Client    *ec2.Client
	efsClient    *efs.Client
	ecsClient    *ecs.Client
	lambdaClient *lambda.Client
	elbClient    *elasticloadbalancingv2.Client
	iamClient    *iam.Client
	logger       zerolog.Logger

	mu      sync.RWMutex
	network *provider.Network
}

// New creates a provider from the ambient AWS credential chain
func New(ctx context.Context) (*Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &Provider{
		ec2Client:    ec2.NewFromConfig(cfg),
		efsClient:    efs.NewFromConfig(cfg),
		ecsClient:    ecs.NewFromConfig(cfg),
		lambdaClient: lambda.NewFromConfig(cfg),
		elbClient:    elasticloadbalancingv2.NewFromConfig(cfg),
		iamClient:    iam.NewFromConfig(cfg),
		logger:       log.WithComponent("aws"),
	}, nil
}

// Create provisions one resource and returns its provider handle
func (p *Provider) Create(ctx context.Context, res *types.Resource) (*types.Handle, error) {
	network, err := p.resolvedNetwork()
	if err != nil {
		return nil, err
	}

	switch spec := res.Spec.(type) {
	case *types.FileSystemSpec:
		return p.createFileSystem(ctx, res, spec, network)
	case *types.AccessPointSpec:
		return p.createAccessPoint(ctx, res, spec)
	case *types.InstanceSpec:
		return p.createInstance(ctx, res, spec, network)
	case *types.ContainerServiceSpec:
		return p.createContainerService(ctx, res, spec, network)
	case *types.FunctionSpec:
		return p.createFunction(ctx, res, spec, network)
	case *types.LoadBalancerSpec:
		return p.createLoadBalancer(ctx, res, spec, network)
	case *types.TargetGroupSpec:
		return p.createTargetGroup(ctx, res, spec, network)
	case *types.ListenerSpec:
		return p.createListener(ctx, res, spec)
	case *types.ConnectionGrantSpec:
		return p.createConnectionGrant(ctx, res, spec)
	default:
		return nil, fmt.Errorf("unsupported resource kind: %s", res.Kind)
	}
}

// Delete removes one previously created resource
func (p *Provider) Delete(ctx context.Context, kind types.ResourceKind, handle *types.Handle) error {
	switch kind {
	case types.KindFileSystem:
		return p.deleteFileSystem(ctx, handle)
	case types.KindAccessPoint:
		return p.deleteAccessPoint(ctx, handle)
	case types.KindInstance:
		return p.deleteInstance(ctx, handle)
	case types.KindContainerService:
		return p.deleteContainerService(ctx, handle)
	case types.KindFunction:
		return p.deleteFunction(ctx, handle)
	case types.KindLoadBalancer:
		return p.deleteLoadBalancer(ctx, handle)
	case types.KindTargetGroup:
		return p.deleteTargetGroup(ctx, handle)
	case types.KindListener:
		return p.deleteListener(ctx, handle)
	case types.KindConnectionGrant:
		return p.deleteConnectionGrant(ctx, handle)
	default:
		return fmt.Errorf("unsupported resource kind: %s", kind)
	}
}

func (p *Provider) resolvedNetwork() (*provider.Network, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.network == nil {
		return nil, fmt.Errorf("network not resolved, call ResolveNetwork first")
	}
	return p.network, nil
}

// createSecurityGroup makes an empty security group for one resource.
// Ingress is granted separately through connection grants.
func (p *Provider) createSecurityGroup(ctx context.Context, vpcID, name, description string) (string, error) {
	out, err := p.ec2Client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String(description),
		VpcId:       aws.String(vpcID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create security group %s: %w", name, err)
	}
	return aws.ToString(out.GroupId), nil
}

// resourceName builds a provider-side name from the resource's
// human-readable name plus a short unique suffix
func resourceName(res *types.Resource) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	name := strings.ReplaceAll(res.Name, "/", "-")
	return name + "-" + suffix
}

// isNotFound reports whether err means the resource is already gone,
// which deletes treat as success so teardown stays idempotent
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return strings.Contains(code, "NotFound") ||
		strings.Contains(code, "NotFoundException") ||
		code == "NoSuchEntity" ||
		code == "InvalidGroup.NotFound" ||
		code == "InvalidInstanceID.NotFound"
}
