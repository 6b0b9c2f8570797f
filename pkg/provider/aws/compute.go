package aws

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/types"
)

const (
	clusterName       = "triad"
	containerName     = "app"
	storageVolumeName = "shared-storage"

	functionTimeoutSeconds = 30
)

// Machine image aliases resolvable to an AMI lookup
var machineImages = map[string]struct {
	owner string
	name  string
}{
	"canonical-ubuntu-22.04-amd64": {
		owner: "099720109477",
		name:  "ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-*",
	},
}

func (p *Provider) createInstance(ctx context.Context, res *types.Resource,
	spec *types.InstanceSpec, network *provider.Network) (*types.Handle, error) {

	imageID, err := p.resolveMachineImage(ctx, spec.MachineImage)
	if err != nil {
		return nil, err
	}

	sgID, err := p.createSecurityGroup(ctx, spec.NetworkID, resourceName(res),
		"instance worker")
	if err != nil {
		return nil, err
	}

	policyARNs := make([]string, 0, len(spec.Policies))
	for _, policy := range spec.Policies {
		arn, err := capabilityPolicyARN(policy)
		if err != nil {
			return nil, err
		}
		policyARNs = append(policyARNs, arn)
	}
	profileName := resourceName(res)
	if _, err := p.ensureRole(ctx, profileName, "ec2.amazonaws.com", policyARNs); err != nil {
		return nil, err
	}
	if _, err := p.ensureInstanceProfile(ctx, profileName); err != nil {
		return nil, err
	}

	subnets := network.PublicSubnets
	if spec.SubnetTier == types.SubnetTierPrivate {
		subnets = network.PrivateSubnets
	}
	if len(subnets) == 0 {
		return nil, fmt.Errorf("no %s subnets available", spec.SubnetTier)
	}

	userData := "#!/bin/bash\n" + strings.Join(spec.Bootstrap, "\n") + "\n"
	out, err := p.ec2Client.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:          aws.String(imageID),
		InstanceType:     ec2types.InstanceType(spec.InstanceType),
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		SubnetId:         aws.String(subnets[0]),
		SecurityGroupIds: []string{sgID},
		UserData:         aws.String(base64.StdEncoding.EncodeToString([]byte(userData))),
		IamInstanceProfile: &ec2types.IamInstanceProfileSpecification{
			Name: aws.String(profileName),
		},
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags: []ec2types.Tag{{
				Key:   aws.String("Name"),
				Value: aws.String(res.Name),
			}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run instance: %w", err)
	}
	instance := out.Instances[0]

	return &types.Handle{
		ID: aws.ToString(instance.InstanceId),
		Attributes: map[string]string{
			types.AttrNetworkIdentity: sgID,
			"instance_profile":        profileName,
		},
	}, nil
}

func (p *Provider) resolveMachineImage(ctx context.Context, image string) (string, error) {
	if strings.HasPrefix(image, "ami-") {
		return image, nil
	}
	lookup, ok := machineImages[image]
	if !ok {
		return "", fmt.Errorf("unknown machine image %q", image)
	}

	out, err := p.ec2Client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{lookup.owner},
		Filters: []ec2types.Filter{
			{Name: aws.String("name"), Values: []string{lookup.name}},
			{Name: aws.String("state"), Values: []string{"available"}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to look up machine image %q: %w", image, err)
	}
	if len(out.Images) == 0 {
		return "", fmt.Errorf("no AMI found for machine image %q", image)
	}
	sort.Slice(out.Images, func(i, j int) bool {
		return aws.ToString(out.Images[i].CreationDate) > aws.ToString(out.Images[j].CreationDate)
	})
	return aws.ToString(out.Images[0].ImageId), nil
}

func (p *Provider) createContainerService(ctx context.Context, res *types.Resource,
	spec *types.ContainerServiceSpec, network *provider.Network) (*types.Handle, error) {

	sgID, err := p.createSecurityGroup(ctx, spec.NetworkID, resourceName(res),
		"container service worker")
	if err != nil {
		return nil, err
	}

	_, err = p.ecsClient.CreateCluster(ctx, &ecs.CreateClusterInput{
		ClusterName: aws.String(clusterName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster: %w", err)
	}

	executionRoleARN, err := p.ensureRole(ctx, clusterName+"-execution",
		"ecs-tasks.amazonaws.com", []string{policyTaskExecution})
	if err != nil {
		return nil, err
	}
	taskPolicies := make([]string, 0, len(spec.Policies))
	for _, policy := range spec.Policies {
		arn, err := capabilityPolicyARN(policy)
		if err != nil {
			return nil, err
		}
		taskPolicies = append(taskPolicies, arn)
	}
	taskRoleARN, err := p.ensureRole(ctx, clusterName+"-task",
		"ecs-tasks.amazonaws.com", taskPolicies)
	if err != nil {
		return nil, err
	}

	container := ecstypes.ContainerDefinition{
		Name:      aws.String(containerName),
		Image:     aws.String(spec.Image),
		Essential: aws.Bool(true),
		PortMappings: []ecstypes.PortMapping{{
			ContainerPort: aws.Int32(int32(spec.Port)),
		}},
	}
	for k, v := range spec.Env {
		container.Environment = append(container.Environment, ecstypes.KeyValuePair{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}

	taskDef := &ecs.RegisterTaskDefinitionInput{
		Family:                  aws.String(resourceName(res)),
		RequiresCompatibilities: []ecstypes.Compatibility{ecstypes.CompatibilityFargate},
		NetworkMode:             ecstypes.NetworkModeAwsvpc,
		Cpu:                     aws.String(strconv.Itoa(spec.CPU)),
		Memory:                  aws.String(strconv.Itoa(spec.MemoryMiB)),
		ExecutionRoleArn:        aws.String(executionRoleARN),
		TaskRoleArn:             aws.String(taskRoleARN),
	}
	if spec.Mount != nil {
		container.MountPoints = []ecstypes.MountPoint{{
			SourceVolume:  aws.String(storageVolumeName),
			ContainerPath: aws.String(spec.Mount.Path),
			ReadOnly:      aws.Bool(spec.Mount.ReadOnly),
		}}
		transit := ecstypes.EFSTransitEncryptionDisabled
		if spec.Mount.TransitEncryption {
			transit = ecstypes.EFSTransitEncryptionEnabled
		}
		taskDef.Volumes = []ecstypes.Volume{{
			Name: aws.String(storageVolumeName),
			EfsVolumeConfiguration: &ecstypes.EFSVolumeConfiguration{
				FileSystemId:      aws.String(spec.Mount.FileSystemID),
				TransitEncryption: transit,
				AuthorizationConfig: &ecstypes.EFSAuthorizationConfig{
					AccessPointId: aws.String(spec.Mount.AccessPointID),
					Iam:           ecstypes.EFSAuthorizationConfigIAMEnabled,
				},
			},
		}}
	}
	taskDef.ContainerDefinitions = []ecstypes.ContainerDefinition{container}

	registered, err := p.ecsClient.RegisterTaskDefinition(ctx, taskDef)
	if err != nil {
		return nil, fmt.Errorf("failed to register task definition: %w", err)
	}

	assignPublicIP := ecstypes.AssignPublicIpDisabled
	subnets := network.PrivateSubnets
	if spec.AssignPublicIP {
		assignPublicIP = ecstypes.AssignPublicIpEnabled
		subnets = network.PublicSubnets
	}

	service, err := p.ecsClient.CreateService(ctx, &ecs.CreateServiceInput{
		Cluster:        aws.String(clusterName),
		ServiceName:    aws.String(resourceName(res)),
		TaskDefinition: registered.TaskDefinition.TaskDefinitionArn,
		DesiredCount:   aws.Int32(1),
		LaunchType:     ecstypes.LaunchTypeFargate,
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        subnets,
				SecurityGroups: []string{sgID},
				AssignPublicIp: assignPublicIP,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return &types.Handle{
		ID: aws.ToString(service.Service.ServiceArn),
		Attributes: map[string]string{
			types.AttrARN:             aws.ToString(service.Service.ServiceArn),
			types.AttrNetworkIdentity: sgID,
			"container_name":          containerName,
			"container_port":          strconv.Itoa(spec.Port),
			"task_definition":         aws.ToString(registered.TaskDefinition.TaskDefinitionArn),
			"execution_role":          clusterName + "-execution",
			"task_role":               clusterName + "-task",
		},
	}, nil
}

func (p *Provider) createFunction(ctx context.Context, res *types.Resource,
	spec *types.FunctionSpec, network *provider.Network) (*types.Handle, error) {

	sgID, err := p.createSecurityGroup(ctx, spec.NetworkID, resourceName(res),
		"function worker")
	if err != nil {
		return nil, err
	}

	rolePolicies := []string{policyFunctionVPC, policyStorageReadWrite}
	roleName := resourceName(res)
	roleARN, err := p.ensureRole(ctx, roleName, "lambda.amazonaws.com", rolePolicies)
	if err != nil {
		return nil, err
	}

	subnets := network.PrivateSubnets
	if spec.AllowPublicSubnet || len(subnets) == 0 {
		subnets = network.PublicSubnets
	}

	input := &lambda.CreateFunctionInput{
		FunctionName: aws.String(resourceName(res)),
		PackageType:  lambdatypes.PackageTypeImage,
		Code:         &lambdatypes.FunctionCode{ImageUri: aws.String(spec.Image)},
		Role:         aws.String(roleARN),
		MemorySize:   aws.Int32(int32(spec.MemoryMiB)),
		Timeout:      aws.Int32(functionTimeoutSeconds),
		VpcConfig: &lambdatypes.VpcConfig{
			SubnetIds:        subnets,
			SecurityGroupIds: []string{sgID},
		},
	}
	if len(spec.Env) > 0 {
		input.Environment = &lambdatypes.Environment{Variables: spec.Env}
	}
	if spec.Mount != nil {
		apARN, err := p.accessPointARN(ctx, spec.Mount.AccessPointID)
		if err != nil {
			return nil, err
		}
		input.FileSystemConfigs = []lambdatypes.FileSystemConfig{{
			Arn:            aws.String(apARN),
			LocalMountPath: aws.String(spec.Mount.Path),
		}}
	}

	out, err := p.lambdaClient.CreateFunction(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create function: %w", err)
	}

	return &types.Handle{
		ID: aws.ToString(out.FunctionName),
		Attributes: map[string]string{
			types.AttrARN:             aws.ToString(out.FunctionArn),
			types.AttrNetworkIdentity: sgID,
			"role":                    roleName,
		},
	}, nil
}

func (p *Provider) accessPointARN(ctx context.Context, accessPointID string) (string, error) {
	out, err := p.efsClient.DescribeAccessPoints(ctx, &efs.DescribeAccessPointsInput{
		AccessPointId: aws.String(accessPointID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe access point %s: %w", accessPointID, err)
	}
	if len(out.AccessPoints) == 0 {
		return "", fmt.Errorf("access point %s not found", accessPointID)
	}
	return aws.ToString(out.AccessPoints[0].AccessPointArn), nil
}

func (p *Provider) deleteInstance(ctx context.Context, handle *types.Handle) error {
	_, err := p.ec2Client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{handle.ID},
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to terminate instance %s: %w", handle.ID, err)
	}

	// The profile and role share one name, recorded at creation.
	if profileName, ok := handle.Attr("instance_profile"); ok {
		if err := p.deleteInstanceProfile(ctx, profileName); err != nil {
			return err
		}
		if err := p.deleteRole(ctx, profileName); err != nil {
			return err
		}
	}
	if sgID, ok := handle.Attr(types.AttrNetworkIdentity); ok {
		return p.deleteSecurityGroup(ctx, sgID)
	}
	return nil
}

func (p *Provider) deleteContainerService(ctx context.Context, handle *types.Handle) error {
	_, err := p.ecsClient.DeleteService(ctx, &ecs.DeleteServiceInput{
		Cluster: aws.String(clusterName),
		Service: aws.String(handle.ID),
		Force:   aws.Bool(true),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete service %s: %w", handle.ID, err)
	}

	if taskDef, ok := handle.Attr("task_definition"); ok {
		_, err := p.ecsClient.DeregisterTaskDefinition(ctx, &ecs.DeregisterTaskDefinitionInput{
			TaskDefinition: aws.String(taskDef),
		})
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to deregister task definition %s: %w", taskDef, err)
		}
	}
	if err := p.deleteCluster(ctx); err != nil {
		return err
	}
	for _, attr := range []string{"execution_role", "task_role"} {
		if roleName, ok := handle.Attr(attr); ok {
			if err := p.deleteRole(ctx, roleName); err != nil {
				return err
			}
		}
	}
	if sgID, ok := handle.Attr(types.AttrNetworkIdentity); ok {
		return p.deleteSecurityGroup(ctx, sgID)
	}
	return nil
}

// deleteCluster retries while the deleted service drains out of it
func (p *Provider) deleteCluster(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < 30; attempt++ {
		_, err := p.ecsClient.DeleteCluster(ctx, &ecs.DeleteClusterInput{
			Cluster: aws.String(clusterName),
		})
		if err == nil || isNotFound(err) {
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), lastErr)
		case <-time.After(fileSystemPollInterval):
		}
	}
	return fmt.Errorf("failed to delete cluster %s: %w", clusterName, lastErr)
}

func (p *Provider) deleteFunction(ctx context.Context, handle *types.Handle) error {
	_, err := p.lambdaClient.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
		FunctionName: aws.String(handle.ID),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete function %s: %w", handle.ID, err)
	}
	if roleName, ok := handle.Attr("role"); ok {
		if err := p.deleteRole(ctx, roleName); err != nil {
			return err
		}
	}
	if sgID, ok := handle.Attr(types.AttrNetworkIdentity); ok {
		return p.deleteSecurityGroup(ctx, sgID)
	}
	return nil
}
