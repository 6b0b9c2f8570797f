package aws

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	efstypes "github.com/aws/aws-sdk-go-v2/service/efs/types"

	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/types"
)

const fileSystemPollInterval = 2 * time.Second

func (p *Provider) createFileSystem(ctx context.Context, res *types.Resource,
	spec *types.FileSystemSpec, network *provider.Network) (*types.Handle, error) {

	sgID, err := p.createSecurityGroup(ctx, spec.NetworkID, resourceName(res),
		"shared storage mount targets")
	if err != nil {
		return nil, err
	}

	out, err := p.efsClient.CreateFileSystem(ctx, &efs.CreateFileSystemInput{
		CreationToken: aws.String(resourceName(res)),
		Encrypted:     aws.Bool(spec.Encrypted),
		Tags: []efstypes.Tag{{
			Key:   aws.String("Name"),
			Value: aws.String(res.Name),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create file system: %w", err)
	}
	fsID := aws.ToString(out.FileSystemId)

	if err := p.waitFileSystemAvailable(ctx, fsID); err != nil {
		return nil, err
	}

	// One mount target per public subnet, all behind the storage group.
	for _, subnetID := range network.PublicSubnets {
		_, err := p.efsClient.CreateMountTarget(ctx, &efs.CreateMountTargetInput{
			FileSystemId:   aws.String(fsID),
			SubnetId:       aws.String(subnetID),
			SecurityGroups: []string{sgID},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create mount target in %s: %w", subnetID, err)
		}
	}

	return &types.Handle{
		ID: fsID,
		Attributes: map[string]string{
			types.AttrARN:             aws.ToString(out.FileSystemArn),
			types.AttrNetworkIdentity: sgID,
		},
	}, nil
}

func (p *Provider) waitFileSystemAvailable(ctx context.Context, fsID string) error {
	for {
		out, err := p.efsClient.DescribeFileSystems(ctx, &efs.DescribeFileSystemsInput{
			FileSystemId: aws.String(fsID),
		})
		if err != nil {
			return fmt.Errorf("failed to describe file system %s: %w", fsID, err)
		}
		if len(out.FileSystems) > 0 &&
			out.FileSystems[0].LifeCycleState == efstypes.LifeCycleStateAvailable {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(fileSystemPollInterval):
		}
	}
}

func (p *Provider) createAccessPoint(ctx context.Context, res *types.Resource,
	spec *types.AccessPointSpec) (*types.Handle, error) {

	rootPath := spec.RootPath
	if rootPath == "" {
		rootPath = "/"
	}
	out, err := p.efsClient.CreateAccessPoint(ctx, &efs.CreateAccessPointInput{
		FileSystemId: aws.String(spec.FileSystemID),
		RootDirectory: &efstypes.RootDirectory{
			Path: aws.String(rootPath),
		},
		Tags: []efstypes.Tag{{
			Key:   aws.String("Name"),
			Value: aws.String(res.Name),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create access point: %w", err)
	}

	return &types.Handle{
		ID: aws.ToString(out.AccessPointId),
		Attributes: map[string]string{
			types.AttrARN: aws.ToString(out.AccessPointArn),
		},
	}, nil
}

func (p *Provider) createConnectionGrant(ctx context.Context, res *types.Resource,
	spec *types.ConnectionGrantSpec) (*types.Handle, error) {

	_, err := p.ec2Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(spec.ToID),
		IpPermissions: []ec2types.IpPermission{{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(int32(spec.Port)),
			ToPort:     aws.Int32(int32(spec.Port)),
			UserIdGroupPairs: []ec2types.UserIdGroupPair{{
				GroupId:     aws.String(spec.FromID),
				Description: aws.String(spec.Description),
			}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to authorize ingress %s -> %s: %w",
			spec.FromID, spec.ToID, err)
	}

	return &types.Handle{
		ID: fmt.Sprintf("%s-%s-%d", spec.FromID, spec.ToID, spec.Port),
		Attributes: map[string]string{
			"group_id":        spec.ToID,
			"source_group_id": spec.FromID,
			"port":            strconv.Itoa(spec.Port),
		},
	}, nil
}

func (p *Provider) deleteFileSystem(ctx context.Context, handle *types.Handle) error {
	mts, err := p.efsClient.DescribeMountTargets(ctx, &efs.DescribeMountTargetsInput{
		FileSystemId: aws.String(handle.ID),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to describe mount targets: %w", err)
	}
	for _, mt := range mts.MountTargets {
		_, err := p.efsClient.DeleteMountTarget(ctx, &efs.DeleteMountTargetInput{
			MountTargetId: mt.MountTargetId,
		})
		if err != nil {
			return fmt.Errorf("failed to delete mount target: %w", err)
		}
	}

	// Mount target ENIs release asynchronously; the file system delete
	// is rejected until they are gone.
	if err := p.waitMountTargetsGone(ctx, handle.ID); err != nil {
		return err
	}
	_, err = p.efsClient.DeleteFileSystem(ctx, &efs.DeleteFileSystemInput{
		FileSystemId: aws.String(handle.ID),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete file system %s: %w", handle.ID, err)
	}

	if sgID, ok := handle.Attr(types.AttrNetworkIdentity); ok {
		return p.deleteSecurityGroup(ctx, sgID)
	}
	return nil
}

func (p *Provider) waitMountTargetsGone(ctx context.Context, fsID string) error {
	for {
		out, err := p.efsClient.DescribeMountTargets(ctx, &efs.DescribeMountTargetsInput{
			FileSystemId: aws.String(fsID),
		})
		if err != nil {
			return fmt.Errorf("failed to describe mount targets: %w", err)
		}
		if len(out.MountTargets) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(fileSystemPollInterval):
		}
	}
}

func (p *Provider) deleteAccessPoint(ctx context.Context, handle *types.Handle) error {
	_, err := p.efsClient.DeleteAccessPoint(ctx, &efs.DeleteAccessPointInput{
		AccessPointId: aws.String(handle.ID),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete access point %s: %w", handle.ID, err)
	}
	return nil
}

func (p *Provider) deleteConnectionGrant(ctx context.Context, handle *types.Handle) error {
	groupID, _ := handle.Attr("group_id")
	sourceID, _ := handle.Attr("source_group_id")
	portStr, _ := handle.Attr("port")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("malformed grant handle %s: %w", handle.ID, err)
	}

	_, err = p.ec2Client.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
		GroupId: aws.String(groupID),
		IpPermissions: []ec2types.IpPermission{{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(int32(port)),
			ToPort:     aws.Int32(int32(port)),
			UserIdGroupPairs: []ec2types.UserIdGroupPair{{
				GroupId: aws.String(sourceID),
			}},
		}},
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to revoke ingress %s: %w", handle.ID, err)
	}
	return nil
}

// deleteSecurityGroup retries while dependent network interfaces drain
func (p *Provider) deleteSecurityGroup(ctx context.Context, sgID string) error {
	var lastErr error
	for attempt := 0; attempt < 30; attempt++ {
		_, err := p.ec2Client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
			GroupId: aws.String(sgID),
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
	return fmt.Errorf("failed to delete security group %s: %w", sgID, lastErr)
}
