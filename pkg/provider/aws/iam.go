package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/triadops/triad/pkg/types"
)

// Managed policy ARNs backing the capability policies
const (
	policyRemoteSession    = "arn:aws:iam::aws:policy/AmazonSSMManagedInstanceCore"
	policyStorageReadWrite = "arn:aws:iam::aws:policy/AmazonElasticFileSystemClientReadWriteAccess"
	policyTaskExecution    = "arn:aws:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy"
	policyFunctionVPC      = "arn:aws:iam::aws:policy/service-role/AWSLambdaVPCAccessExecutionRole"
)

func assumeRolePolicy(service string) string {
	return fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Principal": {"Service": "%s"},
    "Action": "sts:AssumeRole"
  }]
}`, service)
}

func capabilityPolicyARN(policy types.CapabilityPolicy) (string, error) {
	switch policy {
	case types.PolicyRemoteSession:
		return policyRemoteSession, nil
	case types.PolicyStorageReadWrite:
		return policyStorageReadWrite, nil
	default:
		return "", fmt.Errorf("unknown capability policy: %s", policy)
	}
}

// ensureRole creates (or reuses) a role assumable by the given service
// principal with the given managed policies attached, returning its ARN
func (p *Provider) ensureRole(ctx context.Context, name, service string, policyARNs []string) (string, error) {
	var roleARN string
	created, err := p.iamClient.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(assumeRolePolicy(service)),
	})
	switch {
	case err == nil:
		roleARN = aws.ToString(created.Role.Arn)
	case isEntityExists(err):
		existing, getErr := p.iamClient.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
		if getErr != nil {
			return "", fmt.Errorf("failed to look up role %s: %w", name, getErr)
		}
		roleARN = aws.ToString(existing.Role.Arn)
	default:
		return "", fmt.Errorf("failed to create role %s: %w", name, err)
	}

	// AttachRolePolicy is idempotent for already-attached policies.
	for _, policyARN := range policyARNs {
		_, err := p.iamClient.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(name),
			PolicyArn: aws.String(policyARN),
		})
		if err != nil {
			return "", fmt.Errorf("failed to attach policy to role %s: %w", name, err)
		}
	}
	return roleARN, nil
}

// ensureInstanceProfile wraps a role in an instance profile of the same
// name, as EC2 requires
func (p *Provider) ensureInstanceProfile(ctx context.Context, name string) (string, error) {
	created, err := p.iamClient.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
		InstanceProfileName: aws.String(name),
	})
	switch {
	case err == nil:
		_, err = p.iamClient.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
			InstanceProfileName: aws.String(name),
			RoleName:            aws.String(name),
		})
		if err != nil && !isEntityExists(err) {
			return "", fmt.Errorf("failed to add role to instance profile %s: %w", name, err)
		}
		return aws.ToString(created.InstanceProfile.Arn), nil
	case isEntityExists(err):
		existing, getErr := p.iamClient.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{
			InstanceProfileName: aws.String(name),
		})
		if getErr != nil {
			return "", fmt.Errorf("failed to look up instance profile %s: %w", name, getErr)
		}
		return aws.ToString(existing.InstanceProfile.Arn), nil
	default:
		return "", fmt.Errorf("failed to create instance profile %s: %w", name, err)
	}
}

// deleteRole detaches every managed policy and removes the role.
// A role that is already gone counts as deleted.
func (p *Provider) deleteRole(ctx context.Context, name string) error {
	attached, err := p.iamClient.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to list policies of role %s: %w", name, err)
	}
	for _, policy := range attached.AttachedPolicies {
		_, err := p.iamClient.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(name),
			PolicyArn: policy.PolicyArn,
		})
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to detach policy from role %s: %w", name, err)
		}
	}

	_, err = p.iamClient.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(name)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete role %s: %w", name, err)
	}
	return nil
}

// deleteInstanceProfile unbinds the same-named role and removes the
// profile; the role itself is deleted separately
func (p *Provider) deleteInstanceProfile(ctx context.Context, name string) error {
	_, err := p.iamClient.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{
		InstanceProfileName: aws.String(name),
		RoleName:            aws.String(name),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to remove role from instance profile %s: %w", name, err)
	}

	_, err = p.iamClient.DeleteInstanceProfile(ctx, &iam.DeleteInstanceProfileInput{
		InstanceProfileName: aws.String(name),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete instance profile %s: %w", name, err)
	}
	return nil
}

func isEntityExists(err error) bool {
	var exists *iamtypes.EntityAlreadyExistsException
	return errors.As(err, &exists)
}
