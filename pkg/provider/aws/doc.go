/*
Package aws implements the infrastructure provider against AWS: EFS for
the shared filesystem and access point, EC2 for the VM worker, ECS on
Fargate for the container service worker, Lambda for the function
worker, and an Application Load Balancer for the traffic splitter.

Each compute resource and the splitter get their own security group as
their network identity; connection grants translate to security group
ingress rules between those identities. IAM roles, instance profiles,
the container cluster, and task definitions are created alongside the
compute resource that needs them, recorded on its handle, and removed
again when that resource is deleted.

Creates return as soon as the control plane accepts the resource. The
one exception is the shared filesystem, which is polled until available
because mount targets cannot be created earlier.
*/
package aws
