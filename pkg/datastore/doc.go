/*
Package datastore declares the shared storage of a deployment.

One network filesystem and one scoped access point are created per
deployment; every compute worker mounts the same access point at the
same path, since all three must resolve the same build artifact
location. The filesystem carries a destructive removal policy: its data
is deleted with the deployment.

AllowConnectionsFrom authorizes compute principals on the storage
service port. The precondition is strict: storage and all principals
must already be declared, and a principal whose network identity cannot
be resolved fails the deployment fatally. That is a caller ordering bug,
never a retryable condition.
*/
package datastore
