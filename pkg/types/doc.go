/*
Package types defines the core data structures used throughout Triad.

This package contains the domain model of a deployment: typed resource
nodes and their per-kind specs, provider handles, reference tokens, the
shared-storage identity, traffic-target descriptors, and the persisted
deployment record. All other packages build on these types.

# Resource model

Every piece of infrastructure is declared as a Resource: an ID unique
within the provisioning graph, a ResourceKind, and a kind-specific Spec.
Specs form a tagged union over the Spec interface:

  - FileSystemSpec / AccessPointSpec: shared storage
  - InstanceSpec / ContainerServiceSpec / FunctionSpec: the three
    compute worker variants
  - LoadBalancerSpec / ListenerSpec / TargetGroupSpec: traffic splitter
  - ConnectionGrantSpec: cross-cutting network authorization

# References

Provider-assigned identities do not exist at declaration time. A spec
field that needs one carries a ${ref:node:attr} token built with Ref:

	spec.FileSystemID = types.Ref("datastore/filesystem", types.AttrID)

The provisioning engine substitutes tokens (SubstituteRefs) from the
handles of already-created nodes just before each provider call. A token
naming a node that does not exist, or has not been created, is a fatal
unresolved-reference error.

# Enumeration pattern

All enums use typed string constants:

	type TargetShape string
	const (
		TargetShapeInstance TargetShape = "instance"
		TargetShapeService  TargetShape = "service"
		TargetShapeFunction TargetShape = "function"
	)

# Thread safety

Types here are plain data. Specs are mutated in place during ref
resolution; the engine guarantees each node is resolved and created by
exactly one goroutine.
*/
package types
