/*
Package compute declares the deployment's three compute workers against
one shared storage identity and one application image.

# Worker variants

  - VMWorker: a persistent virtual machine on a public subnet. Its
    first-boot bootstrap (an ordered, immutable command list assembled
    by ScriptBuilder) mounts shared storage and seeds the application
    artifact onto it before launching the runtime engine.
  - ServiceWorker: a managed containerized service running the same
    image with the storage volume mounted at the common path.
  - FunctionWorker: an image-based serverless function attached to the
    same network and the same storage access point.

All three receive an identical mount path and an identical access-point
reference; they must resolve the same artifact location.

# Ordering

The service and function workers declare a graph dependency on the VM
worker's provisioning node, because the VM seeds the artifact they
serve. The dependency is on provisioning completion, not on application
readiness: the bootstrap script is fire-and-forget and reports nothing
back, so traffic can reach targets before the artifact build finishes.
That gap is inherited deliberately and surfaces, if at all, as routing
errors at the splitter.

Service and function have no edge between each other and may be
provisioned concurrently once the VM node completes.
*/
package compute
