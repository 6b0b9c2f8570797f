/*
Package provider defines the infrastructure provider abstraction.

A Provider turns resolved resource declarations into real infrastructure
and hands back stable identity handles. It is the only component in the
system permitted to perform blocking I/O; everything above it (graph
declaration, component wiring) is pure bookkeeping.

Two implementations exist:

  - Fake (this package): in-memory, deterministic, records every call.
    Used by unit tests to assert creation order and coverage without
    touching a cloud.
  - aws (subpackage): maps declarations onto EC2, EFS, ECS, Lambda and
    ELBv2 via aws-sdk-go-v2.

Providers receive specs with every ${ref:...} token already substituted
by the engine, so a provider never needs to understand references.
*/
package provider
