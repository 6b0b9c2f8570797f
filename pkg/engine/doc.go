/*
Package engine executes provisioning graphs against an infrastructure
provider.

The engine is the only place where the static declaration (pkg/graph)
meets the outside world (pkg/provider). It walks the graph with bounded
parallelism: a node is dispatched as soon as all of its dependency edges
are satisfied, so independent subtrees provision concurrently while
declared ordering is never violated.

Immediately before each provider call the engine substitutes the spec's
${ref:...} tokens from the handles of already-created nodes. A token
naming an undeclared node, an unprovisioned node, or a missing handle
attribute fails with graph.ErrUnresolvedReference.

Failure semantics are atomic-or-fatal: the first creation failure
cancels the apply context, outstanding work drains, and the caller gets
an error with no partial Result. Retry and backoff, if any, belong to
the provider.

Destroy walks a recorded resource list in reverse creation order so a
deployment is torn down as a single unit.
*/
package engine
