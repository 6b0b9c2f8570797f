/*
Package graph models the construction-time dependency graph of a
deployment as an explicit DAG of typed resource nodes.

Components declare resources (Add) and ordering constraints
(AddDependency) during a single-threaded, non-blocking declaration pass.
The engine package later executes the graph against a provider, honoring
every edge. Keeping the graph explicit makes ordering invariants
mechanically checkable: tests inspect declared edges with Dependencies,
DependsOn, and TopoSort instead of relying on call-order side effects.

Referencing a node that has not been declared returns
ErrUnresolvedReference. That is always a caller ordering bug, never a
retryable condition.

# Usage

	g := graph.New()
	err := g.Add(types.NewResource("datastore/filesystem", "shared-fs", fsSpec))
	err = g.Add(types.NewResource("datastore/access-point", "shared-fs-ap", apSpec))
	err = g.AddDependency("datastore/access-point", "datastore/filesystem")

	ordered, err := g.TopoSort() // deterministic, ErrCycle on bad edges
*/
package graph
