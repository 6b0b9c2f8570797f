package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/triadops/triad/pkg/types"
)

var (
	// ErrUnresolvedReference is returned when a declaration references a
	// resource node that does not exist in the graph. This is a caller
	// ordering bug and always fatal.
	ErrUnresolvedReference = errors.New("unresolved resource reference")

	// ErrDuplicateResource is returned when a node ID is declared twice
	ErrDuplicateResource = errors.New("duplicate resource")

	// ErrCycle is returned when the declared dependencies contain a cycle
	ErrCycle = errors.New("dependency cycle")
)

// Graph is a static directed acyclic graph of typed resource nodes built
// during the declaration pass. It performs no I/O; execution is the
// engine's job. Graph is not safe for concurrent mutation: declaration
// is single-threaded by design.
type Graph struct {
	nodes map[string]*types.Resource
	order map[string]int // insertion order, for deterministic walks
	deps  map[string][]string
	seq   int
}

// New creates an empty provisioning graph
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*types.Resource),
		order: make(map[string]int),
		deps:  make(map[string][]string),
	}
}

// Add declares a resource node. The spec is validated eagerly so that
// malformed declarations abort the pass before any provider call.
func (g *Graph) Add(res *types.Resource) error {
	if res.ID == "" {
		return fmt.Errorf("resource ID must not be empty")
	}
	if res.Spec == nil {
		return fmt.Errorf("resource %s: spec must not be nil", res.ID)
	}
	if _, exists := g.nodes[res.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateResource, res.ID)
	}
	if err := res.Spec.Validate(); err != nil {
		return fmt.Errorf("resource %s: %w", res.ID, err)
	}
	g.nodes[res.ID] = res
	g.order[res.ID] = g.seq
	g.seq++
	return nil
}

// AddDependency declares that id must be provisioned after dependsOn.
// Both nodes must already exist; referencing a missing node is fatal.
func (g *Graph) AddDependency(id, dependsOn string) error {
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnresolvedReference, id)
	}
	if _, ok := g.nodes[dependsOn]; !ok {
		return fmt.Errorf("%w: %s (required by %s)", ErrUnresolvedReference, dependsOn, id)
	}
	for _, d := range g.deps[id] {
		if d == dependsOn {
			return nil
		}
	}
	g.deps[id] = append(g.deps[id], dependsOn)
	return nil
}

// Resource returns the node with the given ID
func (g *Graph) Resource(id string) (*types.Resource, error) {
	res, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedReference, id)
	}
	return res, nil
}

// Contains reports whether a node with the given ID has been declared
func (g *Graph) Contains(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of declared nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Resources returns all nodes in insertion order
func (g *Graph) Resources() []*types.Resource {
	out := make([]*types.Resource, 0, len(g.nodes))
	for _, res := range g.nodes {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		return g.order[out[i].ID] < g.order[out[j].ID]
	})
	return out
}

// Dependencies returns the direct dependencies of a node
func (g *Graph) Dependencies(id string) []string {
	deps := g.deps[id]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// DependsOn reports whether id transitively depends on target
func (g *Graph) DependsOn(id, target string) bool {
	seen := make(map[string]bool)
	var walk func(string) bool
	walk = func(cur string) bool {
		if seen[cur] {
			return false
		}
		seen[cur] = true
		for _, dep := range g.deps[cur] {
			if dep == target || walk(dep) {
				return true
			}
		}
		return false
	}
	return walk(id)
}

// TopoSort returns all nodes in an order that satisfies every declared
// dependency edge. The order is deterministic: among ready nodes, the
// earliest-declared comes first. Returns ErrCycle if the declared edges
// are not acyclic.
func (g *Graph) TopoSort() ([]*types.Resource, error) {
	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.deps[id])
		for _, dep := range g.deps[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, id)
		}
	}

	var out []*types.Resource
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			return g.order[ready[i]] < g.order[ready[j]]
		})
		id := ready[0]
		ready = ready[1:]
		out = append(out, g.nodes[id])
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(out) != len(g.nodes) {
		var stuck []string
		for id, n := range indegree {
			if n > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w involving %v", ErrCycle, stuck)
	}
	return out, nil
}
