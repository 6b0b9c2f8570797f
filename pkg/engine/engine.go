package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/triadops/triad/pkg/events"
	"github.com/triadops/triad/pkg/graph"
	"github.com/triadops/triad/pkg/log"
	"github.com/triadops/triad/pkg/metrics"
	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/types"
)

const defaultParallelism = 4

// Engine executes a provisioning graph against an infrastructure
// provider. Independent subtrees are created in parallel; every declared
// dependency edge is honored. The first creation failure cancels all
// outstanding work and fails the apply as a whole.
type Engine struct {
	provider    provider.Provider
	broker      *events.Broker
	logger      zerolog.Logger
	parallelism int
}

// Option configures an Engine
type Option func(*Engine)

// WithBroker attaches an event broker for provisioning progress
func WithBroker(b *events.Broker) Option {
	return func(e *Engine) { e.broker = b }
}

// WithParallelism bounds the number of concurrent provider calls
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// New creates an engine backed by the given provider
func New(p provider.Provider, opts ...Option) *Engine {
	e := &Engine{
		provider:    p,
		logger:      log.WithComponent("engine"),
		parallelism: defaultParallelism,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result holds the outcome of a successful apply
type Result struct {
	// Handles maps node IDs to provider handles
	Handles map[string]*types.Handle

	// Order lists resources in creation-completion order, for teardown
	Order []types.ProvisionedResource
}

// Resolve substitutes every ${ref:...} token in s against the applied
// handles
func (r *Result) Resolve(s string) (string, error) {
	return types.SubstituteRefs(s, func(ref types.Reference) (string, error) {
		h, ok := r.Handles[ref.NodeID]
		if !ok {
			return "", fmt.Errorf("%w: %s", graph.ErrUnresolvedReference, ref.NodeID)
		}
		v, ok := h.Attr(ref.Attribute)
		if !ok {
			return "", fmt.Errorf("%w: %s has no attribute %q",
				graph.ErrUnresolvedReference, ref.NodeID, ref.Attribute)
		}
		return v, nil
	})
}

type execResult struct {
	id     string
	kind   types.ResourceKind
	handle *types.Handle
	err    error
}

// Apply provisions every node of the graph. It returns only after all
// in-flight provider calls have finished. On failure no partial result
// is returned; created resources are reported through the error for the
// caller's logs but are not retained as addressable state.
func (e *Engine) Apply(ctx context.Context, g *graph.Graph) (*Result, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ApplyDuration)

	if _, err := g.TopoSort(); err != nil {
		return nil, err
	}

	declared := make(map[types.ResourceKind]int)
	for _, res := range g.Resources() {
		declared[res.Kind]++
		e.publish(&events.Event{Type: events.EventResourceDeclared, Resource: res.ID, Kind: res.Kind})
	}
	for kind, n := range declared {
		metrics.ResourcesDeclared.WithLabelValues(string(kind)).Set(float64(n))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := g.Len()
	indegree := make(map[string]int, total)
	dependents := make(map[string][]string, total)
	for _, res := range g.Resources() {
		deps := g.Dependencies(res.ID)
		indegree[res.ID] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], res.ID)
		}
	}

	var mu sync.RWMutex
	handles := make(map[string]*types.Handle, total)

	lookup := func(ref types.Reference) (string, error) {
		mu.RLock()
		h, ok := handles[ref.NodeID]
		mu.RUnlock()
		if !ok {
			if !g.Contains(ref.NodeID) {
				return "", fmt.Errorf("%w: %s", graph.ErrUnresolvedReference, ref.NodeID)
			}
			return "", fmt.Errorf("%w: %s not yet provisioned (missing dependency edge)",
				graph.ErrUnresolvedReference, ref.NodeID)
		}
		v, ok := h.Attr(ref.Attribute)
		if !ok {
			return "", fmt.Errorf("%w: %s has no attribute %q",
				graph.ErrUnresolvedReference, ref.NodeID, ref.Attribute)
		}
		return v, nil
	}
	resolve := func(s string) (string, error) {
		return types.SubstituteRefs(s, lookup)
	}

	readyCh := make(chan *types.Resource)
	resultCh := make(chan execResult)

	var wg sync.WaitGroup
	workers := e.parallelism
	if workers > total && total > 0 {
		workers = total
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for res := range readyCh {
				h, err := e.createResource(ctx, res, resolve)
				resultCh <- execResult{id: res.ID, kind: res.Kind, handle: h, err: err}
			}
		}()
	}

	var pending []*types.Resource
	for _, res := range g.Resources() {
		if indegree[res.ID] == 0 {
			pending = append(pending, res)
		}
	}

	var order []types.ProvisionedResource
	var firstErr error
	inflight := 0
	completed := 0

	for completed < total {
		var dispatch chan *types.Resource
		var next *types.Resource
		if firstErr == nil && len(pending) > 0 {
			dispatch = readyCh
			next = pending[0]
		}
		if dispatch == nil && inflight == 0 {
			break
		}

		select {
		case dispatch <- next:
			pending = pending[1:]
			inflight++

		case res := <-resultCh:
			inflight--
			completed++
			if res.err != nil {
				metrics.ResourcesFailed.WithLabelValues(string(res.kind)).Inc()
				e.publish(&events.Event{
					Type:     events.EventResourceFailed,
					Resource: res.id,
					Kind:     res.kind,
					Message:  res.err.Error(),
				})
				if firstErr == nil {
					firstErr = fmt.Errorf("creating %s: %w", res.id, res.err)
					cancel()
				}
				continue
			}
			mu.Lock()
			handles[res.id] = res.handle
			mu.Unlock()
			order = append(order, types.ProvisionedResource{
				NodeID: res.id,
				Kind:   res.kind,
				Handle: *res.handle,
			})
			metrics.ResourcesCreated.WithLabelValues(string(res.kind)).Inc()
			e.publish(&events.Event{Type: events.EventResourceCreated, Resource: res.id, Kind: res.kind})
			for _, dep := range dependents[res.id] {
				indegree[dep]--
				if indegree[dep] == 0 {
					node, err := g.Resource(dep)
					if err != nil {
						// Cannot happen: dependents was built from the graph.
						firstErr = err
						continue
					}
					pending = append(pending, node)
				}
			}
		}
	}

	close(readyCh)
	wg.Wait()

	if firstErr != nil {
		e.logger.Error().Err(firstErr).Int("created", len(order)).
			Msg("apply failed, deployment is fatal")
		return nil, firstErr
	}

	return &Result{Handles: handles, Order: order}, nil
}

func (e *Engine) createResource(ctx context.Context, res *types.Resource,
	resolve func(string) (string, error)) (*types.Handle, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.publish(&events.Event{Type: events.EventResourceCreating, Resource: res.ID, Kind: res.Kind})
	logger := log.WithResource(res.ID, string(res.Kind))

	if err := res.Spec.ResolveRefs(resolve); err != nil {
		return nil, err
	}

	handle, err := e.provider.Create(ctx, res)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("handle", handle.ID).Msg("resource created")
	return handle, nil
}

// Destroy tears down previously provisioned resources in reverse
// creation order. Teardown is best-effort: a failed delete is recorded
// and the remaining resources are still attempted.
func (e *Engine) Destroy(ctx context.Context, resources []types.ProvisionedResource) error {
	var errs []error
	for i := len(resources) - 1; i >= 0; i-- {
		r := resources[i]
		if err := e.provider.Delete(ctx, r.Kind, &r.Handle); err != nil {
			errs = append(errs, fmt.Errorf("deleting %s: %w", r.NodeID, err))
			e.logger.Error().Err(err).Str("resource", r.NodeID).Msg("delete failed")
			continue
		}
		metrics.ResourcesDeleted.WithLabelValues(string(r.Kind)).Inc()
		e.publish(&events.Event{Type: events.EventResourceDeleted, Resource: r.NodeID, Kind: r.Kind})
	}
	return errors.Join(errs...)
}

func (e *Engine) publish(ev *events.Event) {
	if e.broker != nil {
		e.broker.Publish(ev)
	}
}
