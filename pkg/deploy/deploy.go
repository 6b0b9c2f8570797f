package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/triadops/triad/pkg/balancer"
	"github.com/triadops/triad/pkg/compute"
	"github.com/triadops/triad/pkg/config"
	"github.com/triadops/triad/pkg/datastore"
	"github.com/triadops/triad/pkg/engine"
	"github.com/triadops/triad/pkg/events"
	"github.com/triadops/triad/pkg/graph"
	"github.com/triadops/triad/pkg/log"
	"github.com/triadops/triad/pkg/metrics"
	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/state"
	"github.com/triadops/triad/pkg/types"
)

// Deployer provisions and tears down complete deployments: shared
// storage, the three compute workers, and the traffic splitter, as one
// atomic unit.
type Deployer struct {
	provider provider.Provider
	engine   *engine.Engine
	store    state.Store
	broker   *events.Broker
	logger   zerolog.Logger
}

// Option configures a Deployer
type Option func(*Deployer)

// WithBroker attaches an event broker for deployment progress
func WithBroker(b *events.Broker) Option {
	return func(d *Deployer) { d.broker = b }
}

// New creates a deployer backed by the given provider and record store
func New(p provider.Provider, store state.Store, opts ...Option) *Deployer {
	d := &Deployer{
		provider: p,
		store:    store,
		logger:   log.WithComponent("deploy"),
	}
	for _, opt := range opts {
		opt(d)
	}
	engineOpts := []engine.Option{}
	if d.broker != nil {
		engineOpts = append(engineOpts, engine.WithBroker(d.broker))
	}
	d.engine = engine.New(p, engineOpts...)
	return d
}

// BuildGraph declares the full resource graph for a manifest: shared
// storage first, then the three workers against it, then storage access
// grants for every worker, then the weighted splitter over all three.
func BuildGraph(network *provider.Network, cfg *config.Config) (*graph.Graph, *balancer.Balancer, error) {
	g := graph.New()

	ds, err := datastore.Provision(g, network, cfg.MountPath)
	if err != nil {
		return nil, nil, err
	}

	topo, err := compute.Provision(g, network, ds.SharedStorage(), compute.Options{
		Image:           cfg.Image,
		ServicePort:     cfg.ServicePort,
		MountPathEnvVar: config.MountPathEnvVar,
	})
	if err != nil {
		return nil, nil, err
	}

	workers := topo.Workers()
	principals := make([]datastore.Principal, len(workers))
	for i, w := range workers {
		principals[i] = w
	}
	if err := ds.AllowConnectionsFrom(principals...); err != nil {
		return nil, nil, err
	}

	vmW, svcW, fnW := cfg.TargetWeights()
	bal, err := balancer.Provision(g, network, cfg.ListenerPort, topo.Targets(vmW, svcW, fnW))
	if err != nil {
		return nil, nil, err
	}

	return g, bal, nil
}

// Deploy provisions a deployment end to end and persists its record.
// Any failure is fatal for the attempt as a whole: no record is written
// and no endpoint is returned.
func (d *Deployer) Deploy(ctx context.Context, cfg *config.Config) (*types.Deployment, error) {
	d.publish(&events.Event{Type: events.EventDeploymentStarted, Message: cfg.Name})
	logger := d.logger.With().Str("deployment", cfg.Name).Logger()

	deployment, err := d.deploy(ctx, cfg)
	if err != nil {
		metrics.DeploymentsTotal.WithLabelValues("failure").Inc()
		d.publish(&events.Event{Type: events.EventDeploymentFailed, Message: err.Error()})
		logger.Error().Err(err).Msg("deployment failed")
		return nil, err
	}

	metrics.DeploymentsTotal.WithLabelValues("success").Inc()
	d.publish(&events.Event{Type: events.EventDeploymentComplete, Message: deployment.Endpoint})
	logger.Info().Str("endpoint", deployment.Endpoint).Msg("deployment complete")
	return deployment, nil
}

func (d *Deployer) deploy(ctx context.Context, cfg *config.Config) (*types.Deployment, error) {
	network, err := d.provider.ResolveNetwork(ctx, cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("resolving network: %w", err)
	}

	g, bal, err := BuildGraph(network, cfg)
	if err != nil {
		return nil, err
	}

	result, err := d.engine.Apply(ctx, g)
	if err != nil {
		return nil, err
	}

	endpoint, err := result.Resolve(bal.Endpoint())
	if err != nil {
		return nil, err
	}

	deployment := &types.Deployment{
		ID:        uuid.New().String(),
		Name:      cfg.Name,
		Image:     cfg.Image,
		Endpoint:  endpoint,
		CreatedAt: time.Now().UTC(),
		Resources: result.Order,
	}
	if err := d.store.SaveDeployment(deployment); err != nil {
		return nil, fmt.Errorf("saving deployment record: %w", err)
	}
	return deployment, nil
}

// Destroy tears down a previously deployed deployment by name and
// removes its record. Teardown is best-effort across resources; the
// record is removed only when every delete succeeded.
func (d *Deployer) Destroy(ctx context.Context, name string) error {
	deployment, err := d.store.GetDeployment(name)
	if err != nil {
		return err
	}

	if err := d.engine.Destroy(ctx, deployment.Resources); err != nil {
		return fmt.Errorf("destroying %s: %w", name, err)
	}
	if err := d.store.DeleteDeployment(name); err != nil {
		return fmt.Errorf("removing deployment record: %w", err)
	}
	d.logger.Info().Str("deployment", name).Msg("deployment destroyed")
	return nil
}

func (d *Deployer) publish(ev *events.Event) {
	if d.broker != nil {
		d.broker.Publish(ev)
	}
}
