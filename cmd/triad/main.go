package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/triadops/triad/pkg/config"
	"github.com/triadops/triad/pkg/deploy"
	"github.com/triadops/triad/pkg/events"
	"github.com/triadops/triad/pkg/graph"
	"github.com/triadops/triad/pkg/log"
	"github.com/triadops/triad/pkg/provider"
	"github.com/triadops/triad/pkg/provider/aws"
	"github.com/triadops/triad/pkg/state"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	flagDataDir  string
	flagLogLevel string
	flagVerbose  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "triad",
	Short: "Triad - One application on three compute runtimes",
	Long: `Triad provisions one application across three compute runtimes
(a virtual machine, a managed container service, and a serverless
function) sharing a single network filesystem, fronted by one weighted
traffic splitter.

A deployment either fully succeeds with a public endpoint or fails as
a whole.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(log.Config{Level: log.Level(flagLogLevel), JSONOutput: !flagVerbose})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Triad version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", config.DefaultDataDir,
		"Directory for deployment records")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Human-readable log output")

	deployCmd.Flags().StringP("file", "f", "triad.yaml", "Deployment manifest")
	graphCmd.Flags().StringP("file", "f", "triad.yaml", "Deployment manifest")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(graphCmd)
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Provision a deployment from a manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, _ := cmd.Flags().GetString("file")
		cfg, err := config.Load(manifest)
		if err != nil {
			return err
		}
		if cfg.DataDir == config.DefaultDataDir {
			cfg.DataDir = flagDataDir
		}

		ctx := interruptContext()
		p, err := aws.New(ctx)
		if err != nil {
			return err
		}
		store, err := state.NewBoltStore(cfg.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()
		go printProgress(broker)

		fmt.Printf("Deploying %s (%s)...\n", cfg.Name, cfg.Image)
		d := deploy.New(p, store, deploy.WithBroker(broker))
		deployment, err := d.Deploy(ctx, cfg)
		if err != nil {
			return fmt.Errorf("deployment failed: %w", err)
		}

		fmt.Println()
		fmt.Println("✓ Deployment complete")
		fmt.Printf("  Endpoint: http://%s\n", deployment.Endpoint)
		return nil
	},
}

var destroyCmd = &cobra.Command{
	Use:   "destroy <name>",
	Short: "Tear down a deployment and remove its record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := interruptContext()
		p, err := aws.New(ctx)
		if err != nil {
			return err
		}
		store, err := state.NewBoltStore(flagDataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Printf("Destroying %s...\n", args[0])
		d := deploy.New(p, store)
		if err := d.Destroy(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("✓ Deployment destroyed")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List deployments",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := state.NewBoltStore(flagDataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		deployments, err := store.ListDeployments()
		if err != nil {
			return err
		}
		if len(deployments) == 0 {
			fmt.Println("No deployments")
			return nil
		}

		fmt.Printf("%-20s %-40s %-25s %s\n", "NAME", "ENDPOINT", "CREATED", "RESOURCES")
		for _, d := range deployments {
			fmt.Printf("%-20s %-40s %-25s %d\n",
				d.Name, d.Endpoint, d.CreatedAt.Format("2006-01-02 15:04:05 MST"), len(d.Resources))
		}
		return nil
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the resource graph a manifest would provision",
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, _ := cmd.Flags().GetString("file")
		cfg, err := config.Load(manifest)
		if err != nil {
			return err
		}

		// Declaration needs no provider credentials; a placeholder
		// network stands in for the resolved one.
		fake := provider.NewFake()
		network, err := fake.ResolveNetwork(cmd.Context(), cfg.Network)
		if err != nil {
			return err
		}

		g, _, err := deploy.BuildGraph(network, cfg)
		if err != nil {
			return err
		}
		return printGraph(g)
	},
}

func printGraph(g *graph.Graph) error {
	order, err := g.TopoSort()
	if err != nil {
		return err
	}
	fmt.Printf("%d resources in provisioning order:\n\n", len(order))
	for _, res := range order {
		fmt.Printf("  %-35s %s\n", res.ID, res.Kind)
		for _, dep := range g.Dependencies(res.ID) {
			fmt.Printf("    └─ after %s\n", dep)
		}
	}
	return nil
}

func printProgress(broker *events.Broker) {
	ch := broker.Subscribe()
	for ev := range ch {
		switch ev.Type {
		case events.EventResourceCreating:
			fmt.Printf("  ... creating %s\n", ev.Resource)
		case events.EventResourceCreated:
			fmt.Printf("  ✓ created %s\n", ev.Resource)
		case events.EventResourceFailed:
			fmt.Printf("  ✗ failed %s: %s\n", ev.Resource, ev.Message)
		}
	}
}

func interruptContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling...")
		cancel()
	}()
	return ctx
}
