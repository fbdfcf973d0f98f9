package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docforge/docforge/pkg/controlplane"
	"github.com/docforge/docforge/pkg/health"
	"github.com/docforge/docforge/pkg/resources"
	"github.com/docforge/docforge/pkg/telemetry"
)

var (
	// Global flags
	projectRoot string
	configPath  string
	verbose     bool
	jsonOutput  bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "forge",
		Short: "DocForge - document extraction app setup and deployment",
		Long: `DocForge provisions and deploys the document information-extraction
application: its database, Unity Catalog resources, upload volume, batch
extraction job, and the managed app itself.

The setup flow is idempotent and resumable: re-running it converges
anything missing and skips phases that already completed.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&projectRoot, "project-root", "C", ".", "project root directory")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "base config file path (default <project-root>/config/base.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newSetupCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newResetCommand())

	return rootCmd
}

// newTelemetry builds the logger and metrics from the global flags.
func newTelemetry() (*telemetry.Logger, *telemetry.Metrics, error) {
	cfg := telemetry.DefaultConfig()
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Logging.Format = "json"
	}

	log, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	metrics, err := telemetry.NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return log, metrics, nil
}

// newStack wires the control-plane client, resource manager, and health
// verifier over the instrumented CLI runner.
func newStack(log *telemetry.Logger, metrics *telemetry.Metrics) (*controlplane.Client, *resources.Manager, *health.Verifier) {
	runner := controlplane.Instrument(
		controlplane.NewRunner(controlplane.RunnerOptions{ProjectRoot: projectRoot}),
		metrics,
	)
	client := controlplane.NewClient(runner, log)
	manager := resources.NewManager(client, log)
	verifier := health.NewVerifier(log, metrics)
	return client, manager, verifier
}
