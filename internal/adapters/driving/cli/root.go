// Package cli is the command-line driving adapter.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driving"
	"github.com/custodia-labs/convoharvest/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// RunPlan is everything a single harvest needs, built from resolved settings.
type RunPlan struct {
	// Harvester runs the pipeline.
	Harvester driving.Harvester

	// Roster is the loaded participant list.
	Roster domain.Roster

	// Artifacts describes where outputs are written, for the summary.
	Artifacts []Artifact

	// Close releases adapters opened for the run. May be nil.
	Close func() error
}

// Artifact names an output location.
type Artifact struct {
	Name     string
	Location string
}

// Planner builds a run plan from fully resolved settings.
type Planner func(ctx context.Context, settings domain.Settings) (*RunPlan, error)

// Services holds the application services the commands use.
type Services struct {
	Settings driving.SettingsService
	History  driving.RunHistory
	Planner  Planner

	// Overlay applies environment configuration on top of stored settings.
	Overlay func(*domain.Settings) error

	// Close releases long-lived resources. May be nil.
	Close func() error
}

// Bootstrap creates services for a configuration directory.
// An empty configDir selects the default location.
type Bootstrap func(configDir string) (*Services, error)

var (
	bootstrap       Bootstrap
	settingsService driving.SettingsService
	runHistory      driving.RunHistory
	planner         Planner
	overlay         func(*domain.Settings) error
	closeServices   func() error
)

// Global flags
var (
	verbose   bool
	logJSON   bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "convoharvest",
	Short: "Harvest participant conversations into analysis-ready artifacts",
	Long: `convoharvest retrieves each study participant's conversation from the
event store, merges user and assistant turns into a timeline, and writes one
JSON document per participant plus a per-participant engagement metrics table.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON lines")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "",
		`configuration directory (default ~/.convoharvest, ":memory:" for an ephemeral setup)`)
}

// Execute runs the root command. Services are created lazily by b once flags
// have been parsed, and closed before Execute returns.
func Execute(ctx context.Context, buildVersion string, b Bootstrap) error {
	if buildVersion != "" {
		version = buildVersion
	}
	bootstrap = b
	defer func() {
		if closeServices != nil {
			if err := closeServices(); err != nil {
				logger.Warn("Failed to close services: %v", err)
			}
			closeServices = nil
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	logger.SetJSON(logJSON)

	if bootstrap == nil || cmd == versionCmd {
		return nil
	}
	svcs, err := bootstrap(configDir)
	if err != nil {
		return err
	}
	if svcs == nil {
		return errors.New("bootstrap returned no services")
	}
	settingsService = svcs.Settings
	runHistory = svcs.History
	planner = svcs.Planner
	overlay = svcs.Overlay
	closeServices = svcs.Close
	return nil
}
