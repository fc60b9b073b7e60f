package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driving"
	"github.com/custodia-labs/convoharvest/internal/logger"
)

// progressInterval is how often run progress is polled.
var progressInterval = 500 * time.Millisecond

var runCmd = &cobra.Command{
	Use:   "run [roster-file]",
	Short: "Harvest conversations for every participant in a roster",
	Long: `Fetches each participant's turns from the event store, merges them into a
conversation, and writes one JSON document per participant plus the
conversation metrics table.

The roster file defaults to roster.path from settings. CSV rosters are read
by the configured ID column; .txt rosters hold one ID per line.

A participant whose data cannot be fetched is recorded with zero metrics and
does not stop the run. A failure to write an artifact aborts the run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

var runFlags struct {
	outputDir     string
	driver        string
	dsn           string
	concurrency   int
	metricsFormat string
	resume        string
	idColumn      string
	filterColumn  string
	filterValue   string
	noLedger      bool
	telemetryFile string
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.outputDir, "output-dir", "o", "", "output directory for documents and metrics")
	f.StringVar(&runFlags.driver, "driver", "", "source driver (pgx, postgres, sqlite)")
	f.StringVar(&runFlags.dsn, "dsn", "", "source connection string or SQLite path")
	f.IntVarP(&runFlags.concurrency, "concurrency", "c", 0, "participants processed at once (1 is sequential)")
	f.StringVar(&runFlags.metricsFormat, "metrics-format", "", "metrics table format (csv, sqlite)")
	f.StringVar(&runFlags.resume, "resume", "", "resume an earlier run by ID")
	f.StringVar(&runFlags.idColumn, "id-column", "", "roster CSV column holding participant IDs")
	f.StringVar(&runFlags.filterColumn, "filter-column", "", "roster CSV column to filter on")
	f.StringVar(&runFlags.filterValue, "filter-value", "", "value the filter column must equal")
	f.BoolVar(&runFlags.noLedger, "no-ledger", false, "do not record the run in the ledger")
	f.StringVar(&runFlags.telemetryFile, "telemetry-file", "", "write Prometheus metrics to this textfile")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if settingsService == nil || planner == nil {
		return errors.New("run service not configured")
	}

	settings, err := resolveRunSettings(cmd, args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	plan, err := planner(ctx, *settings)
	if err != nil {
		return fmt.Errorf("prepare run: %w", err)
	}
	if plan.Close != nil {
		defer func() {
			if cerr := plan.Close(); cerr != nil {
				logger.Warn("Failed to close run resources: %v", cerr)
			}
		}()
	}

	opts := driving.RunOptions{
		Concurrency: settings.Run.Concurrency,
		ResumeRunID: runFlags.resume,
	}
	cmd.Printf("Harvesting %d participants...\n", plan.Roster.Len())

	report, err := runWithProgress(ctx, cmd, plan.Harvester, plan.Roster, opts)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	renderSummary(cmd.OutOrStdout(), report, plan.Artifacts)
	return nil
}

// resolveRunSettings layers stored settings, the environment and flags.
func resolveRunSettings(cmd *cobra.Command, args []string) (*domain.Settings, error) {
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if overlay != nil {
		if err := overlay(settings); err != nil {
			return nil, fmt.Errorf("apply environment: %w", err)
		}
	}

	flags := cmd.Flags()
	if len(args) > 0 {
		settings.Roster.Path = args[0]
	}
	if flags.Changed("output-dir") {
		settings.Output.Dir = runFlags.outputDir
	}
	if flags.Changed("driver") {
		settings.Source.Driver = domain.SourceDriver(runFlags.driver)
	}
	if flags.Changed("dsn") {
		settings.Source.DSN = runFlags.dsn
	}
	if flags.Changed("concurrency") {
		settings.Run.Concurrency = runFlags.concurrency
	}
	if flags.Changed("metrics-format") {
		settings.Output.MetricsFormat = domain.MetricsFormat(runFlags.metricsFormat)
	}
	if flags.Changed("id-column") {
		settings.Roster.IDColumn = runFlags.idColumn
	}
	if flags.Changed("filter-column") {
		settings.Roster.FilterColumn = runFlags.filterColumn
	}
	if flags.Changed("filter-value") {
		settings.Roster.FilterValue = runFlags.filterValue
	}
	if flags.Changed("no-ledger") {
		settings.Run.Ledger = !runFlags.noLedger
	}
	if flags.Changed("telemetry-file") {
		settings.Telemetry.Textfile = runFlags.telemetryFile
	}

	if runFlags.resume != "" && !settings.Run.Ledger {
		return nil, fmt.Errorf("%w: --resume needs the run ledger", domain.ErrInvalidInput)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// runWithProgress runs the harvest while displaying progress updates.
func runWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	harvester driving.Harvester,
	roster domain.Roster,
	opts driving.RunOptions,
) (*domain.RunReport, error) {
	type result struct {
		report *domain.RunReport
		err    error
	}

	// Start run in goroutine
	resCh := make(chan result, 1)
	go func() {
		report, err := harvester.Run(ctx, roster, opts)
		resCh <- result{report: report, err: err}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	lastCount := 0
	for {
		select {
		case res := <-resCh:
			if lastCount > 0 {
				cmd.Println()
			}
			return res.report, res.err
		case <-ticker.C:
			status := harvester.Status()
			if status.Running && status.Processed > lastCount {
				cmd.Printf("\rProcessed %d/%d participants (%d failed)",
					status.Processed, status.Total, status.Failed)
				lastCount = status.Processed
			}
		}
	}
}
