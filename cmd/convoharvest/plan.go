package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/convoharvest/internal/adapters/driven/artifact/file"
	"github.com/custodia-labs/convoharvest/internal/adapters/driven/artifact/kafka"
	"github.com/custodia-labs/convoharvest/internal/adapters/driven/artifact/tee"
	"github.com/custodia-labs/convoharvest/internal/adapters/driven/roster"
	"github.com/custodia-labs/convoharvest/internal/adapters/driven/source/postgres"
	"github.com/custodia-labs/convoharvest/internal/adapters/driven/source/ratelimit"
	"github.com/custodia-labs/convoharvest/internal/adapters/driven/source/sqlsource"
	"github.com/custodia-labs/convoharvest/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/convoharvest/internal/adapters/driven/telemetry/prometheus"
	"github.com/custodia-labs/convoharvest/internal/adapters/driving/cli"
	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
	"github.com/custodia-labs/convoharvest/internal/core/services"
	"github.com/custodia-labs/convoharvest/internal/logger"
)

// newPlanner returns a cli.Planner that opens the adapters a run needs.
// ledger is used only when the settings enable it.
func newPlanner(ledger driven.RunLedger) cli.Planner {
	return func(ctx context.Context, s domain.Settings) (plan *cli.RunPlan, err error) {
		var closers closerList
		defer func() {
			if err != nil {
				closers.close() //nolint:errcheck // already failing
			}
		}()

		// 1. Roster
		participants, err := roster.New(roster.Config{
			Path:         s.Roster.Path,
			IDColumn:     s.Roster.IDColumn,
			FilterColumn: s.Roster.FilterColumn,
			FilterValue:  s.Roster.FilterValue,
		}).Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load roster: %w", err)
		}

		// 2. Event source
		source, err := openSource(ctx, s)
		if err != nil {
			return nil, err
		}
		closers.add(source.Close)

		// 3. Artifact writers
		docs := file.NewDocumentWriter(s.Output.ConversationsDir())
		artifacts := []cli.Artifact{{Name: "Documents", Location: docs.Dir()}}

		var metrics driven.MetricsWriter
		switch s.Output.MetricsFormat {
		case domain.MetricsFormatSQLite:
			store, err := sqlite.Open(filepath.Join(s.Output.Dir, sqlite.MetricsFile))
			if err != nil {
				return nil, fmt.Errorf("open metrics database: %w", err)
			}
			closers.add(store.Close)
			metrics = store.MetricsWriter()
			artifacts = append(artifacts, cli.Artifact{Name: "Metrics", Location: store.Path() + " (conversation_metrics)"})
		default:
			csv := file.NewCSVMetricsWriter(s.Output.Dir)
			metrics = csv
			artifacts = append(artifacts, cli.Artifact{Name: "Metrics", Location: csv.Path()})
		}

		var docWriter driven.DocumentWriter = docs
		if s.Kafka.IsConfigured() {
			pub, err := kafka.New(kafka.Config{
				Brokers:        s.Kafka.Brokers,
				DocumentsTopic: s.Kafka.DocumentsTopic,
				MetricsTopic:   s.Kafka.MetricsTopic,
			})
			if err != nil {
				return nil, fmt.Errorf("create kafka publisher: %w", err)
			}
			closers.add(pub.Close)
			docWriter = tee.DocumentWriter(docs, pub)
			metrics = tee.MetricsWriter(metrics, pub)
			artifacts = append(artifacts, cli.Artifact{
				Name:     "Kafka",
				Location: fmt.Sprintf("%s, %s", s.Kafka.DocumentsTopic, s.Kafka.MetricsTopic),
			})
		}

		// 4. Optional ledger and telemetry
		var runLedger driven.RunLedger
		if s.Run.Ledger {
			runLedger = ledger
		}
		var telemetry driven.PipelineMetrics
		if s.Telemetry.Textfile != "" {
			telemetry = prometheus.New(s.Telemetry.Textfile)
			artifacts = append(artifacts, cli.Artifact{Name: "Telemetry", Location: s.Telemetry.Textfile})
		}

		logger.Debug("Planned run: %d participants, source %s, metrics %s",
			participants.Len(), s.Source.Driver, s.Output.MetricsFormat)

		return &cli.RunPlan{
			Harvester: services.NewHarvester(source, docWriter, metrics, runLedger, telemetry),
			Roster:    participants,
			Artifacts: artifacts,
			Close:     closers.close,
		}, nil
	}
}

// openSource creates the turn source selected by the settings.
func openSource(ctx context.Context, s domain.Settings) (driven.TurnSource, error) {
	limiter := ratelimit.New(ratelimit.Config{
		QueriesPerSecond: s.Source.RateLimit,
		Burst:            s.Source.Burst,
	})

	switch s.Source.Driver {
	case domain.SourceDriverPgx:
		src, err := postgres.New(postgres.Config{
			DSN:            s.Source.DSN,
			Table:          s.Source.Table,
			SSLMode:        s.Source.SSLMode,
			ConnectTimeout: s.Source.ConnectTimeout,
			QueryTimeout:   s.Source.QueryTimeout,
			Limiter:        limiter,
		})
		if err != nil {
			return nil, fmt.Errorf("create pgx source: %w", err)
		}
		return src, nil
	case domain.SourceDriverPostgres, domain.SourceDriverSQLite:
		src, err := sqlsource.Open(ctx, sqlsource.Config{
			Driver:         s.Source.Driver,
			DSN:            s.Source.DSN,
			Table:          s.Source.Table,
			SSLMode:        s.Source.SSLMode,
			ConnectTimeout: s.Source.ConnectTimeout,
			QueryTimeout:   s.Source.QueryTimeout,
			MaxOpenConns:   max(1, s.Run.Concurrency),
			Limiter:        limiter,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s source: %w", s.Source.Driver, err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("%w: unknown source driver %q", domain.ErrInvalidInput, s.Source.Driver)
	}
}
