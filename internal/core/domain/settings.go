package domain

import (
	"fmt"
	"path/filepath"
	"time"
)

const unknownDescription = "Unknown"

// SourceDriver identifies which adapter reads the conversation event store.
type SourceDriver string

// Available source drivers.
const (
	// SourceDriverPgx uses the native pgx client against PostgreSQL.
	SourceDriverPgx SourceDriver = "pgx"

	// SourceDriverPostgres uses database/sql with the lib/pq driver.
	SourceDriverPostgres SourceDriver = "postgres"

	// SourceDriverSQLite reads a local SQLite export of the event store.
	SourceDriverSQLite SourceDriver = "sqlite"
)

// IsValid returns true if the driver is recognised.
func (d SourceDriver) IsValid() bool {
	switch d {
	case SourceDriverPgx, SourceDriverPostgres, SourceDriverSQLite:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (d SourceDriver) String() string {
	return string(d)
}

// Description returns a human-readable description of the driver.
func (d SourceDriver) Description() string {
	switch d {
	case SourceDriverPgx:
		return "PostgreSQL (pgx, connection per participant)"
	case SourceDriverPostgres:
		return "PostgreSQL (database/sql, pooled)"
	case SourceDriverSQLite:
		return "SQLite export"
	default:
		return unknownDescription
	}
}

// MetricsFormat identifies the tabular artifact format.
type MetricsFormat string

// Available metrics formats.
const (
	// MetricsFormatCSV writes conversation_metrics.csv.
	MetricsFormatCSV MetricsFormat = "csv"

	// MetricsFormatSQLite writes the conversation_metrics table of metrics.db.
	MetricsFormatSQLite MetricsFormat = "sqlite"
)

// IsValid returns true if the format is recognised.
func (f MetricsFormat) IsValid() bool {
	return f == MetricsFormatCSV || f == MetricsFormatSQLite
}

// String returns the string representation.
func (f MetricsFormat) String() string {
	return string(f)
}

// SourceSettings configures the event source adapter.
type SourceSettings struct {
	// Driver selects the adapter.
	Driver SourceDriver

	// DSN is the connection string (URL or key=value) or SQLite file path.
	DSN string

	// Table is the event table holding message/response columns.
	Table string

	// SSLMode is applied to PostgreSQL DSNs that don't set one.
	SSLMode string

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration

	// QueryTimeout bounds each of the two queries per participant.
	QueryTimeout time.Duration

	// RateLimit is the sustained queries per second. Zero disables limiting.
	RateLimit float64

	// Burst is the rate limiter burst size.
	Burst int
}

// RosterSettings configures where participant identifiers come from.
type RosterSettings struct {
	// Path is the roster file (CSV with header, or one ID per line).
	Path string

	// IDColumn names the identifier column in CSV rosters.
	IDColumn string

	// FilterColumn optionally restricts rows to FilterColumn == FilterValue.
	FilterColumn string

	// FilterValue is the value FilterColumn must equal.
	FilterValue string
}

// OutputSettings configures artifact locations.
type OutputSettings struct {
	// Dir is the base output directory.
	Dir string

	// MetricsFormat selects the tabular artifact format.
	MetricsFormat MetricsFormat
}

// ConversationsDir returns the directory holding per-participant documents.
func (o OutputSettings) ConversationsDir() string {
	return filepath.Join(o.Dir, "conversations")
}

// RunSettings configures the harvester.
type RunSettings struct {
	// Concurrency is the number of participants processed at once.
	// One (the default) is strictly sequential.
	Concurrency int

	// Ledger enables the SQLite run ledger.
	Ledger bool
}

// KafkaSettings configures the optional downstream publisher.
type KafkaSettings struct {
	// Brokers lists bootstrap brokers. Empty disables publishing.
	Brokers []string

	// DocumentsTopic receives one message per conversation document.
	DocumentsTopic string

	// MetricsTopic receives one message per metrics row.
	MetricsTopic string
}

// IsConfigured returns true if publishing is enabled.
func (k KafkaSettings) IsConfigured() bool {
	return len(k.Brokers) > 0 && (k.DocumentsTopic != "" || k.MetricsTopic != "")
}

// TelemetrySettings configures pipeline metrics export.
type TelemetrySettings struct {
	// Textfile is a Prometheus textfile-collector path. Empty disables export.
	Textfile string
}

// Settings holds all application settings.
type Settings struct {
	Source    SourceSettings
	Roster    RosterSettings
	Output    OutputSettings
	Run       RunSettings
	Kafka     KafkaSettings
	Telemetry TelemetrySettings
}

// DefaultSettings returns settings with sensible defaults.
// The source DSN is left empty; it normally comes from DATABASE_URL.
func DefaultSettings() Settings {
	return Settings{
		Source: SourceSettings{
			Driver:         SourceDriverPgx,
			Table:          "conversation_logs",
			SSLMode:        "require",
			ConnectTimeout: 10 * time.Second,
			QueryTimeout:   30 * time.Second,
			Burst:          1,
		},
		Roster: RosterSettings{
			Path:     "data/raw/participants.csv",
			IDColumn: "ResponseId",
		},
		Output: OutputSettings{
			Dir:           "data/processed",
			MetricsFormat: MetricsFormatCSV,
		},
		Run: RunSettings{
			Concurrency: 1,
			Ledger:      true,
		},
		Kafka: KafkaSettings{
			DocumentsTopic: "convoharvest.conversations",
			MetricsTopic:   "convoharvest.metrics",
		},
	}
}

// Validate checks the settings are usable for a run.
func (s Settings) Validate() error {
	if !s.Source.Driver.IsValid() {
		return fmt.Errorf("%w: unknown source driver %q", ErrInvalidInput, s.Source.Driver)
	}
	if s.Source.DSN == "" {
		return fmt.Errorf("%w: source dsn not set (configure source.dsn or DATABASE_URL)", ErrInvalidInput)
	}
	if s.Source.Table == "" {
		return fmt.Errorf("%w: source table not set", ErrInvalidInput)
	}
	if s.Source.RateLimit < 0 {
		return fmt.Errorf("%w: source rate limit must not be negative", ErrInvalidInput)
	}
	if !s.Output.MetricsFormat.IsValid() {
		return fmt.Errorf("%w: unknown metrics format %q", ErrInvalidInput, s.Output.MetricsFormat)
	}
	if s.Output.Dir == "" {
		return fmt.Errorf("%w: output dir not set", ErrInvalidInput)
	}
	if s.Run.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", ErrInvalidInput)
	}
	return nil
}

// AllSourceDrivers returns all available source drivers.
func AllSourceDrivers() []SourceDriver {
	return []SourceDriver{
		SourceDriverPgx,
		SourceDriverPostgres,
		SourceDriverSQLite,
	}
}
