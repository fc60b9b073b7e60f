package services

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keySourceDriver         = "source.driver"
	keySourceDSN            = "source.dsn"
	keySourceTable          = "source.table"
	keySourceSSLMode        = "source.ssl_mode"
	keySourceConnectTimeout = "source.connect_timeout_seconds"
	keySourceQueryTimeout   = "source.query_timeout_seconds"
	keySourceRateLimit      = "source.rate_limit"
	keySourceBurst          = "source.burst"
	keyRosterPath           = "roster.path"
	keyRosterIDColumn       = "roster.id_column"
	keyRosterFilterColumn   = "roster.filter_column"
	keyRosterFilterValue    = "roster.filter_value"
	keyOutputDir            = "output.dir"
	keyOutputMetricsFormat  = "output.metrics_format"
	keyRunConcurrency       = "run.concurrency"
	keyRunLedger            = "run.ledger"
	keyKafkaBrokers         = "kafka.brokers"
	keyKafkaDocumentsTopic  = "kafka.documents_topic"
	keyKafkaMetricsTopic    = "kafka.metrics_topic"
	keyTelemetryTextfile    = "telemetry.textfile"
)

type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindFloat
	kindBool
	kindList
)

var settingKeys = map[string]keyKind{
	keySourceDriver:         kindString,
	keySourceDSN:            kindString,
	keySourceTable:          kindString,
	keySourceSSLMode:        kindString,
	keySourceConnectTimeout: kindInt,
	keySourceQueryTimeout:   kindInt,
	keySourceRateLimit:      kindFloat,
	keySourceBurst:          kindInt,
	keyRosterPath:           kindString,
	keyRosterIDColumn:       kindString,
	keyRosterFilterColumn:   kindString,
	keyRosterFilterValue:    kindString,
	keyOutputDir:            kindString,
	keyOutputMetricsFormat:  kindString,
	keyRunConcurrency:       kindInt,
	keyRunLedger:            kindBool,
	keyKafkaBrokers:         kindList,
	keyKafkaDocumentsTopic:  kindString,
	keyKafkaMetricsTopic:    kindString,
	keyTelemetryTextfile:    kindString,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.Settings, error) {
	defaults := domain.DefaultSettings()

	settings := &domain.Settings{
		Source: domain.SourceSettings{
			Driver:         s.getDriver(defaults.Source.Driver),
			DSN:            s.configStore.GetString(keySourceDSN), // No default - usually from DATABASE_URL
			Table:          s.getString(keySourceTable, defaults.Source.Table),
			SSLMode:        s.getString(keySourceSSLMode, defaults.Source.SSLMode),
			ConnectTimeout: s.getSeconds(keySourceConnectTimeout, defaults.Source.ConnectTimeout),
			QueryTimeout:   s.getSeconds(keySourceQueryTimeout, defaults.Source.QueryTimeout),
			RateLimit:      s.getFloat(keySourceRateLimit, defaults.Source.RateLimit),
			Burst:          s.getInt(keySourceBurst, defaults.Source.Burst),
		},
		Roster: domain.RosterSettings{
			Path:         s.getString(keyRosterPath, defaults.Roster.Path),
			IDColumn:     s.getString(keyRosterIDColumn, defaults.Roster.IDColumn),
			FilterColumn: s.configStore.GetString(keyRosterFilterColumn),
			FilterValue:  s.configStore.GetString(keyRosterFilterValue),
		},
		Output: domain.OutputSettings{
			Dir:           s.getString(keyOutputDir, defaults.Output.Dir),
			MetricsFormat: s.getMetricsFormat(defaults.Output.MetricsFormat),
		},
		Run: domain.RunSettings{
			Concurrency: s.getInt(keyRunConcurrency, defaults.Run.Concurrency),
			Ledger:      s.getBool(keyRunLedger, defaults.Run.Ledger),
		},
		Kafka: domain.KafkaSettings{
			Brokers:        s.configStore.GetStringSlice(keyKafkaBrokers),
			DocumentsTopic: s.getString(keyKafkaDocumentsTopic, defaults.Kafka.DocumentsTopic),
			MetricsTopic:   s.getString(keyKafkaMetricsTopic, defaults.Kafka.MetricsTopic),
		},
		Telemetry: domain.TelemetrySettings{
			Textfile: s.configStore.GetString(keyTelemetryTextfile),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.Settings) error {
	values := []struct {
		key   string
		value any
	}{
		{keySourceDriver, settings.Source.Driver.String()},
		{keySourceTable, settings.Source.Table},
		{keySourceSSLMode, settings.Source.SSLMode},
		{keySourceConnectTimeout, int(settings.Source.ConnectTimeout / time.Second)},
		{keySourceQueryTimeout, int(settings.Source.QueryTimeout / time.Second)},
		{keySourceRateLimit, settings.Source.RateLimit},
		{keySourceBurst, settings.Source.Burst},
		{keyRosterPath, settings.Roster.Path},
		{keyRosterIDColumn, settings.Roster.IDColumn},
		{keyRosterFilterColumn, settings.Roster.FilterColumn},
		{keyRosterFilterValue, settings.Roster.FilterValue},
		{keyOutputDir, settings.Output.Dir},
		{keyOutputMetricsFormat, settings.Output.MetricsFormat.String()},
		{keyRunConcurrency, settings.Run.Concurrency},
		{keyRunLedger, settings.Run.Ledger},
		{keyKafkaBrokers, settings.Kafka.Brokers},
		{keyKafkaDocumentsTopic, settings.Kafka.DocumentsTopic},
		{keyKafkaMetricsTopic, settings.Kafka.MetricsTopic},
		{keyTelemetryTextfile, settings.Telemetry.Textfile},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// The DSN may carry credentials; only persist it when explicitly set.
	if settings.Source.DSN != "" {
		if err := s.configStore.Set(keySourceDSN, settings.Source.DSN); err != nil {
			return fmt.Errorf("save %s: %w", keySourceDSN, err)
		}
	}

	return nil
}

// Set updates a single setting by its dotted key, parsing value by key type.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	var parsed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, key)
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, key)
		}
		parsed = f
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
		}
		parsed = b
	case kindList:
		parsed = splitList(value)
	default:
		parsed = value
	}

	switch key {
	case keySourceDriver:
		if !domain.SourceDriver(value).IsValid() {
			return fmt.Errorf("%w: invalid source driver: %s", domain.ErrInvalidInput, value)
		}
	case keyOutputMetricsFormat:
		if !domain.MetricsFormat(value).IsValid() {
			return fmt.Errorf("%w: invalid metrics format: %s", domain.ErrInvalidInput, value)
		}
	}

	return s.configStore.Set(key, parsed)
}

// Keys returns the supported setting keys in sorted order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKeys))
	for k := range settingKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return time.Duration(val) * time.Second
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal
	}
	// TOML numbers are parsed as int64 or float64
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return defaultVal
	}
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDriver(defaultVal domain.SourceDriver) domain.SourceDriver {
	val := s.configStore.GetString(keySourceDriver)
	if val == "" {
		return defaultVal
	}
	driver := domain.SourceDriver(val)
	if !driver.IsValid() {
		return defaultVal
	}
	return driver
}

func (s *SettingsService) getMetricsFormat(defaultVal domain.MetricsFormat) domain.MetricsFormat {
	val := s.configStore.GetString(keyOutputMetricsFormat)
	if val == "" {
		return defaultVal
	}
	format := domain.MetricsFormat(val)
	if !format.IsValid() {
		return defaultVal
	}
	return format
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
