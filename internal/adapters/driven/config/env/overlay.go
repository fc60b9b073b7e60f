package env

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

// Overlay holds the settings that may be supplied through the environment.
// Zero values mean "not set" and leave the underlying setting untouched.
type Overlay struct {
	DatabaseURL   string   `envconfig:"DATABASE_URL"`
	SourceDriver  string   `envconfig:"CONVOHARVEST_SOURCE_DRIVER"`
	SourceTable   string   `envconfig:"CONVOHARVEST_SOURCE_TABLE"`
	OutputDir     string   `envconfig:"CONVOHARVEST_OUTPUT_DIR"`
	Concurrency   int      `envconfig:"CONVOHARVEST_CONCURRENCY"`
	KafkaBrokers  []string `envconfig:"CONVOHARVEST_KAFKA_BROKERS"`
	TelemetryFile string   `envconfig:"CONVOHARVEST_TELEMETRY_FILE"`
}

// Load reads the overlay from the process environment.
func Load() (Overlay, error) {
	var o Overlay
	if err := envconfig.Process("", &o); err != nil {
		return Overlay{}, fmt.Errorf("%w: environment: %w", domain.ErrInvalidInput, err)
	}
	return o, nil
}

// Apply writes every set field of the overlay onto settings.
func (o Overlay) Apply(settings *domain.Settings) error {
	if o.DatabaseURL != "" {
		settings.Source.DSN = o.DatabaseURL
	}
	if o.SourceDriver != "" {
		driver := domain.SourceDriver(strings.ToLower(o.SourceDriver))
		if !driver.IsValid() {
			return fmt.Errorf("%w: CONVOHARVEST_SOURCE_DRIVER: unknown driver %q", domain.ErrInvalidInput, o.SourceDriver)
		}
		settings.Source.Driver = driver
	}
	if o.SourceTable != "" {
		settings.Source.Table = o.SourceTable
	}
	if o.OutputDir != "" {
		settings.Output.Dir = o.OutputDir
	}
	if o.Concurrency != 0 {
		if o.Concurrency < 1 {
			return fmt.Errorf("%w: CONVOHARVEST_CONCURRENCY must be at least 1", domain.ErrInvalidInput)
		}
		settings.Run.Concurrency = o.Concurrency
	}
	if brokers := trimAll(o.KafkaBrokers); len(brokers) > 0 {
		settings.Kafka.Brokers = brokers
	}
	if o.TelemetryFile != "" {
		settings.Telemetry.Textfile = o.TelemetryFile
	}
	return nil
}

// Resolve loads .env candidates, reads the environment, and applies it.
func Resolve(settings *domain.Settings) error {
	LoadEnvFileCandidates()
	o, err := Load()
	if err != nil {
		return err
	}
	return o.Apply(settings)
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
