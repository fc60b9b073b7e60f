package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL",
		"CONVOHARVEST_SOURCE_DRIVER",
		"CONVOHARVEST_SOURCE_TABLE",
		"CONVOHARVEST_OUTPUT_DIR",
		"CONVOHARVEST_CONCURRENCY",
		"CONVOHARVEST_KAFKA_BROKERS",
		"CONVOHARVEST_TELEMETRY_FILE",
		EnvFileVar,
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Empty(t *testing.T) {
	clearEnv(t)

	o, err := Load()

	require.NoError(t, err)
	assert.Equal(t, Overlay{}, o)
}

func TestLoad_AllVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/convos")
	t.Setenv("CONVOHARVEST_SOURCE_DRIVER", "postgres")
	t.Setenv("CONVOHARVEST_SOURCE_TABLE", "events")
	t.Setenv("CONVOHARVEST_OUTPUT_DIR", "/srv/out")
	t.Setenv("CONVOHARVEST_CONCURRENCY", "4")
	t.Setenv("CONVOHARVEST_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("CONVOHARVEST_TELEMETRY_FILE", "/tmp/convoharvest.prom")

	o, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/convos", o.DatabaseURL)
	assert.Equal(t, 4, o.Concurrency)
	assert.Equal(t, []string{"a:9092", "b:9092"}, o.KafkaBrokers)
}

func TestLoad_InvalidInteger(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONVOHARVEST_CONCURRENCY", "lots")

	_, err := Load()

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestOverlay_Apply(t *testing.T) {
	settings := domain.DefaultSettings()
	o := Overlay{
		DatabaseURL:   "postgres://db/convos",
		SourceDriver:  "SQLITE",
		SourceTable:   "events",
		OutputDir:     "/srv/out",
		Concurrency:   3,
		KafkaBrokers:  []string{" a:9092 ", ""},
		TelemetryFile: "/tmp/x.prom",
	}

	require.NoError(t, o.Apply(&settings))

	assert.Equal(t, "postgres://db/convos", settings.Source.DSN)
	assert.Equal(t, domain.SourceDriverSQLite, settings.Source.Driver)
	assert.Equal(t, "events", settings.Source.Table)
	assert.Equal(t, "/srv/out", settings.Output.Dir)
	assert.Equal(t, 3, settings.Run.Concurrency)
	assert.Equal(t, []string{"a:9092"}, settings.Kafka.Brokers)
	assert.Equal(t, "/tmp/x.prom", settings.Telemetry.Textfile)
}

func TestOverlay_Apply_EmptyLeavesSettings(t *testing.T) {
	settings := domain.DefaultSettings()

	require.NoError(t, Overlay{}.Apply(&settings))

	assert.Equal(t, domain.DefaultSettings(), settings)
}

func TestOverlay_Apply_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		overlay Overlay
	}{
		{"unknown driver", Overlay{SourceDriver: "oracle"}},
		{"negative concurrency", Overlay{Concurrency: -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := domain.DefaultSettings()
			err := tt.overlay.Apply(&settings)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestResolve_ReadsExplicitEnvFile(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "harvest.env")
	require.NoError(t, os.WriteFile(path, []byte("DATABASE_URL=postgres://from-file/db\n"), 0600))
	t.Setenv(EnvFileVar, path)
	t.Cleanup(func() { _ = os.Unsetenv("DATABASE_URL") })

	settings := domain.DefaultSettings()
	require.NoError(t, Resolve(&settings))

	assert.Equal(t, "postgres://from-file/db", settings.Source.DSN)
}
