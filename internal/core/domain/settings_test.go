package domain

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validSettings() Settings {
	s := DefaultSettings()
	s.Source.DSN = "postgres://localhost/study"
	return s
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, SourceDriverPgx, s.Source.Driver)
	assert.Equal(t, "conversation_logs", s.Source.Table)
	assert.Equal(t, "require", s.Source.SSLMode)
	assert.Equal(t, "ResponseId", s.Roster.IDColumn)
	assert.Equal(t, MetricsFormatCSV, s.Output.MetricsFormat)
	assert.Equal(t, 1, s.Run.Concurrency)
	assert.True(t, s.Run.Ledger)
	assert.False(t, s.Kafka.IsConfigured())
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		ok     bool
	}{
		{"valid", func(*Settings) {}, true},
		{"missing dsn", func(s *Settings) { s.Source.DSN = "" }, false},
		{"bad driver", func(s *Settings) { s.Source.Driver = "mysql" }, false},
		{"missing table", func(s *Settings) { s.Source.Table = "" }, false},
		{"negative rate", func(s *Settings) { s.Source.RateLimit = -1 }, false},
		{"bad format", func(s *Settings) { s.Output.MetricsFormat = "parquet" }, false},
		{"missing output", func(s *Settings) { s.Output.Dir = "" }, false},
		{"zero concurrency", func(s *Settings) { s.Run.Concurrency = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidInput))
			}
		})
	}
}

func TestSourceDriver(t *testing.T) {
	for _, d := range AllSourceDrivers() {
		assert.True(t, d.IsValid())
		assert.NotEqual(t, unknownDescription, d.Description())
	}
	assert.Equal(t, unknownDescription, SourceDriver("oracle").Description())
}

func TestOutputSettings_ConversationsDir(t *testing.T) {
	o := OutputSettings{Dir: "out"}
	assert.Equal(t, filepath.Join("out", "conversations"), o.ConversationsDir())
}

func TestKafkaSettings_IsConfigured(t *testing.T) {
	k := KafkaSettings{Brokers: []string{"localhost:9092"}, MetricsTopic: "m"}
	assert.True(t, k.IsConfigured())

	k.MetricsTopic = ""
	assert.False(t, k.IsConfigured())
}
