// Package prometheus records pipeline telemetry with the Prometheus client.
//
// A batch run has no long-lived HTTP endpoint to scrape, so the collected
// metrics are exported with Flush to a node_exporter textfile-collector file.
package prometheus

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
)

// Ensure Metrics implements the interface.
var _ driven.PipelineMetrics = (*Metrics)(nil)

const namespace = "convoharvest"

// Metrics holds all Prometheus metrics for the harvester.
type Metrics struct {
	registry *prometheus.Registry
	textfile string

	// Fetch metrics
	FetchDuration *prometheus.HistogramVec
	FetchedTurns  prometheus.Counter

	// Participant metrics
	ParticipantsTotal *prometheus.CounterVec

	// Run metrics
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

// New creates metrics on a private registry. textfile is the export path
// used by Flush; empty disables export.
func New(textfile string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{registry: reg, textfile: textfile}

	m.FetchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of per-participant fetches in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"result"},
	)

	m.FetchedTurns = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetched_turns_total",
			Help:      "Total number of turn rows fetched from the event store",
		},
	)

	m.ParticipantsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participants_total",
			Help:      "Participants reaching a terminal state",
		},
		[]string{"state", "reason"},
	)

	m.RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed harvest runs by final status",
		},
		[]string{"status"},
	)

	m.RunDuration = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the most recent run in seconds",
		},
	)

	m.LastRunTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the most recent run finished",
		},
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFetch records one participant fetch.
func (m *Metrics) ObserveFetch(duration time.Duration, turns int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FetchDuration.WithLabelValues(result).Observe(duration.Seconds())
	if turns > 0 {
		m.FetchedTurns.Add(float64(turns))
	}
}

// ObserveOutcome records a participant reaching a terminal state.
func (m *Metrics) ObserveOutcome(state, reason string) {
	m.ParticipantsTotal.WithLabelValues(state, reason).Inc()
}

// ObserveRun records the end of a run.
func (m *Metrics) ObserveRun(status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Set(duration.Seconds())
	m.LastRunTimestamp.SetToCurrentTime()
}

// Flush writes all metrics to the textfile, if one is configured.
// The file is replaced atomically.
func (m *Metrics) Flush() error {
	if m.textfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.textfile), 0755); err != nil {
		return fmt.Errorf("create telemetry directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(m.textfile, m.registry); err != nil {
		return fmt.Errorf("write telemetry textfile: %w", err)
	}
	return nil
}
