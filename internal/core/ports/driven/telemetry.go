package driven

import "time"

// PipelineMetrics receives pipeline telemetry from the harvester.
type PipelineMetrics interface {
	// ObserveFetch records the duration and result of one participant fetch.
	ObserveFetch(duration time.Duration, turns int, err error)

	// ObserveOutcome records a participant reaching a terminal state.
	ObserveOutcome(state string, reason string)

	// ObserveRun records the end of a run.
	ObserveRun(status string, duration time.Duration)

	// Flush exports collected metrics, if the implementation buffers them.
	Flush() error
}
