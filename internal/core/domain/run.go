package domain

import "time"

// RunStatus describes the lifecycle of a harvest run.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
	RunFailed    RunStatus = "failed"
)

// Run is a single pass of the harvester over a roster.
type Run struct {
	// ID is the unique identifier for the run.
	ID string

	// Status is the current lifecycle state.
	Status RunStatus

	// RosterSize is the number of participants in the roster.
	RosterSize int

	// Succeeded counts participants that reached PERSISTED.
	// Includes empty conversations.
	Succeeded int

	// Failed counts participants that reached FAILED.
	Failed int

	// Empty counts persisted participants with no turns.
	Empty int

	// Error is the run-level failure, if any.
	Error string

	// StartedAt is when the run began.
	StartedAt time.Time

	// FinishedAt is when the run ended. Zero while running.
	FinishedAt time.Time
}

// Processed returns the number of participants with a terminal outcome.
func (r Run) Processed() int {
	return r.Succeeded + r.Failed
}

// Duration returns how long the run took, or zero while running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Describe holds descriptive statistics for one numeric column,
// with the same fields a dataframe describe() reports.
type Describe struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	P25   float64
	P50   float64
	P75   float64
	Max   float64
}

// RunSummary is the run-level report produced after the whole roster.
type RunSummary struct {
	Total            int
	Succeeded        int
	Failed           int
	Empty            int
	WithConversation int
	UserTurns        Describe
	UserWords        Describe
}

// RunReport is everything a completed run produced.
type RunReport struct {
	Run      Run
	Table    MetricsTable
	Outcomes []ParticipantOutcome
	Summary  RunSummary
}

// Failures returns the outcomes of participants that failed, in roster order.
func (r *RunReport) Failures() []ParticipantOutcome {
	var out []ParticipantOutcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}
