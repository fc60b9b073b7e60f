package driving

import (
	"context"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

// Harvester runs the retrieval-and-aggregation pipeline over a roster.
type Harvester interface {
	// Run processes every participant and writes the artifacts.
	// Per-participant failures are reported in the result, never returned.
	// Returns an error wrapping domain.ErrWriteFailure if an artifact could
	// not be persisted, or the context error if the run was cancelled.
	Run(ctx context.Context, roster domain.Roster, opts RunOptions) (*domain.RunReport, error)

	// Status returns progress of the active run.
	Status() RunStatus
}

// RunOptions tunes a single run.
type RunOptions struct {
	// Concurrency is the number of participants processed at once.
	// Values below 2 mean strictly sequential processing.
	Concurrency int

	// ResumeRunID continues a previous run from the ledger.
	// Participants with a recorded terminal outcome are not refetched.
	ResumeRunID string
}

// RunStatus represents the progress of a harvest run.
type RunStatus struct {
	// RunID identifies the run.
	RunID string

	// Running indicates if a run is currently in progress.
	Running bool

	// Total is the roster size.
	Total int

	// Processed is the count of participants with a terminal outcome.
	Processed int

	// Failed is the count of participants that failed.
	Failed int
}
