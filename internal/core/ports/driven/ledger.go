package driven

import (
	"context"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

// RunLedger records runs and per-participant outcomes.
// Backed by SQLite. Outcomes are written at the per-participant checkpoint,
// so an aborted run can be resumed.
type RunLedger interface {
	// StartRun records a new run.
	StartRun(ctx context.Context, run domain.Run) error

	// RecordOutcome stores the terminal outcome of one participant.
	// Recording the same participant twice for a run replaces the earlier row.
	RecordOutcome(ctx context.Context, runID string, outcome domain.ParticipantOutcome) error

	// FinishRun stores the final status and counts of a run.
	FinishRun(ctx context.Context, run domain.Run) error

	// GetRun retrieves a run by ID.
	// Returns domain.ErrNotFound if no such run exists.
	GetRun(ctx context.Context, id string) (*domain.Run, error)

	// ListRuns returns the most recent runs first, at most limit.
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)

	// Outcomes returns the recorded outcomes of a run in roster order.
	Outcomes(ctx context.Context, runID string) ([]domain.ParticipantOutcome, error)
}
