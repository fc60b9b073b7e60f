package driving

import (
	"context"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

// RunHistory exposes recorded runs for inspection.
type RunHistory interface {
	// List returns the most recent runs, newest first.
	List(ctx context.Context, limit int) ([]domain.Run, error)

	// Get returns a run with its per-participant outcomes.
	Get(ctx context.Context, runID string) (*domain.Run, []domain.ParticipantOutcome, error)
}
