package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
)

// Ensure RunLedger implements the interface.
var _ driven.RunLedger = (*RunLedger)(nil)

// RunLedger is an in-memory implementation of driven.RunLedger.
type RunLedger struct {
	mu       sync.RWMutex
	runs     map[string]domain.Run
	order    []string
	outcomes map[string]map[string]domain.ParticipantOutcome
}

// NewRunLedger creates a new in-memory run ledger.
func NewRunLedger() *RunLedger {
	return &RunLedger{
		runs:     make(map[string]domain.Run),
		outcomes: make(map[string]map[string]domain.ParticipantOutcome),
	}
}

// StartRun records a new run, or reopens an existing one for resume.
func (l *RunLedger) StartRun(_ context.Context, run domain.Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.runs[run.ID]; !ok {
		l.order = append(l.order, run.ID)
		l.outcomes[run.ID] = make(map[string]domain.ParticipantOutcome)
	}
	run.Error = ""
	run.FinishedAt = time.Time{}
	l.runs[run.ID] = run
	return nil
}

// RecordOutcome stores a participant outcome, replacing any earlier one.
func (l *RunLedger) RecordOutcome(_ context.Context, runID string, o domain.ParticipantOutcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	byID, ok := l.outcomes[runID]
	if !ok {
		return domain.ErrNotFound
	}
	byID[o.ParticipantID] = o
	return nil
}

// FinishRun stores the final state of a run.
func (l *RunLedger) FinishRun(_ context.Context, run domain.Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.runs[run.ID]; !ok {
		return domain.ErrNotFound
	}
	l.runs[run.ID] = run
	return nil
}

// GetRun retrieves a run by ID.
func (l *RunLedger) GetRun(_ context.Context, id string) (*domain.Run, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	run, ok := l.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

// ListRuns returns up to limit runs, most recently started first.
func (l *RunLedger) ListRuns(_ context.Context, limit int) ([]domain.Run, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]domain.Run, 0, len(l.order))
	for i := len(l.order) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		result = append(result, l.runs[l.order[i]])
	}
	return result, nil
}

// Outcomes returns the recorded outcomes of a run in roster order.
func (l *RunLedger) Outcomes(_ context.Context, runID string) ([]domain.ParticipantOutcome, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	byID, ok := l.outcomes[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	result := make([]domain.ParticipantOutcome, 0, len(byID))
	for _, o := range byID {
		result = append(result, o)
	}
	slices.SortFunc(result, func(a, b domain.ParticipantOutcome) int {
		return a.Position - b.Position
	})
	return result, nil
}
