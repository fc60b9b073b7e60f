package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driving"
)

// Ensure RunHistoryService implements the interface.
var _ driving.RunHistory = (*RunHistoryService)(nil)

// defaultHistoryLimit caps List when no limit is given.
const defaultHistoryLimit = 20

// RunHistoryService reads recorded runs from the ledger.
type RunHistoryService struct {
	ledger driven.RunLedger
}

// NewRunHistoryService creates a new run history service.
func NewRunHistoryService(ledger driven.RunLedger) *RunHistoryService {
	return &RunHistoryService{ledger: ledger}
}

// List returns the most recent runs, newest first.
func (s *RunHistoryService) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if s.ledger == nil {
		return nil, errors.New("run ledger not configured")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	runs, err := s.ledger.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Get returns a run with its per-participant outcomes.
func (s *RunHistoryService) Get(ctx context.Context, runID string) (*domain.Run, []domain.ParticipantOutcome, error) {
	if s.ledger == nil {
		return nil, nil, errors.New("run ledger not configured")
	}
	run, err := s.ledger.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("get run: %w", err)
	}
	outcomes, err := s.ledger.Outcomes(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("get outcomes: %w", err)
	}
	return run, outcomes, nil
}
