package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driving"
	"github.com/custodia-labs/convoharvest/internal/logger"
)

// Ensure Harvester implements the interface.
var _ driving.Harvester = (*Harvester)(nil)

// Harvester runs the retrieval-and-aggregation pipeline over a roster.
//
// Each participant walks PENDING -> FETCHING -> MERGING -> EXTRACTING ->
// PERSISTED, or ends in FAILED. Data failures become degraded metrics rows;
// artifact write failures abort the run.
type Harvester struct {
	source    driven.TurnSource
	docs      driven.DocumentWriter
	metrics   driven.MetricsWriter
	ledger    driven.RunLedger
	telemetry driven.PipelineMetrics

	now   func() time.Time
	newID func() string

	// Status tracking
	mu     sync.RWMutex
	status driving.RunStatus
}

// NewHarvester creates a new harvester.
// The ledger and telemetry are optional - if nil, runs are not recorded
// and cannot be resumed, and no pipeline metrics are collected.
func NewHarvester(
	source driven.TurnSource,
	docs driven.DocumentWriter,
	metrics driven.MetricsWriter,
	ledger driven.RunLedger,
	telemetry driven.PipelineMetrics,
) *Harvester {
	return &Harvester{
		source:    source,
		docs:      docs,
		metrics:   metrics,
		ledger:    ledger,
		telemetry: telemetry,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run processes every participant of roster in order and writes the artifacts.
//
//nolint:gocognit,gocyclo // Orchestration function with necessary sequential steps
func (h *Harvester) Run(ctx context.Context, roster domain.Roster, opts driving.RunOptions) (*domain.RunReport, error) {
	if h.source == nil || h.docs == nil || h.metrics == nil {
		return nil, errors.New("harvester not configured")
	}

	// 1. Claim the harvester
	h.mu.Lock()
	if h.status.Running {
		h.mu.Unlock()
		return nil, domain.ErrRunInProgress
	}
	h.status = driving.RunStatus{Running: true, Total: roster.Len()}
	h.mu.Unlock()
	defer h.clearRunning()

	// 2. Start or resume the run
	outcomes := make([]domain.ParticipantOutcome, roster.Len())
	done := make([]bool, roster.Len())

	run, err := h.beginRun(ctx, roster, opts, outcomes, done)
	if err != nil {
		return nil, err
	}
	h.setRunID(run.ID)

	logger.Section("Harvest " + run.ID)
	logger.Info("Processing %d participants (concurrency %d)", roster.Len(), max(1, opts.Concurrency))

	// 3. Process participants. With a limit of one, Go blocks until the
	// previous participant finished, which makes the loop sequential.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Concurrency))

	for i, id := range roster {
		if done[i] {
			continue
		}
		// Checkpoint boundary: stop between participants on cancellation
		// or after a write failure.
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Go may have blocked on the limit while the run was cancelled.
			if err := gctx.Err(); err != nil {
				return err
			}
			// Per-participant work uses the run context, not the group
			// context, so one participant never cancels another's fetch.
			outcome, err := h.processParticipant(ctx, i, id)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			h.record(ctx, run.ID, outcome)
			return nil
		})
	}

	waitErr := g.Wait()
	if waitErr == nil {
		waitErr = ctx.Err()
	}
	if waitErr != nil {
		return nil, h.abortRun(run, waitErr)
	}

	// 4. Collect the metrics table in roster order
	table := make(domain.MetricsTable, len(outcomes))
	for i, o := range outcomes {
		table[i] = o.Metrics
	}

	if err := h.metrics.WriteMetrics(ctx, table); err != nil {
		return nil, h.abortRun(run, fmt.Errorf("%w: metrics table: %w", domain.ErrWriteFailure, err))
	}

	// 5. Summarise and close the run
	summary := Summarise(table, outcomes)
	run.Status = domain.RunCompleted
	run.Succeeded = summary.Succeeded
	run.Failed = summary.Failed
	run.Empty = summary.Empty
	run.FinishedAt = h.now()
	h.finishRun(run)

	logSummary(summary)

	return &domain.RunReport{
		Run:      run,
		Table:    table,
		Outcomes: outcomes,
		Summary:  summary,
	}, nil
}

// Status returns progress of the active run.
func (h *Harvester) Status() driving.RunStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// beginRun creates a new ledger run, or loads the outcomes of the run being
// resumed into outcomes and marks them done.
func (h *Harvester) beginRun(
	ctx context.Context,
	roster domain.Roster,
	opts driving.RunOptions,
	outcomes []domain.ParticipantOutcome,
	done []bool,
) (domain.Run, error) {
	run := domain.Run{
		ID:         h.newID(),
		Status:     domain.RunRunning,
		RosterSize: roster.Len(),
		StartedAt:  h.now(),
	}

	if opts.ResumeRunID != "" {
		if h.ledger == nil {
			return run, fmt.Errorf("%w: resume requires the run ledger", domain.ErrInvalidInput)
		}
		prev, err := h.ledger.GetRun(ctx, opts.ResumeRunID)
		if err != nil {
			return run, fmt.Errorf("get run %s: %w", opts.ResumeRunID, err)
		}
		recorded, err := h.ledger.Outcomes(ctx, prev.ID)
		if err != nil {
			return run, fmt.Errorf("get outcomes: %w", err)
		}

		byID := make(map[string]domain.ParticipantOutcome, len(recorded))
		for _, o := range recorded {
			if o.State.IsTerminal() {
				byID[o.ParticipantID] = o
			}
		}
		reused := 0
		for i, id := range roster {
			o, ok := byID[id]
			if !ok {
				continue
			}
			o.Position = i
			outcomes[i] = o
			done[i] = true
			reused++
			h.advanceStatus(o)
		}

		run.ID = prev.ID
		run.StartedAt = prev.StartedAt
		logger.Info("Resuming run %s: %d of %d participants already processed", run.ID, reused, roster.Len())
	}

	if h.ledger != nil {
		if err := h.ledger.StartRun(ctx, run); err != nil {
			return run, fmt.Errorf("start run: %w", err)
		}
	}
	return run, nil
}

// processParticipant runs one participant through the state machine.
// The returned outcome is always terminal. A non-nil error is fatal for the
// whole run: an artifact write failure or a cancelled context.
//
//nolint:gocyclo // Pipeline with sequential steps
func (h *Harvester) processParticipant(ctx context.Context, pos int, id string) (domain.ParticipantOutcome, error) {
	p := newParticipantRun(pos, id)

	// 1. VALIDATE
	if err := domain.ValidateParticipantID(id); err != nil {
		return p.fail(err), nil
	}

	// 2. FETCH
	if err := p.advance(domain.StateFetching); err != nil {
		return p.fail(err), nil
	}
	start := h.now()
	streams, err := h.source.Fetch(ctx, id)
	if h.telemetry != nil {
		h.telemetry.ObserveFetch(h.now().Sub(start), countRecords(streams), err)
	}
	if err != nil {
		if ctx.Err() != nil {
			// Half-fetched participants are never recorded.
			return p.outcome, ctx.Err()
		}
		return p.fail(err), nil
	}

	// 3. MERGE
	if err := p.advance(domain.StateMerging); err != nil {
		return p.fail(err), nil
	}
	conv, err := safeMerge(streams)
	if err != nil {
		return p.fail(err), nil
	}

	// 4. EXTRACT
	if err := p.advance(domain.StateExtracting); err != nil {
		return p.fail(err), nil
	}
	rec, err := safeExtract(conv)
	if err != nil {
		return p.fail(err), nil
	}
	rec.ParticipantID = id
	rec.HasConversation = !conv.IsEmpty()

	// 5. PERSIST
	if err := h.docs.WriteDocument(ctx, id, conv); err != nil {
		return p.outcome, fmt.Errorf("%w: document %s: %w", domain.ErrWriteFailure, id, err)
	}
	if err := p.advance(domain.StatePersisted); err != nil {
		return p.fail(err), nil
	}

	p.outcome.Metrics = rec
	p.outcome.Reason = domain.ReasonOK
	if conv.IsEmpty() {
		p.outcome.Reason = domain.ReasonEmpty
	}
	logger.Debug("Participant %s: %d turns, %d user words", id, len(conv), rec.UserWordCount)
	return p.outcome, nil
}

// record publishes a terminal outcome to the ledger, telemetry and status.
func (h *Harvester) record(ctx context.Context, runID string, o domain.ParticipantOutcome) {
	if !o.Succeeded() {
		l := logger.With(map[string]any{
			"participant": o.ParticipantID,
			"position":    o.Position,
			"state":       string(o.State),
		})
		l.Warn().Str("reason", string(o.Reason)).Err(o.Err).Msg("participant failed")
	}
	if h.ledger != nil {
		if err := h.ledger.RecordOutcome(ctx, runID, o); err != nil {
			logger.Warn("Failed to record outcome for %s: %v", o.ParticipantID, err)
		}
	}
	if h.telemetry != nil {
		h.telemetry.ObserveOutcome(string(o.State), string(o.Reason))
	}
	h.advanceStatus(o)
}

// abortRun closes the run after a fatal error and returns that error.
func (h *Harvester) abortRun(run domain.Run, cause error) error {
	run.Status = domain.RunFailed
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		run.Status = domain.RunAborted
	}
	run.Error = cause.Error()
	run.FinishedAt = h.now()

	st := h.Status()
	run.Succeeded = st.Processed - st.Failed
	run.Failed = st.Failed
	h.finishRun(run)

	logger.Error("Run %s %s: %v", run.ID, run.Status, cause)
	return cause
}

// finishRun stores the final run state and flushes telemetry.
// Uses a fresh context so a cancelled run still gets its ledger entry closed.
func (h *Harvester) finishRun(run domain.Run) {
	if h.ledger != nil {
		if err := h.ledger.FinishRun(context.Background(), run); err != nil {
			logger.Warn("Failed to finish run %s: %v", run.ID, err)
		}
	}
	if h.telemetry != nil {
		h.telemetry.ObserveRun(string(run.Status), run.Duration())
		if err := h.telemetry.Flush(); err != nil {
			logger.Warn("Failed to export telemetry: %v", err)
		}
	}
}

func (h *Harvester) setRunID(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.RunID = id
}

func (h *Harvester) advanceStatus(o domain.ParticipantOutcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.Processed++
	if !o.Succeeded() {
		h.status.Failed++
	}
}

func (h *Harvester) clearRunning() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status.Running = false
}

// participantRun tracks one participant through the state machine.
type participantRun struct {
	outcome domain.ParticipantOutcome
}

func newParticipantRun(pos int, id string) *participantRun {
	return &participantRun{outcome: domain.ParticipantOutcome{
		Position:      pos,
		ParticipantID: id,
		State:         domain.StatePending,
		Metrics:       domain.DegradedRecord(id),
	}}
}

func (p *participantRun) advance(next domain.ParticipantState) error {
	if !p.outcome.State.CanTransitionTo(next) {
		return fmt.Errorf("illegal transition %s -> %s", p.outcome.State, next)
	}
	p.outcome.State = next
	return nil
}

// fail moves the participant to FAILED with a degraded metrics row.
func (p *participantRun) fail(err error) domain.ParticipantOutcome {
	p.outcome.State = domain.StateFailed
	p.outcome.Reason = classify(err)
	p.outcome.Metrics = domain.DegradedRecord(p.outcome.ParticipantID)
	p.outcome.Err = err
	return p.outcome
}

// classify maps a per-participant error to an outcome reason.
func classify(err error) domain.OutcomeReason {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return domain.ReasonInvalidID
	case errors.Is(err, domain.ErrMalformedRow):
		return domain.ReasonMalformedRow
	case errors.Is(err, domain.ErrSourceUnavailable):
		return domain.ReasonSourceUnavailable
	default:
		return domain.ReasonInternal
	}
}

// safeMerge validates stream roles and merges, converting panics to errors.
func safeMerge(streams []domain.TurnStream) (conv domain.Conversation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("merge panicked: %v", r)
		}
	}()
	for _, s := range streams {
		if !s.Role.IsValid() {
			return nil, fmt.Errorf("%w: unknown role %q", domain.ErrMalformedRow, s.Role)
		}
	}
	return MergeTurns(streams...), nil
}

// safeExtract computes metrics, converting panics to errors.
func safeExtract(conv domain.Conversation) (rec domain.MetricsRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract panicked: %v", r)
		}
	}()
	return ExtractMetrics(conv), nil
}

func countRecords(streams []domain.TurnStream) int {
	n := 0
	for _, s := range streams {
		n += s.Len()
	}
	return n
}

func logSummary(s domain.RunSummary) {
	logger.L().Info().
		Int("total", s.Total).
		Int("succeeded", s.Succeeded).
		Int("empty", s.Empty).
		Int("failed", s.Failed).
		Int("with_conversation", s.WithConversation).
		Float64("user_turns_mean", s.UserTurns.Mean).
		Float64("user_words_mean", s.UserWords.Mean).
		Msg("run complete")
}
