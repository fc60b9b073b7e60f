package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "convoharvest-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

func startTestRun(t *testing.T, store *Store, id string, startedAt time.Time) {
	t.Helper()
	err := store.RunLedger().StartRun(context.Background(), domain.Run{
		ID:         id,
		Status:     domain.RunRunning,
		RosterSize: 3,
		StartedAt:  startedAt,
	})
	require.NoError(t, err)
}

// ==================== Store Creation Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.Equal(t, LedgerFile, filepath.Base(store.Path()))
	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "out", MetricsFile)

	store, err := Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, dbPath, store.Path())
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), LedgerFile)

	store, err := Open(dbPath)
	require.NoError(t, err)
	startTestRun(t, store, "run-1", time.Now())
	require.NoError(t, store.Close())

	store, err = Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 2, version)

	_, err = store.RunLedger().GetRun(context.Background(), "run-1")
	assert.NoError(t, err, "data survives reopening")
}

// ==================== Run Ledger Tests ====================

func TestRunLedger_StartAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	started := time.Date(2024, 5, 1, 9, 30, 0, 123456789, time.UTC)
	startTestRun(t, store, "run-1", started)

	run, err := store.RunLedger().GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, domain.RunRunning, run.Status)
	assert.Equal(t, 3, run.RosterSize)
	assert.True(t, started.Equal(run.StartedAt))
	assert.True(t, run.FinishedAt.IsZero())
}

func TestRunLedger_GetRun_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.RunLedger().GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunLedger_FinishRun(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ledger := store.RunLedger()
	ctx := context.Background()

	started := time.Now().UTC()
	startTestRun(t, store, "run-1", started)

	run := domain.Run{
		ID:         "run-1",
		Status:     domain.RunCompleted,
		RosterSize: 3,
		Succeeded:  2,
		Failed:     1,
		Empty:      1,
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
	}
	require.NoError(t, ledger.FinishRun(ctx, run))

	got, err := ledger.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, got.Status)
	assert.Equal(t, 2, got.Succeeded)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 1, got.Empty)
	assert.Equal(t, 90*time.Second, got.Duration())
}

func TestRunLedger_FinishRun_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.RunLedger().FinishRun(context.Background(), domain.Run{ID: "missing", FinishedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunLedger_RecordOutcome(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ledger := store.RunLedger()
	ctx := context.Background()
	startTestRun(t, store, "run-1", time.Now())

	require.NoError(t, ledger.RecordOutcome(ctx, "run-1", domain.ParticipantOutcome{
		Position:      1,
		ParticipantID: "B",
		State:         domain.StateFailed,
		Reason:        domain.ReasonSourceUnavailable,
		Metrics:       domain.DegradedRecord("B"),
		Err:           errors.New("connection refused"),
	}))
	require.NoError(t, ledger.RecordOutcome(ctx, "run-1", domain.ParticipantOutcome{
		Position:      0,
		ParticipantID: "A",
		State:         domain.StatePersisted,
		Reason:        domain.ReasonOK,
		Metrics:       domain.MetricsRecord{ParticipantID: "A", UserTurnCount: 2, UserWordCount: 4, HasConversation: true},
	}))

	outcomes, err := ledger.Outcomes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, "A", outcomes[0].ParticipantID)
	assert.Equal(t, domain.StatePersisted, outcomes[0].State)
	assert.Equal(t, domain.MetricsRecord{ParticipantID: "A", UserTurnCount: 2, UserWordCount: 4, HasConversation: true}, outcomes[0].Metrics)
	assert.NoError(t, outcomes[0].Err)

	assert.Equal(t, "B", outcomes[1].ParticipantID)
	assert.Equal(t, domain.ReasonSourceUnavailable, outcomes[1].Reason)
	assert.EqualError(t, outcomes[1].Err, "connection refused")
	assert.False(t, outcomes[1].Metrics.HasConversation)
}

func TestRunLedger_RecordOutcome_Replaces(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ledger := store.RunLedger()
	ctx := context.Background()
	startTestRun(t, store, "run-1", time.Now())

	require.NoError(t, ledger.RecordOutcome(ctx, "run-1", domain.ParticipantOutcome{
		ParticipantID: "A", State: domain.StateFailed, Reason: domain.ReasonInternal, Err: errors.New("boom"),
	}))
	require.NoError(t, ledger.RecordOutcome(ctx, "run-1", domain.ParticipantOutcome{
		ParticipantID: "A", State: domain.StatePersisted, Reason: domain.ReasonEmpty,
	}))

	outcomes, err := ledger.Outcomes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.ReasonEmpty, outcomes[0].Reason)
	assert.NoError(t, outcomes[0].Err)
}

func TestRunLedger_RecordOutcome_UnknownRun(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.RunLedger().RecordOutcome(context.Background(), "missing", domain.ParticipantOutcome{
		ParticipantID: "A", State: domain.StatePersisted, Reason: domain.ReasonOK,
	})
	assert.Error(t, err, "foreign key rejects outcomes for unknown runs")
}

func TestRunLedger_Outcomes_UnknownRun(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.RunLedger().Outcomes(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunLedger_StartRun_Resume(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ledger := store.RunLedger()
	ctx := context.Background()

	started := time.Now().UTC()
	startTestRun(t, store, "run-1", started)
	require.NoError(t, ledger.RecordOutcome(ctx, "run-1", domain.ParticipantOutcome{
		ParticipantID: "A", State: domain.StatePersisted, Reason: domain.ReasonOK,
	}))
	require.NoError(t, ledger.FinishRun(ctx, domain.Run{
		ID: "run-1", Status: domain.RunAborted, Error: "context canceled", FinishedAt: time.Now(),
	}))

	// Reopen with a later start time: the original start time is kept
	require.NoError(t, ledger.StartRun(ctx, domain.Run{
		ID: "run-1", Status: domain.RunRunning, RosterSize: 3, StartedAt: started.Add(time.Hour),
	}))

	run, err := ledger.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, run.Status)
	assert.Empty(t, run.Error)
	assert.True(t, run.FinishedAt.IsZero())
	assert.True(t, started.Equal(run.StartedAt))

	outcomes, err := ledger.Outcomes(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)
}

func TestRunLedger_ListRuns(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	base := time.Now().UTC()
	startTestRun(t, store, "old", base.Add(-2*time.Hour))
	startTestRun(t, store, "new", base)
	startTestRun(t, store, "mid", base.Add(-time.Hour))

	runs, err := store.RunLedger().ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
	assert.Equal(t, "old", runs[2].ID)

	runs, err = store.RunLedger().ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].ID)
}

// ==================== Metrics Writer Tests ====================

func TestMetricsWriter_WriteAndRead(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), MetricsFile))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	table := domain.MetricsTable{
		{ParticipantID: "Z", UserTurnCount: 3, UserWordCount: 10, HasConversation: true},
		domain.DegradedRecord("A"),
		{ParticipantID: "M"},
	}
	require.NoError(t, store.MetricsWriter().WriteMetrics(ctx, table))

	got, err := store.ReadMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, table, got, "rows keep roster order, not key order")
}

func TestMetricsWriter_OverwritesPreviousTable(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), MetricsFile))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.MetricsWriter().WriteMetrics(ctx, domain.MetricsTable{
		{ParticipantID: "A"}, {ParticipantID: "B"}, {ParticipantID: "C"},
	}))
	require.NoError(t, store.MetricsWriter().WriteMetrics(ctx, domain.MetricsTable{
		{ParticipantID: "A", UserTurnCount: 1, UserWordCount: 1, HasConversation: true},
	}))

	got, err := store.ReadMetrics(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].HasConversation)
}

func TestMetricsWriter_EmptyTable(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), MetricsFile))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.MetricsWriter().WriteMetrics(context.Background(), domain.MetricsTable{}))

	got, err := store.ReadMetrics(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
