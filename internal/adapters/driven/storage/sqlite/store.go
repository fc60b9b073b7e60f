package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/convoharvest/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
)

const (
	// LedgerFile is the database file name used by NewStore.
	LedgerFile = "ledger.db"

	// MetricsFile is the database file name for the metrics artifact.
	MetricsFile = "metrics.db"

	// timeLayout is how timestamps are stored. Fixed-width so that text
	// ordering matches chronological ordering.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store is a SQLite-based storage that provides access to the run ledger
// and the metrics table through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.convoharvest/data/ledger.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".convoharvest", "data")
	}
	return Open(filepath.Join(dataDir, LedgerFile))
}

// Open opens (creating if needed) a SQLite store at dbPath.
func Open(dbPath string) (*Store, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RunLedger returns a RunLedger interface backed by this store.
func (s *Store) RunLedger() driven.RunLedger {
	return &runLedger{store: s}
}

// MetricsWriter returns a MetricsWriter interface backed by this store.
func (s *Store) MetricsWriter() driven.MetricsWriter {
	return &metricsWriter{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_run_ledger.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(content); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Run Ledger ====================

// runLedger implements driven.RunLedger.
type runLedger struct {
	store *Store
}

var _ driven.RunLedger = (*runLedger)(nil)

// StartRun records a new run, or reopens an existing one for resume.
// Reopening keeps previously recorded outcomes.
func (l *runLedger) StartRun(ctx context.Context, run domain.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := l.store.db.ExecContext(ctx, `
		INSERT INTO runs (id, status, roster_size, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			roster_size = excluded.roster_size,
			error = '',
			finished_at = NULL
	`, run.ID, string(run.Status), run.RosterSize, formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("starting run: %w", err)
	}
	return nil
}

// RecordOutcome stores a participant outcome, replacing any earlier one.
func (l *runLedger) RecordOutcome(ctx context.Context, runID string, o domain.ParticipantOutcome) error {
	_, err := l.store.db.ExecContext(ctx, `
		INSERT INTO participant_outcomes (
			run_id, participant_id, position, state, reason, error,
			user_turn_count, user_word_count, has_conversation, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, participant_id) DO UPDATE SET
			position = excluded.position,
			state = excluded.state,
			reason = excluded.reason,
			error = excluded.error,
			user_turn_count = excluded.user_turn_count,
			user_word_count = excluded.user_word_count,
			has_conversation = excluded.has_conversation,
			recorded_at = excluded.recorded_at
	`,
		runID, o.ParticipantID, o.Position, string(o.State), string(o.Reason), o.ErrorMessage(),
		o.Metrics.UserTurnCount, o.Metrics.UserWordCount, o.Metrics.HasConversation,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", o.ParticipantID, err)
	}
	return nil
}

// FinishRun stores the final state of a run.
func (l *runLedger) FinishRun(ctx context.Context, run domain.Run) error {
	res, err := l.store.db.ExecContext(ctx, `
		UPDATE runs SET
			status = ?, succeeded = ?, failed = ?, empty = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(run.Status), run.Succeeded, run.Failed, run.Empty, run.Error, formatTime(run.FinishedAt), run.ID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetRun retrieves a run by ID.
func (l *runLedger) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := l.store.db.QueryRowContext(ctx, `
		SELECT id, status, roster_size, succeeded, failed, empty, error, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs, most recently started first.
func (l *runLedger) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT id, status, roster_size, succeeded, failed, empty, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Outcomes returns the recorded outcomes of a run in roster order.
func (l *runLedger) Outcomes(ctx context.Context, runID string) ([]domain.ParticipantOutcome, error) {
	var exists int
	if err := l.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking run: %w", err)
	}
	if exists == 0 {
		return nil, domain.ErrNotFound
	}

	rows, err := l.store.db.QueryContext(ctx, `
		SELECT participant_id, position, state, reason, error,
			user_turn_count, user_word_count, has_conversation
		FROM participant_outcomes WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []domain.ParticipantOutcome
	for rows.Next() {
		var o domain.ParticipantOutcome
		var state, reason, errMsg string
		if err := rows.Scan(
			&o.ParticipantID, &o.Position, &state, &reason, &errMsg,
			&o.Metrics.UserTurnCount, &o.Metrics.UserWordCount, &o.Metrics.HasConversation,
		); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		o.State = domain.ParticipantState(state)
		o.Reason = domain.OutcomeReason(reason)
		o.Metrics.ParticipantID = o.ParticipantID
		if errMsg != "" {
			o.Err = errors.New(errMsg)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	var status, startedAt string
	var finishedAt sql.NullString
	err := row.Scan(
		&run.ID, &status, &run.RosterSize, &run.Succeeded, &run.Failed, &run.Empty,
		&run.Error, &startedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	run.Status = domain.RunStatus(status)
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTime(finishedAt.String)
	}
	return &run, nil
}

// ==================== Metrics Writer ====================

// metricsWriter implements driven.MetricsWriter.
type metricsWriter struct {
	store *Store
}

var _ driven.MetricsWriter = (*metricsWriter)(nil)

// WriteMetrics replaces the conversation_metrics table with table in a
// single transaction, so readers see either the old or the new table.
func (w *metricsWriter) WriteMetrics(ctx context.Context, table domain.MetricsTable) error {
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM conversation_metrics"); err != nil {
		return fmt.Errorf("clearing metrics: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversation_metrics (row_index, participant_id, user_turn_count, user_word_count, has_conversation)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range table {
		if _, err := stmt.ExecContext(ctx, i, r.ParticipantID, r.UserTurnCount, r.UserWordCount, r.HasConversation); err != nil {
			return fmt.Errorf("inserting metrics for %s: %w", r.ParticipantID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing metrics: %w", err)
	}
	return nil
}

// ReadMetrics returns the stored conversation_metrics table in row order.
func (s *Store) ReadMetrics(ctx context.Context) (domain.MetricsTable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT participant_id, user_turn_count, user_word_count, has_conversation
		FROM conversation_metrics ORDER BY row_index
	`)
	if err != nil {
		return nil, fmt.Errorf("querying metrics: %w", err)
	}
	defer rows.Close()

	table := domain.MetricsTable{}
	for rows.Next() {
		var r domain.MetricsRecord
		if err := rows.Scan(&r.ParticipantID, &r.UserTurnCount, &r.UserWordCount, &r.HasConversation); err != nil {
			return nil, fmt.Errorf("scanning metrics: %w", err)
		}
		table = append(table, r)
	}
	return table, rows.Err()
}

// ==================== Helper Functions ====================

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
