// Package sqlsource reads conversation turns through database/sql.
//
// It serves PostgreSQL through lib/pq and local SQLite exports of the event
// table through modernc.org/sqlite. Unlike the pgx adapter it keeps a
// connection pool; database/sql hands each query its own connection, so
// concurrent fetches still never share connection state mid-query.
package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/convoharvest/internal/adapters/driven/source"
	"github.com/custodia-labs/convoharvest/internal/adapters/driven/source/ratelimit"
	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.TurnSource = (*Source)(nil)

// Config configures a database/sql source.
type Config struct {
	// Driver is SourceDriverPostgres or SourceDriverSQLite.
	Driver domain.SourceDriver
	// DSN is a PostgreSQL connection string or a SQLite file path.
	DSN string
	// Table is the event table. Defaults to source.DefaultTable.
	Table string
	// SSLMode is applied to PostgreSQL DSNs that do not set one.
	SSLMode string
	// ConnectTimeout bounds the initial ping.
	ConnectTimeout time.Duration
	// QueryTimeout bounds each query.
	QueryTimeout time.Duration
	// MaxOpenConns caps the pool. Zero leaves it unlimited.
	MaxOpenConns int
	// Limiter throttles queries. Nil disables throttling.
	Limiter *ratelimit.Limiter
}

// Source implements driven.TurnSource over database/sql.
type Source struct {
	db           *sql.DB
	table        string
	placeholder  string
	queryTimeout time.Duration
	limiter      *ratelimit.Limiter
}

// Open opens the pool and checks connectivity.
func Open(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.Table == "" {
		cfg.Table = source.DefaultTable
	}
	if err := source.ValidateTable(cfg.Table); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%w: %s source requires a DSN", domain.ErrInvalidInput, cfg.Driver)
	}

	var (
		driverName  string
		dsn         string
		placeholder string
	)
	switch cfg.Driver {
	case domain.SourceDriverPostgres:
		mode := cfg.SSLMode
		if mode == "" {
			mode = "require"
		}
		withMode, err := source.WithSSLMode(cfg.DSN, mode)
		if err != nil {
			return nil, err
		}
		driverName, dsn, placeholder = "postgres", withMode, source.PlaceholderDollar
	case domain.SourceDriverSQLite:
		driverName, dsn, placeholder = "sqlite", sqliteDSN(cfg.DSN), source.PlaceholderQuestion
	default:
		return nil, fmt.Errorf("%w: sqlsource does not support driver %q", domain.ErrInvalidInput, cfg.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrSourceUnavailable, driverName, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", domain.ErrSourceUnavailable, driverName, err)
	}

	return &Source{
		db:           db,
		table:        cfg.Table,
		placeholder:  placeholder,
		queryTimeout: cfg.QueryTimeout,
		limiter:      cfg.Limiter,
	}, nil
}

// sqliteDSN opens the export read-only.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=query_only(1)&_pragma=busy_timeout(5000)"
}

// Fetch runs the message and response queries for one participant.
func (s *Source) Fetch(ctx context.Context, participantID string) ([]domain.TurnStream, error) {
	if strings.TrimSpace(participantID) == "" {
		return nil, fmt.Errorf("%w: empty participant id", domain.ErrInvalidInput)
	}

	streams := make([]domain.TurnStream, 0, len(source.Streams))
	for _, st := range source.Streams {
		records, err := s.query(ctx, st, participantID)
		if err != nil {
			return nil, err
		}
		streams = append(streams, domain.TurnStream{Role: st.Role, Records: records})
	}
	return streams, nil
}

func (s *Source) query(ctx context.Context, st source.Stream, participantID string) ([]domain.TurnRecord, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %w", domain.ErrSourceUnavailable, err)
	}

	qctx := ctx
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	rows, err := s.db.QueryContext(qctx, source.Query(s.table, st, s.placeholder), participantID)
	if err != nil {
		s.checkOverload(err)
		return nil, fmt.Errorf("%w: query %s: %w", domain.ErrSourceUnavailable, st.Column, err)
	}
	defer rows.Close()

	records := []domain.TurnRecord{}
	for rows.Next() {
		var (
			content sql.NullString
			raw     any
		)
		if err := rows.Scan(&content, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan %s row: %w", domain.ErrSourceUnavailable, st.Column, err)
		}
		if !content.Valid {
			return nil, fmt.Errorf("query %s: %w: NULL content", st.Column, domain.ErrMalformedRow)
		}
		ts, err := ParseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", st.Column, err)
		}
		records = append(records, domain.TurnRecord{Content: content.String, Timestamp: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s rows: %w", domain.ErrSourceUnavailable, st.Column, err)
	}
	return records, nil
}

// checkOverload backs the limiter off when PostgreSQL refuses connections.
func (s *Source) checkOverload(err error) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return
	}
	if pqErr.Code.Name() == "too_many_connections" || pqErr.Code.Name() == "cannot_connect_now" {
		s.limiter.Backoff(0)
	}
}

// Close closes the pool.
func (s *Source) Close() error {
	return s.db.Close()
}

// Text layouts accepted for timestamps stored as strings.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp converts a scanned timestamp column to time.Time.
// Drivers return time.Time for typed columns; SQLite exports often hold
// text or unix seconds. NULL and unparseable values are malformed rows.
func ParseTimestamp(v any) (time.Time, error) {
	switch ts := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("%w: NULL timestamp", domain.ErrMalformedRow)
	case time.Time:
		return ts, nil
	case int64:
		return time.Unix(ts, 0).UTC(), nil
	case float64:
		sec := int64(ts)
		return time.Unix(sec, int64((ts-float64(sec))*1e9)).UTC(), nil
	case []byte:
		return parseTimestampText(string(ts))
	case string:
		return parseTimestampText(ts)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported timestamp type %T", domain.ErrMalformedRow, v)
	}
}

func parseTimestampText(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", domain.ErrMalformedRow, s)
}
