// Package postgres reads conversation turns from PostgreSQL with pgx.
//
// Every Fetch opens its own connection and closes it before returning, so
// participants processed concurrently never share connection state.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/custodia-labs/convoharvest/internal/adapters/driven/source"
	"github.com/custodia-labs/convoharvest/internal/adapters/driven/source/ratelimit"
	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
	"github.com/custodia-labs/convoharvest/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.TurnSource = (*Source)(nil)

// SQLSTATE codes that mean the server is overloaded rather than broken.
const (
	codeTooManyConnections = "53300"
	codeCannotConnectNow   = "57P03"
)

// Config configures the PostgreSQL source.
type Config struct {
	// DSN is a postgres:// URL or a key=value connection string.
	DSN string
	// Table is the event table. Defaults to source.DefaultTable.
	Table string
	// SSLMode is applied when the DSN does not set sslmode. Defaults to "require".
	SSLMode string
	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration
	// QueryTimeout bounds each query. Zero means no limit beyond ctx.
	QueryTimeout time.Duration
	// Limiter throttles queries. Nil disables throttling.
	Limiter *ratelimit.Limiter
}

// conn is the subset of *pgx.Conn used by Fetch.
type conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close(ctx context.Context) error
}

type connectFunc func(ctx context.Context, cfg *pgx.ConnConfig) (conn, error)

func pgxConnect(ctx context.Context, cfg *pgx.ConnConfig) (conn, error) {
	return pgx.ConnectConfig(ctx, cfg)
}

// Source implements driven.TurnSource over PostgreSQL.
type Source struct {
	connConfig   *pgx.ConnConfig
	table        string
	queryTimeout time.Duration
	limiter      *ratelimit.Limiter
	connect      connectFunc
}

// New validates cfg and returns a source. No connection is opened.
func New(cfg Config) (*Source, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%w: postgres source requires a DSN", domain.ErrInvalidInput)
	}
	if cfg.Table == "" {
		cfg.Table = source.DefaultTable
	}
	if err := source.ValidateTable(cfg.Table); err != nil {
		return nil, err
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "require"
	}

	dsn, err := source.WithSSLMode(cfg.DSN, cfg.SSLMode)
	if err != nil {
		return nil, err
	}
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse postgres dsn: %w", domain.ErrInvalidInput, err)
	}
	if cfg.ConnectTimeout > 0 {
		connConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	return &Source{
		connConfig:   connConfig,
		table:        cfg.Table,
		queryTimeout: cfg.QueryTimeout,
		limiter:      cfg.Limiter,
		connect:      pgxConnect,
	}, nil
}

// Fetch runs the message and response queries for one participant on a
// fresh connection and returns one stream per role.
func (s *Source) Fetch(ctx context.Context, participantID string) ([]domain.TurnStream, error) {
	if strings.TrimSpace(participantID) == "" {
		return nil, fmt.Errorf("%w: empty participant id", domain.ErrInvalidInput)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %w", domain.ErrSourceUnavailable, err)
	}
	c, err := s.connect(ctx, s.connConfig)
	if err != nil {
		s.checkOverload(err)
		return nil, fmt.Errorf("%w: connect: %w", domain.ErrSourceUnavailable, err)
	}
	defer func() {
		if cerr := c.Close(context.Background()); cerr != nil {
			logger.Debug("Closing connection for %s: %v", participantID, cerr)
		}
	}()

	streams := make([]domain.TurnStream, 0, len(source.Streams))
	for _, st := range source.Streams {
		records, err := s.query(ctx, c, st, participantID)
		if err != nil {
			return nil, err
		}
		streams = append(streams, domain.TurnStream{Role: st.Role, Records: records})
	}
	return streams, nil
}

func (s *Source) query(ctx context.Context, c conn, st source.Stream, participantID string) ([]domain.TurnRecord, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %w", domain.ErrSourceUnavailable, err)
	}

	qctx := ctx
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	rows, err := c.Query(qctx, source.Query(s.table, st, source.PlaceholderDollar), participantID)
	if err != nil {
		s.checkOverload(err)
		return nil, fmt.Errorf("%w: query %s: %w", domain.ErrSourceUnavailable, st.Column, err)
	}

	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedRow) {
			return nil, fmt.Errorf("query %s: %w", st.Column, err)
		}
		return nil, fmt.Errorf("%w: read %s rows: %w", domain.ErrSourceUnavailable, st.Column, err)
	}
	return records, nil
}

// scanRecord reads one (content, timestamp) row. A NULL in either column
// makes the whole participant unusable.
func scanRecord(row pgx.CollectableRow) (domain.TurnRecord, error) {
	var (
		content pgtype.Text
		ts      pgtype.Timestamptz
	)
	if err := row.Scan(&content, &ts); err != nil {
		return domain.TurnRecord{}, err
	}
	if !content.Valid {
		return domain.TurnRecord{}, fmt.Errorf("%w: NULL content", domain.ErrMalformedRow)
	}
	if !ts.Valid {
		return domain.TurnRecord{}, fmt.Errorf("%w: NULL timestamp", domain.ErrMalformedRow)
	}
	return domain.TurnRecord{Content: content.String, Timestamp: ts.Time}, nil
}

// checkOverload backs the limiter off when the server refuses work.
func (s *Source) checkOverload(err error) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return
	}
	if pgErr.Code == codeTooManyConnections || pgErr.Code == codeCannotConnectNow {
		logger.Warn("Postgres is refusing connections (%s), backing off", pgErr.Code)
		s.limiter.Backoff(0)
	}
}

// Close releases resources. Connections are per fetch, so there are none.
func (s *Source) Close() error {
	return nil
}
