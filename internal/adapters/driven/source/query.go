package source

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

// DefaultTable is the event table holding one row per exchange.
const DefaultTable = "conversation_logs"

// Stream describes one role-specific query against the event table.
type Stream struct {
	// Role is the speaker every row of the stream is attributed to.
	Role domain.Role

	// Column holds the turn text. Rows where it is NULL are skipped.
	Column string
}

// Streams lists the queries run for each participant, in merge order.
var Streams = []Stream{
	{Role: domain.RoleUser, Column: "message"},
	{Role: domain.RoleAssistant, Column: "response"},
}

// Placeholder styles for the participant parameter.
const (
	PlaceholderDollar   = "$1" // PostgreSQL
	PlaceholderQuestion = "?"  // SQLite
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateTable checks that table is a plain, optionally schema-qualified,
// SQL identifier. Table names cannot be bound as parameters.
func ValidateTable(table string) error {
	if !identifierPattern.MatchString(table) {
		return fmt.Errorf("%w: invalid table name %q", domain.ErrInvalidInput, table)
	}
	return nil
}

// Query returns the read query for one stream.
// The table must have passed ValidateTable.
func Query(table string, s Stream, placeholder string) string {
	return fmt.Sprintf(
		"SELECT %s, timestamp FROM %s WHERE user_id = %s AND %s IS NOT NULL",
		s.Column, table, placeholder, s.Column,
	)
}

// WithSSLMode returns dsn with sslmode set to mode unless dsn already sets
// one. Both URL and key=value forms are supported.
func WithSSLMode(dsn, mode string) (string, error) {
	if mode == "" {
		return dsn, nil
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("%w: parse postgres dsn: %w", domain.ErrInvalidInput, err)
		}
		q := u.Query()
		if q.Get("sslmode") == "" {
			q.Set("sslmode", mode)
			u.RawQuery = q.Encode()
		}
		return u.String(), nil
	}
	if strings.Contains(dsn, "sslmode=") {
		return dsn, nil
	}
	return strings.TrimSpace(dsn) + " sslmode=" + mode, nil
}
