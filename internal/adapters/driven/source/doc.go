// Package source holds what the event source adapters share: the two
// role-specific read queries and table name validation.
//
// Subpackages:
//   - postgres: native pgx client, one connection per fetch
//   - sqlsource: database/sql pool over lib/pq or modernc SQLite
//   - ratelimit: token bucket applied per query
package source
