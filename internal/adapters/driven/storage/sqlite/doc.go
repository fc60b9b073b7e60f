// Package sqlite provides a SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. A single database holds:
//
//   - RunLedger: runs and their per-participant outcomes, used to resume
//     an interrupted run and to answer `runs list` / `runs show`
//   - MetricsWriter: the conversation_metrics table, one row per roster
//     entry in roster order
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the ledger is stored at ~/.convoharvest/data/ledger.db. The metrics
// table is written to metrics.db under the output directory.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
