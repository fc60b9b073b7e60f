// Package domain defines the core business entities for convoharvest.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Roster: The ordered participant identifiers processed in a run
//   - TurnRecord / TurnStream: Timestamped rows fetched from the event store
//   - Conversation: The merged, role-tagged message sequence
//   - MetricsRecord: Engagement statistics derived from a conversation
//   - ParticipantOutcome: The explicit result of processing one participant
//   - Run: A single pass over a roster, as recorded in the ledger
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
