// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - TurnSource: Fetches role-tagged turn streams for a participant
//   - RosterSource: Loads the ordered participant roster
//   - DocumentWriter: Persists one conversation document per participant
//   - MetricsWriter: Persists the aggregate metrics table
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - RunLedger: Run and outcome history. Without it, runs cannot be resumed or inspected.
//   - PipelineMetrics: Pipeline telemetry. Without it, no counters are recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
