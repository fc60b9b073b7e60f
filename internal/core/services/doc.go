// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The merge, extraction and summary functions are pure; the Harvester
// owns the per-participant state machine and all side effects.
package services
