package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRunInProgress indicates a harvest run is already active.
	ErrRunInProgress = errors.New("run in progress")

	// Per-participant data errors. These are recovered by the harvester:
	// the participant is marked failed and the batch continues.

	// ErrSourceUnavailable indicates the event store could not be reached
	// or a query against it failed.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMalformedRow indicates a fetched row is missing a required field.
	// The whole participant is dropped rather than producing a partial document.
	ErrMalformedRow = errors.New("malformed row")

	// Infrastructure errors. These are never recovered silently.

	// ErrWriteFailure indicates an artifact could not be persisted.
	// It aborts the run.
	ErrWriteFailure = errors.New("write failure")
)
