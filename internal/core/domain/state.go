package domain

// ParticipantState is a step in the per-participant processing state machine.
//
//	PENDING -> FETCHING -> MERGING -> EXTRACTING -> PERSISTED
//	   |           |          |            |
//	   +-----------+----------+------------+------> FAILED
type ParticipantState string

// Participant states.
const (
	StatePending    ParticipantState = "pending"
	StateFetching   ParticipantState = "fetching"
	StateMerging    ParticipantState = "merging"
	StateExtracting ParticipantState = "extracting"
	StatePersisted  ParticipantState = "persisted"
	StateFailed     ParticipantState = "failed"
)

var stateTransitions = map[ParticipantState][]ParticipantState{
	StatePending:    {StateFetching, StateFailed},
	StateFetching:   {StateMerging, StateFailed},
	StateMerging:    {StateExtracting, StateFailed},
	StateExtracting: {StatePersisted, StateFailed},
}

// IsValid returns true if the state is recognised.
func (s ParticipantState) IsValid() bool {
	switch s {
	case StatePending, StateFetching, StateMerging, StateExtracting, StatePersisted, StateFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states with no outgoing transitions.
func (s ParticipantState) IsTerminal() bool {
	return s == StatePersisted || s == StateFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s ParticipantState) CanTransitionTo(next ParticipantState) bool {
	for _, allowed := range stateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String returns the string representation.
func (s ParticipantState) String() string {
	return string(s)
}

// OutcomeReason classifies how a participant finished.
type OutcomeReason string

// Outcome reasons.
const (
	// ReasonOK is a persisted, non-empty conversation.
	ReasonOK OutcomeReason = "ok"

	// ReasonEmpty is a successful fetch that returned no rows.
	ReasonEmpty OutcomeReason = "empty"

	// ReasonInvalidID is a participant identifier that cannot key an artifact.
	ReasonInvalidID OutcomeReason = "invalid_id"

	// ReasonSourceUnavailable is a connection or query failure.
	ReasonSourceUnavailable OutcomeReason = "source_unavailable"

	// ReasonMalformedRow is a fetched row missing a required field.
	ReasonMalformedRow OutcomeReason = "malformed_row"

	// ReasonInternal is any other failure, including recovered panics.
	ReasonInternal OutcomeReason = "internal"
)

// IsFailure returns true if the reason describes a failed participant.
func (r OutcomeReason) IsFailure() bool {
	return r != ReasonOK && r != ReasonEmpty
}

// ParticipantOutcome is the explicit result of processing one participant.
// It replaces exception suppression: success and failure are both values
// and the harvester branches on them.
type ParticipantOutcome struct {
	// Position is the participant's index in the roster.
	Position int

	// ParticipantID identifies the participant.
	ParticipantID string

	// State is the terminal state reached.
	State ParticipantState

	// Reason classifies the outcome.
	Reason OutcomeReason

	// Metrics is the row appended to the metrics table.
	// Degraded (zero-valued) when the participant failed.
	Metrics MetricsRecord

	// Err is the failure cause. Nil on success.
	Err error
}

// Succeeded returns true if the participant reached PERSISTED.
func (o ParticipantOutcome) Succeeded() bool {
	return o.State == StatePersisted
}

// ErrorMessage returns the failure message, or "" on success.
func (o ParticipantOutcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
