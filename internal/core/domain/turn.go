package domain

import "time"

// Role identifies who authored a turn.
type Role string

// Known roles.
const (
	// RoleUser marks turns written by the participant.
	RoleUser Role = "user"

	// RoleAssistant marks turns produced by the assistant.
	RoleAssistant Role = "assistant"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// TurnRecord is one row fetched from the event store.
// Rows with an empty content field in the store are never represented;
// they are filtered at the query, not coerced to "".
type TurnRecord struct {
	// Content is the message text.
	Content string

	// Timestamp is the merge key.
	Timestamp time.Time
}

// TurnStream is the set of rows produced by one role-specific query.
// The role is stream-origin metadata: every record in Records belongs to Role.
type TurnStream struct {
	Role    Role
	Records []TurnRecord
}

// Len returns the number of records in the stream.
func (s TurnStream) Len() int {
	return len(s.Records)
}

// Turn is one entry of a merged conversation.
// Timestamps are dropped once ordering is fixed.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the ordered sequence of turns for one participant.
type Conversation []Turn

// IsEmpty returns true if the conversation has no turns.
func (c Conversation) IsEmpty() bool {
	return len(c) == 0
}

// UserTurns returns the turns authored by the participant, in order.
func (c Conversation) UserTurns() []Turn {
	var turns []Turn
	for _, t := range c {
		if t.Role == RoleUser {
			turns = append(turns, t)
		}
	}
	return turns
}
