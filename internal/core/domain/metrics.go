package domain

// MetricsRecord holds the engagement statistics for one participant.
type MetricsRecord struct {
	ParticipantID   string `json:"participant_id"`
	UserTurnCount   int    `json:"user_turn_count"`
	UserWordCount   int    `json:"user_word_count"`
	HasConversation bool   `json:"has_conversation"`
}

// DegradedRecord returns the zero-valued row recorded when processing failed.
func DegradedRecord(participantID string) MetricsRecord {
	return MetricsRecord{ParticipantID: participantID}
}

// MetricsTable is the collection of metrics rows in roster order.
type MetricsTable []MetricsRecord

// MetricsColumns is the column order of the tabular metrics artifact.
var MetricsColumns = []string{"participant_id", "user_turn_count", "user_word_count", "has_conversation"}

// UserTurnCounts returns the user_turn_count column.
func (t MetricsTable) UserTurnCounts() []float64 {
	out := make([]float64, len(t))
	for i, r := range t {
		out[i] = float64(r.UserTurnCount)
	}
	return out
}

// UserWordCounts returns the user_word_count column.
func (t MetricsTable) UserWordCounts() []float64 {
	out := make([]float64, len(t))
	for i, r := range t {
		out[i] = float64(r.UserWordCount)
	}
	return out
}

// WithConversation counts rows flagged has_conversation.
func (t MetricsTable) WithConversation() int {
	n := 0
	for _, r := range t {
		if r.HasConversation {
			n++
		}
	}
	return n
}
