package services

import (
	"slices"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

// taggedRecord carries a record together with the role of the stream it came from.
type taggedRecord struct {
	role   domain.Role
	record domain.TurnRecord
}

// MergeTurns interleaves role-tagged streams into a single conversation.
//
// Streams are concatenated in argument order and then stably sorted by
// timestamp, so rows with equal timestamps keep their concatenation order
// and repeated merges of the same input are identical. Timestamps are
// dropped from the output. Consecutive turns with the same role are kept.
func MergeTurns(streams ...domain.TurnStream) domain.Conversation {
	total := 0
	for _, s := range streams {
		total += s.Len()
	}

	tagged := make([]taggedRecord, 0, total)
	for _, s := range streams {
		for _, r := range s.Records {
			tagged = append(tagged, taggedRecord{role: s.Role, record: r})
		}
	}

	slices.SortStableFunc(tagged, func(a, b taggedRecord) int {
		return a.record.Timestamp.Compare(b.record.Timestamp)
	})

	conv := make(domain.Conversation, len(tagged))
	for i, t := range tagged {
		conv[i] = domain.Turn{Role: t.role, Content: t.record.Content}
	}
	return conv
}
