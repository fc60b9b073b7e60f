package services

import (
	"strings"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

// ExtractMetrics computes the engagement statistics of a conversation.
// The participant ID and HasConversation are left for the caller: only the
// harvester knows whether the fetch behind the conversation succeeded.
func ExtractMetrics(conv domain.Conversation) domain.MetricsRecord {
	var rec domain.MetricsRecord
	for _, t := range conv {
		if t.Role != domain.RoleUser {
			continue
		}
		rec.UserTurnCount++
		rec.UserWordCount += CountWords(t.Content)
	}
	return rec
}

// CountWords returns the number of whitespace-delimited tokens in s.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
