package driven

import (
	"context"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

// DocumentWriter persists conversation documents.
// Writes are keyed by participant ID and overwrite previous artifacts,
// so rerunning a roster needs no cleanup.
type DocumentWriter interface {
	// WriteDocument stores the conversation for a participant.
	// Must be safe for concurrent calls with distinct participant IDs.
	WriteDocument(ctx context.Context, participantID string, conv domain.Conversation) error
}

// MetricsWriter persists the aggregate metrics table.
type MetricsWriter interface {
	// WriteMetrics replaces the metrics artifact with table, in table order.
	WriteMetrics(ctx context.Context, table domain.MetricsTable) error
}
