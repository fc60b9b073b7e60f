package driven

import (
	"context"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

// TurnSource fetches a participant's raw turns from the event store.
// Each implementation issues one read-only query per role.
type TurnSource interface {
	// Fetch returns one stream per role, user stream first.
	// Rows with a null content field are excluded by the query.
	// Connection and query failures wrap domain.ErrSourceUnavailable;
	// rows missing required fields wrap domain.ErrMalformedRow.
	// Implementations must be safe for concurrent use: concurrent calls
	// for different participants never share connection state.
	Fetch(ctx context.Context, participantID string) ([]domain.TurnStream, error)

	// Close releases resources.
	Close() error
}
