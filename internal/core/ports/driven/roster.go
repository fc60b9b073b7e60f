package driven

import (
	"context"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
)

// RosterSource loads the participant roster for a run.
// Eligibility filtering happens here, outside the harvester.
type RosterSource interface {
	// Load returns the ordered, de-duplicated roster.
	Load(ctx context.Context) (domain.Roster, error)
}
