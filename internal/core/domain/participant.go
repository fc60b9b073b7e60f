package domain

import (
	"fmt"
	"strings"
)

// Roster is the ordered set of participant identifiers processed in a run.
// Order is significant: it defines the row order of the metrics table.
type Roster []string

// NewRoster builds a roster from raw identifiers.
// Identifiers are trimmed, blanks are skipped and duplicates keep their
// first position. The dropped duplicates are returned for reporting.
func NewRoster(ids []string) (Roster, []string) {
	seen := make(map[string]struct{}, len(ids))
	roster := make(Roster, 0, len(ids))
	var dupes []string
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			dupes = append(dupes, id)
			continue
		}
		seen[id] = struct{}{}
		roster = append(roster, id)
	}
	return roster, dupes
}

// Len returns the number of participants.
func (r Roster) Len() int {
	return len(r)
}

// ValidateParticipantID checks that an identifier can be used to key
// per-participant artifacts. Identifiers are opaque, but they end up as
// file names, so separators and relative path elements are rejected.
func ValidateParticipantID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: empty participant id", ErrInvalidInput)
	case id == "." || id == "..":
		return fmt.Errorf("%w: participant id %q is a relative path", ErrInvalidInput, id)
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("%w: participant id %q contains a path separator", ErrInvalidInput, id)
	}
	return nil
}
