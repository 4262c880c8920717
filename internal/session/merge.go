// Package session merges in-flight session attributes with persisted memory
// and guards every memory-store call so a failing store never ends a turn.
package session

import (
	"maps"

	"campus-assistant/internal/domain"
)

// ephemeralKeys are never written to durable storage.
var ephemeralKeys = []string{domain.AttrRecentContext}

// MergeForTurn overlays current on persisted: values already set for this
// turn win, gaps are filled from memory. Neither input is modified.
func MergeForTurn(current, persisted domain.SessionAttributes) domain.SessionAttributes {
	merged := persisted.Clone()
	maps.Copy(merged, current)
	return merged
}

// PrepareForPersistence returns a copy of attrs without ephemeral keys.
func PrepareForPersistence(attrs domain.SessionAttributes) domain.SessionAttributes {
	out := attrs.Clone()
	for _, k := range ephemeralKeys {
		delete(out, k)
	}
	return out
}
