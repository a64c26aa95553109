package pipeline

import (
	"time"

	"gigwatch/internal/domain/gig"
)

type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionUnchanged Action = "unchanged"
	ActionSkip      Action = "skip"
)

type Classified struct {
	Gig    gig.Gig
	Action Action
}

// Classify decides, for each normalized record, whether it is new, an
// update to a stored gig, or an unchanged re-sighting. Records that
// collapse to the same key within one batch keep the first in scrape
// order; the rest are skipped.
func Classify(batch []gig.Gig, existing map[string]gig.Gig, now time.Time) []Classified {
	out := make([]Classified, 0, len(batch))
	seen := make(map[string]struct{}, len(batch))

	for _, g := range batch {
		if _, dup := seen[g.Key]; dup {
			out = append(out, Classified{Gig: g, Action: ActionSkip})
			continue
		}
		seen[g.Key] = struct{}{}

		prev, ok := existing[g.Key]
		if !ok {
			out = append(out, Classified{Gig: g, Action: ActionCreate})
			continue
		}

		merged := mergeProvenance(prev, g, now)
		if prev.ContentHash == g.ContentHash {
			// Only the sighting timestamps move.
			unchanged := prev
			unchanged.Sources = merged.Sources
			unchanged.LastSeen = now.UTC()
			out = append(out, Classified{Gig: unchanged, Action: ActionUnchanged})
			continue
		}
		out = append(out, Classified{Gig: merged, Action: ActionUpdate})
	}

	return out
}

// mergeProvenance is the cross-source conflict policy: two sources
// colliding on one identity key is expected, not an error, so the
// conflict resolves to a merge here instead of surfacing to the run.
// Mutable fields take the fresh record; firstSeen and the original
// primary source are preserved, and the second site is recorded as
// extra provenance, never a silent takeover.
func mergeProvenance(prev, fresh gig.Gig, now time.Time) gig.Gig {
	merged := fresh
	merged.FirstSeen = prev.FirstSeen
	merged.LastSeen = now.UTC()
	merged.LastUpdated = now.UTC()
	merged.Status = prev.Status
	merged.MissedRuns = 0

	merged.SourceID = prev.SourceID
	merged.Sources = prev.Sources
	if !prevHasSource(prev, fresh.SourceID) {
		merged.Sources = append(append([]string(nil), prev.Sources...), fresh.SourceID)
	}
	return merged
}

func prevHasSource(g gig.Gig, id string) bool {
	return g.HasSource(id)
}
