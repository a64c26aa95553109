package gig

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

type Status string

const (
	StatusActive Status = "active"
	StatusStale  Status = "stale"
)

type Venue struct {
	Name     string
	Slug     string
	Address  string
	Locality string
}

// Performance is one occurrence of a repeating listing (residency or
// series). The parent Gig carries the earliest occurrence as its start.
type Performance struct {
	GigKey  string
	StartAt time.Time
}

type Gig struct {
	// Key identifies the same real-world event across re-scrapes. It
	// is derived from the canonical venue slug, the canonical title
	// and the start instant; the source is deliberately excluded so
	// two sites listing the same event collide on one record.
	Key string

	// SourceID is the source that first created the record. Sources
	// lists any further sources later seen carrying the same event;
	// provenance is never overwritten, only extended.
	SourceID string
	Sources  []string

	Title       string
	Venue       Venue
	StartAt     time.Time
	EndAt       *time.Time
	Description string
	TicketURL   string
	Price       string

	Performances []Performance

	ContentHash string
	Status      Status
	MissedRuns  int

	FirstSeen   time.Time
	LastSeen    time.Time
	LastUpdated time.Time
}

// IdentityKey is stable across re-scrapes as long as normalization
// maps the venue and title to the same canonical forms.
func IdentityKey(venueSlug, canonicalTitle string, startAt time.Time) string {
	h := sha1.Sum([]byte(venueSlug + "|" + canonicalTitle + "|" + startAt.UTC().Format(time.RFC3339)))
	return "gig-" + hex.EncodeToString(h[:])
}

// ComputeContentHash covers every mutable field so the deduplicator
// can detect changed listings without field-by-field comparison.
func (g Gig) ComputeContentHash() string {
	end := ""
	if g.EndAt != nil {
		end = g.EndAt.UTC().Format(time.RFC3339)
	}
	parts := []string{
		g.Title,
		g.Venue.Slug,
		g.StartAt.UTC().Format(time.RFC3339),
		end,
		g.Description,
		g.TicketURL,
		g.Price,
	}
	h := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(h[:])
}

// HasSource reports whether id is already recorded as provenance.
func (g Gig) HasSource(id string) bool {
	if g.SourceID == id {
		return true
	}
	for _, s := range g.Sources {
		if s == id {
			return true
		}
	}
	return false
}
