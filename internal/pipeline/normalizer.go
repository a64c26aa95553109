package pipeline

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"gigwatch/internal/config"
	"gigwatch/internal/domain/gig"
	"gigwatch/internal/scraper"
)

// defaultDateLayouts are tried after RFC3339 and whatever the source
// config lists. Anything a layout doesn't match is a hard InvalidDate;
// there is no best-effort parse.
var defaultDateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
	"Mon 2 Jan 2006 15:04",
	"2 January 2006 3:04pm",
	"2 January 2006",
}

// relativeHour is where "tonight" style listings land: 20:00 in the
// source's zone on the scrape date.
const relativeHour = 20

type Normalizer struct {
	cfg     config.SourceConfig
	loc     *time.Location
	aliases map[string]string
	layouts []string
}

func NewNormalizer(cfg config.SourceConfig) *Normalizer {
	aliases := make(map[string]string, len(cfg.VenueAliases))
	for k, v := range cfg.VenueAliases {
		aliases[foldName(k)] = strings.TrimSpace(v)
	}

	layouts := make([]string, 0, 1+len(cfg.DateFormats)+len(defaultDateLayouts))
	layouts = append(layouts, time.RFC3339)
	layouts = append(layouts, cfg.DateFormats...)
	layouts = append(layouts, defaultDateLayouts...)

	return &Normalizer{
		cfg:     cfg,
		loc:     cfg.Location(),
		aliases: aliases,
		layouts: layouts,
	}
}

// Normalize maps one raw record to the canonical shape. Pure over its
// inputs and the injected alias table; now is passed in so the
// relative-date default and the seen timestamps are deterministic.
func (n *Normalizer) Normalize(raw scraper.RawGig, now time.Time) (gig.Gig, error) {
	title := foldName(raw.Title)
	if title == "" {
		return gig.Gig{}, &NormalizationError{Kind: KindMissingField, Field: "title"}
	}

	venueName := collapseWhitespace(strings.TrimSpace(raw.Venue))
	if venueName == "" {
		return gig.Gig{}, &NormalizationError{Kind: KindMissingField, Field: "venue"}
	}
	slug := n.venueSlug(venueName)
	if slug == "" {
		return gig.Gig{}, &NormalizationError{Kind: KindInvalidVenue, Field: "venue", Value: raw.Venue}
	}

	if strings.TrimSpace(raw.Start) == "" && len(raw.Dates) == 0 {
		return gig.Gig{}, &NormalizationError{Kind: KindMissingField, Field: "start"}
	}

	var occurrences []time.Time
	for _, d := range raw.Dates {
		t, err := n.parseWhen(d, now)
		if err != nil {
			return gig.Gig{}, err
		}
		occurrences = append(occurrences, t)
	}
	sort.Slice(occurrences, func(i, j int) bool { return occurrences[i].Before(occurrences[j]) })

	var startAt time.Time
	if strings.TrimSpace(raw.Start) != "" {
		t, err := n.parseWhen(raw.Start, now)
		if err != nil {
			return gig.Gig{}, err
		}
		startAt = t
	} else {
		startAt = occurrences[0]
	}

	var endAt *time.Time
	if strings.TrimSpace(raw.End) != "" {
		t, err := n.parseWhen(raw.End, now)
		if err != nil {
			return gig.Gig{}, err
		}
		endAt = &t
	}

	key := gig.IdentityKey(slug, title, startAt)

	g := gig.Gig{
		Key:      key,
		SourceID: n.cfg.ID,
		Title:    collapseWhitespace(strings.TrimSpace(raw.Title)),
		Venue: gig.Venue{
			Name: venueName,
			Slug: slug,
		},
		StartAt:     startAt,
		EndAt:       endAt,
		Description: strings.TrimSpace(raw.Description),
		TicketURL:   strings.TrimSpace(raw.TicketURL),
		Price:       strings.TrimSpace(raw.Price),
		Status:      gig.StatusActive,
		FirstSeen:   now.UTC(),
		LastSeen:    now.UTC(),
		LastUpdated: now.UTC(),
	}

	for _, occ := range occurrences {
		g.Performances = append(g.Performances, gig.Performance{GigKey: key, StartAt: occ})
	}

	g.ContentHash = g.ComputeContentHash()
	return g, nil
}

func (n *Normalizer) venueSlug(name string) string {
	folded := foldName(name)
	if alias, ok := n.aliases[folded]; ok && alias != "" {
		return alias
	}
	return slugify(folded)
}

func (n *Normalizer) parseWhen(s string, now time.Time) (time.Time, error) {
	v := collapseWhitespace(strings.TrimSpace(s))
	if v == "" {
		return time.Time{}, &NormalizationError{Kind: KindMissingField, Field: "date"}
	}

	switch strings.ToLower(v) {
	case "tonight", "today":
		return relativeAt(now, n.loc, 0), nil
	case "tomorrow":
		return relativeAt(now, n.loc, 1), nil
	}

	for _, layout := range n.layouts {
		t, err := time.ParseInLocation(layout, v, n.loc)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &NormalizationError{Kind: KindInvalidDate, Field: "date", Value: s}
}

func relativeAt(now time.Time, loc *time.Location, daysAhead int) time.Time {
	local := now.In(loc)
	t := time.Date(local.Year(), local.Month(), local.Day()+daysAhead, relativeHour, 0, 0, 0, loc)
	return t.UTC()
}

var whitespaceRe = regexp.MustCompile(`\s+`)
var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

func collapseWhitespace(s string) string {
	return whitespaceRe.ReplaceAllString(s, " ")
}

// foldName is the canonical comparison form: lowercased, trimmed,
// inner whitespace collapsed.
func foldName(s string) string {
	return strings.ToLower(collapseWhitespace(strings.TrimSpace(s)))
}

func slugify(s string) string {
	return strings.Trim(nonSlugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
