package pipeline

import (
	"errors"
	"testing"
	"time"

	"gigwatch/internal/config"
	"gigwatch/internal/scraper"
)

func testSourceConfig() config.SourceConfig {
	return config.SourceConfig{
		ID:       "croft",
		Timezone: "Europe/London",
		DateFormats: []string{
			"Mon 2 Jan 2006 15:04",
		},
		VenueAliases: map[string]string{
			"the croft":          "bristol-the-croft",
			"croft":              "bristol-the-croft",
			"the croft, bristol": "bristol-the-croft",
		},
	}
}

// Scrape instant used as "now" throughout: a summer date so the London
// zone is one hour off UTC and the conversion is observable.
var testNow = time.Date(2026, 7, 10, 9, 0, 0, 0, time.UTC)

func TestNormalizeBasic(t *testing.T) {
	n := NewNormalizer(testSourceConfig())

	g, err := n.Normalize(scraper.RawGig{
		Title:     "  The  Midnight   Ramblers ",
		Venue:     "The Croft",
		Start:     "2026-07-12T20:00:00+01:00",
		TicketURL: "https://example.com/t/1",
		Price:     "£10",
	}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Title != "The Midnight Ramblers" {
		t.Errorf("title = %q, want collapsed whitespace", g.Title)
	}
	if g.Venue.Slug != "bristol-the-croft" {
		t.Errorf("venue slug = %q, want alias", g.Venue.Slug)
	}
	want := time.Date(2026, 7, 12, 19, 0, 0, 0, time.UTC)
	if !g.StartAt.Equal(want) {
		t.Errorf("start = %v, want %v", g.StartAt, want)
	}
	if g.SourceID != "croft" {
		t.Errorf("source = %q", g.SourceID)
	}
	if g.ContentHash == "" || g.Key == "" {
		t.Error("key and content hash must be set")
	}
	if !g.FirstSeen.Equal(testNow) || !g.LastSeen.Equal(testNow) {
		t.Error("seen timestamps must come from the injected now")
	}
}

func TestNormalizeLocalDateInSourceZone(t *testing.T) {
	n := NewNormalizer(testSourceConfig())

	g, err := n.Normalize(scraper.RawGig{
		Title: "Open Mic",
		Venue: "The Croft",
		Start: "Sat 11 Jul 2026 19:30",
	}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 19:30 BST is 18:30 UTC.
	want := time.Date(2026, 7, 11, 18, 30, 0, 0, time.UTC)
	if !g.StartAt.Equal(want) {
		t.Errorf("start = %v, want %v", g.StartAt, want)
	}
}

func TestNormalizeRelativeDates(t *testing.T) {
	n := NewNormalizer(testSourceConfig())

	cases := []struct {
		raw  string
		want time.Time
	}{
		// 20:00 BST on the scrape date is 19:00 UTC.
		{"tonight", time.Date(2026, 7, 10, 19, 0, 0, 0, time.UTC)},
		{"Today", time.Date(2026, 7, 10, 19, 0, 0, 0, time.UTC)},
		{"tomorrow", time.Date(2026, 7, 11, 19, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		g, err := n.Normalize(scraper.RawGig{Title: "DJ Night", Venue: "Croft", Start: tc.raw}, testNow)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.raw, err)
		}
		if !g.StartAt.Equal(tc.want) {
			t.Errorf("%s: start = %v, want %v", tc.raw, g.StartAt, tc.want)
		}
	}
}

func TestNormalizeMissingFields(t *testing.T) {
	n := NewNormalizer(testSourceConfig())

	cases := []struct {
		name  string
		raw   scraper.RawGig
		field string
	}{
		{"no title", scraper.RawGig{Venue: "Croft", Start: "tonight"}, "title"},
		{"no venue", scraper.RawGig{Title: "X", Start: "tonight"}, "venue"},
		{"no start", scraper.RawGig{Title: "X", Venue: "Croft"}, "start"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := n.Normalize(tc.raw, testNow)
			var nerr *NormalizationError
			if !errors.As(err, &nerr) {
				t.Fatalf("err = %v, want NormalizationError", err)
			}
			if nerr.Kind != KindMissingField || nerr.Field != tc.field {
				t.Errorf("got %s/%s, want missing_field/%s", nerr.Kind, nerr.Field, tc.field)
			}
		})
	}
}

func TestNormalizeInvalidDate(t *testing.T) {
	n := NewNormalizer(testSourceConfig())

	_, err := n.Normalize(scraper.RawGig{Title: "X", Venue: "Croft", Start: "sometime soonish"}, testNow)
	var nerr *NormalizationError
	if !errors.As(err, &nerr) {
		t.Fatalf("err = %v, want NormalizationError", err)
	}
	if nerr.Kind != KindInvalidDate {
		t.Errorf("kind = %s, want invalid_date", nerr.Kind)
	}
}

func TestNormalizeUnaliasedVenueSlugified(t *testing.T) {
	n := NewNormalizer(testSourceConfig())

	g, err := n.Normalize(scraper.RawGig{Title: "X", Venue: "St George's Hall", Start: "tonight"}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Venue.Slug != "st-george-s-hall" {
		t.Errorf("slug = %q", g.Venue.Slug)
	}
}

// The key must be stable across sources and across title case and
// spacing variants; that stability is what cross-source dedup rides on.
func TestNormalizeKeyStability(t *testing.T) {
	croft := NewNormalizer(testSourceConfig())

	other := testSourceConfig()
	other.ID = "exchange"
	other.VenueAliases = map[string]string{"the croft, bristol": "bristol-the-croft"}
	exchange := NewNormalizer(other)

	a, err := croft.Normalize(scraper.RawGig{
		Title: "The Midnight Ramblers",
		Venue: "The Croft",
		Start: "2026-07-12T20:00:00+01:00",
	}, testNow)
	if err != nil {
		t.Fatal(err)
	}
	b, err := exchange.Normalize(scraper.RawGig{
		Title: "THE MIDNIGHT  RAMBLERS",
		Venue: "The Croft, Bristol",
		Start: "2026-07-12T19:00:00Z",
	}, testNow)
	if err != nil {
		t.Fatal(err)
	}

	if a.Key != b.Key {
		t.Errorf("keys differ: %s vs %s", a.Key, b.Key)
	}
	if a.SourceID == b.SourceID {
		t.Error("records should carry their own source ids")
	}
}

func TestNormalizeContentHashTracksMutableFields(t *testing.T) {
	n := NewNormalizer(testSourceConfig())
	raw := scraper.RawGig{Title: "X", Venue: "Croft", Start: "2026-07-12T20:00:00Z", Price: "£10"}

	a, err := n.Normalize(raw, testNow)
	if err != nil {
		t.Fatal(err)
	}
	raw.Price = "£12"
	b, err := n.Normalize(raw, testNow)
	if err != nil {
		t.Fatal(err)
	}

	if a.Key != b.Key {
		t.Error("price change must not move the identity key")
	}
	if a.ContentHash == b.ContentHash {
		t.Error("price change must move the content hash")
	}
}

func TestNormalizeMultiDateResidency(t *testing.T) {
	n := NewNormalizer(testSourceConfig())

	g, err := n.Normalize(scraper.RawGig{
		Title: "Jazz Residency",
		Venue: "The Croft",
		Dates: []string{"2026-07-20 20:00", "2026-07-13 20:00", "2026-07-27 20:00"},
	}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Performances) != 3 {
		t.Fatalf("performances = %d, want 3", len(g.Performances))
	}
	// Earliest occurrence becomes the gig start; occurrences sorted.
	if !g.StartAt.Equal(g.Performances[0].StartAt) {
		t.Error("start must be the earliest occurrence")
	}
	for i := 1; i < len(g.Performances); i++ {
		if g.Performances[i].StartAt.Before(g.Performances[i-1].StartAt) {
			t.Error("performances must be sorted ascending")
		}
	}
	for _, p := range g.Performances {
		if p.GigKey != g.Key {
			t.Error("performance must reference the parent key")
		}
	}
}
