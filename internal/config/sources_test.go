package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSourcesFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSources(t *testing.T) {
	path := writeSourcesFile(t, `
sources:
  - id: croft
    base_url: https://www.thecroftbristol.com
    timezone: Europe/London
    date_formats:
      - "Mon 2 Jan 2006 15:04"
    venue_aliases:
      "the croft": bristol-the-croft
    batch_size_limit: 200
    run_timeout_ms: 90000
    stale_after_runs: 3
  - id: exchange
    base_url: https://exchangebristol.com
`)

	s, err := LoadSources(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Sources) != 2 {
		t.Fatalf("sources = %d", len(s.Sources))
	}

	croft, ok := s.ByID("croft")
	if !ok {
		t.Fatal("croft missing")
	}
	if croft.BatchSizeLimit != 200 {
		t.Errorf("batch limit = %d", croft.BatchSizeLimit)
	}
	if croft.RunTimeout != 90*time.Second {
		t.Errorf("run timeout = %v", croft.RunTimeout)
	}
	if croft.VenueAliases["the croft"] != "bristol-the-croft" {
		t.Errorf("aliases = %v", croft.VenueAliases)
	}
	if croft.Location().String() != "Europe/London" {
		t.Errorf("location = %v", croft.Location())
	}

	// Omitted tunables fall back to safe defaults.
	exchange, _ := s.ByID("exchange")
	if exchange.BatchSizeLimit != 500 {
		t.Errorf("default batch limit = %d", exchange.BatchSizeLimit)
	}
	if exchange.RunTimeout != 2*time.Minute {
		t.Errorf("default run timeout = %v", exchange.RunTimeout)
	}
	if exchange.Location() != time.UTC {
		t.Errorf("default location = %v", exchange.Location())
	}
}

func TestLoadSourcesDuplicateID(t *testing.T) {
	path := writeSourcesFile(t, `
sources:
  - id: croft
  - id: croft
`)
	if _, err := LoadSources(path); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestLoadSourcesBadTimezone(t *testing.T) {
	path := writeSourcesFile(t, `
sources:
  - id: croft
    timezone: Mars/Olympus
`)
	if _, err := LoadSources(path); err == nil {
		t.Fatal("expected timezone error")
	}
}

func TestLoadSourcesEmpty(t *testing.T) {
	path := writeSourcesFile(t, `sources: []`)
	if _, err := LoadSources(path); err == nil {
		t.Fatal("expected error for empty source list")
	}
}
