package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceConfig is the per-venue scraping configuration. One entry per
// source adapter; the pipeline refuses to run a source it has no
// config for.
type SourceConfig struct {
	ID      string `yaml:"id"`
	BaseURL string `yaml:"base_url"`

	// Timezone is the zone ambiguous local times are interpreted in.
	// Empty means UTC.
	Timezone string `yaml:"timezone"`

	// DateFormats lists the Go layout strings this source's raw dates
	// are tried against, in order. RFC3339 is always tried first.
	DateFormats []string `yaml:"date_formats"`

	// VenueAliases maps raw venue names (lowercased, whitespace
	// collapsed) to canonical slugs.
	VenueAliases map[string]string `yaml:"venue_aliases"`

	BatchSizeLimit int `yaml:"batch_size_limit"`

	// RunTimeoutMS is the wall-clock budget for one run; RunTimeout is
	// derived on load.
	RunTimeoutMS int           `yaml:"run_timeout_ms"`
	RunTimeout   time.Duration `yaml:"-"`

	// StaleAfterRuns flags a gig stale once it has been missing from
	// this many consecutive completed runs. Zero disables the sweep.
	StaleAfterRuns int `yaml:"stale_after_runs"`
}

type Sources struct {
	Sources []SourceConfig `yaml:"sources"`
}

func LoadSources(path string) (Sources, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Sources{}, err
	}
	var s Sources
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Sources{}, err
	}
	if len(s.Sources) == 0 {
		return Sources{}, errors.New("no sources configured")
	}

	seen := map[string]struct{}{}
	for i := range s.Sources {
		sc := &s.Sources[i]
		sc.ID = strings.TrimSpace(sc.ID)
		if sc.ID == "" {
			return Sources{}, fmt.Errorf("source %d: empty id", i)
		}
		if _, ok := seen[sc.ID]; ok {
			return Sources{}, fmt.Errorf("duplicate source id: %s", sc.ID)
		}
		seen[sc.ID] = struct{}{}

		if sc.Timezone != "" {
			if _, err := time.LoadLocation(sc.Timezone); err != nil {
				return Sources{}, fmt.Errorf("source %s: bad timezone %q: %w", sc.ID, sc.Timezone, err)
			}
		}
		if sc.BatchSizeLimit <= 0 {
			sc.BatchSizeLimit = 500
		}
		sc.RunTimeout = time.Duration(sc.RunTimeoutMS) * time.Millisecond
		if sc.RunTimeout <= 0 {
			sc.RunTimeout = 2 * time.Minute
		}
	}

	return s, nil
}

func (s Sources) ByID(id string) (SourceConfig, bool) {
	for _, sc := range s.Sources {
		if sc.ID == id {
			return sc, true
		}
	}
	return SourceConfig{}, false
}

func (s Sources) IDs() []string {
	out := make([]string, 0, len(s.Sources))
	for _, sc := range s.Sources {
		out = append(out, sc.ID)
	}
	return out
}

// Location resolves the configured timezone, defaulting to UTC.
func (c SourceConfig) Location() *time.Location {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
