package scraper

import (
	"context"
	"sort"
)

// RawGig is what a source adapter extracts from one listing before any
// normalization. Field values are whatever the site had; the pipeline
// makes no assumption beyond "strings as scraped".
type RawGig struct {
	Title       string   `json:"title"`
	Venue       string   `json:"venue"`
	Start       string   `json:"start"`
	End         string   `json:"end,omitempty"`
	Dates       []string `json:"dates,omitempty"`
	Description string   `json:"description,omitempty"`
	TicketURL   string   `json:"ticket_url,omitempty"`
	Price       string   `json:"price,omitempty"`
	SourceRef   string   `json:"source_ref,omitempty"`
}

// Adapter is the per-venue extraction capability. One implementation
// per site; the pipeline never looks past this interface.
type Adapter interface {
	SourceID() string
	FetchListings(ctx context.Context) ([]RawGig, error)
}

type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			continue
		}
		r.adapters[a.SourceID()] = a
	}
	return r
}

func (r *Registry) Register(a Adapter) {
	if r == nil || a == nil {
		return
	}
	r.adapters[a.SourceID()] = a
}

func (r *Registry) Get(sourceID string) (Adapter, bool) {
	if r == nil {
		return nil, false
	}
	a, ok := r.adapters[sourceID]
	return a, ok
}

func (r *Registry) SourceIDs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
