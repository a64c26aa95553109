package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ExchangeAdapter pulls the Exchange's events JSON feed: a paged index
// of event ids, then one detail request per event. Detail fetches go
// through the worker pool with a soft rate limit.
type ExchangeAdapter struct {
	client  *http.Client
	apiBase string
	pages   int
	workers int
}

func NewExchangeAdapter(baseURL string) *ExchangeAdapter {
	a := &ExchangeAdapter{
		client:  &http.Client{Timeout: 25 * time.Second},
		apiBase: strings.TrimSpace(baseURL),
		pages:   2,
		workers: 4,
	}
	if a.apiBase == "" {
		a.apiBase = "https://exchangebristol.com"
	}
	return a
}

func (a *ExchangeAdapter) SourceID() string { return "exchange" }

type exchangeIndexItem struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type exchangeEventDetail struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Venue       string `json:"venue"`
	StartsAt    string `json:"starts_at"`
	EndsAt      string `json:"ends_at"`
	Description string `json:"description"`
	TicketURL   string `json:"ticket_url"`
	Price       string `json:"price"`
	URL         string `json:"url"`
}

func (a *ExchangeAdapter) FetchListings(ctx context.Context) ([]RawGig, error) {
	if a == nil {
		return nil, fmt.Errorf("nil adapter")
	}

	pool := NewWorkerPool(a.workers, a.workers*2)
	pool.SetRateLimit(4)
	results := pool.Run(ctx)

	var mu sync.Mutex
	out := make([]RawGig, 0)
	var indexErr error
	indexed := 0

	for page := 1; page <= a.pages; page++ {
		if ctx.Err() != nil {
			break
		}
		items, err := a.fetchIndexPage(ctx, page)
		if err != nil {
			indexErr = err
			continue
		}
		for _, it := range items {
			it := it
			if it.ID == 0 || ctx.Err() != nil {
				continue
			}
			indexed++
			pool.Submit(func(ctx context.Context) error {
				detail, err := a.fetchEventDetail(ctx, it.ID)
				if err != nil {
					return err
				}
				mu.Lock()
				out = append(out, RawGig{
					Title:       pickNonEmpty(detail.Title, it.Title),
					Venue:       pickNonEmpty(detail.Venue, "Exchange"),
					Start:       detail.StartsAt,
					End:         detail.EndsAt,
					Description: detail.Description,
					TicketURL:   detail.TicketURL,
					Price:       detail.Price,
					SourceRef:   pickNonEmpty(detail.URL, it.URL),
				})
				mu.Unlock()
				return nil
			})
		}
	}

	pool.Close()

	var firstDetailErr error
	for res := range results {
		if res.Err != nil && firstDetailErr == nil {
			firstDetailErr = res.Err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The feed being entirely unreachable is fatal; a failed detail
	// page only costs that record.
	if indexed == 0 && indexErr != nil {
		return nil, indexErr
	}
	if len(out) == 0 && firstDetailErr != nil {
		return nil, firstDetailErr
	}

	return out, nil
}

func (a *ExchangeAdapter) fetchIndexPage(ctx context.Context, page int) ([]exchangeIndexItem, error) {
	url := fmt.Sprintf("%s/api/events?per_page=50&page=%d", strings.TrimRight(a.apiBase, "/"), page)
	body, err := httpGetWithRetry(ctx, a.client, url, 3)
	if err != nil {
		return nil, err
	}
	var out []exchangeIndexItem
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *ExchangeAdapter) fetchEventDetail(ctx context.Context, id int) (exchangeEventDetail, error) {
	url := fmt.Sprintf("%s/api/events/%d", strings.TrimRight(a.apiBase, "/"), id)
	body, err := httpGetWithRetry(ctx, a.client, url, 3)
	if err != nil {
		return exchangeEventDetail{}, err
	}
	var out exchangeEventDetail
	if err := json.Unmarshal(body, &out); err != nil {
		return exchangeEventDetail{}, err
	}
	return out, nil
}
