package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// FleeceAdapter drives a headless browser because the Fleece's listing
// page builds its event grid client-side; there is nothing useful in
// the initial HTML.
type FleeceAdapter struct {
	baseURL string
}

func NewFleeceAdapter(baseURL string) *FleeceAdapter {
	a := &FleeceAdapter{baseURL: strings.TrimSpace(baseURL)}
	if a.baseURL == "" {
		a.baseURL = "https://www.thefleece.co.uk"
	}
	return a
}

func (a *FleeceAdapter) SourceID() string { return "fleece" }

type fleeceCard struct {
	Title  string `json:"title"`
	Date   string `json:"date"`
	Ticket string `json:"ticket"`
	Price  string `json:"price"`
}

func (a *FleeceAdapter) FetchListings(ctx context.Context) ([]RawGig, error) {
	if a == nil {
		return nil, fmt.Errorf("nil adapter")
	}

	url := strings.TrimRight(a.baseURL, "/") + "/gig-guide"

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"),
		)...,
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	reqCtx, reqCancel := context.WithTimeout(browserCtx, 25*time.Second)
	defer reqCancel()

	var cards []fleeceCard
	err := chromedp.Run(reqCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.EvaluateAsDevTools(`Array.from(document.querySelectorAll('.gig-card')).map(c => ({
			title: (c.querySelector('.gig-title') || {}).textContent || '',
			date: (c.querySelector('time') || {}).getAttribute ? (c.querySelector('time').getAttribute('datetime') || c.querySelector('time').textContent) : '',
			ticket: (c.querySelector('a.buy-tickets') || {}).href || '',
			price: (c.querySelector('.gig-price') || {}).textContent || ''
		}))`, &cards),
	)
	if err != nil {
		return nil, err
	}

	out := make([]RawGig, 0, len(cards))
	for _, c := range cards {
		out = append(out, RawGig{
			Title:     strings.TrimSpace(c.Title),
			Venue:     "The Fleece",
			Start:     strings.TrimSpace(c.Date),
			TicketURL: strings.TrimSpace(c.Ticket),
			Price:     strings.TrimSpace(c.Price),
			SourceRef: url,
		})
	}
	return out, nil
}
