package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// CroftAdapter scrapes the server-rendered listings page of The Croft.
// Every gig lives in an .event-card element on a single /whats-on page.
type CroftAdapter struct {
	baseURL     string
	allowedHost string
}

func NewCroftAdapter(baseURL string) *CroftAdapter {
	a := &CroftAdapter{baseURL: strings.TrimSpace(baseURL)}
	if a.baseURL == "" {
		a.baseURL = "https://www.thecroftbristol.com"
	}
	a.allowedHost = hostFromBaseURL(a.baseURL)
	return a
}

func (a *CroftAdapter) SourceID() string { return "croft" }

func (a *CroftAdapter) FetchListings(ctx context.Context) ([]RawGig, error) {
	if a == nil {
		return nil, fmt.Errorf("nil adapter")
	}

	listURL := strings.TrimRight(a.baseURL, "/") + "/whats-on"

	c := colly.NewCollector(
		colly.AllowedDomains(a.allowedHost),
	)
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 2, Delay: 400 * time.Millisecond, RandomDelay: 600 * time.Millisecond})

	out := make([]RawGig, 0)

	c.OnHTML(".event-card", func(e *colly.HTMLElement) {
		raw := RawGig{
			Title:       strings.TrimSpace(e.ChildText(".event-title")),
			Venue:       pickNonEmpty(e.ChildText(".event-venue"), "The Croft"),
			Start:       pickNonEmpty(e.ChildAttr("time", "datetime"), e.ChildText(".event-date")),
			Description: strings.TrimSpace(e.ChildText(".event-description")),
			Price:       strings.TrimSpace(e.ChildText(".event-price")),
			SourceRef:   e.Request.URL.String(),
		}
		if href := strings.TrimSpace(e.ChildAttr("a.tickets", "href")); href != "" {
			raw.TicketURL = e.Request.AbsoluteURL(href)
		}
		// Residencies list extra occurrence dates under the card.
		e.ForEach(".event-dates time", func(_ int, d *colly.HTMLElement) {
			v := pickNonEmpty(d.Attr("datetime"), d.Text)
			if v != "" {
				raw.Dates = append(raw.Dates, v)
			}
		})
		out = append(out, raw)
	})

	var reqErr error
	c.OnError(func(_ *colly.Response, err error) {
		reqErr = err
	})

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := c.Visit(listURL); err != nil {
		return nil, err
	}
	c.Wait()
	if reqErr != nil {
		return nil, reqErr
	}

	return out, nil
}
