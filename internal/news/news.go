// Package news holds the provider-neutral types the question pipeline
// consumes: a date window, search results, and the Provider contract that a
// concrete news search backend implements.
package news

import (
	"context"
	"fmt"
	"time"
)

// DateLayout is the wire and display format of a calendar day.
const DateLayout = "2006-01-02"

// DateRange is an inclusive window of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// LastDays returns the window ending on the day of now and starting days
// earlier.
func LastDays(now time.Time, days int) DateRange {
	to := truncateDay(now)
	return DateRange{From: to.AddDate(0, 0, -days), To: to}
}

// ParseDateRange parses two YYYY-MM-DD strings. Empty values fall back to
// the last 30 days ending today.
func ParseDateRange(from, to string, now time.Time) (DateRange, error) {
	r := LastDays(now, 30)
	if from != "" {
		t, err := time.Parse(DateLayout, from)
		if err != nil {
			return DateRange{}, fmt.Errorf("date_from %q: %w", from, err)
		}
		r.From = t
	}
	if to != "" {
		t, err := time.Parse(DateLayout, to)
		if err != nil {
			return DateRange{}, fmt.Errorf("date_to %q: %w", to, err)
		}
		r.To = t
	}
	if r.To.Before(r.From) {
		return DateRange{}, fmt.Errorf("date_to %s is before date_from %s", r.To.Format(DateLayout), r.From.Format(DateLayout))
	}
	return r, nil
}

// FromString formats the start day.
func (r DateRange) FromString() string { return r.From.Format(DateLayout) }

// ToString formats the end day.
func (r DateRange) ToString() string { return r.To.Format(DateLayout) }

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool { return r.From.IsZero() && r.To.IsZero() }

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Document is a single news article returned by a search.
type Document struct {
	ID           string   `json:"news_id"`
	Title        string   `json:"title"`
	Content      string   `json:"content,omitempty"`
	PublishedAt  string   `json:"published_at,omitempty"`
	Category     []string `json:"category,omitempty"`
	ProviderName string   `json:"provider_name,omitempty"`
	ProviderLink string   `json:"provider_link_page,omitempty"`
	Byline       string   `json:"byline,omitempty"`
}

// SearchResult is the outcome of one news search.
type SearchResult struct {
	Query     string     `json:"query"`
	TotalHits int        `json:"total_hits"`
	Documents []Document `json:"documents"`
}

// DocumentCount is the number of documents actually returned, which is what
// the pipeline thresholds on.
func (r *SearchResult) DocumentCount() int {
	if r == nil {
		return 0
	}
	return len(r.Documents)
}

// Titles returns up to n document titles in result order.
func (r *SearchResult) Titles(n int) []string {
	if r == nil {
		return nil
	}
	titles := make([]string, 0, n)
	for _, d := range r.Documents {
		if len(titles) == n {
			break
		}
		titles = append(titles, d.Title)
	}
	return titles
}

// PopularKeyword is one entry of the global popular-query ranking.
type PopularKeyword struct {
	Keyword string `json:"keyword"`
	Rank    int    `json:"rank"`
	Count   int    `json:"count,omitempty"`
}

// Provider is a news search backend.
type Provider interface {
	Search(ctx context.Context, query string, r DateRange, size int) (*SearchResult, error)
	RelatedKeywords(ctx context.Context, seed string, r DateRange, max int) ([]string, error)
	TopNKeywords(ctx context.Context, query string, r DateRange, limit int) ([]string, error)
	PopularKeywords(ctx context.Context, days, limit int) ([]PopularKeyword, error)
}
