// Package newstest provides an in-memory news.Provider for tests.
package newstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news"
)

// Provider answers from fixed tables and records every call.
type Provider struct {
	// Hits maps a query to the number of documents a search returns. Queries
	// not present use DefaultHits.
	Hits        map[string]int
	DefaultHits int
	Related     map[string][]string
	TopN        map[string][]string
	Popular     []news.PopularKeyword

	SearchErr  error
	RelatedErr error
	TopNErr    map[string]error
	PopularErr error

	mu    sync.Mutex
	calls []Call
}

// Call is one recorded provider invocation.
type Call struct {
	Method string
	Query  string
	Size   int
}

func (p *Provider) record(method, query string, size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Method: method, Query: query, Size: size})
}

// Calls returns a copy of the recorded calls.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CallsTo returns the recorded calls of one method.
func (p *Provider) CallsTo(method string) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (p *Provider) Search(ctx context.Context, query string, _ news.DateRange, size int) (*news.SearchResult, error) {
	p.record("Search", query, size)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.SearchErr != nil {
		return nil, p.SearchErr
	}
	hits, ok := p.Hits[query]
	if !ok {
		hits = p.DefaultHits
	}
	n := hits
	if size > 0 && n > size {
		n = size
	}
	docs := make([]news.Document, n)
	for i := range docs {
		docs[i] = news.Document{ID: fmt.Sprintf("%s-%d", query, i), Title: fmt.Sprintf("%s article %d", query, i+1)}
	}
	return &news.SearchResult{Query: query, TotalHits: hits, Documents: docs}, nil
}

func (p *Provider) RelatedKeywords(ctx context.Context, seed string, _ news.DateRange, max int) ([]string, error) {
	p.record("RelatedKeywords", seed, max)
	if p.RelatedErr != nil {
		return nil, p.RelatedErr
	}
	return limit(p.Related[seed], max), nil
}

func (p *Provider) TopNKeywords(ctx context.Context, query string, _ news.DateRange, n int) ([]string, error) {
	p.record("TopNKeywords", query, n)
	if err := p.TopNErr[query]; err != nil {
		return nil, err
	}
	return limit(p.TopN[query], n), nil
}

func (p *Provider) PopularKeywords(ctx context.Context, days, n int) ([]news.PopularKeyword, error) {
	p.record("PopularKeywords", "", n)
	if p.PopularErr != nil {
		return nil, p.PopularErr
	}
	if n >= 0 && len(p.Popular) > n {
		return p.Popular[:n], nil
	}
	return p.Popular, nil
}

func limit(words []string, n int) []string {
	if n >= 0 && len(words) > n {
		return words[:n]
	}
	return words
}
