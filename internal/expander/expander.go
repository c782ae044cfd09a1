// Package expander grows boolean query variants around a seed, keeping only
// those the news provider backs with enough articles and recursing into the
// top terms of each accepted variant.
package expander

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news"
)

const (
	// MaxReferenceTitles is how many article titles an accepted variant keeps.
	MaxReferenceTitles = 3
	// SubKeywordLimit is the top-N size requested for a variant's own query.
	SubKeywordLimit = 5
	// SubKeywordTake is how many of those sub-keywords are expanded.
	SubKeywordTake = 2
	// BroadQueryThreshold stops recursion under variants this broad.
	BroadQueryThreshold = 50
)

// Config bounds one expansion run.
type Config struct {
	MaxQuestions int
	MaxDepth     int
	MinArticles  int
}

// Expander runs bounded recursive expansion against a news.Provider.
type Expander struct {
	provider  news.Provider
	cfg       Config
	onSubFail func(query string, err error)
	logger    *slog.Logger
}

// Option customises an Expander.
type Option func(*Expander)

// WithSubKeywordFailureHook is called whenever a sub-keyword lookup fails.
// The failure is otherwise swallowed.
func WithSubKeywordFailureHook(fn func(query string, err error)) Option {
	return func(e *Expander) { e.onSubFail = fn }
}

// New creates an Expander.
func New(provider news.Provider, cfg Config, opts ...Option) *Expander {
	e := &Expander{
		provider: provider,
		cfg:      cfg,
		logger:   slog.Default().With("component", "query-expander"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type run struct {
	r        news.DateRange
	results  []Variant
	accepted map[string]struct{}
	max      int
}

func (st *run) full() bool { return len(st.results) >= st.max }

func (st *run) has(query string) bool {
	_, ok := st.accepted[query]
	return ok
}

func (st *run) add(v Variant) {
	st.accepted[v.Query] = struct{}{}
	st.results = append(st.results, v)
}

// Expand explores variants of seed with each representative. Results hold at
// most MaxQuestions variants with unique queries, in acceptance order. A
// failed variant search aborts the run.
func (e *Expander) Expand(ctx context.Context, seed string, representatives []string, r news.DateRange) ([]Variant, error) {
	st := &run{
		r:        r,
		results:  make([]Variant, 0, e.cfg.MaxQuestions),
		accepted: make(map[string]struct{}),
		max:      e.cfg.MaxQuestions,
	}
	if err := e.explore(ctx, st, seed, representatives, 0); err != nil {
		return nil, err
	}
	e.logger.Debug("expansion finished", "seed", seed, "accepted", len(st.results))
	return st.results, nil
}

func (e *Expander) explore(ctx context.Context, st *run, base string, candidates []string, depth int) error {
	if depth >= e.cfg.MaxDepth || st.full() {
		return nil
	}
	for _, cand := range candidates {
		if st.full() {
			return nil
		}
		for _, v := range Variants(base, cand) {
			if st.full() {
				return nil
			}
			if st.has(v.Query) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.provider.Search(ctx, v.Query, st.r, e.cfg.MinArticles)
			if err != nil {
				return fmt.Errorf("searching variant %q: %w", v.Query, err)
			}
			count := res.DocumentCount()
			if count < e.cfg.MinArticles {
				continue
			}
			v.ArticleCount = count
			v.Depth = depth
			v.ReferenceTitles = res.Titles(MaxReferenceTitles)
			st.add(v)

			if depth < e.cfg.MaxDepth-1 && !st.full() && count < BroadQueryThreshold {
				subs := e.subKeywords(ctx, v.Query, st.r)
				if len(subs) > 0 {
					if err := e.explore(ctx, st, v.Query, subs, depth+1); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func (e *Expander) subKeywords(ctx context.Context, query string, r news.DateRange) []string {
	words, err := e.provider.TopNKeywords(ctx, query, r, SubKeywordLimit)
	if err != nil {
		e.logger.Debug("sub-keyword lookup failed", "query", query, "error", err)
		if e.onSubFail != nil {
			e.onSubFail(query, err)
		}
		return nil
	}
	if len(words) > SubKeywordTake {
		words = words[:SubKeywordTake]
	}
	return words
}
