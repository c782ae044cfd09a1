// Package keywords gathers candidate expansion keywords for a seed term from
// the news provider, then filters, weights and ranks them.
package keywords

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news"
)

// Limits caps how much each source is asked for.
type Limits struct {
	SearchSize  int
	Related     int
	TopN        int
	PopularDays int
	Popular     int
}

// DefaultLimits returns the per-source limits the pipeline uses.
func DefaultLimits() Limits {
	return Limits{
		SearchSize:  30,
		Related:     30,
		TopN:        30,
		PopularDays: 7,
		Popular:     20,
	}
}

// Collection is the raw output of the three keyword sources. Empty is set
// when the seed's initial search found no documents; no lookups are made in
// that case.
type Collection struct {
	Empty     bool
	Documents int
	Related   []string
	TopN      []string
	Popular   []news.PopularKeyword
}

// Collector fetches keyword candidates from a news.Provider.
type Collector struct {
	provider news.Provider
	logger   *slog.Logger
}

// NewCollector creates a Collector backed by provider.
func NewCollector(provider news.Provider) *Collector {
	return &Collector{
		provider: provider,
		logger:   slog.Default().With("component", "keyword-collector"),
	}
}

// Collect runs the initial search for seed and, when it finds documents,
// fetches related, top-N and popular keywords concurrently. Any lookup
// failure aborts the collection.
func (c *Collector) Collect(ctx context.Context, seed string, r news.DateRange, lim Limits) (*Collection, error) {
	initial, err := c.provider.Search(ctx, seed, r, lim.SearchSize)
	if err != nil {
		return nil, fmt.Errorf("initial search for %q: %w", seed, err)
	}
	col := &Collection{Documents: initial.DocumentCount()}
	if col.Documents == 0 {
		c.logger.Warn("seed has no documents", "seed", seed, "from", r.FromString(), "to", r.ToString())
		col.Empty = true
		return col, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		words, err := c.provider.RelatedKeywords(gctx, seed, r, lim.Related)
		if err != nil {
			return fmt.Errorf("related keywords for %q: %w", seed, err)
		}
		col.Related = words
		return nil
	})
	g.Go(func() error {
		words, err := c.provider.TopNKeywords(gctx, seed, r, lim.TopN)
		if err != nil {
			return fmt.Errorf("top-n keywords for %q: %w", seed, err)
		}
		col.TopN = words
		return nil
	})
	g.Go(func() error {
		popular, err := c.provider.PopularKeywords(gctx, lim.PopularDays, lim.Popular)
		if err != nil {
			return fmt.Errorf("popular keywords: %w", err)
		}
		col.Popular = popular
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("keywords collected",
		"seed", seed,
		"documents", col.Documents,
		"related", len(col.Related),
		"topn", len(col.TopN),
		"popular", len(col.Popular),
	)
	return col, nil
}

// Candidates annotates the collection's keywords in source order.
func (col *Collection) Candidates(seed string) []Candidate {
	popular := make([]string, len(col.Popular))
	for i, p := range col.Popular {
		popular[i] = p.Keyword
	}
	return Annotate(seed, col.Related, col.TopN, popular)
}
