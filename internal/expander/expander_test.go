package expander

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news/newstest"
)

func queries(vs []Variant) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Query
	}
	return out
}

func TestVariants(t *testing.T) {
	tests := []struct {
		base, cand string
		want       []string
	}{
		{"삼성전자", "반도체", []string{"삼성전자 반도체", "삼성전자 OR 반도체", "삼성전자 NOT 반도체"}},
		{"Samsung", "samsung electronics", []string{"Samsung samsung electronics", "Samsung OR samsung electronics"}},
		{"Samsung Electronics", "ELECTRONICS", []string{"Samsung Electronics ELECTRONICS", "Samsung Electronics OR ELECTRONICS"}},
	}
	for _, tt := range tests {
		t.Run(tt.base+"/"+tt.cand, func(t *testing.T) {
			assert.Equal(t, tt.want, queries(Variants(tt.base, tt.cand)))
		})
	}
	vs := Variants("A", "B")
	assert.Equal(t, []VariantType{TypeAND, TypeOR, TypeNOT}, []VariantType{vs[0].Type, vs[1].Type, vs[2].Type})
	assert.Equal(t, "A excluding B", vs[2].Description)
}

func TestNotVariantNeverForSubstrings(t *testing.T) {
	pairs := [][2]string{{"HBM", "hbm3"}, {"AI 반도체", "반도체"}, {"x", "X"}}
	for _, p := range pairs {
		for _, v := range Variants(p[0], p[1]) {
			assert.NotEqual(t, TypeNOT, v.Type, "%s / %s", p[0], p[1])
		}
	}
}

func TestExpandDepthFirstOrder(t *testing.T) {
	p := &newstest.Provider{
		DefaultHits: 10,
		TopN:        map[string][]string{"A B": {"C", "D", "E"}},
	}
	e := New(p, Config{MaxQuestions: 100, MaxDepth: 2, MinArticles: 3})
	got, err := e.Expand(context.Background(), "A", []string{"B"}, news.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"A B",
		"A B C", "A B OR C", "A B NOT C",
		"A B D", "A B OR D", "A B NOT D",
		"A OR B", "A NOT B",
	}, queries(got))

	assert.Equal(t, 0, got[0].Depth)
	assert.Equal(t, 1, got[1].Depth)
	assert.Equal(t, 3, got[0].ArticleCount)
	assert.Equal(t, []string{"A B article 1", "A B article 2", "A B article 3"}, got[0].ReferenceTitles)

	for _, c := range p.CallsTo("TopNKeywords") {
		assert.Equal(t, SubKeywordLimit, c.Size)
	}
	for _, c := range p.CallsTo("Search") {
		assert.Equal(t, 3, c.Size)
	}
}

func TestExpandRespectsBudgetAndDepth(t *testing.T) {
	p := &newstest.Provider{
		DefaultHits: 5,
		TopN: map[string][]string{
			"S K1": {"X", "Y"}, "S OR K1": {"X", "Y"}, "S NOT K1": {"X", "Y"},
			"S K1 X": {"deeper"},
		},
	}
	for _, maxQ := range []int{1, 3, 5, 8} {
		e := New(p, Config{MaxQuestions: maxQ, MaxDepth: 2, MinArticles: 3})
		got, err := e.Expand(context.Background(), "S", []string{"K1", "K2", "K3"}, news.DateRange{})
		require.NoError(t, err)
		assert.Len(t, got, maxQ)
		seen := map[string]bool{}
		for _, v := range got {
			assert.Less(t, v.Depth, 2)
			assert.False(t, seen[v.Query], "duplicate query %q", v.Query)
			seen[v.Query] = true
		}
	}
	for _, c := range p.CallsTo("TopNKeywords") {
		assert.NotEqual(t, "S K1 X", c.Query, "lookup at max depth")
	}
}

func TestExpandDepthOneNeverRecurses(t *testing.T) {
	p := &newstest.Provider{DefaultHits: 5, TopN: map[string][]string{"S K": {"X"}}}
	got, err := New(p, Config{MaxQuestions: 10, MaxDepth: 1, MinArticles: 3}).
		Expand(context.Background(), "S", []string{"K"}, news.DateRange{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Empty(t, p.CallsTo("TopNKeywords"))
}

func TestExpandRejectsThinQueries(t *testing.T) {
	p := &newstest.Provider{
		DefaultHits: 5,
		Hits:        map[string]int{"S OR K": 2, "S NOT K": 0},
	}
	got, err := New(p, Config{MaxQuestions: 10, MaxDepth: 1, MinArticles: 3}).
		Expand(context.Background(), "S", []string{"K"}, news.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []string{"S K"}, queries(got))
}

func TestExpandSkipsAcceptedQueries(t *testing.T) {
	p := &newstest.Provider{DefaultHits: 5}
	got, err := New(p, Config{MaxQuestions: 10, MaxDepth: 1, MinArticles: 3}).
		Expand(context.Background(), "S", []string{"K", "K"}, news.DateRange{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Len(t, p.CallsTo("Search"), 3)
}

func TestExpandSwallowsSubKeywordErrors(t *testing.T) {
	errTopN := errors.New("topn down")
	p := &newstest.Provider{
		DefaultHits: 5,
		TopNErr:     map[string]error{"S K": errTopN},
	}
	var failed []string
	e := New(p, Config{MaxQuestions: 10, MaxDepth: 2, MinArticles: 3},
		WithSubKeywordFailureHook(func(q string, err error) {
			assert.ErrorIs(t, err, errTopN)
			failed = append(failed, q)
		}))
	got, err := e.Expand(context.Background(), "S", []string{"K"}, news.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []string{"S K", "S OR K", "S NOT K"}, queries(got))
	assert.Equal(t, []string{"S K"}, failed)
}

func TestExpandPropagatesSearchErrors(t *testing.T) {
	errSearch := errors.New("search down")
	p := &newstest.Provider{SearchErr: errSearch}
	_, err := New(p, Config{MaxQuestions: 10, MaxDepth: 2, MinArticles: 3}).
		Expand(context.Background(), "S", []string{"K"}, news.DateRange{})
	assert.ErrorIs(t, err, errSearch)
}

func TestExpandHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &newstest.Provider{DefaultHits: 5}
	_, err := New(p, Config{MaxQuestions: 10, MaxDepth: 2, MinArticles: 3}).
		Expand(ctx, "S", []string{"K"}, news.DateRange{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, p.Calls())
}
