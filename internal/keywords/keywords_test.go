package keywords

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news/newstest"
)

func texts(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Text
	}
	return out
}

func TestAnnotateWeights(t *testing.T) {
	cs := Annotate("삼성", []string{"삼성전자", "반도체"}, []string{"실적"}, []string{"AI", "환율"})
	require.Len(t, cs, 5)

	tests := []struct {
		idx          int
		source       Source
		rank         int
		weight       float64
		containsSeed bool
	}{
		{0, SourceRelated, 1, 1.5, true},
		{1, SourceRelated, 2, 0.75, false},
		{2, SourceTopN, 1, 1.2, false},
		{3, SourcePopular, 1, 1.0, false},
		{4, SourcePopular, 2, 0.5, false},
	}
	for _, tt := range tests {
		c := cs[tt.idx]
		assert.Equal(t, tt.source, c.Source, c.Text)
		assert.Equal(t, tt.rank, c.Rank, c.Text)
		assert.InDelta(t, tt.weight, c.Weight, 1e-9, c.Text)
		assert.Equal(t, tt.containsSeed, c.ContainsSeed, c.Text)
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name  string
		seed  string
		words []string
		want  []string
	}{
		{"too short", "seed", []string{"a", "가", "ab"}, []string{"ab"}},
		{"digits only", "seed", []string{"2024", "2024년", "٣٤"}, []string{"2024년"}},
		{"symbols only", "seed", []string{"!!", "#$%", "C++", "-_-"}, []string{"C++", "-_-"}},
		{"seed equality ignores case", "samsung", []string{"Samsung", "SAMSUNG", "Samsung SDI"}, []string{"Samsung SDI"}},
		{"first duplicate wins", "seed", []string{"HBM", "hbm", "Hbm"}, []string{"HBM"}},
		{"hangul kept", "삼성전자", []string{"반도체", "삼성전자"}, []string{"반도체"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(tt.seed, Annotate(tt.seed, tt.words, nil, nil))
			assert.Equal(t, tt.want, texts(got))
		})
	}
}

func TestFilterDuplicateAcrossSources(t *testing.T) {
	got := Filter("seed", Annotate("seed", []string{"HBM"}, []string{"hbm", "실적"}, nil))
	require.Len(t, got, 2)
	assert.Equal(t, SourceRelated, got[0].Source)
	assert.Equal(t, "실적", got[1].Text)
}

func TestFilterIsIdempotent(t *testing.T) {
	inputs := [][]string{
		{"반도체", "HBM", "hbm", "1", "!!", "삼성전자", "2024", "파운드리", "AI"},
		{"", "a", "ab", "AB", "aB", "123", "$$", "ok"},
	}
	for _, words := range inputs {
		once := Filter("삼성전자", Annotate("삼성전자", words, words, words))
		twice := Filter("삼성전자", once)
		assert.Equal(t, once, twice)
	}
}

func TestScoreAggregatesAndSorts(t *testing.T) {
	cs := []Candidate{
		{Text: "b", Weight: 0.5},
		{Text: "a", Weight: 1.0, ContainsSeed: true},
		{Text: "b", Weight: 0.4},
		{Text: "c", Weight: 0.9},
		{Text: "d", Weight: 0.9},
	}
	got := Score(cs)
	require.Len(t, got, 4)
	assert.Equal(t, "a", got[0].Text)
	assert.InDelta(t, 1.3, got[0].Score, 1e-9)
	assert.Equal(t, "b", got[1].Text)
	assert.InDelta(t, 0.9, got[2].Score, 1e-9)
	assert.Equal(t, []string{"a", "b", "c", "d"}, Texts(got))
}

func TestTop(t *testing.T) {
	s := []Scored{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	assert.Len(t, Top(s, 2), 2)
	assert.Len(t, Top(s, 5), 3)
	assert.Len(t, Top(s, -1), 3)
}

func TestRankTruncatesToMaxScored(t *testing.T) {
	words := make([]string, 0, 80)
	for i := 0; i < 80; i++ {
		words = append(words, string(rune('가'+i))+"나")
	}
	got := Rank("seed", &Collection{Related: words[:40], TopN: words[40:]})
	assert.Len(t, got, MaxScored)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func samsungProvider() *newstest.Provider {
	return &newstest.Provider{
		Hits:    map[string]int{"삼성전자": 30},
		Related: map[string][]string{"삼성전자": {"반도체", "HBM", "파운드리"}},
		TopN:    map[string][]string{"삼성전자": {"실적", "수출"}},
		Popular: []news.PopularKeyword{{Keyword: "AI", Rank: 1}},
	}
}

func TestCollectorSamsung(t *testing.T) {
	p := samsungProvider()
	col, err := NewCollector(p).Collect(context.Background(), "삼성전자", news.DateRange{}, DefaultLimits())
	require.NoError(t, err)
	assert.False(t, col.Empty)
	assert.Equal(t, 30, col.Documents)

	ranked := Rank("삼성전자", col)
	assert.Equal(t, []string{"반도체", "실적", "AI", "HBM", "수출", "파운드리"}, Texts(ranked))
	assert.InDelta(t, 1.5, ranked[0].Score, 1e-9)
	assert.True(t, math.Abs(ranked[2].Score-1.0) < 1e-9)

	require.Len(t, p.CallsTo("Search"), 1)
	assert.Equal(t, 30, p.CallsTo("Search")[0].Size)
	assert.Equal(t, 30, p.CallsTo("RelatedKeywords")[0].Size)
	assert.Equal(t, 30, p.CallsTo("TopNKeywords")[0].Size)
	assert.Equal(t, 20, p.CallsTo("PopularKeywords")[0].Size)
}

func TestCollectorEmptySeedShortCircuits(t *testing.T) {
	p := &newstest.Provider{}
	col, err := NewCollector(p).Collect(context.Background(), "없는키워드", news.DateRange{}, DefaultLimits())
	require.NoError(t, err)
	assert.True(t, col.Empty)
	assert.Len(t, p.Calls(), 1)
}

func TestCollectorPropagatesLookupErrors(t *testing.T) {
	errDown := errors.New("down")
	p := samsungProvider()
	p.PopularErr = errDown
	_, err := NewCollector(p).Collect(context.Background(), "삼성전자", news.DateRange{}, DefaultLimits())
	assert.ErrorIs(t, err, errDown)

	p = samsungProvider()
	p.SearchErr = errDown
	_, err = NewCollector(p).Collect(context.Background(), "삼성전자", news.DateRange{}, DefaultLimits())
	assert.ErrorIs(t, err, errDown)
	assert.Len(t, p.Calls(), 1)
}
