package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/keywords"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news/newstest"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/questions"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/config"
)

func words(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

// BenchmarkKeywordRank measures filtering and scoring over full source lists.
func BenchmarkKeywordRank(b *testing.B) {
	popular := make([]news.PopularKeyword, 20)
	for i := range popular {
		popular[i] = news.PopularKeyword{Keyword: fmt.Sprintf("인기%d", i), Rank: i + 1}
	}
	col := &keywords.Collection{
		Documents: 30,
		Related:   words("연관", 30),
		TopN:      append(words("연관", 10), words("토픽", 20)...),
		Popular:   popular,
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		keywords.Rank("삼성전자", col)
	}
}

// BenchmarkGenerate runs the whole pipeline against an in-memory provider
// for growing question budgets.
func BenchmarkGenerate(b *testing.B) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	p := &newstest.Provider{
		DefaultHits: 20,
		Related:     map[string][]string{"삼성전자": words("연관", 30)},
		TopN:        map[string][]string{"삼성전자": words("토픽", 30)},
	}
	for _, max := range []int{5, 10, 20} {
		b.Run(fmt.Sprintf("max_%d", max), func(b *testing.B) {
			engine := questions.NewEngine(p, config.Default().Expansion)
			req := questions.Request{Keyword: "삼성전자", MaxQuestions: max}
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := engine.GenerateRelatedQuestions(context.Background(), req); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
