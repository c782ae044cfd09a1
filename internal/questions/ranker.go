package questions

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/expander"
)

// Question is one ranked, user-facing related question.
type Question struct {
	ID              int                  `json:"id"`
	Question        string               `json:"question"`
	Query           string               `json:"query"`
	Count           int                  `json:"count"`
	Score           float64              `json:"score"`
	Description     string               `json:"description"`
	Type            expander.VariantType `json:"type"`
	Depth           int                  `json:"depth"`
	ReferenceTitles []string             `json:"reference_titles,omitempty"`
}

const placeholder = "{keyword}"

// TemplatePool is drawn from uniformly for variant types without a fixed
// template.
var TemplatePool = []string{
	"What are the recent trends in {keyword}?",
	"Tell me about {keyword}",
	"What's the latest news on {keyword}?",
	"What are the main issues around {keyword}?",
	"What are the key points of {keyword}?",
	"I need an analysis of {keyword}",
	"I'd like to know more about {keyword}",
	"What is the impact of {keyword}?",
	"What matters most about {keyword}?",
	"What do experts say about {keyword}?",
}

var typeTemplates = map[expander.VariantType]string{
	expander.TypeAND: "Tell me about {keyword}",
	expander.TypeOR:  "What are the recent trends in {keyword}?",
	expander.TypeNOT: "What's the latest news on {keyword}?",
}

// Render fills a template with a variant description.
func Render(template, description string) string {
	return strings.ReplaceAll(template, placeholder, description)
}

// Score favours article volume, log-damped, and shallow expansions.
func Score(articleCount, depth int) float64 {
	return 0.7*(math.Log1p(float64(articleCount))/10) + 0.3*(1/float64(depth+1))
}

// Rephraser rewrites a rendered question into more natural wording.
type Rephraser interface {
	Rephrase(ctx context.Context, question, query string) (string, error)
}

// Ranker turns accepted variants into ranked questions. It is not safe for
// concurrent use; build one per run.
type Ranker struct {
	rng    *rand.Rand
	logger *slog.Logger
}

// NewRanker creates a Ranker drawing pool templates from rng.
func NewRanker(rng *rand.Rand) *Ranker {
	return &Ranker{
		rng:    rng,
		logger: slog.Default().With("component", "question-ranker"),
	}
}

func (r *Ranker) template(t expander.VariantType) string {
	if tpl, ok := typeTemplates[t]; ok {
		return tpl
	}
	return TemplatePool[r.rng.Intn(len(TemplatePool))]
}

// Rank renders one question per variant, drops repeated question texts
// (first wins), sorts by score descending with ties in variant order, keeps
// the first max and numbers them from 1.
func (r *Ranker) Rank(variants []expander.Variant, max int) []Question {
	seen := make(map[string]struct{}, len(variants))
	out := make([]Question, 0, len(variants))
	for _, v := range variants {
		text := Render(r.template(v.Type), v.Description)
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, Question{
			Question:        text,
			Query:           v.Query,
			Count:           v.ArticleCount,
			Score:           Score(v.ArticleCount, v.Depth),
			Description:     v.Description,
			Type:            v.Type,
			Depth:           v.Depth,
			ReferenceTitles: v.ReferenceTitles,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if max >= 0 && len(out) > max {
		out = out[:max]
	}
	for i := range out {
		out[i].ID = i + 1
	}
	return out
}

// Rephrase rewrites each question with rp, keeping the template text when
// rp fails or returns a text another question already uses.
func Rephrase(ctx context.Context, rp Rephraser, qs []Question) []Question {
	if rp == nil {
		return qs
	}
	logger := slog.Default().With("component", "question-ranker")
	seen := make(map[string]struct{}, len(qs))
	for _, q := range qs {
		seen[q.Question] = struct{}{}
	}
	for i := range qs {
		text, err := rp.Rephrase(ctx, qs[i].Question, qs[i].Query)
		if err != nil {
			logger.Warn("rephrase failed, keeping template", "query", qs[i].Query, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" || text == qs[i].Question {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		delete(seen, qs[i].Question)
		seen[text] = struct{}{}
		qs[i].Question = text
	}
	return qs
}
