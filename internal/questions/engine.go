// Package questions runs the related-question pipeline end to end: keyword
// collection, scoring, clustering, query expansion and question ranking. It
// also provides the result cache and the HTTP handler in front of it.
package questions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/cluster"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/expander"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/keywords"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/config"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/related-questions/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/tracing"
)

const (
	outcomeOK          = "ok"
	outcomeNoDocuments = "no_documents"
	outcomeNoKeywords  = "no_keywords"
	outcomeNoQuestions = "no_questions"
	outcomeError       = "error"
)

// Request is one pipeline invocation. Zero values take the engine defaults.
type Request struct {
	Keyword             string    `json:"keyword"`
	DateFrom            time.Time `json:"date_from"`
	DateTo              time.Time `json:"date_to"`
	MaxQuestions        int       `json:"max_questions"`
	ClusterCount        int       `json:"cluster_count"`
	MaxRecursionDepth   int       `json:"max_recursion_depth"`
	MinArticlesPerQuery int       `json:"min_articles_per_query"`
}

// Range returns the request's date window.
func (r Request) Range() news.DateRange {
	return news.DateRange{From: r.DateFrom, To: r.DateTo}
}

// Engine holds the pipeline's collaborators. It keeps no per-run state and
// is safe for concurrent use.
type Engine struct {
	provider  news.Provider
	cfg       config.ExpansionConfig
	limits    keywords.Limits
	metrics   *metrics.Metrics
	rephraser Rephraser
	newRand   func() *rand.Rand
	now       func() time.Time
	logger    *slog.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithMetrics records pipeline metrics into m.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithRephraser rewrites ranked questions with rp.
func WithRephraser(rp Rephraser) EngineOption {
	return func(e *Engine) { e.rephraser = rp }
}

// WithRandSource sets the entropy source used for pool templates.
func WithRandSource(fn func() *rand.Rand) EngineOption {
	return func(e *Engine) { e.newRand = fn }
}

// WithClock replaces time.Now for date defaults.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine whose defaults and source limits come from cfg.
func NewEngine(provider news.Provider, cfg config.ExpansionConfig, opts ...EngineOption) *Engine {
	seed := cfg.RandomSeed
	e := &Engine{
		provider: provider,
		cfg:      cfg,
		limits:   limitsFrom(cfg),
		newRand:  func() *rand.Rand { return rand.New(rand.NewSource(seed)) },
		now:      time.Now,
		logger:   slog.Default().With("component", "question-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func limitsFrom(cfg config.ExpansionConfig) keywords.Limits {
	lim := keywords.DefaultLimits()
	if cfg.RelatedLimit > 0 {
		lim.Related = cfg.RelatedLimit
	}
	if cfg.TopNLimit > 0 {
		lim.TopN = cfg.TopNLimit
	}
	if cfg.PopularDays > 0 {
		lim.PopularDays = cfg.PopularDays
	}
	if cfg.PopularLimit > 0 {
		lim.Popular = cfg.PopularLimit
	}
	return lim
}

// Normalize trims the keyword, fills defaults and rejects invalid values.
func (e *Engine) Normalize(req Request) (Request, error) {
	req.Keyword = strings.TrimSpace(req.Keyword)
	if req.Keyword == "" {
		return req, pkgerrors.New(pkgerrors.ErrInvalidInput, http.StatusBadRequest, "keyword is required")
	}
	if req.MaxQuestions == 0 {
		req.MaxQuestions = e.cfg.MaxQuestions
	}
	if req.ClusterCount == 0 {
		req.ClusterCount = e.cfg.ClusterCount
	}
	if req.MaxRecursionDepth == 0 {
		req.MaxRecursionDepth = e.cfg.MaxRecursionDepth
	}
	if req.MinArticlesPerQuery == 0 {
		req.MinArticlesPerQuery = e.cfg.MinArticlesPerQuery
	}
	def := news.LastDays(e.now(), 30)
	if req.DateFrom.IsZero() {
		req.DateFrom = def.From
	}
	if req.DateTo.IsZero() {
		req.DateTo = def.To
	}

	switch {
	case req.MaxQuestions < 0 || (e.cfg.MaxQuestionsLimit > 0 && req.MaxQuestions > e.cfg.MaxQuestionsLimit):
		return req, pkgerrors.Newf(pkgerrors.ErrInvalidInput, http.StatusBadRequest, "max_questions must be between 1 and %d", e.cfg.MaxQuestionsLimit)
	case req.ClusterCount < 0:
		return req, pkgerrors.New(pkgerrors.ErrInvalidInput, http.StatusBadRequest, "cluster_count must be positive")
	case req.MaxRecursionDepth < 0:
		return req, pkgerrors.New(pkgerrors.ErrInvalidInput, http.StatusBadRequest, "max_recursion_depth must be positive")
	case req.MinArticlesPerQuery < 0:
		return req, pkgerrors.New(pkgerrors.ErrInvalidInput, http.StatusBadRequest, "min_articles_per_query must be positive")
	case req.DateTo.Before(req.DateFrom):
		return req, pkgerrors.New(pkgerrors.ErrInvalidInput, http.StatusBadRequest, "date_to is before date_from")
	}
	return req, nil
}

// GenerateRelatedQuestions runs the whole pipeline for one seed keyword. A
// seed without documents, or without usable keywords, yields an empty list
// and no error. Provider failures outside sub-keyword lookups abort the run.
func (e *Engine) GenerateRelatedQuestions(ctx context.Context, req Request) ([]Question, error) {
	req, err := e.Normalize(req)
	if err != nil {
		return nil, err
	}
	if e.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Deadline)
		defer cancel()
	}
	log := logger.FromContext(ctx).With("component", "question-engine", "keyword", req.Keyword)
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "related_questions", logger.RequestID(ctx))

	qs, outcome, err := e.run(ctx, log, req)
	e.observeRun(outcome, len(qs))
	span.SetAttr("outcome", outcome)
	span.End()
	log.Debug("pipeline trace", "trace", span)
	if err != nil {
		log.Error("pipeline failed", "error", err, "elapsed", time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.Newf(pkgerrors.ErrTimeout, http.StatusGatewayTimeout, "generating questions for %q: %v", req.Keyword, err)
		}
		return nil, err
	}
	log.Info("pipeline finished", "outcome", outcome, "questions", len(qs), "elapsed", time.Since(start))
	return qs, nil
}

func (e *Engine) run(ctx context.Context, log *slog.Logger, req Request) ([]Question, string, error) {
	r := req.Range()
	log.Info("pipeline started",
		"from", r.FromString(),
		"to", r.ToString(),
		"max_questions", req.MaxQuestions,
		"cluster_count", req.ClusterCount,
		"max_depth", req.MaxRecursionDepth,
		"min_articles", req.MinArticlesPerQuery,
	)

	stage := e.stageTimer(ctx, "collect")
	col, err := keywords.NewCollector(e.provider).Collect(ctx, req.Keyword, r, e.limits)
	stage()
	if err != nil {
		return nil, outcomeError, err
	}
	if col.Empty {
		return []Question{}, outcomeNoDocuments, nil
	}

	stage = e.stageTimer(ctx, "score")
	scored := keywords.Rank(req.Keyword, col)
	stage()
	if len(scored) == 0 {
		log.Warn("no keywords survived filtering")
		return []Question{}, outcomeNoKeywords, nil
	}

	stage = e.stageTimer(ctx, "cluster")
	reps, fallback := cluster.Representatives(keywords.Texts(scored), cluster.Options{
		Clusters:     req.ClusterCount,
		MaxQuestions: req.MaxQuestions,
		Seed:         cluster.DefaultSeed,
	})
	stage()
	if fallback && e.metrics != nil {
		e.metrics.ClusterFallbacksTotal.Inc()
	}
	log.Debug("representatives selected", "scored", len(scored), "representatives", reps, "fallback", fallback)

	stage = e.stageTimer(ctx, "expand")
	exp := expander.New(e.provider, expander.Config{
		MaxQuestions: req.MaxQuestions,
		MaxDepth:     req.MaxRecursionDepth,
		MinArticles:  req.MinArticlesPerQuery,
	}, expander.WithSubKeywordFailureHook(func(string, error) {
		if e.metrics != nil {
			e.metrics.SubKeywordFailuresTotal.Inc()
		}
	}))
	variants, err := exp.Expand(ctx, req.Keyword, reps, r)
	stage()
	if err != nil {
		return nil, outcomeError, fmt.Errorf("expanding %q: %w", req.Keyword, err)
	}

	stage = e.stageTimer(ctx, "rank")
	qs := NewRanker(e.newRand()).Rank(variants, req.MaxQuestions)
	qs = Rephrase(ctx, e.rephraser, qs)
	stage()
	if len(qs) == 0 {
		return qs, outcomeNoQuestions, nil
	}
	return qs, outcomeOK, nil
}

func (e *Engine) stageTimer(ctx context.Context, name string) func() {
	start := time.Now()
	_, span := tracing.StartChild(ctx, name)
	return func() {
		span.End()
		if e.metrics != nil {
			e.metrics.PipelineStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
	}
}

func (e *Engine) observeRun(outcome string, questions int) {
	if e.metrics == nil {
		return
	}
	e.metrics.PipelineRunsTotal.WithLabelValues(outcome).Inc()
	if outcome != outcomeError {
		e.metrics.QuestionsPerRun.Observe(float64(questions))
	}
}
