package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/related-questions/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/middleware"
)

// Generator is the pipeline the handler serves; *Engine satisfies it.
type Generator interface {
	Normalize(req Request) (Request, error)
	GenerateRelatedQuestions(ctx context.Context, req Request) ([]Question, error)
}

// Recorder persists served results.
type Recorder interface {
	Record(ctx context.Context, req Request, qs []Question) (int64, error)
}

// Tracker receives one analytics event per request.
type Tracker interface {
	Track(event analytics.QuestionEvent)
}

// TrackerFunc adapts a function to Tracker.
type TrackerFunc func(event analytics.QuestionEvent)

func (f TrackerFunc) Track(event analytics.QuestionEvent) { f(event) }

// HandlerOption customises a Handler.
type HandlerOption func(*Handler)

// WithCache serves repeated requests from c.
func WithCache(c *Cache) HandlerOption {
	return func(h *Handler) { h.cache = c }
}

// WithRecorder stores every freshly generated result.
func WithRecorder(rec Recorder) HandlerOption {
	return func(h *Handler) { h.recorder = rec }
}

// WithTracker reports every request to t.
func WithTracker(t Tracker) HandlerOption {
	return func(h *Handler) { h.tracker = t }
}

type Handler struct {
	generator Generator
	cache     *Cache
	recorder  Recorder
	tracker   Tracker
	now       func() time.Time
	logger    *slog.Logger
}

func NewHandler(gen Generator, opts ...HandlerOption) *Handler {
	h := &Handler{
		generator: gen,
		now:       time.Now,
		logger:    slog.Default().With("component", "questions-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type period struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type response struct {
	Success    bool       `json:"success"`
	Keyword    string     `json:"keyword"`
	Period     period     `json:"period"`
	TotalCount int        `json:"total_count"`
	Questions  []Question `json:"questions"`
	CacheHit   bool       `json:"cache_hit"`
}

// Generate handles GET /api/v1/related-questions.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, err := h.parseRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	req, err = h.generator.Normalize(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var (
		qs       []Question
		cacheHit bool
	)
	if h.cache != nil {
		qs, cacheHit, err = h.cache.GetOrCompute(ctx, req, func(ctx context.Context) ([]Question, error) {
			return h.generator.GenerateRelatedQuestions(ctx, req)
		})
	} else {
		qs, err = h.generator.GenerateRelatedQuestions(ctx, req)
	}
	latencyMs := time.Since(start).Milliseconds()
	h.track(ctx, req, len(qs), cacheHit, latencyMs, err)

	if err != nil {
		log.Error("question generation failed", "keyword", req.Keyword, "error", err)
		h.writeError(w, err)
		return
	}
	if qs == nil {
		qs = []Question{}
	}
	if !cacheHit && h.recorder != nil {
		if _, err := h.recorder.Record(ctx, req, qs); err != nil {
			log.Warn("failed to record question run", "keyword", req.Keyword, "error", err)
		}
	}

	log.Info("related questions served",
		"keyword", req.Keyword,
		"questions", len(qs),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	rng := req.Range()
	h.writeJSON(w, http.StatusOK, response{
		Success:    true,
		Keyword:    req.Keyword,
		Period:     period{From: rng.FromString(), To: rng.ToString()},
		TotalCount: len(qs),
		Questions:  qs,
		CacheHit:   cacheHit,
	})
}

func (h *Handler) parseRequest(r *http.Request) (Request, error) {
	q := r.URL.Query()
	req := Request{Keyword: q.Get("keyword")}
	if req.Keyword == "" {
		return req, pkgerrors.New(pkgerrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'keyword' is required")
	}
	rng, err := news.ParseDateRange(q.Get("date_from"), q.Get("date_to"), h.now())
	if err != nil {
		return req, pkgerrors.New(pkgerrors.ErrInvalidInput, http.StatusBadRequest, err.Error())
	}
	req.DateFrom, req.DateTo = rng.From, rng.To
	if v := q.Get("max_questions"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, pkgerrors.New(pkgerrors.ErrInvalidInput, http.StatusBadRequest, "max_questions must be a positive integer")
		}
		req.MaxQuestions = n
	}
	return req, nil
}

func (h *Handler) track(ctx context.Context, req Request, n int, cacheHit bool, latencyMs int64, err error) {
	if h.tracker == nil {
		return
	}
	rng := req.Range()
	event := analytics.QuestionEvent{
		Type:      analytics.Classify(n, cacheHit, err),
		Keyword:   req.Keyword,
		DateFrom:  rng.FromString(),
		DateTo:    rng.ToString(),
		Questions: n,
		CacheHit:  cacheHit,
		LatencyMs: latencyMs,
		Timestamp: h.now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	}
	if err != nil {
		event.Error = err.Error()
	}
	h.tracker.Track(event)
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}

	n, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": n})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to its status code. Only AppError messages reach the
// client; anything else is reported as an internal error.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := pkgerrors.HTTPStatusCode(err)
	message := "internal error"
	var appErr *pkgerrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, status, map[string]any{"success": false, "error": message})
}
