package questions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/analytics"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/related-questions/pkg/errors"
)

type recordingRecorder struct {
	mu   sync.Mutex
	reqs []Request
}

func (r *recordingRecorder) Record(_ context.Context, req Request, _ []Question) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return int64(len(r.reqs)), nil
}

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.QuestionEvent
}

func (t *recordingTracker) Track(e analytics.QuestionEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

func serve(t *testing.T, h http.HandlerFunc, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func questionsURL(params map[string]string) string {
	v := url.Values{}
	for k, val := range params {
		v.Set(k, val)
	}
	return "/api/v1/related-questions?" + v.Encode()
}

func newTestHandler(opts ...HandlerOption) *Handler {
	h := NewHandler(newTestEngine(samsungProvider()), opts...)
	h.now = func() time.Time { return fixedNow }
	return h
}

func TestGenerateHandlerValidation(t *testing.T) {
	h := newTestHandler()
	tests := []struct {
		name   string
		params map[string]string
	}{
		{"missing keyword", map[string]string{}},
		{"bad date", map[string]string{"keyword": "AI", "date_from": "2024/05/01"}},
		{"inverted dates", map[string]string{"keyword": "AI", "date_from": "2024-05-10", "date_to": "2024-05-01"}},
		{"zero max", map[string]string{"keyword": "AI", "max_questions": "0"}},
		{"non numeric max", map[string]string{"keyword": "AI", "max_questions": "ten"}},
		{"max above limit", map[string]string{"keyword": "AI", "max_questions": "21"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, h.Generate, http.MethodGet, questionsURL(tt.params))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGenerateHandlerServesAndCaches(t *testing.T) {
	recorder := &recordingRecorder{}
	tracker := &recordingTracker{}
	h := newTestHandler(
		WithCache(NewCache(newMemStore(), time.Minute, nil)),
		WithRecorder(recorder),
		WithTracker(tracker),
	)
	target := questionsURL(map[string]string{
		"keyword":       "삼성전자",
		"date_from":     "2024-05-01",
		"date_to":       "2024-05-15",
		"max_questions": "4",
	})

	rec := serve(t, h.Generate, http.MethodGet, target)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var first response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.True(t, first.Success)
	assert.Equal(t, "삼성전자", first.Keyword)
	assert.Equal(t, period{From: "2024-05-01", To: "2024-05-15"}, first.Period)
	assert.Equal(t, len(first.Questions), first.TotalCount)
	assert.LessOrEqual(t, first.TotalCount, 4)
	assert.NotZero(t, first.TotalCount)
	assert.False(t, first.CacheHit)

	rec = serve(t, h.Generate, http.MethodGet, target)
	require.Equal(t, http.StatusOK, rec.Code)
	var second response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Questions, second.Questions)

	require.Len(t, recorder.reqs, 1, "cache hits are not recorded")
	assert.Equal(t, 4, recorder.reqs[0].MaxQuestions)

	require.Len(t, tracker.events, 2)
	assert.Equal(t, analytics.EventGenerated, tracker.events[0].Type)
	assert.Equal(t, analytics.EventCacheHit, tracker.events[1].Type)
	assert.Equal(t, "2024-05-01", tracker.events[0].DateFrom)
	assert.Equal(t, fixedNow, tracker.events[0].Timestamp)
}

func TestGenerateHandlerEmptyResult(t *testing.T) {
	p := samsungProvider()
	p.Hits = map[string]int{"없음": 0}
	tracker := &recordingTracker{}
	h := NewHandler(newTestEngine(p), WithTracker(tracker))

	rec := serve(t, h.Generate, http.MethodGet, questionsURL(map[string]string{"keyword": "없음"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"questions":[]`)
	assert.Contains(t, rec.Body.String(), `"total_count":0`)
	require.Len(t, tracker.events, 1)
	assert.Equal(t, analytics.EventEmpty, tracker.events[0].Type)
}

func TestGenerateHandlerUpstreamError(t *testing.T) {
	p := samsungProvider()
	p.SearchErr = pkgerrors.Upstreamf("bigkinds search: status 503")
	tracker := &recordingTracker{}
	h := NewHandler(newTestEngine(p), WithTracker(tracker))

	rec := serve(t, h.Generate, http.MethodGet, questionsURL(map[string]string{"keyword": "삼성전자"}))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "bigkinds search: status 503")
	require.Len(t, tracker.events, 1)
	assert.Equal(t, analytics.EventFailed, tracker.events[0].Type)
	assert.NotEmpty(t, tracker.events[0].Error)
}

func TestCacheEndpoints(t *testing.T) {
	disabled := newTestHandler()
	rec := serve(t, disabled.CacheStats, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")
	rec = serve(t, disabled.CacheInvalidate, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h := newTestHandler(WithCache(NewCache(newMemStore(), time.Minute, nil)))
	target := questionsURL(map[string]string{"keyword": "삼성전자"})
	serve(t, h.Generate, http.MethodGet, target)
	serve(t, h.Generate, http.MethodGet, target)

	rec = serve(t, h.CacheStats, http.MethodGet, "/api/v1/cache/stats")
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1.0, stats["hits"])
	assert.Equal(t, 1.0, stats["misses"])
	assert.Equal(t, "50.0%", stats["hit_rate"])

	rec = serve(t, h.CacheInvalidate, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"keys_deleted":1`)
}
