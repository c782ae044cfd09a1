package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/kafka"
)

type AggregatedStats struct {
	TotalRequests     int64          `json:"total_requests"`
	CacheHits         int64          `json:"cache_hits"`
	CacheMisses       int64          `json:"cache_misses"`
	EmptyResults      int64          `json:"empty_results"`
	Failures          int64          `json:"failures"`
	QuestionsServed   int64          `json:"questions_served"`
	AvgLatencyMs      float64        `json:"avg_latency_ms"`
	P50LatencyMs      int64          `json:"p50_latency_ms"`
	P95LatencyMs      int64          `json:"p95_latency_ms"`
	P99LatencyMs      int64          `json:"p99_latency_ms"`
	TopKeywords       []KeywordCount `json:"top_keywords"`
	EmptyKeywords     []KeywordCount `json:"empty_keywords"`
	RequestsPerMinute float64        `json:"requests_per_minute"`
}

type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int64  `json:"count"`
}

// maxLatencySamples bounds the latency window kept for percentiles.
const maxLatencySamples = 10000

// Aggregator keeps running totals of question events. It is fed either by a
// Kafka consumer or directly through Record.
type Aggregator struct {
	mu            sync.RWMutex
	stats         AggregatedStats
	latencies     []int64
	keywordCounts map[string]int64
	emptyKeywords map[string]int64
	startTime     time.Time
	now           func() time.Time

	logger *slog.Logger
}

// NewAggregator creates an Aggregator. Feed it with Record or Start.
func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:     make([]int64, 0, 1024),
		keywordCounts: make(map[string]int64),
		emptyKeywords: make(map[string]int64),
		startTime:     time.Now(),
		now:           time.Now,
		logger:        slog.Default().With("component", "analytics-aggregator"),
	}
}

// Start consumes question events from topic until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context, cfg config.KafkaConfig, topic string) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("analytics aggregator: no kafka brokers configured")
	}
	a.logger.Info("analytics aggregator starting", "topic", topic)
	return kafka.NewConsumer(cfg, topic, HandleEvent(a)).Start(ctx)
}

// HandleEvent decodes question events for the Kafka consumer. Undecodable
// messages are logged and skipped so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QuestionEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode question event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record folds one event into the totals.
func (a *Aggregator) Record(event QuestionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.TotalRequests++
	if event.CacheHit {
		a.stats.CacheHits++
	} else {
		a.stats.CacheMisses++
	}
	switch event.Type {
	case EventFailed:
		a.stats.Failures++
	case EventEmpty:
		a.stats.EmptyResults++
		a.emptyKeywords[event.Keyword]++
	}
	a.stats.QuestionsServed += int64(event.Questions)
	a.keywordCounts[event.Keyword]++

	if len(a.latencies) == maxLatencySamples {
		copy(a.latencies, a.latencies[1:])
		a.latencies = a.latencies[:maxLatencySamples-1]
	}
	a.latencies = append(a.latencies, event.LatencyMs)
}

// Stats returns a snapshot of the totals.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := a.stats
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopKeywords = topN(a.keywordCounts, 10)
	stats.EmptyKeywords = topN(a.emptyKeywords, 10)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.RequestsPerMinute = float64(stats.TotalRequests) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then keyword ascending.
func topN(counts map[string]int64, n int) []KeywordCount {
	result := make([]KeywordCount, 0, len(counts))
	for kw, count := range counts {
		result = append(result, KeywordCount{Keyword: kw, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Keyword < result[j].Keyword
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
