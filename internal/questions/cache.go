package questions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/news"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/related-questions/pkg/redis"
)

const cacheKeyPrefix = "questions:"

// Store is the byte store behind the cache; *pkgredis.Client satisfies it.
// Get must report a missing key with an error for which
// pkgredis.IsNilError is true.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Cache stores pipeline results keyed by the normalised request and
// collapses concurrent identical computations.
type Cache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache creates a Cache over store. m may be nil.
func NewCache(store Store, ttl time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "question-cache"),
	}
}

// Key derives the cache key of a normalised request.
func Key(req Request) string {
	raw := fmt.Sprintf("%s|%s|%s|%d|%d|%d|%d",
		strings.ToLower(strings.TrimSpace(req.Keyword)),
		req.DateFrom.Format(news.DateLayout),
		req.DateTo.Format(news.DateLayout),
		req.MaxQuestions,
		req.ClusterCount,
		req.MaxRecursionDepth,
		req.MinArticlesPerQuery,
	)
	sum := sha256.Sum256([]byte(raw))
	return cacheKeyPrefix + hex.EncodeToString(sum[:16])
}

// Get returns a cached result. Store and decode errors count as misses.
func (c *Cache) Get(ctx context.Context, req Request) ([]Question, bool) {
	qs, ok := c.lookup(ctx, Key(req))
	if !ok {
		c.miss()
		return nil, false
	}
	c.hit()
	return qs, true
}

func (c *Cache) lookup(ctx context.Context, key string) ([]Question, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var qs []Question
	if err := json.Unmarshal(data, &qs); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return qs, true
}

// Set stores a result; failures are logged only.
func (c *Cache) Set(ctx context.Context, req Request, qs []Question) {
	key := Key(req)
	data, err := json.Marshal(qs)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for req or runs compute once for
// all concurrent callers with the same key. compute runs detached from the
// leading caller's cancellation, so a disconnecting client does not fail the
// callers sharing its flight; deadlines inside compute still apply. Errors
// are never cached.
func (c *Cache) GetOrCompute(ctx context.Context, req Request, compute func(context.Context) ([]Question, error)) ([]Question, bool, error) {
	if qs, ok := c.Get(ctx, req); ok {
		return qs, true, nil
	}
	key := Key(req)
	val, err, _ := c.group.Do(key, func() (any, error) {
		flightCtx := context.WithoutCancel(ctx)
		if qs, ok := c.lookup(flightCtx, key); ok {
			return qs, nil
		}
		qs, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		c.Set(flightCtx, req, qs)
		return qs, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]Question), false, nil
}

// Invalidate drops every cached result.
func (c *Cache) Invalidate(ctx context.Context) (int64, error) {
	n, err := c.store.FlushByPattern(ctx, cacheKeyPrefix+"*")
	if err != nil {
		return n, fmt.Errorf("invalidating question cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", n)
	return n, nil
}

// Stats returns hit and miss counts since start.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *Cache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
