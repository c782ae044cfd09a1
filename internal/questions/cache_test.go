package questions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/metrics"
)

// memStore is an in-memory Store that reports missing keys like Redis does.
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	gets   atomic.Int64
	getErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.gets.Add(1)
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

var cacheReq = Request{
	Keyword:             "AI",
	DateFrom:            time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	DateTo:              time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
	MaxQuestions:        10,
	ClusterCount:        5,
	MaxRecursionDepth:   2,
	MinArticlesPerQuery: 3,
}

func TestKey(t *testing.T) {
	k := Key(cacheReq)
	assert.True(t, strings.HasPrefix(k, "questions:"))
	assert.Len(t, k, len("questions:")+32)

	upper := cacheReq
	upper.Keyword = "  ai "
	assert.Equal(t, k, Key(upper), "keyword case and spacing are ignored")

	other := cacheReq
	other.MaxQuestions = 5
	assert.NotEqual(t, k, Key(other))

	later := cacheReq
	later.DateTo = later.DateTo.AddDate(0, 0, 1)
	assert.NotEqual(t, k, Key(later))
}

func TestCacheGetOrCompute(t *testing.T) {
	store := newMemStore()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := NewCache(store, 15*time.Minute, m)
	want := []Question{{ID: 1, Question: "Tell me about AI and HBM", Query: "AI HBM", Count: 3}}

	var calls int
	compute := func(context.Context) ([]Question, error) {
		calls++
		return want, nil
	}

	got, hit, err := c.GetOrCompute(context.Background(), cacheReq, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, want, got)
	assert.Equal(t, 15*time.Minute, store.ttls[Key(cacheReq)])

	got, hit, err = c.GetOrCompute(context.Background(), cacheReq, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestCacheNeverStoresErrors(t *testing.T) {
	store := newMemStore()
	c := NewCache(store, time.Minute, nil)
	boom := errors.New("upstream down")

	_, _, err := c.GetOrCompute(context.Background(), cacheReq, func(context.Context) ([]Question, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.len())

	got, hit, err := c.GetOrCompute(context.Background(), cacheReq, func(context.Context) ([]Question, error) { return []Question{}, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, got)
	assert.Equal(t, 1, store.len(), "empty results are cached")
}

func TestCacheStoreErrorIsMiss(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	c := NewCache(store, time.Minute, nil)

	_, ok := c.Get(context.Background(), cacheReq)
	assert.False(t, ok)

	store.getErr = nil
	store.data[Key(cacheReq)] = []byte("not json")
	_, ok = c.Get(context.Background(), cacheReq)
	assert.False(t, ok)

	_, misses := c.Stats()
	assert.Equal(t, int64(2), misses)
}

func TestCacheCollapsesConcurrentComputations(t *testing.T) {
	const callers = 8
	store := newMemStore()
	c := NewCache(store, time.Minute, nil)

	var computes atomic.Int64
	compute := func(context.Context) ([]Question, error) {
		computes.Add(1)
		for store.gets.Load() < callers {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(50 * time.Millisecond)
		return []Question{{ID: 1, Question: "q"}}, nil
	}

	var wg sync.WaitGroup
	results := make([][]Question, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			qs, _, err := c.GetOrCompute(context.Background(), cacheReq, compute)
			assert.NoError(t, err)
			results[i] = qs
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), computes.Load())
	for _, qs := range results {
		assert.Equal(t, []Question{{ID: 1, Question: "q"}}, qs)
	}
}

func TestCacheFlightSurvivesLeaderCancellation(t *testing.T) {
	store := newMemStore()
	c := NewCache(store, time.Minute, nil)
	want := []Question{{ID: 1, Question: "q"}}

	started := make(chan struct{})
	release := make(chan struct{})
	var computes atomic.Int64
	compute := func(ctx context.Context) ([]Question, error) {
		if computes.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return want, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(leaderCtx, cacheReq, compute)
		leaderErr <- err
	}()
	<-started

	type result struct {
		qs  []Question
		err error
	}
	follower := make(chan result, 1)
	go func() {
		qs, _, err := c.GetOrCompute(context.Background(), cacheReq, compute)
		follower <- result{qs, err}
	}()
	// leader outer get, leader re-check, follower get
	for store.gets.Load() < 3 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	time.Sleep(20 * time.Millisecond)
	close(release)

	res := <-follower
	require.NoError(t, res.err)
	assert.Equal(t, want, res.qs)
	assert.NoError(t, <-leaderErr)
	assert.Equal(t, int64(1), computes.Load())
	assert.Equal(t, 1, store.len(), "result stored despite the leader leaving")
}

// lateStore misses on the first get and stores value right after, as when
// another replica finishes the same computation in between.
type lateStore struct {
	*memStore
	key   string
	value []byte
}

func (s *lateStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.memStore.Get(ctx, key)
	if s.gets.Load() == 1 {
		_ = s.memStore.Set(ctx, s.key, s.value, time.Minute)
	}
	return data, err
}

func TestCacheFlightRechecksStore(t *testing.T) {
	want := []Question{{ID: 7, Question: "cached"}}
	data, err := json.Marshal(want)
	require.NoError(t, err)
	store := &lateStore{memStore: newMemStore(), key: Key(cacheReq), value: data}
	c := NewCache(store, time.Minute, nil)

	var computes int
	got, hit, err := c.GetOrCompute(context.Background(), cacheReq, func(context.Context) ([]Question, error) {
		computes++
		return nil, errors.New("upstream down")
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, want, got)
	assert.Zero(t, computes)
	assert.Equal(t, int64(2), store.gets.Load())
}

func TestCacheInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["unrelated"] = []byte("x")
	c := NewCache(store, time.Minute, nil)
	c.Set(context.Background(), cacheReq, []Question{{ID: 1}})

	other := cacheReq
	other.Keyword = "HBM"
	c.Set(context.Background(), other, []Question{{ID: 2}})

	n, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, store.len())
}
