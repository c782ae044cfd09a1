package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"
)

// Result is the outcome of one request.
type Result struct {
	Latency   time.Duration
	Status    int
	CacheHit  bool
	Empty     bool
	Err       error
	Cancelled bool
}

// Stats accumulates results from all workers.
type Stats struct {
	mu        sync.Mutex
	total     int64
	success   int64
	errors    int64
	cacheHits int64
	empty     int64
	latencies []time.Duration
	statuses  map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 10000),
		statuses:  make(map[int]int64),
	}
}

// Record adds one result. Requests cut off by the end of the run are not
// counted.
func (s *Stats) Record(r Result) {
	if r.Cancelled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if r.Err != nil || r.Status < 200 || r.Status >= 300 {
		s.errors++
	} else {
		s.success++
		if r.CacheHit {
			s.cacheHits++
		}
		if r.Empty {
			s.empty++
		}
	}
	if r.Status != 0 {
		s.statuses[r.Status]++
		s.latencies = append(s.latencies, r.Latency)
	}
}

func (s *Stats) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Report writes a human readable summary to w.
func (s *Stats) Report(w io.Writer, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", s.total)
	fmt.Fprintf(w, "Successful:      %d\n", s.success)
	fmt.Fprintf(w, "Errors:          %d\n", s.errors)
	if s.total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(s.errors)/float64(s.total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(s.total)/duration.Seconds())
	}
	if s.success > 0 {
		fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", float64(s.cacheHits)/float64(s.success)*100)
		fmt.Fprintf(w, "Empty Results:   %d\n", s.empty)
	}

	if len(s.latencies) > 0 {
		sorted := append([]time.Duration(nil), s.latencies...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		var sum time.Duration
		for _, l := range sorted {
			sum += l
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", sorted[0])
		fmt.Fprintf(w, "Avg:    %s\n", sum/time.Duration(len(sorted)))
		fmt.Fprintf(w, "P50:    %s\n", percentile(sorted, 50))
		fmt.Fprintf(w, "P90:    %s\n", percentile(sorted, 90))
		fmt.Fprintf(w, "P99:    %s\n", percentile(sorted, 99))
		fmt.Fprintf(w, "Max:    %s\n", sorted[len(sorted)-1])
	}

	if len(s.statuses) > 0 {
		codes := make([]int, 0, len(s.statuses))
		for code := range s.statuses {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Status Codes ===")
		for _, code := range codes {
			fmt.Fprintf(w, "  %d: %d\n", code, s.statuses[code])
		}
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
