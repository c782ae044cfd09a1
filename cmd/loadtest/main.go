// Command loadtest drives concurrent traffic against the related-questions
// endpoint and prints latency, status and cache-hit statistics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

type Config struct {
	BaseURL      string
	Concurrency  int
	Duration     time.Duration
	MaxQuestions int
	Keywords     []string
}

var defaultKeywords = []string{
	"삼성전자",
	"반도체",
	"HBM",
	"금리",
	"환율",
	"부동산",
	"전기차",
	"배터리",
	"인공지능",
	"수출",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the related questions service")
	concurrency := flag.Int("concurrency", 4, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	maxQuestions := flag.Int("max", 5, "max_questions sent with every request")
	keywords := flag.String("keywords", "", "comma separated seed keywords (default: built-in list)")
	flag.Parse()

	cfg := Config{
		BaseURL:      strings.TrimRight(*baseURL, "/"),
		Concurrency:  *concurrency,
		Duration:     *duration,
		MaxQuestions: *maxQuestions,
		Keywords:     defaultKeywords,
	}
	if *keywords != "" {
		cfg.Keywords = splitKeywords(*keywords)
	}

	fmt.Println("=== Related Questions Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Keywords:    %d unique\n", len(cfg.Keywords))
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()
	stats := run(ctx, cfg, newHTTPClient(cfg.Concurrency))
	stats.Report(os.Stdout, cfg.Duration)
	if stats.Total() == 0 {
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func newHTTPClient(concurrency int) *http.Client {
	return &http.Client{
		Timeout: 2 * time.Minute,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func requestURL(cfg Config, keyword string) string {
	q := url.Values{}
	q.Set("keyword", keyword)
	if cfg.MaxQuestions > 0 {
		q.Set("max_questions", fmt.Sprint(cfg.MaxQuestions))
	}
	return cfg.BaseURL + "/api/v1/related-questions?" + q.Encode()
}

type apiResponse struct {
	TotalCount int  `json:"total_count"`
	CacheHit   bool `json:"cache_hit"`
}

// run keeps every worker issuing requests until ctx is done.
func run(ctx context.Context, cfg Config, client *http.Client) *Stats {
	stats := NewStats()
	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; ctx.Err() == nil; i++ {
				keyword := cfg.Keywords[i%len(cfg.Keywords)]
				stats.Record(doRequest(ctx, client, requestURL(cfg, keyword)))
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func doRequest(ctx context.Context, client *http.Client, target string) Result {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Latency: time.Since(start), Err: err, Cancelled: ctx.Err() != nil}
	}
	defer resp.Body.Close()

	res := Result{Latency: time.Since(start), Status: resp.StatusCode}
	if resp.StatusCode == http.StatusOK {
		var body apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			res.Err = fmt.Errorf("decoding response: %w", err)
			return res
		}
		res.CacheHit = body.CacheHit
		res.Empty = body.TotalCount == 0
	}
	io.Copy(io.Discard, resp.Body)
	return res
}
