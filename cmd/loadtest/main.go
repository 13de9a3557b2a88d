// Command loadtest drives a running searchd instance with a concurrent mix
// of plain, fuzzy, filtered, and boosted queries and reports latency
// percentiles. With -seed it loads a generated corpus first.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/proplex/searchd/pkg/search"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Seed        int
	Queries     []search.Query
}

// outcome captures one completed request from a worker's point of view.
type outcome struct {
	rtt      time.Duration
	status   int
	hits     int
	total    int
	serverMs float64
	err      error
}

// tally accumulates outcomes across workers. A single mutex guards all of
// it; contention is negligible next to the HTTP round trip.
type tally struct {
	mu        sync.Mutex
	requests  int64
	failures  int64
	rtts      []time.Duration
	serverMs  float64
	hits      int64
	zeroTotal int64
	byStatus  map[int]int64
}

func newTally() *tally {
	return &tally{
		rtts:     make([]time.Duration, 0, 1<<17),
		byStatus: make(map[int]int64),
	}
}

func (t *tally) add(o outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests++
	if o.err != nil {
		t.failures++
		return
	}
	t.byStatus[o.status]++
	if o.status != http.StatusOK {
		t.failures++
		return
	}
	t.rtts = append(t.rtts, o.rtt)
	t.serverMs += o.serverMs
	t.hits += int64(o.hits)
	if o.total == 0 {
		t.zeroTotal++
	}
}

func (t *tally) count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests
}

var vocabulary = []string{
	"house", "garden", "kitchen", "window", "river", "mountain", "harbor",
	"market", "castle", "bridge", "forest", "meadow", "cottage", "tower",
	"village", "street", "museum", "library", "station", "theater",
}

var categories = []string{"residential", "commercial", "landmark", "nature"}

var tagPool = []string{"north", "south", "east", "west", "old", "new", "large", "small"}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	seed := flag.Int("seed", 0, "load this many generated documents before the run (0 skips)")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Seed:        *seed,
		Queries:     buildQueries(),
	}

	fmt.Println("=== searchd Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	if cfg.Seed > 0 {
		if err := seedCorpus(cfg.BaseURL, cfg.Seed); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed corpus: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded %d documents\n\n", cfg.Seed)
	}

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

// buildQueries produces a mix that touches every pipeline stage: plain text,
// fuzzy expansion, filters with facets, thresholds, boosts, and pagination.
func buildQueries() []search.Query {
	limit := 10
	offset := 20
	distance := 2
	threshold := 0.1

	queries := make([]search.Query, 0, 2*len(vocabulary))
	for i, term := range vocabulary {
		queries = append(queries, search.Query{
			Text:  term + " " + vocabulary[(i+1)%len(vocabulary)],
			Limit: &limit,
		})
	}
	for i, term := range vocabulary {
		switch i % 4 {
		case 0:
			// Typo in the trailing character exercises fuzzy expansion.
			queries = append(queries, search.Query{
				Text:          term[:len(term)-1] + "x",
				Fuzzy:         true,
				FuzzyDistance: &distance,
				Limit:         &limit,
			})
		case 1:
			queries = append(queries, search.Query{
				Text:  term,
				Limit: &limit,
				Filters: &search.Filters{
					Categories: []string{categories[i%len(categories)]},
				},
			})
		case 2:
			queries = append(queries, search.Query{
				Text:  term,
				Limit: &limit,
				Filters: &search.Filters{
					Tags:           []string{tagPool[i%len(tagPool)]},
					ScoreThreshold: &threshold,
				},
			})
		case 3:
			queries = append(queries, search.Query{
				Text:   term,
				Limit:  &limit,
				Offset: &offset,
				Boosts: map[string]float64{
					search.BoostTitle:             1.5,
					categories[i%len(categories)]: 1.2,
				},
			})
		}
	}
	return queries
}

// seedCorpus generates n documents and loads them in one request.
func seedCorpus(baseURL string, n int) error {
	rng := rand.New(rand.NewSource(42))
	docs := make([]search.Document, 0, n)
	for i := 0; i < n; i++ {
		words := make([]byte, 0, 256)
		for w := 0; w < 20; w++ {
			if w > 0 {
				words = append(words, ' ')
			}
			words = append(words, vocabulary[rng.Intn(len(vocabulary))]...)
		}
		docs = append(docs, search.Document{
			ID:       fmt.Sprintf("doc-%05d", i),
			Title:    vocabulary[i%len(vocabulary)] + " " + vocabulary[(i*7)%len(vocabulary)],
			Content:  string(words),
			Category: categories[i%len(categories)],
			Tags:     []string{tagPool[i%len(tagPool)], tagPool[(i*3)%len(tagPool)]},
			Score:    rng.Float64() * 5,
		})
	}

	payload, err := json.Marshal(search.LoadRequest{Documents: docs})
	if err != nil {
		return err
	}
	resp, err := http.Post(baseURL+"/api/v1/load", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("load returned %s", resp.Status)
	}
	return nil
}

func runLoadTest(cfg Config) *tally {
	stats := newTally()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: cfg.Concurrency,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	searchURL := cfg.BaseURL + "/api/v1/search"

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		// Workers start at staggered offsets so the query mix spreads out.
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				o := fire(ctx, client, searchURL, cfg.Queries[next%len(cfg.Queries)])
				next++
				if ctx.Err() != nil {
					return
				}
				stats.add(o)
			}
		}(w)
	}

	fmt.Println("Running:")
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		start := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("  %3.0fs  %d requests\n", time.Since(start).Seconds(), stats.count())
			}
		}
	}()

	wg.Wait()
	return stats
}

// fire sends one search request and decodes the response far enough to
// count hits and capture the engine's own timing.
func fire(ctx context.Context, client *http.Client, url string, q search.Query) outcome {
	payload, err := json.Marshal(q)
	if err != nil {
		return outcome{err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return outcome{err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return outcome{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return outcome{rtt: time.Since(start), status: resp.StatusCode}
	}

	var res search.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return outcome{err: err}
	}
	return outcome{
		rtt:      time.Since(start),
		status:   resp.StatusCode,
		hits:     len(res.Documents),
		total:    res.Total,
		serverMs: res.ElapsedMs,
	}
}

func printReport(t *tally, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Println()
	fmt.Println("=== Results ===")
	fmt.Printf("Requests:  %d (%.1f/sec)\n", t.requests, float64(t.requests)/duration.Seconds())
	fmt.Printf("Failures:  %d (%.2f%%)\n", t.failures, pct(t.failures, t.requests))
	codes := make([]int, 0, len(t.byStatus))
	for code := range t.byStatus {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Printf("  HTTP %d: %d\n", code, t.byStatus[code])
	}

	ok := int64(len(t.rtts))
	if ok == 0 {
		fmt.Println()
		fmt.Println("No successful requests. Is the service running?")
		os.Exit(1)
	}

	slices.Sort(t.rtts)
	var sum time.Duration
	for _, r := range t.rtts {
		sum += r
	}
	meanClient := float64(sum.Microseconds()) / 1000 / float64(ok)
	meanServer := t.serverMs / float64(ok)

	fmt.Println()
	fmt.Println("=== Latency (client) ===")
	fmt.Printf("Min:  %s\n", t.rtts[0])
	for _, p := range []int{50, 90, 95, 99} {
		fmt.Printf("P%d:  %s\n", p, quantile(t.rtts, p))
	}
	fmt.Printf("Max:  %s\n", t.rtts[ok-1])

	fmt.Println()
	fmt.Println("=== Search ===")
	fmt.Printf("Hits/request:   %.1f\n", float64(t.hits)/float64(ok))
	fmt.Printf("Zero results:   %d (%.2f%%)\n", t.zeroTotal, pct(t.zeroTotal, ok))
	fmt.Printf("Engine time:    %.3fms mean\n", meanServer)
	fmt.Printf("Transport cost: %.3fms mean\n", meanClient-meanServer)
}

// quantile picks the nearest-rank percentile from a sorted slice.
func quantile(sorted []time.Duration, p int) time.Duration {
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func pct(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
