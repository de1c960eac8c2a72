package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	baseURL      = "http://127.0.0.1:18090"
	numWorkers   = 50
	testDuration = 10 * time.Second
)

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

var knownIDs []string

func main() {
	fmt.Println("=== mentiond Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s\n\n", numWorkers, testDuration)

	// Wait for server
	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	// Collect real mention ids for the single-record and toggle probes.
	fmt.Print("Loading feed ids... ")
	knownIDs = fetchFeedIDs()
	fmt.Printf("%d ids\n", len(knownIDs))

	// Phase 1: Read-only feed load
	fmt.Println("\n--- Phase 1: Feed reads (80% /feed, 15% /mention, 5% /health) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.80:
			return doGetFeed()
		case r < 0.95:
			return doGetMention(rng)
		default:
			return doGetHealth()
		}
	})

	// Phase 2: Mixed load with lead toggles
	fmt.Println("\n--- Phase 2: Mixed load (60% /feed, 20% /mention, 20% PATCH /lead) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.60:
			return doGetFeed()
		case r < 0.80:
			return doGetMention(rng)
		default:
			return doToggleLead(rng)
		}
	})
}

func fetchFeedIDs() []string {
	resp, err := httpClient.Get(baseURL + "/feed")
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	var records []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	return ids
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	var totalOps atomic.Int64
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					r := workFn(rng)
					totalOps.Add(1)
					results <- r
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-22s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + repeat("-", 88))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		avg := avgDuration(s.latencies)
		p50 := percentile(s.latencies, 0.50)
		p95 := percentile(s.latencies, 0.95)
		p99 := percentile(s.latencies, 0.99)

		fmt.Printf("  %-22s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors, fmtDur(avg), fmtDur(p50), fmtDur(p95), fmtDur(p99))
	}

	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + repeat("-", 88))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, rps)
}

func doGetFeed() result {
	start := time.Now()
	resp, err := httpClient.Get(baseURL + "/feed")
	lat := time.Since(start)
	if err != nil {
		return result{"GET /feed", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"GET /feed", resp.StatusCode, lat, resp.StatusCode != 200}
}

func doGetMention(rng *rand.Rand) result {
	if len(knownIDs) == 0 {
		return doGetFeed()
	}
	id := knownIDs[rng.Intn(len(knownIDs))]
	start := time.Now()
	resp, err := httpClient.Get(baseURL + "/mention?id=" + id)
	lat := time.Since(start)
	if err != nil {
		return result{"GET /mention", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"GET /mention", resp.StatusCode, lat, resp.StatusCode != 200}
}

func doToggleLead(rng *rand.Rand) result {
	if len(knownIDs) == 0 {
		return doGetFeed()
	}
	id := knownIDs[rng.Intn(len(knownIDs))]
	body := map[string]interface{}{
		"id":     id,
		"isLead": rng.Float64() < 0.5,
	}
	data, _ := json.Marshal(body)

	req, err := http.NewRequest(http.MethodPatch, baseURL+"/lead", bytes.NewReader(data))
	if err != nil {
		return result{"PATCH /lead", 0, 0, true}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := httpClient.Do(req)
	lat := time.Since(start)
	if err != nil {
		return result{"PATCH /lead", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"PATCH /lead", resp.StatusCode, lat, resp.StatusCode != 200}
}

func doGetHealth() result {
	start := time.Now()
	resp, err := httpClient.Get(baseURL + "/health")
	lat := time.Since(start)
	if err != nil {
		return result{"GET /health", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"GET /health", resp.StatusCode, lat, resp.StatusCode != 200}
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
