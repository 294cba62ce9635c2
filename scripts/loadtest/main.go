// Loadtest is a concurrent load generator for the static file server. It
// spreads requests across a set of paths and reports throughput, latency
// percentiles and per-path status distribution.
//
// Usage:
//
//	go run ./scripts/loadtest -base http://localhost:8080 -paths /,/style.css,/missing -concurrency 20 -requests 5000
//	go run ./scripts/loadtest -base http://localhost:8080 -method HEAD -out summary.json
//
// Every connection is closed by the server after one response, so keep-alive
// is disabled on the client to match.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// pathStats tracks results for a single request path.
type pathStats struct {
	Count       int32         `json:"count"`
	StatusCodes map[int]int32 `json:"status_codes"`
	BodyBytes   int64         `json:"body_bytes"`
	Mismatches  int32         `json:"length_mismatches"`
	latencies   []time.Duration
}

type summary struct {
	Target        string                `json:"target"`
	Requests      int                   `json:"requests"`
	Concurrency   int                   `json:"concurrency"`
	Sent          int32                 `json:"total_sent"`
	Errors        int32                 `json:"transport_errors"`
	DurationMS    int64                 `json:"duration_ms"`
	ThroughputRPS float64               `json:"throughput_rps"`
	P50MS         float64               `json:"p50_ms"`
	P90MS         float64               `json:"p90_ms"`
	P95MS         float64               `json:"p95_ms"`
	P99MS         float64               `json:"p99_ms"`
	Paths         map[string]*pathStats `json:"paths"`
}

func main() {
	var (
		base        = flag.String("base", "http://localhost:8080", "Server base URL")
		pathList    = flag.String("paths", "/", "Comma-separated request paths")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		requests    = flag.Int("requests", 100, "Total number of requests to send")
		method      = flag.String("method", http.MethodGet, "HTTP method")
		timeoutSec  = flag.Int("timeout", 10, "Per-request timeout in seconds")
		outJSON     = flag.String("out", "", "Write JSON summary to this file (optional)")
		verbose     = flag.Bool("v", false, "Verbose per-request logging to stdout")
	)
	flag.Parse()

	paths := splitPaths(*pathList)
	client := &http.Client{
		Timeout:   time.Duration(*timeoutSec) * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}

	stats := make(map[string]*pathStats, len(paths))
	for _, p := range paths {
		stats[p] = &pathStats{StatusCodes: make(map[int]int32)}
	}
	var mu sync.Mutex
	var all []time.Duration
	var sent, transportErrors int32

	jobs := make(chan int)
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				path := paths[idx%len(paths)]
				atomic.AddInt32(&sent, 1)

				req, err := http.NewRequest(*method, strings.TrimRight(*base, "/")+path, nil)
				if err != nil {
					atomic.AddInt32(&transportErrors, 1)
					continue
				}

				began := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					atomic.AddInt32(&transportErrors, 1)
					if *verbose {
						fmt.Printf("[%d] %s error=%v\n", workerID, path, err)
					}
					continue
				}
				n, _ := io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				dur := time.Since(began)

				mu.Lock()
				ps := stats[path]
				ps.Count++
				ps.StatusCodes[resp.StatusCode]++
				ps.BodyBytes += n
				if *method == http.MethodGet && resp.ContentLength >= 0 && resp.ContentLength != n {
					ps.Mismatches++
				}
				ps.latencies = append(ps.latencies, dur)
				all = append(all, dur)
				mu.Unlock()

				if *verbose {
					fmt.Printf("[%d] %s status=%d bytes=%d dur=%v\n", workerID, path, resp.StatusCode, n, dur)
				}
			}
		}(i)
	}

	go func() {
		for i := 0; i < *requests; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	wg.Wait()
	elapsed := time.Since(start)

	sorted := sortedCopy(all)
	report := summary{
		Target:        *base,
		Requests:      *requests,
		Concurrency:   *concurrency,
		Sent:          sent,
		Errors:        transportErrors,
		DurationMS:    elapsed.Milliseconds(),
		ThroughputRPS: float64(sent) / elapsed.Seconds(),
		P50MS:         millis(percentile(sorted, 0.50)),
		P90MS:         millis(percentile(sorted, 0.90)),
		P95MS:         millis(percentile(sorted, 0.95)),
		P99MS:         millis(percentile(sorted, 0.99)),
		Paths:         stats,
	}

	printSummary(os.Stdout, report)
	fmt.Printf("\nGOMAXPROCS=%d  NumGoroutine=%d\n", runtime.GOMAXPROCS(0), runtime.NumGoroutine())

	if *outJSON != "" {
		f, err := os.Create(*outJSON)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create json file: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		enc.Encode(report)
		f.Close()
		fmt.Printf("\nWrote JSON summary to %s\n", *outJSON)
	}

	if transportErrors > 0 {
		os.Exit(2)
	}
}

func splitPaths(list string) []string {
	var paths []string
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	return paths
}

func sortedCopy(durations []time.Duration) []time.Duration {
	tmp := make([]time.Duration, len(durations))
	copy(tmp, durations)
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })
	return tmp
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func printSummary(w io.Writer, s summary) {
	fmt.Fprintln(w, "--- Load Test Summary ---")
	fmt.Fprintf(w, "Target: %s\n", s.Target)
	fmt.Fprintf(w, "Requests: %d  Concurrency: %d\n", s.Requests, s.Concurrency)
	fmt.Fprintf(w, "Total sent: %d  Transport errors: %d\n", s.Sent, s.Errors)
	fmt.Fprintf(w, "Duration: %dms  Throughput: %.2f req/s\n", s.DurationMS, s.ThroughputRPS)
	fmt.Fprintf(w, "Latency: p50=%.3fms p90=%.3fms p95=%.3fms p99=%.3fms\n", s.P50MS, s.P90MS, s.P95MS, s.P99MS)

	fmt.Fprintln(w, "\nPaths:")
	keys := make([]string, 0, len(s.Paths))
	for k := range s.Paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ps := s.Paths[k]
		codes := make([]int, 0, len(ps.StatusCodes))
		for c := range ps.StatusCodes {
			codes = append(codes, c)
		}
		sort.Ints(codes)
		parts := make([]string, 0, len(codes))
		for _, c := range codes {
			parts = append(parts, fmt.Sprintf("%d=%d", c, ps.StatusCodes[c]))
		}
		lat := sortedCopy(ps.latencies)
		fmt.Fprintf(w, "  %s -> total=%d bytes=%d mismatches=%d statuses[%s] p50=%v p99=%v\n",
			k, ps.Count, ps.BodyBytes, ps.Mismatches, strings.Join(parts, " "),
			percentile(lat, 0.50), percentile(lat, 0.99))
	}
}
