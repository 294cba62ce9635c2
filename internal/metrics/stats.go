package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 1000

// Stats keeps an in-memory view of served responses for the /stats endpoint.
type Stats struct {
	mutex         sync.RWMutex
	responses     int64
	failures      int64
	bytesSent     int64
	methods       map[string]int64
	statusCodes   map[int]int64
	responseTimes []time.Duration
	startTime     time.Time
}

type Snapshot struct {
	TotalResponses int64            `json:"total_responses"`
	Failures       int64            `json:"failures"`
	BytesSent      int64            `json:"bytes_sent"`
	Uptime         time.Duration    `json:"uptime"`
	Methods        map[string]int64 `json:"methods"`
	StatusCodes    map[int]int64    `json:"status_codes"`
	AvgResponse    time.Duration    `json:"avg_response"`
	P50Response    time.Duration    `json:"p50_response"`
	P95Response    time.Duration    `json:"p95_response"`
	P99Response    time.Duration    `json:"p99_response"`
}

func NewStats() *Stats {
	return &Stats{
		methods:     make(map[string]int64),
		statusCodes: make(map[int]int64),
		startTime:   time.Now(),
	}
}

func (s *Stats) RecordResponse(method string, status int, bodyBytes int64, duration time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.responses++
	s.bytesSent += bodyBytes
	s.methods[method]++
	s.statusCodes[status]++

	s.responseTimes = append(s.responseTimes, duration)
	if len(s.responseTimes) > maxSamples {
		s.responseTimes = s.responseTimes[1:]
	}
}

func (s *Stats) RecordFailure() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.failures++
}

func (s *Stats) Snapshot() Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snap := Snapshot{
		TotalResponses: s.responses,
		Failures:       s.failures,
		BytesSent:      s.bytesSent,
		Uptime:         time.Since(s.startTime),
		Methods:        make(map[string]int64, len(s.methods)),
		StatusCodes:    make(map[int]int64, len(s.statusCodes)),
	}

	for method, n := range s.methods {
		snap.Methods[method] = n
	}
	for code, n := range s.statusCodes {
		snap.StatusCodes[code] = n
	}

	if len(s.responseTimes) > 0 {
		sorted := make([]time.Duration, len(s.responseTimes))
		copy(sorted, s.responseTimes)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i] < sorted[j]
		})

		snap.AvgResponse = average(sorted)
		snap.P50Response = percentile(sorted, 0.50)
		snap.P95Response = percentile(sorted, 0.95)
		snap.P99Response = percentile(sorted, 0.99)
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
