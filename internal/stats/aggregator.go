package stats

import (
	"maps"
	"slices"
	"sync"
)

// RunStats holds the aggregated metrics of one load test run.
type RunStats struct {
	TotalRequests      int            `json:"total_requests"`
	SuccessfulRequests int            `json:"successful_requests"`
	FailedRequests     int            `json:"failed_requests"`
	ResponseTimes      []float64      `json:"response_times"` // seconds, completion order
	StatusCodeCounts   map[int]int    `json:"status_code_counts"`
	ErrorCounts        map[string]int `json:"error_counts"`
}

func newRunStats() RunStats {
	return RunStats{
		ResponseTimes:    make([]float64, 0, 1024),
		StatusCodeCounts: make(map[int]int),
		ErrorCounts:      make(map[string]int),
	}
}

// AverageResponseTime returns the mean response time in seconds, 0 when empty.
func (s RunStats) AverageResponseTime() float64 {
	if len(s.ResponseTimes) == 0 {
		return 0
	}
	var sum float64
	for _, t := range s.ResponseTimes {
		sum += t
	}
	return sum / float64(len(s.ResponseTimes))
}

// SuccessRate returns the percentage of successful requests.
func (s RunStats) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests) * 100
}

// Aggregator merges request outcomes from many goroutines into one RunStats.
// All mutation goes through Record, which applies every field update of a
// single outcome under one lock.
type Aggregator struct {
	mu    sync.Mutex
	stats RunStats
}

func NewAggregator() *Aggregator {
	return &Aggregator{stats: newRunStats()}
}

// Reset replaces the current state with an empty RunStats.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats = newRunStats()
}

// Record folds one outcome into the running totals. Safe for concurrent use.
func (a *Aggregator) Record(o RequestOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.TotalRequests++
	if o.Succeeded() {
		a.stats.SuccessfulRequests++
	} else {
		a.stats.FailedRequests++
	}
	a.stats.ResponseTimes = append(a.stats.ResponseTimes, o.Duration.Seconds())

	if o.HasStatus {
		a.stats.StatusCodeCounts[o.StatusCode]++
	} else {
		a.stats.ErrorCounts[o.ErrorMessage]++
	}
}

// Snapshot returns a deep copy of the current state.
func (a *Aggregator) Snapshot() RunStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return RunStats{
		TotalRequests:      a.stats.TotalRequests,
		SuccessfulRequests: a.stats.SuccessfulRequests,
		FailedRequests:     a.stats.FailedRequests,
		ResponseTimes:      slices.Clone(a.stats.ResponseTimes),
		StatusCodeCounts:   maps.Clone(a.stats.StatusCodeCounts),
		ErrorCounts:        maps.Clone(a.stats.ErrorCounts),
	}
}

// Counts is a cheap read of the counters, used by progress reporting.
func (a *Aggregator) Counts() (total, success, failed int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats.TotalRequests, a.stats.SuccessfulRequests, a.stats.FailedRequests
}

func (a *Aggregator) AverageResponseTime() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats.AverageResponseTime()
}
