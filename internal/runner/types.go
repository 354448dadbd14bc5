package runner

import (
	"errors"
	"net/http"
	"time"

	"loadq/internal/stats"
)

const DefaultTimeout = 10 * time.Second

var (
	ErrInvalidConfig = errors.New("invalid runner config")
	ErrClientSetup   = errors.New("cannot set up http client")
	ErrRunInProgress = errors.New("a run is already in progress")
)

type Config struct {
	URL              string        `json:"url"`
	Requests         int           `json:"requests"`
	Concurrency      int           `json:"concurrency"`
	RandomizeQueries bool          `json:"randomize_queries"`
	Timeout          time.Duration `json:"timeout"`
}

// Result is what a finished (or cancelled) run hands back to its caller.
type Result struct {
	RunID     string         `json:"run_id"`
	Config    Config         `json:"config"`
	StartedAt time.Time      `json:"started_at"`
	Elapsed   time.Duration  `json:"elapsed"`
	Stats     stats.RunStats `json:"stats"`
}

// RPS is the achieved throughput over the whole run.
func (r Result) RPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Stats.TotalRequests) / r.Elapsed.Seconds()
}

// Progress is sent over the updates channel while a run is active.
type Progress struct {
	Total       int
	Completed   int
	Success     int
	Failed      int
	Inflight    int64
	LastLatency time.Duration
	Done        bool
}

// Doer issues HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer is notified of every outcome after it has been recorded.
// Observe is called from request goroutines and must be safe for concurrent use.
type Observer interface {
	Observe(o stats.RequestOutcome)
}

type ObserverFunc func(o stats.RequestOutcome)

func (f ObserverFunc) Observe(o stats.RequestOutcome) { f(o) }
