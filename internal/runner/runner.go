package runner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"loadq/internal/logging"
	"loadq/internal/stats"
)

const defaultTickInterval = 200 * time.Millisecond

// Runner dispatches the requests of a load test and owns the aggregator the
// outcomes are recorded into. A Runner executes one run at a time; use
// separate Runners for concurrent runs.
type Runner struct {
	Cfg Config

	client    Doer
	agg       *stats.Aggregator
	log       logrus.FieldLogger
	observers []Observer
	random    func(int) string

	updates      chan<- Progress
	tickInterval time.Duration

	inflight    atomic.Int64
	lastLatency atomic.Int64
	running     atomic.Bool
}

func NewRunner(cfg Config, opts ...Option) (*Runner, error) {
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, cfg.Concurrency)
	}
	if cfg.Requests < 0 {
		return nil, fmt.Errorf("%w: requests must not be negative, got %d", ErrInvalidConfig, cfg.Requests)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	r := &Runner{
		Cfg:          cfg,
		agg:          stats.NewAggregator(),
		log:          logging.NewNullLogger(),
		random:       RandomAlphanumeric,
		tickInterval: defaultTickInterval,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.client == nil {
		client, err := NewClient(cfg)
		if err != nil {
			return nil, err
		}
		r.client = client
	}

	return r, nil
}

// RunLoadTest issues totalRequests GETs against baseURL with at most
// concurrencyLimit in flight and returns the aggregated stats once every
// request has finished.
func RunLoadTest(baseURL string, totalRequests, concurrencyLimit int, randomizeQueries bool) (stats.RunStats, error) {
	r, err := NewRunner(Config{
		URL:              baseURL,
		Requests:         totalRequests,
		Concurrency:      concurrencyLimit,
		RandomizeQueries: randomizeQueries,
	})
	if err != nil {
		return stats.RunStats{}, err
	}
	res, err := r.Run(context.Background())
	return res.Stats, err
}

// Run executes the configured load test and blocks until every dispatched
// request reached a terminal outcome. Cancelling ctx stops dispatching new
// requests; the partial result is returned together with the context error.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Result{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	r.agg.Reset()
	r.lastLatency.Store(0)

	res := Result{
		RunID:     uuid.NewString(),
		Config:    r.Cfg,
		StartedAt: time.Now(),
	}
	log := r.log.WithField("run_id", res.RunID)
	log.WithFields(logrus.Fields{
		"url":         r.Cfg.URL,
		"requests":    r.Cfg.Requests,
		"concurrency": r.Cfg.Concurrency,
		"randomize":   r.Cfg.RandomizeQueries,
	}).Info("load test started")

	targets := BuildTargets(r.Cfg.URL, r.Cfg.Requests, r.Cfg.RandomizeQueries, r.random)

	tickCtx, stopTicks := context.WithCancel(ctx)
	var ticks sync.WaitGroup
	r.startTickLoop(tickCtx, &ticks)

	runErr := r.dispatch(ctx, targets, log)

	stopTicks()
	ticks.Wait()
	r.sendFinal(ctx)

	res.Elapsed = time.Since(res.StartedAt)
	res.Stats = r.agg.Snapshot()

	entry := log.WithFields(logrus.Fields{
		"total":   res.Stats.TotalRequests,
		"success": res.Stats.SuccessfulRequests,
		"failed":  res.Stats.FailedRequests,
		"elapsed": res.Elapsed.String(),
	})
	if runErr != nil {
		entry.WithError(runErr).Warn("load test cancelled")
	} else {
		entry.Info("load test finished")
	}

	return res, runErr
}

// dispatch acquires an admission slot for each target before starting its
// goroutine, so the semaphore alone bounds the number of requests in flight.
func (r *Runner) dispatch(ctx context.Context, targets []string, log logrus.FieldLogger) error {
	sem := semaphore.NewWeighted(int64(r.Cfg.Concurrency))
	var wg sync.WaitGroup
	var err error

	for _, target := range targets {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			defer sem.Release(1)
			r.execute(ctx, url, log)
		}(target)
	}

	wg.Wait()
	if err != nil {
		return fmt.Errorf("load test interrupted: %w", err)
	}
	return nil
}

func (r *Runner) execute(ctx context.Context, url string, log logrus.FieldLogger) {
	r.inflight.Add(1)
	defer r.inflight.Add(-1)

	reqCtx, cancel := context.WithTimeout(ctx, r.Cfg.Timeout)
	defer cancel()

	var outcome stats.RequestOutcome
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		outcome = stats.TransportFailure(url, err, 0)
	} else {
		start := time.Now()
		resp, err := r.client.Do(req)
		elapsed := time.Since(start)

		if err != nil {
			outcome = stats.TransportFailure(url, err, elapsed)
		} else {
			outcome = stats.Responded(url, resp.StatusCode, elapsed)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}

	r.agg.Record(outcome)
	r.lastLatency.Store(int64(outcome.Duration))

	for _, obs := range r.observers {
		obs.Observe(outcome)
	}

	entry := log.WithFields(logrus.Fields{
		"url":      url,
		"duration": outcome.Duration.String(),
	})
	if outcome.HasStatus {
		entry.WithField("status", outcome.StatusCode).Debug("request completed")
	} else {
		entry.WithField("error", outcome.ErrorMessage).Debug("request failed")
	}
}

// startTickLoop pushes progress snapshots until ctx is done.
func (r *Runner) startTickLoop(ctx context.Context, wg *sync.WaitGroup) {
	if r.updates == nil {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(r.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate()
			}
		}
	}()
}

func (r *Runner) progress(done bool) Progress {
	total, success, failed := r.agg.Counts()
	return Progress{
		Total:       r.Cfg.Requests,
		Completed:   total,
		Success:     success,
		Failed:      failed,
		Inflight:    r.inflight.Load(),
		LastLatency: time.Duration(r.lastLatency.Load()),
		Done:        done,
	}
}

func (r *Runner) sendUpdate() {
	if r.updates == nil {
		return
	}
	select {
	case r.updates <- r.progress(false):
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

// sendFinal delivers the Done snapshot, waiting for the consumer when the
// channel is full. Only ctx ending gives up on it.
func (r *Runner) sendFinal(ctx context.Context) {
	if r.updates == nil {
		return
	}
	p := r.progress(true)
	select {
	case r.updates <- p:
		return
	default:
	}
	select {
	case r.updates <- p:
	case <-ctx.Done():
		r.log.Warn("final progress update dropped, run context ended")
	}
}

// Stats returns a snapshot of the current (or last) run.
func (r *Runner) Stats() stats.RunStats {
	return r.agg.Snapshot()
}

func (r *Runner) Inflight() int64 {
	return r.inflight.Load()
}
