package runner

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"loadq/internal/dummy"
	"loadq/internal/stats"
)

// countingDoer records every issued URL and the peak number of concurrent
// calls. respond decides the outcome of the i-th call.
type countingDoer struct {
	mu      sync.Mutex
	urls    []string
	calls   atomic.Int64
	current atomic.Int64
	peak    atomic.Int64
	delay   time.Duration
	respond func(i int64) (int, error)
}

func (d *countingDoer) Do(req *http.Request) (*http.Response, error) {
	i := d.calls.Add(1) - 1
	n := d.current.Add(1)
	defer d.current.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}

	d.mu.Lock()
	d.urls = append(d.urls, req.URL.String())
	d.mu.Unlock()

	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	code := http.StatusOK
	if d.respond != nil {
		var err error
		code, err = d.respond(i)
		if err != nil {
			return nil, err
		}
	}
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(strings.NewReader("ok")),
		Request:    req,
	}, nil
}

func newTestRunner(t *testing.T, cfg Config, d Doer, opts ...Option) *Runner {
	t.Helper()
	r, err := NewRunner(cfg, append([]Option{WithClient(d)}, opts...)...)
	require.NoError(t, err)
	return r
}

func assertInvariant(t *testing.T, s stats.RunStats) {
	t.Helper()
	assert.Equal(t, s.TotalRequests, s.SuccessfulRequests+s.FailedRequests)
	assert.Len(t, s.ResponseTimes, s.TotalRequests)
}

func TestRunner_AllSuccessful(t *testing.T) {
	d := &countingDoer{}
	r := newTestRunner(t, Config{URL: "http://x.test", Requests: 10, Concurrency: 3}, d)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	s := res.Stats
	assertInvariant(t, s)
	assert.Equal(t, 10, s.TotalRequests)
	assert.Equal(t, 10, s.SuccessfulRequests)
	assert.Equal(t, 0, s.FailedRequests)
	assert.Equal(t, map[int]int{200: 10}, s.StatusCodeCounts)
	assert.NotEmpty(t, res.RunID)

	for _, u := range d.urls {
		assert.Equal(t, "http://x.test", u)
	}
}

func TestRunner_AlternatingServerErrors(t *testing.T) {
	d := &countingDoer{respond: func(i int64) (int, error) {
		if i%2 == 1 {
			return http.StatusInternalServerError, nil
		}
		return http.StatusOK, nil
	}}
	r := newTestRunner(t, Config{URL: "http://x.test", Requests: 10, Concurrency: 3}, d)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	s := res.Stats
	assertInvariant(t, s)
	assert.Equal(t, 5, s.SuccessfulRequests)
	assert.Equal(t, 5, s.FailedRequests)
	assert.Equal(t, map[int]int{200: 5, 500: 5}, s.StatusCodeCounts)
}

func TestRunner_TransportFailures(t *testing.T) {
	d := &countingDoer{respond: func(int64) (int, error) {
		return 0, errors.New("connection reset by peer")
	}}
	r := newTestRunner(t, Config{URL: "http://x.test", Requests: 10, Concurrency: 3}, d)

	res, err := r.Run(context.Background())
	require.NoError(t, err, "request failures never fail the run")

	s := res.Stats
	assertInvariant(t, s)
	assert.Equal(t, 10, s.FailedRequests)
	assert.Equal(t, 0, s.SuccessfulRequests)
	assert.Empty(t, s.StatusCodeCounts)
	assert.Len(t, s.ResponseTimes, 10)
	assert.Equal(t, 10, s.ErrorCounts["connection reset by peer"])
}

func TestRunner_NeverExceedsConcurrencyLimit(t *testing.T) {
	for _, limit := range []int{1, 3, 8} {
		d := &countingDoer{delay: 5 * time.Millisecond}
		r := newTestRunner(t, Config{URL: "http://x.test", Requests: 40, Concurrency: limit}, d)

		res, err := r.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 40, res.Stats.TotalRequests)
		assert.LessOrEqual(t, d.peak.Load(), int64(limit), "limit %d", limit)
		assert.Positive(t, d.peak.Load())
	}
}

func TestRunner_ConcurrencyOneSerializes(t *testing.T) {
	d := &countingDoer{delay: 2 * time.Millisecond}
	r := newTestRunner(t, Config{URL: "http://x.test", Requests: 10, Concurrency: 1}, d)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, d.peak.Load())
}

func TestRunner_RandomizedTargets(t *testing.T) {
	d := &countingDoer{}
	r := newTestRunner(t, Config{URL: "http://x.test", Requests: 25, Concurrency: 5, RandomizeQueries: true}, d)

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, d.urls, 25)
	for _, u := range d.urls {
		assert.Regexp(t, randomizedTarget, u)
	}
}

func TestRunner_ZeroRequests(t *testing.T) {
	d := &countingDoer{}
	r := newTestRunner(t, Config{URL: "http://x.test", Requests: 0, Concurrency: 2}, d)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, d.calls.Load())
	assert.Zero(t, res.Stats.TotalRequests)
	assert.Zero(t, res.Stats.SuccessfulRequests)
	assert.Zero(t, res.Stats.FailedRequests)
	assert.Empty(t, res.Stats.ResponseTimes)
	assert.Empty(t, res.Stats.StatusCodeCounts)
	assert.Zero(t, res.Stats.AverageResponseTime())
}

func TestRunner_ResetsBetweenRuns(t *testing.T) {
	d := &countingDoer{}
	r := newTestRunner(t, Config{URL: "http://x.test", Requests: 4, Concurrency: 2}, d)

	first, err := r.Run(context.Background())
	require.NoError(t, err)
	second, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, first.Stats.TotalRequests)
	assert.Equal(t, 4, second.Stats.TotalRequests)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunner_RejectsOverlappingRuns(t *testing.T) {
	d := &countingDoer{delay: 50 * time.Millisecond}
	r := newTestRunner(t, Config{URL: "http://x.test", Requests: 2, Concurrency: 2}, d)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(context.Background())
	}()

	require.Eventually(t, func() bool { return d.calls.Load() > 0 }, time.Second, time.Millisecond)
	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	<-done
}

func TestRunner_PerRequestTimeout(t *testing.T) {
	d := &countingDoer{delay: time.Second}
	r := newTestRunner(t, Config{URL: "http://x.test", Requests: 3, Concurrency: 3, Timeout: 20 * time.Millisecond}, d)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.FailedRequests)
	assert.Empty(t, res.Stats.StatusCodeCounts)
}

func TestRunner_CancelStopsDispatch(t *testing.T) {
	d := &countingDoer{delay: 20 * time.Millisecond}
	r := newTestRunner(t, Config{URL: "http://x.test", Requests: 1000, Concurrency: 2}, d)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	res, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, res.Stats.TotalRequests, 1000)
	assertInvariant(t, res.Stats)
	assert.EqualValues(t, res.Stats.TotalRequests, d.calls.Load())
	assert.Zero(t, r.Inflight())
}

func TestRunner_ObserversAndProgress(t *testing.T) {
	d := &countingDoer{delay: 2 * time.Millisecond}
	updates := make(chan Progress, 100)

	var observed atomic.Int64
	r := newTestRunner(t, Config{URL: "http://x.test", Requests: 20, Concurrency: 4}, d,
		WithObserver(ObserverFunc(func(o stats.RequestOutcome) {
			observed.Add(1)
		})),
		WithUpdates(updates, 5*time.Millisecond),
	)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 20, observed.Load())

	var last Progress
	for len(updates) > 0 {
		last = <-updates
	}
	assert.True(t, last.Done)
	assert.Equal(t, 20, last.Completed)
	assert.Equal(t, 20, last.Total)
}

func TestRunner_NoGoroutineLeaks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := &countingDoer{delay: time.Millisecond}
	updates := make(chan Progress, 1)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range updates {
		}
	}()
	r := newTestRunner(t, Config{URL: "http://x.test", Requests: 30, Concurrency: 5}, d, WithUpdates(updates, time.Millisecond))

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	close(updates)
	<-drained
}

func TestRunner_FinalProgressWaitsForRoom(t *testing.T) {
	d := &countingDoer{}
	updates := make(chan Progress, 1)
	updates <- Progress{Completed: -1}

	received := make(chan []Progress, 1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		received <- []Progress{<-updates, <-updates}
	}()

	r := newTestRunner(t, Config{URL: "http://x.test", Requests: 5, Concurrency: 2}, d, WithUpdates(updates, time.Hour))
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	got := <-received
	assert.Equal(t, -1, got[0].Completed)
	assert.True(t, got[1].Done)
	assert.Equal(t, 5, got[1].Completed)
	assert.Equal(t, 5, got[1].Success)
}

func TestRunner_FinalProgressGivesUpOnCancel(t *testing.T) {
	d := &countingDoer{delay: 5 * time.Millisecond}
	updates := make(chan Progress, 1)
	updates <- Progress{}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	r := newTestRunner(t, Config{URL: "http://x.test", Requests: 1000, Concurrency: 1}, d, WithUpdates(updates, time.Hour))
	done := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run blocked on a full updates channel after cancellation")
	}
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(Config{URL: "http://x.test", Requests: 1, Concurrency: 0})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewRunner(Config{URL: "http://x.test", Requests: -1, Concurrency: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	r, err := NewRunner(Config{URL: "http://x.test", Requests: 1, Concurrency: 1})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, r.Cfg.Timeout)
}

func TestRunLoadTest_AgainstTargetServer(t *testing.T) {
	server := httptest.NewServer(dummy.NewHandler())
	defer server.Close()

	t.Run("ok", func(t *testing.T) {
		s, err := RunLoadTest(server.URL+"/ok", 10, 3, false)
		require.NoError(t, err)
		assertInvariant(t, s)
		assert.Equal(t, map[int]int{200: 10}, s.StatusCodeCounts)
	})

	t.Run("randomized", func(t *testing.T) {
		s, err := RunLoadTest(server.URL+"/ok", 10, 3, true)
		require.NoError(t, err)
		assert.Equal(t, 10, s.SuccessfulRequests)
	})

	t.Run("flaky", func(t *testing.T) {
		s, err := RunLoadTest(server.URL+"/flaky", 10, 3, false)
		require.NoError(t, err)
		assert.Equal(t, 5, s.SuccessfulRequests)
		assert.Equal(t, 5, s.FailedRequests)
		assert.Equal(t, map[int]int{200: 5, 500: 5}, s.StatusCodeCounts)
	})

	t.Run("drop", func(t *testing.T) {
		s, err := RunLoadTest(server.URL+"/drop", 10, 3, false)
		require.NoError(t, err)
		assertInvariant(t, s)
		assert.Equal(t, 10, s.FailedRequests)
		assert.Empty(t, s.StatusCodeCounts)
		assert.Len(t, s.ResponseTimes, 10)
	})

	t.Run("invalid concurrency", func(t *testing.T) {
		_, err := RunLoadTest(server.URL, 1, 0, false)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestResult_RPS(t *testing.T) {
	assert.Zero(t, Result{}.RPS())
	res := Result{Elapsed: 2 * time.Second, Stats: stats.RunStats{TotalRequests: 10}}
	assert.InDelta(t, 5.0, res.RPS(), 1e-9)
}
