package runner

import (
	"time"

	"github.com/sirupsen/logrus"
)

type Option func(*Runner)

// WithClient replaces the pooled *http.Client built from the config.
func WithClient(c Doer) Option {
	return func(r *Runner) { r.client = c }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithObserver registers observers called once per recorded outcome.
func WithObserver(obs ...Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, obs...) }
}

// WithUpdates makes Run push a Progress snapshot every interval. Periodic
// sends never block: a full channel drops the update. The final snapshot
// (Done set) waits for room, so the consumer must keep receiving until Run
// returns or cancel the run context.
func WithUpdates(ch chan<- Progress, interval time.Duration) Option {
	return func(r *Runner) {
		r.updates = ch
		if interval > 0 {
			r.tickInterval = interval
		}
	}
}

// WithRandom overrides the generator used for randomized paths and queries.
func WithRandom(fn func(n int) string) Option {
	return func(r *Runner) { r.random = fn }
}
