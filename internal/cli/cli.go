package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/paulbellamy/ratecounter"

	"loadq/internal/report"
	"loadq/internal/runner"
	"loadq/internal/stats"
)

// RateObserver counts completions over a sliding one second window.
type RateObserver struct {
	counter *ratecounter.RateCounter
}

func NewRateObserver() *RateObserver {
	return &RateObserver{counter: ratecounter.NewRateCounter(time.Second)}
}

func (o *RateObserver) Observe(stats.RequestOutcome) {
	o.counter.Incr(1)
}

func (o *RateObserver) Rate() int64 {
	return o.counter.Rate()
}

// Start runs r headless: header, a progress line redrawn on every update,
// then the summary. updates must be the channel r was built with.
func Start(ctx context.Context, out io.Writer, r *runner.Runner, updates <-chan runner.Progress, rate *RateObserver) (runner.Result, error) {
	printHeader(out, r.Cfg)

	type done struct {
		res runner.Result
		err error
	}
	finished := make(chan done, 1)
	go func() {
		res, err := r.Run(ctx)
		finished <- done{res, err}
	}()

	startTime := time.Now()
	for {
		select {
		case p := <-updates:
			printProgress(out, p, time.Since(startTime), rate)
		case d := <-finished:
			// Drain what the runner queued before returning.
			for drained := false; !drained; {
				select {
				case p := <-updates:
					printProgress(out, p, time.Since(startTime), rate)
				default:
					drained = true
				}
			}
			fmt.Fprintf(out, "\n\n")
			if d.err != nil {
				fmt.Fprintf(out, "Run stopped early: %v\n\n", d.err)
			}
			if err := report.WriteText(out, report.NewSummary(d.res)); err != nil {
				return d.res, err
			}
			return d.res, d.err
		}
	}
}

func printHeader(out io.Writer, cfg runner.Config) {
	fmt.Fprintf(out, "\nSTARTING LOAD TEST\n")
	fmt.Fprintf(out, "======================================================================\n")
	fmt.Fprintf(out, "Target URL     : %s\n", cfg.URL)
	fmt.Fprintf(out, "Requests       : %d\n", cfg.Requests)
	fmt.Fprintf(out, "Concurrency    : %d\n", cfg.Concurrency)
	fmt.Fprintf(out, "Random queries : %t\n", cfg.RandomizeQueries)
	fmt.Fprintf(out, "Timeout        : %s\n", cfg.Timeout)
	fmt.Fprintf(out, "======================================================================\n\n")
}

func printProgress(out io.Writer, p runner.Progress, elapsed time.Duration, rate *RateObserver) {
	pct := 1.0
	if p.Total > 0 {
		pct = float64(p.Completed) / float64(p.Total)
	}
	var rps int64
	if rate != nil {
		rps = rate.Rate()
	}
	fmt.Fprintf(out, "\r%s %3.0f%% | %d/%d | %s | Inf: %3d | RPS: %d | OK: %d | Err: %d",
		progressBar(pct, 20), pct*100,
		p.Completed, p.Total,
		elapsed.Round(time.Second),
		p.Inflight,
		rps,
		p.Success,
		p.Failed,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

// HandleExport writes the report files when prefix is set.
func HandleExport(out io.Writer, res runner.Result, prefix string) error {
	if prefix == "" {
		return nil
	}
	paths, err := report.Export(res, prefix)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Reports saved to %s\n", strings.Join(paths, ", "))
	return nil
}
