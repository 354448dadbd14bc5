package stats

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// LatencySummary holds latency quantiles in seconds.
type LatencySummary struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

// newLatencyHistogram tracks 1us to 10min with 3 significant figures.
func newLatencyHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)
}

// NewLatencySummary computes quantiles over response times given in seconds.
// Values outside the histogram range are clamped to it.
func NewLatencySummary(times []float64) LatencySummary {
	if len(times) == 0 {
		return LatencySummary{}
	}

	h := newLatencyHistogram()
	for _, t := range times {
		us := int64(t * 1e6)
		if us < h.LowestTrackableValue() {
			us = h.LowestTrackableValue()
		}
		if us > h.HighestTrackableValue() {
			us = h.HighestTrackableValue()
		}
		_ = h.RecordValue(us)
	}

	toSec := func(us int64) float64 { return float64(us) / 1e6 }
	return LatencySummary{
		Count: h.TotalCount(),
		Min:   toSec(h.Min()),
		Mean:  h.Mean() / 1e6,
		P50:   toSec(h.ValueAtQuantile(50)),
		P90:   toSec(h.ValueAtQuantile(90)),
		P95:   toSec(h.ValueAtQuantile(95)),
		P99:   toSec(h.ValueAtQuantile(99)),
		Max:   toSec(h.Max()),
	}
}

// Summary computes the latency quantiles of a snapshot.
func (s RunStats) Summary() LatencySummary {
	return NewLatencySummary(s.ResponseTimes)
}
