package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"loadq/internal/runner"
	"loadq/internal/stats"
)

// Summary is the rendered view of a finished run.
type Summary struct {
	RunID               string               `json:"run_id"`
	URL                 string               `json:"url"`
	Concurrency         int                  `json:"concurrency"`
	RandomizeQueries    bool                 `json:"randomize_queries"`
	StartedAt           time.Time            `json:"started_at"`
	ElapsedSeconds      float64              `json:"elapsed_seconds"`
	RPS                 float64              `json:"rps"`
	TotalRequests       int                  `json:"total_requests"`
	SuccessfulRequests  int                  `json:"successful_requests"`
	FailedRequests      int                  `json:"failed_requests"`
	SuccessRate         float64              `json:"success_rate"`
	AverageResponseTime float64              `json:"average_response_time_seconds"`
	Latency             stats.LatencySummary `json:"latency_seconds"`
	StatusCodes         map[int]int          `json:"status_codes"`
	Errors              map[string]int       `json:"errors"`
}

func NewSummary(res runner.Result) Summary {
	s := res.Stats
	return Summary{
		RunID:               res.RunID,
		URL:                 res.Config.URL,
		Concurrency:         res.Config.Concurrency,
		RandomizeQueries:    res.Config.RandomizeQueries,
		StartedAt:           res.StartedAt,
		ElapsedSeconds:      res.Elapsed.Seconds(),
		RPS:                 res.RPS(),
		TotalRequests:       s.TotalRequests,
		SuccessfulRequests:  s.SuccessfulRequests,
		FailedRequests:      s.FailedRequests,
		SuccessRate:         s.SuccessRate(),
		AverageResponseTime: s.AverageResponseTime(),
		Latency:             s.Summary(),
		StatusCodes:         nonNil(s.StatusCodeCounts),
		Errors:              nonNil(s.ErrorCounts),
	}
}

func nonNil[K comparable](m map[K]int) map[K]int {
	if m == nil {
		return map[K]int{}
	}
	return m
}

// StatusDistribution renders the status histogram ordered by code,
// e.g. "200: 8, 500: 2".
func (s Summary) StatusDistribution() string {
	if len(s.StatusCodes) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(s.StatusCodes))
	for _, code := range slices.Sorted(maps.Keys(s.StatusCodes)) {
		parts = append(parts, fmt.Sprintf("%d: %d", code, s.StatusCodes[code]))
	}
	return strings.Join(parts, ", ")
}

// ErrorsByCount returns transport error messages, most frequent first.
func (s Summary) ErrorsByCount() []string {
	msgs := slices.Collect(maps.Keys(s.Errors))
	slices.SortFunc(msgs, func(a, b string) int {
		if s.Errors[a] != s.Errors[b] {
			return s.Errors[b] - s.Errors[a]
		}
		return strings.Compare(a, b)
	})
	return msgs
}

func ms(sec float64) float64 { return sec * 1000 }

// WriteText prints the plain-text summary.
func WriteText(w io.Writer, s Summary) error {
	var b strings.Builder
	sep := strings.Repeat("=", 70)

	fmt.Fprintf(&b, "LOAD TEST SUMMARY\n%s\n", sep)
	fmt.Fprintf(&b, "Target URL          : %s\n", s.URL)
	fmt.Fprintf(&b, "Run ID              : %s\n", s.RunID)
	fmt.Fprintf(&b, "Duration            : %s\n", time.Duration(s.ElapsedSeconds*float64(time.Second)).Round(time.Millisecond))
	fmt.Fprintf(&b, "Total Requests      : %d\n", s.TotalRequests)
	fmt.Fprintf(&b, "Successful Requests : %d\n", s.SuccessfulRequests)
	fmt.Fprintf(&b, "Failed Requests     : %d\n", s.FailedRequests)
	fmt.Fprintf(&b, "Success Rate        : %.2f%%\n", s.SuccessRate)
	fmt.Fprintf(&b, "Actual RPS          : %.2f\n", s.RPS)
	fmt.Fprintf(&b, "Average Response    : %.4f seconds\n", s.AverageResponseTime)
	fmt.Fprintf(&b, "Status Codes        : %s\n", s.StatusDistribution())

	if s.Latency.Count > 0 {
		fmt.Fprintf(&b, "\nRESPONSE TIMES (ms)\n")
		fmt.Fprintf(&b, "   Min : %.2f\n", ms(s.Latency.Min))
		fmt.Fprintf(&b, "   P50 : %.2f\n", ms(s.Latency.P50))
		fmt.Fprintf(&b, "   P90 : %.2f\n", ms(s.Latency.P90))
		fmt.Fprintf(&b, "   P95 : %.2f\n", ms(s.Latency.P95))
		fmt.Fprintf(&b, "   P99 : %.2f\n", ms(s.Latency.P99))
		fmt.Fprintf(&b, "   Max : %.2f\n", ms(s.Latency.Max))
	}

	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "\nFAILURE SUMMARY\n")
		for _, msg := range s.ErrorsByCount() {
			fmt.Fprintf(&b, "   %d x %s\n", s.Errors[msg], msg)
		}
	}
	fmt.Fprintf(&b, "%s\n", sep)

	_, err := io.WriteString(w, b.String())
	return err
}
