package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"loadq/internal/runner"
)

// ExportLatencyCSV writes the latency-vs-request-index series, one row per
// completed request in completion order.
func ExportLatencyCSV(times []float64, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"request", "response_time_seconds"}); err != nil {
		return err
	}
	for i, t := range times {
		record := []string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(t, 'f', 6, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// ExportJSON writes the summary as indented JSON.
func ExportJSON(s Summary, filename string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// Export writes prefix_summary.json and prefix_latency.csv and returns the
// paths written.
func Export(res runner.Result, prefix string) ([]string, error) {
	summaryPath := prefix + "_summary.json"
	if err := ExportJSON(NewSummary(res), summaryPath); err != nil {
		return nil, fmt.Errorf("export summary: %w", err)
	}

	seriesPath := prefix + "_latency.csv"
	if err := ExportLatencyCSV(res.Stats.ResponseTimes, seriesPath); err != nil {
		return nil, fmt.Errorf("export latency series: %w", err)
	}

	return []string{summaryPath, seriesPath}, nil
}
