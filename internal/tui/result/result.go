package result

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"loadq/internal/report"
	"loadq/internal/tui/components"
	"loadq/internal/tui/styles"
)

const defaultPlotWidth = 60

// Model is the end-of-run screen: summary boxes plus the latency series.
type Model struct {
	Summary report.Summary
	Series  []float64
	Plot    components.Sparkline

	Width  int
	Height int
}

func NewModel(s report.Summary, series []float64) Model {
	m := Model{Summary: s, Series: series}
	m.Plot = m.plot(defaultPlotWidth)
	return m
}

func (m Model) plot(width int) components.Sparkline {
	return components.NewPlot(m.Series, width, "Response time per request (completion order)", styles.Warn)
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		if w := msg.Width - 8; w > 10 {
			m.Plot = m.plot(w)
		}
	}
	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}
	sum := m.Summary

	s.WriteString(styles.Title.Render("Load Test Complete"))
	s.WriteString("\n\n")

	overview := fmt.Sprintf(
		"Total Requests: %d\nSuccessful:     %d\nFailed:         %d\nAvg Response:   %.4f s\nActual RPS:     %.2f",
		sum.TotalRequests, sum.SuccessfulRequests, sum.FailedRequests, sum.AverageResponseTime, sum.RPS,
	)
	latency := fmt.Sprintf(
		"P50: %.2f ms\nP90: %.2f ms\nP95: %.2f ms\nP99: %.2f ms\nMax: %.2f ms",
		sum.Latency.P50*1000, sum.Latency.P90*1000, sum.Latency.P95*1000, sum.Latency.P99*1000, sum.Latency.Max*1000,
	)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(styles.Active.Render("Overview")+"\n"+overview),
		styles.Box.Render(styles.Active.Render("Latency")+"\n"+latency),
	))
	s.WriteString("\n\n")

	s.WriteString(styles.Box.Render(styles.Active.Render("Status Codes") + "\n" + sum.StatusDistribution()))
	s.WriteString("\n")

	if len(sum.Errors) > 0 {
		var errs strings.Builder
		for _, msg := range sum.ErrorsByCount() {
			fmt.Fprintf(&errs, "%d x %s\n", sum.Errors[msg], msg)
		}
		s.WriteString(styles.Box.Render(styles.Error.Render("Failures") + "\n" + strings.TrimSuffix(errs.String(), "\n")))
		s.WriteString("\n")
	}

	if len(m.Series) > 0 {
		s.WriteString(styles.Box.Render(m.Plot.View()))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(styles.RenderKey("q", "quit"))
	return s.String()
}
