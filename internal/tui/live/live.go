package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"loadq/internal/runner"
	"loadq/internal/tui/components"
	"loadq/internal/tui/styles"
)

// Model shows a run while it is in progress.
type Model struct {
	Stats    runner.Progress
	Progress progress.Model

	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	StartTime     time.Time
	LastUpdate    time.Time
	LastCompleted int
	RPS           float64

	Width  int
	Height int
}

func NewModel(total int) Model {
	now := time.Now()
	return Model{
		Stats:       runner.Progress{Total: total},
		Progress:    progress.New(progress.WithDefaultGradient()),
		RpsLine:     components.NewSparkline(40, "RPS", styles.Active),
		LatencyLine: components.NewSparkline(40, "Last latency (ms)", styles.Warn),
		StartTime:   now,
		LastUpdate:  now,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.Progress:
		now := time.Now()
		dt := now.Sub(m.LastUpdate).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}

		m.RPS = float64(msg.Completed-m.LastCompleted) / dt
		m.RpsLine.Add(m.RPS)
		m.LatencyLine.Add(float64(msg.LastLatency) / float64(time.Millisecond))

		m.Stats = msg
		m.LastCompleted = msg.Completed
		m.LastUpdate = now

		return m, m.Progress.SetPercent(m.Percent())

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 8
		if half < 10 {
			half = 10
		}
		m.RpsLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// Percent is the fraction of requests that reached a terminal outcome.
func (m Model) Percent() float64 {
	if m.Stats.Total <= 0 {
		return 1
	}
	pct := float64(m.Stats.Completed) / float64(m.Stats.Total)
	if pct > 1 {
		pct = 1
	}
	return pct
}

func (m Model) View() string {
	s := strings.Builder{}

	errRate := 0.0
	if m.Stats.Completed > 0 {
		errRate = float64(m.Stats.Failed) / float64(m.Stats.Completed) * 100
	}

	col1 := fmt.Sprintf("REQ: %d/%d\nINF: %d", m.Stats.Completed, m.Stats.Total, m.Stats.Inflight)
	col2 := fmt.Sprintf("OK:   %d\nFAIL: %d (%.2f%%)", m.Stats.Success, m.Stats.Failed, errRate)
	col3 := fmt.Sprintf("RPS: %.1f\nELAPSED: %s", m.RPS, time.Since(m.StartTime).Round(time.Second))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(styles.ErrorRateStyle(errRate).Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	return s.String()
}
