package live

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"loadq/internal/runner"
)

func TestModel_Percent(t *testing.T) {
	tests := []struct {
		name  string
		stats runner.Progress
		want  float64
	}{
		{"zero total", runner.Progress{Total: 0}, 1},
		{"halfway", runner.Progress{Total: 10, Completed: 5}, 0.5},
		{"overshoot clamps", runner.Progress{Total: 10, Completed: 12}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(tt.stats.Total)
			m.Stats = tt.stats
			assert.InDelta(t, tt.want, m.Percent(), 1e-9)
		})
	}
}

func TestModel_ProgressFeedsSparklines(t *testing.T) {
	m := NewModel(10)
	m.LastUpdate = time.Now().Add(-time.Second)

	next, cmd := m.Update(runner.Progress{Total: 10, Completed: 4, LastLatency: 25 * time.Millisecond})
	assert.NotNil(t, cmd)
	assert.Equal(t, 4, next.LastCompleted)
	assert.Greater(t, next.RPS, 0.0)
	assert.Equal(t, []float64{25}, next.LatencyLine.Data)
	assert.Len(t, next.RpsLine.Data, 1)
}

func TestModel_WindowSizeKeepsMinimumSparklineWidth(t *testing.T) {
	m := NewModel(10)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 10})
	assert.Equal(t, 10, next.RpsLine.Width)
	assert.Equal(t, 10, next.LatencyLine.Width)

	next, _ = next.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	assert.Equal(t, 42, next.RpsLine.Width)
	assert.Equal(t, 96, next.Progress.Width)
}
