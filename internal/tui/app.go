package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"loadq/internal/report"
	"loadq/internal/runner"
	"loadq/internal/tui/live"
	"loadq/internal/tui/result"
	"loadq/internal/tui/styles"
)

// TickInterval is how often the dashboard asks the runner for progress.
const TickInterval = 200 * time.Millisecond

// runHandle carries the outcome of the background run. done is closed once
// res and err are set.
type runHandle struct {
	done chan struct{}
	res  runner.Result
	err  error
}

type doneMsg struct {
	res runner.Result
	err error
}

type Model struct {
	Cfg    runner.Config
	Live   live.Model
	Result result.Model

	Finished  bool
	Cancelled bool
	Err       error

	updates <-chan runner.Progress
	run     *runHandle
	cancel  context.CancelFunc

	Width  int
	Height int
}

func NewModel(cfg runner.Config, updates <-chan runner.Progress, run *runHandle, cancel context.CancelFunc) Model {
	return Model{
		Cfg:     cfg,
		Live:    live.NewModel(cfg.Requests),
		updates: updates,
		run:     run,
		cancel:  cancel,
	}
}

func waitForUpdate(sub <-chan runner.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-sub
		if !ok {
			return nil
		}
		return p
	}
}

func waitForResult(h *runHandle) tea.Cmd {
	return func() tea.Msg {
		<-h.done
		return doneMsg{res: h.res, err: h.err}
	}
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.updates != nil {
		cmds = append(cmds, waitForUpdate(m.updates))
	}
	if m.run != nil {
		cmds = append(cmds, waitForResult(m.run))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.Finished {
				return m, tea.Quit
			}
			// First press stops dispatching; the result screen follows.
			m.Cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Live, _ = m.Live.Update(msg)
		m.Result, _ = m.Result.Update(msg)
		return m, nil

	case runner.Progress:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, tea.Batch(cmd, waitForUpdate(m.updates))

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, cmd

	case doneMsg:
		m.Finished = true
		m.Err = msg.err
		m.Result = result.NewModel(report.NewSummary(msg.res), msg.res.Stats.ResponseTimes)
		if m.Width > 0 {
			m.Result, _ = m.Result.Update(tea.WindowSizeMsg{Width: m.Width, Height: m.Height})
		}
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render("loadq"))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("URL: %s\n", m.Cfg.URL))
	s.WriteString(styles.Subtle.Render(fmt.Sprintf(
		"Requests: %d | Concurrency: %d | Random queries: %t | Timeout: %s",
		m.Cfg.Requests, m.Cfg.Concurrency, m.Cfg.RandomizeQueries, m.Cfg.Timeout,
	)))
	s.WriteString("\n\n")

	if m.Finished {
		if m.Err != nil {
			s.WriteString(styles.Warn.Render("Run stopped early: " + m.Err.Error()))
			s.WriteString("\n\n")
		}
		s.WriteString(m.Result.View())
		return s.String()
	}

	s.WriteString(m.Live.View())
	s.WriteString("\n\n")
	if m.Cancelled {
		s.WriteString(styles.Warn.Render("Stopping, waiting for in-flight requests..."))
	} else {
		s.WriteString(styles.RenderKey("q", "stop run"))
	}
	return s.String()
}

// Run executes the runner behind the interactive dashboard and returns the
// run result once the user leaves the result screen. The runner must have
// been built with WithUpdates(updates, ...).
func Run(ctx context.Context, r *runner.Runner, updates chan runner.Progress) (runner.Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	h := &runHandle{done: make(chan struct{})}
	go func() {
		h.res, h.err = r.Run(runCtx)
		close(updates)
		close(h.done)
	}()

	m := NewModel(r.Cfg, updates, h, cancel)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		cancel()
		<-h.done
		return h.res, fmt.Errorf("dashboard: %w", err)
	}

	cancel()
	<-h.done
	return h.res, h.err
}
