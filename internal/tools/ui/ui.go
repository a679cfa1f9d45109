package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("7")).PaddingLeft(2)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type tickMsg time.Time

type doneMsg struct {
	details []string
	err     error
}

type model struct {
	title   string
	run     func() ([]string, error)
	cancel  context.CancelFunc
	started time.Time
	frame   int
	done    bool
	details []string
	err     error
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), func() tea.Msg {
		details, err := m.run()
		return doneMsg{details: details, err: err}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, tick()
	case doneMsg:
		m.done = true
		m.details, m.err = msg.details, msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.cancel()
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.done {
		return RenderReport(m.title, m.err == nil, m.details, m.err) + "\n"
	}
	frame := spinnerFrames[m.frame%len(spinnerFrames)]
	elapsed := time.Since(m.started).Round(100 * time.Millisecond)
	return fmt.Sprintf("%s %s %s\n", frame, titleStyle.Render(m.title), detailStyle.Render(elapsed.String()))
}

// Run executes fn behind an interactive progress view and returns its
// result. Pressing q or ctrl+c cancels the context passed to fn.
func Run(title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := model{
		title:   title,
		cancel:  cancel,
		started: time.Now(),
		run:     func() ([]string, error) { return fn(ctx) },
	}
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, fmt.Errorf("run terminal ui: %w", err)
	}
	fm, ok := final.(model)
	if !ok {
		return nil, fmt.Errorf("unexpected terminal ui model %T", final)
	}
	return fm.details, fm.err
}

// RenderReport draws a titled status box with one line per detail.
func RenderReport(title string, ok bool, details []string, err error) string {
	status := okStyle.Render("OK")
	if !ok {
		status = failStyle.Render("FAILED")
	}
	lines := []string{titleStyle.Render(title) + "  " + status}
	for _, d := range details {
		lines = append(lines, detailStyle.Render("• "+d))
	}
	if err != nil {
		lines = append(lines, failStyle.Render("error: ")+err.Error())
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
