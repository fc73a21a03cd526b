package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/lander/lander"
	"github.com/sokinpui/lander/model"
)

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")) // Mauve
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))            // Green
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))           // Orange
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))           // Red
	pathStyle    = lipgloss.NewStyle()
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// Runner is the work the spinner waits for.
type Runner interface {
	Execute(ctx context.Context) (model.Summary, error)
}

// --- Messages ---
type summaryMsg struct {
	model.Summary
}

type errorMsg struct {
	err     error
	summary model.Summary
}

func (e errorMsg) Error() string { return e.err.Error() }

type progressMsg struct {
	current, total int
}

// --- Model ---
type Model struct {
	ctx      context.Context
	runner   Runner
	spinner  spinner.Model
	state    state
	progress progressMsg
	summary  summaryMsg
	err      errorMsg
}

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateError
)

func New(ctx context.Context, runner Runner) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:     ctx,
		runner:  runner,
		spinner: s,
		state:   stateProcessing,
	}
}

// SetProgram forwards the app's progress updates to p.
func SetProgram(app *lander.App, p *tea.Program) {
	app.SetProgressCallback(func(current, total int) {
		p.Send(progressMsg{current: current, total: total})
	})
}

// Err returns the error the run ended with, if any.
func (m Model) Err() error {
	if m.state != stateError {
		return nil
	}
	return m.err.err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case progressMsg:
		m.progress = msg
		return m, nil

	case summaryMsg:
		m.state = stateSummary
		m.summary = msg
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.err = msg
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case stateProcessing:
		if m.progress.total > 0 {
			return fmt.Sprintf("%s Finalizing files [%d/%d]...", m.spinner.View(), m.progress.current, m.progress.total)
		}
		return fmt.Sprintf("%s Processing...", m.spinner.View())
	case stateError:
		return renderSummary(m.err.summary) + errorStyle.Render("Error: "+m.err.Error()) + "\n"
	case stateSummary:
		return renderSummary(m.summary.Summary)
	default:
		return ""
	}
}

func renderSummary(s model.Summary) string {
	var b strings.Builder

	if s.Message != "" {
		b.WriteString(headerStyle.Render(s.Message))
		b.WriteString("\n\n")
	}

	hasContent := false
	section := func(style lipgloss.Style, title string, files []string) {
		if len(files) == 0 {
			return
		}
		hasContent = true
		b.WriteString(style.Render(title))
		b.WriteString("\n")
		for _, f := range files {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}
	section(successStyle, "Created:", s.Created)
	section(successStyle, "Modified:", s.Modified)
	section(warningStyle, "Deleted:", s.Deleted)
	section(errorStyle, "Failed:", s.Failed)

	if len(s.Diagnostics) > 0 {
		b.WriteString(faintStyle.Render("Earlier stages:"))
		b.WriteString("\n")
		for _, d := range s.Diagnostics {
			line, _, _ := strings.Cut(d.String(), "\n")
			b.WriteString(faintStyle.Render("  " + line))
			b.WriteString("\n")
		}
	}

	if s.Preview != "" {
		b.WriteString("\n")
		b.WriteString(s.Preview)
	}

	if !hasContent && s.Message == "" {
		b.WriteString(faintStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) run() tea.Msg {
	summary, err := m.runner.Execute(m.ctx)
	if err != nil {
		// Check for detailed error to print stack
		var detailed *lander.DetailedError
		if errors.As(err, &detailed) {
			// The TUI will exit, so we can print to stderr here for the stack trace.
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		return errorMsg{err: err, summary: summary}
	}
	return summaryMsg{
		Summary: summary,
	}
}
