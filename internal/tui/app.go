package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mpataki/mend/internal/models"
	"github.com/mpataki/mend/internal/orchestrator"
)

type View int

const (
	ViewRunList View = iota
	ViewRunDetail
	ViewOutput
)

type App struct {
	orchestrator *orchestrator.Orchestrator

	view            View
	runs            []*models.Run
	selectedIdx     int
	selectedRun     *models.Run
	calls           []*models.ToolCall
	selectedCallIdx int
	output          viewport.Model

	width  int
	height int
	err    error
}

func NewApp(orch *orchestrator.Orchestrator) *App {
	return &App{
		orchestrator: orch,
		view:         ViewRunList,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadRuns, a.tickCmd())
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) hasRunningRuns() bool {
	for _, run := range a.runs {
		if run.Status == models.RunStatusRunning {
			return true
		}
	}
	return false
}

type tickMsg time.Time

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.output.Width = msg.Width
		a.output.Height = max(msg.Height-4, 1)
		return a, nil

	case runsLoadedMsg:
		a.runs = msg.runs
		a.err = msg.err
		if a.selectedIdx >= len(a.runs) && a.selectedIdx > 0 {
			a.selectedIdx = len(a.runs) - 1
		}
		return a, nil

	case tickMsg:
		// Only refresh while something is actually moving.
		if a.view == ViewRunList && a.hasRunningRuns() {
			return a, tea.Batch(a.loadRuns, a.tickCmd())
		}
		// Keep ticking to notice runs started from another terminal.
		return a, a.tickCmd()

	case runDetailMsg:
		a.selectedRun = msg.run
		a.calls = msg.calls
		a.err = msg.err
		if a.err == nil {
			a.view = ViewRunDetail
		}
		return a, nil

	case runDeletedMsg:
		a.err = msg.err
		if a.selectedIdx >= len(a.runs)-1 && a.selectedIdx > 0 {
			a.selectedIdx--
		}
		return a, a.loadRuns
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.view {
	case ViewRunList:
		return a.handleRunListKey(msg)
	case ViewRunDetail:
		return a.handleRunDetailKey(msg)
	case ViewOutput:
		return a.handleOutputKey(msg)
	}
	return a, nil
}

func (a *App) handleRunListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.runs)-1 {
			a.selectedIdx++
		}

	case "enter":
		if len(a.runs) > 0 && a.selectedIdx < len(a.runs) {
			return a, a.loadRunDetail(a.runs[a.selectedIdx].ID)
		}

	case "r":
		return a, a.loadRuns

	case "d":
		if len(a.runs) > 0 && a.selectedIdx < len(a.runs) {
			return a, a.deleteRun(a.runs[a.selectedIdx].ID)
		}
	}

	return a, nil
}

func (a *App) handleRunDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewRunList
		a.selectedRun = nil
		a.calls = nil
		a.selectedCallIdx = 0

	case "ctrl+c":
		return a, tea.Quit

	case "up", "k":
		if a.selectedCallIdx > 0 {
			a.selectedCallIdx--
		}

	case "down", "j":
		if a.selectedCallIdx < len(a.calls)-1 {
			a.selectedCallIdx++
		}

	case "enter":
		if len(a.calls) > 0 && a.selectedCallIdx < len(a.calls) {
			a.openOutput(a.calls[a.selectedCallIdx])
		}
	}

	return a, nil
}

func (a *App) handleOutputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewRunDetail
		return a, nil

	case "ctrl+c":
		return a, tea.Quit
	}

	var cmd tea.Cmd
	a.output, cmd = a.output.Update(msg)
	return a, cmd
}

// openOutput loads one tool call's full record into the scrollable view.
func (a *App) openOutput(call *models.ToolCall) {
	var b strings.Builder
	fmt.Fprintf(&b, "Turn %d: %s\n\n", call.Turn, call.Tool)
	fmt.Fprintf(&b, "Arguments:\n%s\n\n", call.Arguments)
	if call.IsError {
		b.WriteString("Result (error):\n")
	} else {
		b.WriteString("Result:\n")
	}
	b.WriteString(call.Result)

	a.output = viewport.New(a.width, max(a.height-4, 1))
	a.output.SetContent(b.String())
	a.view = ViewOutput
}

func (a *App) View() string {
	switch a.view {
	case ViewRunList:
		return a.viewRunList()
	case ViewRunDetail:
		return a.viewRunDetail()
	case ViewOutput:
		return a.viewOutput()
	}
	return ""
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	statusRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	statusSucceeded = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func (a *App) viewRunList() string {
	s := titleStyle.Render("Mend") + "\n\n"

	if a.err != nil {
		s += fmt.Sprintf("Error: %v\n", a.err)
	}

	if len(a.runs) == 0 {
		s += "No runs yet. Start one with 'mend run'.\n"
	} else {
		s += "Recent Runs\n"
		s += "───────────\n"

		for i, run := range a.runs {
			line := a.formatRunLine(run)
			isSelected := i == a.selectedIdx
			isRunning := run.Status == models.RunStatusRunning

			if isSelected {
				line = selectedStyle.Render("▶ " + line)
			} else if !isRunning {
				line = "  " + dimStyle.Render(line)
			} else {
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	s += "\n" + helpStyle.Render("[enter] view  [d] delete  [r] refresh  [q] quit")

	return s
}

func (a *App) formatRunLine(run *models.Run) string {
	status := a.formatStatus(run.Status)
	age := a.formatAge(run.CreatedAt)
	return fmt.Sprintf("#%-3d %-18s %s  %-6s  %s",
		run.ID, truncate(filepath.Base(run.ProjectDir), 18), status, age, truncate(run.Message, 40))
}

func (a *App) formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		return fmt.Sprintf("%dd", days)
	}
}

func (a *App) formatStatus(status models.RunStatus) string {
	switch status {
	case models.RunStatusRunning:
		return statusRunning.Render("● running")
	case models.RunStatusSucceeded:
		return statusSucceeded.Render("✓ succeeded")
	case models.RunStatusFailed:
		return statusFailed.Render("✗ failed")
	default:
		return string(status)
	}
}

func (a *App) viewRunDetail() string {
	if a.selectedRun == nil {
		return "No run selected"
	}

	run := a.selectedRun

	header := fmt.Sprintf("Run #%d: %s", run.ID, filepath.Base(run.ProjectDir))
	s := titleStyle.Render(header) + "  " + a.formatStatus(run.Status) + "\n\n"

	s += labelStyle.Render("Model: ") + run.Model + "\n"
	s += labelStyle.Render("Project: ") + dimStyle.Render(run.ProjectDir) + "\n"
	if run.Message != "" {
		s += labelStyle.Render("Result: ") + run.Message + "\n"
	}
	s += "\n"

	s += "Tool Calls\n"
	s += "──────────\n"

	if len(a.calls) == 0 {
		s += "(no tool calls yet)\n"
	} else {
		for i, call := range a.calls {
			marker := statusSucceeded.Render("✓")
			if call.IsError {
				marker = statusFailed.Render("✗")
			}

			line := fmt.Sprintf("%2d. %-10s %s  %s",
				call.Turn, call.Tool, marker, truncate(firstLine(call.Result), 50))

			if i == a.selectedCallIdx {
				line = selectedStyle.Render("▶ " + line)
			} else {
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	s += "\n" + helpStyle.Render("[↑/↓] select  [enter] output  [esc] back  [q] quit")

	return s
}

func (a *App) viewOutput() string {
	s := titleStyle.Render("Output") + "\n"
	s += a.output.View() + "\n"
	s += helpStyle.Render("[↑/↓] scroll  [esc] back  [q] quit")
	return s
}

// Messages

type runsLoadedMsg struct {
	runs []*models.Run
	err  error
}

type runDetailMsg struct {
	run   *models.Run
	calls []*models.ToolCall
	err   error
}

type runDeletedMsg struct {
	runID int64
	err   error
}

// Commands

func (a *App) loadRuns() tea.Msg {
	runs, err := a.orchestrator.ListRuns(20)
	return runsLoadedMsg{runs: runs, err: err}
}

func (a *App) loadRunDetail(id int64) tea.Cmd {
	return func() tea.Msg {
		run, err := a.orchestrator.GetRun(id)
		if err != nil {
			return runDetailMsg{err: err}
		}

		calls, err := a.orchestrator.ListToolCalls(id)
		return runDetailMsg{run: run, calls: calls, err: err}
	}
}

func (a *App) deleteRun(id int64) tea.Cmd {
	return func() tea.Msg {
		if err := a.orchestrator.DeleteRun(id); err != nil {
			return runDeletedMsg{err: err}
		}
		return runDeletedMsg{runID: id}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
