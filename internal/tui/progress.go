package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/qualgate/internal/executor"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// ProgressEventMsg forwards one executor event to the view.
type ProgressEventMsg struct {
	Event executor.Event
}

// ProgressDoneMsg is sent once the execution returned.
type ProgressDoneMsg struct {
	Result *models.ChecklistExecutionResult
	Err    error
}

type itemLine struct {
	id     string
	status models.ItemStatus
}

type logEntry struct {
	timestamp time.Time
	message   string
}

// ProgressView displays a running checklist execution.
type ProgressView struct {
	executionID string
	state       models.ExecutionState
	progress    int
	current     string
	items       []itemLine
	logs        []logEntry
	done        bool
	result      *models.ChecklistExecutionResult
	err         error
	width       int

	headerStyle   lipgloss.Style
	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
	progressFull  lipgloss.Style
	progressEmpty lipgloss.Style
	passStyle     lipgloss.Style
	failStyle     lipgloss.Style
	pendingStyle  lipgloss.Style
	mutedStyle    lipgloss.Style
}

// NewProgressView creates an empty ProgressView.
func NewProgressView() *ProgressView {
	return &ProgressView{
		width: 80,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),
		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),
		progressFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),
		progressEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		passStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),
		failStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		mutedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Init implements tea.Model.
func (v *ProgressView) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (v *ProgressView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return v, tea.Quit
		}
	case ProgressEventMsg:
		v.apply(msg.Event)
	case ProgressDoneMsg:
		v.done = true
		v.result = msg.Result
		v.err = msg.Err
		if msg.Result != nil {
			v.state = msg.Result.State
			v.progress = msg.Result.Progress
		}
		return v, tea.Quit
	}
	return v, nil
}

func (v *ProgressView) apply(ev executor.Event) {
	if ev.ExecutionID != "" {
		v.executionID = ev.ExecutionID
	}
	v.progress = ev.Progress
	if ev.State != "" {
		v.state = ev.State
	}

	switch ev.Type {
	case executor.EventItemStarted:
		v.current = ev.ItemID
	case executor.EventItemFinished:
		v.current = ""
		v.setItem(ev.ItemID, ev.ItemStatus)
	}
	if ev.Message != "" {
		v.logs = append(v.logs, logEntry{timestamp: ev.Timestamp, message: ev.Message})
	}
}

func (v *ProgressView) setItem(id string, status models.ItemStatus) {
	for i := range v.items {
		if v.items[i].id == id {
			v.items[i].status = status
			return
		}
	}
	v.items = append(v.items, itemLine{id: id, status: status})
}

// View implements tea.Model.
func (v *ProgressView) View() string {
	var b strings.Builder
	b.WriteString(v.headerStyle.Render("Quality Validation"))
	b.WriteString("\n")

	if v.executionID != "" {
		b.WriteString(v.labelStyle.Render("Execution:"))
		b.WriteString(v.valueStyle.Render(v.executionID))
		b.WriteString("\n")
	}
	state := string(v.state)
	if state == "" {
		state = "pending"
	}
	b.WriteString(v.labelStyle.Render("State:"))
	b.WriteString(v.valueStyle.Render(state))
	b.WriteString("\n")
	if v.current != "" {
		b.WriteString(v.labelStyle.Render("Running:"))
		b.WriteString(v.valueStyle.Render(v.current))
		b.WriteString("\n")
	}
	b.WriteString(v.renderProgressBar(v.progress, 30))
	b.WriteString("\n\n")

	for _, it := range v.items {
		b.WriteString("  ")
		b.WriteString(v.statusStyle(it.status).Render(fmt.Sprintf("%-16s", it.status)))
		b.WriteString(it.id)
		b.WriteString("\n")
	}

	if len(v.logs) > 0 {
		b.WriteString("\n")
		start := max(0, len(v.logs)-6)
		for _, entry := range v.logs[start:] {
			b.WriteString("  ")
			b.WriteString(v.mutedStyle.Render(entry.timestamp.Format("15:04:05")))
			b.WriteString(" ")
			b.WriteString(entry.message)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	switch {
	case v.err != nil:
		b.WriteString(v.failStyle.Render(fmt.Sprintf("Error: %v", v.err)))
	case v.done:
		b.WriteString(v.mutedStyle.Render("Done."))
	default:
		b.WriteString(v.mutedStyle.Render("Press q to hide"))
	}
	b.WriteString("\n")
	return b.String()
}

func (v *ProgressView) statusStyle(s models.ItemStatus) lipgloss.Style {
	switch s {
	case models.ItemPassed:
		return v.passStyle
	case models.ItemFailed, models.ItemError:
		return v.failStyle
	case models.ItemPending, models.ItemQueued:
		return v.pendingStyle
	default:
		return v.mutedStyle
	}
}

func (v *ProgressView) renderProgressBar(pct, width int) string {
	filled := pct * width / 100
	filled = min(max(filled, 0), width)
	bar := v.progressFull.Render(strings.Repeat("█", filled)) +
		v.progressEmpty.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3d%%", bar, pct)
}

// Result returns the final result once the execution finished.
func (v *ProgressView) Result() (*models.ChecklistExecutionResult, error) {
	return v.result, v.err
}

// RunProgress shows events while run executes. The view closes when run
// returns; pressing q only hides it, run keeps going and its result is
// still returned.
func RunProgress(ctx context.Context, events <-chan executor.Event, run func(context.Context) (*models.ChecklistExecutionResult, error)) (*models.ChecklistExecutionResult, error) {
	view := NewProgressView()
	p := tea.NewProgram(view, tea.WithContext(ctx))

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				p.Send(ProgressEventMsg{Event: ev})
			case <-stop:
				return
			}
		}
	}()

	resCh := make(chan ProgressDoneMsg, 1)
	go func() {
		res, err := run(ctx)
		resCh <- ProgressDoneMsg{Result: res, Err: err}
		p.Send(ProgressDoneMsg{Result: res, Err: err})
	}()

	_, uiErr := p.Run()
	done := <-resCh
	close(stop)
	if done.Err != nil {
		return done.Result, done.Err
	}
	if uiErr != nil && ctx.Err() == nil {
		return done.Result, uiErr
	}
	return done.Result, nil
}
