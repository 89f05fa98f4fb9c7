package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/qualgate/internal/validator"
)

// Submitter answers one review ticket.
type Submitter func(ctx context.Context, sub validator.InboxSubmission) (*validator.Ticket, error)

type promptMode int

const (
	modeChoose promptMode = iota
	modeScore
	modeDetails
)

// reviewSubmittedMsg carries the outcome of a submission.
type reviewSubmittedMsg struct {
	ticket *validator.Ticket
	err    error
}

// ReviewPrompt walks a reviewer through open tickets one at a time.
type ReviewPrompt struct {
	ctx      context.Context
	tickets  []*validator.Ticket
	idx      int
	reviewer string
	submit   Submitter

	mode      promptMode
	score     textinput.Model
	details   textinput.Model
	scoreVal  float64
	busy      bool
	err       error
	answered  []*validator.Ticket
	skipped   int
	width     int
	cancelled bool

	titleStyle  lipgloss.Style
	labelStyle  lipgloss.Style
	valueStyle  lipgloss.Style
	recStyle    lipgloss.Style
	promptStyle lipgloss.Style
	hintStyle   lipgloss.Style
	errorStyle  lipgloss.Style
}

// NewReviewPrompt creates a prompt over tickets. Answers go through submit
// as reviewer.
func NewReviewPrompt(ctx context.Context, tickets []*validator.Ticket, reviewer string, submit Submitter) *ReviewPrompt {
	score := textinput.New()
	score.Placeholder = "0-100"
	score.CharLimit = 6
	score.Width = 10

	details := textinput.New()
	details.Placeholder = "Notes for the record (optional)"
	details.CharLimit = 500
	details.Width = 60

	return &ReviewPrompt{
		ctx:      ctx,
		tickets:  tickets,
		reviewer: reviewer,
		submit:   submit,
		score:    score,
		details:  details,
		width:    80,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Background(lipgloss.Color("236")).
			Padding(0, 2),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14),
		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),
		recStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")),
		promptStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
	}
}

// Init implements tea.Model.
func (r *ReviewPrompt) Init() tea.Cmd {
	if len(r.tickets) == 0 {
		return tea.Quit
	}
	return nil
}

// Update implements tea.Model.
func (r *ReviewPrompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.details.Width = max(20, msg.Width-20)
		return r, nil

	case reviewSubmittedMsg:
		r.busy = false
		if msg.err != nil {
			r.err = msg.err
			return r, nil
		}
		r.answered = append(r.answered, msg.ticket)
		return r, r.advance()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			r.cancelled = true
			return r, tea.Quit
		}
		if r.busy {
			return r, nil
		}
		switch r.mode {
		case modeScore:
			return r.updateScore(msg)
		case modeDetails:
			return r.updateDetails(msg)
		}
		return r.updateChoose(msg)
	}
	return r, nil
}

func (r *ReviewPrompt) updateChoose(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t := r.current()
	if t == nil {
		return r, tea.Quit
	}
	r.err = nil

	switch msg.String() {
	case "q", "esc":
		r.cancelled = true
		return r, tea.Quit
	case "y", "Y":
		if t.Recommendation == nil {
			return r, nil
		}
		accept := true
		return r, r.send(validator.InboxSubmission{Accept: &accept})
	case "n", "N":
		if t.Recommendation == nil {
			return r, nil
		}
		accept := false
		return r, r.send(validator.InboxSubmission{Accept: &accept})
	case "p":
		passed := true
		return r, r.send(validator.InboxSubmission{Passed: &passed, Details: "passed by " + r.reviewerName()})
	case "f":
		passed := false
		return r, r.send(validator.InboxSubmission{Passed: &passed, Details: "failed by " + r.reviewerName()})
	case "s":
		r.mode = modeScore
		r.score.Reset()
		return r, r.score.Focus()
	case "tab", "right", "l":
		r.skipped++
		return r, r.advance()
	}
	return r, nil
}

func (r *ReviewPrompt) updateScore(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		r.mode = modeChoose
		r.score.Blur()
		return r, nil
	case tea.KeyEnter:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.score.Value()), 64)
		if err != nil || v < 0 || v > 100 {
			r.err = fmt.Errorf("score must be a number between 0 and 100")
			return r, nil
		}
		r.err = nil
		r.scoreVal = v
		r.mode = modeDetails
		r.score.Blur()
		r.details.Reset()
		return r, r.details.Focus()
	}
	var cmd tea.Cmd
	r.score, cmd = r.score.Update(msg)
	return r, cmd
}

func (r *ReviewPrompt) updateDetails(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		r.mode = modeScore
		r.details.Blur()
		return r, r.score.Focus()
	case tea.KeyEnter:
		score := r.scoreVal
		r.details.Blur()
		r.mode = modeChoose
		return r, r.send(validator.InboxSubmission{Score: &score, Details: strings.TrimSpace(r.details.Value())})
	}
	var cmd tea.Cmd
	r.details, cmd = r.details.Update(msg)
	return r, cmd
}

func (r *ReviewPrompt) send(sub validator.InboxSubmission) tea.Cmd {
	t := r.current()
	sub.TicketID = t.ID
	sub.Reviewer = r.reviewer
	r.busy = true
	ctx, submit := r.ctx, r.submit
	return func() tea.Msg {
		ticket, err := submit(ctx, sub)
		return reviewSubmittedMsg{ticket: ticket, err: err}
	}
}

func (r *ReviewPrompt) advance() tea.Cmd {
	r.idx++
	r.mode = modeChoose
	if r.idx >= len(r.tickets) {
		return tea.Quit
	}
	return nil
}

func (r *ReviewPrompt) current() *validator.Ticket {
	if r.idx >= len(r.tickets) {
		return nil
	}
	return r.tickets[r.idx]
}

func (r *ReviewPrompt) reviewerName() string {
	if r.reviewer == "" {
		return "reviewer"
	}
	return r.reviewer
}

// View implements tea.Model.
func (r *ReviewPrompt) View() string {
	t := r.current()
	if t == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(r.titleStyle.Render(fmt.Sprintf(" Review %d of %d ", r.idx+1, len(r.tickets))))
	b.WriteString("\n\n")

	r.field(&b, "Item:", t.ItemID)
	r.field(&b, "Criterion:", t.CriterionID)
	r.field(&b, "Type:", string(t.ValidationType))
	r.field(&b, "Method:", t.Method)
	if t.Description != "" {
		r.field(&b, "Description:", t.Description)
	}
	r.field(&b, "Ticket:", t.ID)

	if rec := t.Recommendation; rec != nil {
		b.WriteString("\n")
		b.WriteString(r.recStyle.Render(fmt.Sprintf("Recommended score %.0f", rec.Score)))
		if rec.Source != "" {
			b.WriteString(r.hintStyle.Render(" (" + rec.Source + ")"))
		}
		b.WriteString("\n")
		if rec.Rationale != "" {
			b.WriteString(lipgloss.NewStyle().Width(min(r.width, 80) - 2).PaddingLeft(2).Render(rec.Rationale))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	switch r.mode {
	case modeScore:
		b.WriteString(r.promptStyle.Render("Score: "))
		b.WriteString(r.score.View())
		b.WriteString("\n")
		b.WriteString(r.hintStyle.Render("(Enter to continue, Esc to go back)"))
	case modeDetails:
		b.WriteString(r.promptStyle.Render(fmt.Sprintf("Score %.0f. Details: ", r.scoreVal)))
		b.WriteString(r.details.View())
		b.WriteString("\n")
		b.WriteString(r.hintStyle.Render("(Enter to submit, Esc to change the score)"))
	default:
		if t.Recommendation != nil {
			b.WriteString(r.promptStyle.Render("Accept recommendation? [Y]es / [N]o, or [S]core / [P]ass / [F]ail"))
		} else {
			b.WriteString(r.promptStyle.Render("[S]core / [P]ass / [F]ail"))
		}
		b.WriteString("\n")
		b.WriteString(r.hintStyle.Render("(Tab to skip, Q to stop)"))
	}
	b.WriteString("\n")

	if r.busy {
		b.WriteString(r.hintStyle.Render("Submitting..."))
		b.WriteString("\n")
	}
	if r.err != nil {
		b.WriteString(r.errorStyle.Render("Error: " + r.err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

func (r *ReviewPrompt) field(b *strings.Builder, label, value string) {
	b.WriteString(r.labelStyle.Render(label))
	b.WriteString(r.valueStyle.Render(value))
	b.WriteString("\n")
}

// Answered returns the tickets answered so far.
func (r *ReviewPrompt) Answered() []*validator.Ticket {
	return r.answered
}

// Skipped returns how many tickets were left for later.
func (r *ReviewPrompt) Skipped() int {
	return r.skipped
}

// Cancelled reports whether the reviewer stopped before the last ticket.
func (r *ReviewPrompt) Cancelled() bool {
	return r.cancelled
}

// RunReview runs the review prompt until every ticket was answered or
// skipped, or the reviewer quits. It returns the answered tickets.
func RunReview(ctx context.Context, tickets []*validator.Ticket, reviewer string, submit Submitter) ([]*validator.Ticket, error) {
	prompt := NewReviewPrompt(ctx, tickets, reviewer, submit)
	if _, err := tea.NewProgram(prompt, tea.WithContext(ctx)).Run(); err != nil {
		return prompt.Answered(), err
	}
	return prompt.Answered(), nil
}
