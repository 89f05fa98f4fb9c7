// Package report serializes execution results and renders them for humans.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

// ErrInvalidReport is returned when a serialized report cannot describe an execution.
var ErrInvalidReport = errors.New("invalid report")

// Marshal serializes an execution result as indented JSON.
func Marshal(r *models.ChecklistExecutionResult) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil result", ErrInvalidReport)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a report produced by Marshal.
func Unmarshal(data []byte) (*models.ChecklistExecutionResult, error) {
	var r models.ChecklistExecutionResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if r.ExecutionID == "" {
		return nil, fmt.Errorf("%w: missing execution_id", ErrInvalidReport)
	}
	for i, ir := range r.ItemResults {
		if ir.ItemID == "" || !ir.Status.Valid() {
			return nil, fmt.Errorf("%w: item_results[%d]: bad item %q status %q", ErrInvalidReport, i, ir.ItemID, ir.Status)
		}
	}
	return &r, nil
}

// Options controls text rendering.
type Options struct {
	// Criteria adds one row per criterion under each item.
	Criteria bool
	// Assignments, when set, adds the owner of each item.
	Assignments []*models.ResponsibilityAssignment
}

var (
	bannerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	passStyle   = bannerStyle.Foreground(lipgloss.Color("#10B981"))
	warnStyle   = bannerStyle.Foreground(lipgloss.Color("#F59E0B"))
	failStyle   = bannerStyle.Foreground(lipgloss.Color("#EF4444"))
)

// Render writes a human-readable summary of r to w.
func Render(w io.Writer, r *models.ChecklistExecutionResult, opts Options) error {
	verdict := "FAILED"
	style := failStyle
	switch {
	case r.Passed:
		verdict, style = "PASSED", passStyle
	case r.State == models.ExecutionAwaitingManual:
		verdict, style = "AWAITING REVIEW", warnStyle
	}
	banner := fmt.Sprintf("%s  score %.2f (%s)  execution %s [%s]", verdict, r.OverallScore, r.QualityLevel, r.ExecutionID, r.State)
	if _, err := fmt.Fprintln(w, style.Render(banner)); err != nil {
		return err
	}

	owners := make(map[string]string, len(opts.Assignments))
	for _, a := range opts.Assignments {
		owner := a.PrimaryOwner.Role
		if a.PrimaryOwner.Person != nil {
			owner = a.PrimaryOwner.Person.Name + " (" + a.PrimaryOwner.Role + ")"
		}
		owners[a.ItemID] = owner
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	header := table.Row{"Item", "Priority", "Status", "Score"}
	if len(owners) > 0 {
		header = append(header, "Owner")
	}
	tw.AppendHeader(header)
	for _, ir := range r.ItemResults {
		score := "-"
		if ir.Status.Ran() {
			score = fmt.Sprintf("%.2f", ir.Score)
		}
		row := table.Row{ir.ItemID, ir.Priority, ir.Status, score}
		if len(owners) > 0 {
			row = append(row, owners[ir.ItemID])
		}
		tw.AppendRow(row)

		if !opts.Criteria {
			continue
		}
		for _, cr := range ir.CriterionResults {
			status := "fail"
			switch {
			case cr.Pending:
				status = "pending " + cr.TicketID
			case !cr.Passed && cr.TicketID != "":
				status = "unconfirmed " + cr.TicketID
			case cr.Error != "":
				status = "error " + cr.Error
			case cr.Passed:
				status = "pass"
			}
			crow := table.Row{"  " + cr.CriterionID, "", status, fmt.Sprintf("%.2f", cr.Score)}
			if len(owners) > 0 {
				crow = append(crow, "")
			}
			tw.AppendRow(crow)
		}
	}
	tw.AppendFooter(table.Row{"pass rate", fmt.Sprintf("%.2f%%", r.PassRate), "critical", fmt.Sprintf("%.2f%%", r.CriticalPassRate)})
	tw.Render()

	if len(r.Blockers) > 0 {
		if _, err := fmt.Fprintf(w, "\nBlockers:\n  - %s\n", strings.Join(r.Blockers, "\n  - ")); err != nil {
			return err
		}
	}
	return nil
}
