package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

var assignCmd = &cobra.Command{
	Use:   "assign <checklist-id>",
	Short: "Assign owners to the items of a saved checklist",
	Long: `Assign resolves the owning role of every item in a checklist, picks an
available person for it from the directory, and records the assignment with
its SLA and escalation path.`,
	Args: cobra.ExactArgs(1),
	RunE: runAssign,
}

func runAssign(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	cl, err := a.pipeline.Checklist(ctx, args[0])
	if err != nil {
		return err
	}
	res, err := a.pipeline.ResolveResponsibilities(ctx, cl)
	if err != nil {
		return err
	}
	if jsonOutput() {
		return printJSON(res)
	}

	printAssignments(res.Assignments)
	for _, u := range res.Unassigned {
		printStatus("!", fmt.Sprintf("%s has no owner: %s", u.ItemID, u.Reason), color.FgYellow)
	}
	return nil
}

func printAssignments(assignments []*models.ResponsibilityAssignment) {
	if len(assignments) == 0 {
		printStatus("-", "No assignments", color.FgYellow)
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Assignment", "Item", "Priority", "Role", "Owner", "Due", "Level", "Status"})
	for _, as := range assignments {
		owner := "-"
		if as.PrimaryOwner.Person != nil {
			owner = as.PrimaryOwner.Person.Name
		}
		tw.AppendRow(table.Row{
			as.ID, as.ItemID, as.Priority, as.CurrentRole(), owner,
			as.DueDate.Local().Format("Jan 2 15:04"), as.EscalationLevel, as.Status,
		})
	}
	tw.Render()
}

var (
	escalateReason  string
	escalateUrgency string
	escalateOverdue bool
	escalateList    bool
)

var escalateCmd = &cobra.Command{
	Use:   "escalate [assignment-id]",
	Short: "Move an assignment one step up its escalation path",
	Long: `Escalate hands an assignment to the next role in its escalation path and
notifies that role. With --overdue, every assignment past its due date is
escalated instead. With --list, assignments are shown without changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEscalate,
}

func init() {
	escalateCmd.Flags().StringVar(&escalateReason, "reason", "", "Why the assignment is escalated")
	escalateCmd.Flags().StringVar(&escalateUrgency, "urgency", "", "low, normal, high or critical (default from priority)")
	escalateCmd.Flags().BoolVar(&escalateOverdue, "overdue", false, "Escalate every overdue assignment")
	escalateCmd.Flags().BoolVar(&escalateList, "list", false, "List assignments and their escalation state")
}

func runEscalate(cmd *cobra.Command, args []string) error {
	urgency := models.Urgency(strings.ToLower(escalateUrgency))
	if urgency != "" && !urgency.Valid() {
		return fmt.Errorf("unknown urgency %q", escalateUrgency)
	}
	switch {
	case escalateList || escalateOverdue:
		if len(args) > 0 {
			return fmt.Errorf("an assignment id cannot be combined with --list or --overdue")
		}
	case len(args) == 0:
		return fmt.Errorf("give an assignment id, --overdue or --list")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	var recs []models.EscalationRecord
	switch {
	case escalateList:
		if jsonOutput() {
			return printJSON(a.pipeline.Assignments())
		}
		printAssignments(a.pipeline.Assignments())
		return nil
	case escalateOverdue:
		recs, err = a.pipeline.EscalateOverdue(ctx, time.Now())
		if err != nil {
			return err
		}
	default:
		reason := escalateReason
		if reason == "" {
			reason = "escalated manually"
		}
		rec, err := a.pipeline.Escalate(ctx, args[0], reason, urgency)
		if err != nil {
			return err
		}
		recs = append(recs, *rec)
	}

	if jsonOutput() {
		if recs == nil {
			recs = []models.EscalationRecord{}
		}
		return printJSON(recs)
	}
	if len(recs) == 0 {
		printStatus("✓", "Nothing to escalate", color.FgGreen)
	}
	for _, rec := range recs {
		printStatus("↑", fmt.Sprintf("%s escalated %s → %s at level %d (%s): %s",
			rec.AssignmentID, rec.FromRole, rec.ToRole, rec.Level, rec.Urgency, rec.Reason), color.FgMagenta)
	}
	return nil
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <assignment-id>",
	Short: "Close an assignment so it is no longer escalated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.pipeline.ResolveAssignment(cmd.Context(), args[0]); err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Assignment %s resolved", args[0]), color.FgGreen)
		return nil
	},
}
