package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/qualgate/internal/report"
	"github.com/ShayCichocki/qualgate/internal/tui"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

var (
	runFlags      contextFlags
	runChecklist  string
	runWithAssign bool
	runTUI        bool
	runCriteria   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Validate a change against its quality checklist",
	Long: `Run generates the checklist for a change (or loads one with --checklist)
and validates every item in dependency order.

A failed critical item stops the run. Manual criteria open review tickets
and leave the run awaiting review; answer them with 'qualgate review' and
continue with 'qualgate resume <execution-id>'.

With --assign, owners are resolved before the run and failed critical items
are escalated along their escalation path.`,
	RunE: runRun,
}

func init() {
	runFlags.register(runCmd)
	runCmd.Flags().StringVar(&runChecklist, "checklist", "", "Run a previously generated checklist")
	runCmd.Flags().BoolVar(&runWithAssign, "assign", false, "Resolve owners and escalate failed critical items")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show live progress")
	runCmd.Flags().BoolVar(&runCriteria, "criteria", false, "Include per-criterion rows in the report")
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := openApp(ctx, appOptions{events: runTUI && !jsonOutput()})
	if err != nil {
		return err
	}
	defer a.close()

	var cl *models.Checklist
	if runChecklist != "" {
		if cl, err = a.pipeline.Checklist(ctx, runChecklist); err != nil {
			return err
		}
	} else {
		vctx, summary, err := runFlags.buildContext(ctx, a.cfg.Root)
		if err != nil {
			return err
		}
		printSummary(summary)
		if cl, err = a.pipeline.GenerateChecklist(ctx, vctx); err != nil {
			return err
		}
	}

	var assignments []*models.ResponsibilityAssignment
	if runWithAssign {
		res, err := a.pipeline.ResolveResponsibilities(ctx, cl)
		if err != nil {
			return err
		}
		assignments = res.Assignments
		for _, u := range res.Unassigned {
			printStatus("!", fmt.Sprintf("%s has no owner: %s", u.ItemID, u.Reason), color.FgYellow)
		}
	}

	execute := func(ctx context.Context) (*models.ChecklistExecutionResult, error) {
		return a.pipeline.ExecuteChecklist(ctx, cl)
	}
	var result *models.ChecklistExecutionResult
	if a.events != nil {
		result, err = tui.RunProgress(ctx, a.events.Events(), execute)
	} else {
		result, err = execute(ctx)
	}
	if result == nil {
		return err
	}
	if err != nil {
		printStatus("!", fmt.Sprintf("result not saved: %v", err), color.FgYellow)
	}

	return finish(ctx, a, result, assignments)
}

// finish escalates failures when owners are known, then prints the result.
func finish(ctx context.Context, a *app, result *models.ChecklistExecutionResult, assignments []*models.ResponsibilityAssignment) error {
	var escalated []models.EscalationRecord
	if len(assignments) > 0 && result.State == models.ExecutionAborted {
		recs, err := a.pipeline.EscalateFailures(ctx, result)
		if err != nil {
			printStatus("!", fmt.Sprintf("escalation: %v", err), color.FgYellow)
		}
		escalated = recs
	}

	if jsonOutput() {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		if err := report.Render(os.Stdout, result, report.Options{Criteria: runCriteria, Assignments: assignments}); err != nil {
			return err
		}
		for _, rec := range escalated {
			printStatus("↑", fmt.Sprintf("%s escalated %s → %s (%s)", rec.AssignmentID, rec.FromRole, rec.ToRole, rec.Urgency), color.FgMagenta)
		}
		if result.State == models.ExecutionAwaitingManual {
			pending := a.pipeline.PendingReviews(result.ExecutionID)
			printStatus("…", fmt.Sprintf("%d review(s) open. Answer them with 'qualgate review', then 'qualgate resume %s'", len(pending), result.ExecutionID), color.FgYellow)
		}
	}

	if !result.Passed {
		return errGateFailed
	}
	return nil
}

var resumeCmd = &cobra.Command{
	Use:   "resume <execution-id>",
	Short: "Continue an execution after its reviews were answered",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		a, err := openApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.pipeline.ResumeExecution(ctx, args[0])
		if result == nil {
			return err
		}
		if err != nil {
			printStatus("!", fmt.Sprintf("result not saved: %v", err), color.FgYellow)
		}
		return finish(ctx, a, result, assignmentsFor(a, result.ChecklistID))
	},
}

func init() {
	resumeCmd.Flags().BoolVar(&runCriteria, "criteria", false, "Include per-criterion rows in the report")
}

// assignmentsFor returns the known assignments of a checklist.
func assignmentsFor(a *app, checklistID string) []*models.ResponsibilityAssignment {
	var out []*models.ResponsibilityAssignment
	for _, as := range a.pipeline.Assignments() {
		if as.ChecklistID == checklistID {
			out = append(out, as)
		}
	}
	return out
}
