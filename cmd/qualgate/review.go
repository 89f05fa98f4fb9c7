package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/qualgate/internal/tui"
	"github.com/ShayCichocki/qualgate/internal/validator"
)

var (
	reviewExecution string
	reviewReviewer  string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Answer open review tickets interactively",
	Long: `Review walks through open review tickets one at a time. For each ticket
you can enter a score, pass or fail it, or accept or reject a model
recommendation.

Use 'review list' to see open tickets, 'review submit' to answer one from a
script, and 'review inbox' to apply JSON files dropped into the inbox.`,
	RunE: runReviewInteractive,
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open review tickets",
	RunE:  runReviewList,
}

var (
	submitScore      float64
	submitPercentage float64
	submitPassed     bool
	submitFailed     bool
	submitAccept     bool
	submitReject     bool
	submitDetails    string
)

var reviewSubmitCmd = &cobra.Command{
	Use:   "submit <ticket-id>",
	Short: "Answer one review ticket",
	Long: `Submit answers a review ticket. Give exactly one of --score, --percentage,
--pass or --fail, or for a ticket with a recommendation --accept or --reject.`,
	Args: cobra.ExactArgs(1),
	RunE: runReviewSubmit,
}

var reviewInboxWatch bool

var reviewInboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Apply review submissions dropped into .qualgate/reviews/inbox",
	RunE:  runReviewInbox,
}

func init() {
	reviewCmd.PersistentFlags().StringVar(&reviewReviewer, "reviewer", os.Getenv("USER"), "Reviewer recorded on answers")
	reviewCmd.Flags().StringVar(&reviewExecution, "execution", "", "Only tickets of this execution")
	reviewListCmd.Flags().StringVar(&reviewExecution, "execution", "", "Only tickets of this execution")

	reviewSubmitCmd.Flags().Float64Var(&submitScore, "score", 0, "Score from 0 to 100")
	reviewSubmitCmd.Flags().Float64Var(&submitPercentage, "percentage", 0, "Percentage from 0 to 100")
	reviewSubmitCmd.Flags().BoolVar(&submitPassed, "pass", false, "Mark the criterion passed")
	reviewSubmitCmd.Flags().BoolVar(&submitFailed, "fail", false, "Mark the criterion failed")
	reviewSubmitCmd.Flags().BoolVar(&submitAccept, "accept", false, "Accept the recommendation")
	reviewSubmitCmd.Flags().BoolVar(&submitReject, "reject", false, "Reject the recommendation")
	reviewSubmitCmd.Flags().StringVar(&submitDetails, "details", "", "Notes recorded with the answer")

	reviewInboxCmd.Flags().BoolVar(&reviewInboxWatch, "watch", false, "Keep watching for new files until interrupted")

	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewSubmitCmd)
	reviewCmd.AddCommand(reviewInboxCmd)
}

func runReviewInteractive(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	tickets := a.pipeline.PendingReviews(reviewExecution)
	if len(tickets) == 0 {
		printStatus("✓", "No open reviews", color.FgGreen)
		return nil
	}
	answered, err := tui.RunReview(ctx, tickets, reviewReviewer, func(ctx context.Context, sub validator.InboxSubmission) (*validator.Ticket, error) {
		return sub.Apply(ctx, a.pipeline.Queue())
	})
	printStatus("✓", fmt.Sprintf("%d of %d review(s) answered", len(answered), len(tickets)), color.FgGreen)
	printResumeHints(answered)
	return err
}

// printResumeHints lists the executions the answered tickets belong to.
func printResumeHints(answered []*validator.Ticket) {
	seen := make(map[string]bool)
	for _, t := range answered {
		if seen[t.ExecutionID] {
			continue
		}
		seen[t.ExecutionID] = true
		fmt.Printf("  qualgate resume %s\n", t.ExecutionID)
	}
}

func runReviewList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	tickets := a.pipeline.PendingReviews(reviewExecution)
	if jsonOutput() {
		if tickets == nil {
			tickets = []*validator.Ticket{}
		}
		return printJSON(tickets)
	}
	if len(tickets) == 0 {
		printStatus("✓", "No open reviews", color.FgGreen)
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Ticket", "Execution", "Item", "Criterion", "Type", "Recommended", "Expires"})
	for _, t := range tickets {
		rec := "-"
		if t.Recommendation != nil {
			rec = fmt.Sprintf("%.0f", t.Recommendation.Score)
		}
		expires := "-"
		if !t.ExpiresAt.IsZero() {
			expires = time.Until(t.ExpiresAt).Round(time.Minute).String()
		}
		tw.AppendRow(table.Row{t.ID, t.ExecutionID, t.ItemID, t.CriterionID, t.ValidationType, rec, expires})
	}
	tw.Render()
	return nil
}

// submissionFromFlags builds the answer given on the command line.
func submissionFromFlags(cmd *cobra.Command, ticketID string) (validator.InboxSubmission, error) {
	sub := validator.InboxSubmission{TicketID: ticketID, Reviewer: reviewReviewer, Details: submitDetails}
	set := 0
	f := cmd.Flags()
	if f.Changed("score") {
		v := submitScore
		sub.Score = &v
		set++
	}
	if f.Changed("percentage") {
		v := submitPercentage
		sub.Percentage = &v
		set++
	}
	if f.Changed("pass") || f.Changed("fail") {
		if submitPassed == submitFailed {
			return sub, fmt.Errorf("give one of --pass or --fail")
		}
		v := submitPassed
		sub.Passed = &v
		set++
	}
	if f.Changed("accept") || f.Changed("reject") {
		if submitAccept == submitReject {
			return sub, fmt.Errorf("give one of --accept or --reject")
		}
		v := submitAccept
		sub.Accept = &v
		set++
	}
	if set != 1 {
		return sub, fmt.Errorf("give exactly one of --score, --percentage, --pass, --fail, --accept or --reject")
	}
	return sub, nil
}

func runReviewSubmit(cmd *cobra.Command, args []string) error {
	sub, err := submissionFromFlags(cmd, args[0])
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	t, err := sub.Apply(cmd.Context(), a.pipeline.Queue())
	if err != nil {
		return err
	}
	if jsonOutput() {
		return printJSON(t)
	}
	printStatus("✓", fmt.Sprintf("Ticket %s answered (%s/%s)", t.ID, t.ItemID, t.CriterionID), color.FgGreen)
	if n := len(a.pipeline.PendingReviews(t.ExecutionID)); n > 0 {
		printStatus("…", fmt.Sprintf("%d review(s) still open for %s", n, t.ExecutionID), color.FgYellow)
	} else {
		printResumeHints([]*validator.Ticket{t})
	}
	return nil
}

func runReviewInbox(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	inbox, err := validator.NewInbox(validator.InboxDir(a.cfg.Root), a.pipeline.Queue(), a.logger)
	if err != nil {
		return err
	}
	defer inbox.Close()
	inbox.OnAnswer(func(t *validator.Ticket) {
		printStatus("✓", fmt.Sprintf("Ticket %s answered by %s", t.ID, t.Reviewer), color.FgGreen)
	})

	n, err := inbox.Scan(ctx)
	if err != nil {
		return err
	}
	if !reviewInboxWatch {
		printStatus("✓", fmt.Sprintf("%d submission(s) applied", n), color.FgGreen)
		return nil
	}

	if err := inbox.Watch(ctx); err != nil {
		return err
	}
	printStatus("…", fmt.Sprintf("Watching %s (Ctrl+C to stop)", validator.InboxDir(a.cfg.Root)), color.FgCyan)
	<-ctx.Done()
	return nil
}
