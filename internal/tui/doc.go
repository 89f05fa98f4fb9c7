// Package tui provides the terminal interfaces for qualgate.
//
// It contains two small Bubble Tea programs:
//   - ReviewPrompt walks a reviewer through open review tickets and
//     answers them with a score, a pass/fail verdict or by confirming a
//     tool recommendation.
//   - ProgressView follows a running checklist execution through the
//     executor's event stream.
//
// Usage:
//
//	answered, err := tui.RunReview(ctx, p.PendingReviews(execID), "ana",
//	    func(ctx context.Context, sub validator.InboxSubmission) (*validator.Ticket, error) {
//	        return sub.Apply(ctx, p.Queue())
//	    })
//
//	result, err := tui.RunProgress(ctx, events.Events(), func(ctx context.Context) (*models.ChecklistExecutionResult, error) {
//	    return p.ExecuteChecklist(ctx, checklist)
//	})
package tui
