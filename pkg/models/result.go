package models

import "time"

// DefaultPassThreshold is the inclusive overall score an execution needs to pass.
const DefaultPassThreshold = 80.0

// CriterionResult is the outcome of running one criterion.
type CriterionResult struct {
	// CriterionID identifies the criterion that produced this result.
	CriterionID string `json:"criterion_id"`
	// Passed is Score >= the criterion's passing threshold.
	Passed bool `json:"passed"`
	// Score is the normalized score, clamped to [0, 100].
	Score float64 `json:"score"`
	// DurationMs is how long validation took.
	DurationMs int64 `json:"duration_ms"`
	// Details is the validator's explanation or the failure message.
	Details string `json:"details,omitempty"`
	// Error is set when validation failed with a validation-local error.
	Error string `json:"error,omitempty"`
	// Pending is true while a manual or semi-automated review is outstanding.
	Pending bool `json:"pending,omitempty"`
	// TicketID references the review ticket for pending criteria and for
	// semi-automated criteria that failed for lack of confirmation.
	TicketID string `json:"ticket_id,omitempty"`
}

// ItemStatus is the status of a checklist item within an execution.
type ItemStatus string

const (
	// ItemPassed means every criterion passed.
	ItemPassed ItemStatus = "passed"
	// ItemFailed means at least one criterion failed.
	ItemFailed ItemStatus = "failed"
	// ItemError means at least one criterion could not be validated.
	ItemError ItemStatus = "error"
	// ItemSkipped means the item was never attempted because the run stopped.
	ItemSkipped ItemStatus = "skipped"
	// ItemPending means the item awaits manual input.
	ItemPending ItemStatus = "pending"
	// ItemQueued means the item has not been attempted yet and will run on resume.
	ItemQueued ItemStatus = "queued"
)

// Valid returns true if the status is a known value.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPassed, ItemFailed, ItemError, ItemSkipped, ItemPending, ItemQueued:
		return true
	default:
		return false
	}
}

// Ran returns true if the item was actually executed to a final verdict.
func (s ItemStatus) Ran() bool {
	return s == ItemPassed || s == ItemFailed || s == ItemError
}

// ChecklistItemResult is the outcome of one checklist item.
type ChecklistItemResult struct {
	// ItemID identifies the checklist item.
	ItemID string `json:"item_id"`
	// Priority is copied from the item so results can be judged on their own.
	Priority Priority `json:"priority"`
	// Passed requires every criterion to pass.
	Passed bool `json:"passed"`
	// Score is the weighted mean of criterion scores.
	Score float64 `json:"score"`
	// Status is the item's final status.
	Status ItemStatus `json:"status"`
	// Blockers is non-empty only for failed critical items.
	Blockers []string `json:"blockers,omitempty"`
	// CriterionResults are in criterion declaration order.
	CriterionResults []CriterionResult `json:"criterion_results,omitempty"`
	// DurationMs is the wall time of the item.
	DurationMs int64 `json:"duration_ms"`
}

// PendingTickets returns the review tickets this item is waiting on.
func (r ChecklistItemResult) PendingTickets() []string {
	var tickets []string
	for _, cr := range r.CriterionResults {
		if cr.Pending && cr.TicketID != "" {
			tickets = append(tickets, cr.TicketID)
		}
	}
	return tickets
}

// UnconfirmedTickets returns the confirmation tickets of semi-automated
// criteria that failed because nobody confirmed them yet.
func (r ChecklistItemResult) UnconfirmedTickets() []string {
	var tickets []string
	for _, cr := range r.CriterionResults {
		if !cr.Pending && !cr.Passed && cr.TicketID != "" {
			tickets = append(tickets, cr.TicketID)
		}
	}
	return tickets
}

// ExecutionState is the state of a checklist execution run.
type ExecutionState string

const (
	ExecutionPending        ExecutionState = "pending"
	ExecutionRunning        ExecutionState = "running"
	ExecutionCompleted      ExecutionState = "completed"
	ExecutionAborted        ExecutionState = "aborted"
	ExecutionAwaitingManual ExecutionState = "awaiting_manual"
	ExecutionCancelled      ExecutionState = "cancelled"
)

// Terminal returns true if the execution can no longer make progress.
func (s ExecutionState) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionAborted || s == ExecutionCancelled
}

// QualityLevel is the coarse verdict derived from the overall score.
type QualityLevel string

const (
	QualityExcellent QualityLevel = "Excellent"
	QualityGood      QualityLevel = "Good"
	QualityFair      QualityLevel = "Fair"
	QualityPoor      QualityLevel = "Poor"
)

// ChecklistExecutionResult is the outcome of a whole run. It is produced once
// per execution and not modified afterwards.
type ChecklistExecutionResult struct {
	// ExecutionID identifies this run.
	ExecutionID string `json:"execution_id"`
	// ChecklistID identifies the checklist that was executed.
	ChecklistID string `json:"checklist_id"`
	// State is the final state of the run.
	State ExecutionState `json:"state"`
	// Passed requires a completed run, all critical items passing and OverallScore >= threshold.
	Passed bool `json:"passed"`
	// OverallScore is the mean of the scores of items that ran.
	OverallScore float64 `json:"overall_score"`
	// PassRate is the percentage of items that ran and passed.
	PassRate float64 `json:"pass_rate"`
	// CriticalPassRate is the percentage of critical items that ran and passed.
	CriticalPassRate float64 `json:"critical_pass_rate"`
	// QualityLevel is derived from OverallScore; Poor if any critical item failed.
	QualityLevel QualityLevel `json:"quality_level"`
	// ItemResults are in checklist order, including skipped and queued items.
	ItemResults []ChecklistItemResult `json:"item_results"`
	// Blockers aggregates the blockers of failed critical items.
	Blockers []string `json:"blockers,omitempty"`
	// CurrentItem is the last item attempted.
	CurrentItem string `json:"current_item,omitempty"`
	// Progress is 0-100, proportional to items attempted.
	Progress int `json:"progress"`
	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run reached its final state.
	FinishedAt time.Time `json:"finished_at"`
}

// ItemResult returns the result for the given item ID.
func (r *ChecklistExecutionResult) ItemResult(itemID string) (ChecklistItemResult, bool) {
	for _, ir := range r.ItemResults {
		if ir.ItemID == itemID {
			return ir, true
		}
	}
	return ChecklistItemResult{}, false
}

// FailedItems returns the results of items that ran and did not pass.
func (r *ChecklistExecutionResult) FailedItems() []ChecklistItemResult {
	var failed []ChecklistItemResult
	for _, ir := range r.ItemResults {
		if ir.Status.Ran() && !ir.Passed {
			failed = append(failed, ir)
		}
	}
	return failed
}
