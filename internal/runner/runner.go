// Package runner executes the criteria of one checklist item and combines
// their results into an item verdict.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/ShayCichocki/qualgate/internal/logging"
	"github.com/ShayCichocki/qualgate/internal/scoring"
	"github.com/ShayCichocki/qualgate/internal/validator"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// ErrCancelled is recorded for criteria that were never started because
// the run was cancelled.
var ErrCancelled = errors.New("cancelled before start")

// Validator validates a single criterion.
type Validator interface {
	Execute(ctx context.Context, ref validator.Ref, c models.Criterion, vctx models.ValidationContext) (models.RawResult, error)
}

// ItemRunner runs all criteria of an item concurrently.
type ItemRunner struct {
	validator Validator
	logger    logging.Logger
}

// New creates an ItemRunner.
func New(v Validator, logger logging.Logger) *ItemRunner {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &ItemRunner{validator: v, logger: logger}
}

// Run executes every criterion of the item and returns the item result.
// Criteria run concurrently; a panic, error or timeout in one never affects
// its siblings. Criteria already started when ctx is cancelled run to
// completion; the others are recorded as errors.
func (r *ItemRunner) Run(ctx context.Context, executionID string, item models.ChecklistItem, vctx models.ValidationContext) models.ChecklistItemResult {
	return r.run(ctx, executionID, item, vctx, nil)
}

// Complete recomputes an item after its pending reviews were answered.
// Criteria that already have a final result keep it; pending and
// unconfirmed ones are validated again and pick up the submitted answer.
func (r *ItemRunner) Complete(ctx context.Context, executionID string, item models.ChecklistItem, vctx models.ValidationContext, previous models.ChecklistItemResult) models.ChecklistItemResult {
	keep := make(map[string]models.CriterionResult, len(previous.CriterionResults))
	for _, cr := range previous.CriterionResults {
		if !cr.Pending && cr.TicketID == "" {
			keep[cr.CriterionID] = cr
		}
	}
	return r.run(ctx, executionID, item, vctx, keep)
}

func (r *ItemRunner) run(ctx context.Context, executionID string, item models.ChecklistItem, vctx models.ValidationContext, keep map[string]models.CriterionResult) models.ChecklistItemResult {
	start := time.Now()
	ref := validator.Ref{ExecutionID: executionID, ItemID: item.ID}
	results := make([]models.CriterionResult, len(item.Criteria))

	// In-flight criteria must finish even if the caller cancels.
	runCtx := context.WithoutCancel(ctx)

	var wg conc.WaitGroup
	for i, c := range item.Criteria {
		if prev, ok := keep[c.ID]; ok {
			results[i] = prev
			continue
		}
		wg.Go(func() {
			results[i] = r.runCriterion(ctx, runCtx, ref, c, vctx)
		})
	}
	wg.Wait()

	result := Finalize(item, results)
	result.DurationMs = time.Since(start).Milliseconds()
	r.logger.Log("[runner] item %s: status=%s score=%.2f (%dms)", item.ID, result.Status, result.Score, result.DurationMs)
	return result
}

// runCriterion validates one criterion. A panic in the validator becomes a
// failed result carrying the panic message.
func (r *ItemRunner) runCriterion(parent, runCtx context.Context, ref validator.Ref, c models.Criterion, vctx models.ValidationContext) models.CriterionResult {
	if parent.Err() != nil {
		return scoring.Failed(c, ErrCancelled, 0)
	}

	start := time.Now()
	var (
		raw models.RawResult
		err error
	)
	var pc panics.Catcher
	pc.Try(func() {
		raw, err = r.validator.Execute(runCtx, ref, c, vctx)
	})
	elapsed := time.Since(start)

	if rec := pc.Recovered(); rec != nil {
		r.logger.Log("[runner] criterion %s/%s panicked: %v", ref.ItemID, c.ID, rec.Value)
		return scoring.Failed(c, fmt.Errorf("validator panic: %v", rec.Value), elapsed)
	}

	var (
		pending     *validator.PendingReviewError
		unconfirmed *validator.UnconfirmedError
	)
	if errors.As(err, &pending) {
		return scoring.Pending(c, pending.TicketID)
	}
	if errors.As(err, &unconfirmed) {
		r.logger.Log("[runner] criterion %s/%s failed: %v", ref.ItemID, c.ID, err)
		return scoring.Unconfirmed(c, unconfirmed.TicketID)
	}
	if err != nil {
		r.logger.Log("[runner] criterion %s/%s failed: %v", ref.ItemID, c.ID, err)
		return scoring.Failed(c, err, elapsed)
	}

	cr := scoring.Score(raw, c)
	cr.DurationMs = elapsed.Milliseconds()
	return cr
}

// Finalize applies the item policy to criterion results given in criterion
// declaration order: any pending criterion makes the item pending, the item
// passes only if every criterion passed, and a critical item that did not
// pass gets blockers.
func Finalize(item models.ChecklistItem, results []models.CriterionResult) models.ChecklistItemResult {
	out := models.ChecklistItemResult{
		ItemID:           item.ID,
		Priority:         item.Priority,
		CriterionResults: results,
	}

	pending, errored, allPassed := false, false, true
	for _, cr := range results {
		switch {
		case cr.Pending:
			pending = true
			allPassed = false
		case cr.Error != "":
			errored = true
			allPassed = false
		case !cr.Passed:
			allPassed = false
		}
	}

	switch {
	case pending:
		out.Status = models.ItemPending
	case allPassed:
		out.Status = models.ItemPassed
		out.Passed = true
		out.Score = scoring.ItemScore(item.Criteria, results)
	case errored:
		out.Status = models.ItemError
		out.Score = scoring.ItemScore(item.Criteria, results)
	default:
		out.Status = models.ItemFailed
		out.Score = scoring.ItemScore(item.Criteria, results)
	}

	if item.IsCritical() && !out.Passed {
		out.Blockers = blockers(item, results)
	}
	return out
}

func blockers(item models.ChecklistItem, results []models.CriterionResult) []string {
	var out []string
	for _, cr := range results {
		switch {
		case cr.Pending:
			out = append(out, fmt.Sprintf("%s/%s: awaiting review %s", item.ID, cr.CriterionID, cr.TicketID))
		case !cr.Passed && cr.TicketID != "":
			out = append(out, fmt.Sprintf("%s/%s: recommendation not confirmed, ticket %s", item.ID, cr.CriterionID, cr.TicketID))
		case !cr.Passed:
			out = append(out, fmt.Sprintf("%s/%s: %s", item.ID, cr.CriterionID, firstLine(cr.Details, cr.Score)))
		}
	}
	if len(out) == 0 {
		out = append(out, fmt.Sprintf("%s: critical item did not pass", item.ID))
	}
	return out
}

func firstLine(details string, score float64) string {
	line, _, _ := strings.Cut(strings.TrimSpace(details), "\n")
	if line == "" {
		return fmt.Sprintf("score %.0f below threshold", score)
	}
	return line
}
