// Package scoring turns raw validator output into scores and aggregates them.
// Everything here is pure: no I/O, no clocks, no shared state.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

// Score normalizes a raw result into a criterion result. The score is
// clamped to [0, 100] and Passed is score >= the criterion threshold.
// Unknown result shapes score 0 with a malformed-result error.
func Score(raw models.RawResult, c models.Criterion) models.CriterionResult {
	var value float64
	switch r := raw.(type) {
	case models.ScoreResult:
		value = r.Value
	case models.PercentageResult:
		value = r.Value
	case models.PassResult:
		if r.Passed {
			value = 100
		}
	default:
		return Failed(c, fmt.Errorf("%w: %T", models.ErrMalformedResult, raw), 0)
	}

	value = Clamp(value)
	return models.CriterionResult{
		CriterionID: c.ID,
		Passed:      value >= float64(c.PassingThreshold),
		Score:       value,
		Details:     raw.Detail(),
	}
}

// Failed builds the result for a criterion whose validation errored.
func Failed(c models.Criterion, err error, elapsed time.Duration) models.CriterionResult {
	return models.CriterionResult{
		CriterionID: c.ID,
		Passed:      false,
		Score:       0,
		DurationMs:  elapsed.Milliseconds(),
		Details:     err.Error(),
		Error:       errorKind(err),
	}
}

// Pending builds the placeholder result for a criterion awaiting review.
func Pending(c models.Criterion, ticketID string) models.CriterionResult {
	return models.CriterionResult{
		CriterionID: c.ID,
		Pending:     true,
		TicketID:    ticketID,
		Details:     "awaiting review " + ticketID,
	}
}

// Unconfirmed builds the failed result of a semi-automated criterion whose
// recommendation has not been confirmed. The ticket is kept so a later
// resume can pick up the confirmation.
func Unconfirmed(c models.Criterion, ticketID string) models.CriterionResult {
	return models.CriterionResult{
		CriterionID: c.ID,
		TicketID:    ticketID,
		Details:     "recommendation not confirmed, ticket " + ticketID,
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrToolUnavailable):
		return "tool_unavailable"
	case errors.Is(err, models.ErrTimeout):
		return "timeout"
	case errors.Is(err, models.ErrMalformedResult):
		return "malformed_result"
	default:
		return "error"
	}
}

// Clamp limits a score to [0, 100]. NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ItemScore returns the weighted mean of criterion scores, matched to
// criteria by ID. A total weight of zero (including no criteria) scores 100.
func ItemScore(criteria []models.Criterion, results []models.CriterionResult) float64 {
	byID := make(map[string]models.CriterionResult, len(results))
	for _, r := range results {
		byID[r.CriterionID] = r
	}

	var weighted, total float64
	for _, c := range criteria {
		if c.Weight <= 0 {
			continue
		}
		total += float64(c.Weight)
		weighted += byID[c.ID].Score * float64(c.Weight)
	}
	if total == 0 {
		return 100
	}
	return round2(weighted / total)
}

// Aggregate holds the execution-level statistics over item results.
type Aggregate struct {
	OverallScore     float64
	PassRate         float64
	CriticalPassRate float64
	CriticalFailed   bool
	Ran              int
}

// Summarize computes execution statistics over the items that ran.
// Skipped, queued and pending items are excluded from every rate.
// With no items ran the overall score and both rates are 100.
func Summarize(results []models.ChecklistItemResult) Aggregate {
	var agg Aggregate
	var sum float64
	passed, critical, criticalPassed := 0, 0, 0

	for _, r := range results {
		if !r.Status.Ran() {
			continue
		}
		agg.Ran++
		sum += r.Score
		if r.Passed {
			passed++
		}
		if r.Priority == models.PriorityCritical {
			critical++
			if r.Passed {
				criticalPassed++
			} else {
				agg.CriticalFailed = true
			}
		}
	}

	agg.OverallScore = 100
	agg.PassRate = 100
	agg.CriticalPassRate = 100
	if agg.Ran > 0 {
		agg.OverallScore = round2(sum / float64(agg.Ran))
		agg.PassRate = round2(float64(passed) / float64(agg.Ran) * 100)
	}
	if critical > 0 {
		agg.CriticalPassRate = round2(float64(criticalPassed) / float64(critical) * 100)
	}
	return agg
}

// Passed applies the execution verdict: every critical item that ran passed
// and the overall score meets the inclusive threshold.
func (a Aggregate) Passed(threshold float64) bool {
	return !a.CriticalFailed && a.CriticalPassRate == 100 && a.OverallScore >= threshold
}

// Level maps a score to a quality level. Any critical failure is Poor.
func Level(score float64, criticalFailed bool) models.QualityLevel {
	switch {
	case criticalFailed:
		return models.QualityPoor
	case score >= 95:
		return models.QualityExcellent
	case score >= 85:
		return models.QualityGood
	case score >= 70:
		return models.QualityFair
	default:
		return models.QualityPoor
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
