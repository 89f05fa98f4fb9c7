package models

import (
	"errors"
	"fmt"
)

// ValidationType is the channel a criterion is validated through.
type ValidationType string

const (
	// ValidationAutomated runs an external tool with no human involvement.
	ValidationAutomated ValidationType = "automated"
	// ValidationSemiAutomated runs a tool that produces a recommendation a human must confirm.
	ValidationSemiAutomated ValidationType = "semi-automated"
	// ValidationManual waits for a human-submitted result.
	ValidationManual ValidationType = "manual"
)

// Valid returns true if the validation type is a known value.
func (v ValidationType) Valid() bool {
	switch v {
	case ValidationAutomated, ValidationSemiAutomated, ValidationManual:
		return true
	default:
		return false
	}
}

// Validation-local errors. They never abort a run: the item runner turns
// them into a failed CriterionResult with a score of zero.
var (
	// ErrToolUnavailable indicates the validator tool could not be started.
	ErrToolUnavailable = errors.New("validation tool unavailable")
	// ErrTimeout indicates the validator did not answer within its deadline.
	ErrTimeout = errors.New("validation timed out")
	// ErrMalformedResult indicates the validator returned a shape the scorer cannot normalize.
	ErrMalformedResult = errors.New("malformed validation result")
)

// Criterion is one measurable check inside a checklist item.
type Criterion struct {
	// ID uniquely identifies the criterion within its item.
	ID string `json:"id"`
	// Description explains what the criterion checks.
	Description string `json:"description,omitempty"`
	// ValidationType selects the channel the criterion is validated through.
	ValidationType ValidationType `json:"validation_type"`
	// ValidationMethod is an opaque reference the validation executor dispatches on:
	// a shell command for automated criteria, a review checklist name otherwise.
	ValidationMethod string `json:"validation_method"`
	// Parser names the output parser for automated criteria (defaults to exit-code).
	Parser string `json:"parser,omitempty"`
	// PassingThreshold is the minimum score (0-100) for the criterion to pass.
	PassingThreshold int `json:"passing_threshold"`
	// Weight is the criterion's weight relative to its siblings. Must be > 0.
	Weight int `json:"weight"`
}

// RawResult is the normalized output of a validator. It is a closed set:
// ScoreResult, PassResult and PercentageResult are the only implementations.
type RawResult interface {
	isRawResult()
	// Detail returns the validator's human-readable explanation.
	Detail() string
}

// ScoreResult carries a direct 0-100 score.
type ScoreResult struct {
	Value   float64
	Details string
}

// PassResult carries a boolean verdict, mapped to 100 or 0.
type PassResult struct {
	Passed  bool
	Details string
}

// PercentageResult carries a percentage such as line coverage.
type PercentageResult struct {
	Value   float64
	Details string
}

func (ScoreResult) isRawResult()      {}
func (PassResult) isRawResult()       {}
func (PercentageResult) isRawResult() {}

func (r ScoreResult) Detail() string      { return r.Details }
func (r PassResult) Detail() string       { return r.Details }
func (r PercentageResult) Detail() string { return r.Details }

// RawResultPayload is the wire form of a RawResult, used by review
// submissions and persisted tickets. Exactly one of Score, Passed or
// Percentage must be set.
type RawResultPayload struct {
	Score      *float64 `json:"score,omitempty" yaml:"score,omitempty"`
	Passed     *bool    `json:"passed,omitempty" yaml:"passed,omitempty"`
	Percentage *float64 `json:"percentage,omitempty" yaml:"percentage,omitempty"`
	Details    string   `json:"details,omitempty" yaml:"details,omitempty"`
}

// ToRawResult converts the payload into its tagged form.
// It returns ErrMalformedResult unless exactly one shape is present.
func (p RawResultPayload) ToRawResult() (RawResult, error) {
	set := 0
	if p.Score != nil {
		set++
	}
	if p.Passed != nil {
		set++
	}
	if p.Percentage != nil {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: expected exactly one of score, passed, percentage (got %d)", ErrMalformedResult, set)
	}

	switch {
	case p.Score != nil:
		return ScoreResult{Value: *p.Score, Details: p.Details}, nil
	case p.Passed != nil:
		return PassResult{Passed: *p.Passed, Details: p.Details}, nil
	default:
		return PercentageResult{Value: *p.Percentage, Details: p.Details}, nil
	}
}

// PayloadFrom converts a tagged RawResult back into its wire form.
func PayloadFrom(r RawResult) (RawResultPayload, error) {
	switch v := r.(type) {
	case ScoreResult:
		score := v.Value
		return RawResultPayload{Score: &score, Details: v.Details}, nil
	case PassResult:
		passed := v.Passed
		return RawResultPayload{Passed: &passed, Details: v.Details}, nil
	case PercentageResult:
		pct := v.Value
		return RawResultPayload{Percentage: &pct, Details: v.Details}, nil
	default:
		return RawResultPayload{}, fmt.Errorf("%w: %T", ErrMalformedResult, r)
	}
}
