// Package validator runs single criteria through their validation channel:
// shell commands for automated criteria, review tickets for manual ones, and
// a recommendation plus human confirmation for semi-automated ones.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/qualgate/internal/logging"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// DefaultTimeout bounds a single automated criterion.
const DefaultTimeout = 5 * time.Minute

var (
	// ErrPendingReview is wrapped by *PendingReviewError.
	ErrPendingReview = errors.New("awaiting review")
	// ErrUnconfirmed is wrapped by *UnconfirmedError.
	ErrUnconfirmed = errors.New("recommendation not confirmed")
)

// PendingReviewError reports that a criterion is waiting on a review ticket.
// It is not a failure: the criterion is recorded as pending.
type PendingReviewError struct {
	TicketID string
}

func (e *PendingReviewError) Error() string {
	return fmt.Sprintf("%v: ticket %s", ErrPendingReview, e.TicketID)
}

func (e *PendingReviewError) Unwrap() error {
	return ErrPendingReview
}

// UnconfirmedError reports a semi-automated criterion whose confirmation
// ticket has not been answered. The criterion counts as failed until it is.
type UnconfirmedError struct {
	TicketID string
}

func (e *UnconfirmedError) Error() string {
	return fmt.Sprintf("%v: ticket %s", ErrUnconfirmed, e.TicketID)
}

func (e *UnconfirmedError) Unwrap() error {
	return ErrUnconfirmed
}

// Ref locates a criterion within an execution. Review tickets are keyed
// by Ref plus the criterion ID, so re-validating after a resume finds the
// ticket opened the first time.
type Ref struct {
	ExecutionID string
	ItemID      string
}

// Executor dispatches criteria to their validation channel.
type Executor struct {
	cmd         CommandRunner
	parsers     map[string]Parser
	queue       *ReviewQueue
	recommender Recommender
	timeout     time.Duration
	audit       logging.Auditor
	logger      logging.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithCommandRunner replaces the shell runner. Used by tests.
func WithCommandRunner(cmd CommandRunner) Option {
	return func(e *Executor) { e.cmd = cmd }
}

// WithRecommender enables recommendations for semi-automated criteria.
func WithRecommender(r Recommender) Option {
	return func(e *Executor) { e.recommender = r }
}

// WithTimeout sets the per-criterion timeout for automated criteria.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithAuditor records every validation to a.
func WithAuditor(a logging.Auditor) Option {
	return func(e *Executor) {
		if a != nil {
			e.audit = a
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithParser registers an additional output parser.
func WithParser(name string, p Parser) Option {
	return func(e *Executor) { e.parsers[name] = p }
}

// New creates an Executor. Review tickets are opened on queue.
func New(queue *ReviewQueue, opts ...Option) *Executor {
	e := &Executor{
		cmd:     &ExecRunner{},
		parsers: NewParsers(),
		queue:   queue,
		timeout: DefaultTimeout,
		audit:   (*logging.AuditLog)(nil),
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Queue returns the review queue tickets are opened on.
func (e *Executor) Queue() *ReviewQueue {
	return e.queue
}

// Execute validates one criterion and returns its raw result.
// Manual criteria without an answer return a *PendingReviewError;
// semi-automated criteria without a confirmation return an *UnconfirmedError.
// Validation-local failures wrap models.ErrToolUnavailable, models.ErrTimeout
// or models.ErrMalformedResult.
func (e *Executor) Execute(ctx context.Context, ref Ref, c models.Criterion, vctx models.ValidationContext) (models.RawResult, error) {
	var (
		raw models.RawResult
		err error
	)
	switch c.ValidationType {
	case models.ValidationAutomated:
		raw, err = e.runAutomated(ctx, c, vctx)
	case models.ValidationSemiAutomated:
		raw, err = e.runReview(ctx, ref, c, vctx, true)
	case models.ValidationManual:
		raw, err = e.runReview(ctx, ref, c, vctx, false)
	default:
		err = fmt.Errorf("%w: unknown validation type %q", models.ErrMalformedResult, c.ValidationType)
	}

	e.record(ref, c, raw, err)
	return raw, err
}

func (e *Executor) runAutomated(ctx context.Context, c models.Criterion, vctx models.ValidationContext) (models.RawResult, error) {
	parserName := c.Parser
	if parserName == "" {
		parserName = DefaultParser
	}
	parser, ok := e.parsers[parserName]
	if !ok {
		return nil, fmt.Errorf("%w: unknown parser %q", models.ErrMalformedResult, parserName)
	}

	tctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.logger.Log("[validator] %s: running %q in %s", c.ID, c.ValidationMethod, vctx.RepoPath)
	stdout, stderr, exitCode, err := e.cmd.Run(tctx, vctx.RepoPath, c.ValidationMethod)
	if err != nil {
		if tctx.Err() == context.DeadlineExceeded && !errors.Is(err, models.ErrTimeout) {
			return nil, fmt.Errorf("%w after %s: %v", models.ErrTimeout, e.timeout, err)
		}
		return nil, fmt.Errorf("criterion %s: %w", c.ID, err)
	}
	return parser.Parse(stdout, stderr, exitCode)
}

func (e *Executor) runReview(ctx context.Context, ref Ref, c models.Criterion, vctx models.ValidationContext, semi bool) (models.RawResult, error) {
	key := TicketKey{ExecutionID: ref.ExecutionID, ItemID: ref.ItemID, CriterionID: c.ID}
	if t, ok := e.queue.Lookup(ctx, key); ok {
		return fromTicket(t, semi)
	}

	var rec *Recommendation
	if semi && e.recommender != nil {
		r, err := e.recommender.Recommend(ctx, c, vctx)
		if err != nil {
			// The reviewer can still answer with a result of their own.
			e.logger.Log("[validator] %s: recommendation failed: %v", c.ID, err)
		} else {
			rec = r
		}
	}

	t, err := e.queue.RequestManualReview(ctx, key, c, rec)
	if err != nil {
		return nil, err
	}
	e.logger.Log("[validator] %s: opened review ticket %s", c.ID, t.ID)
	return fromTicket(t, semi)
}

// fromTicket converts a ticket's state into a validation outcome.
func fromTicket(t *Ticket, semi bool) (models.RawResult, error) {
	switch t.Status {
	case TicketOpen:
		if semi {
			return nil, &UnconfirmedError{TicketID: t.ID}
		}
		return nil, &PendingReviewError{TicketID: t.ID}
	case TicketExpired:
		return nil, fmt.Errorf("%w: review ticket %s expired", models.ErrTimeout, t.ID)
	}

	if t.Rejected {
		return models.PassResult{Passed: false, Details: fmt.Sprintf("recommendation rejected by %s", reviewerName(t.Reviewer))}, nil
	}
	if t.Result == nil {
		return nil, fmt.Errorf("%w: ticket %s answered without a result", models.ErrMalformedResult, t.ID)
	}
	return t.Result.ToRawResult()
}

func reviewerName(r string) string {
	if r == "" {
		return "reviewer"
	}
	return r
}

func (e *Executor) record(ref Ref, c models.Criterion, raw models.RawResult, err error) {
	entry := logging.AuditEntry{
		ExecutionID: ref.ExecutionID,
		ItemID:      ref.ItemID,
		CriterionID: c.ID,
		Action:      "validate:" + string(c.ValidationType),
	}
	var (
		pending     *PendingReviewError
		unconfirmed *UnconfirmedError
	)
	switch {
	case errors.As(err, &pending):
		entry.Outcome = "pending"
		entry.Detail = pending.TicketID
	case errors.As(err, &unconfirmed):
		entry.Outcome = "unconfirmed"
		entry.Detail = unconfirmed.TicketID
	case err != nil:
		entry.Outcome = "error"
		entry.Detail = err.Error()
	default:
		entry.Outcome = "result"
		entry.Detail = raw.Detail()
	}
	e.audit.Record(entry)
}
