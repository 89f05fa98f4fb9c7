// Package executor drives a checklist through the item runner in
// dependency order and aggregates the run into an execution result.
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/qualgate/internal/graph"
	"github.com/ShayCichocki/qualgate/internal/logging"
	"github.com/ShayCichocki/qualgate/internal/scoring"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// ItemRunner runs a single checklist item.
type ItemRunner interface {
	Run(ctx context.Context, executionID string, item models.ChecklistItem, vctx models.ValidationContext) models.ChecklistItemResult
	Complete(ctx context.Context, executionID string, item models.ChecklistItem, vctx models.ValidationContext, previous models.ChecklistItemResult) models.ChecklistItemResult
}

// Executor runs checklists. It never returns an error: every outcome,
// including cancellation, is described by the execution result.
type Executor struct {
	runner    ItemRunner
	threshold float64
	logger    logging.Logger
	emitter   *EventEmitter
	newID     func() string
	now       func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithThreshold sets the inclusive overall score a run needs to pass.
func WithThreshold(t float64) Option {
	return func(e *Executor) {
		if t > 0 {
			e.threshold = t
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

// WithEvents emits progress events to em.
func WithEvents(em *EventEmitter) Option {
	return func(e *Executor) { e.emitter = em }
}

// WithIDFunc overrides execution ID generation. Used by tests.
func WithIDFunc(fn func() string) Option {
	return func(e *Executor) { e.newID = fn }
}

// WithClock overrides the clock. Used by tests.
func WithClock(fn func() time.Time) Option {
	return func(e *Executor) { e.now = fn }
}

// New creates an Executor.
func New(runner ItemRunner, opts ...Option) *Executor {
	e := &Executor{
		runner:    runner,
		threshold: models.DefaultPassThreshold,
		logger:    logging.NopLogger(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Prepare creates the handle for a new run of checklist. Callers that want
// to observe progress while Run executes create the handle first.
func (e *Executor) Prepare(checklist *models.Checklist) *Execution {
	return newExecution(e.newID(), checklist)
}

// Execute runs checklist from the start.
func (e *Executor) Execute(ctx context.Context, checklist *models.Checklist) *models.ChecklistExecutionResult {
	return e.Run(ctx, e.Prepare(checklist), checklist)
}

// Run drives a prepared execution.
func (e *Executor) Run(ctx context.Context, x *Execution, checklist *models.Checklist) *models.ChecklistExecutionResult {
	return e.drive(ctx, x, checklist, nil, e.now().UTC())
}

// Resume continues a run that stopped awaiting manual review. Items that
// already ran keep their results, pending items and items failed for an
// unconfirmed recommendation are completed with the submitted reviews, and
// queued items run. If reviews are still missing the
// run stops again in awaiting_manual. Results in any other state are
// returned unchanged.
func (e *Executor) Resume(ctx context.Context, checklist *models.Checklist, previous *models.ChecklistExecutionResult) *models.ChecklistExecutionResult {
	if previous.State != models.ExecutionAwaitingManual {
		e.logger.Log("[executor] resume %s: state %s is not resumable", previous.ExecutionID, previous.State)
		out := *previous
		return &out
	}

	prior := make(map[string]models.ChecklistItemResult, len(previous.ItemResults))
	for _, ir := range previous.ItemResults {
		prior[ir.ItemID] = ir
	}
	x := newExecution(previous.ExecutionID, checklist)
	return e.drive(ctx, x, checklist, prior, previous.StartedAt)
}

func (e *Executor) drive(ctx context.Context, x *Execution, checklist *models.Checklist, prior map[string]models.ChecklistItemResult, startedAt time.Time) *models.ChecklistExecutionResult {
	x.setState(models.ExecutionRunning)
	e.emit(Event{Type: EventExecutionStarted, ExecutionID: x.id, State: models.ExecutionRunning})
	e.logger.Log("[executor] execution %s: running checklist %s (%d items)", x.id, checklist.ID, len(checklist.Items))

	dg := graph.New()
	dg.SetDebugLog(logging.Func(e.logger))
	// Dependencies on unselected items were already dropped by the generator.
	// A checklist out of dependency order, or one with a cycle, only runs the
	// items whose dependencies finished first.
	if err := dg.Build(checklist.Items, func(string) bool { return true }); err != nil {
		e.logger.Log("[executor] execution %s: dependency graph: %v", x.id, err)
	}

	results := make([]models.ChecklistItemResult, len(checklist.Items))
	var stopState models.ExecutionState

	for i, item := range checklist.Items {
		if stopState == "" && ctx.Err() != nil {
			stopState = models.ExecutionCancelled
			e.logger.Log("[executor] execution %s: cancelled before item %s", x.id, item.ID)
		}
		if stopState != "" {
			results[i] = placeholder(item, stopState)
			continue
		}

		prev, hasPrev := prior[item.ID]
		reopen := hasPrev && (prev.Status == models.ItemPending || len(prev.UnconfirmedTickets()) > 0)
		if hasPrev && !reopen && prev.Status.Ran() {
			results[i] = prev
			dg.MarkComplete(item.ID)
			x.advance(item.ID)
			continue
		}

		if !dg.Ready(item.ID) {
			e.logger.Log("[executor] execution %s: item %s skipped, dependencies have not run", x.id, item.ID)
			r := placeholder(item, models.ExecutionAborted)
			x.advance(item.ID)
			if item.IsCritical() {
				r.Blockers = []string{item.ID + ": dependencies have not run"}
				stopState = models.ExecutionAborted
			}
			results[i] = r
			continue
		}

		x.setCurrent(item.ID)
		e.emit(Event{Type: EventItemStarted, ExecutionID: x.id, ItemID: item.ID, State: models.ExecutionRunning, Progress: x.Progress()})

		var r models.ChecklistItemResult
		if reopen {
			r = e.runner.Complete(ctx, x.id, item, checklist.Context, prev)
		} else {
			r = e.runner.Run(ctx, x.id, item, checklist.Context)
		}
		results[i] = r
		dg.MarkComplete(item.ID)
		x.advance(item.ID)
		e.emit(Event{Type: EventItemFinished, ExecutionID: x.id, ItemID: item.ID, ItemStatus: r.Status, State: models.ExecutionRunning, Progress: x.Progress()})

		switch {
		case r.Status == models.ItemPending:
			stopState = models.ExecutionAwaitingManual
			e.logger.Log("[executor] execution %s: item %s awaiting review %v", x.id, item.ID, r.PendingTickets())
		case item.IsCritical() && !r.Passed:
			stopState = models.ExecutionAborted
			e.logger.Log("[executor] execution %s: critical item %s failed, aborting", x.id, item.ID)
		}
	}

	state := stopState
	if state == "" {
		state = models.ExecutionCompleted
		if ctx.Err() != nil {
			state = models.ExecutionCancelled
		}
	}
	x.setState(state)

	result := e.aggregate(x, checklist, results, state, startedAt)
	e.emit(Event{Type: EventExecutionFinished, ExecutionID: x.id, State: state, Progress: result.Progress,
		Message: string(result.QualityLevel)})
	e.logger.Log("[executor] execution %s: %s passed=%t score=%.2f", x.id, state, result.Passed, result.OverallScore)
	return result
}

func (e *Executor) aggregate(x *Execution, checklist *models.Checklist, results []models.ChecklistItemResult, state models.ExecutionState, startedAt time.Time) *models.ChecklistExecutionResult {
	agg := scoring.Summarize(results)

	var blockers []string
	for _, r := range results {
		blockers = append(blockers, r.Blockers...)
	}

	return &models.ChecklistExecutionResult{
		ExecutionID:      x.id,
		ChecklistID:      checklist.ID,
		State:            state,
		Passed:           state == models.ExecutionCompleted && agg.Passed(e.threshold),
		OverallScore:     agg.OverallScore,
		PassRate:         agg.PassRate,
		CriticalPassRate: agg.CriticalPassRate,
		QualityLevel:     scoring.Level(agg.OverallScore, agg.CriticalFailed),
		ItemResults:      results,
		Blockers:         blockers,
		CurrentItem:      x.current(),
		Progress:         x.Progress(),
		StartedAt:        startedAt,
		FinishedAt:       e.now().UTC(),
	}
}

// placeholder is the result of an item the run never reached. Items left
// behind by a manual-review stop will still run, so they are queued rather
// than skipped.
func placeholder(item models.ChecklistItem, stop models.ExecutionState) models.ChecklistItemResult {
	status := models.ItemSkipped
	if stop == models.ExecutionAwaitingManual {
		status = models.ItemQueued
	}
	return models.ChecklistItemResult{ItemID: item.ID, Priority: item.Priority, Status: status}
}

func (e *Executor) emit(ev Event) {
	if e.emitter == nil {
		return
	}
	ev.Timestamp = e.now()
	e.emitter.Emit(ev)
}
