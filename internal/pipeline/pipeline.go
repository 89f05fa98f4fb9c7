// Package pipeline is the library surface of qualgate. It wires the
// catalog, generator, validators, executor, resolver and escalation engine
// together and persists what they produce.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/qualgate/internal/catalog"
	"github.com/ShayCichocki/qualgate/internal/escalation"
	"github.com/ShayCichocki/qualgate/internal/executor"
	"github.com/ShayCichocki/qualgate/internal/generator"
	"github.com/ShayCichocki/qualgate/internal/logging"
	"github.com/ShayCichocki/qualgate/internal/responsibility"
	"github.com/ShayCichocki/qualgate/internal/runner"
	"github.com/ShayCichocki/qualgate/internal/validator"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

var (
	// ErrExecutionNotFound is returned for unknown execution IDs.
	ErrExecutionNotFound = errors.New("execution not found")
	// ErrChecklistNotFound is returned when an execution's checklist is gone.
	ErrChecklistNotFound = errors.New("checklist not found")
)

// Store is the persistence the pipeline needs. state.DB implements it.
type Store interface {
	SaveChecklist(ctx context.Context, c *models.Checklist) error
	GetChecklist(ctx context.Context, id string) (*models.Checklist, error)
	SaveExecution(ctx context.Context, r *models.ChecklistExecutionResult) error
	GetExecution(ctx context.Context, id string) (*models.ChecklistExecutionResult, error)
	validator.TicketStore
	escalation.Store
}

// Options configures a Pipeline. Zero values select defaults.
type Options struct {
	Catalog          *catalog.Catalog
	Registry         *responsibility.Registry
	Directory        responsibility.Directory
	Store            Store
	CommandRunner    validator.CommandRunner
	Recommender      validator.Recommender
	Notifier         escalation.Notifier
	Auditor          logging.Auditor
	Logger           logging.Logger
	Events           *executor.EventEmitter
	CriterionTimeout time.Duration
	ReviewTTL        time.Duration
	PassThreshold    float64
}

// Pipeline runs quality validation end to end. Safe for concurrent use.
type Pipeline struct {
	catalog    *catalog.Catalog
	generator  *generator.Generator
	queue      *validator.ReviewQueue
	executor   *executor.Executor
	resolver   *responsibility.Resolver
	escalation *escalation.Engine
	store      Store
	logger     logging.Logger

	mu         sync.Mutex
	live       map[string]*executor.Execution
	results    map[string]*models.ChecklistExecutionResult
	checklists map[string]*models.Checklist
}

// New builds a pipeline and restores review tickets and assignments from
// the store.
func New(ctx context.Context, opts Options) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = responsibility.DefaultRegistry()
	}
	directory := opts.Directory
	if directory == nil {
		directory = responsibility.NewStaticDirectory(nil)
	}

	queueOpts := []validator.QueueOption{
		validator.WithTicketTTL(opts.ReviewTTL),
		validator.WithQueueLogger(logger),
	}
	engineOpts := []escalation.Option{
		escalation.WithLogger(logger),
		escalation.WithDirectory(directory),
		escalation.WithNotifier(opts.Notifier),
	}
	if opts.Store != nil {
		queueOpts = append(queueOpts, validator.WithTicketStore(opts.Store))
		engineOpts = append(engineOpts, escalation.WithStore(opts.Store))
	}
	queue := validator.NewReviewQueue(queueOpts...)
	if err := queue.Load(ctx); err != nil {
		return nil, err
	}
	engine := escalation.NewEngine(engineOpts...)
	if err := engine.Load(ctx); err != nil {
		return nil, err
	}

	vopts := []validator.Option{
		validator.WithLogger(logger),
		validator.WithAuditor(opts.Auditor),
	}
	if opts.CommandRunner != nil {
		vopts = append(vopts, validator.WithCommandRunner(opts.CommandRunner))
	}
	if opts.Recommender != nil {
		vopts = append(vopts, validator.WithRecommender(opts.Recommender))
	}
	if opts.CriterionTimeout > 0 {
		vopts = append(vopts, validator.WithTimeout(opts.CriterionTimeout))
	}
	v := validator.New(queue, vopts...)

	return &Pipeline{
		catalog:   cat,
		generator: generator.New(cat, generator.WithLogger(logger)),
		queue:     queue,
		executor: executor.New(runner.New(v, logger),
			executor.WithThreshold(opts.PassThreshold),
			executor.WithLogger(logger),
			executor.WithEvents(opts.Events),
		),
		resolver:   responsibility.NewResolver(registry, directory, responsibility.WithLogger(logger)),
		escalation: engine,
		store:      opts.Store,
		logger:     logger,
		live:       make(map[string]*executor.Execution),
		results:    make(map[string]*models.ChecklistExecutionResult),
		checklists: make(map[string]*models.Checklist),
	}, nil
}

// Catalog returns the catalog checklists are generated from.
func (p *Pipeline) Catalog() *catalog.Catalog {
	return p.catalog
}

// GenerateChecklist builds and stores the checklist for a context.
func (p *Pipeline) GenerateChecklist(ctx context.Context, vctx models.ValidationContext) (*models.Checklist, error) {
	c, err := p.generator.Generate(vctx)
	if err != nil {
		return nil, err
	}
	if err := p.saveChecklist(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Checklist returns a stored checklist.
func (p *Pipeline) Checklist(ctx context.Context, id string) (*models.Checklist, error) {
	p.mu.Lock()
	c, ok := p.checklists[id]
	p.mu.Unlock()
	if ok {
		return c, nil
	}
	if p.store != nil {
		c, err := p.store.GetChecklist(ctx, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrChecklistNotFound, id)
}

// ExecuteChecklist runs a checklist to a final or awaiting state. The
// returned error only reports persistence failures; the result is always set.
func (p *Pipeline) ExecuteChecklist(ctx context.Context, checklist *models.Checklist) (*models.ChecklistExecutionResult, error) {
	if err := p.saveChecklist(ctx, checklist); err != nil {
		return nil, err
	}
	x := p.executor.Prepare(checklist)
	p.track(x)
	defer p.untrack(x.ID())

	result := p.executor.Run(ctx, x, checklist)
	return result, p.saveResult(context.WithoutCancel(ctx), result)
}

// ResumeExecution continues an execution that is awaiting manual review.
func (p *Pipeline) ResumeExecution(ctx context.Context, executionID string) (*models.ChecklistExecutionResult, error) {
	prev, err := p.Execution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	checklist, err := p.Checklist(ctx, prev.ChecklistID)
	if err != nil {
		return nil, err
	}
	if n := p.queue.Unanswered(pendingTickets(prev)); n > 0 {
		p.logger.Log("[pipeline] resume %s with %d reviews outstanding", executionID, n)
	}

	result := p.executor.Resume(ctx, checklist, prev)
	return result, p.saveResult(context.WithoutCancel(ctx), result)
}

// Execution returns the latest result of an execution.
func (p *Pipeline) Execution(ctx context.Context, executionID string) (*models.ChecklistExecutionResult, error) {
	p.mu.Lock()
	r, ok := p.results[executionID]
	p.mu.Unlock()
	if ok {
		return r, nil
	}
	if p.store != nil {
		r, err := p.store.GetExecution(ctx, executionID)
		if err != nil {
			return nil, err
		}
		if r != nil {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
}

// Progress returns the live progress of a running execution.
func (p *Pipeline) Progress(executionID string) (executor.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	x, ok := p.live[executionID]
	if !ok {
		return executor.Snapshot{}, false
	}
	return x.Snapshot(), true
}

// PendingReviews lists open review tickets. An empty executionID lists all of them.
func (p *Pipeline) PendingReviews(executionID string) []*validator.Ticket {
	return p.queue.Pending(executionID)
}

// Review returns a review ticket.
func (p *Pipeline) Review(ticketID string) (*validator.Ticket, bool) {
	return p.queue.Get(ticketID)
}

// SubmitManualResult answers a review ticket.
func (p *Pipeline) SubmitManualResult(ctx context.Context, ticketID string, result models.RawResult, reviewer string) (*validator.Ticket, error) {
	return p.queue.SubmitManualResult(ctx, ticketID, result, reviewer)
}

// ConfirmRecommendation accepts or rejects a semi-automated recommendation.
func (p *Pipeline) ConfirmRecommendation(ctx context.Context, ticketID string, accept bool, reviewer string) (*validator.Ticket, error) {
	return p.queue.ConfirmRecommendation(ctx, ticketID, accept, reviewer)
}

// Queue returns the review queue, for inbox and prompt wiring.
func (p *Pipeline) Queue() *validator.ReviewQueue {
	return p.queue
}

// ResolveResponsibilities assigns owners to every item of a checklist and
// registers the assignments for escalation.
func (p *Pipeline) ResolveResponsibilities(ctx context.Context, checklist *models.Checklist) (*responsibility.ResolutionResult, error) {
	res := p.resolver.ResolveAll(ctx, checklist, checklist.Context)
	for _, a := range res.Assignments {
		if err := p.escalation.Register(ctx, a); err != nil {
			return res, err
		}
	}
	for _, u := range res.Unassigned {
		p.logger.Log("[pipeline] %s unassigned: %s", u.ItemID, u.Reason)
	}
	return res, nil
}

// Escalate moves an assignment one step up its escalation path.
func (p *Pipeline) Escalate(ctx context.Context, assignmentID, reason string, urgency models.Urgency) (*models.EscalationRecord, error) {
	return p.escalation.Escalate(ctx, assignmentID, reason, urgency)
}

// EscalateFailures escalates the assignments of the failed critical items
// of a result. Assignments already at the end of their path are skipped.
func (p *Pipeline) EscalateFailures(ctx context.Context, result *models.ChecklistExecutionResult) ([]models.EscalationRecord, error) {
	byItem := make(map[string]*models.ResponsibilityAssignment)
	for _, a := range p.escalation.Assignments() {
		if a.ChecklistID == result.ChecklistID && !a.Status.Terminal() {
			byItem[a.ItemID] = a
		}
	}

	var out []models.EscalationRecord
	var errs []error
	for _, ir := range result.FailedItems() {
		if len(ir.Blockers) == 0 {
			continue
		}
		a, ok := byItem[ir.ItemID]
		if !ok {
			continue
		}
		reason := "blocked: " + strings.Join(ir.Blockers, "; ")
		rec, err := p.escalation.Escalate(ctx, a.ID, reason, models.UrgencyFor(ir.Priority))
		if errors.Is(err, escalation.ErrMaxEscalationReached) {
			p.logger.Log("[pipeline] %s: %v", ir.ItemID, err)
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, *rec)
	}
	return out, errors.Join(errs...)
}

// EscalateOverdue escalates every assignment past its SLA.
func (p *Pipeline) EscalateOverdue(ctx context.Context, now time.Time) ([]models.EscalationRecord, error) {
	return p.escalation.EscalateOverdue(ctx, now)
}

// ResolveAssignment marks an assignment done.
func (p *Pipeline) ResolveAssignment(ctx context.Context, assignmentID string) error {
	return p.escalation.Resolve(ctx, assignmentID)
}

// Assignments returns every known assignment.
func (p *Pipeline) Assignments() []*models.ResponsibilityAssignment {
	return p.escalation.Assignments()
}

// Close waits for outstanding escalation notifications.
func (p *Pipeline) Close() {
	p.escalation.Wait()
}

func (p *Pipeline) saveChecklist(ctx context.Context, c *models.Checklist) error {
	p.mu.Lock()
	p.checklists[c.ID] = c
	p.mu.Unlock()
	if p.store == nil {
		return nil
	}
	return p.store.SaveChecklist(ctx, c)
}

func (p *Pipeline) saveResult(ctx context.Context, r *models.ChecklistExecutionResult) error {
	p.mu.Lock()
	p.results[r.ExecutionID] = r
	p.mu.Unlock()
	if p.store == nil {
		return nil
	}
	return p.store.SaveExecution(ctx, r)
}

func (p *Pipeline) track(x *executor.Execution) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live[x.ID()] = x
}

func (p *Pipeline) untrack(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, id)
}

func pendingTickets(r *models.ChecklistExecutionResult) []string {
	var ids []string
	for _, ir := range r.ItemResults {
		ids = append(ids, ir.PendingTickets()...)
	}
	return ids
}
