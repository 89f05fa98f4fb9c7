// Package escalation moves unresolved assignments up their escalation
// path and notifies whoever becomes responsible.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/ShayCichocki/qualgate/internal/logging"
	"github.com/ShayCichocki/qualgate/internal/responsibility"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

var (
	// ErrMaxEscalationReached is returned when an assignment is already at
	// the end of its escalation path.
	ErrMaxEscalationReached = errors.New("maximum escalation level reached")
	// ErrAssignmentResolved is returned when escalating a resolved assignment.
	ErrAssignmentResolved = errors.New("assignment already resolved")
	// ErrAssignmentNotFound is returned for unknown assignment IDs.
	ErrAssignmentNotFound = errors.New("assignment not found")
)

// Store persists assignments and escalation records.
type Store interface {
	SaveAssignment(ctx context.Context, a *models.ResponsibilityAssignment) error
	ListAssignments(ctx context.Context) ([]*models.ResponsibilityAssignment, error)
	AppendEscalation(ctx context.Context, rec models.EscalationRecord) error
	ListEscalations(ctx context.Context, assignmentID string) ([]models.EscalationRecord, error)
}

type notifyKey struct {
	assignmentID string
	level        int
}

// Engine owns the escalation state of every registered assignment.
type Engine struct {
	mu          sync.Mutex
	assignments map[string]*models.ResponsibilityAssignment
	order       []string
	records     map[string][]models.EscalationRecord
	notified    map[notifyKey]bool

	store     Store
	notifier  Notifier
	directory responsibility.Directory
	logger    logging.Logger
	now       func() time.Time

	wg conc.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore persists assignments and records.
func WithStore(s Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithNotifier sets the notifier. Defaults to logging.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithDirectory resolves escalation roles to people when notifying.
func WithDirectory(d responsibility.Directory) Option {
	return func(e *Engine) { e.directory = d }
}

// WithLogger sets the debug logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the clock.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// NewEngine creates an escalation engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		assignments: make(map[string]*models.ResponsibilityAssignment),
		records:     make(map[string][]models.EscalationRecord),
		notified:    make(map[notifyKey]bool),
		logger:      logging.NopLogger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.notifier == nil {
		e.notifier = NewLogNotifier(e.logger)
	}
	return e
}

// Load restores assignments and records from the store. An assignment whose
// stored level lags its records takes the highest recorded level.
func (e *Engine) Load(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	list, err := e.store.ListAssignments(ctx)
	if err != nil {
		return fmt.Errorf("load assignments: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range list {
		recs, err := e.store.ListEscalations(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("load escalations for %s: %w", a.ID, err)
		}
		for _, r := range recs {
			if r.Level > a.EscalationLevel {
				e.logger.Log("[escalation] %s: stored level %d behind records, using %d", a.ID, a.EscalationLevel, r.Level)
				a.EscalationLevel = r.Level
			}
			e.notified[notifyKey{a.ID, r.Level}] = true
		}
		if _, ok := e.assignments[a.ID]; !ok {
			e.order = append(e.order, a.ID)
		}
		e.assignments[a.ID] = a
		e.records[a.ID] = recs
	}
	return nil
}

// Register starts tracking an assignment.
func (e *Engine) Register(ctx context.Context, a *models.ResponsibilityAssignment) error {
	if a.Status == "" {
		a.Status = models.AssignmentAssigned
	}
	cp := cloneAssignment(a)
	if e.store != nil {
		if err := e.store.SaveAssignment(ctx, cp); err != nil {
			return fmt.Errorf("register assignment %s: %w", a.ID, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.assignments[a.ID]; !ok {
		e.order = append(e.order, a.ID)
	}
	e.assignments[a.ID] = cp
	return nil
}

// Escalate moves an assignment one step up its escalation path and
// notifies the new role. An invalid urgency is replaced by the default
// for the item's priority.
func (e *Engine) Escalate(ctx context.Context, assignmentID, reason string, urgency models.Urgency) (*models.EscalationRecord, error) {
	e.mu.Lock()
	rec, note, err := e.escalateLocked(ctx, assignmentID, reason, urgency, time.Time{})
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	e.notify(ctx, note)
	return rec, nil
}

// EscalateOverdue escalates every unresolved assignment past its due date
// and pushes its due date one SLA period forward. Assignments already at
// the end of their path are marked and skipped.
func (e *Engine) EscalateOverdue(ctx context.Context, now time.Time) ([]models.EscalationRecord, error) {
	e.mu.Lock()
	var out []models.EscalationRecord
	var notes []Notification
	var errs []error
	for _, id := range e.order {
		a := e.assignments[id]
		if !a.Overdue(now) {
			continue
		}
		reason := fmt.Sprintf("SLA of %dh exceeded (due %s)", a.SLAHours, a.DueDate.Format(time.RFC3339))
		rec, note, err := e.escalateLocked(ctx, id, reason, models.UrgencyFor(a.Priority), now)
		switch {
		case errors.Is(err, ErrMaxEscalationReached):
			e.logger.Log("[escalation] %s overdue at max level", id)
		case err != nil:
			errs = append(errs, err)
		default:
			out = append(out, *rec)
			notes = append(notes, note)
		}
	}
	e.mu.Unlock()

	for _, note := range notes {
		e.notify(ctx, note)
	}
	return out, errors.Join(errs...)
}

func (e *Engine) escalateLocked(ctx context.Context, id, reason string, urgency models.Urgency, dueFrom time.Time) (*models.EscalationRecord, Notification, error) {
	cur, ok := e.assignments[id]
	if !ok {
		return nil, Notification{}, fmt.Errorf("escalate %s: %w", id, ErrAssignmentNotFound)
	}
	switch cur.Status {
	case models.AssignmentResolved:
		return nil, Notification{}, fmt.Errorf("escalate %s: %w", id, ErrAssignmentResolved)
	case models.AssignmentMaxEscalationReached:
		return nil, Notification{}, fmt.Errorf("escalate %s: %w", id, ErrMaxEscalationReached)
	}

	next := cloneAssignment(cur)
	if next.EscalationLevel >= len(next.EscalationPath) {
		next.Status = models.AssignmentMaxEscalationReached
		if err := e.save(ctx, next); err != nil {
			return nil, Notification{}, err
		}
		e.assignments[id] = next
		return nil, Notification{}, fmt.Errorf("escalate %s at level %d: %w", id, cur.EscalationLevel, ErrMaxEscalationReached)
	}

	if !urgency.Valid() {
		urgency = models.UrgencyFor(cur.Priority)
	}
	now := e.now().UTC()
	from := cur.CurrentRole()
	next.EscalationLevel++
	next.Status = models.AssignmentEscalated
	if !dueFrom.IsZero() && next.SLAHours > 0 {
		next.DueDate = dueFrom.Add(time.Duration(next.SLAHours) * time.Hour)
	}
	rec := models.EscalationRecord{
		AssignmentID: id,
		FromRole:     from,
		ToRole:       next.CurrentRole(),
		Reason:       reason,
		Urgency:      urgency,
		Level:        next.EscalationLevel,
		CreatedAt:    now,
	}

	if e.store != nil {
		if err := e.store.AppendEscalation(ctx, rec); err != nil {
			return nil, Notification{}, fmt.Errorf("escalate %s: %w", id, err)
		}
	}
	// Records are authoritative on load.
	if err := e.save(ctx, next); err != nil {
		e.logger.Log("[escalation] %s: %v", id, err)
	}
	e.assignments[id] = next
	e.records[id] = append(e.records[id], rec)
	e.logger.Log("[escalation] %s: %s -> %s (level %d, %s)", id, rec.FromRole, rec.ToRole, rec.Level, urgency)

	note := Notification{
		AssignmentID: id,
		ItemID:       next.ItemID,
		Role:         rec.ToRole,
		FromRole:     rec.FromRole,
		Reason:       reason,
		Urgency:      urgency,
		Level:        rec.Level,
		CreatedAt:    now,
	}
	return &rec, note, nil
}

// Resolve closes an assignment. Resolving twice is a no-op.
func (e *Engine) Resolve(ctx context.Context, assignmentID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, ok := e.assignments[assignmentID]
	if !ok {
		return fmt.Errorf("resolve %s: %w", assignmentID, ErrAssignmentNotFound)
	}
	if cur.Status == models.AssignmentResolved {
		return nil
	}
	next := cloneAssignment(cur)
	next.Status = models.AssignmentResolved
	if err := e.save(ctx, next); err != nil {
		return err
	}
	e.assignments[assignmentID] = next
	e.logger.Log("[escalation] %s resolved at level %d", assignmentID, next.EscalationLevel)
	return nil
}

// Get returns a copy of an assignment.
func (e *Engine) Get(assignmentID string) (*models.ResponsibilityAssignment, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.assignments[assignmentID]
	if !ok {
		return nil, false
	}
	return cloneAssignment(a), true
}

// Assignments returns copies of all assignments in registration order.
func (e *Engine) Assignments() []*models.ResponsibilityAssignment {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*models.ResponsibilityAssignment, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, cloneAssignment(e.assignments[id]))
	}
	return out
}

// Records returns the escalation history of an assignment.
func (e *Engine) Records(assignmentID string) []models.EscalationRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.EscalationRecord(nil), e.records[assignmentID]...)
}

// Wait blocks until in-flight notifications are delivered.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) save(ctx context.Context, a *models.ResponsibilityAssignment) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.SaveAssignment(ctx, a); err != nil {
		return fmt.Errorf("save assignment %s: %w", a.ID, err)
	}
	return nil
}

// notify delivers a notification in the background, at most once per level.
func (e *Engine) notify(ctx context.Context, note Notification) {
	e.mu.Lock()
	key := notifyKey{note.AssignmentID, note.Level}
	if e.notified[key] {
		e.mu.Unlock()
		return
	}
	e.notified[key] = true
	e.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	e.wg.Go(func() {
		recipient := e.recipient(ctx, note.Role)
		var pc panics.Catcher
		pc.Try(func() {
			if err := e.notifier.Notify(ctx, recipient, note); err != nil {
				e.logger.Log("[escalation] notify %s for %s level %d failed: %v", recipient, note.AssignmentID, note.Level, err)
			}
		})
		if r := pc.Recovered(); r != nil {
			e.logger.Log("[escalation] notifier panic: %v", r.Value)
		}
	})
}

func (e *Engine) recipient(ctx context.Context, role string) string {
	if e.directory == nil {
		return role
	}
	p, err := e.directory.FindAvailableOwner(ctx, role)
	if err != nil {
		e.logger.Log("[escalation] no one available for %s, notifying the role", role)
		return role
	}
	if p.Email != "" {
		return p.Email
	}
	return p.ID
}

func cloneAssignment(a *models.ResponsibilityAssignment) *models.ResponsibilityAssignment {
	cp := *a
	cp.SecondaryOwners = append([]string(nil), a.SecondaryOwners...)
	cp.Reviewers = append([]string(nil), a.Reviewers...)
	cp.Approvers = append([]string(nil), a.Approvers...)
	cp.EscalationPath = append([]string(nil), a.EscalationPath...)
	if a.PrimaryOwner.Person != nil {
		p := *a.PrimaryOwner.Person
		cp.PrimaryOwner.Person = &p
	}
	return &cp
}
