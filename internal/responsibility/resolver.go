package responsibility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/qualgate/internal/logging"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// Unassigned is an item no one could be assigned to.
type Unassigned struct {
	ItemID string `json:"item_id"`
	Err    error  `json:"-"`
	Reason string `json:"reason"`
}

// ResolutionResult is the outcome of resolving a whole checklist.
type ResolutionResult struct {
	Assignments []*models.ResponsibilityAssignment `json:"assignments"`
	Unassigned  []Unassigned                       `json:"unassigned,omitempty"`
}

// Resolver assigns owners to checklist items.
type Resolver struct {
	registry  *Registry
	directory Directory
	logger    logging.Logger
	newID     func() string
	now       func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the debug logger.
func WithLogger(l logging.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithIDFunc overrides assignment ID generation.
func WithIDFunc(fn func() string) ResolverOption {
	return func(r *Resolver) { r.newID = fn }
}

// WithClock overrides the clock.
func WithClock(fn func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = fn }
}

// NewResolver creates a resolver over a registry and directory.
func NewResolver(registry *Registry, directory Directory, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		registry:  registry,
		directory: directory,
		logger:    logging.NopLogger(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve assigns an item. The primary owner role is tried first, then the
// secondary roles in order; the first role with an available person owns
// the item.
func (r *Resolver) Resolve(ctx context.Context, item models.ChecklistItem, vctx models.ValidationContext) (*models.ResponsibilityAssignment, error) {
	m, err := r.registry.Lookup(item)
	if err != nil {
		return nil, err
	}

	var owner models.Owner
	for _, role := range append([]string{m.Owner}, m.SecondaryOwners...) {
		person, err := r.directory.FindAvailableOwner(ctx, role)
		var none *NoAvailableOwnerError
		if errors.As(err, &none) {
			r.logger.Log("[responsibility] %s: no one available for %s", item.ID, role)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", item.ID, err)
		}
		owner = models.Owner{Role: role, Person: person}
		break
	}
	if owner.Person == nil {
		return nil, &NoAvailableOwnerError{ItemID: item.ID, Role: m.Owner}
	}

	sla := r.registry.SLAHours(m, item.Priority)
	if vctx.ChangeType == models.ChangeHotfix {
		sla = max(sla/2, 1)
	}

	assignedAt := r.now().UTC()
	a := &models.ResponsibilityAssignment{
		ID:              r.newID(),
		ItemID:          item.ID,
		Priority:        item.Priority,
		PrimaryOwner:    owner,
		SecondaryOwners: m.SecondaryOwners,
		Reviewers:       m.Reviewers,
		Approvers:       m.Approvers,
		EscalationPath:  m.EscalationPath,
		SLAHours:        sla,
		AssignedAt:      assignedAt,
		DueDate:         assignedAt.Add(time.Duration(sla) * time.Hour),
		Status:          models.AssignmentAssigned,
	}
	r.logger.Log("[responsibility] %s -> %s (%s), due %s", item.ID, owner.Person.ID, owner.Role, a.DueDate.Format(time.RFC3339))
	return a, nil
}

// ResolveAll assigns every item of a checklist. Items that cannot be
// assigned are reported and do not stop the others.
func (r *Resolver) ResolveAll(ctx context.Context, checklist *models.Checklist, vctx models.ValidationContext) *ResolutionResult {
	out := &ResolutionResult{}
	for _, item := range checklist.Items {
		if err := ctx.Err(); err != nil {
			out.Unassigned = append(out.Unassigned, Unassigned{ItemID: item.ID, Err: err, Reason: err.Error()})
			continue
		}
		a, err := r.Resolve(ctx, item, vctx)
		if err != nil {
			out.Unassigned = append(out.Unassigned, Unassigned{ItemID: item.ID, Err: err, Reason: err.Error()})
			continue
		}
		a.ChecklistID = checklist.ID
		out.Assignments = append(out.Assignments, a)
	}
	return out
}
