package validator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/qualgate/internal/logging"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// Review queue errors.
var (
	// ErrTicketNotFound indicates no ticket exists with the given ID.
	ErrTicketNotFound = errors.New("review ticket not found")
	// ErrTicketClosed indicates the ticket was already answered or expired.
	ErrTicketClosed = errors.New("review ticket already closed")
	// ErrNoRecommendation indicates a confirmation was sent for a ticket without a recommendation.
	ErrNoRecommendation = errors.New("review ticket has no recommendation to confirm")
)

// TicketStatus is the lifecycle state of a review ticket.
type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketAnswered TicketStatus = "answered"
	TicketExpired  TicketStatus = "expired"
)

// Recommendation is a tool-produced suggestion a human must confirm.
type Recommendation struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
	Source    string  `json:"source,omitempty"`
}

// Ticket is an outstanding or answered request for human review of one criterion.
type Ticket struct {
	ID             string                   `json:"id"`
	ExecutionID    string                   `json:"execution_id"`
	ItemID         string                   `json:"item_id"`
	CriterionID    string                   `json:"criterion_id"`
	ValidationType models.ValidationType    `json:"validation_type"`
	Method         string                   `json:"method"`
	Description    string                   `json:"description,omitempty"`
	Recommendation *Recommendation          `json:"recommendation,omitempty"`
	Status         TicketStatus             `json:"status"`
	Result         *models.RawResultPayload `json:"result,omitempty"`
	// Rejected is set when a reviewer declined a semi-automated recommendation.
	Rejected   bool      `json:"rejected,omitempty"`
	Reviewer   string    `json:"reviewer,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
	AnsweredAt time.Time `json:"answered_at,omitempty"`
}

// Key identifies the criterion a ticket belongs to within an execution.
func (t *Ticket) Key() TicketKey {
	return TicketKey{ExecutionID: t.ExecutionID, ItemID: t.ItemID, CriterionID: t.CriterionID}
}

// TicketKey is the (execution, item, criterion) triple a ticket answers.
type TicketKey struct {
	ExecutionID string
	ItemID      string
	CriterionID string
}

// TicketStore persists review tickets.
type TicketStore interface {
	SaveTicket(ctx context.Context, t *Ticket) error
	ListTickets(ctx context.Context) ([]*Ticket, error)
}

// ReviewQueue tracks review tickets. Safe for concurrent use.
type ReviewQueue struct {
	mu      sync.Mutex
	tickets map[string]*Ticket
	byKey   map[TicketKey]string
	store   TicketStore
	ttl     time.Duration
	now     func() time.Time
	newID   func() string
	logger  logging.Logger
}

// QueueOption configures a ReviewQueue.
type QueueOption func(*ReviewQueue)

// WithTicketStore persists every ticket change to store.
func WithTicketStore(store TicketStore) QueueOption {
	return func(q *ReviewQueue) { q.store = store }
}

// WithTicketTTL expires open tickets after d. Zero means tickets never expire.
func WithTicketTTL(d time.Duration) QueueOption {
	return func(q *ReviewQueue) { q.ttl = d }
}

// WithQueueClock overrides the queue's clock. Used by tests.
func WithQueueClock(fn func() time.Time) QueueOption {
	return func(q *ReviewQueue) { q.now = fn }
}

// WithQueueLogger sets the debug logger.
func WithQueueLogger(l logging.Logger) QueueOption {
	return func(q *ReviewQueue) {
		if l != nil {
			q.logger = l
		}
	}
}

// NewReviewQueue creates an empty queue.
func NewReviewQueue(opts ...QueueOption) *ReviewQueue {
	q := &ReviewQueue{
		tickets: make(map[string]*Ticket),
		byKey:   make(map[TicketKey]string),
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Load replaces the queue contents with the tickets in the store.
func (q *ReviewQueue) Load(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	tickets, err := q.store.ListTickets(ctx)
	if err != nil {
		return fmt.Errorf("load review tickets: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.tickets = make(map[string]*Ticket, len(tickets))
	q.byKey = make(map[TicketKey]string, len(tickets))
	for _, t := range tickets {
		q.tickets[t.ID] = t
		q.byKey[t.Key()] = t.ID
	}
	return nil
}

// RequestManualReview opens a ticket for the criterion, or returns the
// existing ticket for the same (execution, item, criterion).
func (q *ReviewQueue) RequestManualReview(ctx context.Context, key TicketKey, c models.Criterion, rec *Recommendation) (*Ticket, error) {
	q.mu.Lock()
	if id, ok := q.byKey[key]; ok {
		t := *q.tickets[id]
		q.mu.Unlock()
		return &t, nil
	}

	now := q.now().UTC()
	t := &Ticket{
		ID:             q.newID(),
		ExecutionID:    key.ExecutionID,
		ItemID:         key.ItemID,
		CriterionID:    key.CriterionID,
		ValidationType: c.ValidationType,
		Method:         c.ValidationMethod,
		Description:    c.Description,
		Recommendation: rec,
		Status:         TicketOpen,
		CreatedAt:      now,
	}
	if q.ttl > 0 {
		t.ExpiresAt = now.Add(q.ttl)
	}
	q.tickets[t.ID] = t
	q.byKey[key] = t.ID
	snapshot := *t
	q.mu.Unlock()

	if err := q.persist(ctx, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// SubmitManualResult answers a ticket with a result. For a semi-automated
// ticket the submitted result replaces the recommendation.
func (q *ReviewQueue) SubmitManualResult(ctx context.Context, ticketID string, result models.RawResult, reviewer string) (*Ticket, error) {
	payload, err := models.PayloadFrom(result)
	if err != nil {
		return nil, err
	}
	return q.answer(ctx, ticketID, func(t *Ticket) error {
		t.Result = &payload
		t.Reviewer = reviewer
		return nil
	})
}

// ConfirmRecommendation accepts or rejects the recommendation attached to a
// semi-automated ticket.
func (q *ReviewQueue) ConfirmRecommendation(ctx context.Context, ticketID string, accept bool, reviewer string) (*Ticket, error) {
	return q.answer(ctx, ticketID, func(t *Ticket) error {
		if t.Recommendation == nil {
			return ErrNoRecommendation
		}
		t.Reviewer = reviewer
		if !accept {
			t.Rejected = true
			return nil
		}
		score := t.Recommendation.Score
		t.Result = &models.RawResultPayload{Score: &score, Details: t.Recommendation.Rationale}
		return nil
	})
}

func (q *ReviewQueue) answer(ctx context.Context, ticketID string, apply func(*Ticket) error) (*Ticket, error) {
	q.mu.Lock()
	t, ok := q.tickets[ticketID]
	if !ok {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
	}
	q.expireLocked(t)
	if t.Status != TicketOpen {
		status := t.Status
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", ErrTicketClosed, ticketID, status)
	}
	updated := *t
	if err := apply(&updated); err != nil {
		q.mu.Unlock()
		return nil, fmt.Errorf("ticket %s: %w", ticketID, err)
	}
	updated.Status = TicketAnswered
	updated.AnsweredAt = q.now().UTC()
	*t = updated
	q.mu.Unlock()

	if err := q.persist(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Lookup returns the ticket for a key, expiring it first if its deadline passed.
func (q *ReviewQueue) Lookup(ctx context.Context, key TicketKey) (*Ticket, bool) {
	q.mu.Lock()
	id, ok := q.byKey[key]
	if !ok {
		q.mu.Unlock()
		return nil, false
	}
	t := q.tickets[id]
	expired := q.expireLocked(t)
	snapshot := *t
	q.mu.Unlock()

	if expired {
		// The expiry is re-derived from ExpiresAt on load.
		if err := q.persist(ctx, &snapshot); err != nil {
			q.logger.Log("[queue] ticket %s expired: %v", snapshot.ID, err)
		}
	}
	return &snapshot, true
}

// Get returns the ticket with the given ID.
func (q *ReviewQueue) Get(ticketID string) (*Ticket, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tickets[ticketID]
	if !ok {
		return nil, false
	}
	snapshot := *t
	return &snapshot, true
}

// Pending returns open tickets, oldest first. An empty executionID returns all of them.
func (q *ReviewQueue) Pending(executionID string) []*Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*Ticket
	for _, t := range q.tickets {
		q.expireLocked(t)
		if t.Status != TicketOpen {
			continue
		}
		if executionID != "" && t.ExecutionID != executionID {
			continue
		}
		snapshot := *t
		out = append(out, &snapshot)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Unanswered reports how many of the given tickets are still open.
func (q *ReviewQueue) Unanswered(ticketIDs []string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, id := range ticketIDs {
		if t, ok := q.tickets[id]; ok {
			q.expireLocked(t)
			if t.Status == TicketOpen {
				n++
			}
		}
	}
	return n
}

func (q *ReviewQueue) expireLocked(t *Ticket) bool {
	if t.Status == TicketOpen && !t.ExpiresAt.IsZero() && q.now().After(t.ExpiresAt) {
		t.Status = TicketExpired
		return true
	}
	return false
}

func (q *ReviewQueue) persist(ctx context.Context, t *Ticket) error {
	if q.store == nil {
		return nil
	}
	if err := q.store.SaveTicket(ctx, t); err != nil {
		return fmt.Errorf("save review ticket %s: %w", t.ID, err)
	}
	return nil
}
