package models

import "time"

// Person is someone who can own, review or approve a checklist item.
type Person struct {
	ID    string   `json:"id" yaml:"id"`
	Name  string   `json:"name" yaml:"name"`
	Email string   `json:"email,omitempty" yaml:"email,omitempty"`
	Roles []string `json:"roles" yaml:"roles"`
}

// AssignmentStatus is the escalation state of an assignment.
type AssignmentStatus string

const (
	AssignmentAssigned             AssignmentStatus = "assigned"
	AssignmentEscalated            AssignmentStatus = "escalated"
	AssignmentResolved             AssignmentStatus = "resolved"
	AssignmentMaxEscalationReached AssignmentStatus = "max_escalation_reached"
)

// Terminal returns true if no further escalation is possible.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentResolved || s == AssignmentMaxEscalationReached
}

// Owner binds a role to the person currently filling it.
type Owner struct {
	Role   string  `json:"role"`
	Person *Person `json:"person,omitempty"`
}

// ResponsibilityAssignment binds a checklist item to people.
type ResponsibilityAssignment struct {
	// ID uniquely identifies the assignment.
	ID string `json:"id"`
	// ChecklistID is the checklist the item belongs to.
	ChecklistID string `json:"checklist_id,omitempty"`
	// ItemID is the assigned checklist item.
	ItemID string `json:"item_id"`
	// Priority is copied from the item; it drives escalation urgency.
	Priority Priority `json:"priority"`
	// PrimaryOwner is the accountable role and its resolved person.
	PrimaryOwner Owner `json:"primary_owner"`
	// SecondaryOwners are fallback roles.
	SecondaryOwners []string `json:"secondary_owners,omitempty"`
	// Reviewers are roles that review the item's outcome.
	Reviewers []string `json:"reviewers,omitempty"`
	// Approvers are roles that sign off on the item.
	Approvers []string `json:"approvers,omitempty"`
	// EscalationPath is the ordered list of roles to escalate to. Non-empty for critical items.
	EscalationPath []string `json:"escalation_path"`
	// SLAHours is the time allowed before the assignment is overdue.
	SLAHours int `json:"sla_hours"`
	// AssignedAt is when the assignment was made.
	AssignedAt time.Time `json:"assigned_at"`
	// DueDate is AssignedAt + SLAHours.
	DueDate time.Time `json:"due_date"`
	// EscalationLevel is the monotonic escalation cursor (0 = not escalated).
	EscalationLevel int `json:"escalation_level"`
	// Status is the escalation state.
	Status AssignmentStatus `json:"status"`
}

// CurrentRole returns the role currently responsible: the primary owner at
// level 0, otherwise the role at the current escalation level.
func (a *ResponsibilityAssignment) CurrentRole() string {
	if a.EscalationLevel == 0 || len(a.EscalationPath) == 0 {
		return a.PrimaryOwner.Role
	}
	idx := a.EscalationLevel - 1
	if idx >= len(a.EscalationPath) {
		idx = len(a.EscalationPath) - 1
	}
	return a.EscalationPath[idx]
}

// Overdue returns true if the assignment is unresolved past its due date.
func (a *ResponsibilityAssignment) Overdue(now time.Time) bool {
	return !a.Status.Terminal() && !a.DueDate.IsZero() && now.After(a.DueDate)
}

// Urgency is how urgently an escalation needs attention.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Valid returns true if the urgency is a known value.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyCritical:
		return true
	default:
		return false
	}
}

// UrgencyFor maps an item priority to a default escalation urgency.
func UrgencyFor(p Priority) Urgency {
	switch p {
	case PriorityCritical:
		return UrgencyCritical
	case PriorityHigh:
		return UrgencyHigh
	case PriorityLow:
		return UrgencyLow
	default:
		return UrgencyNormal
	}
}

// EscalationRecord is one hop along an assignment's escalation path.
type EscalationRecord struct {
	// AssignmentID is the escalated assignment.
	AssignmentID string `json:"assignment_id"`
	// FromRole is the role responsible before this hop.
	FromRole string `json:"from_role"`
	// ToRole is the role responsible after this hop.
	ToRole string `json:"to_role"`
	// Reason explains why the assignment was escalated.
	Reason string `json:"reason"`
	// Urgency is how urgently ToRole must act.
	Urgency Urgency `json:"urgency"`
	// Level is the 1-based position of ToRole in the escalation path.
	Level int `json:"level"`
	// CreatedAt is when the hop was recorded.
	CreatedAt time.Time `json:"created_at"`
}
