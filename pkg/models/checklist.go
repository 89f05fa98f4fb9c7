package models

import (
	"slices"
	"strings"
	"time"
)

// Priority ranks how important a checklist item is.
type Priority string

const (
	// PriorityCritical items gate the whole execution.
	PriorityCritical Priority = "critical"
	// PriorityHigh items matter but do not halt the run.
	PriorityHigh Priority = "high"
	// PriorityMedium is the default priority.
	PriorityMedium Priority = "medium"
	// PriorityLow items are advisory.
	PriorityLow Priority = "low"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Rank orders priorities with critical first. Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Phase is the development phase an item belongs to.
type Phase string

const (
	PhasePreDevelopment  Phase = "pre-development"
	PhaseDevelopment     Phase = "development"
	PhasePostDevelopment Phase = "post-development"
	PhaseDeployment      Phase = "deployment"
)

// Valid returns true if the phase is a known value.
func (p Phase) Valid() bool {
	switch p {
	case PhasePreDevelopment, PhaseDevelopment, PhasePostDevelopment, PhaseDeployment:
		return true
	default:
		return false
	}
}

// ChangeType classifies the change being validated.
type ChangeType string

const (
	ChangeFeature  ChangeType = "feature"
	ChangeBugfix   ChangeType = "bugfix"
	ChangeSecurity ChangeType = "security"
	ChangeUI       ChangeType = "ui"
	ChangeRefactor ChangeType = "refactor"
	ChangeHotfix   ChangeType = "hotfix"
	ChangeDocs     ChangeType = "docs"
)

// ValidationContext describes what is being validated. Checklist selection
// is a pure function of this value and the catalog.
type ValidationContext struct {
	// ChangeType classifies the change (feature, bugfix, ...).
	ChangeType ChangeType `json:"change_type"`
	// Title is a short human description of the change.
	Title string `json:"title,omitempty"`
	// RepoPath is the working directory automated validators run in.
	RepoPath string `json:"repo_path,omitempty"`
	// IncludesSecurityChanges marks changes touching authn/authz, crypto or secrets.
	IncludesSecurityChanges bool `json:"includes_security_changes,omitempty"`
	// IncludesUIChanges marks changes to user-facing interfaces.
	IncludesUIChanges bool `json:"includes_ui_changes,omitempty"`
	// IncludesAPIChanges marks changes to public API contracts.
	IncludesAPIChanges bool `json:"includes_api_changes,omitempty"`
	// IncludesDatabaseChanges marks schema or migration changes.
	IncludesDatabaseChanges bool `json:"includes_database_changes,omitempty"`
	// Technologies lists the stack involved (react, go, postgres, ...).
	Technologies []string `json:"technologies,omitempty"`
}

// HasTechnology reports whether the context lists the technology, case-insensitively.
func (c ValidationContext) HasTechnology(tech string) bool {
	for _, t := range c.Technologies {
		if strings.EqualFold(t, tech) {
			return true
		}
	}
	return false
}

// Applicability is the predicate deciding whether an item is selected for a
// context. An empty predicate marks the item as part of the base set.
// Every condition that is set must hold; list conditions match on any entry.
type Applicability struct {
	ChangeTypes             []ChangeType `json:"change_types,omitempty"`
	RequiresSecurityChanges bool         `json:"requires_security_changes,omitempty"`
	RequiresUIChanges       bool         `json:"requires_ui_changes,omitempty"`
	RequiresAPIChanges      bool         `json:"requires_api_changes,omitempty"`
	RequiresDatabaseChanges bool         `json:"requires_database_changes,omitempty"`
	Technologies            []string     `json:"technologies,omitempty"`
}

// IsBase returns true if the predicate has no conditions.
func (a Applicability) IsBase() bool {
	return len(a.ChangeTypes) == 0 &&
		!a.RequiresSecurityChanges &&
		!a.RequiresUIChanges &&
		!a.RequiresAPIChanges &&
		!a.RequiresDatabaseChanges &&
		len(a.Technologies) == 0
}

// Matches evaluates the predicate against a context.
func (a Applicability) Matches(c ValidationContext) bool {
	if len(a.ChangeTypes) > 0 && !slices.Contains(a.ChangeTypes, c.ChangeType) {
		return false
	}
	if a.RequiresSecurityChanges && !c.IncludesSecurityChanges {
		return false
	}
	if a.RequiresUIChanges && !c.IncludesUIChanges {
		return false
	}
	if a.RequiresAPIChanges && !c.IncludesAPIChanges {
		return false
	}
	if a.RequiresDatabaseChanges && !c.IncludesDatabaseChanges {
		return false
	}
	if len(a.Technologies) > 0 {
		found := false
		for _, tech := range a.Technologies {
			if c.HasTechnology(tech) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ChecklistItem is one quality dimension grouping one or more criteria.
type ChecklistItem struct {
	// ID uniquely identifies the item in the catalog.
	ID string `json:"id"`
	// Category groups items (code-standards, testing, security, ...).
	Category string `json:"category"`
	// Title is a short human description.
	Title string `json:"title"`
	// Priority decides gating: critical items halt the run when they fail.
	Priority Priority `json:"priority"`
	// Phase is the development phase the item belongs to.
	Phase Phase `json:"phase"`
	// Dependencies are item IDs that must complete (any status) before this item starts.
	Dependencies []string `json:"dependencies,omitempty"`
	// Criteria are evaluated in declaration order; order does not affect the score.
	Criteria []Criterion `json:"criteria"`
	// EstimatedTime is the expected time to complete the item.
	EstimatedTime time.Duration `json:"estimated_time"`
	// Applicability selects the item for a context. Empty means always applicable.
	Applicability Applicability `json:"applicability,omitempty"`
}

// IsCritical returns true if the item gates the whole execution.
func (i ChecklistItem) IsCritical() bool {
	return i.Priority == PriorityCritical
}

// Checklist is a context-bound, dependency-ordered instance of selected items.
// Its item list never changes after generation.
type Checklist struct {
	// ID uniquely identifies this checklist.
	ID string `json:"id"`
	// Context is the validation context the checklist was generated for.
	Context ValidationContext `json:"context"`
	// Items are topologically sorted by dependencies.
	Items []ChecklistItem `json:"items"`
	// EstimatedDuration is the sum of the items' estimated times.
	EstimatedDuration time.Duration `json:"estimated_duration"`
	// AutomationCoverage is the fraction of criteria with automated validation.
	AutomationCoverage float64 `json:"automation_coverage"`
	// CreatedAt is when the checklist was generated.
	CreatedAt time.Time `json:"created_at"`
}

// Item returns the item with the given ID.
func (c *Checklist) Item(id string) (ChecklistItem, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return ChecklistItem{}, false
}

// CriteriaCount returns the total number of criteria across all items.
func (c *Checklist) CriteriaCount() int {
	n := 0
	for _, item := range c.Items {
		n += len(item.Criteria)
	}
	return n
}
