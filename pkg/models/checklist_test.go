package models

import (
	"errors"
	"testing"
	"time"
)

func TestPriority_Valid(t *testing.T) {
	tests := []struct {
		name     string
		priority Priority
		want     bool
	}{
		{"critical is valid", PriorityCritical, true},
		{"high is valid", PriorityHigh, true},
		{"medium is valid", PriorityMedium, true},
		{"low is valid", PriorityLow, true},
		{"empty string is invalid", Priority(""), false},
		{"unknown priority is invalid", Priority("urgent"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.priority.Valid(); got != tt.want {
				t.Errorf("Priority(%q).Valid() = %v, want %v", tt.priority, got, tt.want)
			}
		})
	}
}

func TestPriority_Rank(t *testing.T) {
	order := []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, Priority("bogus")}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("expected %q to rank before %q", order[i-1], order[i])
		}
	}
}

func TestPhase_Valid(t *testing.T) {
	for _, p := range []Phase{PhasePreDevelopment, PhaseDevelopment, PhasePostDevelopment, PhaseDeployment} {
		if !p.Valid() {
			t.Errorf("Phase(%q).Valid() = false, want true", p)
		}
	}
	if Phase("release").Valid() {
		t.Error("Phase(release).Valid() = true, want false")
	}
}

func TestApplicability_IsBase(t *testing.T) {
	if !(Applicability{}).IsBase() {
		t.Error("empty applicability should be base")
	}
	if (Applicability{RequiresUIChanges: true}).IsBase() {
		t.Error("applicability with a condition should not be base")
	}
}

func TestApplicability_Matches(t *testing.T) {
	ctx := ValidationContext{
		ChangeType:              ChangeFeature,
		IncludesSecurityChanges: true,
		Technologies:            []string{"Go", "React"},
	}

	tests := []struct {
		name string
		app  Applicability
		want bool
	}{
		{"base matches", Applicability{}, true},
		{"security flag set", Applicability{RequiresSecurityChanges: true}, true},
		{"ui flag missing", Applicability{RequiresUIChanges: true}, false},
		{"change type listed", Applicability{ChangeTypes: []ChangeType{ChangeBugfix, ChangeFeature}}, true},
		{"change type not listed", Applicability{ChangeTypes: []ChangeType{ChangeHotfix}}, false},
		{"technology case-insensitive", Applicability{Technologies: []string{"react"}}, true},
		{"technology absent", Applicability{Technologies: []string{"vue", "angular"}}, false},
		{"all conditions must hold", Applicability{RequiresSecurityChanges: true, RequiresDatabaseChanges: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.app.Matches(ctx); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChecklist_ItemAndCriteriaCount(t *testing.T) {
	cl := &Checklist{
		Items: []ChecklistItem{
			{ID: "a", Criteria: []Criterion{{ID: "a1"}, {ID: "a2"}}},
			{ID: "b", Criteria: []Criterion{{ID: "b1"}}},
			{ID: "c"},
		},
		EstimatedDuration: time.Hour,
	}

	if got := cl.CriteriaCount(); got != 3 {
		t.Errorf("CriteriaCount() = %d, want 3", got)
	}
	item, ok := cl.Item("b")
	if !ok || item.ID != "b" {
		t.Errorf("Item(b) = %+v, %v", item, ok)
	}
	if _, ok := cl.Item("missing"); ok {
		t.Error("Item(missing) should not be found")
	}
}

func TestRawResultPayload_ToRawResult(t *testing.T) {
	score := 72.5
	passed := true
	pct := 81.0

	tests := []struct {
		name    string
		payload RawResultPayload
		want    RawResult
		wantErr bool
	}{
		{"score", RawResultPayload{Score: &score, Details: "d"}, ScoreResult{Value: 72.5, Details: "d"}, false},
		{"passed", RawResultPayload{Passed: &passed}, PassResult{Passed: true}, false},
		{"percentage", RawResultPayload{Percentage: &pct}, PercentageResult{Value: 81}, false},
		{"empty", RawResultPayload{}, nil, true},
		{"two shapes", RawResultPayload{Score: &score, Passed: &passed}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.payload.ToRawResult()
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedResult) {
					t.Fatalf("expected ErrMalformedResult, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ToRawResult() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestPayloadFrom(t *testing.T) {
	p, err := PayloadFrom(PercentageResult{Value: 64, Details: "coverage"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Percentage == nil || *p.Percentage != 64 || p.Details != "coverage" {
		t.Errorf("PayloadFrom() = %+v", p)
	}

	back, err := p.ToRawResult()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back != (PercentageResult{Value: 64, Details: "coverage"}) {
		t.Errorf("round trip = %#v", back)
	}
}

func TestItemStatus_Ran(t *testing.T) {
	tests := []struct {
		status ItemStatus
		want   bool
	}{
		{ItemPassed, true},
		{ItemFailed, true},
		{ItemError, true},
		{ItemSkipped, false},
		{ItemPending, false},
		{ItemQueued, false},
	}
	for _, tt := range tests {
		if got := tt.status.Ran(); got != tt.want {
			t.Errorf("ItemStatus(%q).Ran() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestResponsibilityAssignment_CurrentRole(t *testing.T) {
	a := &ResponsibilityAssignment{
		PrimaryOwner:   Owner{Role: "developer"},
		EscalationPath: []string{"tech-lead", "engineering-manager"},
	}
	if got := a.CurrentRole(); got != "developer" {
		t.Errorf("CurrentRole() at level 0 = %q, want developer", got)
	}
	a.EscalationLevel = 2
	if got := a.CurrentRole(); got != "engineering-manager" {
		t.Errorf("CurrentRole() at level 2 = %q, want engineering-manager", got)
	}
}

func TestResponsibilityAssignment_Overdue(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := &ResponsibilityAssignment{DueDate: now.Add(-time.Hour), Status: AssignmentAssigned}
	if !a.Overdue(now) {
		t.Error("expected assignment past due date to be overdue")
	}
	a.Status = AssignmentResolved
	if a.Overdue(now) {
		t.Error("resolved assignment should never be overdue")
	}
}

func TestUrgencyFor(t *testing.T) {
	if UrgencyFor(PriorityCritical) != UrgencyCritical {
		t.Error("critical priority should map to critical urgency")
	}
	if UrgencyFor(PriorityMedium) != UrgencyNormal {
		t.Error("medium priority should map to normal urgency")
	}
}
