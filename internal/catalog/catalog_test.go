package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

func validItem(id string) models.ChecklistItem {
	return models.ChecklistItem{
		ID:       id,
		Category: "testing",
		Title:    "Item " + id,
		Priority: models.PriorityMedium,
		Phase:    models.PhaseDevelopment,
		Criteria: []models.Criterion{
			{ID: "c1", ValidationType: models.ValidationAutomated, ValidationMethod: "true", PassingThreshold: 100, Weight: 1},
		},
	}
}

func TestDefaultCatalogIsValid(t *testing.T) {
	c := Default()
	if c.Len() == 0 {
		t.Fatal("expected built-in catalog to have items")
	}
	if errs := Validate(c.Items()); len(errs) != 0 {
		t.Errorf("built-in catalog has validation errors: %v", errs)
	}
	if !c.Has("unit-tests") {
		t.Error("expected unit-tests in built-in catalog")
	}
}

func TestNew_RejectsInvalid(t *testing.T) {
	dup := []models.ChecklistItem{validItem("a"), validItem("a")}
	_, err := New(dup)
	if !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("New() error = %v, want ErrInvalidCatalog", err)
	}
	if !strings.Contains(err.Error(), "duplicate item ID") {
		t.Errorf("error should mention duplicate ID, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.ChecklistItem)
		wantField string
	}{
		{"bad priority", func(i *models.ChecklistItem) { i.Priority = "urgent" }, "items[x].priority"},
		{"bad phase", func(i *models.ChecklistItem) { i.Phase = "later" }, "items[x].phase"},
		{"threshold above 100", func(i *models.ChecklistItem) { i.Criteria[0].PassingThreshold = 101 }, "items[x].criteria[0].threshold"},
		{"zero weight", func(i *models.ChecklistItem) { i.Criteria[0].Weight = 0 }, "items[x].criteria[0].weight"},
		{"unknown type", func(i *models.ChecklistItem) { i.Criteria[0].ValidationType = "robotic" }, "items[x].criteria[0].type"},
		{"automated without command", func(i *models.ChecklistItem) { i.Criteria[0].ValidationMethod = "" }, "items[x].criteria[0].method"},
		{"unknown parser", func(i *models.ChecklistItem) { i.Criteria[0].Parser = "xml" }, "items[x].criteria[0].parser"},
		{"self dependency", func(i *models.ChecklistItem) { i.Dependencies = []string{"x"} }, "items[x].dependencies"},
		{"missing title", func(i *models.ChecklistItem) { i.Title = "" }, "items[x].title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := validItem("x")
			tt.mutate(&item)
			errs := Validate([]models.ChecklistItem{item})
			if len(errs) != 1 {
				t.Fatalf("Validate() returned %d errors, want 1: %v", len(errs), errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestValidate_DanglingDependencyAllowed(t *testing.T) {
	item := validItem("a")
	item.Dependencies = []string{"not-in-catalog"}
	if errs := Validate([]models.ChecklistItem{item}); len(errs) != 0 {
		t.Errorf("dangling dependency should not fail catalog validation: %v", errs)
	}
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	c := MustNew([]models.ChecklistItem{validItem("a")})
	item, _ := c.Get("a")
	item.Criteria[0].ID = "mutated"

	again, _ := c.Get("a")
	if again.Criteria[0].ID != "c1" {
		t.Errorf("catalog was mutated through Get, got %q", again.Criteria[0].ID)
	}
}

func TestCatalog_Order(t *testing.T) {
	c := MustNew([]models.ChecklistItem{validItem("a"), validItem("b")})
	if got := c.Order("b"); got != 1 {
		t.Errorf("Order(b) = %d, want 1", got)
	}
	if got := c.Order("missing"); got != -1 {
		t.Errorf("Order(missing) = %d, want -1", got)
	}
}

const sampleYAML = `
items:
  - id: lint
    category: code-standards
    title: Lint clean
    priority: high
    phase: development
    estimated_time: 5m
    criteria:
      - id: vet
        type: automated
        method: go vet ./...
  - id: ui-review
    category: ui
    title: UI review
    phase: post-development
    dependencies: [lint]
    applies_when:
      ui_changes: true
      technologies: [react]
    criteria:
      - id: signoff
        type: manual
        method: design-review
        threshold: 80
        weight: 2
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}

	lint, _ := c.Get("lint")
	if lint.EstimatedTime != 5*time.Minute {
		t.Errorf("EstimatedTime = %v, want 5m", lint.EstimatedTime)
	}
	if lint.Criteria[0].PassingThreshold != 100 || lint.Criteria[0].Weight != 1 {
		t.Errorf("criterion defaults not applied: %+v", lint.Criteria[0])
	}

	ui, _ := c.Get("ui-review")
	if ui.Priority != models.PriorityMedium {
		t.Errorf("default priority = %q, want medium", ui.Priority)
	}
	if !ui.Applicability.RequiresUIChanges || len(ui.Applicability.Technologies) != 1 {
		t.Errorf("applicability not parsed: %+v", ui.Applicability)
	}
	if ui.Criteria[0].PassingThreshold != 80 || ui.Criteria[0].Weight != 2 {
		t.Errorf("criterion = %+v", ui.Criteria[0])
	}
}

func TestParse_BadDuration(t *testing.T) {
	_, err := Parse([]byte("items:\n  - id: a\n    title: A\n    phase: development\n    estimated_time: soon\n"))
	if err == nil || !strings.Contains(err.Error(), "estimated_time") {
		t.Errorf("expected estimated_time error, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if got := c.Categories(); len(got) != 2 || got[0] != "code-standards" {
		t.Errorf("Categories() = %v", got)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
