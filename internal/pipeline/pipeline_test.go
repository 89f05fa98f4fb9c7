package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ShayCichocki/qualgate/internal/catalog"
	"github.com/ShayCichocki/qualgate/internal/responsibility"
	"github.com/ShayCichocki/qualgate/internal/state"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// fakeCmd returns a fixed exit code per command.
type fakeCmd struct {
	mu    sync.Mutex
	exit  map[string]int
	calls []string
}

func (f *fakeCmd) Run(ctx context.Context, dir, command string) (string, string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, command)
	return "", "", f.exit[command], nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]models.ChecklistItem{
		{
			ID: "lint", Category: "code-standards", Title: "Lint", Priority: models.PriorityHigh, Phase: models.PhaseDevelopment,
			Criteria: []models.Criterion{{ID: "vet", ValidationType: models.ValidationAutomated, ValidationMethod: "lint-cmd", PassingThreshold: 100, Weight: 1}},
		},
		{
			ID: "tests", Category: "testing", Title: "Tests", Priority: models.PriorityCritical, Phase: models.PhaseDevelopment,
			Dependencies: []string{"lint"},
			Criteria:     []models.Criterion{{ID: "pass", ValidationType: models.ValidationAutomated, ValidationMethod: "test-cmd", PassingThreshold: 100, Weight: 1}},
		},
		{
			ID: "review", Category: "code-standards", Title: "Review", Priority: models.PriorityMedium, Phase: models.PhasePostDevelopment,
			Dependencies: []string{"lint"},
			Criteria:     []models.Criterion{{ID: "design", ValidationType: models.ValidationManual, ValidationMethod: "design review", PassingThreshold: 80, Weight: 1}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func openStore(t *testing.T, dir string) *state.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestPipeline(t *testing.T, store Store, cmd *fakeCmd) *Pipeline {
	t.Helper()
	p, err := New(context.Background(), Options{
		Catalog:       testCatalog(t),
		Store:         store,
		CommandRunner: cmd,
		Directory: responsibility.NewStaticDirectory([]models.Person{
			{ID: "ana", Name: "Ana", Roles: []string{"developer"}},
			{ID: "dee", Name: "Dee", Roles: []string{"qa-engineer"}},
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestPipeline_ManualReviewAndResumeAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cmd := &fakeCmd{exit: map[string]int{}}

	p := newTestPipeline(t, openStore(t, dir), cmd)
	cl, err := p.GenerateChecklist(ctx, models.ValidationContext{ChangeType: models.ChangeFeature})
	if err != nil {
		t.Fatal(err)
	}
	if len(cl.Items) != 3 || cl.Items[0].ID != "lint" {
		t.Fatalf("checklist items = %+v", cl.Items)
	}

	first, err := p.ExecuteChecklist(ctx, cl)
	if err != nil {
		t.Fatal(err)
	}
	if first.State != models.ExecutionAwaitingManual || first.Passed {
		t.Fatalf("first run = %s passed=%t", first.State, first.Passed)
	}
	pending := p.PendingReviews(first.ExecutionID)
	if len(pending) != 1 || pending[0].CriterionID != "design" {
		t.Fatalf("pending = %+v", pending)
	}
	if _, err := p.SubmitManualResult(ctx, pending[0].ID, models.ScoreResult{Value: 90, Details: "looks fine"}, "ana"); err != nil {
		t.Fatal(err)
	}

	// A fresh pipeline over the same database picks up where the first left off.
	restarted := newTestPipeline(t, openStore(t, dir), cmd)
	done, err := restarted.ResumeExecution(ctx, first.ExecutionID)
	if err != nil {
		t.Fatal(err)
	}
	if done.State != models.ExecutionCompleted || !done.Passed {
		t.Fatalf("resumed run = %s passed=%t blockers=%v", done.State, done.Passed, done.Blockers)
	}
	if done.ExecutionID != first.ExecutionID {
		t.Error("resume must keep the execution ID")
	}
	review, _ := done.ItemResult("review")
	if review.Score != 90 || review.Status != models.ItemPassed {
		t.Errorf("review = %+v", review)
	}

	stored, err := restarted.Execution(ctx, first.ExecutionID)
	if err != nil || stored.State != models.ExecutionCompleted {
		t.Errorf("stored execution = %+v, %v", stored, err)
	}
	if len(restarted.PendingReviews("")) != 0 {
		t.Error("no reviews should remain open")
	}
}

func TestPipeline_CriticalFailureEscalates(t *testing.T) {
	ctx := context.Background()
	cmd := &fakeCmd{exit: map[string]int{"test-cmd": 1}}
	p := newTestPipeline(t, openStore(t, t.TempDir()), cmd)

	cl, err := p.GenerateChecklist(ctx, models.ValidationContext{ChangeType: models.ChangeBugfix})
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.ResolveResponsibilities(ctx, cl)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Assignments) != 3 || len(res.Unassigned) != 0 {
		t.Fatalf("resolution = %+v", res)
	}

	result, err := p.ExecuteChecklist(ctx, cl)
	if err != nil {
		t.Fatal(err)
	}
	if result.State != models.ExecutionAborted || len(result.Blockers) == 0 {
		t.Fatalf("result = %s blockers=%v", result.State, result.Blockers)
	}

	recs, err := p.EscalateFailures(ctx, result)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ToRole != "tech-lead" || recs[0].Urgency != models.UrgencyCritical {
		t.Fatalf("escalations = %+v", recs)
	}

	// Escalating by hand continues along the same path.
	rec, err := p.Escalate(ctx, recs[0].AssignmentID, "still red", models.UrgencyCritical)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Level != 2 {
		t.Errorf("Level = %d, want 2", rec.Level)
	}
	if _, err := p.Escalate(ctx, recs[0].AssignmentID, "again", models.UrgencyCritical); err == nil {
		t.Error("expected max escalation error")
	}
}

func TestPipeline_WithoutStore(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, nil, &fakeCmd{exit: map[string]int{}})

	cl, err := p.GenerateChecklist(ctx, models.ValidationContext{ChangeType: models.ChangeFeature})
	if err != nil {
		t.Fatal(err)
	}
	r, err := p.ExecuteChecklist(ctx, cl)
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Execution(ctx, r.ExecutionID)
	if err != nil || got.ExecutionID != r.ExecutionID {
		t.Errorf("Execution = %+v, %v", got, err)
	}
	if _, ok := p.Progress(r.ExecutionID); ok {
		t.Error("finished executions are no longer live")
	}
}

func TestPipeline_UnknownExecution(t *testing.T) {
	p := newTestPipeline(t, openStore(t, t.TempDir()), &fakeCmd{})
	_, err := p.ResumeExecution(context.Background(), "nope")
	if !errors.Is(err, ErrExecutionNotFound) {
		t.Errorf("err = %v, want ErrExecutionNotFound", err)
	}
}
