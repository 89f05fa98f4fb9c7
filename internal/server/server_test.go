package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ShayCichocki/qualgate/internal/catalog"
	"github.com/ShayCichocki/qualgate/internal/pipeline"
	"github.com/ShayCichocki/qualgate/internal/responsibility"
	"github.com/ShayCichocki/qualgate/internal/validator"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

type okCmd struct{}

func (okCmd) Run(ctx context.Context, dir, command string) (string, string, int, error) {
	return "", "", 0, nil
}

// setup runs a checklist that stops on one manual review.
func setup(t *testing.T) (*pipeline.Pipeline, *models.ChecklistExecutionResult, http.Handler) {
	t.Helper()
	cat, err := catalog.New([]models.ChecklistItem{
		{
			ID: "lint", Category: "code-standards", Title: "Lint", Priority: models.PriorityHigh, Phase: models.PhaseDevelopment,
			Criteria: []models.Criterion{{ID: "vet", ValidationType: models.ValidationAutomated, ValidationMethod: "go vet", PassingThreshold: 100, Weight: 1}},
		},
		{
			ID: "review", Category: "code-standards", Title: "Review", Priority: models.PriorityMedium, Phase: models.PhasePostDevelopment,
			Criteria: []models.Criterion{{ID: "design", ValidationType: models.ValidationManual, ValidationMethod: "design review", PassingThreshold: 80, Weight: 1}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	p, err := pipeline.New(context.Background(), pipeline.Options{
		Catalog:       cat,
		CommandRunner: okCmd{},
		Directory:     responsibility.NewStaticDirectory([]models.Person{{ID: "ana", Name: "Ana", Roles: []string{"developer"}}}),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(p.Close)

	ctx := context.Background()
	cl, err := p.GenerateChecklist(ctx, models.ValidationContext{ChangeType: models.ChangeFeature})
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.ExecuteChecklist(ctx, cl)
	if err != nil {
		t.Fatal(err)
	}
	if res.State != models.ExecutionAwaitingManual {
		t.Fatalf("State = %s, want awaiting_manual", res.State)
	}
	return p, res, New(Config{Service: p})
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body apiError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Code
}

func TestHealth(t *testing.T) {
	h := New(Config{})
	if rec := do(h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestReviewFlow(t *testing.T) {
	_, res, h := setup(t)

	rec := do(h, http.MethodGet, "/reviews/?execution_id="+res.ExecutionID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var tickets []*validator.Ticket
	if err := json.Unmarshal(rec.Body.Bytes(), &tickets); err != nil {
		t.Fatal(err)
	}
	if len(tickets) != 1 || tickets[0].CriterionID != "design" {
		t.Fatalf("tickets = %+v", tickets)
	}
	id := tickets[0].ID

	if rec := do(h, http.MethodGet, "/reviews/"+id, ""); rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	rec = do(h, http.MethodPost, "/reviews/"+id, `{"score": 92, "reviewer": "ana", "details": "clean"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d body = %s", rec.Code, rec.Body.String())
	}
	var answered validator.Ticket
	if err := json.Unmarshal(rec.Body.Bytes(), &answered); err != nil {
		t.Fatal(err)
	}
	if answered.Status != validator.TicketAnswered || answered.Reviewer != "ana" {
		t.Errorf("answered = %+v", answered)
	}

	rec = do(h, http.MethodPost, "/reviews/"+id, `{"score": 50}`)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "conflict" {
		t.Errorf("second submit = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(h, http.MethodPost, "/executions/"+res.ExecutionID+"/resume", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("resume status = %d body = %s", rec.Code, rec.Body.String())
	}
	var done models.ChecklistExecutionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &done); err != nil {
		t.Fatal(err)
	}
	if done.State != models.ExecutionCompleted || !done.Passed {
		t.Errorf("resumed = %s passed=%t", done.State, done.Passed)
	}

	rec = do(h, http.MethodGet, "/executions/"+res.ExecutionID, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"completed"`) {
		t.Errorf("get execution = %d %s", rec.Code, rec.Body.String())
	}
}

func TestErrors(t *testing.T) {
	p, _, h := setup(t)
	id := p.PendingReviews("")[0].ID

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown ticket", http.MethodGet, "/reviews/nope", "", http.StatusNotFound, "not_found"},
		{"submit unknown ticket", http.MethodPost, "/reviews/nope", `{"score": 1}`, http.StatusNotFound, "not_found"},
		{"empty submission", http.MethodPost, "/reviews/" + id, `{}`, http.StatusBadRequest, "bad_request"},
		{"two result shapes", http.MethodPost, "/reviews/" + id, `{"score": 1, "passed": true}`, http.StatusBadRequest, "bad_request"},
		{"bad json", http.MethodPost, "/reviews/" + id, `{`, http.StatusBadRequest, "bad_request"},
		{"unknown execution", http.MethodGet, "/executions/nope", "", http.StatusNotFound, "not_found"},
		{"escalation without id", http.MethodPost, "/escalations", `{}`, http.StatusBadRequest, "bad_request"},
		{"unknown assignment", http.MethodPost, "/escalations", `{"assignment_id": "nope"}`, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if got := errorCode(t, rec); got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestEscalate(t *testing.T) {
	p, _, h := setup(t)
	cl, err := p.GenerateChecklist(context.Background(), models.ValidationContext{ChangeType: models.ChangeFeature})
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.ResolveResponsibilities(context.Background(), cl)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Assignments) != 2 {
		t.Fatalf("assignments = %+v", res.Assignments)
	}
	a := res.Assignments[0]

	rec := do(h, http.MethodPost, "/escalations", `{"assignment_id": "`+a.ID+`", "reason": "stuck", "urgency": "high"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var got models.EscalationRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Level != 1 || got.ToRole != "tech-lead" || got.Urgency != models.UrgencyHigh {
		t.Errorf("record = %+v", got)
	}
}
