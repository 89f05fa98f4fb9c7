package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/qualgate/internal/logging"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// mockCmd records calls and returns configured results.
type mockCmd struct {
	mu      sync.Mutex
	calls   []mockCall
	results map[string]mockResult
}

type mockCall struct {
	Dir     string
	Command string
}

type mockResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
	Block    bool
}

func (m *mockCmd) Run(ctx context.Context, dir string, command string) (string, string, int, error) {
	m.mu.Lock()
	m.calls = append(m.calls, mockCall{Dir: dir, Command: command})
	r := m.results[command]
	m.mu.Unlock()

	if r.Block {
		<-ctx.Done()
		return "", "", -1, ctx.Err()
	}
	return r.Stdout, r.Stderr, r.ExitCode, r.Err
}

type stubRecommender struct {
	rec *Recommendation
	err error
}

func (s *stubRecommender) Recommend(ctx context.Context, c models.Criterion, vctx models.ValidationContext) (*Recommendation, error) {
	return s.rec, s.err
}

func automated(id, command, parser string) models.Criterion {
	return models.Criterion{ID: id, ValidationType: models.ValidationAutomated, ValidationMethod: command, Parser: parser, PassingThreshold: 80, Weight: 1}
}

func TestExecute_Automated(t *testing.T) {
	mock := &mockCmd{results: map[string]mockResult{
		"lint":  {ExitCode: 0},
		"tests": {Stdout: "FAIL pkg", ExitCode: 1},
		"cover": {Stdout: "ok a 0.1s coverage: 80.0% of statements\nok b 0.2s coverage: 60.0% of statements\n"},
		"score": {Stdout: `{"score": 93, "details": "a11y"}`},
		"bad":   {Stdout: "not json"},
	}}
	e := New(NewReviewQueue(), WithCommandRunner(mock))
	vctx := models.ValidationContext{RepoPath: "/repo"}

	tests := []struct {
		name    string
		c       models.Criterion
		want    models.RawResult
		wantErr error
	}{
		{"exit zero", automated("lint", "lint", ""), models.PassResult{Passed: true, Details: "passed (exit code 0)"}, nil},
		{"exit non-zero", automated("tests", "tests", "exit-code"), models.PassResult{Passed: false, Details: "exit code 1\nFAIL pkg"}, nil},
		{"go cover", automated("cover", "cover", "go-cover"), models.PercentageResult{Value: 70, Details: "70.0% mean statement coverage over 2 packages"}, nil},
		{"json score", automated("score", "score", "json-score"), models.ScoreResult{Value: 93, Details: "a11y"}, nil},
		{"malformed", automated("bad", "bad", "json-score"), nil, models.ErrMalformedResult},
		{"unknown parser", automated("lint", "lint", "xml"), nil, models.ErrMalformedResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Execute(context.Background(), Ref{ExecutionID: "e1", ItemID: "i1"}, tt.c, vctx)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Execute() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Execute() = %#v, want %#v", got, tt.want)
			}
		})
	}

	if mock.calls[0].Dir != "/repo" {
		t.Errorf("expected dir=/repo, got %q", mock.calls[0].Dir)
	}
}

func TestExecute_AutomatedErrors(t *testing.T) {
	mock := &mockCmd{results: map[string]mockResult{
		"missing": {ExitCode: -1, Err: fmt.Errorf("%w: gosec", models.ErrToolUnavailable)},
		"slow":    {Block: true},
	}}
	e := New(NewReviewQueue(), WithCommandRunner(mock), WithTimeout(20*time.Millisecond))

	_, err := e.Execute(context.Background(), Ref{}, automated("m", "missing", ""), models.ValidationContext{})
	if !errors.Is(err, models.ErrToolUnavailable) {
		t.Errorf("missing tool error = %v, want ErrToolUnavailable", err)
	}

	_, err = e.Execute(context.Background(), Ref{}, automated("s", "slow", ""), models.ValidationContext{})
	if !errors.Is(err, models.ErrTimeout) {
		t.Errorf("slow tool error = %v, want ErrTimeout", err)
	}
}

func TestExecute_ManualTwoPhase(t *testing.T) {
	q := NewReviewQueue()
	e := New(q)
	ref := Ref{ExecutionID: "e1", ItemID: "ui"}
	c := models.Criterion{ID: "design", ValidationType: models.ValidationManual, ValidationMethod: "design-review", PassingThreshold: 80, Weight: 1}

	_, err := e.Execute(context.Background(), ref, c, models.ValidationContext{})
	var pending *PendingReviewError
	if !errors.As(err, &pending) {
		t.Fatalf("expected PendingReviewError, got %v", err)
	}
	if !errors.Is(err, ErrPendingReview) {
		t.Error("PendingReviewError should wrap ErrPendingReview")
	}

	// Asking again reuses the open ticket.
	_, err = e.Execute(context.Background(), ref, c, models.ValidationContext{})
	var again *PendingReviewError
	if !errors.As(err, &again) || again.TicketID != pending.TicketID {
		t.Fatalf("expected same ticket %s, got %v", pending.TicketID, err)
	}
	if n := len(q.Pending("e1")); n != 1 {
		t.Errorf("Pending() = %d tickets, want 1", n)
	}

	if _, err := q.SubmitManualResult(context.Background(), pending.TicketID, models.ScoreResult{Value: 88, Details: "looks good"}, "dana"); err != nil {
		t.Fatalf("SubmitManualResult failed: %v", err)
	}

	got, err := e.Execute(context.Background(), ref, c, models.ValidationContext{})
	if err != nil {
		t.Fatalf("Execute after submit: %v", err)
	}
	if got != (models.ScoreResult{Value: 88, Details: "looks good"}) {
		t.Errorf("Execute() = %#v", got)
	}
	if n := len(q.Pending("")); n != 0 {
		t.Errorf("Pending() = %d tickets after answer, want 0", n)
	}
}

func TestExecute_SemiAutomated(t *testing.T) {
	c := models.Criterion{ID: "threat", ValidationType: models.ValidationSemiAutomated, ValidationMethod: "security-review", PassingThreshold: 80, Weight: 1}

	tests := []struct {
		name   string
		accept bool
		want   models.RawResult
	}{
		{"confirmed", true, models.ScoreResult{Value: 85, Details: "no new attack surface"}},
		{"rejected", false, models.PassResult{Passed: false, Details: "recommendation rejected by sam"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewReviewQueue()
			rec := &stubRecommender{rec: &Recommendation{Score: 85, Rationale: "no new attack surface"}}
			e := New(q, WithRecommender(rec))
			ref := Ref{ExecutionID: "e1", ItemID: "security"}

			_, err := e.Execute(context.Background(), ref, c, models.ValidationContext{})
			var unconfirmed *UnconfirmedError
			if !errors.As(err, &unconfirmed) {
				t.Fatalf("unconfirmed recommendation should fail, got %v", err)
			}
			if errors.Is(err, ErrPendingReview) {
				t.Fatal("unconfirmed recommendation must not be pending")
			}
			ticket, _ := q.Get(unconfirmed.TicketID)
			if ticket.Recommendation == nil || ticket.Recommendation.Score != 85 {
				t.Fatalf("ticket should carry the recommendation: %+v", ticket)
			}

			// Still unconfirmed on a second pass, same ticket.
			_, err = e.Execute(context.Background(), ref, c, models.ValidationContext{})
			var again *UnconfirmedError
			if !errors.As(err, &again) || again.TicketID != unconfirmed.TicketID {
				t.Fatalf("second Execute() error = %v", err)
			}

			if _, err := q.ConfirmRecommendation(context.Background(), unconfirmed.TicketID, tt.accept, "sam"); err != nil {
				t.Fatalf("ConfirmRecommendation failed: %v", err)
			}
			got, err := e.Execute(context.Background(), ref, c, models.ValidationContext{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Execute() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestExecute_SemiAutomatedRecommenderFailure(t *testing.T) {
	q := NewReviewQueue()
	e := New(q, WithRecommender(&stubRecommender{err: errors.New("rate limited")}))
	c := models.Criterion{ID: "api", ValidationType: models.ValidationSemiAutomated, ValidationMethod: "api-review", PassingThreshold: 80, Weight: 1}

	_, err := e.Execute(context.Background(), Ref{ExecutionID: "e1", ItemID: "api"}, c, models.ValidationContext{})
	var unconfirmed *UnconfirmedError
	if !errors.As(err, &unconfirmed) {
		t.Fatalf("expected unconfirmed ticket without recommendation, got %v", err)
	}
	if _, err := q.ConfirmRecommendation(context.Background(), unconfirmed.TicketID, true, "sam"); !errors.Is(err, ErrNoRecommendation) {
		t.Errorf("ConfirmRecommendation() error = %v, want ErrNoRecommendation", err)
	}
}

func TestExecute_ExpiredTicket(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	q := NewReviewQueue(WithTicketTTL(time.Hour), WithQueueClock(clock))
	e := New(q)
	c := models.Criterion{ID: "docs", ValidationType: models.ValidationManual, ValidationMethod: "docs-review", PassingThreshold: 60, Weight: 1}
	ref := Ref{ExecutionID: "e1", ItemID: "docs"}

	_, err := e.Execute(context.Background(), ref, c, models.ValidationContext{})
	var pending *PendingReviewError
	if !errors.As(err, &pending) {
		t.Fatalf("expected pending, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	_, err = e.Execute(context.Background(), ref, c, models.ValidationContext{})
	if !errors.Is(err, models.ErrTimeout) {
		t.Errorf("expired ticket error = %v, want ErrTimeout", err)
	}
	if _, err := q.SubmitManualResult(context.Background(), pending.TicketID, models.PassResult{Passed: true}, "late"); !errors.Is(err, ErrTicketClosed) {
		t.Errorf("submit to expired ticket error = %v, want ErrTicketClosed", err)
	}
}

func TestExecute_Audit(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockCmd{results: map[string]mockResult{"lint": {}}}
	e := New(NewReviewQueue(), WithCommandRunner(mock), WithAuditor(logging.NewAuditWriter(&buf)))

	e.Execute(context.Background(), Ref{ExecutionID: "e9", ItemID: "cs"}, automated("lint", "lint", ""), models.ValidationContext{})

	var entry logging.AuditEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("audit line is not JSON: %v (%q)", err, buf.String())
	}
	if entry.ExecutionID != "e9" || entry.CriterionID != "lint" || entry.Outcome != "result" {
		t.Errorf("unexpected audit entry: %+v", entry)
	}
}

func TestExecute_UnknownType(t *testing.T) {
	e := New(NewReviewQueue())
	_, err := e.Execute(context.Background(), Ref{}, models.Criterion{ID: "x", ValidationType: "psychic"}, models.ValidationContext{})
	if !errors.Is(err, models.ErrMalformedResult) {
		t.Errorf("error = %v, want ErrMalformedResult", err)
	}
}

func TestSubmitManualResult_UnknownTicket(t *testing.T) {
	q := NewReviewQueue()
	_, err := q.SubmitManualResult(context.Background(), "nope", models.PassResult{Passed: true}, "")
	if !errors.Is(err, ErrTicketNotFound) {
		t.Errorf("error = %v, want ErrTicketNotFound", err)
	}
}

func TestParseRecommendation(t *testing.T) {
	rec, err := ParseRecommendation("Here you go:\n{\"score\": 72, \"rationale\": \"missing tests\"}\n")
	if err != nil {
		t.Fatalf("ParseRecommendation failed: %v", err)
	}
	if rec.Score != 72 || rec.Rationale != "missing tests" {
		t.Errorf("got %+v", rec)
	}

	for _, in := range []string{"no json", `{"rationale": "x"}`, "{broken"} {
		if _, err := ParseRecommendation(in); !errors.Is(err, models.ErrMalformedResult) {
			t.Errorf("ParseRecommendation(%q) error = %v, want ErrMalformedResult", in, err)
		}
	}
}

func TestRecommendPromptMentionsCriterion(t *testing.T) {
	p := recommendPrompt(
		models.Criterion{ID: "threat", ValidationMethod: "security-review", PassingThreshold: 80},
		models.ValidationContext{ChangeType: models.ChangeSecurity, Technologies: []string{"go", "postgres"}},
	)
	for _, want := range []string{"threat", "security-review", "go, postgres", "Passing threshold: 80"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
