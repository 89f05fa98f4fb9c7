package validator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

func openTicket(t *testing.T, q *ReviewQueue, criterionID string, rec *Recommendation) *Ticket {
	t.Helper()
	vt := models.ValidationManual
	if rec != nil {
		vt = models.ValidationSemiAutomated
	}
	ticket, err := q.RequestManualReview(context.Background(),
		TicketKey{ExecutionID: "e1", ItemID: "item", CriterionID: criterionID},
		models.Criterion{ID: criterionID, ValidationType: vt, ValidationMethod: "review"}, rec)
	if err != nil {
		t.Fatalf("RequestManualReview failed: %v", err)
	}
	return ticket
}

func writeSubmission(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestInbox_Scan(t *testing.T) {
	q := NewReviewQueue()
	manual := openTicket(t, q, "design", nil)
	semi := openTicket(t, q, "threat", &Recommendation{Score: 90, Rationale: "fine"})

	dir := filepath.Join(t.TempDir(), "inbox")
	in, err := NewInbox(dir, q, nil)
	if err != nil {
		t.Fatalf("NewInbox failed: %v", err)
	}
	defer in.Close()

	var answered []string
	in.OnAnswer(func(tk *Ticket) { answered = append(answered, tk.ID) })

	writeSubmission(t, dir, "a.json", `{"ticket_id": "`+manual.ID+`", "score": 75, "reviewer": "dana"}`)
	writeSubmission(t, dir, "b.json", `{"ticket_id": "`+semi.ID+`", "accept": true}`)
	writeSubmission(t, dir, "c.json", `{"ticket_id": "missing", "passed": true}`)
	writeSubmission(t, dir, "notes.txt", "ignored")

	applied, err := in.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if applied != 2 {
		t.Errorf("Scan() applied %d, want 2", applied)
	}
	if len(answered) != 2 {
		t.Errorf("OnAnswer called %d times, want 2", len(answered))
	}

	got, _ := q.Get(manual.ID)
	if got.Status != TicketAnswered || got.Reviewer != "dana" || *got.Result.Score != 75 {
		t.Errorf("manual ticket not answered: %+v", got)
	}
	got, _ = q.Get(semi.ID)
	if got.Status != TicketAnswered || *got.Result.Score != 90 {
		t.Errorf("semi ticket not confirmed: %+v", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "processed", "a.json")); err != nil {
		t.Errorf("a.json not moved to processed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "failed", "c.json")); err != nil {
		t.Errorf("c.json not moved to failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Errorf("non-JSON file should be left alone: %v", err)
	}
}

func TestInbox_Watch(t *testing.T) {
	q := NewReviewQueue()
	ticket := openTicket(t, q, "design", nil)

	dir := filepath.Join(t.TempDir(), "inbox")
	in, err := NewInbox(dir, q, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()

	done := make(chan string, 1)
	in.OnAnswer(func(tk *Ticket) { done <- tk.ID })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := in.Watch(ctx); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	// Write to a temp name and rename so the watcher sees a complete file.
	tmp := filepath.Join(dir, ".sub.tmp")
	if err := os.WriteFile(tmp, []byte(`{"ticket_id": "`+ticket.ID+`", "passed": true}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, "sub.json")); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-done:
		if id != ticket.ID {
			t.Errorf("answered %s, want %s", id, ticket.ID)
		}
	case <-time.After(2 * time.Second):
		// Watchers are best-effort; the polling path must still work.
		if _, err := in.Scan(context.Background()); err != nil {
			t.Fatal(err)
		}
		if got, _ := q.Get(ticket.ID); got.Status != TicketAnswered {
			t.Errorf("ticket not answered after scan fallback: %+v", got)
		}
	}
}

func TestInboxDir(t *testing.T) {
	if got := InboxDir("/repo"); got != filepath.Join("/repo", ".qualgate", "reviews", "inbox") {
		t.Errorf("InboxDir() = %q", got)
	}
}
