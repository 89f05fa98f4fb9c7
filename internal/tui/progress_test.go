package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/qualgate/internal/executor"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

func TestProgressView_Events(t *testing.T) {
	v := NewProgressView()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	events := []executor.Event{
		{Type: executor.EventExecutionStarted, ExecutionID: "ex-1", State: models.ExecutionRunning, Timestamp: now},
		{Type: executor.EventItemStarted, ExecutionID: "ex-1", ItemID: "lint", State: models.ExecutionRunning},
		{Type: executor.EventItemFinished, ExecutionID: "ex-1", ItemID: "lint", ItemStatus: models.ItemPassed, Progress: 50, Message: "lint passed", Timestamp: now},
		{Type: executor.EventItemStarted, ExecutionID: "ex-1", ItemID: "tests", Progress: 50},
	}
	for _, ev := range events {
		v.Update(ProgressEventMsg{Event: ev})
	}

	out := v.View()
	for _, want := range []string{"ex-1", "running", "Running:", "tests", "lint", "passed", " 50%", "lint passed"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}

	v.Update(ProgressEventMsg{Event: executor.Event{Type: executor.EventItemFinished, ItemID: "lint", ItemStatus: models.ItemFailed, Progress: 100}})
	if len(v.items) != 1 || v.items[0].status != models.ItemFailed {
		t.Errorf("items = %+v", v.items)
	}
}

func TestProgressView_Done(t *testing.T) {
	v := NewProgressView()
	res := &models.ChecklistExecutionResult{ExecutionID: "ex-1", State: models.ExecutionCompleted, Progress: 100}
	_, cmd := v.Update(ProgressDoneMsg{Result: res})
	if !isQuit(cmd) {
		t.Error("done should quit")
	}
	got, err := v.Result()
	if got != res || err != nil {
		t.Errorf("Result = %v, %v", got, err)
	}
	if !strings.Contains(v.View(), "100%") {
		t.Errorf("view = %s", v.View())
	}
}

func TestProgressBar_Clamps(t *testing.T) {
	v := NewProgressView()
	if bar := v.renderProgressBar(150, 10); !strings.Contains(bar, "150%") {
		t.Errorf("bar = %q", bar)
	}
	if bar := v.renderProgressBar(-5, 10); strings.Contains(bar, "█") {
		t.Errorf("negative progress should render empty: %q", bar)
	}
}
