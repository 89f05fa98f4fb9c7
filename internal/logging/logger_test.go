package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNilLoggerIsNoop(t *testing.T) {
	var l *DebugLogger
	l.Log("should not panic %d", 1)
	if err := l.Close(); err != nil {
		t.Errorf("Close on nil logger: %v", err)
	}
	NopLogger().Log("also fine")
}

func TestNewDebugLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "debug.log")
	l, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger failed: %v", err)
	}
	l.Log("item %s finished", "unit-tests")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "item unit-tests finished") {
		t.Errorf("log missing message, got:\n%s", data)
	}
}

func TestNewDebugLogger_EmptyPath(t *testing.T) {
	l, err := NewDebugLogger("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Log("dropped")
}

func TestWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)
	l.WithPrefix("executor").Log("state=%s", "running")

	if !strings.Contains(buf.String(), "[executor] state=running") {
		t.Errorf("expected prefixed line, got %q", buf.String())
	}
}

func TestAuditLog_Record(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditWriter(&buf)
	a.Record(AuditEntry{ExecutionID: "e1", CriterionID: "lint", Action: "validate", Outcome: "passed"})
	a.Record(AuditEntry{ExecutionID: "e1", CriterionID: "tests", Action: "validate", Outcome: "failed"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var entry AuditEntry
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if entry.CriterionID != "tests" || entry.Outcome != "failed" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Time.IsZero() {
		t.Error("expected time to be filled in")
	}
}

func TestAuditLog_NilDiscards(t *testing.T) {
	var a *AuditLog
	a.Record(AuditEntry{Action: "validate"})
	if err := a.Close(); err != nil {
		t.Errorf("Close on nil audit log: %v", err)
	}
}
