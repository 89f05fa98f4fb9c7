package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEntry is one line of the validation audit log.
type AuditEntry struct {
	Time        time.Time `json:"time"`
	ExecutionID string    `json:"execution_id,omitempty"`
	ItemID      string    `json:"item_id,omitempty"`
	CriterionID string    `json:"criterion_id,omitempty"`
	Action      string    `json:"action"`
	Outcome     string    `json:"outcome,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

// Auditor records validation actions.
type Auditor interface {
	Record(entry AuditEntry)
}

// AuditLog appends JSON lines to a file. A nil *AuditLog discards entries.
type AuditLog struct {
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
}

// OpenAuditLog opens (or creates) the audit log at path.
func OpenAuditLog(path string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &AuditLog{out: f, closer: f}, nil
}

// NewAuditWriter creates an audit log writing to w.
func NewAuditWriter(w io.Writer) *AuditLog {
	return &AuditLog{out: w}
}

// Record appends an entry. Encoding failures are dropped; the audit log
// never fails a validation.
func (a *AuditLog) Record(entry AuditEntry) {
	if a == nil || a.out == nil {
		return
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.Write(append(data, '\n'))
}

// Close closes the underlying file, if any.
func (a *AuditLog) Close() error {
	if a == nil || a.closer == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closer.Close()
}
