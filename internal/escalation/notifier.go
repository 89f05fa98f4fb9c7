package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ShayCichocki/qualgate/internal/logging"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// Notification is what a notifier delivers for one escalation hop.
type Notification struct {
	AssignmentID string         `json:"assignment_id"`
	ItemID       string         `json:"item_id"`
	Role         string         `json:"role"`
	FromRole     string         `json:"from_role"`
	Reason       string         `json:"reason"`
	Urgency      models.Urgency `json:"urgency"`
	Level        int            `json:"level"`
	Recipient    string         `json:"recipient"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Notifier delivers escalation notifications. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, recipient string, n Notification) error
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	logger logging.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(l logging.Logger) *LogNotifier {
	if l == nil {
		l = logging.NopLogger()
	}
	return &LogNotifier{logger: l}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, recipient string, note Notification) error {
	n.logger.Log("[escalation] notify %s: %s escalated to %s (level %d, %s): %s",
		recipient, note.ItemID, note.Role, note.Level, note.Urgency, note.Reason)
	return nil
}

// FileNotifier drops one JSON file per notification into a directory,
// for pickup by whatever delivers mail or chat messages.
type FileNotifier struct {
	dir string
}

// NewFileNotifier creates the drop directory and returns a notifier writing to it.
func NewFileNotifier(dir string) (*FileNotifier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create notification dir: %w", err)
	}
	return &FileNotifier{dir: dir}, nil
}

// Notify implements Notifier. The file appears atomically.
func (n *FileNotifier) Notify(ctx context.Context, recipient string, note Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	note.Recipient = recipient
	data, err := json.MarshalIndent(note, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	name := fmt.Sprintf("%s-level%d.json", note.AssignmentID, note.Level)
	tmp, err := os.CreateTemp(n.dir, ".notify-*")
	if err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write notification: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write notification: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(n.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

// Dir returns the drop directory.
func (n *FileNotifier) Dir() string {
	return n.dir
}

// MultiNotifier fans a notification out to several notifiers.
type MultiNotifier []Notifier

// Notify implements Notifier. Every notifier is tried; errors are joined.
func (m MultiNotifier) Notify(ctx context.Context, recipient string, note Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, recipient, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
