package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/qualgate/internal/logging"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// InboxSubmission is the file format reviewers drop into the inbox directory.
// Either a result shape (score, passed or percentage) or accept must be set;
// accept confirms or rejects a semi-automated recommendation.
type InboxSubmission struct {
	TicketID   string   `json:"ticket_id"`
	Reviewer   string   `json:"reviewer,omitempty"`
	Accept     *bool    `json:"accept,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	Passed     *bool    `json:"passed,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	Details    string   `json:"details,omitempty"`
}

// Inbox applies review submissions dropped as JSON files into a directory.
// Processed files move to processed/, rejected ones to failed/.
type Inbox struct {
	dir      string
	queue    *ReviewQueue
	logger   logging.Logger
	onAnswer func(*Ticket)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  bool
}

// InboxDir returns the review inbox directory for a repository.
func InboxDir(repoPath string) string {
	return filepath.Join(repoPath, ".qualgate", "reviews", "inbox")
}

// NewInbox creates the inbox directories. Call Watch to react to new files
// or Scan to process what is already there.
func NewInbox(dir string, queue *ReviewQueue, logger logging.Logger) (*Inbox, error) {
	for _, d := range []string{dir, filepath.Join(dir, "processed"), filepath.Join(dir, "failed")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("create inbox directory: %w", err)
		}
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Inbox{
		dir:    dir,
		queue:  queue,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// OnAnswer registers a callback invoked after a submission answers a ticket.
func (in *Inbox) OnAnswer(fn func(*Ticket)) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.onAnswer = fn
}

// Watch starts processing files as they are created. If the file watcher
// cannot be started, Watch returns nil and callers fall back to Scan.
func (in *Inbox) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		in.logger.Log("[inbox] watcher unavailable, polling only: %v", err)
		return nil
	}
	if err := watcher.Add(in.dir); err != nil {
		watcher.Close()
		in.logger.Log("[inbox] cannot watch %s, polling only: %v", in.dir, err)
		return nil
	}

	in.mu.Lock()
	in.watcher = watcher
	in.mu.Unlock()

	go in.watch(ctx, watcher)
	return nil
}

func (in *Inbox) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-in.done:
			return
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isSubmissionFile(event.Name) {
				continue
			}
			if err := in.process(ctx, event.Name); err != nil {
				in.logger.Log("[inbox] %s: %v", filepath.Base(event.Name), err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			in.logger.Log("[inbox] watcher error: %v", err)
		}
	}
}

// Scan processes every submission file currently in the inbox and returns
// the number applied successfully.
func (in *Inbox) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return 0, fmt.Errorf("read inbox: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && isSubmissionFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	applied := 0
	for _, name := range names {
		if err := in.process(ctx, filepath.Join(in.dir, name)); err != nil {
			in.logger.Log("[inbox] %s: %v", name, err)
			continue
		}
		applied++
	}
	return applied, nil
}

func (in *Inbox) process(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Already handled by a concurrent Scan or event.
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		// Created but not yet written; the write event will follow.
		return nil
	}

	ticket, err := in.apply(ctx, data)
	if err != nil {
		in.move(path, "failed")
		return err
	}
	in.move(path, "processed")
	in.logger.Log("[inbox] ticket %s answered by %q", ticket.ID, ticket.Reviewer)

	in.mu.Lock()
	cb := in.onAnswer
	in.mu.Unlock()
	if cb != nil {
		cb(ticket)
	}
	return nil
}

func (in *Inbox) apply(ctx context.Context, data []byte) (*Ticket, error) {
	var sub InboxSubmission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("parse submission: %w", err)
	}
	return sub.Apply(ctx, in.queue)
}

// Apply answers the submission's ticket on q. A submission carrying only
// accept confirms or rejects the ticket's recommendation.
func (s InboxSubmission) Apply(ctx context.Context, q *ReviewQueue) (*Ticket, error) {
	if s.TicketID == "" {
		return nil, fmt.Errorf("submission has no ticket_id")
	}
	if s.Accept != nil && s.Score == nil && s.Passed == nil && s.Percentage == nil {
		return q.ConfirmRecommendation(ctx, s.TicketID, *s.Accept, s.Reviewer)
	}
	raw, err := s.payload().ToRawResult()
	if err != nil {
		return nil, err
	}
	return q.SubmitManualResult(ctx, s.TicketID, raw, s.Reviewer)
}

func (s InboxSubmission) payload() models.RawResultPayload {
	return models.RawResultPayload{Score: s.Score, Passed: s.Passed, Percentage: s.Percentage, Details: s.Details}
}

func (in *Inbox) move(path, sub string) {
	dest := filepath.Join(in.dir, sub, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		in.logger.Log("[inbox] move %s to %s: %v", filepath.Base(path), sub, err)
	}
}

func isSubmissionFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, ".json") && !strings.HasPrefix(base, ".")
}

// Close stops the watcher.
func (in *Inbox) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil
	}
	in.closed = true
	close(in.done)
	if in.watcher != nil {
		return in.watcher.Close()
	}
	return nil
}
