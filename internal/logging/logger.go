// Package logging provides the file-backed debug and audit logs used across qualgate.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger is the logging surface components depend on.
type Logger interface {
	Log(format string, args ...interface{})
}

// DebugLogger writes timestamped lines to a file.
// The zero value and a nil *DebugLogger are valid no-op loggers.
type DebugLogger struct {
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
	prefix string
}

// NewDebugLogger creates a logger appending to the specified path.
// If the path is empty, returns a no-op logger.
// Creates parent directories if they don't exist.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := &DebugLogger{out: f, closer: f}
	logger.Log("=== qualgate log started at %s ===", time.Now().Format(time.RFC3339))
	return logger, nil
}

// NewWriterLogger creates a logger writing to w. Used by tests and --verbose.
func NewWriterLogger(w io.Writer) *DebugLogger {
	return &DebugLogger{out: w}
}

// NopLogger returns a no-op logger for testing or when logging is disabled.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// WithPrefix returns a logger sharing the same output with a component tag
// prepended to every line.
func (l *DebugLogger) WithPrefix(prefix string) *DebugLogger {
	if l == nil {
		return nil
	}
	return &DebugLogger{out: &lockedWriter{parent: l}, prefix: "[" + prefix + "] "}
}

// Log writes a timestamped message.
// If the logger is nil or has no output, this is a no-op.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.out == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.out, "[%s] %s%s\n", timestamp, l.prefix, msg)
	if f, ok := l.out.(*os.File); ok {
		f.Sync()
	}
}

// Close closes the underlying file, if any.
// Safe to call on nil logger or logger without file.
func (l *DebugLogger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closer.Close()
}

// lockedWriter serializes prefixed loggers through their parent's mutex.
type lockedWriter struct {
	parent *DebugLogger
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.parent.mu.Lock()
	defer w.parent.mu.Unlock()
	if w.parent.out == nil {
		return len(p), nil
	}
	return w.parent.out.Write(p)
}

// Func adapts a Logger into the func-style hook some components accept.
func Func(l Logger) func(format string, args ...interface{}) {
	if l == nil {
		return func(string, ...interface{}) {}
	}
	return l.Log
}
