// Package state provides SQLite-based persistence for qualgate.
// It keeps project-local state in .qualgate/state.db: checklists,
// execution results, review tickets, assignments and escalation records.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps an SQLite database connection with qualgate-specific operations.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// ProjectDBPath returns the path to the project-local database.
func ProjectDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".qualgate", "state.db")
}

// Open opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// OpenProject opens and migrates the project-local database.
func OpenProject(projectRoot string) (*DB, error) {
	db, err := Open(ProjectDBPath(projectRoot))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Checklists},
		{2, migrationV2Executions},
		{3, migrationV3ReviewTickets},
		{4, migrationV4Assignments},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Checklists = `
CREATE TABLE IF NOT EXISTS checklists (
	id TEXT PRIMARY KEY,
	change_type TEXT NOT NULL,
	item_count INTEGER NOT NULL DEFAULT 0,
	data TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

const migrationV2Executions = `
CREATE TABLE IF NOT EXISTS executions (
	id TEXT PRIMARY KEY,
	checklist_id TEXT NOT NULL REFERENCES checklists(id),
	state TEXT NOT NULL,
	passed INTEGER NOT NULL DEFAULT 0,
	overall_score REAL NOT NULL DEFAULT 0.0,
	data TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_executions_checklist_id ON executions(checklist_id);
CREATE INDEX IF NOT EXISTS idx_executions_state ON executions(state);
`

const migrationV3ReviewTickets = `
CREATE TABLE IF NOT EXISTS review_tickets (
	id TEXT PRIMARY KEY,
	execution_id TEXT NOT NULL,
	item_id TEXT NOT NULL,
	criterion_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	data TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (execution_id, item_id, criterion_id)
);

CREATE INDEX IF NOT EXISTS idx_review_tickets_status ON review_tickets(status);
`

const migrationV4Assignments = `
CREATE TABLE IF NOT EXISTS assignments (
	id TEXT PRIMARY KEY,
	checklist_id TEXT,
	item_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'assigned',
	escalation_level INTEGER NOT NULL DEFAULT 0,
	data TEXT NOT NULL,
	due_date DATETIME
);

CREATE TABLE IF NOT EXISTS escalations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	assignment_id TEXT NOT NULL REFERENCES assignments(id),
	level INTEGER NOT NULL,
	from_role TEXT NOT NULL,
	to_role TEXT NOT NULL,
	reason TEXT,
	urgency TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (assignment_id, level)
);

CREATE INDEX IF NOT EXISTS idx_assignments_status ON assignments(status);
CREATE INDEX IF NOT EXISTS idx_escalations_assignment_id ON escalations(assignment_id);
`

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.ExecContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRowContext(ctx, query, args...)
}

// Transaction runs the given function within a transaction.
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// timeLayout has fixed-width fractional seconds so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// formatNullableTime stores the zero time as NULL.
func formatNullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// PurgeOldExecutions deletes finished executions older than the specified
// duration. Returns the number of executions deleted.
func (db *DB) PurgeOldExecutions(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.Exec(ctx, `
		DELETE FROM executions WHERE started_at < ? AND state IN ('completed', 'aborted', 'cancelled')
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old executions: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return count, nil
}
