package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ShayCichocki/qualgate/internal/validator"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// Checklist CRUD operations

// SaveChecklist stores a checklist, replacing any previous version.
func (db *DB) SaveChecklist(ctx context.Context, c *models.Checklist) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal checklist: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO checklists (id, change_type, item_count, data, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET change_type = excluded.change_type,
			item_count = excluded.item_count, data = excluded.data
	`, c.ID, string(c.Context.ChangeType), len(c.Items), string(data), formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("save checklist: %w", err)
	}
	return nil
}

// GetChecklist retrieves a checklist by ID. It returns nil if none exists.
func (db *DB) GetChecklist(ctx context.Context, id string) (*models.Checklist, error) {
	var data string
	err := db.QueryRow(ctx, `SELECT data FROM checklists WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checklist: %w", err)
	}

	var c models.Checklist
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("decode checklist %s: %w", id, err)
	}
	return &c, nil
}

// Execution CRUD operations

// SaveExecution stores an execution result, replacing any previous state
// of the same execution.
func (db *DB) SaveExecution(ctx context.Context, r *models.ChecklistExecutionResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO executions (id, checklist_id, state, passed, overall_score, data, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, passed = excluded.passed,
			overall_score = excluded.overall_score, data = excluded.data, finished_at = excluded.finished_at
	`, r.ExecutionID, r.ChecklistID, string(r.State), r.Passed, r.OverallScore, string(data),
		formatTime(r.StartedAt), formatNullableTime(r.FinishedAt))
	if err != nil {
		return fmt.Errorf("save execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution result by ID. It returns nil if none exists.
func (db *DB) GetExecution(ctx context.Context, id string) (*models.ChecklistExecutionResult, error) {
	var data string
	err := db.QueryRow(ctx, `SELECT data FROM executions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return decodeExecution(data)
}

// ListExecutions returns up to limit executions, newest first.
// A limit of zero or less returns all of them.
func (db *DB) ListExecutions(ctx context.Context, limit int) ([]*models.ChecklistExecutionResult, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(ctx, `SELECT data FROM executions ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []*models.ChecklistExecutionResult
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		r, err := decodeExecution(data)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func decodeExecution(data string) (*models.ChecklistExecutionResult, error) {
	var r models.ChecklistExecutionResult
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("decode execution: %w", err)
	}
	return &r, nil
}

// Review ticket operations

// SaveTicket implements validator.TicketStore.
func (db *DB) SaveTicket(ctx context.Context, t *validator.Ticket) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal ticket: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO review_tickets (id, execution_id, item_id, criterion_id, status, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, data = excluded.data
	`, t.ID, t.ExecutionID, t.ItemID, t.CriterionID, string(t.Status), string(data), formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("save ticket: %w", err)
	}
	return nil
}

// ListTickets implements validator.TicketStore. Tickets are returned oldest first.
func (db *DB) ListTickets(ctx context.Context) ([]*validator.Ticket, error) {
	rows, err := db.Query(ctx, `SELECT data FROM review_tickets ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var out []*validator.Ticket
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		var t validator.Ticket
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("decode ticket: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// Assignment and escalation operations

// SaveAssignment implements escalation.Store.
func (db *DB) SaveAssignment(ctx context.Context, a *models.ResponsibilityAssignment) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal assignment: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO assignments (id, checklist_id, item_id, status, escalation_level, data, due_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status,
			escalation_level = excluded.escalation_level, data = excluded.data, due_date = excluded.due_date
	`, a.ID, a.ChecklistID, a.ItemID, string(a.Status), a.EscalationLevel, string(data), formatNullableTime(a.DueDate))
	if err != nil {
		return fmt.Errorf("save assignment: %w", err)
	}
	return nil
}

// GetAssignment retrieves an assignment by ID. It returns nil if none exists.
func (db *DB) GetAssignment(ctx context.Context, id string) (*models.ResponsibilityAssignment, error) {
	var data string
	err := db.QueryRow(ctx, `SELECT data FROM assignments WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	var a models.ResponsibilityAssignment
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, fmt.Errorf("decode assignment %s: %w", id, err)
	}
	return &a, nil
}

// ListAssignments implements escalation.Store.
func (db *DB) ListAssignments(ctx context.Context) ([]*models.ResponsibilityAssignment, error) {
	rows, err := db.Query(ctx, `SELECT data FROM assignments ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []*models.ResponsibilityAssignment
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		var a models.ResponsibilityAssignment
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("decode assignment: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// AppendEscalation implements escalation.Store. A second record for the
// same assignment and level is rejected.
func (db *DB) AppendEscalation(ctx context.Context, rec models.EscalationRecord) error {
	_, err := db.Exec(ctx, `
		INSERT INTO escalations (assignment_id, level, from_role, to_role, reason, urgency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.AssignmentID, rec.Level, rec.FromRole, rec.ToRole, rec.Reason, string(rec.Urgency), formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("append escalation: %w", err)
	}
	return nil
}

// ListEscalations implements escalation.Store. Records are ordered by level.
func (db *DB) ListEscalations(ctx context.Context, assignmentID string) ([]models.EscalationRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT assignment_id, level, from_role, to_role, COALESCE(reason, ''), urgency, created_at
		FROM escalations WHERE assignment_id = ? ORDER BY level
	`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	defer rows.Close()

	var out []models.EscalationRecord
	for rows.Next() {
		var rec models.EscalationRecord
		var urgency, createdAt string
		if err := rows.Scan(&rec.AssignmentID, &rec.Level, &rec.FromRole, &rec.ToRole, &rec.Reason, &urgency, &createdAt); err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		rec.Urgency = models.Urgency(urgency)
		rec.CreatedAt, _ = parseTime(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
