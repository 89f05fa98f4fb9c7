package state

import (
	"context"
	"io"

	"github.com/ShayCichocki/qualgate/internal/escalation"
	"github.com/ShayCichocki/qualgate/internal/validator"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// ChecklistStore handles checklist persistence.
type ChecklistStore interface {
	SaveChecklist(ctx context.Context, c *models.Checklist) error
	GetChecklist(ctx context.Context, id string) (*models.Checklist, error)
}

// ExecutionStore handles execution result persistence.
type ExecutionStore interface {
	SaveExecution(ctx context.Context, r *models.ChecklistExecutionResult) error
	GetExecution(ctx context.Context, id string) (*models.ChecklistExecutionResult, error)
	ListExecutions(ctx context.Context, limit int) ([]*models.ChecklistExecutionResult, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store is everything the pipeline persists. It composes the stores the
// review queue and escalation engine depend on.
type Store interface {
	io.Closer
	Migrator
	ChecklistStore
	ExecutionStore
	validator.TicketStore
	escalation.Store
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store                 = (*DB)(nil)
	_ Migrator              = (*DB)(nil)
	_ ChecklistStore        = (*DB)(nil)
	_ ExecutionStore        = (*DB)(nil)
	_ validator.TicketStore = (*DB)(nil)
	_ escalation.Store      = (*DB)(nil)
)
