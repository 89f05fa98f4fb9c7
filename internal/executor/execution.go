package executor

import (
	"sync"
	"sync/atomic"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

// Execution is the live handle of one run. Its progress can be read
// concurrently while the executor drives it.
type Execution struct {
	id          string
	checklistID string
	total       int

	attempted atomic.Int32

	mu          sync.RWMutex
	state       models.ExecutionState
	currentItem string
}

// Snapshot is a point-in-time view of an execution's progress.
type Snapshot struct {
	ExecutionID string                `json:"execution_id"`
	ChecklistID string                `json:"checklist_id"`
	State       models.ExecutionState `json:"state"`
	CurrentItem string                `json:"current_item,omitempty"`
	Progress    int                   `json:"progress"`
	Attempted   int                   `json:"attempted"`
	Total       int                   `json:"total"`
}

func newExecution(id string, checklist *models.Checklist) *Execution {
	return &Execution{
		id:          id,
		checklistID: checklist.ID,
		total:       len(checklist.Items),
		state:       models.ExecutionPending,
	}
}

// ID returns the execution ID.
func (x *Execution) ID() string {
	return x.id
}

// State returns the current state.
func (x *Execution) State() models.ExecutionState {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.state
}

func (x *Execution) setState(s models.ExecutionState) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.state = s
}

// advance records that an item was attempted.
func (x *Execution) advance(itemID string) {
	x.mu.Lock()
	x.currentItem = itemID
	x.mu.Unlock()
	x.attempted.Add(1)
}

func (x *Execution) current() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.currentItem
}

func (x *Execution) setCurrent(itemID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.currentItem = itemID
}

// Progress returns 0-100 proportional to the items attempted.
// A checklist with no items is fully progressed.
func (x *Execution) Progress() int {
	if x.total == 0 {
		return 100
	}
	return int(x.attempted.Load()) * 100 / x.total
}

// Snapshot returns the current progress.
func (x *Execution) Snapshot() Snapshot {
	return Snapshot{
		ExecutionID: x.id,
		ChecklistID: x.checklistID,
		State:       x.State(),
		CurrentItem: x.current(),
		Progress:    x.Progress(),
		Attempted:   int(x.attempted.Load()),
		Total:       x.total,
	}
}
