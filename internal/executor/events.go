package executor

import (
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/qualgate/internal/logging"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// EventType represents the type of execution event.
type EventType string

const (
	// EventExecutionStarted indicates a run (or resumed run) has started.
	EventExecutionStarted EventType = "execution_started"
	// EventItemStarted indicates an item is about to run.
	EventItemStarted EventType = "item_started"
	// EventItemFinished indicates an item produced a result.
	EventItemFinished EventType = "item_finished"
	// EventExecutionFinished indicates the run reached its final state for now.
	EventExecutionFinished EventType = "execution_finished"
)

// Event is emitted as an execution progresses.
type Event struct {
	Type        EventType
	ExecutionID string
	ItemID      string
	ItemStatus  models.ItemStatus
	State       models.ExecutionState
	Progress    int
	Message     string
	Timestamp   time.Time
}

// EventEmitter delivers events to a buffered channel without ever
// blocking the executor for long.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
	logger       logging.Logger
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int, logger logging.Logger) *EventEmitter {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &EventEmitter{
		events: make(chan Event, bufferSize),
		logger: logger,
	}
}

// Emit sends an event. If the channel stays full for 100ms the event is dropped.
func (e *EventEmitter) Emit(event Event) {
	if e == nil {
		return
	}
	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam
			e.logger.Log("[executor] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel. Call it once no executor emits anymore.
func (e *EventEmitter) Close() {
	close(e.events)
}
