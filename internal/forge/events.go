package forge

import (
	"context"
	"time"

	"github.com/forgeworks/workflowforge/internal/pubsub"
)

// EventKind enumerates lifecycle events the foundry emits during a run.
type EventKind string

const (
	WorkflowStarted           EventKind = "workflow_started"
	WorkflowCompleted         EventKind = "workflow_completed"
	WorkflowFailed            EventKind = "workflow_failed"
	WorkflowCancelled         EventKind = "workflow_cancelled"
	OperationStarted          EventKind = "operation_started"
	OperationCompleted        EventKind = "operation_completed"
	OperationFailed           EventKind = "operation_failed"
	OperationSkipped          EventKind = "operation_skipped"
	OperationRestoreStarted   EventKind = "operation_restore_started"
	OperationRestoreCompleted EventKind = "operation_restore_completed"
	OperationRestoreFailed    EventKind = "operation_restore_failed"
	CompensationTriggered     EventKind = "compensation_triggered"
	CompensationCompleted     EventKind = "compensation_completed"
)

// Event is one lifecycle notification raised by a run. Fields not
// applicable to Kind are left zero.
type Event struct {
	Kind          EventKind
	Timestamp     time.Time
	ExecutionID   ExecutionID
	WorkflowName  string
	OperationName string
	OperationIdx  int
	Duration      time.Duration
	Err           error
	SuccessCount  int
	FailureCount  int
	Reason        string
}

// emitter is the foundry's event multicast. It wraps a generic pubsub
// broker; handlers must not block, matching the broker's non-blocking
// publish contract.
type emitter struct {
	broker *pubsub.Broker[Event]
}

func newEmitter() *emitter {
	return &emitter{broker: pubsub.NewBroker[Event]()}
}

// Subscribe returns a channel of events, closed when ctx is cancelled.
func (e *emitter) Subscribe(ctx context.Context) <-chan pubsub.Event[Event] {
	return e.broker.Subscribe(ctx)
}

func (e *emitter) emit(evt Event) {
	evt.Timestamp = time.Now()
	e.broker.Publish(pubsub.CreatedEvent, evt)
}

func (e *emitter) close() { e.broker.Close() }
