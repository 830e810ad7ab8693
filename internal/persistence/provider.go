// Package persistence defines the durable-checkpoint contract the smith
// uses to save, load, and delete execution snapshots, plus a catalog of
// pending executions consulted by the recovery coordinator.
package persistence

import (
	"context"
	"time"
)

// Snapshot is a durable record of a workflow run's progress.
// NextOperationIndex == -1 means the run has not started;
// N means operation N is next to execute.
type Snapshot struct {
	FoundryExecutionID string
	WorkflowID         string
	WorkflowName       string
	NextOperationIndex int
	Properties         map[string]any
	Version            int
	UpdatedAt           time.Time
}

// Provider saves, loads, and deletes execution snapshots. Implementations
// must accept cancellation; a Save failure is logged by the caller and
// does not abort the run unless the caller opts in.
type Provider interface {
	Save(ctx context.Context, snap Snapshot) error
	TryLoad(ctx context.Context, foundryExecutionID, workflowID string) (*Snapshot, error)
	Delete(ctx context.Context, foundryExecutionID, workflowID string) error
}

// Catalog lists pending (unfinished) snapshots for the recovery
// coordinator to resume. Order is implementation-defined; the SQLite
// catalog orders oldest-updated-first.
type Catalog interface {
	ListPending(ctx context.Context) ([]Snapshot, error)
}
