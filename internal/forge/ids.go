package forge

import "github.com/google/uuid"

// WorkflowID identifies a Workflow definition.
type WorkflowID uuid.UUID

// NewWorkflowID generates a random WorkflowID.
func NewWorkflowID() WorkflowID { return WorkflowID(uuid.New()) }

func (id WorkflowID) String() string { return uuid.UUID(id).String() }

// OperationID identifies an Operation within a Workflow.
type OperationID uuid.UUID

// NewOperationID generates a random OperationID.
func NewOperationID() OperationID { return OperationID(uuid.New()) }

func (id OperationID) String() string { return uuid.UUID(id).String() }

// ExecutionID identifies one run of a Workflow against a Foundry.
type ExecutionID uuid.UUID

// NewExecutionID generates a random ExecutionID.
func NewExecutionID() ExecutionID { return ExecutionID(uuid.New()) }

func (id ExecutionID) String() string { return uuid.UUID(id).String() }

// stableNamespace is used to derive deterministic execution/workflow keys
// from caller-supplied instance identifiers, so a resumed run after a
// process restart addresses the same persisted snapshot.
var stableNamespace = uuid.MustParse("8f14e45f-ceea-467e-bd5d-24f57b2a1a3e")

// DeriveExecutionID returns a stable ExecutionID for instanceID, unchanged
// across calls with the same input. Used by persistence key derivation
// when the caller supplies an InstanceId instead of relying on a random
// transient ExecutionID.
func DeriveExecutionID(instanceID string) ExecutionID {
	return ExecutionID(uuid.NewSHA1(stableNamespace, []byte(instanceID)))
}

// DeriveWorkflowID returns a stable WorkflowID for workflowKey.
func DeriveWorkflowID(workflowKey string) WorkflowID {
	return WorkflowID(uuid.NewSHA1(stableNamespace, []byte(workflowKey)))
}
