// Package definition loads workflow definitions from YAML documents and
// resolves them against a host-supplied registry of named operations,
// letting workflows be authored as data instead of Go code.
package definition

import (
	"fmt"

	"github.com/forgeworks/workflowforge/internal/forge"
)

// StepDefinition names one operation within a workflow definition, plus
// the metadata the builder should attach to the resulting workflow.
type StepDefinition struct {
	OperationName string            `yaml:"operation"`
	Metadata      map[string]string `yaml:"metadata,omitempty"`
}

// WorkflowDefinition is the YAML-sourced description of a workflow, prior
// to resolution against an OperationRegistry.
type WorkflowDefinition struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Version     string            `yaml:"version,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`
	Steps       []StepDefinition  `yaml:"steps"`
}

// OperationRegistry resolves the operation names referenced by a
// WorkflowDefinition into concrete forge.Operation instances. Hosts
// register their operations under stable names before loading definitions.
type OperationRegistry interface {
	Lookup(name string) (forge.Operation, bool)
}

// MapRegistry is a simple map-backed OperationRegistry.
type MapRegistry map[string]forge.Operation

// Lookup implements OperationRegistry.
func (r MapRegistry) Lookup(name string) (forge.Operation, bool) {
	op, ok := r[name]
	return op, ok
}

// Register adds op under name, overwriting any existing registration.
func (r MapRegistry) Register(name string, op forge.Operation) {
	r[name] = op
}

// ErrOperationNotRegistered is returned when a definition references an
// operation name absent from the registry.
type ErrOperationNotRegistered struct {
	WorkflowID string
	StepIndex  int
	Name       string
}

func (e *ErrOperationNotRegistered) Error() string {
	return fmt.Sprintf("definition: workflow %q step %d references unregistered operation %q", e.WorkflowID, e.StepIndex, e.Name)
}

// Resolve builds a forge.Workflow from a WorkflowDefinition, looking up
// each step's operation in registry. Step metadata, when present, is
// merged into the built workflow's metadata under "step.<index>.<key>".
func Resolve(def WorkflowDefinition, registry OperationRegistry) (*forge.Workflow, error) {
	builder := forge.NewBuilder(def.Name)
	if def.ID != "" {
		builder = builder.WithID(forge.DeriveWorkflowID(def.ID))
	}
	builder = builder.WithDescription(def.Description).WithVersion(def.Version)

	for k, v := range def.Metadata {
		builder = builder.WithMetadata(k, v)
	}

	for i, step := range def.Steps {
		op, ok := registry.Lookup(step.OperationName)
		if !ok {
			return nil, &ErrOperationNotRegistered{WorkflowID: def.ID, StepIndex: i, Name: step.OperationName}
		}
		for k, v := range step.Metadata {
			builder = builder.WithMetadata(fmt.Sprintf("step.%d.%s", i, k), v)
		}
		builder = builder.AddOperation(op)
	}

	return builder.Build(), nil
}
