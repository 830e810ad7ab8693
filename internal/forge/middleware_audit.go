package forge

import (
	"context"

	"github.com/forgeworks/workflowforge/internal/audit"
	"github.com/forgeworks/workflowforge/internal/log"
)

// AuditMiddleware emits a Started entry before an operation runs and a
// Completed or Failed entry after. Audit write failures are logged and
// never propagate: the audit trail must never break execution.
type AuditMiddleware struct {
	provider    audit.Provider
	detailLevel AuditDetailLevel
}

// NewAuditMiddleware builds an AuditMiddleware writing through provider.
func NewAuditMiddleware(provider audit.Provider, opts AuditOptions) *AuditMiddleware {
	return &AuditMiddleware{provider: provider, detailLevel: opts.DetailLevel}
}

func (m *AuditMiddleware) Execute(ctx context.Context, op Operation, f *Foundry, input any, next Next) (any, error) {
	wfName := ""
	if wf := f.CurrentWorkflow(); wf != nil {
		wfName = wf.Name()
	}

	m.record(ctx, f, wfName, op.Name(), audit.Started, "", "")

	output, err := next(ctx, input)

	if err != nil {
		m.record(ctx, f, wfName, op.Name(), audit.Failed, "failed", err.Error())
		return output, err
	}
	m.record(ctx, f, wfName, op.Name(), audit.Completed, "completed", "")
	return output, nil
}

func (m *AuditMiddleware) record(ctx context.Context, f *Foundry, wfName, opName string, kind audit.EventType, status, errMsg string) {
	entry := audit.Entry{
		ExecutionID:   f.ExecutionID().String(),
		WorkflowName:  wfName,
		OperationName: opName,
		EventType:     kind,
		Status:        status,
		ErrorMessage:  errMsg,
	}
	if err := m.provider.Record(ctx, entry); err != nil {
		f.Logger().ErrorErr(log.CatAudit, "audit record failed", err, "operation", opName)
	}
}
