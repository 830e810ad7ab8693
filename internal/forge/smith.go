package forge

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/forgeworks/workflowforge/internal/log"
	"github.com/forgeworks/workflowforge/internal/persistence"
)

// ErrWorkflowCancelled is returned when a run observes context
// cancellation rather than an operation failure.
var ErrWorkflowCancelled = errors.New("forge: workflow cancelled")

// CompensationFailure aggregates restore errors observed while unwinding
// the compensation stack, surfaced only when ThrowOnCompensationError.
type CompensationFailure struct {
	SuccessCount int
	FailureCount int
	Errors       []error
}

func (e *CompensationFailure) Error() string {
	return fmt.Sprintf("forge: compensation failed for %d of %d operations: %v", e.FailureCount, e.FailureCount+e.SuccessCount, e.Errors)
}

// Smith is the runtime coordinator: it drives a Workflow to completion or
// failure on a Foundry, under a bounded-concurrency limit, invoking the
// foundry's middleware pipeline around every operation and maintaining
// the compensation stack.
type Smith struct {
	logger  log.Logger
	options Options
	persist persistence.Provider
	sem     chan struct{}
}

// SmithOption configures a Smith at construction.
type SmithOption func(*Smith)

// WithSmithLogger injects a Logger for the smith's own bookkeeping logs.
func WithSmithLogger(l log.Logger) SmithOption {
	return func(s *Smith) { s.logger = l }
}

// WithPersistence installs a persistence.Provider used for checkpointing
// and recovery. Required only when Options.Persistence.Enabled is true.
func WithPersistence(p persistence.Provider) SmithOption {
	return func(s *Smith) { s.persist = p }
}

// CreateSmith validates opts and constructs a Smith. Construction fails
// with an aggregated error naming every invalid field.
func CreateSmith(opts Options, smithOpts ...SmithOption) (*Smith, error) {
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, aggregateValidation(errs)
	}

	s := &Smith{
		logger:  log.NullLogger{},
		options: opts,
	}
	if opts.MaxConcurrentWorkflows > 0 {
		s.sem = make(chan struct{}, opts.MaxConcurrentWorkflows)
	}
	for _, o := range smithOpts {
		o(s)
	}
	return s, nil
}

// acquire blocks until a concurrency slot is available or ctx is done.
func (s *Smith) acquire(ctx context.Context) error {
	if s.sem == nil {
		return nil
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Smith) release() {
	if s.sem == nil {
		return
	}
	<-s.sem
}

// ForgeAsync runs workflow to completion, failure, or cancellation on f.
// If f is nil, a fresh Foundry is constructed with the smith's options.
func (s *Smith) ForgeAsync(ctx context.Context, workflow *Workflow, f *Foundry) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if f == nil {
		f = NewFoundry(WithOptions(s.options), WithLogger(s.logger))
	}
	f.setCurrentWorkflow(workflow)
	f.Freeze()

	f.Properties().Set(PropWorkflowName, workflow.Name())

	wfTimeoutConfigured := workflow.Timeout() > 0
	wfCancel := func() {}
	if wfTimeoutConfigured {
		f.Properties().Set(PropWorkflowTimeout, workflow.Timeout())
		ctx, wfCancel = context.WithTimeout(ctx, workflow.Timeout())
	}
	defer wfCancel()

	markTimeout := func() {
		if wfTimeoutConfigured && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			f.Properties().Set(PropWorkflowTimedOut, true)
			f.Properties().Set(PropWorkflowTimeoutDuration, workflow.Timeout())
		}
	}

	f.Emit(Event{Kind: WorkflowStarted, WorkflowName: workflow.Name()})
	s.logger.Info(log.CatSmith, "workflow execution started", "workflow", workflow.Name(), "execution_id", f.ExecutionID().String())

	startIndex, err := s.resolveStartIndex(ctx, workflow, f)
	if err != nil {
		return err
	}

	stack := &compensationStack{}
	ops := workflow.Operations()

	var previousOutput any
	runErr := error(nil)
	cancelled := false
	failedIndex := -1

	for i := startIndex; i < len(ops); i++ {
		select {
		case <-ctx.Done():
			cancelled = true
			markTimeout()
		default:
		}
		if cancelled {
			break
		}

		op := ops[i]
		f.Properties().Set(PropCurrentOpIndex, i)

		f.Emit(Event{Kind: OperationStarted, OperationName: op.Name(), OperationIdx: i})
		s.logger.Debug(log.CatSmith, "operation execution started", "operation", op.Name(), "index", i)

		opCtx := ctx
		opCancel := func() {}
		if d, ok := workflow.OperationTimeout(op.Name()); ok && d > 0 {
			f.Properties().Set(operationTimeoutKey(i, op.Name()), d)
			opCtx, opCancel = context.WithTimeout(ctx, d)
		}
		output, opErr := s.invoke(opCtx, f, op, previousOutput)
		opCancel()

		if opErr != nil {
			if errors.Is(opErr, context.Canceled) || errors.Is(opErr, context.DeadlineExceeded) {
				cancelled = true
				markTimeout()
				break
			}

			f.Properties().Set(PropLastFailedIndex, i)
			f.Properties().Set(PropLastFailedName, op.Name())
			f.Properties().Set(PropLastFailedID, op.ID().String())
			f.Properties().Set(PropErrorMessage, opErr.Error())
			f.Properties().Set(PropErrorType, fmt.Sprintf("%T", opErr))
			f.Properties().Set(PropErrorTimestamp, time.Now())
			f.Properties().Set(PropErrorStackTrace, string(debug.Stack()))

			f.Emit(Event{Kind: OperationFailed, OperationName: op.Name(), OperationIdx: i, Err: opErr})
			s.logger.ErrorErr(log.CatSmith, "operation execution failed", opErr, "operation", op.Name(), "index", i)

			if s.options.ContinueOnError {
				stack.push(i, op, nil)
				s.checkpoint(ctx, f, workflow, i+1)
				continue
			}

			runErr = opErr
			failedIndex = i
			break
		}

		f.Properties().Set(fmt.Sprintf("Operation.%d:%s.Output", i, op.Name()), output)
		f.Properties().Set(PropLastCompletedIndex, i)
		f.Properties().Set(PropLastCompletedName, op.Name())
		f.Properties().Set(PropLastCompletedID, op.ID().String())

		stack.push(i, op, output)

		f.Emit(Event{Kind: OperationCompleted, OperationName: op.Name(), OperationIdx: i})
		s.logger.Debug(log.CatSmith, "operation execution completed", "operation", op.Name(), "index", i)

		if s.options.EnableOutputChaining {
			previousOutput = output
		} else {
			previousOutput = nil
		}

		s.checkpoint(ctx, f, workflow, i+1)
	}

	if cancelled {
		f.Emit(Event{Kind: WorkflowCancelled, WorkflowName: workflow.Name()})
		s.logger.Warn(log.CatSmith, "workflow execution cancelled", "workflow", workflow.Name())
		return ErrWorkflowCancelled
	}

	if runErr != nil {
		s.checkpointOnFailure(ctx, f, workflow, failedIndex)
		compErr := s.compensate(ctx, f, workflow, stack, runErr)
		f.Emit(Event{Kind: WorkflowFailed, WorkflowName: workflow.Name(), Err: runErr})
		s.logger.ErrorErr(log.CatSmith, "workflow execution failed", runErr, "workflow", workflow.Name())
		if compErr != nil {
			return compErr
		}
		return runErr
	}

	f.Emit(Event{Kind: WorkflowCompleted, WorkflowName: workflow.Name()})
	s.logger.Info(log.CatSmith, "workflow execution completed successfully", "workflow", workflow.Name())

	if s.options.Persistence.Enabled && s.persist != nil {
		if s.options.Persistence.PersistOnWorkflowComplete {
			s.save(ctx, f, workflow, len(ops))
		}
		execKey, wfKey := s.persistenceKeys(workflow, f)
		if err := s.persist.Delete(ctx, execKey, wfKey); err != nil {
			s.logger.ErrorErr(log.CatPersist, "snapshot delete failed", err)
		}
	}

	return nil
}

// invoke runs op.Forge wrapped by the foundry's registered middleware.
func (s *Smith) invoke(ctx context.Context, f *Foundry, op Operation, input any) (any, error) {
	terminal := func(ctx context.Context, input any) (any, error) {
		return op.Forge(ctx, input, f)
	}
	pipeline := buildPipeline(f.Middleware(), op, f, terminal)
	return pipeline(ctx, input)
}

// compensate walks the stack top-down invoking Restore on every entry
// that supports it.
func (s *Smith) compensate(ctx context.Context, f *Foundry, workflow *Workflow, stack *compensationStack, cause error) error {
	if stack.len() == 0 {
		return nil
	}

	start := time.Now()
	f.Emit(Event{Kind: CompensationTriggered, WorkflowName: workflow.Name(), Reason: cause.Error()})
	s.logger.Warn(log.CatSmith, "compensation process started", "workflow", workflow.Name(), "reason", cause.Error())

	successCount, failureCount := 0, 0
	var errs []error

	stack.walk(func(entry compensationEntry) {
		if failureCount > 0 && s.options.FailFastCompensation {
			return
		}
		if !entry.op.SupportsRestore() {
			f.Emit(Event{Kind: OperationSkipped, OperationName: entry.op.Name(), OperationIdx: entry.index})
			return
		}

		f.Emit(Event{Kind: OperationRestoreStarted, OperationName: entry.op.Name(), OperationIdx: entry.index})
		restoreStart := time.Now()

		if err := entry.op.Restore(ctx, entry.lastOutput, f); err != nil {
			failureCount++
			errs = append(errs, err)
			f.Emit(Event{Kind: OperationRestoreFailed, OperationName: entry.op.Name(), OperationIdx: entry.index, Err: err, Duration: time.Since(restoreStart)})
			s.logger.ErrorErr(log.CatSmith, "compensation action failed", err, "operation", entry.op.Name())
			return
		}

		successCount++
		f.Emit(Event{Kind: OperationRestoreCompleted, OperationName: entry.op.Name(), OperationIdx: entry.index, Duration: time.Since(restoreStart)})
	})

	f.Emit(Event{
		Kind:         CompensationCompleted,
		WorkflowName: workflow.Name(),
		SuccessCount: successCount,
		FailureCount: failureCount,
		Duration:     time.Since(start),
	})
	s.logger.Info(log.CatSmith, "compensation process completed", "workflow", workflow.Name(), "success", successCount, "failed", failureCount)

	if failureCount > 0 && s.options.ThrowOnCompensationError {
		return &CompensationFailure{SuccessCount: successCount, FailureCount: failureCount, Errors: errs}
	}
	return nil
}

func (s *Smith) persistenceKeys(workflow *Workflow, f *Foundry) (execKey, wfKey string) {
	if s.options.Persistence.InstanceID != "" && s.options.Persistence.WorkflowKey != "" {
		return DeriveExecutionID(s.options.Persistence.InstanceID).String(), DeriveWorkflowID(s.options.Persistence.WorkflowKey).String()
	}
	return f.ExecutionID().String(), workflow.ID().String()
}

func (s *Smith) resolveStartIndex(ctx context.Context, workflow *Workflow, f *Foundry) (int, error) {
	if !s.options.Persistence.Enabled || s.persist == nil {
		return 0, nil
	}

	execKey, wfKey := s.persistenceKeys(workflow, f)
	snap, err := s.persist.TryLoad(ctx, execKey, wfKey)
	if err != nil {
		s.logger.ErrorErr(log.CatPersist, "snapshot load failed", err)
		return 0, nil
	}
	if snap == nil {
		return 0, nil
	}

	f.Properties().LoadFrom(snap.Properties)
	if snap.NextOperationIndex < 0 {
		return 0, nil
	}
	return snap.NextOperationIndex, nil
}

func (s *Smith) checkpoint(ctx context.Context, f *Foundry, workflow *Workflow, nextIndex int) {
	if !s.options.Persistence.Enabled || s.persist == nil || !s.options.Persistence.PersistOnOperationComplete {
		return
	}
	s.save(ctx, f, workflow, nextIndex)
}

func (s *Smith) checkpointOnFailure(ctx context.Context, f *Foundry, workflow *Workflow, failedIndex int) {
	if !s.options.Persistence.Enabled || s.persist == nil || !s.options.Persistence.PersistOnFailure {
		return
	}
	s.save(ctx, f, workflow, failedIndex)
}

func (s *Smith) save(ctx context.Context, f *Foundry, workflow *Workflow, nextIndex int) {
	execKey, wfKey := s.persistenceKeys(workflow, f)
	snap := persistence.Snapshot{
		FoundryExecutionID: execKey,
		WorkflowID:         wfKey,
		WorkflowName:       workflow.Name(),
		NextOperationIndex: nextIndex,
		Properties:         f.Properties().Snapshot(),
	}
	if err := s.persist.Save(ctx, snap); err != nil {
		s.logger.ErrorErr(log.CatPersist, "snapshot save failed", err)
	}
}

// operationTimeoutKey names the property recording the configured
// per-operation deadline, if any, for operation i.
func operationTimeoutKey(i int, name string) string {
	return fmt.Sprintf("Operation.%d:%s.Timeout", i, name)
}
