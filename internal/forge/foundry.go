package forge

import (
	"context"
	"errors"
	"sync"

	"github.com/forgeworks/workflowforge/internal/clock"
	"github.com/forgeworks/workflowforge/internal/log"
)

// Well-known property keys the smith and middleware reserve. Operation
// code must not write these.
const (
	PropCurrentOpIndex          = "__wf_current_op_index__"
	PropLastCompletedIndex      = "Operation.LastCompletedIndex"
	PropLastCompletedName       = "Operation.LastCompletedName"
	PropLastCompletedID         = "Operation.LastCompletedId"
	PropLastFailedIndex         = "Operation.LastFailedIndex"
	PropLastFailedName          = "Operation.LastFailedName"
	PropLastFailedID            = "Operation.LastFailedId"
	PropErrorMessage            = "Error.Message"
	PropErrorType               = "Error.Type"
	PropErrorTimestamp          = "Error.Timestamp"
	PropErrorStackTrace         = "Error.StackTrace"
	PropWorkflowName            = "Workflow.Name"
	PropTimingStart             = "Timing.StartTime"
	PropTimingEnd               = "Timing.EndTime"
	PropTimingDuration          = "Timing.Duration"
	PropTimingDurationTicks     = "Timing.DurationTicks"
	PropTimingFailed            = "Timing.Failed"
	PropWorkflowTimeout         = "Workflow.Timeout"
	PropWorkflowTimedOut        = "Workflow.TimedOut"
	PropWorkflowTimeoutDuration = "Workflow.TimeoutDuration"
	PropValidationStatus        = "Validation.Status"
	PropValidationErrors        = "Validation.Errors"
)

// ErrFoundryFrozen is returned by mutators called after Freeze.
var ErrFoundryFrozen = errors.New("forge: foundry is frozen")

// ServiceProvider resolves named collaborators an operation may need.
// Tests typically supply a trivial map-backed implementation.
type ServiceProvider interface {
	Service(name string) (any, bool)
}

// MapServices is a ServiceProvider backed by a plain map.
type MapServices map[string]any

func (m MapServices) Service(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Properties is the foundry's concurrency-safe key/value store. Writes
// are last-writer-wins per key; there is no cross-key transactional
// guarantee.
type Properties struct {
	mu   sync.RWMutex
	data map[string]any
}

func newProperties() *Properties {
	return &Properties{data: make(map[string]any)}
}

func (p *Properties) Get(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.data[key]
	return v, ok
}

func (p *Properties) Set(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[key] = value
}

func (p *Properties) Delete(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, key)
}

// Snapshot returns a shallow copy of all current properties.
func (p *Properties) Snapshot() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(p.data))
	for k, v := range p.data {
		out[k] = v
	}
	return out
}

// LoadFrom replaces the property set with a copy of snapshot.
func (p *Properties) LoadFrom(snapshot map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		p.data[k] = v
	}
}

// Foundry is the per-execution context threaded through a workflow run:
// properties, logger, options, middleware, events, and the reference to
// the workflow currently running on it.
type Foundry struct {
	mu sync.Mutex

	executionID ExecutionID
	properties  *Properties
	logger      log.Logger
	clock       clock.Clock
	services    ServiceProvider
	options     Options
	middleware  []Middleware
	operations  []Operation
	events      *emitter

	currentWorkflow *Workflow
	frozen          bool
}

// FoundryOption configures a Foundry at construction time.
type FoundryOption func(*Foundry)

// WithLogger injects a Logger; defaults to log.NullLogger.
func WithLogger(l log.Logger) FoundryOption {
	return func(f *Foundry) { f.logger = l }
}

// WithClock injects a Clock; defaults to clock.RealClock.
func WithClock(c clock.Clock) FoundryOption {
	return func(f *Foundry) { f.clock = c }
}

// WithServices injects a ServiceProvider; defaults to an empty MapServices.
func WithServices(s ServiceProvider) FoundryOption {
	return func(f *Foundry) { f.services = s }
}

// WithOptions installs a validated Options snapshot.
func WithOptions(o Options) FoundryOption {
	return func(f *Foundry) { f.options = o }
}

// WithExecutionID overrides the generated ExecutionID, e.g. with a value
// derived deterministically from a caller-supplied instance id.
func WithExecutionID(id ExecutionID) FoundryOption {
	return func(f *Foundry) { f.executionID = id }
}

// NewFoundry constructs a Foundry ready for a single workflow run.
func NewFoundry(opts ...FoundryOption) *Foundry {
	f := &Foundry{
		executionID: NewExecutionID(),
		properties:  newProperties(),
		logger:      log.NullLogger{},
		clock:       clock.RealClock{},
		services:    MapServices{},
		options:     DefaultOptions(),
		events:      newEmitter(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Foundry) ExecutionID() ExecutionID { return f.executionID }
func (f *Foundry) Properties() *Properties  { return f.properties }
func (f *Foundry) Logger() log.Logger       { return f.logger }
func (f *Foundry) Clock() clock.Clock       { return f.clock }
func (f *Foundry) Services() ServiceProvider { return f.services }
func (f *Foundry) Options() Options          { return f.options }
func (f *Foundry) Events() *emitter         { return f.events }

// CurrentWorkflow returns the workflow presently running on this foundry,
// or nil between runs.
func (f *Foundry) CurrentWorkflow() *Workflow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentWorkflow
}

func (f *Foundry) setCurrentWorkflow(w *Workflow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentWorkflow = w
}

// Middleware returns the registered middleware chain, outermost first.
func (f *Foundry) Middleware() []Middleware {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Middleware, len(f.middleware))
	copy(out, f.middleware)
	return out
}

// AddMiddleware registers m at the end of the chain. Fails if the foundry
// is frozen.
func (f *Foundry) AddMiddleware(m Middleware) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frozen {
		return ErrFoundryFrozen
	}
	f.middleware = append(f.middleware, m)
	return nil
}

// Operations returns the foundry's local operation list, appended via
// AddOperation.
func (f *Foundry) Operations() []Operation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Operation, len(f.operations))
	copy(out, f.operations)
	return out
}

// AddOperation appends op to the foundry's local operation list, consumed
// by ForgeAsync. Fails if the foundry is frozen.
func (f *Foundry) AddOperation(op Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frozen {
		return ErrFoundryFrozen
	}
	f.operations = append(f.operations, op)
	return nil
}

// ForgeAsync is a convenience that builds a Workflow from the operations
// registered via AddOperation and runs the smith pipeline over it against
// this foundry, using a smith constructed from this foundry's Options and
// Logger. Intended for tests and ad hoc scripts that have no separately
// built Workflow/Smith pair.
func (f *Foundry) ForgeAsync(ctx context.Context) error {
	builder := NewBuilder(f.Name())
	for _, op := range f.Operations() {
		builder.AddOperation(op)
	}
	workflow := builder.Build()

	smith, err := CreateSmith(f.Options(), WithSmithLogger(f.Logger()))
	if err != nil {
		return err
	}
	return smith.ForgeAsync(ctx, workflow, f)
}

// Name returns the foundry's workflow name for ad hoc ForgeAsync runs,
// falling back to a generic label when none was set.
func (f *Foundry) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentWorkflow != nil {
		return f.currentWorkflow.Name()
	}
	return "foundry-operations"
}

// Freeze marks the foundry as no longer accepting middleware or operation
// registration. The smith freezes a foundry at the start of a run.
func (f *Foundry) Freeze() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frozen = true
}

// Reset discards all properties, the middleware chain, and the local
// operation list and unfreezes the foundry so it can be reused for a fresh run. Used
// by test harnesses between scenarios.
func (f *Foundry) Reset() {
	f.mu.Lock()
	f.frozen = false
	f.middleware = nil
	f.operations = nil
	f.currentWorkflow = nil
	f.mu.Unlock()
	f.properties = newProperties()
}

// Emit raises evt to event subscribers, stamping ExecutionID.
func (f *Foundry) Emit(evt Event) {
	evt.ExecutionID = f.executionID
	f.events.emit(evt)
}
