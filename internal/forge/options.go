package forge

import (
	"fmt"
	"strings"
)

// Options is an immutable snapshot of smith/foundry behavior switches.
// Construct via DefaultOptions and override fields, then Validate before
// use; CreateSmith validates automatically.
type Options struct {
	MaxConcurrentWorkflows int
	ContinueOnError        bool
	FailFastCompensation   bool
	ThrowOnCompensationError bool
	EnableOutputChaining   bool

	Timing      TimingOptions
	Audit       AuditOptions
	Validation  ValidationOptions
	Persistence PersistenceOptions
	Recovery    RecoveryOptions
	Tracing     TracingOptions
	Resilience  ResilienceOptions
}

type TimingOptions struct {
	Enabled                bool
	IncludeDetailedTimings bool
}

type AuditDetailLevel string

const (
	AuditMinimal  AuditDetailLevel = "minimal"
	AuditStandard AuditDetailLevel = "standard"
	AuditVerbose  AuditDetailLevel = "verbose"
	AuditComplete AuditDetailLevel = "complete"
)

type AuditOptions struct {
	Enabled             bool
	DetailLevel         AuditDetailLevel
	LogDataPayloads     bool
	IncludeTimestamps   bool
	IncludeUserContext  bool
}

type ValidationOptions struct {
	Enabled                  bool
	IgnoreValidationFailures bool
	ThrowOnValidationError   bool
	LogValidationErrors      bool
	StoreValidationResults   bool
}

type PersistenceOptions struct {
	Enabled                   bool
	PersistOnOperationComplete bool
	PersistOnWorkflowComplete bool
	PersistOnFailure          bool
	MaxVersions               int
	InstanceID                string
	WorkflowKey               string
}

type RecoveryOptions struct {
	Enabled               bool
	MaxRetryAttempts      int
	BaseDelaySeconds      float64
	UseExponentialBackoff bool
	AttemptResume         bool
	LogRecoveryAttempts   bool
}

type TracingExporter string

const (
	TracingExporterNone   TracingExporter = "none"
	TracingExporterStdout TracingExporter = "stdout"
	TracingExporterOTLP   TracingExporter = "otlp"
)

type TracingOptions struct {
	Enabled      bool
	ServiceName  string
	Exporter     TracingExporter
	OTLPEndpoint string
	SampleRate   float64
}

// ResilienceStrategyKind selects the retry/delay shape the resilience
// middleware applies to a failed operation invocation.
type ResilienceStrategyKind string

const (
	ResilienceStrategyNone        ResilienceStrategyKind = "none"
	ResilienceStrategyFixed       ResilienceStrategyKind = "fixed"
	ResilienceStrategyExponential ResilienceStrategyKind = "exponential"
	ResilienceStrategyRandom      ResilienceStrategyKind = "random"
)

// CircuitBreakerOptions mirrors resilience.CircuitBreakerConfig.
type CircuitBreakerOptions struct {
	Enabled                 bool
	FailureThreshold        uint32
	MinimumThroughput       uint32
	SamplingDurationSeconds float64
	BreakDurationSeconds    float64
}

// IdempotencyOptions controls the per-operation output cache the
// resilience middleware consults before re-invoking an operation whose
// last attempt already produced output.
type IdempotencyOptions struct {
	Enabled    bool
	TTLSeconds float64
}

// ResilienceOptions configures the optional retry/circuit-breaker
// middleware wrapping every operation invocation.
type ResilienceOptions struct {
	Enabled          bool
	Strategy         ResilienceStrategyKind
	MaxAttempts      int
	BaseDelaySeconds float64
	MaxDelaySeconds  float64
	MinDelaySeconds  float64
	Jitter           bool
	CircuitBreaker   CircuitBreakerOptions
	Idempotency      IdempotencyOptions
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxConcurrentWorkflows:   0,
		ContinueOnError:          false,
		FailFastCompensation:     false,
		ThrowOnCompensationError: false,
		EnableOutputChaining:     true,
		Timing:                   TimingOptions{Enabled: true},
		Audit:                    AuditOptions{Enabled: false, DetailLevel: AuditStandard, IncludeTimestamps: true},
		Validation:               ValidationOptions{Enabled: false},
		Persistence: PersistenceOptions{
			Enabled:                    false,
			PersistOnOperationComplete: true,
			PersistOnWorkflowComplete:  true,
			PersistOnFailure:           true,
			MaxVersions:                0,
		},
		Recovery: RecoveryOptions{
			Enabled:          false,
			MaxRetryAttempts: 3,
			BaseDelaySeconds: 1,
		},
		Tracing: TracingOptions{Enabled: false, ServiceName: "workflowforge", Exporter: TracingExporterNone, SampleRate: 1.0},
		Resilience: ResilienceOptions{
			Enabled:          false,
			Strategy:         ResilienceStrategyFixed,
			MaxAttempts:      3,
			BaseDelaySeconds: 1,
			MaxDelaySeconds:  30,
			Idempotency:      IdempotencyOptions{Enabled: true, TTLSeconds: 600},
		},
	}
}

// Validate returns every violated constraint. A non-empty result means
// the options must not be used to construct a Smith.
func (o Options) Validate() []error {
	var errs []error

	if o.MaxConcurrentWorkflows < 0 {
		errs = append(errs, fmt.Errorf("MaxConcurrentWorkflows must be >= 0, got %d", o.MaxConcurrentWorkflows))
	}
	if o.Validation.IgnoreValidationFailures && o.Validation.ThrowOnValidationError {
		errs = append(errs, fmt.Errorf("Validation: IgnoreValidationFailures and ThrowOnValidationError are mutually exclusive"))
	}
	if o.Persistence.MaxVersions < 0 {
		errs = append(errs, fmt.Errorf("Persistence.MaxVersions must be >= 0, got %d", o.Persistence.MaxVersions))
	}
	if o.Recovery.Enabled {
		if o.Recovery.MaxRetryAttempts < 1 || o.Recovery.MaxRetryAttempts > 100 {
			errs = append(errs, fmt.Errorf("Recovery.MaxRetryAttempts must be in [1,100], got %d", o.Recovery.MaxRetryAttempts))
		}
		if o.Recovery.BaseDelaySeconds < 0 || o.Recovery.BaseDelaySeconds > 600 {
			errs = append(errs, fmt.Errorf("Recovery.BaseDelay must be in [0,10min], got %gs", o.Recovery.BaseDelaySeconds))
		}
	}
	if o.Tracing.Enabled {
		switch o.Tracing.Exporter {
		case TracingExporterNone, TracingExporterStdout, TracingExporterOTLP:
		default:
			errs = append(errs, fmt.Errorf("Tracing.Exporter unsupported: %q", o.Tracing.Exporter))
		}
	}
	if o.Resilience.Enabled {
		switch o.Resilience.Strategy {
		case ResilienceStrategyNone, ResilienceStrategyFixed, ResilienceStrategyExponential, ResilienceStrategyRandom:
		default:
			errs = append(errs, fmt.Errorf("Resilience.Strategy unsupported: %q", o.Resilience.Strategy))
		}
		if o.Resilience.MaxAttempts < 1 || o.Resilience.MaxAttempts > 100 {
			errs = append(errs, fmt.Errorf("Resilience.MaxAttempts must be in [1,100], got %d", o.Resilience.MaxAttempts))
		}
	}

	return errs
}

// aggregateValidation joins a Validate() result into one error, formatted
// the way smith construction surfaces it.
func aggregateValidation(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("Invalid WorkflowForge options: %s", strings.Join(msgs, "; "))
}
