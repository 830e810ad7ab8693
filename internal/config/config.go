// Package config loads workflowforge's runtime configuration from a YAML
// file, environment variables, and CLI flags via viper, then translates
// it into a forge.Options snapshot the engine actually consumes.
package config

import (
	"fmt"

	"github.com/forgeworks/workflowforge/internal/forge"
)

// LoggingConfig controls the process-wide log.FileLogger.
type LoggingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Path     string `mapstructure:"path" yaml:"path"`
	MinLevel string `mapstructure:"min_level" yaml:"min_level"`
}

// DefinitionsConfig controls where YAML workflow definitions are loaded
// from and whether they are hot-reloaded on change.
type DefinitionsConfig struct {
	Dir       string `mapstructure:"dir" yaml:"dir"`
	HotReload bool   `mapstructure:"hot_reload" yaml:"hot_reload"`
}

// TimingConfig mirrors forge.TimingOptions.
type TimingConfig struct {
	Enabled                bool `mapstructure:"enabled" yaml:"enabled"`
	IncludeDetailedTimings bool `mapstructure:"include_detailed_timings" yaml:"include_detailed_timings"`
}

// AuditConfig mirrors forge.AuditOptions.
type AuditConfig struct {
	Enabled            bool   `mapstructure:"enabled" yaml:"enabled"`
	DetailLevel        string `mapstructure:"detail_level" yaml:"detail_level"`
	LogDataPayloads    bool   `mapstructure:"log_data_payloads" yaml:"log_data_payloads"`
	IncludeTimestamps  bool   `mapstructure:"include_timestamps" yaml:"include_timestamps"`
	IncludeUserContext bool   `mapstructure:"include_user_context" yaml:"include_user_context"`
}

// ValidationConfig mirrors forge.ValidationOptions.
type ValidationConfig struct {
	Enabled                  bool `mapstructure:"enabled" yaml:"enabled"`
	IgnoreValidationFailures bool `mapstructure:"ignore_validation_failures" yaml:"ignore_validation_failures"`
	ThrowOnValidationError   bool `mapstructure:"throw_on_validation_error" yaml:"throw_on_validation_error"`
	LogValidationErrors      bool `mapstructure:"log_validation_errors" yaml:"log_validation_errors"`
	StoreValidationResults   bool `mapstructure:"store_validation_results" yaml:"store_validation_results"`
}

// PersistenceConfig mirrors forge.PersistenceOptions, plus the on-disk
// location of the SQLite database backing it.
type PersistenceConfig struct {
	Enabled                    bool   `mapstructure:"enabled" yaml:"enabled"`
	DBPath                     string `mapstructure:"db_path" yaml:"db_path"`
	PersistOnOperationComplete bool   `mapstructure:"persist_on_operation_complete" yaml:"persist_on_operation_complete"`
	PersistOnWorkflowComplete  bool   `mapstructure:"persist_on_workflow_complete" yaml:"persist_on_workflow_complete"`
	PersistOnFailure           bool   `mapstructure:"persist_on_failure" yaml:"persist_on_failure"`
	MaxVersions                int    `mapstructure:"max_versions" yaml:"max_versions"`
	InstanceID                 string `mapstructure:"instance_id" yaml:"instance_id"`
	WorkflowKey                string `mapstructure:"workflow_key" yaml:"workflow_key"`
}

// RecoveryConfig mirrors forge.RecoveryOptions.
type RecoveryConfig struct {
	Enabled               bool    `mapstructure:"enabled" yaml:"enabled"`
	MaxRetryAttempts      int     `mapstructure:"max_retry_attempts" yaml:"max_retry_attempts"`
	BaseDelaySeconds      float64 `mapstructure:"base_delay_seconds" yaml:"base_delay_seconds"`
	UseExponentialBackoff bool    `mapstructure:"use_exponential_backoff" yaml:"use_exponential_backoff"`
	AttemptResume         bool    `mapstructure:"attempt_resume" yaml:"attempt_resume"`
	LogRecoveryAttempts   bool    `mapstructure:"log_recovery_attempts" yaml:"log_recovery_attempts"`
}

// TracingConfig mirrors forge.TracingOptions.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName  string  `mapstructure:"service_name" yaml:"service_name"`
	Exporter     string  `mapstructure:"exporter" yaml:"exporter"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// CircuitBreakerConfig mirrors forge.CircuitBreakerOptions.
type CircuitBreakerConfig struct {
	Enabled                 bool    `mapstructure:"enabled" yaml:"enabled"`
	FailureThreshold        uint32  `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	MinimumThroughput       uint32  `mapstructure:"minimum_throughput" yaml:"minimum_throughput"`
	SamplingDurationSeconds float64 `mapstructure:"sampling_duration_seconds" yaml:"sampling_duration_seconds"`
	BreakDurationSeconds    float64 `mapstructure:"break_duration_seconds" yaml:"break_duration_seconds"`
}

// IdempotencyConfig mirrors forge.IdempotencyOptions.
type IdempotencyConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	TTLSeconds float64 `mapstructure:"ttl_seconds" yaml:"ttl_seconds"`
}

// ResilienceConfig mirrors forge.ResilienceOptions.
type ResilienceConfig struct {
	Enabled          bool                 `mapstructure:"enabled" yaml:"enabled"`
	Strategy         string               `mapstructure:"strategy" yaml:"strategy"`
	MaxAttempts      int                  `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelaySeconds float64              `mapstructure:"base_delay_seconds" yaml:"base_delay_seconds"`
	MaxDelaySeconds  float64              `mapstructure:"max_delay_seconds" yaml:"max_delay_seconds"`
	MinDelaySeconds  float64              `mapstructure:"min_delay_seconds" yaml:"min_delay_seconds"`
	Jitter           bool                 `mapstructure:"jitter" yaml:"jitter"`
	CircuitBreaker   CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
	Idempotency      IdempotencyConfig    `mapstructure:"idempotency" yaml:"idempotency"`
}

// Config is the top-level, file-and-flag-bound configuration for a
// workflowforge host process.
type Config struct {
	MaxConcurrentWorkflows   int  `mapstructure:"max_concurrent_workflows" yaml:"max_concurrent_workflows"`
	ContinueOnError          bool `mapstructure:"continue_on_error" yaml:"continue_on_error"`
	FailFastCompensation     bool `mapstructure:"fail_fast_compensation" yaml:"fail_fast_compensation"`
	ThrowOnCompensationError bool `mapstructure:"throw_on_compensation_error" yaml:"throw_on_compensation_error"`
	EnableOutputChaining     bool `mapstructure:"enable_output_chaining" yaml:"enable_output_chaining"`

	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Definitions DefinitionsConfig `mapstructure:"definitions" yaml:"definitions"`
	Timing      TimingConfig      `mapstructure:"timing" yaml:"timing"`
	Audit       AuditConfig       `mapstructure:"audit" yaml:"audit"`
	Validation  ValidationConfig  `mapstructure:"validation" yaml:"validation"`
	Persistence PersistenceConfig `mapstructure:"persistence" yaml:"persistence"`
	Recovery    RecoveryConfig    `mapstructure:"recovery" yaml:"recovery"`
	Tracing     TracingConfig     `mapstructure:"tracing" yaml:"tracing"`
	Resilience  ResilienceConfig  `mapstructure:"resilience" yaml:"resilience"`
}

// Defaults returns the configuration matching forge.DefaultOptions, plus
// the ambient-stack defaults (logging, definitions) forge.Options does
// not itself cover.
func Defaults() Config {
	fo := forge.DefaultOptions()
	return Config{
		MaxConcurrentWorkflows:   fo.MaxConcurrentWorkflows,
		ContinueOnError:          fo.ContinueOnError,
		FailFastCompensation:     fo.FailFastCompensation,
		ThrowOnCompensationError: fo.ThrowOnCompensationError,
		EnableOutputChaining:     fo.EnableOutputChaining,

		Logging: LoggingConfig{Enabled: false, Path: ".workflowforge/forge.log", MinLevel: "info"},
		Definitions: DefinitionsConfig{
			Dir:       ".workflowforge/workflows",
			HotReload: false,
		},
		Timing: TimingConfig{Enabled: fo.Timing.Enabled, IncludeDetailedTimings: fo.Timing.IncludeDetailedTimings},
		Audit: AuditConfig{
			Enabled:           fo.Audit.Enabled,
			DetailLevel:       string(fo.Audit.DetailLevel),
			IncludeTimestamps: fo.Audit.IncludeTimestamps,
		},
		Validation: ValidationConfig{Enabled: fo.Validation.Enabled},
		Persistence: PersistenceConfig{
			Enabled:                    fo.Persistence.Enabled,
			DBPath:                     ".workflowforge/forge.db",
			PersistOnOperationComplete: fo.Persistence.PersistOnOperationComplete,
			PersistOnWorkflowComplete:  fo.Persistence.PersistOnWorkflowComplete,
			PersistOnFailure:           fo.Persistence.PersistOnFailure,
			MaxVersions:                fo.Persistence.MaxVersions,
		},
		Recovery: RecoveryConfig{
			Enabled:          fo.Recovery.Enabled,
			MaxRetryAttempts: fo.Recovery.MaxRetryAttempts,
			BaseDelaySeconds: fo.Recovery.BaseDelaySeconds,
		},
		Tracing: TracingConfig{
			Enabled:     fo.Tracing.Enabled,
			ServiceName: fo.Tracing.ServiceName,
			Exporter:    string(fo.Tracing.Exporter),
			SampleRate:  fo.Tracing.SampleRate,
		},
		Resilience: ResilienceConfig{
			Enabled:          fo.Resilience.Enabled,
			Strategy:         string(fo.Resilience.Strategy),
			MaxAttempts:      fo.Resilience.MaxAttempts,
			BaseDelaySeconds: fo.Resilience.BaseDelaySeconds,
			MaxDelaySeconds:  fo.Resilience.MaxDelaySeconds,
			Idempotency: IdempotencyConfig{
				Enabled:    fo.Resilience.Idempotency.Enabled,
				TTLSeconds: fo.Resilience.Idempotency.TTLSeconds,
			},
		},
	}
}

// ToForgeOptions translates c into a forge.Options snapshot.
func (c Config) ToForgeOptions() forge.Options {
	return forge.Options{
		MaxConcurrentWorkflows:   c.MaxConcurrentWorkflows,
		ContinueOnError:          c.ContinueOnError,
		FailFastCompensation:     c.FailFastCompensation,
		ThrowOnCompensationError: c.ThrowOnCompensationError,
		EnableOutputChaining:     c.EnableOutputChaining,
		Timing: forge.TimingOptions{
			Enabled:                c.Timing.Enabled,
			IncludeDetailedTimings: c.Timing.IncludeDetailedTimings,
		},
		Audit: forge.AuditOptions{
			Enabled:            c.Audit.Enabled,
			DetailLevel:        forge.AuditDetailLevel(c.Audit.DetailLevel),
			LogDataPayloads:    c.Audit.LogDataPayloads,
			IncludeTimestamps:  c.Audit.IncludeTimestamps,
			IncludeUserContext: c.Audit.IncludeUserContext,
		},
		Validation: forge.ValidationOptions{
			Enabled:                  c.Validation.Enabled,
			IgnoreValidationFailures: c.Validation.IgnoreValidationFailures,
			ThrowOnValidationError:   c.Validation.ThrowOnValidationError,
			LogValidationErrors:      c.Validation.LogValidationErrors,
			StoreValidationResults:   c.Validation.StoreValidationResults,
		},
		Persistence: forge.PersistenceOptions{
			Enabled:                    c.Persistence.Enabled,
			PersistOnOperationComplete: c.Persistence.PersistOnOperationComplete,
			PersistOnWorkflowComplete:  c.Persistence.PersistOnWorkflowComplete,
			PersistOnFailure:           c.Persistence.PersistOnFailure,
			MaxVersions:                c.Persistence.MaxVersions,
			InstanceID:                 c.Persistence.InstanceID,
			WorkflowKey:                c.Persistence.WorkflowKey,
		},
		Recovery: forge.RecoveryOptions{
			Enabled:               c.Recovery.Enabled,
			MaxRetryAttempts:      c.Recovery.MaxRetryAttempts,
			BaseDelaySeconds:      c.Recovery.BaseDelaySeconds,
			UseExponentialBackoff: c.Recovery.UseExponentialBackoff,
			AttemptResume:         c.Recovery.AttemptResume,
			LogRecoveryAttempts:   c.Recovery.LogRecoveryAttempts,
		},
		Tracing: forge.TracingOptions{
			Enabled:      c.Tracing.Enabled,
			ServiceName:  c.Tracing.ServiceName,
			Exporter:     forge.TracingExporter(c.Tracing.Exporter),
			OTLPEndpoint: c.Tracing.OTLPEndpoint,
			SampleRate:   c.Tracing.SampleRate,
		},
		Resilience: forge.ResilienceOptions{
			Enabled:          c.Resilience.Enabled,
			Strategy:         forge.ResilienceStrategyKind(c.Resilience.Strategy),
			MaxAttempts:      c.Resilience.MaxAttempts,
			BaseDelaySeconds: c.Resilience.BaseDelaySeconds,
			MaxDelaySeconds:  c.Resilience.MaxDelaySeconds,
			MinDelaySeconds:  c.Resilience.MinDelaySeconds,
			Jitter:           c.Resilience.Jitter,
			CircuitBreaker: forge.CircuitBreakerOptions{
				Enabled:                 c.Resilience.CircuitBreaker.Enabled,
				FailureThreshold:        c.Resilience.CircuitBreaker.FailureThreshold,
				MinimumThroughput:       c.Resilience.CircuitBreaker.MinimumThroughput,
				SamplingDurationSeconds: c.Resilience.CircuitBreaker.SamplingDurationSeconds,
				BreakDurationSeconds:    c.Resilience.CircuitBreaker.BreakDurationSeconds,
			},
			Idempotency: forge.IdempotencyOptions{
				Enabled:    c.Resilience.Idempotency.Enabled,
				TTLSeconds: c.Resilience.Idempotency.TTLSeconds,
			},
		},
	}
}

// Validate checks the ambient-stack fields config.go itself owns, then
// delegates domain-option validation to forge.Options.Validate.
func (c Config) Validate() []error {
	var errs []error
	if c.Logging.Enabled && c.Logging.Path == "" {
		errs = append(errs, fmt.Errorf("logging.path must be set when logging.enabled is true"))
	}
	if c.Persistence.Enabled && c.Persistence.DBPath == "" {
		errs = append(errs, fmt.Errorf("persistence.db_path must be set when persistence.enabled is true"))
	}
	errs = append(errs, c.ToForgeOptions().Validate()...)
	return errs
}
