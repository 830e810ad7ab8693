package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	viperlib "github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/forgeworks/workflowforge/internal/log"
)

// configDelimiter uses "::" instead of "." so dotted identifiers (e.g.
// workflow keys containing ".") survive as literal map keys instead of
// being read as nested paths.
const configDelimiter = "::"

// Loader resolves a Config from a file, environment variables, and
// CLI flags, in that order of increasing precedence.
type Loader struct {
	v *viperlib.Viper
}

// NewLoader builds a Loader with workflowforge's defaults seeded in.
func NewLoader() *Loader {
	v := viperlib.NewWithOptions(viperlib.KeyDelimiter(configDelimiter))
	seedDefaults(v, Defaults())
	v.SetEnvPrefix("WORKFLOWFORGE")
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Viper exposes the underlying instance so a CLI layer can bind flags to
// it before calling Load.
func (l *Loader) Viper() *viperlib.Viper { return l.v }

// Load reads configuration from cfgFile if non-empty, otherwise searches
// ./.workflowforge/config.yaml then ~/.config/workflowforge/config.yaml,
// writing a fresh default file at ./.workflowforge/config.yaml if none is
// found anywhere.
func (l *Loader) Load(cfgFile string) (Config, error) {
	if cfgFile != "" {
		l.v.SetConfigFile(cfgFile)
	} else if _, err := os.Stat(".workflowforge/config.yaml"); err == nil {
		l.v.SetConfigFile(".workflowforge/config.yaml")
	} else {
		home, _ := os.UserHomeDir()
		l.v.AddConfigPath(filepath.Join(home, ".config", "workflowforge"))
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
	}

	var cfg Config
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viperlib.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("config: reading config: %w", err)
		}
		defaultPath := ".workflowforge/config.yaml"
		if writeErr := WriteDefaultConfig(defaultPath); writeErr == nil {
			l.v.SetConfigFile(defaultPath)
			_ = l.v.ReadInConfig()
		}
	} else {
		log.Info(log.CatConfig, "config loaded", "path", l.v.ConfigFileUsed())
	}

	if err := l.v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshaling: %w", err)
	}
	return cfg, nil
}

func seedDefaults(v *viperlib.Viper, d Config) {
	v.SetDefault("max_concurrent_workflows", d.MaxConcurrentWorkflows)
	v.SetDefault("continue_on_error", d.ContinueOnError)
	v.SetDefault("fail_fast_compensation", d.FailFastCompensation)
	v.SetDefault("throw_on_compensation_error", d.ThrowOnCompensationError)
	v.SetDefault("enable_output_chaining", d.EnableOutputChaining)

	v.SetDefault("logging::enabled", d.Logging.Enabled)
	v.SetDefault("logging::path", d.Logging.Path)
	v.SetDefault("logging::min_level", d.Logging.MinLevel)

	v.SetDefault("definitions::dir", d.Definitions.Dir)
	v.SetDefault("definitions::hot_reload", d.Definitions.HotReload)

	v.SetDefault("timing::enabled", d.Timing.Enabled)
	v.SetDefault("timing::include_detailed_timings", d.Timing.IncludeDetailedTimings)

	v.SetDefault("audit::enabled", d.Audit.Enabled)
	v.SetDefault("audit::detail_level", d.Audit.DetailLevel)
	v.SetDefault("audit::include_timestamps", d.Audit.IncludeTimestamps)

	v.SetDefault("validation::enabled", d.Validation.Enabled)

	v.SetDefault("persistence::enabled", d.Persistence.Enabled)
	v.SetDefault("persistence::db_path", d.Persistence.DBPath)
	v.SetDefault("persistence::persist_on_operation_complete", d.Persistence.PersistOnOperationComplete)
	v.SetDefault("persistence::persist_on_workflow_complete", d.Persistence.PersistOnWorkflowComplete)
	v.SetDefault("persistence::persist_on_failure", d.Persistence.PersistOnFailure)
	v.SetDefault("persistence::max_versions", d.Persistence.MaxVersions)

	v.SetDefault("recovery::enabled", d.Recovery.Enabled)
	v.SetDefault("recovery::max_retry_attempts", d.Recovery.MaxRetryAttempts)
	v.SetDefault("recovery::base_delay_seconds", d.Recovery.BaseDelaySeconds)

	v.SetDefault("tracing::enabled", d.Tracing.Enabled)
	v.SetDefault("tracing::service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing::exporter", d.Tracing.Exporter)
	v.SetDefault("tracing::sample_rate", d.Tracing.SampleRate)

	v.SetDefault("resilience::enabled", d.Resilience.Enabled)
	v.SetDefault("resilience::strategy", d.Resilience.Strategy)
	v.SetDefault("resilience::max_attempts", d.Resilience.MaxAttempts)
	v.SetDefault("resilience::base_delay_seconds", d.Resilience.BaseDelaySeconds)
	v.SetDefault("resilience::max_delay_seconds", d.Resilience.MaxDelaySeconds)
	v.SetDefault("resilience::min_delay_seconds", d.Resilience.MinDelaySeconds)
	v.SetDefault("resilience::jitter", d.Resilience.Jitter)
	v.SetDefault("resilience::circuit_breaker::enabled", d.Resilience.CircuitBreaker.Enabled)
	v.SetDefault("resilience::circuit_breaker::failure_threshold", d.Resilience.CircuitBreaker.FailureThreshold)
	v.SetDefault("resilience::circuit_breaker::minimum_throughput", d.Resilience.CircuitBreaker.MinimumThroughput)
	v.SetDefault("resilience::circuit_breaker::sampling_duration_seconds", d.Resilience.CircuitBreaker.SamplingDurationSeconds)
	v.SetDefault("resilience::circuit_breaker::break_duration_seconds", d.Resilience.CircuitBreaker.BreakDurationSeconds)
	v.SetDefault("resilience::idempotency::enabled", d.Resilience.Idempotency.Enabled)
	v.SetDefault("resilience::idempotency::ttl_seconds", d.Resilience.Idempotency.TTLSeconds)
}

// WriteDefaultConfig writes a YAML-serialized Defaults() to configPath,
// creating its parent directory if needed.
func WriteDefaultConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("config: creating config directory: %w", err)
	}

	out, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("config: marshaling defaults: %w", err)
	}
	if err := os.WriteFile(configPath, out, 0o600); err != nil {
		return fmt.Errorf("config: writing config file: %w", err)
	}

	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
