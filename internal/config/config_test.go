package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsProducesValidConfig(t *testing.T) {
	cfg := Defaults()
	require.Empty(t, cfg.Validate())
}

func TestDefaultsMatchesForgeDefaultOptions(t *testing.T) {
	cfg := Defaults()
	fo := cfg.ToForgeOptions()
	require.Empty(t, fo.Validate())
	require.True(t, fo.EnableOutputChaining)
	require.True(t, fo.Timing.Enabled)
}

func TestValidateRejectsLoggingEnabledWithoutPath(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.Enabled = true
	cfg.Logging.Path = ""

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
}

func TestValidateRejectsPersistenceEnabledWithoutDBPath(t *testing.T) {
	cfg := Defaults()
	cfg.Persistence.Enabled = true
	cfg.Persistence.DBPath = ""

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
}

func TestValidateSurfacesForgeOptionsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.MaxConcurrentWorkflows = -1

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
}

func TestToForgeOptionsRoundTripsAllSections(t *testing.T) {
	cfg := Defaults()
	cfg.Audit.Enabled = true
	cfg.Audit.DetailLevel = "verbose"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "stdout"
	cfg.Recovery.Enabled = true
	cfg.Recovery.MaxRetryAttempts = 5

	fo := cfg.ToForgeOptions()
	require.True(t, fo.Audit.Enabled)
	require.EqualValues(t, "verbose", fo.Audit.DetailLevel)
	require.True(t, fo.Tracing.Enabled)
	require.EqualValues(t, "stdout", fo.Tracing.Exporter)
	require.Equal(t, 5, fo.Recovery.MaxRetryAttempts)
}

func TestToForgeOptionsRoundTripsResilience(t *testing.T) {
	cfg := Defaults()
	cfg.Resilience.Enabled = true
	cfg.Resilience.Strategy = "exponential"
	cfg.Resilience.MaxAttempts = 4
	cfg.Resilience.CircuitBreaker.Enabled = true
	cfg.Resilience.CircuitBreaker.FailureThreshold = 5
	cfg.Resilience.Idempotency.Enabled = true
	cfg.Resilience.Idempotency.TTLSeconds = 120

	fo := cfg.ToForgeOptions()
	require.Empty(t, fo.Validate())
	require.True(t, fo.Resilience.Enabled)
	require.EqualValues(t, "exponential", fo.Resilience.Strategy)
	require.Equal(t, 4, fo.Resilience.MaxAttempts)
	require.True(t, fo.Resilience.CircuitBreaker.Enabled)
	require.EqualValues(t, 5, fo.Resilience.CircuitBreaker.FailureThreshold)
	require.True(t, fo.Resilience.Idempotency.Enabled)
	require.Equal(t, 120.0, fo.Resilience.Idempotency.TTLSeconds)
}
