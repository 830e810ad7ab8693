package forge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultOptionsValidate(t *testing.T) {
	require.Empty(t, DefaultOptions().Validate())
}

func TestValidateRejectsNegativeConcurrency(t *testing.T) {
	o := DefaultOptions()
	o.MaxConcurrentWorkflows = -1
	errs := o.Validate()
	require.Len(t, errs, 1)
}

func TestValidateRejectsConflictingValidationFlags(t *testing.T) {
	o := DefaultOptions()
	o.Validation.IgnoreValidationFailures = true
	o.Validation.ThrowOnValidationError = true
	require.NotEmpty(t, o.Validate())
}

func TestValidateRejectsOutOfRangeRecovery(t *testing.T) {
	o := DefaultOptions()
	o.Recovery.Enabled = true
	o.Recovery.MaxRetryAttempts = 0
	require.NotEmpty(t, o.Validate())

	o2 := DefaultOptions()
	o2.Recovery.Enabled = true
	o2.Recovery.MaxRetryAttempts = 3
	o2.Recovery.BaseDelaySeconds = -1
	require.NotEmpty(t, o2.Validate())
}

func TestValidateRejectsUnsupportedExporter(t *testing.T) {
	o := DefaultOptions()
	o.Tracing.Enabled = true
	o.Tracing.Exporter = "carrier-pigeon"
	require.NotEmpty(t, o.Validate())
}

func TestValidateRejectsUnsupportedResilienceStrategy(t *testing.T) {
	o := DefaultOptions()
	o.Resilience.Enabled = true
	o.Resilience.Strategy = "coin-flip"
	require.NotEmpty(t, o.Validate())
}

func TestValidateRejectsOutOfRangeResilienceMaxAttempts(t *testing.T) {
	o := DefaultOptions()
	o.Resilience.Enabled = true
	o.Resilience.MaxAttempts = 0
	require.NotEmpty(t, o.Validate())
}
