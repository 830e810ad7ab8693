package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderDisabledReturnsNoopTracer(t *testing.T) {
	p, err := NewProvider(Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Tracer())

	_, span := p.Tracer().Start(context.Background(), "op")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderStdoutExporter(t *testing.T) {
	p, err := NewProvider(Config{
		Enabled:     true,
		ServiceName: "test-service",
		Exporter:    "stdout",
		SampleRate:  1.0,
	})
	require.NoError(t, err)
	assert.True(t, p.Enabled())
	assert.NotNil(t, p.Tracer())

	_, span := p.Tracer().Start(context.Background(), "op")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderNoneExporterWhenEnabled(t *testing.T) {
	p, err := NewProvider(Config{Enabled: true, Exporter: "none"})
	require.NoError(t, err)
	assert.True(t, p.Enabled())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderUnsupportedExporterErrors(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, Exporter: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestDefaultConfigIsDisabled(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "workflowforge", cfg.ServiceName)
}
