package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/veilpii/veil/config"
)

func TestSetup(t *testing.T) {
	ctx := context.Background()
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	cfg := config.Defaults()
	shutdown, err := Setup(ctx, &cfg)
	require.NoError(t, err)
	assert.NoError(t, shutdown(ctx))
	assert.Equal(t, previous, otel.GetTracerProvider())

	cfg.Telemetry.Enabled = true
	cfg.Telemetry.OTLPEndpoint = "127.0.0.1:4318"
	cfg.Telemetry.Insecure = true
	shutdown, err = Setup(ctx, &cfg)
	require.NoError(t, err)
	assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())
	assert.NoError(t, shutdown(ctx))
}
