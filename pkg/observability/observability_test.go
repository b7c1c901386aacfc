package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(DefaultTracingConfig())
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	assert.Empty(t, TraceFields(context.Background()))
}

func TestInitTracingExportsSpans(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Output = &out

	shutdown, err := InitTracing(cfg)
	require.NoError(t, err)

	ctx, span := otel.Tracer("test").Start(context.Background(), "gate.call")
	fields := TraceFields(ctx)
	span.End()

	require.Len(t, fields, 2)
	assert.Equal(t, "trace_id", fields[0].Key)

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), `"Name":"gate.call"`)
}
