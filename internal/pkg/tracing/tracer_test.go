package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerProvider_WithoutEndpoint(t *testing.T) {
	tp, err := InitTracerProvider("promotion-test", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	assert.Empty(t, GetTraceIDFromContext(context.Background()))

	ctx, span := tp.Tracer("test").Start(context.Background(), "evaluate")
	defer span.End()
	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceIDFromContext(ctx))
	assert.Len(t, GetTraceIDFromContext(ctx), 32)
}
