package tracing_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"go.pilab.hu/focusboard/tracing"
)

func TestInitTracerProvider_StdoutExport(t *testing.T) {
	var buf bytes.Buffer

	tp, err := tracing.InitTracerProvider(tracing.Options{
		ServiceName: "focusboard-test",
		Stdout:      true,
		Writer:      &buf,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "connect google")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "connect google")
	assert.Contains(t, buf.String(), "focusboard-test")
}

func TestInitTracerProvider_NoExporter(t *testing.T) {
	tp, err := tracing.InitTracerProvider(tracing.Options{})
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := otel.Tracer("test").Start(context.Background(), "login")
	defer span.End()

	assert.True(t, span.SpanContext().HasTraceID())
}
