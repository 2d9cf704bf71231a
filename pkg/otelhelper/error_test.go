package otelhelper_test

import (
	"context"
	"testing"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/dukex/autograph/pkg/otelhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetError_TagsKind(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, span := otelhelper.StartSpan(context.Background(), tracer, "validate", attribute.String(otelhelper.WorkflowIDKey, "wf-1"))
	otelhelper.SetError(span, apperr.New("Validate", apperr.KindSchemaValidation, "bad graph"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String(otelhelper.ErrorKindKey, string(apperr.KindSchemaValidation)))
	assert.Contains(t, spans[0].Attributes(), attribute.String(otelhelper.WorkflowIDKey, "wf-1"))
}

func TestNoopTracer(t *testing.T) {
	_, span := otelhelper.StartSpan(context.Background(), otelhelper.NoopTracer(), "noop")
	defer span.End()

	assert.False(t, span.IsRecording())
}
