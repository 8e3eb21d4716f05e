package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpan_AttributesAndError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() { Tracer = prev })

	span, _ := StartSpan(context.Background(), "idea.transition", attribute.Int64("idea.id", 7))
	span.AddAttributes(attribute.String("idea.to", "deleted"))
	span.End(errors.New("boom"))

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "idea.transition", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.Int64("idea.id", 7))
	assert.Contains(t, ended[0].Attributes(), attribute.String("idea.to", "deleted"))
	assert.Equal(t, codes.Error, ended[0].Status().Code)
}
