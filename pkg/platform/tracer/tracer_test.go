package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNoop_ReturnsSameContext(t *testing.T) {
	ctx := context.Background()
	got, span := Noop{}.Start(ctx, "transition.apply", String("kind", "facilities"))
	assert.Equal(t, ctx, got)
	assert.NotPanics(t, func() { span.End(errors.New("ignored")) })
}

func TestOTel_StartAndEnd(t *testing.T) {
	tr := NewOTel("civicportal/test", noop.NewTracerProvider().Tracer("test"))
	_, span := tr.Start(context.Background(), "transition.apply", Int64("record_id", 42))
	span.SetAttributes(Bool("allowed", true))
	span.AddEvent("invalidated")
	assert.NotPanics(t, func() { span.End(nil) })
}

func TestConvert_DropsUnsupportedValues(t *testing.T) {
	got := convert([]Attribute{
		String("kind", "facilities"),
		Int64("record_id", 7),
		{Key: "unsupported", Value: struct{}{}},
	})
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("kind", "facilities"),
		attribute.Int64("record_id", 7),
	}, got)
}
