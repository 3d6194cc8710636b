package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "event_type", Value: []byte("a")}}
	c := NewHeaderCarrier(&headers)

	assert.Equal(t, "a", c.Get("event_type"))
	assert.Empty(t, c.Get("missing"))

	c.Set("event_type", "b")
	c.Set("traceparent", "00-x")
	assert.Equal(t, "b", c.Get("event_type"))
	assert.Equal(t, []string{"event_type", "traceparent"}, c.Keys())
	assert.Len(t, headers, 2)
}

func TestInjectExtractTrace(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	var headers []kafka.Header
	injectTrace(trace.ContextWithSpanContext(context.Background(), sc), &headers)

	got := trace.SpanContextFromContext(extractTrace(context.Background(), headers))
	assert.Equal(t, traceID, got.TraceID())
	assert.Equal(t, spanID, got.SpanID())
	assert.True(t, got.IsRemote())
}

func TestExtractTrace_NoHeaders(t *testing.T) {
	got := trace.SpanContextFromContext(extractTrace(context.Background(), nil))
	assert.False(t, got.IsValid())
}
