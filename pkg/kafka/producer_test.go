package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestNewEvent(t *testing.T) {
	type performed struct {
		Text  string `json:"text"`
		Total int64  `json:"total"`
	}

	e, err := NewEvent("litium.search.performed", "channel-1", performed{Text: "boots", Total: 42},
		WithSource("search-service"),
		WithAggregateType("channel"),
		WithCorrelationID("corr-1"),
		WithMetadata("culture", "sv-SE"),
		WithMetadata("page_type", ""),
	)
	require.NoError(t, err)

	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, "litium.search.performed", e.EventType)
	assert.Equal(t, "channel-1", e.AggregateID)
	assert.Equal(t, "channel", e.AggregateType)
	assert.Equal(t, "search-service", e.Source)
	assert.Equal(t, "corr-1", e.CorrelationID)
	assert.Equal(t, EventVersion, e.Version)
	assert.Equal(t, map[string]string{"culture": "sv-SE"}, e.Metadata)
	assert.WithinDuration(t, time.Now(), e.Timestamp, 2*time.Second)
	assert.JSONEq(t, `{"text":"boots","total":42}`, string(e.Data))
}

func TestNewEvent_UnencodableData(t *testing.T) {
	_, err := NewEvent("litium.search.performed", "channel-1", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "litium.search.performed")
}

func TestEvent_Decode(t *testing.T) {
	e, err := NewEvent("litium.fielddefinition.deleted", "color", map[string]string{"id": "color"})
	require.NoError(t, err)

	var data struct{ ID string }
	require.NoError(t, e.Decode(&data))
	assert.Equal(t, "color", data.ID)

	var wrong []int
	assert.ErrorIs(t, e.Decode(&wrong), ErrMalformedEvent)
	assert.ErrorIs(t, (&Event{EventType: "x"}).Decode(&data), ErrMalformedEvent)
}

func TestDecodeEvent(t *testing.T) {
	e, err := NewEvent("litium.productdocument.removed", "doc-9", map[string]string{"id": "doc-9"}, WithSource("pim"))
	require.NoError(t, err)
	value, err := e.Marshal()
	require.NoError(t, err)

	got, err := DecodeEvent(value)
	require.NoError(t, err)
	assert.Equal(t, e.EventID, got.EventID)
	assert.Equal(t, "pim", got.Source)

	for _, bad := range []string{"", "{", `{"data":{}}`, `{"event_type":"a","version":99}`} {
		_, err := DecodeEvent([]byte(bad))
		assert.ErrorIs(t, err, ErrMalformedEvent, "value %q", bad)
	}
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"broker1:9092", "broker2:9092"})

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async)
}

func TestProducer_Publish(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	w := &fakeWriter{}
	p := &Producer{writer: w, logger: discardLogger()}
	topic := "litium.search.performed.publish-test"

	e, err := NewEvent(topic, "channel-1", map[string]int{"total": 3}, WithSource("search-service"), WithCorrelationID("corr-7"))
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, topic, e))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, topic, msg.Topic)
	assert.Equal(t, "channel-1", string(msg.Key))
	assert.Equal(t, e.EventID, header(msg, HeaderEventID))
	assert.Equal(t, topic, header(msg, HeaderEventType))
	assert.Equal(t, "search-service", header(msg, HeaderSource))
	assert.Equal(t, "corr-7", header(msg, HeaderCorrelationID))
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", header(msg, "traceparent"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, e.EventID, body["event_id"])
	assert.Equal(t, 1.0, testutil.ToFloat64(producerMessages.WithLabelValues(topic, outcomePublished)))
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &Producer{writer: w, logger: discardLogger()}
	topic := "litium.search.performed.error-test"

	e, err := NewEvent(topic, "channel-1", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), topic, e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.Equal(t, 1.0, testutil.ToFloat64(producerMessages.WithLabelValues(topic, outcomeError)))
	assert.Zero(t, testutil.ToFloat64(producerMessages.WithLabelValues(topic, outcomePublished)))
}

func TestNewProducer_DoesNotConnect(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	for _, brokers := range [][]string{nil, {}} {
		err := PingBrokers(t.Context(), brokers)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no brokers configured")
	}
}
