package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func spanAttrs(span tracetest.SpanStub) map[string]string {
	out := make(map[string]string, len(span.Attributes))
	for _, a := range span.Attributes {
		out[string(a.Key)] = a.Value.Emit()
	}
	return out
}

func TestTraceQuery_Success(t *testing.T) {
	exporter := setupTestTracer(t)
	const stmt = "SELECT assortment_id, country_id FROM channels WHERE id = $1"

	_, end := TraceQuery(context.Background(), "GetMarket", stmt)
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.GetMarket", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)

	attrs := spanAttrs(spans[0])
	assert.Equal(t, "postgresql", attrs["db.system"])
	assert.Equal(t, "GetMarket", attrs["db.operation"])
	assert.Equal(t, stmt, attrs["db.statement"])
	assert.Equal(t, OutcomeOK, attrs["db.outcome"])
}

func TestTraceQuery_Error(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "ListPriceLists", "SELECT price_list_id FROM channel_price_lists")
	end(errors.New("connection refused"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.NotEmpty(t, spans[0].Events)
	assert.Equal(t, OutcomeError, spanAttrs(spans[0])["db.outcome"])
}

func TestTraceQuery_NoRowsIsNotAFailure(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "GetCurrency", "SELECT currency_id FROM countries WHERE id = $1")
	end(fmt.Errorf("get currency: %w", pgx.ErrNoRows))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Empty(t, spans[0].Events)
	assert.Equal(t, OutcomeNoRows, spanAttrs(spans[0])["db.outcome"])
}

func TestTraceQuery_ChildOfCallerSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx, parent := otel.Tracer("test").Start(context.Background(), "resolve market")
	_, end := TraceQuery(ctx, "GetMarket", "SELECT 1")
	end(nil)
	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

func TestTraceQuery_RecordsDuration(t *testing.T) {
	setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "DurationCheck", "SELECT 1")
	end(nil)

	var m dto.Metric
	require.NoError(t, QueryDuration.WithLabelValues("DurationCheck", OutcomeOK).(prometheus.Metric).Write(&m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
	assert.GreaterOrEqual(t, testutil.CollectAndCount(QueryDuration), 1)
}

func TestSlowQueryLogging(t *testing.T) {
	setupTestTracer(t)
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	SetSlowQueryLogging(time.Nanosecond, logger)
	_, end := TraceQuery(context.Background(), "ListPriceLists", "SELECT price_list_id FROM channel_price_lists")
	end(errors.New("statement timeout"))

	out := buf.String()
	assert.Contains(t, out, "slow query")
	assert.Contains(t, out, "ListPriceLists")
	assert.Contains(t, out, "statement timeout")

	buf.Reset()
	SetSlowQueryLogging(time.Hour, logger)
	_, end = TraceQuery(context.Background(), "GetMarket", "SELECT 1")
	end(nil)
	assert.Empty(t, buf.String())

	SetSlowQueryLogging(0, logger)
	_, end = TraceQuery(context.Background(), "GetMarket", "SELECT 1")
	end(nil)
	assert.Empty(t, buf.String())
}
