package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/harshadelights/pricing/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "pricing_rule", "apply",
		telemetry.WithAttribute(telemetry.SpanAttrRuleCode, "PR-1"),
		telemetry.WithAttribute(telemetry.SpanAttrQty, decimal.RequireFromString("12.5")),
		telemetry.WithSpanKind(trace.SpanKindServer),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "pricing_rule.apply", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	assert.Equal(t, telemetry.TracerName, spans[0].InstrumentationScope().Name)

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "PR-1", attrs[telemetry.SpanAttrRuleCode].AsString())
	assert.Equal(t, "12.5", attrs[telemetry.SpanAttrQty].AsString())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "pricing_rule.evaluate")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrApplicable, true,
		telemetry.SpanAttrCandidates, 3,
		42, "non-string key is skipped",
		"dangling",
	)
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Len(t, attrs, 2)
	assert.True(t, attrs[telemetry.SpanAttrApplicable].AsBool())
	assert.Equal(t, int64(3), attrs[telemetry.SpanAttrCandidates].AsInt64())
}

func TestAddEventAndRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "pricing_rule.apply")
	telemetry.AddEvent(span, "coupon_exhausted", "usage_limit", 10)
	telemetry.RecordError(span, errors.New("version conflict"))
	telemetry.RecordError(span, nil)
	span.End()

	ended := sr.Ended()[0]
	assert.Equal(t, codes.Error, ended.Status().Code)
	assert.Equal(t, "version conflict", ended.Status().Description)

	names := make([]string, 0, len(ended.Events()))
	for _, e := range ended.Events() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"coupon_exhausted", "exception"}, names)
}

func TestSpanHelpers_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.AddEvent(nil, "event")
		telemetry.RecordError(nil, errors.New("ignored"))
	})
}
