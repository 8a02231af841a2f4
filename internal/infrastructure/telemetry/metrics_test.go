package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/harshadelights/pricing/internal/infrastructure/config"
	"github.com/harshadelights/pricing/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

// newTestMeter returns a meter whose measurements can be collected from reader
func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byName := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func sumOf(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	want := attribute.NewSet(attrs...)
	var total int64
	for _, dp := range sum.DataPoints {
		if len(attrs) == 0 || dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}
	return total
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, config.TelemetryConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, config.TelemetryConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "pricing-engine-test",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, mp.IsEnabled())

	shutdownCtx, cancel := context.WithCancel(ctx)
	cancel()
	_ = mp.Shutdown(shutdownCtx)
}

func TestCounter(t *testing.T) {
	reader, provider := newTestMeter(t)
	counter, err := telemetry.NewCounter(provider.Meter("test"), "pricing.test_counter", "test", "{call}")
	require.NoError(t, err)

	ctx := context.Background()
	counter.Inc(ctx, telemetry.AttrRuleCode.String("PR-1"))
	counter.Add(ctx, 4, telemetry.AttrRuleCode.String("PR-1"))
	counter.Inc(ctx, telemetry.AttrRuleCode.String("PR-2"))

	m := collect(t, reader)["pricing.test_counter"]
	assert.Equal(t, int64(5), sumOf(t, m, telemetry.AttrRuleCode.String("PR-1")))
	assert.Equal(t, int64(6), sumOf(t, m))
}

func TestHistogram(t *testing.T) {
	reader, provider := newTestMeter(t)
	histogram, err := telemetry.NewHistogram(provider.Meter("test"), telemetry.HistogramOpts{
		Name:       "pricing.test_duration",
		Unit:       "s",
		Boundaries: telemetry.SmallDurationBuckets,
	})
	require.NoError(t, err)

	histogram.RecordDuration(context.Background(), 2*time.Millisecond)
	histogram.Record(context.Background(), 0.004)

	data, ok := collect(t, reader)["pricing.test_duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, uint64(2), data.DataPoints[0].Count)
	assert.InDelta(t, 0.006, data.DataPoints[0].Sum, 1e-9)
	assert.Equal(t, telemetry.SmallDurationBuckets, data.DataPoints[0].Bounds)
}
