package telemetry_test

import (
	"context"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/harshadelights/pricing/internal/infrastructure/config"
	"github.com/harshadelights/pricing/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewProfiler_Disabled(t *testing.T) {
	cfg := telemetry.ProfilerConfig{
		Enabled:         false,
		ServerAddress:   "http://localhost:4040",
		ApplicationName: "pricing-engine-test",
	}

	profiler, err := telemetry.NewProfiler(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, profiler)

	assert.False(t, profiler.IsEnabled())
	assert.NoError(t, profiler.Stop())
	assert.NoError(t, profiler.Stop())
}

func TestNewProfiler_RequiresServerAndApplication(t *testing.T) {
	tests := []struct {
		name    string
		cfg     telemetry.ProfilerConfig
		wantErr string
	}{
		{
			name:    "missing server address",
			cfg:     telemetry.ProfilerConfig{Enabled: true, ApplicationName: "pricing-engine-test"},
			wantErr: "server address is required",
		},
		{
			name:    "missing application name",
			cfg:     telemetry.ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"},
			wantErr: "application name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiler, err := telemetry.NewProfiler(tt.cfg, zaptest.NewLogger(t))
			require.Error(t, err)
			assert.Nil(t, profiler)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProfilerConfigFrom(t *testing.T) {
	cfg := telemetry.ProfilerConfigFrom(config.TelemetryConfig{
		ServiceName:            "pricing-engine",
		ProfilingEnabled:       true,
		ProfilingServerAddress: "http://pyroscope:4040",
		ProfilingBasicAuthUser: "grafana",
		ProfilingBasicAuthPass: "secret",
	})

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "http://pyroscope:4040", cfg.ServerAddress)
	assert.Equal(t, "pricing-engine", cfg.ApplicationName)
	assert.Equal(t, "grafana", cfg.BasicAuthUser)
	assert.Equal(t, "secret", cfg.BasicAuthPassword)
	assert.Contains(t, cfg.ProfileTypes, pyroscope.ProfileCPU)
	assert.Contains(t, cfg.ProfileTypes, pyroscope.ProfileAllocSpace)
	assert.Equal(t, telemetry.ServiceVersion, cfg.Tags["service_version"])

	assert.False(t, telemetry.ProfilerConfigFrom(config.TelemetryConfig{}).Enabled)
}

func TestNewProfiler_EnabledIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// The client pushes in the background, so no server is needed to start it
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         true,
		ServerAddress:   "http://localhost:14040",
		ApplicationName: "pricing-engine-test",
		ProfileTypes:    []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileMutexCount},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, profiler.IsEnabled())
	_ = profiler.Stop()
	assert.NoError(t, profiler.Stop())
}

func TestTracerProvider_EnableSpanProfiles(t *testing.T) {
	ctx := context.Background()

	t.Run("no-op when tracing is disabled", func(t *testing.T) {
		tp, err := telemetry.NewTracerProvider(ctx, config.TelemetryConfig{ServiceName: "pricing-engine-test"}, zaptest.NewLogger(t))
		require.NoError(t, err)

		tp.EnableSpanProfiles()
		assert.False(t, tp.IsSpanProfilesEnabled())
	})

	t.Run("wraps the provider when tracing is enabled", func(t *testing.T) {
		tp, err := telemetry.NewTracerProvider(ctx, config.TelemetryConfig{
			Enabled:           true,
			CollectorEndpoint: "localhost:14317",
			SamplingRatio:     1.0,
			ServiceName:       "pricing-engine-test",
			Insecure:          true,
		}, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer func() {
			shutdownCtx, cancel := context.WithCancel(ctx)
			cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()

		tp.EnableSpanProfiles()
		tp.EnableSpanProfiles()
		assert.True(t, tp.IsSpanProfilesEnabled())

		_, span := tp.Tracer("test").Start(ctx, "pricing_rule.quote")
		assert.True(t, span.SpanContext().IsValid())
		span.End()
	})
}
