package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/billing/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

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

func TestNewMeterProvider_Disabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TelemetryConfig
	}{
		{"telemetry off", config.TelemetryConfig{Enabled: false, MetricsEnabled: true}},
		{"metrics off", config.TelemetryConfig{Enabled: true, MetricsEnabled: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp, err := NewMeterProvider(context.Background(), tt.cfg, zap.NewNop())
			require.NoError(t, err)
			assert.False(t, mp.IsEnabled())
			assert.NotNil(t, mp.Meter("test"))
			assert.NoError(t, mp.Shutdown(context.Background()))
		})
	}
}

func TestCounter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProviderWithReader(reader, zap.NewNop())
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	counter, err := NewCounter(mp.Meter("test"), "test_total", "Test counter", "{op}")
	require.NoError(t, err)

	ctx := context.Background()
	counter.Inc(ctx, AttrPaymentStatus.String("PAID"))
	counter.Add(ctx, 4, AttrPaymentStatus.String("PAID"))
	counter.Inc(ctx, AttrPaymentStatus.String("UNPAID"))

	m, ok := collect(t, reader)["test_total"]
	require.True(t, ok)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.True(t, sum.IsMonotonic)
	require.Len(t, sum.DataPoints, 2)

	totals := map[string]int64{}
	for _, dp := range sum.DataPoints {
		status, _ := dp.Attributes.Value(AttrPaymentStatus)
		totals[status.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"PAID": 5, "UNPAID": 1}, totals)
}

func TestHistogram(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProviderWithReader(reader, zap.NewNop())
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	hist, err := NewHistogram(mp.Meter("test"), HistogramOpts{
		Name:       "test_duration_seconds",
		Unit:       "s",
		Boundaries: HTTPDurationBuckets,
	})
	require.NoError(t, err)

	hist.RecordDuration(context.Background(), 30*time.Millisecond)
	hist.Record(context.Background(), 2)

	m := collect(t, reader)["test_duration_seconds"]
	data, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, uint64(2), data.DataPoints[0].Count)
	assert.InDelta(t, 2.03, data.DataPoints[0].Sum, 1e-9)
	assert.Equal(t, HTTPDurationBuckets, data.DataPoints[0].Bounds)
}
