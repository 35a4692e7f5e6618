package invoicing

import (
	"context"
	"testing"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/infrastructure/event"
	"github.com/billing/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
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

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsHandler_RecordsBillingEvents(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader, zap.NewNop())
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })

	handler, err := NewMetricsHandler(mp.Meter("billing"))
	require.NoError(t, err)

	bus := event.NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(handler)
	require.NoError(t, bus.Start(ctx))
	t.Cleanup(func() { _ = bus.Stop(ctx) })

	svc, _ := newMemoryService(WithEventPublisher(bus))

	inv, err := svc.Create(ctx, newDraft(t, "INV-M1", dateOffset(10), item(t, "Hosting", 1, "100.00")))
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, inv.ID, decPtr("40"))
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, inv.ID, decPtr("60"))
	require.NoError(t, err)

	metrics := collectMetrics(t, reader)
	assert.Equal(t, int64(1), sumOf(t, metrics["billing_invoices_created_total"]))
	assert.Equal(t, int64(2), sumOf(t, metrics["billing_payments_recorded_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["billing_invoices_paid_total"]))

	amounts, ok := metrics["billing_payment_amount"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	var total float64
	for _, dp := range amounts.DataPoints {
		count += dp.Count
		total += dp.Sum
	}
	assert.Equal(t, uint64(2), count)
	assert.InDelta(t, 100.0, total, 1e-9)
}

func TestMetricsHandler_IgnoresOtherEvents(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader, zap.NewNop())

	handler, err := NewMetricsHandler(mp.Meter("billing"))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		invoicing.EventTypeInvoiceCreated,
		invoicing.EventTypePaymentRecorded,
		invoicing.EventTypeInvoicePaid,
	}, handler.EventTypes())

	inv := newDraft(t, "INV-M2", nil)
	require.NoError(t, handler.Handle(context.Background(), invoicing.NewInvoiceDeletedEvent(inv.ID, testNow)))
	assert.Empty(t, collectMetrics(t, reader))
}
