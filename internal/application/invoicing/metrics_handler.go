package invoicing

import (
	"context"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/domain/shared"
	"github.com/billing/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
)

// MetricsHandler turns billing events into OTel counters
type MetricsHandler struct {
	invoicesCreated  *telemetry.Counter
	paymentsRecorded *telemetry.Counter
	paymentAmount    *telemetry.Histogram
	invoicesPaid     *telemetry.Counter
}

// NewMetricsHandler registers the billing instruments on meter
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	created, err := telemetry.NewCounter(meter,
		"billing_invoices_created_total", "Number of invoices created", "{invoice}")
	if err != nil {
		return nil, err
	}
	recorded, err := telemetry.NewCounter(meter,
		"billing_payments_recorded_total", "Number of payments applied to invoices", "{payment}")
	if err != nil {
		return nil, err
	}
	amount, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "billing_payment_amount",
		Description: "Distribution of applied payment amounts",
		Unit:        "{currency}",
		Boundaries:  telemetry.PaymentAmountBuckets,
	})
	if err != nil {
		return nil, err
	}
	paid, err := telemetry.NewCounter(meter,
		"billing_invoices_paid_total", "Number of invoices settled in full", "{invoice}")
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		invoicesCreated:  created,
		paymentsRecorded: recorded,
		paymentAmount:    amount,
		invoicesPaid:     paid,
	}, nil
}

// EventTypes returns the event types this handler is interested in
func (h *MetricsHandler) EventTypes() []string {
	return []string{
		invoicing.EventTypeInvoiceCreated,
		invoicing.EventTypePaymentRecorded,
		invoicing.EventTypeInvoicePaid,
	}
}

// Handle records the event
func (h *MetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *invoicing.InvoiceCreatedEvent:
		h.invoicesCreated.Inc(ctx, telemetry.AttrPaymentStatus.String(e.Status.String()))
	case *invoicing.PaymentRecordedEvent:
		status := telemetry.AttrPaymentStatus.String(e.Status.String())
		h.paymentsRecorded.Inc(ctx, status)
		h.paymentAmount.Record(ctx, e.Amount.InexactFloat64(), status)
	case *invoicing.InvoicePaidEvent:
		h.invoicesPaid.Inc(ctx)
	}
	return nil
}
