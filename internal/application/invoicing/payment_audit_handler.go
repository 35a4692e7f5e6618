package invoicing

import (
	"context"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// PaymentAuditHandler writes an audit log line for every payment and
// settlement. Payments are not stored individually, so this log is the
// only trail of the amounts that made up an invoice's paid total.
type PaymentAuditHandler struct {
	logger *zap.Logger
}

// NewPaymentAuditHandler creates a new PaymentAuditHandler
func NewPaymentAuditHandler(logger *zap.Logger) *PaymentAuditHandler {
	return &PaymentAuditHandler{logger: logger.Named("payment_audit")}
}

// EventTypes returns the event types this handler is interested in
func (h *PaymentAuditHandler) EventTypes() []string {
	return []string{invoicing.EventTypePaymentRecorded, invoicing.EventTypeInvoicePaid}
}

// Handle logs the payment event
func (h *PaymentAuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *invoicing.PaymentRecordedEvent:
		h.logger.Info("payment applied",
			zap.String("event_id", e.EventID().String()),
			zap.String("invoice_id", e.AggregateID().String()),
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("amount", e.Amount.StringFixed(2)),
			zap.String("amount_paid", e.AmountPaid.StringFixed(2)),
			zap.String("balance_due", e.BalanceDue.StringFixed(2)),
			zap.String("status", e.Status.String()),
		)
	case *invoicing.InvoicePaidEvent:
		h.logger.Info("invoice settled",
			zap.String("event_id", e.EventID().String()),
			zap.String("invoice_id", e.AggregateID().String()),
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("total", e.Total.StringFixed(2)),
		)
	default:
		h.logger.Debug("ignoring unexpected event", zap.String("event_type", event.EventType()))
	}
	return nil
}
