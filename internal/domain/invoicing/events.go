package invoicing

import (
	"time"

	"github.com/billing/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeInvoice = "Invoice"

// Event type constants
const (
	EventTypeInvoiceCreated  = "InvoiceCreated"
	EventTypeInvoiceUpdated  = "InvoiceUpdated"
	EventTypePaymentRecorded = "PaymentRecorded"
	EventTypeInvoicePaid     = "InvoicePaid"
	EventTypeInvoiceDeleted  = "InvoiceDeleted"
)

// InvoiceCreatedEvent is raised after a new invoice is persisted
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	CustomerName  string          `json:"customer_name"`
	Total         decimal.Decimal `json:"total"`
	Status        PaymentStatus   `json:"status"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice, occurredAt time.Time) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID, occurredAt),
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerName:    inv.CustomerName,
		Total:           inv.Total(),
		Status:          inv.Status,
	}
}

// InvoiceUpdatedEvent is raised after an invoice is replaced
type InvoiceUpdatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber  string        `json:"invoice_number"`
	PreviousStatus PaymentStatus `json:"previous_status"`
	Status         PaymentStatus `json:"status"`
}

// NewInvoiceUpdatedEvent creates a new InvoiceUpdatedEvent
func NewInvoiceUpdatedEvent(inv *Invoice, previous PaymentStatus, occurredAt time.Time) *InvoiceUpdatedEvent {
	return &InvoiceUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceUpdated, AggregateTypeInvoice, inv.ID, occurredAt),
		InvoiceNumber:   inv.InvoiceNumber,
		PreviousStatus:  previous,
		Status:          inv.Status,
	}
}

// PaymentRecordedEvent is raised when a payment is added to an invoice
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
	Status        PaymentStatus   `json:"status"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(inv *Invoice, amount decimal.Decimal, occurredAt time.Time) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypeInvoice, inv.ID, occurredAt),
		InvoiceNumber:   inv.InvoiceNumber,
		Amount:          amount,
		AmountPaid:      inv.AmountPaid,
		BalanceDue:      inv.BalanceDue(),
		Status:          inv.Status,
	}
}

// InvoicePaidEvent is raised when a payment settles the invoice in full
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice, occurredAt time.Time) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaid, AggregateTypeInvoice, inv.ID, occurredAt),
		InvoiceNumber:   inv.InvoiceNumber,
		Total:           inv.Total(),
		AmountPaid:      inv.AmountPaid,
	}
}

// InvoiceDeletedEvent is raised after an invoice is removed
type InvoiceDeletedEvent struct {
	shared.BaseDomainEvent
}

// NewInvoiceDeletedEvent creates a new InvoiceDeletedEvent
func NewInvoiceDeletedEvent(id uuid.UUID, occurredAt time.Time) *InvoiceDeletedEvent {
	return &InvoiceDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceDeleted, AggregateTypeInvoice, id, occurredAt),
	}
}
