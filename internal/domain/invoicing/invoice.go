package invoicing

import (
	"strings"
	"time"

	"github.com/billing/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceItem represents a billable line on an invoice
type InvoiceItem struct {
	ID          uuid.UUID
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// NewInvoiceItem creates a validated invoice line
func NewInvoiceItem(description string, quantity int, unitPrice decimal.Decimal) (*InvoiceItem, error) {
	item := &InvoiceItem{
		Description: strings.TrimSpace(description),
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// Validate checks the line's structural rules
func (i InvoiceItem) Validate() error {
	if strings.TrimSpace(i.Description) == "" {
		return shared.NewDomainError("INVALID_DESCRIPTION", "Item description cannot be empty")
	}
	if i.Quantity < 1 {
		return shared.NewDomainError("INVALID_QUANTITY", "Item quantity must be at least 1")
	}
	if i.UnitPrice.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}
	return nil
}

// LineTotal returns UnitPrice * Quantity
func (i InvoiceItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Invoice is the aggregate root of the invoicing context.
// It exclusively owns its items; Status is always derived from the
// financial facts by Derive and never set by a transition table.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber string
	CustomerName  string
	IssueDate     time.Time
	DueDate       *time.Time
	Status        PaymentStatus
	AmountPaid    decimal.Decimal
	Items         []InvoiceItem
}

// NewInvoice creates an unsaved invoice draft with status UNPAID
func NewInvoice(invoiceNumber, customerName string, issueDate time.Time, dueDate *time.Time, items ...InvoiceItem) (*Invoice, error) {
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if strings.TrimSpace(customerName) == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER_NAME", "Customer name cannot be empty")
	}
	if issueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_ISSUE_DATE", "Issue date is required")
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}

	inv := &Invoice{
		InvoiceNumber: invoiceNumber,
		CustomerName:  strings.TrimSpace(customerName),
		IssueDate:     CalendarDate(issueDate),
		Status:        PaymentStatusUnpaid,
		AmountPaid:    decimal.Zero,
		Items:         make([]InvoiceItem, 0, len(items)),
	}
	if dueDate != nil {
		d := CalendarDate(*dueDate)
		inv.DueDate = &d
	}
	inv.Items = append(inv.Items, items...)
	return inv, nil
}

// Subtotal returns the sum of all line totals; an invoice without items totals zero
func (inv *Invoice) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range inv.Items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// Total returns the invoice total. No taxes or discounts apply, so it equals Subtotal.
func (inv *Invoice) Total() decimal.Decimal {
	return inv.Subtotal()
}

// BalanceDue returns Total - AmountPaid. A negative value means overpayment.
func (inv *Invoice) BalanceDue() decimal.Decimal {
	return inv.Total().Sub(inv.AmountPaid)
}

// IsOverdue reports whether the invoice is unpaid past its due date as of today
func (inv *Invoice) IsOverdue(today time.Time) bool {
	if inv.Status.IsPaid() {
		return false
	}
	return isPastDue(inv.DueDate, today)
}

// Derive recomputes Status from the current facts and returns the previous status
func (inv *Invoice) Derive(today time.Time) PaymentStatus {
	previous := inv.Status
	inv.Status = DeriveStatus(inv.Total(), inv.AmountPaid, inv.DueDate, today)
	return previous
}

// ApplyPayment adds amount to AmountPaid and re-derives the status as of
// today. Events raised by the payment are stamped with now.
// Absent and negative amounts count as zero. It returns the amount applied.
func (inv *Invoice) ApplyPayment(amount *decimal.Decimal, today, now time.Time) decimal.Decimal {
	applied := NormalizeAmount(amount)
	inv.AmountPaid = inv.AmountPaid.Add(applied)
	previous := inv.Derive(today)

	inv.AddDomainEvent(NewPaymentRecordedEvent(inv, applied, now))
	if inv.Status.IsPaid() && !previous.IsPaid() {
		inv.AddDomainEvent(NewInvoicePaidEvent(inv, now))
	}
	return applied
}

// ReplaceWith overwrites every client-editable field with those of other,
// keeping identity, version, timestamps and the stored status until the
// next Derive. Items whose ID is not already owned by this invoice are
// treated as new lines.
func (inv *Invoice) ReplaceWith(other *Invoice) {
	owned := make(map[uuid.UUID]struct{}, len(inv.Items))
	for _, item := range inv.Items {
		owned[item.ID] = struct{}{}
	}

	items := make([]InvoiceItem, 0, len(other.Items))
	for _, item := range other.Items {
		if _, ok := owned[item.ID]; !ok {
			item.ID = uuid.Nil
		}
		items = append(items, item)
	}

	inv.InvoiceNumber = other.InvoiceNumber
	inv.CustomerName = other.CustomerName
	inv.IssueDate = other.IssueDate
	inv.DueDate = other.DueDate
	inv.AmountPaid = NormalizeAmount(&other.AmountPaid)
	inv.Items = items
}

// ItemCount returns the number of lines on the invoice
func (inv *Invoice) ItemCount() int {
	return len(inv.Items)
}
