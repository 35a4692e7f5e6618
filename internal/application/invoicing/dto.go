package invoicing

import (
	"time"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceItemResponse represents an invoice line in API responses
type InvoiceItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// InvoiceResponse represents an invoice with its derived amounts
type InvoiceResponse struct {
	ID            uuid.UUID             `json:"id"`
	InvoiceNumber string                `json:"invoice_number"`
	CustomerName  string                `json:"customer_name"`
	IssueDate     string                `json:"issue_date"`
	DueDate       *string               `json:"due_date"`
	Status        string                `json:"status"`
	AmountPaid    decimal.Decimal       `json:"amount_paid"`
	Subtotal      decimal.Decimal       `json:"subtotal"`
	Total         decimal.Decimal       `json:"total"`
	BalanceDue    decimal.Decimal       `json:"balance_due"`
	Overdue       bool                  `json:"overdue"`
	Items         []InvoiceItemResponse `json:"items"`
	Version       int                   `json:"version"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// SummaryResponse represents aggregate invoice figures
type SummaryResponse struct {
	AsOf             string          `json:"as_of"`
	TotalInvoices    int             `json:"total_invoices"`
	PaidCount        int             `json:"paid_count"`
	UnpaidCount      int             `json:"unpaid_count"`
	OverdueCount     int             `json:"overdue_count"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
}

// ToInvoiceResponse converts an invoice to its response form, evaluating
// the overdue flag as of today
func ToInvoiceResponse(inv *invoicing.Invoice, today time.Time) InvoiceResponse {
	items := make([]InvoiceItemResponse, len(inv.Items))
	for i, item := range inv.Items {
		items[i] = InvoiceItemResponse{
			ID:          item.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal(),
		}
	}

	resp := InvoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerName:  inv.CustomerName,
		IssueDate:     inv.IssueDate.Format(invoicing.DateLayout),
		Status:        inv.Status.String(),
		AmountPaid:    inv.AmountPaid,
		Subtotal:      inv.Subtotal(),
		Total:         inv.Total(),
		BalanceDue:    inv.BalanceDue(),
		Overdue:       inv.IsOverdue(today),
		Items:         items,
		Version:       inv.Version,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
	if inv.DueDate != nil {
		due := inv.DueDate.Format(invoicing.DateLayout)
		resp.DueDate = &due
	}
	return resp
}

// ToInvoiceResponses converts a list of invoices
func ToInvoiceResponses(invoices []invoicing.Invoice, today time.Time) []InvoiceResponse {
	responses := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		responses[i] = ToInvoiceResponse(&invoices[i], today)
	}
	return responses
}

// ToSummaryResponse converts a summary computed as of asOf
func ToSummaryResponse(s invoicing.Summary, asOf time.Time) SummaryResponse {
	return SummaryResponse{
		AsOf:             asOf.Format(invoicing.DateLayout),
		TotalInvoices:    s.TotalInvoices,
		PaidCount:        s.PaidCount,
		UnpaidCount:      s.UnpaidCount,
		OverdueCount:     s.OverdueCount,
		TotalOutstanding: s.TotalOutstanding,
		TotalPaid:        s.TotalPaid,
	}
}
