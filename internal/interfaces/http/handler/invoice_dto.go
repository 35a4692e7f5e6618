package handler

import (
	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceItemRequest is one invoice line in a create or update payload
// @Description Invoice line
type InvoiceItemRequest struct {
	ID          string           `json:"id" binding:"omitempty,uuid" example:"4b8a1d7e-2f3c-4e5a-9b6c-7d8e9f0a1b2c"`
	Description string           `json:"description" binding:"required,notblank,max=255" example:"Consulting hours"`
	Quantity    int              `json:"quantity" binding:"required,min=1" example:"2"`
	UnitPrice   *decimal.Decimal `json:"unit_price" binding:"required,gte=0" swaggertype:"string" example:"10.00"`
}

// InvoiceRequest is the full invoice payload used by both create and update.
// Status is never accepted; it is derived.
// @Description Invoice payload
type InvoiceRequest struct {
	InvoiceNumber string               `json:"invoice_number" binding:"required,notblank,max=50" example:"INV-2024-001"`
	CustomerName  string               `json:"customer_name" binding:"required,notblank,max=200" example:"Acme Corp"`
	IssueDate     string               `json:"issue_date" binding:"required,datetime=2006-01-02" example:"2024-01-15"`
	DueDate       string               `json:"due_date" binding:"required,datetime=2006-01-02" example:"2024-02-14"`
	AmountPaid    *decimal.Decimal     `json:"amount_paid" swaggertype:"string" example:"0.00"`
	Items         []InvoiceItemRequest `json:"items" binding:"dive"`
}

// PaymentRequest records a payment against an invoice
// @Description Payment payload
type PaymentRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required" swaggertype:"string" example:"20.00"`
}

// toInvoice builds an unsaved invoice from the payload
func (r InvoiceRequest) toInvoice() (*invoicing.Invoice, error) {
	issueDate, err := invoicing.ParseDate(r.IssueDate)
	if err != nil {
		return nil, err
	}
	dueDate, err := invoicing.ParseDate(r.DueDate)
	if err != nil {
		return nil, err
	}

	items := make([]invoicing.InvoiceItem, 0, len(r.Items))
	for _, line := range r.Items {
		item, err := invoicing.NewInvoiceItem(line.Description, line.Quantity, *line.UnitPrice)
		if err != nil {
			return nil, err
		}
		if line.ID != "" {
			item.ID = uuid.MustParse(line.ID)
		}
		items = append(items, *item)
	}

	inv, err := invoicing.NewInvoice(r.InvoiceNumber, r.CustomerName, issueDate, &dueDate, items...)
	if err != nil {
		return nil, err
	}
	inv.AmountPaid = invoicing.NormalizeAmount(r.AmountPaid)
	return inv, nil
}
