package models

import (
	"time"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber string                  `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoices_number"`
	CustomerName  string                  `gorm:"type:varchar(200);not null"`
	IssueDate     time.Time               `gorm:"type:date;not null"`
	DueDate       *time.Time              `gorm:"type:date;index:idx_invoices_status_due,priority:2"`
	Status        invoicing.PaymentStatus `gorm:"type:varchar(20);not null;default:'UNPAID';index:idx_invoices_status_due,priority:1"`
	AmountPaid    decimal.Decimal         `gorm:"type:decimal(18,4);not null;default:0"`
	Items         []InvoiceItemModel      `gorm:"foreignKey:InvoiceID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	inv := &invoicing.Invoice{
		BaseAggregateRoot: m.toRoot(),
		InvoiceNumber:     m.InvoiceNumber,
		CustomerName:      m.CustomerName,
		IssueDate:         invoicing.CalendarDate(m.IssueDate),
		Status:            m.Status,
		AmountPaid:        m.AmountPaid,
		Items:             make([]invoicing.InvoiceItem, len(m.Items)),
	}
	if m.DueDate != nil {
		due := invoicing.CalendarDate(*m.DueDate)
		inv.DueDate = &due
	}
	for i := range m.Items {
		inv.Items[i] = *m.Items[i].ToDomain()
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.fromRoot(inv.BaseAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.CustomerName = inv.CustomerName
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.Status = inv.Status
	m.AmountPaid = inv.AmountPaid
	m.Items = make([]InvoiceItemModel, len(inv.Items))
	for i := range inv.Items {
		m.Items[i].FromDomain(inv.ID, i, &inv.Items[i])
	}
}

// InvoiceModelFromDomain creates a new InvoiceModel from a domain Invoice
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceItemModel is the persistence model for an invoice line.
// Position keeps the insertion order of the lines.
type InvoiceItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position    int             `gorm:"not null;default:0"`
	Description string          `gorm:"type:varchar(500);not null"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceItem
func (m *InvoiceItemModel) ToDomain() *invoicing.InvoiceItem {
	return &invoicing.InvoiceItem{
		ID:          m.ID,
		Description: m.Description,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
	}
}

// FromDomain populates the persistence model from a domain InvoiceItem
func (m *InvoiceItemModel) FromDomain(invoiceID uuid.UUID, position int, item *invoicing.InvoiceItem) {
	m.ID = item.ID
	m.InvoiceID = invoiceID
	m.Position = position
	m.Description = item.Description
	m.Quantity = item.Quantity
	m.UnitPrice = item.UnitPrice
}

// AllModels returns every model managed by AutoMigrate
func AllModels() []any {
	return []any{
		&InvoiceModel{},
		&InvoiceItemModel{},
	}
}
