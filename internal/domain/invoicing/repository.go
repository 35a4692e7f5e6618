package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InvoiceRepository is the persistence port for the Invoice aggregate
type InvoiceRepository interface {
	// Save inserts a new invoice (assigning IDs to it and its items) or
	// replaces a stored one, items included. Replacing checks Version and
	// fails with shared.ErrConcurrencyConflict when the row has moved on.
	Save(ctx context.Context, invoice *Invoice) error

	// FindByID returns shared.ErrNotFound if no invoice has the given ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindAll returns every invoice ordered by issue date, then invoice number
	FindAll(ctx context.Context) ([]Invoice, error)

	// DeleteByID removes the invoice and its items
	DeleteByID(ctx context.Context, id uuid.UUID) error

	// FindOverdue returns invoices not PAID whose due date is before referenceDate
	FindOverdue(ctx context.Context, referenceDate time.Time) ([]Invoice, error)

	// ExistsByInvoiceNumber checks whether another invoice uses the number
	ExistsByInvoiceNumber(ctx context.Context, invoiceNumber string, excludeID uuid.UUID) (bool, error)
}
