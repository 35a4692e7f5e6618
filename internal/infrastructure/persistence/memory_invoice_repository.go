package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InMemoryInvoiceRepository is a process-local InvoiceRepository.
// It honours the same version check and invoice number uniqueness as
// the GORM repository and hands out copies, never its own records.
type InMemoryInvoiceRepository struct {
	mu       sync.RWMutex
	invoices map[uuid.UUID]*invoicing.Invoice
	now      func() time.Time
}

// NewInMemoryInvoiceRepository creates an empty repository
func NewInMemoryInvoiceRepository() *InMemoryInvoiceRepository {
	return &InMemoryInvoiceRepository{
		invoices: make(map[uuid.UUID]*invoicing.Invoice),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Len returns the number of stored invoices
func (r *InMemoryInvoiceRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.invoices)
}

// Save inserts or replaces an invoice
func (r *InMemoryInvoiceRepository) Save(ctx context.Context, inv *invoicing.Invoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.numberTakenLocked(inv.InvoiceNumber, inv.ID) {
		return shared.NewDomainError("ALREADY_EXISTS", "Invoice number already exists")
	}

	now := r.now()
	if inv.IsNew() {
		inv.ID = uuid.New()
		inv.Version = 1
		inv.CreatedAt = now
	} else {
		stored, ok := r.invoices[inv.ID]
		if !ok {
			return shared.ErrNotFound
		}
		if stored.Version != inv.Version {
			return shared.ErrConcurrencyConflict
		}
		inv.Version++
		inv.CreatedAt = stored.CreatedAt
	}
	inv.UpdatedAt = now

	ids := assignItemIDs(inv.Items)
	for i := range inv.Items {
		inv.Items[i].ID = ids[i]
	}

	r.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

// FindByID returns a copy of the stored invoice
func (r *InMemoryInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cloneInvoice(inv), nil
}

// FindAll returns every invoice ordered by issue date, then invoice number
func (r *InMemoryInvoiceRepository) FindAll(ctx context.Context) ([]invoicing.Invoice, error) {
	return r.collect(ctx, func(*invoicing.Invoice) bool { return true }, byIssueDate)
}

// FindOverdue returns invoices not PAID whose due date is strictly before referenceDate
func (r *InMemoryInvoiceRepository) FindOverdue(ctx context.Context, referenceDate time.Time) ([]invoicing.Invoice, error) {
	ref := invoicing.CalendarDate(referenceDate)
	return r.collect(ctx, func(inv *invoicing.Invoice) bool {
		return inv.Status != invoicing.PaymentStatusPaid &&
			inv.DueDate != nil &&
			invoicing.CalendarDate(*inv.DueDate).Before(ref)
	}, byDueDate)
}

// DeleteByID removes the invoice
func (r *InMemoryInvoiceRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.invoices[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.invoices, id)
	return nil
}

// ExistsByInvoiceNumber checks whether an invoice other than excludeID uses the number
func (r *InMemoryInvoiceRepository) ExistsByInvoiceNumber(ctx context.Context, invoiceNumber string, excludeID uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.numberTakenLocked(invoiceNumber, excludeID), nil
}

func (r *InMemoryInvoiceRepository) numberTakenLocked(invoiceNumber string, excludeID uuid.UUID) bool {
	for id, inv := range r.invoices {
		if id != excludeID && inv.InvoiceNumber == invoiceNumber {
			return true
		}
	}
	return false
}

func (r *InMemoryInvoiceRepository) collect(ctx context.Context, keep func(*invoicing.Invoice) bool, less func(a, b *invoicing.Invoice) bool) ([]invoicing.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	matched := make([]*invoicing.Invoice, 0, len(r.invoices))
	for _, inv := range r.invoices {
		if keep(inv) {
			matched = append(matched, cloneInvoice(inv))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })

	result := make([]invoicing.Invoice, len(matched))
	for i, inv := range matched {
		result[i] = *inv
	}
	return result, nil
}

func byIssueDate(a, b *invoicing.Invoice) bool {
	if !a.IssueDate.Equal(b.IssueDate) {
		return a.IssueDate.Before(b.IssueDate)
	}
	return a.InvoiceNumber < b.InvoiceNumber
}

func byDueDate(a, b *invoicing.Invoice) bool {
	if !a.DueDate.Equal(*b.DueDate) {
		return a.DueDate.Before(*b.DueDate)
	}
	return a.InvoiceNumber < b.InvoiceNumber
}

// cloneInvoice copies the invoice without its pending domain events
func cloneInvoice(inv *invoicing.Invoice) *invoicing.Invoice {
	c := &invoicing.Invoice{
		InvoiceNumber: inv.InvoiceNumber,
		CustomerName:  inv.CustomerName,
		IssueDate:     inv.IssueDate,
		Status:        inv.Status,
		AmountPaid:    inv.AmountPaid,
		Items:         make([]invoicing.InvoiceItem, len(inv.Items)),
	}
	c.BaseEntity = inv.BaseEntity
	c.Version = inv.Version
	if inv.DueDate != nil {
		due := *inv.DueDate
		c.DueDate = &due
	}
	copy(c.Items, inv.Items)
	return c
}

// Ensure InMemoryInvoiceRepository implements InvoiceRepository
var _ invoicing.InvoiceRepository = (*InMemoryInvoiceRepository)(nil)
