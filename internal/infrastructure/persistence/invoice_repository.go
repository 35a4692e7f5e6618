package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/domain/shared"
	"github.com/billing/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// FindByID finds an invoice by its ID, items included
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := preloadItems(r.db.WithContext(ctx)).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every invoice ordered by issue date, then invoice number
func (r *GormInvoiceRepository) FindAll(ctx context.Context) ([]invoicing.Invoice, error) {
	var rows []models.InvoiceModel
	if err := preloadItems(r.db.WithContext(ctx)).
		Order("issue_date ASC, invoice_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainInvoices(rows), nil
}

// FindOverdue returns invoices not PAID whose due date is strictly before referenceDate
func (r *GormInvoiceRepository) FindOverdue(ctx context.Context, referenceDate time.Time) ([]invoicing.Invoice, error) {
	var rows []models.InvoiceModel
	if err := preloadItems(r.db.WithContext(ctx)).
		Where("status <> ? AND due_date IS NOT NULL AND due_date < ?",
			invoicing.PaymentStatusPaid, invoicing.CalendarDate(referenceDate)).
		Order("due_date ASC, invoice_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainInvoices(rows), nil
}

// ExistsByInvoiceNumber checks whether an invoice other than excludeID uses the number
func (r *GormInvoiceRepository) ExistsByInvoiceNumber(ctx context.Context, invoiceNumber string, excludeID uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("invoice_number = ?", invoiceNumber)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save inserts a new invoice or replaces a stored one with a version check.
// On success the invoice carries its assigned IDs and new version.
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *invoicing.Invoice) error {
	if inv.IsNew() {
		return r.create(ctx, inv)
	}
	return r.update(ctx, inv)
}

func (r *GormInvoiceRepository) create(ctx context.Context, inv *invoicing.Invoice) error {
	now := r.now()
	id := uuid.New()
	itemIDs := assignItemIDs(inv.Items)

	model := models.InvoiceModelFromDomain(inv)
	model.ID = id
	model.Version = 1
	model.CreatedAt = now
	model.UpdatedAt = now
	for i := range model.Items {
		model.Items[i].ID = itemIDs[i]
		model.Items[i].InvoiceID = id
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if err != nil {
		return translateWriteError(err)
	}

	inv.ID = id
	inv.Version = 1
	inv.CreatedAt = now
	inv.UpdatedAt = now
	for i := range inv.Items {
		inv.Items[i].ID = itemIDs[i]
	}
	return nil
}

func (r *GormInvoiceRepository) update(ctx context.Context, inv *invoicing.Invoice) error {
	now := r.now()
	nextVersion := inv.Version + 1
	itemIDs := assignItemIDs(inv.Items)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.InvoiceModel{}).
			Where("id = ? AND version = ?", inv.ID, inv.Version).
			Updates(map[string]any{
				"invoice_number": inv.InvoiceNumber,
				"customer_name":  inv.CustomerName,
				"issue_date":     inv.IssueDate,
				"due_date":       inv.DueDate,
				"status":         inv.Status,
				"amount_paid":    inv.AmountPaid,
				"version":        nextVersion,
				"updated_at":     now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.InvoiceModel{}).Where("id = ?", inv.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.ErrNotFound
			}
			return shared.ErrConcurrencyConflict
		}

		if len(itemIDs) > 0 {
			if err := tx.Where("invoice_id = ? AND id NOT IN ?", inv.ID, itemIDs).
				Delete(&models.InvoiceItemModel{}).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Where("invoice_id = ?", inv.ID).
				Delete(&models.InvoiceItemModel{}).Error; err != nil {
				return err
			}
		}

		for i := range inv.Items {
			var item models.InvoiceItemModel
			item.FromDomain(inv.ID, i, &inv.Items[i])
			item.ID = itemIDs[i]
			if err := tx.Save(&item).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translateWriteError(err)
	}

	inv.Version = nextVersion
	inv.UpdatedAt = now
	for i := range inv.Items {
		inv.Items[i].ID = itemIDs[i]
	}
	return nil
}

// DeleteByID removes an invoice and its items
func (r *GormInvoiceRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItemModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.InvoiceModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// assignItemIDs returns the item IDs to persist, generating one for every new line
func assignItemIDs(items []invoicing.InvoiceItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		if item.ID == uuid.Nil {
			ids[i] = uuid.New()
		} else {
			ids[i] = item.ID
		}
	}
	return ids
}

func toDomainInvoices(rows []models.InvoiceModel) []invoicing.Invoice {
	invoices := make([]invoicing.Invoice, len(rows))
	for i := range rows {
		invoices[i] = *rows[i].ToDomain()
	}
	return invoices
}

// translateWriteError maps unique violations on invoice_number to ALREADY_EXISTS
func translateWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return shared.NewDomainError("ALREADY_EXISTS", "Invoice number already exists")
	}
	return err
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
