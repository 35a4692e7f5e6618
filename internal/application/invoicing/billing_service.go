package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/domain/shared"
	applog "github.com/billing/backend/internal/infrastructure/logger"
	"github.com/billing/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultPaymentRetryAttempts = 3

// BillingService orchestrates the invoice lifecycle. Every mutation that
// can change the financial facts of an invoice re-derives its status
// before the invoice is persisted.
type BillingService struct {
	repo           invoicing.InvoiceRepository
	eventPublisher shared.EventPublisher
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	clock          invoicing.Clock
	location       *time.Location
	retryAttempts  int
	logger         *zap.Logger
}

// Option configures a BillingService
type Option func(*BillingService)

// WithClock overrides the clock used to decide what "today" is
func WithClock(clock invoicing.Clock) Option {
	return func(s *BillingService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLocation sets the time zone in which "today" is evaluated
func WithLocation(loc *time.Location) Option {
	return func(s *BillingService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *BillingService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventPublisher sets the publisher for invoice domain events
func WithEventPublisher(publisher shared.EventPublisher) Option {
	return func(s *BillingService) {
		s.eventPublisher = publisher
	}
}

// WithIdempotencyStore enables Idempotency-Key handling for payments
func WithIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) Option {
	return func(s *BillingService) {
		s.idempotency = store
		if ttl > 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// WithPaymentRetryAttempts sets how many times a payment is re-applied
// after losing an optimistic locking race
func WithPaymentRetryAttempts(attempts int) Option {
	return func(s *BillingService) {
		if attempts > 0 {
			s.retryAttempts = attempts
		}
	}
}

// NewBillingService creates a new BillingService
func NewBillingService(repo invoicing.InvoiceRepository, opts ...Option) *BillingService {
	s := &BillingService{
		repo:           repo,
		idempotencyTTL: shared.DefaultIdempotencyTTL,
		clock:          time.Now,
		location:       time.UTC,
		retryAttempts:  defaultPaymentRetryAttempts,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current calendar date in the configured location
func (s *BillingService) Today() time.Time {
	return invoicing.CalendarDate(s.clock().In(s.location))
}

// Create persists a new invoice after deriving its status.
// A draft without status defaults to UNPAID before derivation.
func (s *BillingService) Create(ctx context.Context, inv *invoicing.Invoice) (*invoicing.Invoice, error) {
	if !inv.IsNew() {
		return nil, shared.NewDomainError("INVALID_INPUT", "A new invoice cannot carry an identifier")
	}
	if inv.Status == "" {
		inv.Status = invoicing.PaymentStatusUnpaid
	}
	if inv.Items == nil {
		inv.Items = make([]invoicing.InvoiceItem, 0)
	}
	inv.AmountPaid = invoicing.NormalizeAmount(&inv.AmountPaid)

	today := s.Today()
	inv.Derive(today)

	if err := s.repo.Save(ctx, inv); err != nil {
		return nil, err
	}

	inv.AddDomainEvent(invoicing.NewInvoiceCreatedEvent(inv, s.clock()))
	s.publishEvents(ctx, inv)

	s.log(ctx).Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Int("items", inv.ItemCount()),
		zap.String("total", inv.Total().StringFixed(2)),
		zap.String("status", inv.Status.String()),
	)
	return inv, nil
}

// Get returns the invoice with the given ID
func (s *BillingService) Get(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns all invoices
func (s *BillingService) List(ctx context.Context) ([]invoicing.Invoice, error) {
	return s.repo.FindAll(ctx)
}

// Update fully replaces the invoice identified by id, items included.
// The payload's own ID is ignored in favour of id.
func (s *BillingService) Update(ctx context.Context, id uuid.UUID, inv *invoicing.Invoice) (*invoicing.Invoice, error) {
	inv.ID = id

	stored, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := stored.Status
	stored.ReplaceWith(inv)
	stored.Derive(s.Today())

	if err := s.repo.Save(ctx, stored); err != nil {
		return nil, err
	}

	stored.AddDomainEvent(invoicing.NewInvoiceUpdatedEvent(stored, previous, s.clock()))
	s.publishEvents(ctx, stored)

	s.log(ctx).Info("invoice updated",
		zap.String("invoice_id", stored.ID.String()),
		zap.String("status", stored.Status.String()),
	)
	return stored, nil
}

// RecordPayment adds amount to the invoice's running paid total and
// re-derives its status. A nil or negative amount contributes zero.
// If another writer saves the invoice first, the payment is re-applied
// on a fresh copy, up to the configured number of attempts.
func (s *BillingService) RecordPayment(ctx context.Context, id uuid.UUID, amount *decimal.Decimal) (*invoicing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "record_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, id.String(),
		telemetry.SpanAttrPaymentAmount, invoicing.NormalizeAmount(amount).String(),
	)

	var (
		inv *invoicing.Invoice
		err error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels("record_payment"), func(c context.Context) {
		inv, err = s.applyPayment(c, id, amount)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentStatus, inv.Status.String())
	telemetry.SetOK(span)
	return inv, nil
}

func (s *BillingService) applyPayment(ctx context.Context, id uuid.UUID, amount *decimal.Decimal) (*invoicing.Invoice, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		inv, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		applied := inv.ApplyPayment(amount, s.Today(), s.clock())

		err = s.repo.Save(ctx, inv)
		if err == nil {
			s.publishEvents(ctx, inv)
			s.log(ctx).Info("payment recorded",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("amount", applied.StringFixed(2)),
				zap.String("balance_due", inv.BalanceDue().StringFixed(2)),
				zap.String("status", inv.Status.String()),
			)
			return inv, nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, err
		}

		lastErr = err
		s.log(ctx).Warn("payment lost optimistic lock, retrying",
			zap.String("invoice_id", id.String()),
			zap.Int("attempt", attempt),
		)
	}
	return nil, lastErr
}

// RecordPaymentOnce behaves like RecordPayment but applies a payment
// carrying the same idempotency key at most once. An empty key, or a
// service without an idempotency store, falls through to RecordPayment.
func (s *BillingService) RecordPaymentOnce(ctx context.Context, id uuid.UUID, amount *decimal.Decimal, idempotencyKey string) (*invoicing.Invoice, error) {
	if idempotencyKey == "" || s.idempotency == nil {
		return s.RecordPayment(ctx, id, amount)
	}

	key := paymentKey(id, idempotencyKey)
	fresh, err := s.idempotency.MarkProcessed(ctx, key, s.idempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if !fresh {
		s.log(ctx).Info("duplicate payment request ignored",
			zap.String("invoice_id", id.String()),
			zap.String("idempotency_key", idempotencyKey),
		)
		return nil, shared.ErrDuplicateRequest
	}

	inv, err := s.RecordPayment(ctx, id, amount)
	if err != nil {
		if releaseErr := s.idempotency.Release(ctx, key); releaseErr != nil {
			s.log(ctx).Warn("failed to release idempotency key",
				zap.String("key", key),
				zap.Error(releaseErr),
			)
		}
		return nil, err
	}
	return inv, nil
}

// Delete removes the invoice and its items
func (s *BillingService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, invoicing.NewInvoiceDeletedEvent(id, s.clock()))
	s.log(ctx).Info("invoice deleted", zap.String("invoice_id", id.String()))
	return nil
}

// ListOverdue returns the invoices that are unpaid past their due date as of today
func (s *BillingService) ListOverdue(ctx context.Context, today time.Time) ([]invoicing.Invoice, error) {
	return s.repo.FindOverdue(ctx, invoicing.CalendarDate(today))
}

// Summary aggregates the full invoice collection as of today
func (s *BillingService) Summary(ctx context.Context, today time.Time) (invoicing.Summary, error) {
	invoices, err := s.repo.FindAll(ctx)
	if err != nil {
		return invoicing.Summary{}, err
	}
	return invoicing.Summarize(invoices, today), nil
}

// log tags entries with the request, trace and invoice IDs carried by ctx
func (s *BillingService) log(ctx context.Context) *applog.ContextLogger {
	return applog.WithLogger(ctx, s.logger)
}

func (s *BillingService) publishEvents(ctx context.Context, inv *invoicing.Invoice) {
	s.publish(ctx, inv.PullDomainEvents()...)
}

// publish never fails the operation; the invoice is already saved
func (s *BillingService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.log(ctx).Error("failed to publish invoice events",
			zap.Int("event_count", len(events)),
			zap.Error(err),
		)
	}
}

func paymentKey(id uuid.UUID, idempotencyKey string) string {
	return "payment:" + id.String() + ":" + idempotencyKey
}
