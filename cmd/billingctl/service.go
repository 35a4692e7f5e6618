package main

import (
	"errors"
	"fmt"
	"time"

	invoicingapp "github.com/billing/backend/internal/application/invoicing"
	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/infrastructure/config"
	"github.com/billing/backend/internal/infrastructure/logger"
	"github.com/billing/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

// openBillingService connects to the configured database and returns a
// billing service without event publishing or idempotency
func openBillingService(cfg *config.Config, log *zap.Logger) (*invoicingapp.BillingService, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		return nil, nil, errors.New("billingctl needs a postgres or sqlite database, not the memory driver")
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		return nil, nil, err
	}
	if db.Driver == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}

	svc := invoicingapp.NewBillingService(
		persistence.NewGormInvoiceRepository(db.DB),
		invoicingapp.WithLocation(cfg.Billing.Location()),
		invoicingapp.WithLogger(log),
		invoicingapp.WithPaymentRetryAttempts(cfg.Billing.PaymentRetryAttempts),
	)
	return svc, func() {
		if err := db.Close(); err != nil {
			log.Warn("Error closing database", zap.Error(err))
		}
	}, nil
}

// resolveAsOf parses --as-of, defaulting to the service's current date
func resolveAsOf(value string, svc *invoicingapp.BillingService) (time.Time, error) {
	if value == "" {
		return svc.Today(), nil
	}
	asOf, err := invoicing.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q, expected YYYY-MM-DD", value)
	}
	return asOf, nil
}
