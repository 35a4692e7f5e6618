package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	invoicingapp "github.com/billing/backend/internal/application/invoicing"
	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/infrastructure/cache"
	"github.com/billing/backend/internal/infrastructure/config"
	"github.com/billing/backend/internal/infrastructure/event"
	"github.com/billing/backend/internal/infrastructure/logger"
	"github.com/billing/backend/internal/infrastructure/migration"
	"github.com/billing/backend/internal/infrastructure/persistence"
	"github.com/billing/backend/internal/infrastructure/printing"
	"github.com/billing/backend/internal/infrastructure/storage"
	"github.com/billing/backend/internal/infrastructure/telemetry"
	"github.com/billing/backend/internal/interfaces/http/handler"
	"github.com/billing/backend/internal/interfaces/http/middleware"
	"github.com/billing/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/billing/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Billing API
//	@version		1.0
//	@description	Invoice billing service: invoices, payments, overdue tracking and summaries.

//	@contact.name	API Support
//	@contact.url	https://github.com/billing/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	log.Info("Starting Billing Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Telemetry: traces, metrics and logs share the collector endpoint
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	if loggerProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(cfg.Telemetry.ServiceName, loggerProvider, logger.ParseLevel(cfg.Log.Level))
		log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, otelCore)
		}))
		log.Info("OTLP log export enabled")
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	profiler, err := telemetry.NewProfiler(cfg.Profiling, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	defer shutdownTelemetry(log, tracerProvider, meterProvider, loggerProvider, profiler)

	// Repository: GORM for postgres and sqlite, in-process map for the memory driver
	var (
		repo invoicing.InvoiceRepository
		ping handler.PingFunc
	)
	if cfg.Database.Driver == config.DriverMemory {
		repo = persistence.NewInMemoryInvoiceRepository()
		log.Warn("Using in-memory invoice repository; data is lost on restart")
	} else {
		gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
			logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
		db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}()
		log.Info("Database connected successfully", zap.String("driver", db.Driver))

		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			DBSystem:        db.Driver,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err := dbTracing.Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}

		if cfg.Database.AutoMigrate {
			if err := migrateSchema(db, cfg.Database, log); err != nil {
				log.Fatal("Failed to migrate database", zap.Error(err))
			}
		}

		repo = persistence.NewGormInvoiceRepository(db.DB)
		ping = db.Ping
	}

	// Idempotency store for payment retries
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	paymentAuditHandler := invoicingapp.NewPaymentAuditHandler(log)
	eventBus.Subscribe(paymentAuditHandler)

	metricsHandler, err := invoicingapp.NewMetricsHandler(meterProvider.Meter("billing"))
	if err != nil {
		log.Fatal("Failed to create billing metrics", zap.Error(err))
	}
	eventBus.Subscribe(metricsHandler)

	// Document rendering and archiving
	documents, archive, err := newDocumentService(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize invoice printing", zap.Error(err))
	}
	defer func() {
		if err := documents.Close(); err != nil {
			log.Error("Error closing PDF renderer", zap.Error(err))
		}
	}()
	if archive != nil {
		eventBus.Subscribe(printing.NewArchiveCleanupHandler(archive, log))
	}

	log.Info("Event handlers registered",
		zap.Strings("payment_audit_events", paymentAuditHandler.EventTypes()),
		zap.Strings("metrics_events", metricsHandler.EventTypes()),
		zap.Bool("archive_cleanup", archive != nil),
	)

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Initialize application services
	billingService := invoicingapp.NewBillingService(repo,
		invoicingapp.WithLocation(cfg.Billing.Location()),
		invoicingapp.WithLogger(log),
		invoicingapp.WithEventPublisher(eventBus),
		invoicingapp.WithIdempotencyStore(idempotencyStore, cfg.Billing.IdempotencyTTL),
		invoicingapp.WithPaymentRetryAttempts(cfg.Billing.PaymentRetryAttempts),
	)

	// Initialize HTTP handlers
	invoiceHandler := handler.NewInvoiceHandler(billingService, documents)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, ping)

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. Recovery - Catch panics
	// 2. RequestID - Generate/propagate request ID
	// 3. Logger - Log requests
	// 4. Tracing - otelgin span plus request attributes
	// 5. Metrics and profiling labels
	// 6. CORS, security headers and body limit
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))

	tracingConfig := middleware.DefaultTracingConfig()
	tracingConfig.ServiceName = cfg.Telemetry.ServiceName
	tracingConfig.Enabled = cfg.Telemetry.Enabled
	engine.Use(middleware.TracingWithConfig(tracingConfig))
	engine.Use(middleware.TracingAttributeInjector())

	engine.Use(middleware.HTTPMetrics(meterProvider, log))

	profilingConfig := middleware.DefaultProfilingConfig()
	profilingConfig.Enabled = profiler.IsEnabled()
	engine.Use(middleware.ProfilingWithConfig(profilingConfig))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", systemHandler.Health)

	// Swagger documentation endpoint
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(cfg.Swagger),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(invoiceHandler).
		Register(systemHandler)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// migrateSchema applies the versioned SQL migrations on postgres and
// GORM AutoMigrate on sqlite
func migrateSchema(db *persistence.Database, cfg config.DatabaseConfig, log *zap.Logger) error {
	if db.Driver == config.DriverSQLite {
		return db.AutoMigrate()
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	migrator, err := migration.New(sqlDB, cfg.MigrationsPath, log)
	if err != nil {
		return err
	}
	// closing the migrator would close the shared connection pool
	return migrator.Up()
}

// newDocumentService builds the HTML template engine, the Chrome renderer
// when printing is enabled, and the S3 archive when storage is enabled.
// The returned archive is nil without storage.
func newDocumentService(ctx context.Context, cfg *config.Config, log *zap.Logger) (*printing.InvoiceDocumentService, printing.DocumentArchive, error) {
	engine, err := printing.NewTemplateEngine(
		printing.WithLocale(cfg.Printing.Locale),
		printing.WithCurrency(cfg.Printing.Currency),
		printing.WithCompany(printing.Company{
			Name:    cfg.Printing.CompanyName,
			Address: cfg.Printing.CompanyAddress,
		}),
	)
	if err != nil {
		return nil, nil, err
	}

	var renderer printing.PDFRenderer
	if cfg.Printing.Enabled {
		renderer = printing.NewChromedpRenderer(cfg.Printing, log)
		log.Info("PDF rendering enabled", zap.Bool("remote_chrome", cfg.Printing.ChromeRemoteURL != ""))
	}

	var opts []printing.DocumentServiceOption
	var archive printing.DocumentArchive
	if cfg.Storage.Enabled {
		s3Archive, err := storage.NewS3DocumentArchive(ctx, cfg.Storage, log)
		if err != nil {
			return nil, nil, err
		}
		if err := s3Archive.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		log.Info("PDF archiving enabled", zap.String("bucket", s3Archive.Bucket()))
		archive = s3Archive
		opts = append(opts, printing.WithArchive(s3Archive))
	}

	return printing.NewInvoiceDocumentService(engine, renderer, log, opts...), archive, nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdownTelemetry flushes every provider and stops the profiler
func shutdownTelemetry(log *zap.Logger, tp, mp, lp shutdowner, profiler *telemetry.Profiler) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	for name, provider := range map[string]shutdowner{
		"tracer": tp,
		"meter":  mp,
		"logger": lp,
	} {
		if err := provider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down telemetry provider", zap.String("provider", name), zap.Error(err))
		}
	}
}
