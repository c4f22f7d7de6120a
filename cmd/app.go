package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/account-rental/internal"
	"github.com/frahmantamala/account-rental/internal/auth"
	"github.com/frahmantamala/account-rental/internal/booking"
	bookingpg "github.com/frahmantamala/account-rental/internal/booking/postgres"
	"github.com/frahmantamala/account-rental/internal/catalog"
	catalogpg "github.com/frahmantamala/account-rental/internal/catalog/postgres"
	"github.com/frahmantamala/account-rental/internal/core/events"
	"github.com/frahmantamala/account-rental/internal/payment"
	paymentpg "github.com/frahmantamala/account-rental/internal/payment/postgres"
	"github.com/frahmantamala/account-rental/internal/paymentgateway"
	"github.com/frahmantamala/account-rental/internal/transport"
	"github.com/frahmantamala/account-rental/internal/transport/rest"
	"github.com/frahmantamala/account-rental/pkg/logger"
)

// App is the wired object graph shared by the server and the sweep commands.
type App struct {
	Config     *internal.Config
	DB         *sqlx.DB
	Gorm       *gorm.DB
	Logger     *slog.Logger
	EventBus   *events.EventBus
	Reconciler *payment.Reconciler
	Bookings   *booking.Service
	Handlers   rest.Handlers
}

func newApp(cfg *internal.Config) (*App, error) {
	lg := logger.LoggerWrapper()

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := openGorm(db, cfg.Environment)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	gatewayCfg, err := paymentgateway.ConfigFromApp(cfg.Payment)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("invalid payment gateway config: %w", err)
	}
	gateway, err := paymentgateway.NewClient(gatewayCfg, lg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create payment gateway client: %w", err)
	}

	publicKey, err := cfg.Security.GetPublicKey()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("invalid jwt public key: %w", err)
	}

	eventBus := events.NewEventBus(lg)
	payment.NewEventHandler(lg).RegisterEventHandlers(eventBus)

	bookingRepo := bookingpg.NewBookingRepository(gdb)
	rates := bookingpg.NewCatalogRepository(gdb)
	paymentRepo := paymentpg.NewPaymentRepository(gdb)

	reconciler := payment.NewReconciler(paymentRepo, eventBus, lg)
	bookingService := booking.NewService(bookingRepo, rates, reconciler, lg, booking.Config{
		HoldGrace:      cfg.Booking.HoldGrace,
		SweepWorkers:   cfg.Booking.SweepWorkers,
		SweepBatchSize: cfg.Booking.SweepBatchSize,
	})
	orchestrator := payment.NewPaymentOrchestrator(paymentRepo, gateway, reconciler, lg, payment.ServiceConfig{
		Provider:       cfg.Payment.Provider,
		Currency:       cfg.Payment.Currency,
		GatewayTimeout: cfg.Payment.Timeout,
		VAPrefix:       gatewayCfg.PartnerServiceID,
	})
	vaService := payment.NewVAService(paymentRepo, reconciler, lg, cfg.Booking.VAExpiryGrace)
	notifications := payment.NewNotificationService(paymentRepo, reconciler, lg)
	catalogService := catalog.NewService(catalogpg.NewCatalogRepository(gdb), lg)

	return &App{
		Config:     cfg,
		DB:         db,
		Gorm:       gdb,
		Logger:     lg,
		EventBus:   eventBus,
		Reconciler: reconciler,
		Bookings:   bookingService,
		Handlers: rest.Handlers{
			Auth:    auth.NewHandler(auth.NewJWTVerifier(publicKey, cfg.Security.JWTIssuer), cfg.Security.CronKey),
			Booking: booking.NewHandler(bookingService, rates),
			Catalog: catalog.NewHandler(transport.NewBaseHandler(lg), catalogService),
			Payment: payment.NewHandler(orchestrator),
			VA:      payment.NewVAHandler(vaService, gateway, cfg.Payment.VAInquiryPath, cfg.Payment.VAPaymentPath),
			Webhook: payment.NewWebhookHandler(notifications, gateway, cfg.Payment.NotifyPath),
		},
	}, nil
}

func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.EventBus.Drain(ctx); err != nil {
		a.Logger.Warn("event deliveries still running at shutdown", "error", err)
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("database close error", "error", err)
	}
}

// openGorm layers gorm on the existing pool so both share one set of connections.
func openGorm(db *sqlx.DB, env string) (*gorm.DB, error) {
	gormLog := gormlogger.Default.LogMode(gormlogger.Silent)
	if strings.EqualFold(env, "development") {
		gormLog = gormlogger.Default.LogMode(gormlogger.Warn)
	}
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:                 gormLog,
		SkipDefaultTransaction: true,
	})
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbConn, nil
}
