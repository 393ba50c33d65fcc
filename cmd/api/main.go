package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/hospital-booking/cmd/mainconfig"
	"github.com/wolfman30/hospital-booking/internal/api/router"
	"github.com/wolfman30/hospital-booking/internal/app/bootstrap"
	"github.com/wolfman30/hospital-booking/internal/appointments"
	"github.com/wolfman30/hospital-booking/internal/booking"
	"github.com/wolfman30/hospital-booking/internal/compliance"
	appconfig "github.com/wolfman30/hospital-booking/internal/config"
	"github.com/wolfman30/hospital-booking/internal/directory"
	httpmiddleware "github.com/wolfman30/hospital-booking/internal/http/middleware"
	"github.com/wolfman30/hospital-booking/internal/observability/metrics"
	"github.com/wolfman30/hospital-booking/internal/patients"
	"github.com/wolfman30/hospital-booking/internal/payments"
	"github.com/wolfman30/hospital-booking/internal/reservations"
	"github.com/wolfman30/hospital-booking/internal/slots"
	"github.com/wolfman30/hospital-booking/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting hospital-booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.close()

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited")
}

type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires every backing service. Background workers stop when ctx is
// cancelled.
func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("load clinic timezone %q: %w", cfg.ClinicTimezone, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(registry)
	checks := map[string]router.HealthCheck{}

	pool, err := bootstrap.ConnectPostgres(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	var sqlDB *sql.DB
	if pool != nil {
		sqlDB = bootstrap.OpenSQLDB(pool)
		a.closers = append(a.closers, pool.Close, func() { _ = sqlDB.Close() })
		checks["postgres"] = pool.Ping
	} else {
		logger.Warn("DATABASE_URL not set; bookings are kept in memory")
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	holdStore, err := bootstrap.BuildReservationStore(cfg, redisClient, logger)
	if err != nil {
		return fail(err)
	}
	manager := reservations.NewManager(holdStore, cfg.ReservationHoldTTL, logger, reservations.WithRecorder(bookingMetrics))
	go manager.RunJanitor(ctx, cfg.ReservationSweepInterval)

	generator, err := slots.NewGenerator(slots.Config{
		Location: loc,
		Duration: cfg.SlotDuration,
		MaxSlots: cfg.SlotMaxCount,
	})
	if err != nil {
		return fail(fmt.Errorf("slot generator: %w", err))
	}

	provider, err := bootstrap.BuildCheckoutProvider(cfg, logger)
	if err != nil {
		return fail(err)
	}
	gateway := payments.NewGateway(provider, cfg.PublicBaseURL, cfg.PaymentTimeout, logger, payments.WithGatewayRecorder(bookingMetrics))

	sqsClient, err := buildSQSClient(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	publisher := bootstrap.BuildEventPublisher(ctx, pool, sqsClient, cfg.BookingEventsQueueURL, logger)

	repos := buildRepositories(pool)
	orchCfg := booking.Config{
		Directory:       directory.NewLookup(repos.doctors, cfg.DirectoryLimit, logger),
		Slots:           generator,
		Reservations:    manager,
		Patients:        repos.patients,
		Appointments:    repos.appointments,
		Intents:         repos.intents,
		Gateway:         gateway,
		Sessions:        bootstrap.BuildSessionStore(cfg, redisClient),
		Publisher:       publisher,
		Advisor:         compliance.NewDisclaimerService(compliance.DefaultDisclaimerConfig()),
		HorizonDays:     cfg.SlotHorizonDays,
		ConsultationFee: cfg.ConsultationFee,
		Currency:        cfg.Currency,
		Logger:          logger,
	}
	var auditHandler *compliance.AuditHandler
	if sqlDB != nil {
		auditSvc := compliance.NewAuditService(sqlDB)
		orchCfg.Audit = auditSvc
		auditHandler = compliance.NewAuditHandler(auditSvc, logger)
	}
	orchestrator := booking.NewOrchestrator(orchCfg)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	a.handler = router.New(&router.Config{
		Logger:             logger,
		Booking:            booking.NewHandler(orchestrator, bookingMetrics, registry, logger),
		Payments:           payments.NewCheckoutHandler(repos.appointments, repos.intents, logger).WithPublisher(publisher),
		Audit:              auditHandler,
		MockCheckout:       cfg.MockPaymentsEnabled(),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		HealthChecks:       checks,
	})
	logger.Info("booking services ready",
		"postgres", pool != nil,
		"redis", redisClient != nil,
		"payment_provider", gateway.ProviderName(),
		"mock_checkout", cfg.MockPaymentsEnabled(),
		"timezone", loc.String(),
	)
	return a, nil
}

type repositories struct {
	doctors      directory.Source
	patients     patients.Repository
	appointments appointments.Repository
	intents      payments.IntentRepository
}

func buildRepositories(pool *pgxpool.Pool) repositories {
	if pool == nil {
		return repositories{
			doctors:      directory.NewMemorySource(directory.DemoDoctors()...),
			patients:     patients.NewInMemoryRepository(),
			appointments: appointments.NewInMemoryRepository(),
			intents:      payments.NewInMemoryIntentRepository(),
		}
	}
	return repositories{
		doctors:      directory.NewPostgresSource(pool),
		patients:     patients.NewPostgresRepository(pool),
		appointments: appointments.NewPostgresRepository(pool),
		intents:      payments.NewPostgresIntentRepository(pool),
	}
}

func buildSQSClient(ctx context.Context, cfg *appconfig.Config) (*sqs.Client, error) {
	if cfg.BookingEventsQueueURL == "" {
		return nil, nil
	}
	return mainconfig.NewSQSClient(ctx, cfg)
}
