package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	app "github.com/harshadelights/pricing/internal/application/pricing"
	"github.com/harshadelights/pricing/internal/domain/pricing"
	"github.com/harshadelights/pricing/internal/domain/shared"
	"github.com/harshadelights/pricing/internal/infrastructure/cache"
	"github.com/harshadelights/pricing/internal/infrastructure/config"
	"github.com/harshadelights/pricing/internal/infrastructure/event"
	"github.com/harshadelights/pricing/internal/infrastructure/expression"
	"github.com/harshadelights/pricing/internal/infrastructure/logger"
	"github.com/harshadelights/pricing/internal/infrastructure/persistence"
	"github.com/harshadelights/pricing/internal/infrastructure/strategy"
	"github.com/harshadelights/pricing/internal/infrastructure/telemetry"
	"github.com/harshadelights/pricing/internal/interfaces/http/handler"
	"github.com/harshadelights/pricing/internal/interfaces/http/middleware"
	"github.com/harshadelights/pricing/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//	@title			Pricing Engine API
//	@version		1.0
//	@description	Dynamic pricing rules and volume discounts for sales transactions

//	@host		localhost:8080
//	@BasePath	/api/v1

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting pricing engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("timezone", cfg.Pricing.Location().String()),
		zap.String("version", version),
	)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(startCtx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(startCtx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(startCtx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}
	defer func() {
		_ = loggerProvider.Shutdown(context.Background())
		_ = meterProvider.Shutdown(context.Background())
		_ = tracerProvider.Shutdown(context.Background())
		_ = profiler.Stop()
	}()
	if level, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		log = loggerProvider.Bridge(log, level)
	}

	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)
	metrics, err := telemetry.NewPricingMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create pricing metrics", zap.Error(err))
	}

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.NewDBTracing(cfg.Telemetry, cfg.Database.DBName, log).Register(db.DB); err != nil {
			log.Fatal("Failed to enable database tracing", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	// Repositories
	ruleRepo := persistence.NewGormPricingRuleRepository(db.DB)
	applicationStore := persistence.NewGormApplicationStore(db.DB)
	directory := persistence.NewGormDirectory(db.DB)

	// Idempotency keys for Apply and for event handlers
	idempotencyConfig := shared.IdempotencyConfig{TTL: cfg.Pricing.IdempotencyTTL, Enabled: true}
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(startCtx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		_ = idempotencyStore.Close()
	}()

	// Event bus
	bus := event.NewInMemoryEventBus(log)
	if cfg.Pricing.SyncStandardRules {
		syncer := event.NewStandardRuleSyncer(ruleRepo, persistence.NewGormStandardRuleRepository(db.DB), log)
		bus.Subscribe(event.NewIdempotentHandler("standard_rule_syncer", syncer, idempotencyStore, log,
			event.WithIdempotencyConfig(idempotencyConfig),
		))
		log.Info("Standard pricing rule sync enabled")
	}
	bus.Subscribe(event.NewCouponExhaustionNotifier(log, func(ctx context.Context, e *pricing.PricingRuleCouponExhaustedEvent) {
		metrics.RecordCouponExhausted(ctx, e.RuleCode)
	}))
	if err := bus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := bus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Domain services
	conditions, err := expression.NewCELEvaluator(
		expression.WithCostLimit(cfg.Pricing.ConditionCostLimit),
		expression.WithLogger(log),
	)
	if err != nil {
		log.Fatal("Failed to create condition evaluator", zap.Error(err))
	}
	strategies, err := strategy.NewRegistryWithDefaults()
	if err != nil {
		log.Fatal("Failed to register pricing strategies", zap.Error(err))
	}
	matcher := pricing.NewMatcher(directory, conditions,
		pricing.WithMatcherLogger(log),
		pricing.WithFailClosedObserver(metrics.ObserveFailClosed),
	)
	baseRates := pricing.NewBaseRateResolver(directory, directory, cfg.Pricing.DefaultPriceList)

	// Application services
	ruleService := app.NewRuleService(ruleRepo, conditions, bus, log)
	evaluationService := app.NewEvaluationService(ruleRepo, applicationStore, matcher, baseRates,
		app.WithIdempotencyStore(idempotencyStore, idempotencyConfig),
		app.WithEventPublisher(bus),
		app.WithPricingMetrics(metrics),
		app.WithChainBuilder(strategies),
		app.WithEvaluationLogger(log),
	)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version).
		AddCheck("database", db.Ping)
	pricingHandler := handler.NewPricingRuleHandler(ruleService, evaluationService, cfg.Pricing.Location())

	engineMeter := meter
	if !meterProvider.IsEnabled() {
		engineMeter = nil
	}
	engine, err := router.NewEngine(router.EngineConfig{
		TrustedProxies: cfg.HTTP.TrustedProxies,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		},
		Meter: engineMeter,
	}, log)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}
	router.Mount(engine, systemHandler, pricingHandler)

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
