package router

import (
	"github.com/gin-gonic/gin"
	"github.com/harshadelights/pricing/internal/infrastructure/logger"
	"github.com/harshadelights/pricing/internal/interfaces/http/handler"
	"github.com/harshadelights/pricing/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineConfig selects the middleware applied to every request
type EngineConfig struct {
	TrustedProxies []string
	MaxBodySize    int64
	Tracing        middleware.TracingConfig
	// Meter records HTTP server metrics; nil disables them
	Meter metric.Meter
}

// NewEngine creates a gin engine with the standard middleware stack:
//  1. RequestID and ActingUser populate the request identity
//  2. Recovery catches panics
//  3. Tracing starts the server span and tags it
//  4. Metrics and the request logger
//  5. Secure headers and the body limit
func NewEngine(cfg EngineConfig, log *zap.Logger) (*gin.Engine, error) {
	middleware.SetupValidator()

	httpMetrics, err := middleware.HTTPMetrics(cfg.Meter)
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID(), middleware.ActingUser())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(cfg.Tracing))
	engine.Use(middleware.TracingAttributeInjector(), middleware.SpanErrorMarker())
	engine.Use(httpMetrics)
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.MaxBodySize))

	return engine, nil
}

// Mount registers the health probe at the root and the API groups under /api/v1
func Mount(engine *gin.Engine, system *handler.SystemHandler, pricingHandler *handler.PricingRuleHandler) {
	engine.GET("/health", system.Health)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Register(PricingRoutes(pricingHandler)...)
	r.Register(SystemRoutes(system))
	r.Setup()
}
