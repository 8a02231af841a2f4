package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harshadelights/pricing/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultSlowQueryThreshold is used when the configured threshold is not positive
const DefaultSlowQueryThreshold = 200 * time.Millisecond

type queryStartKey struct{}

// DBTracing instruments GORM with otelgorm spans and annotates each statement
// span with rows affected and a slow-query marker. The annotating callbacks run
// before otelgorm ends the span.
type DBTracing struct {
	logFullSQL bool
	slowQuery  time.Duration
	dbName     string
	logger     *zap.Logger
}

// NewDBTracing creates the instrumentation from the telemetry configuration
func NewDBTracing(cfg config.TelemetryConfig, dbName string, logger *zap.Logger) *DBTracing {
	slow := cfg.DBSlowQueryThresh
	if slow <= 0 {
		slow = DefaultSlowQueryThreshold
	}
	return &DBTracing{
		logFullSQL: cfg.DBLogFullSQL,
		slowQuery:  slow,
		dbName:     dbName,
		logger:     logger,
	}
}

// Register installs the otelgorm plugin and the timing callbacks on db
func (t *DBTracing) Register(db *gorm.DB) error {
	opts := []otelgorm.Option{otelgorm.WithDBName(t.dbName)}
	if !t.logFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("failed to register otelgorm: %w", err)
	}

	cb := db.Callback()
	registrations := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("pricing_timing:before_create", t.before) },
		func() error { return cb.Query().Before("gorm:query").Register("pricing_timing:before_query", t.before) },
		func() error { return cb.Update().Before("gorm:update").Register("pricing_timing:before_update", t.before) },
		func() error { return cb.Delete().Before("gorm:delete").Register("pricing_timing:before_delete", t.before) },
		func() error { return cb.Row().Before("gorm:row").Register("pricing_timing:before_row", t.before) },
		func() error { return cb.Raw().Before("gorm:raw").Register("pricing_timing:before_raw", t.before) },
		func() error { return cb.Create().After("gorm:create").Before("otel:after:create").Register("pricing_timing:after_create", t.after) },
		func() error { return cb.Query().After("gorm:query").Before("otel:after:query").Register("pricing_timing:after_query", t.after) },
		func() error { return cb.Update().After("gorm:update").Before("otel:after:update").Register("pricing_timing:after_update", t.after) },
		func() error { return cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("pricing_timing:after_delete", t.after) },
		func() error { return cb.Row().After("gorm:row").Before("otel:after:row").Register("pricing_timing:after_row", t.after) },
		func() error { return cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("pricing_timing:after_raw", t.after) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return fmt.Errorf("failed to register timing callback: %w", err)
		}
	}

	t.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", t.logFullSQL),
		zap.Duration("slow_query_threshold", t.slowQuery),
	)
	return nil
}

func (t *DBTracing) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (t *DBTracing) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		RecordError(span, db.Error)
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > t.slowQuery {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", t.slowQuery.Milliseconds()),
		))
	}
}
