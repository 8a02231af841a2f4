package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/harshadelights/pricing/internal/infrastructure/config"
	"github.com/harshadelights/pricing/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTracedDB(t *testing.T, cfg config.TelemetryConfig) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, telemetry.NewDBTracing(cfg, "pricing", zap.NewNop()).Register(db))
	return db
}

// lastSpan returns the most recently ended span annotated with table
func lastSpan(spans []sdktrace.ReadOnlySpan, table string) sdktrace.ReadOnlySpan {
	for i := len(spans) - 1; i >= 0; i-- {
		if v, ok := attrMap(spans[i].Attributes())["db.sql.table"]; ok && v.AsString() == table {
			return spans[i]
		}
	}
	return nil
}

type tracedRule struct {
	ID       uint `gorm:"primaryKey"`
	RuleCode string
}

func TestDBTracing_AnnotatesStatementSpans(t *testing.T) {
	sr := setupTestTracer(t)
	db := newTracedDB(t, config.TelemetryConfig{DBSlowQueryThresh: time.Hour})
	ctx := context.Background()

	require.NoError(t, db.WithContext(ctx).AutoMigrate(&tracedRule{}))
	require.NoError(t, db.WithContext(ctx).Create(&[]tracedRule{{RuleCode: "PR-1"}, {RuleCode: "PR-2"}}).Error)

	span := lastSpan(sr.Ended(), "traced_rules")
	require.NotNil(t, span, "expected a span annotated with the table name")

	attrs := attrMap(span.Attributes())
	assert.Equal(t, int64(2), attrs["db.rows_affected"].AsInt64())
	_, slow := attrs["db.slow_query"]
	assert.False(t, slow)
}

func TestDBTracing_SlowQuery(t *testing.T) {
	sr := setupTestTracer(t)
	db := newTracedDB(t, config.TelemetryConfig{DBSlowQueryThresh: time.Nanosecond})

	require.NoError(t, db.AutoMigrate(&tracedRule{}))
	var rules []tracedRule
	require.NoError(t, db.Find(&rules).Error)

	span := lastSpan(sr.Ended(), "traced_rules")
	require.NotNil(t, span)
	assert.True(t, attrMap(span.Attributes())["db.slow_query"].AsBool())

	var hasEvent bool
	for _, e := range span.Events() {
		hasEvent = hasEvent || e.Name == "slow_query_warning"
	}
	assert.True(t, hasEvent)
}

func TestDBTracing_ErrorsMarkSpan(t *testing.T) {
	sr := setupTestTracer(t)
	db := newTracedDB(t, config.TelemetryConfig{})

	err := db.Table("missing_table").Create(map[string]any{"rule_code": "PR-1"}).Error
	require.Error(t, err)

	span := lastSpan(sr.Ended(), "missing_table")
	require.NotNil(t, span)
	assert.Equal(t, codes.Error, span.Status().Code)
}

func TestDBTracing_NotFoundIsNotAnError(t *testing.T) {
	sr := setupTestTracer(t)
	db := newTracedDB(t, config.TelemetryConfig{})
	require.NoError(t, db.AutoMigrate(&tracedRule{}))

	var rule tracedRule
	require.ErrorIs(t, db.Where("rule_code = ?", "PR-404").First(&rule).Error, gorm.ErrRecordNotFound)

	span := lastSpan(sr.Ended(), "traced_rules")
	require.NotNil(t, span)
	assert.NotEqual(t, codes.Error, span.Status().Code)
}

func TestDBTracing_DoubleRegistration(t *testing.T) {
	db := newTracedDB(t, config.TelemetryConfig{})
	assert.Error(t, telemetry.NewDBTracing(config.TelemetryConfig{}, "pricing", zap.NewNop()).Register(db))
}
