package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harshadelights/pricing/internal/domain/pricing"
	"github.com/harshadelights/pricing/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingMetrics(t *testing.T) {
	reader, provider := newTestMeter(t)
	metrics, err := telemetry.NewPricingMetrics(provider.Meter(telemetry.MeterName))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordEvaluation(ctx, "evaluate", "PR-1", telemetry.OutcomeApplied, time.Millisecond)
	metrics.RecordEvaluation(ctx, "evaluate", "PR-1", telemetry.OutcomeNotApplicable, time.Millisecond)
	metrics.RecordApplication(ctx, "PR-1", telemetry.OutcomeApplied)
	metrics.RecordApplication(ctx, "PR-1", telemetry.OutcomeReplayed)
	metrics.RecordCouponExhausted(ctx, "PR-1")
	metrics.ObserveFailClosed(ctx, &pricing.EvaluationError{RuleCode: "PR-1", Check: "rule_condition", Err: errors.New("no such key: tier")})
	metrics.ObserveFailClosed(ctx, nil)

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumOf(t, got["pricing.evaluations"],
		telemetry.AttrOperation.String("evaluate"),
		telemetry.AttrRuleCode.String("PR-1"),
		telemetry.AttrOutcome.String(telemetry.OutcomeApplied),
	))
	assert.Equal(t, int64(2), sumOf(t, got["pricing.evaluations"]))
	assert.Equal(t, int64(2), sumOf(t, got["pricing.applications"]))
	assert.Equal(t, int64(1), sumOf(t, got["pricing.coupons_exhausted"]))
	assert.Equal(t, int64(1), sumOf(t, got["pricing.fail_closed"],
		telemetry.AttrRuleCode.String("PR-1"),
		telemetry.AttrCheck.String("rule_condition"),
	))
	assert.Contains(t, got, "pricing.evaluation.duration")
}

func TestPricingMetrics_AsMatcherObserver(t *testing.T) {
	reader, provider := newTestMeter(t)
	metrics, err := telemetry.NewPricingMetrics(provider.Meter(telemetry.MeterName))
	require.NoError(t, err)

	rule := &pricing.PricingRule{
		RuleCode:       "PR-COND",
		ApplicableFor:  pricing.ApplicableForAllCustomers,
		RateOrDiscount: pricing.RateOrDiscountDiscountPercentage,
		RuleCondition:  "qty > 5",
		IsActive:       true,
		Status:         pricing.RuleStatusActive,
	}
	matcher := pricing.NewMatcher(nil, nil, pricing.WithFailClosedObserver(metrics.ObserveFailClosed))

	applicable := matcher.IsApplicable(context.Background(), rule, pricing.Transaction{Customer: "CUST-1", ItemCode: "ITEM-1"}, time.Now())
	assert.False(t, applicable)
	assert.Equal(t, int64(1), sumOf(t, collect(t, reader)["pricing.fail_closed"]))
}

func TestPricingMetrics_NilIsNoop(t *testing.T) {
	var metrics *telemetry.PricingMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		metrics.RecordEvaluation(ctx, "quote", "", telemetry.OutcomeError, 0)
		metrics.RecordApplication(ctx, "PR-1", telemetry.OutcomeError)
		metrics.RecordCouponExhausted(ctx, "PR-1")
		metrics.ObserveFailClosed(ctx, &pricing.EvaluationError{})
	})
}
