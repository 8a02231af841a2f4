package telemetry

import (
	"context"
	"time"

	"github.com/harshadelights/pricing/internal/domain/pricing"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of pricing metrics
const MeterName = "pricing-engine"

// Outcomes recorded on pricing.evaluations and pricing.applications
const (
	OutcomeApplied       = "applied"
	OutcomeNotApplicable = "not_applicable"
	OutcomeReplayed      = "replayed"
	OutcomeError         = "error"
)

// PricingMetrics records rule evaluations, applications and fail-closed checks
type PricingMetrics struct {
	evaluations      *Counter
	applications     *Counter
	failClosed       *Counter
	couponsExhausted *Counter
	evalDuration     *Histogram
}

// NewPricingMetrics creates the pricing instruments on meter
func NewPricingMetrics(meter metric.Meter) (*PricingMetrics, error) {
	evaluations, err := NewCounter(meter, "pricing.evaluations", "Rule evaluations by outcome", "{evaluation}")
	if err != nil {
		return nil, err
	}
	applications, err := NewCounter(meter, "pricing.applications", "Rule applications by outcome", "{application}")
	if err != nil {
		return nil, err
	}
	failClosed, err := NewCounter(meter, "pricing.fail_closed", "Applicability checks that failed closed", "{check}")
	if err != nil {
		return nil, err
	}
	couponsExhausted, err := NewCounter(meter, "pricing.coupons_exhausted", "Coupon rules that reached their usage limit", "{rule}")
	if err != nil {
		return nil, err
	}
	evalDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "pricing.evaluation.duration",
		Description: "Duration of a rule evaluation or quote",
		Unit:        "s",
		Boundaries:  SmallDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &PricingMetrics{
		evaluations:      evaluations,
		applications:     applications,
		failClosed:       failClosed,
		couponsExhausted: couponsExhausted,
		evalDuration:     evalDuration,
	}, nil
}

// RecordEvaluation records one dry-run evaluation of ruleCode
func (m *PricingMetrics) RecordEvaluation(ctx context.Context, operation, ruleCode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.Inc(ctx, AttrOperation.String(operation), AttrRuleCode.String(ruleCode), AttrOutcome.String(outcome))
	m.evalDuration.RecordDuration(ctx, elapsed, AttrOperation.String(operation))
}

// RecordApplication records one Apply call on ruleCode
func (m *PricingMetrics) RecordApplication(ctx context.Context, ruleCode, outcome string) {
	if m == nil {
		return
	}
	m.applications.Inc(ctx, AttrRuleCode.String(ruleCode), AttrOutcome.String(outcome))
}

// RecordCouponExhausted records a coupon rule reaching its limit
func (m *PricingMetrics) RecordCouponExhausted(ctx context.Context, ruleCode string) {
	if m == nil {
		return
	}
	m.couponsExhausted.Inc(ctx, AttrRuleCode.String(ruleCode))
}

// ObserveFailClosed counts a fail-closed applicability check. It matches
// pricing.FailClosedObserver.
func (m *PricingMetrics) ObserveFailClosed(ctx context.Context, err *pricing.EvaluationError) {
	if m == nil || err == nil {
		return
	}
	m.failClosed.Inc(ctx, AttrRuleCode.String(err.RuleCode), AttrCheck.String(err.Check))
}

var _ pricing.FailClosedObserver = (*PricingMetrics)(nil).ObserveFailClosed
