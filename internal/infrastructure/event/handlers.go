package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/harshadelights/pricing/internal/domain/pricing"
	"github.com/harshadelights/pricing/internal/domain/shared"
	"github.com/harshadelights/pricing/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// RuleFinder loads a rule by code
type RuleFinder interface {
	FindByCode(ctx context.Context, code string) (*pricing.PricingRule, error)
}

// StandardRuleSyncer keeps the standard pricing-rule mirror of each dynamic rule
// in step with it: upserted while the rule is Active, disabled otherwise and
// removed with the rule.
type StandardRuleSyncer struct {
	rules   RuleFinder
	mirrors pricing.StandardRuleRepository
	logger  *zap.Logger
}

// NewStandardRuleSyncer creates a new StandardRuleSyncer
func NewStandardRuleSyncer(rules RuleFinder, mirrors pricing.StandardRuleRepository, log *zap.Logger) *StandardRuleSyncer {
	return &StandardRuleSyncer{rules: rules, mirrors: mirrors, logger: log}
}

// EventTypes returns the rule lifecycle events that can change a mirror
func (s *StandardRuleSyncer) EventTypes() []string {
	return []string{
		pricing.EventTypePricingRuleCreated,
		pricing.EventTypePricingRuleUpdated,
		pricing.EventTypePricingRuleCouponExhausted,
		pricing.EventTypePricingRuleDeleted,
	}
}

// Handle syncs the mirror of the rule the event is about
func (s *StandardRuleSyncer) Handle(ctx context.Context, event shared.DomainEvent) error {
	code, ok := ruleCodeOf(event)
	if !ok {
		return nil
	}
	name := pricing.StandardRuleNamePrefix + code

	if event.EventType() == pricing.EventTypePricingRuleDeleted {
		return s.mirrors.Delete(ctx, name)
	}

	rule, err := s.rules.FindByCode(ctx, code)
	if errors.Is(err, pricing.ErrRuleNotFound) {
		return s.mirrors.Delete(ctx, name)
	}
	if err != nil {
		return fmt.Errorf("failed to load rule %s for mirror sync: %w", code, err)
	}

	if rule.Status != pricing.RuleStatusActive || !rule.IsActive {
		if err := s.mirrors.Disable(ctx, name, event.OccurredAt()); err != nil {
			return fmt.Errorf("failed to disable standard rule %s: %w", name, err)
		}
		return nil
	}

	mirror := rule.ToStandardRule(event.OccurredAt())
	if err := s.mirrors.Upsert(ctx, &mirror); err != nil {
		return fmt.Errorf("failed to upsert standard rule %s: %w", name, err)
	}
	logger.WithLogger(ctx, s.logger).Debug("Standard rule synced", zap.String("name", name))
	return nil
}

// CouponExhaustionNotifier reports coupon rules that reached their usage limit
type CouponExhaustionNotifier struct {
	logger *zap.Logger
	notify func(ctx context.Context, event *pricing.PricingRuleCouponExhaustedEvent)
}

// NewCouponExhaustionNotifier creates a notifier that logs each exhaustion and,
// when notify is non-nil, forwards the event to it
func NewCouponExhaustionNotifier(log *zap.Logger, notify func(context.Context, *pricing.PricingRuleCouponExhaustedEvent)) *CouponExhaustionNotifier {
	return &CouponExhaustionNotifier{logger: log, notify: notify}
}

// EventTypes returns the coupon exhaustion event type
func (n *CouponExhaustionNotifier) EventTypes() []string {
	return []string{pricing.EventTypePricingRuleCouponExhausted}
}

// Handle logs the exhaustion
func (n *CouponExhaustionNotifier) Handle(ctx context.Context, event shared.DomainEvent) error {
	exhausted, ok := event.(*pricing.PricingRuleCouponExhaustedEvent)
	if !ok {
		return nil
	}
	logger.WithLogger(ctx, n.logger).Info("Coupon usage limit reached",
		zap.String("rule_code", exhausted.RuleCode),
		zap.String("coupon_code", exhausted.CouponCode),
		zap.Int("usage_limit", exhausted.UsageLimit),
	)
	if n.notify != nil {
		n.notify(ctx, exhausted)
	}
	return nil
}

func ruleCodeOf(event shared.DomainEvent) (string, bool) {
	switch e := event.(type) {
	case *pricing.PricingRuleCreatedEvent:
		return e.RuleCode, true
	case *pricing.PricingRuleUpdatedEvent:
		return e.RuleCode, true
	case *pricing.PricingRuleDeletedEvent:
		return e.RuleCode, true
	case *pricing.PricingRuleCouponExhaustedEvent:
		return e.RuleCode, true
	case *pricing.PricingRuleAppliedEvent:
		return e.RuleCode, true
	default:
		return "", false
	}
}

var (
	_ shared.EventHandler = (*StandardRuleSyncer)(nil)
	_ shared.EventHandler = (*CouponExhaustionNotifier)(nil)
)
