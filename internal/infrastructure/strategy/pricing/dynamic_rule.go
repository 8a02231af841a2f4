package pricing

import (
	"context"
	"time"

	rules "github.com/harshadelights/pricing/internal/domain/pricing"
	"github.com/harshadelights/pricing/internal/domain/shared/strategy"
)

// DynamicRulePricingStrategy prices a line under a single stored pricing rule.
// It returns strategy.ErrNotApplicable when the rule does not match the line.
type DynamicRulePricingStrategy struct {
	strategy.BaseStrategy
	rule       *rules.PricingRule
	matcher    *rules.Matcher
	calculator *rules.Calculator
}

// NewDynamicRulePricingStrategy creates a strategy for rule
func NewDynamicRulePricingStrategy(rule *rules.PricingRule, matcher *rules.Matcher, calculator *rules.Calculator) *DynamicRulePricingStrategy {
	return &DynamicRulePricingStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			rule.RuleCode,
			strategy.StrategyTypePricing,
			rule.RuleName,
		),
		rule:       rule,
		matcher:    matcher,
		calculator: calculator,
	}
}

// Rule returns the pricing rule behind the strategy
func (s *DynamicRulePricingStrategy) Rule() *rules.PricingRule {
	return s.rule
}

// CalculatePrice prices the line when the rule applies to it
func (s *DynamicRulePricingStrategy) CalculatePrice(
	ctx context.Context,
	pricingCtx strategy.PricingContext,
) (strategy.PricingResult, error) {
	now := pricingCtx.Now
	if now.IsZero() {
		now = time.Now()
	}

	txn := TransactionFromContext(pricingCtx)
	if !s.matcher.IsApplicable(ctx, s.rule, txn, now) {
		return strategy.PricingResult{}, strategy.ErrNotApplicable
	}

	result := s.calculator.Calculate(s.rule, pricingCtx.BaseRate, pricingCtx.Quantity, now)
	return ToStrategyResult(result), nil
}

// Priority follows the rule priority
func (s *DynamicRulePricingStrategy) Priority() int {
	return s.rule.Priority
}

// TransactionFromContext converts a pricing context into the transaction the matcher checks
func TransactionFromContext(pricingCtx strategy.PricingContext) rules.Transaction {
	return rules.Transaction{
		Customer:   pricingCtx.CustomerID,
		ItemCode:   pricingCtx.ItemCode,
		Quantity:   pricingCtx.Quantity,
		Amount:     pricingCtx.Amount,
		CouponCode: pricingCtx.CouponCode,
		Context:    pricingCtx.Attributes,
	}
}

// ToStrategyResult converts a rule calculation into a chain result
func ToStrategyResult(result rules.PricingResult) strategy.PricingResult {
	return strategy.PricingResult{
		RuleCode:        result.RuleCode,
		BaseRate:        result.BaseRate,
		UnitPrice:       result.FinalRate,
		TotalPrice:      result.FinalAmount,
		DiscountAmount:  result.DiscountAmount,
		DiscountPercent: result.DiscountPercentage,
		Savings:         result.Savings,
		IsVolumePricing: result.IsVolumePricing,
		VolumeSlab:      result.VolumeSlab,
		AppliedRules:    []string{result.RuleCode},
	}
}
