package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/harshadelights/pricing/internal/domain/shared/strategy"
)

// StandardPricingStrategy prices a line at its base rate without discounts
type StandardPricingStrategy struct {
	strategy.BaseStrategy
}

// NewStandardPricingStrategy creates a new standard pricing strategy
func NewStandardPricingStrategy() *StandardPricingStrategy {
	return &StandardPricingStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"standard",
			strategy.StrategyTypePricing,
			"Standard pricing using the base rate without discounts",
		),
	}
}

// CalculatePrice calculates the price using the base rate
func (s *StandardPricingStrategy) CalculatePrice(
	ctx context.Context,
	pricingCtx strategy.PricingContext,
) (strategy.PricingResult, error) {
	totalPrice := pricingCtx.BaseRate.Mul(pricingCtx.Quantity).Round(2)

	return strategy.PricingResult{
		BaseRate:        pricingCtx.BaseRate,
		UnitPrice:       pricingCtx.BaseRate,
		TotalPrice:      totalPrice,
		DiscountAmount:  decimal.Zero,
		DiscountPercent: decimal.Zero,
		Savings:         decimal.Zero,
		AppliedRules:    []string{},
	}, nil
}

// Priority is the lowest possible so the standard strategy only prices what nothing else does
func (s *StandardPricingStrategy) Priority() int {
	return 0
}
