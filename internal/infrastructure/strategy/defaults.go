package strategy

import (
	"github.com/harshadelights/pricing/internal/infrastructure/strategy/pricing"
)

// NewRegistryWithDefaults creates a new registry with the standard pricing
// strategy registered as the default
func NewRegistryWithDefaults() (*StrategyRegistry, error) {
	r := NewStrategyRegistry()

	standardPricing := pricing.NewStandardPricingStrategy()
	if err := r.RegisterPricingStrategy(standardPricing); err != nil {
		return nil, err
	}
	if err := r.SetDefaultPricing(standardPricing.Name()); err != nil {
		return nil, err
	}

	return r, nil
}
