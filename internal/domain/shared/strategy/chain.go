package strategy

import (
	"context"
	"errors"
	"sort"
)

// ChainPricingStrategy tries strategies in descending priority and returns the first
// result that applies. When none applies the fallback prices the line.
type ChainPricingStrategy struct {
	BaseStrategy
	strategies []PricingStrategy
	fallback   PricingStrategy
}

// NewChainPricingStrategy creates a chain over the given strategies.
// Strategies with equal priority keep their input order.
func NewChainPricingStrategy(strategies []PricingStrategy, fallback PricingStrategy) *ChainPricingStrategy {
	ordered := make([]PricingStrategy, len(strategies))
	copy(ordered, strategies)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() > ordered[j].Priority()
	})
	return &ChainPricingStrategy{
		BaseStrategy: NewBaseStrategy(
			"chain",
			StrategyTypePricing,
			"Applies the highest-priority strategy that prices the line",
		),
		strategies: ordered,
		fallback:   fallback,
	}
}

// Strategies returns the strategies in evaluation order
func (s *ChainPricingStrategy) Strategies() []PricingStrategy {
	return s.strategies
}

// CalculatePrice returns the first applicable strategy's result
func (s *ChainPricingStrategy) CalculatePrice(ctx context.Context, pricingCtx PricingContext) (PricingResult, error) {
	for _, st := range s.strategies {
		result, err := st.CalculatePrice(ctx, pricingCtx)
		if errors.Is(err, ErrNotApplicable) {
			continue
		}
		if err != nil {
			return PricingResult{}, err
		}
		return result, nil
	}
	if s.fallback == nil {
		return PricingResult{}, ErrNotApplicable
	}
	return s.fallback.CalculatePrice(ctx, pricingCtx)
}

// Priority of a chain is the priority of its first strategy
func (s *ChainPricingStrategy) Priority() int {
	if len(s.strategies) == 0 {
		return 0
	}
	return s.strategies[0].Priority()
}
