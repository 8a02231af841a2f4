package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStrategy struct {
	BaseStrategy
	priority int
	err      error
	calls    int
}

func newFake(name string, priority int, err error) *fakeStrategy {
	return &fakeStrategy{
		BaseStrategy: NewBaseStrategy(name, StrategyTypePricing, "fake"),
		priority:     priority,
		err:          err,
	}
}

func (s *fakeStrategy) CalculatePrice(_ context.Context, pc PricingContext) (PricingResult, error) {
	s.calls++
	if s.err != nil {
		return PricingResult{}, s.err
	}
	return PricingResult{RuleCode: s.Name(), UnitPrice: pc.BaseRate}, nil
}

func (s *fakeStrategy) Priority() int {
	return s.priority
}

func TestChainPricingStrategy_OrdersByPriority(t *testing.T) {
	low := newFake("low", 1, nil)
	high := newFake("high", 5, nil)
	tieFirst := newFake("tie-first", 3, nil)
	tieSecond := newFake("tie-second", 3, nil)

	chain := NewChainPricingStrategy([]PricingStrategy{low, tieFirst, high, tieSecond}, nil)

	names := make([]string, 0, 4)
	for _, s := range chain.Strategies() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"high", "tie-first", "tie-second", "low"}, names)
	assert.Equal(t, 5, chain.Priority())
}

func TestChainPricingStrategy_FirstApplicableWins(t *testing.T) {
	skipped := newFake("skipped", 9, ErrNotApplicable)
	winner := newFake("winner", 5, nil)
	later := newFake("later", 1, nil)

	chain := NewChainPricingStrategy([]PricingStrategy{later, winner, skipped}, nil)
	result, err := chain.CalculatePrice(context.Background(), PricingContext{BaseRate: decimal.NewFromInt(100)})
	require.NoError(t, err)

	assert.Equal(t, "winner", result.RuleCode)
	assert.Equal(t, 1, skipped.calls)
	assert.Equal(t, 0, later.calls)
}

func TestChainPricingStrategy_Fallback(t *testing.T) {
	fallback := newFake("fallback", 0, nil)
	chain := NewChainPricingStrategy([]PricingStrategy{newFake("a", 2, ErrNotApplicable)}, fallback)

	result, err := chain.CalculatePrice(context.Background(), PricingContext{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.RuleCode)
}

func TestChainPricingStrategy_NoFallback(t *testing.T) {
	chain := NewChainPricingStrategy(nil, nil)

	_, err := chain.CalculatePrice(context.Background(), PricingContext{})
	assert.ErrorIs(t, err, ErrNotApplicable)
	assert.Equal(t, 0, chain.Priority())
}

func TestChainPricingStrategy_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	chain := NewChainPricingStrategy([]PricingStrategy{newFake("broken", 1, boom)}, newFake("fallback", 0, nil))

	_, err := chain.CalculatePrice(context.Background(), PricingContext{})
	assert.ErrorIs(t, err, boom)
}
