package expression

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshadelights/pricing/internal/domain/pricing"
)

func newEvaluator(t *testing.T) *CELEvaluator {
	t.Helper()
	e, err := NewCELEvaluator()
	require.NoError(t, err)
	return e
}

func TestCELEvaluator_Evaluate(t *testing.T) {
	e := newEvaluator(t)

	tests := []struct {
		name string
		expr string
		vars map[string]any
		want bool
	}{
		{"both hold", "qty > 5 and amount < 1000", map[string]any{"qty": 10.0, "amount": 500.0}, true},
		{"quantity too low", "qty > 5 and amount < 1000", map[string]any{"qty": 3.0, "amount": 500.0}, false},
		{"integer vars", "qty >= 10", map[string]any{"qty": 10}, true},
		{"decimal vars", "amount == 99.5", map[string]any{"amount": decimal.RequireFromString("99.5")}, true},
		{"string membership", "customer_group in ['Wholesale', 'Distributor']", map[string]any{"customer_group": "Wholesale"}, true},
		{"negation", "not territory == 'Hyderabad'", map[string]any{"territory": "Bengaluru"}, true},
		{"context key", "channel == 'online' and qty > 1", map[string]any{"channel": "online", "qty": 2.0}, true},
		{"cel syntax", "qty > 5.0 && customer.startsWith('CUST')", map[string]any{"qty": 6.0, "customer": "CUST-001"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCELEvaluator_Helpers(t *testing.T) {
	e := newEvaluator(t)
	vars := map[string]any{
		"qty":    10.0,
		"amount": 495.0,
		"skus":   []any{"LADDU", "BARFI", "PEDA"},
		"tier":   "3",
		"flags":  map[string]any{},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"abs(amount - 500) < 10", true},
		{"abs(-3) == 3", true},
		{"min(qty, 3) == 3", true},
		{"max(qty, 3, 25) == 25", true},
		{"min([qty, amount, 7]) == 7", true},
		{"max(['a', 'c', 'b']) == 'c'", true},
		{"round(amount / 100) == 5", true},
		{"round(2.5) == 2", true},
		{"round(amount / 7, 2) == 70.71", true},
		{"len(skus) == 3", true},
		{"len(skus) * 2 > qty - 5", true},
		{"len(customer) == 8", true},
		{"str(qty) == '10'", true},
		{"str(qty) + '-units' == '10-units'", true},
		{"float(tier) + qty == 13", true},
		{"int(qty / 3) == 3", true},
		{"bool(qty)", true},
		{"bool(flags)", false},
		{"not bool(0)", true},
		{"bool(skus) and bool('true')", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			require.NoError(t, e.Validate(tt.expr))
			got, err := e.Evaluate(tt.expr, withCustomer(vars))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func withCustomer(vars map[string]any) map[string]any {
	out := map[string]any{"customer": "CUST-001"}
	for k, v := range vars {
		out[k] = v
	}
	return out
}

func TestCELEvaluator_Modulo(t *testing.T) {
	e := newEvaluator(t)

	tests := []struct {
		name string
		expr string
		qty  any
		want bool
	}{
		{"even quantity", "qty % 2 == 0", 10.0, true},
		{"odd quantity", "qty % 2 == 0", 7.0, false},
		{"integer variable", "qty % 5 == 0", 15, true},
		{"fractional remainder", "qty % 1 == 0.5", 2.5, true},
		{"sign follows the divisor", "qty % 3 == 2", -7.0, true},
		{"cel integer literals", "int(qty) % int(4) == int(2)", 6.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, e.Validate(tt.expr))
			got, err := e.Evaluate(tt.expr, map[string]any{"qty": tt.qty})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := e.Evaluate("qty % 0 == 1", map[string]any{"qty": 4.0})
	assert.ErrorContains(t, err, "modulus by zero")
}

func TestCELEvaluator_EvaluateErrors(t *testing.T) {
	e := newEvaluator(t)

	_, err := e.Evaluate("qty >", map[string]any{"qty": 1.0})
	assert.Error(t, err)

	_, err = e.Evaluate("missing > 1", map[string]any{"qty": 1.0})
	assert.Error(t, err)

	_, err = e.Evaluate("qty + 1", map[string]any{"qty": 1.0})
	assert.ErrorContains(t, err, "not bool")
}

func TestCELEvaluator_Validate(t *testing.T) {
	e := newEvaluator(t)

	assert.NoError(t, e.Validate("qty > 5 and amount < 1000"))
	assert.NoError(t, e.Validate("customer_group == 'Wholesale' or territory == 'Hyderabad'"))
	assert.NoError(t, e.Validate("channel == 'online'"), "unknown context keys are only parsed")
	assert.Error(t, e.Validate("qty > (5"))
	assert.Error(t, e.Validate("qty * 2"), "built-in only conditions must yield a bool")
}

func TestCELEvaluator_CachesPrograms(t *testing.T) {
	e := newEvaluator(t)

	for i := 0; i < 3; i++ {
		_, err := e.Evaluate("qty > 1", map[string]any{"qty": 2.0})
		require.NoError(t, err)
	}
	_, err := e.Evaluate("qty>1", map[string]any{"qty": 2.0})
	require.NoError(t, err)

	e.mu.RLock()
	defer e.mu.RUnlock()
	assert.Len(t, e.prgCache, 2)
}

type fixedDirectory struct{}

func (fixedDirectory) CustomerProfile(_ context.Context, customer string) (pricing.CustomerProfile, error) {
	return pricing.CustomerProfile{Customer: customer, CustomerGroup: "Wholesale", Territory: "Hyderabad"}, nil
}

func (fixedDirectory) HasActiveSegment(context.Context, string, string) (bool, error) {
	return false, nil
}

func (fixedDirectory) ItemProfile(_ context.Context, item string) (pricing.ItemProfile, error) {
	return pricing.ItemProfile{ItemCode: item}, nil
}

func TestCELEvaluator_DrivesMatcher(t *testing.T) {
	e := newEvaluator(t)
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	discount := decimal.NewFromInt(10)
	rule, err := pricing.NewPricingRule(pricing.RuleConfig{
		RuleCode:           "SEAS-20240115-001",
		RuleName:           "Bulk order",
		RateOrDiscount:     pricing.RateOrDiscountDiscountPercentage,
		DiscountPercentage: &discount,
		IsActive:           true,
		RuleCondition:      "qty > 5 and amount < 1000 and customer_group == 'Wholesale'",
	}, e, "tester", now)
	require.NoError(t, err)

	m := pricing.NewMatcher(fixedDirectory{}, e)

	assert.True(t, m.IsApplicable(context.Background(), rule, pricing.Transaction{
		Customer: "CUST-001", ItemCode: "LADDU-500G",
		Quantity: decimal.NewFromInt(10), Amount: decimal.NewFromInt(500),
	}, now))

	res := m.Explain(context.Background(), rule, pricing.Transaction{
		Customer: "CUST-001", ItemCode: "LADDU-500G",
		Quantity: decimal.NewFromInt(3), Amount: decimal.NewFromInt(500),
	}, now)
	assert.False(t, res.Applicable)
	assert.Equal(t, pricing.ReasonConditionFalse, res.Reason)
}
