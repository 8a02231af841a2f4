package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func ip(v int) *int {
	return &v
}

func day(s string) *time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &t
}

func baseConfig() RuleConfig {
	return RuleConfig{
		RuleCode:           "SEAS-20240115-001",
		RuleName:           "Winter sale",
		RuleType:           "Seasonal",
		ApplicableFor:      ApplicableForAllCustomers,
		RateOrDiscount:     RateOrDiscountDiscountPercentage,
		DiscountPercentage: dp("20"),
		IsActive:           true,
	}
}

func newTestRule(t *testing.T, mutate func(cfg *RuleConfig)) *PricingRule {
	t.Helper()
	cfg := baseConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	rule, err := NewPricingRule(cfg, nil, "admin", testNow)
	require.NoError(t, err)
	return rule
}

// stubDirectory is an in-memory PartyDirectory
type stubDirectory struct {
	customers map[string]CustomerProfile
	segments  map[string][]string
	items     map[string]ItemProfile
	err       error
	calls     int
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		customers: map[string]CustomerProfile{
			"CUST-001": {Customer: "CUST-001", CustomerGroup: "Wholesale", Territory: "Hyderabad", DefaultPriceList: "Wholesale Selling"},
			"CUST-002": {Customer: "CUST-002", CustomerGroup: "Retail", Territory: "Bengaluru"},
		},
		segments: map[string][]string{
			"CUST-001": {"Premium"},
		},
		items: map[string]ItemProfile{
			"LADDU-500G":  {ItemCode: "LADDU-500G", ItemGroup: "Sweets", StandardRate: d("250")},
			"MIXTURE-1KG": {ItemCode: "MIXTURE-1KG", ItemGroup: "Savouries", StandardRate: d("300")},
		},
	}
}

func (s *stubDirectory) CustomerProfile(_ context.Context, customer string) (CustomerProfile, error) {
	s.calls++
	if s.err != nil {
		return CustomerProfile{}, s.err
	}
	p, ok := s.customers[customer]
	if !ok {
		return CustomerProfile{}, ErrUnknownParty
	}
	return p, nil
}

func (s *stubDirectory) HasActiveSegment(_ context.Context, customer, segment string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	for _, seg := range s.segments[customer] {
		if seg == segment {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubDirectory) ItemProfile(_ context.Context, itemCode string) (ItemProfile, error) {
	s.calls++
	if s.err != nil {
		return ItemProfile{}, s.err
	}
	p, ok := s.items[itemCode]
	if !ok {
		return ItemProfile{}, ErrUnknownParty
	}
	return p, nil
}

// stubConditions evaluates conditions through a lookup table keyed by expression
type stubConditions struct {
	eval     func(expr string, vars map[string]any) (bool, error)
	lastVars map[string]any
}

func (s *stubConditions) Validate(expr string) error {
	if expr == "broken (" {
		return errors.New("syntax error")
	}
	return nil
}

func (s *stubConditions) Evaluate(expr string, vars map[string]any) (bool, error) {
	s.lastVars = vars
	return s.eval(expr, vars)
}
