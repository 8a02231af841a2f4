package pricing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func TestProperty_DiscountAmountNeverExceedsLineValue(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("final rate is never negative and discount never exceeds base*qty", prop.ForAll(
		func(baseCents, discountCents, qty int64) bool {
			base := decimal.New(baseCents, -2)
			amount := decimal.New(discountCents, -2)
			quantity := decimal.NewFromInt(qty)
			rule := &PricingRule{
				RuleCode:       "PROP",
				RateOrDiscount: RateOrDiscountDiscountAmount,
				DiscountAmount: &amount,
			}

			result := NewCalculator().Calculate(rule, base, quantity, testNow)

			return !result.FinalRate.IsNegative() &&
				result.DiscountAmount.LessThanOrEqual(base.Mul(quantity)) &&
				result.Savings.Equal(result.DiscountAmount)
		},
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(0, 2_000_000),
		gen.Int64Range(1, 500),
	))

	properties.TestingRun(t)
}

func TestProperty_PercentageDiscountSavingsMatchDiscount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("savings equal discount amount for percentage rules", prop.ForAll(
		func(baseCents int64, pct int64, qty int64) bool {
			base := decimal.New(baseCents, -2)
			percentage := decimal.NewFromInt(pct)
			quantity := decimal.NewFromInt(qty)
			rule := &PricingRule{
				RuleCode:           "PROP",
				RateOrDiscount:     RateOrDiscountDiscountPercentage,
				DiscountPercentage: &percentage,
			}

			result := NewCalculator().Calculate(rule, base, quantity, testNow)

			return result.Savings.Sub(result.DiscountAmount).Abs().LessThanOrEqual(decimal.New(1, -2)) &&
				result.FinalAmount.LessThanOrEqual(base.Mul(quantity))
		},
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(1, 100),
		gen.Int64Range(1, 1000),
	))

	properties.TestingRun(t)
}

func TestProperty_SelectSlabPicksHighestMatchingThreshold(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("selected slab has the maximum min_quantity among matches", prop.ForAll(
		func(thresholds []int64, qty int64) bool {
			slabs := make([]VolumeDiscountSlab, 0, len(thresholds))
			for _, th := range thresholds {
				slabs = append(slabs, NewVolumeDiscountSlab(uuid.New(), SlabConfig{
					MinQuantity:   decimal.NewFromInt(th),
					DiscountType:  SlabDiscountPercentage,
					DiscountValue: decimal.NewFromInt(5),
					IsActive:      true,
				}))
			}
			quantity := decimal.NewFromInt(qty)

			var best int64 = -1
			for _, th := range thresholds {
				if th <= qty && th > best {
					best = th
				}
			}

			selected := SelectSlab(slabs, quantity, testNow)
			if best < 0 {
				return selected == nil
			}
			return selected != nil && selected.MinQuantity.Equal(decimal.NewFromInt(best))
		},
		gen.SliceOf(gen.Int64Range(1, 200)),
		gen.Int64Range(0, 250),
	))

	properties.TestingRun(t)
}

func TestProperty_MatcherIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	minQty := decimal.NewFromInt(10)
	maxQty := decimal.NewFromInt(50)
	rule := &PricingRule{
		RuleCode:       "PROP",
		ApplicableFor:  ApplicableForCustomerGroup,
		ScopeValue:     "Wholesale",
		MinQty:         &minQty,
		MaxQty:         &maxQty,
		RateOrDiscount: RateOrDiscountDiscountPercentage,
		IsActive:       true,
		Status:         RuleStatusActive,
	}
	m := NewMatcher(newStubDirectory(), nil)

	properties.Property("two identical calls give identical answers", prop.ForAll(
		func(customer string, qty int64) bool {
			line := Transaction{Customer: customer, ItemCode: "LADDU-500G", Quantity: decimal.NewFromInt(qty), Amount: decimal.NewFromInt(qty * 10)}
			first := m.IsApplicable(context.Background(), rule, line, testNow)
			second := m.IsApplicable(context.Background(), rule, line, testNow)
			inBounds := qty >= 10 && qty <= 50
			return first == second && (!first || inBounds)
		},
		gen.OneConstOf("CUST-001", "CUST-002", "CUST-404"),
		gen.Int64Range(0, 100),
	))

	properties.TestingRun(t)
}
