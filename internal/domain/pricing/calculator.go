package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ratePlaces    = 6
	amountPlaces  = 2
	percentPlaces = 2
)

// PricingResult is the price computed for one line under one rule
type PricingResult struct {
	RuleCode           string          `json:"rule_code"`
	RuleName           string          `json:"rule_name"`
	Quantity           decimal.Decimal `json:"quantity"`
	BaseRate           decimal.Decimal `json:"base_rate"`
	FinalRate          decimal.Decimal `json:"final_rate"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	FinalAmount        decimal.Decimal `json:"final_amount"`
	Savings            decimal.Decimal `json:"savings"`
	IsVolumePricing    bool            `json:"is_volume_pricing"`
	VolumeSlab         string          `json:"volume_slab,omitempty"`
}

// Calculator computes prices for applicable rules. It is stateless and safe for
// concurrent use.
type Calculator struct{}

// NewCalculator creates a new price calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate prices a line under rule. The caller must have established that the
// rule applies; the result for a non-applicable rule is meaningless.
func (c *Calculator) Calculate(rule *PricingRule, baseRate, qty decimal.Decimal, now time.Time) PricingResult {
	if rule.IsVolumePricing() {
		if slab := ResolveSlab(rule.VolumeSlabs, baseRate, qty, now); slab != nil {
			return volumeResult(rule, slab)
		}
	}

	var finalRate, discountAmount, discountPercent decimal.Decimal
	switch rule.RateOrDiscount {
	case RateOrDiscountRate:
		rate := valueOrZero(rule.Rate)
		finalRate = rate
		discountAmount = baseRate.Sub(rate).Mul(qty)
		discountPercent = percentOf(baseRate.Sub(rate), baseRate)
	case RateOrDiscountDiscountPercentage:
		pct := valueOrZero(rule.DiscountPercentage)
		discountRate := baseRate.Mul(pct).Div(hundred)
		finalRate = baseRate.Sub(discountRate)
		discountAmount = discountRate.Mul(qty)
		discountPercent = pct
	case RateOrDiscountDiscountAmount:
		amount := valueOrZero(rule.DiscountAmount)
		perUnit := decimal.Min(amount, baseRate)
		finalRate = decimal.Max(decimal.Zero, baseRate.Sub(amount))
		discountAmount = perUnit.Mul(qty)
		discountPercent = percentOf(perUnit, baseRate)
	default:
		finalRate = baseRate
	}

	if rule.MaxDiscountAmount != nil && discountAmount.GreaterThan(*rule.MaxDiscountAmount) {
		capAmount := *rule.MaxDiscountAmount
		discountAmount = capAmount
		if !qty.IsZero() {
			finalRate = baseRate.Sub(capAmount.Div(qty))
		}
		discountPercent = percentOf(capAmount, baseRate.Mul(qty))
	}

	if rule.RoundToNearest != nil && rule.RoundToNearest.IsPositive() && !finalRate.IsZero() {
		finalRate = RoundToNearest(finalRate, *rule.RoundToNearest)
	}

	finalRate = finalRate.Round(ratePlaces)
	finalAmount := finalRate.Mul(qty)
	return PricingResult{
		RuleCode:           rule.RuleCode,
		RuleName:           rule.RuleName,
		Quantity:           qty,
		BaseRate:           baseRate,
		FinalRate:          finalRate,
		DiscountAmount:     discountAmount.Round(amountPlaces),
		DiscountPercentage: discountPercent.Round(percentPlaces),
		FinalAmount:        finalAmount.Round(amountPlaces),
		Savings:            baseRate.Mul(qty).Sub(finalAmount).Round(amountPlaces),
	}
}

func volumeResult(rule *PricingRule, slab *SlabResult) PricingResult {
	finalRate := slab.DiscountedRate.Round(ratePlaces)
	return PricingResult{
		RuleCode:           rule.RuleCode,
		RuleName:           rule.RuleName,
		Quantity:           slab.Quantity,
		BaseRate:           slab.BaseRate,
		FinalRate:          finalRate,
		DiscountAmount:     slab.TotalDiscount.Round(amountPlaces),
		DiscountPercentage: percentOf(slab.DiscountPerUnit, slab.BaseRate).Round(percentPlaces),
		FinalAmount:        slab.FinalAmount.Round(amountPlaces),
		Savings:            slab.BaseRate.Mul(slab.Quantity).Sub(slab.FinalAmount).Round(amountPlaces),
		IsVolumePricing:    true,
		VolumeSlab:         slab.Slab.SlabName,
	}
}

// RoundToNearest rounds v to the nearest multiple of step. Exact halves go to the
// even multiple.
func RoundToNearest(v, step decimal.Decimal) decimal.Decimal {
	return v.Div(step).RoundBank(0).Mul(step)
}

// percentOf returns part/whole*100, or zero when whole is zero
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

func valueOrZero(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}
