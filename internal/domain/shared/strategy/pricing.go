package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotApplicable is returned by a pricing strategy that does not price the given line.
// Callers move on to the next strategy.
var ErrNotApplicable = errors.New("pricing strategy not applicable")

// PricingContext provides context for pricing one sales line
type PricingContext struct {
	CustomerID string
	ItemCode   string
	Quantity   decimal.Decimal
	Amount     decimal.Decimal
	BaseRate   decimal.Decimal
	CouponCode string
	// Attributes are caller-supplied values visible to rule conditions
	Attributes map[string]any
	Now        time.Time
}

// PricingResult contains the result of pricing calculation
type PricingResult struct {
	RuleCode        string
	BaseRate        decimal.Decimal
	UnitPrice       decimal.Decimal
	TotalPrice      decimal.Decimal
	DiscountAmount  decimal.Decimal
	DiscountPercent decimal.Decimal
	Savings         decimal.Decimal
	IsVolumePricing bool
	VolumeSlab      string
	AppliedRules    []string
}

// PricingStrategy defines the interface for pricing calculation
type PricingStrategy interface {
	Strategy
	// CalculatePrice prices the line, or returns ErrNotApplicable
	CalculatePrice(ctx context.Context, pricingCtx PricingContext) (PricingResult, error)
	// Priority orders strategies inside a chain; higher runs first
	Priority() int
}
