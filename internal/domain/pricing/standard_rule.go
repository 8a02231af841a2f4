package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// StandardRuleNamePrefix prefixes the name of every mirrored standard rule
const StandardRuleNamePrefix = "HD_"

// Values of StandardPricingRule.ApplyOn
const (
	ApplyOnItemCode    = "Item Code"
	ApplyOnItemGroup   = "Item Group"
	ApplyOnTransaction = "Transaction"
)

// StandardPricingRule is the simplified pricing-rule record kept in sync with a
// dynamic rule for downstream systems that only understand this format. Customer
// segments have no counterpart; such rules mirror with no customer restriction.
type StandardPricingRule struct {
	Name               string           `gorm:"type:varchar(140);primaryKey"`
	Title              string           `gorm:"type:varchar(200);not null"`
	ApplyOn            string           `gorm:"type:varchar(32);not null"`
	ApplicableFor      string           `gorm:"type:varchar(32)"`
	RateOrDiscount     RateOrDiscount   `gorm:"type:varchar(32);not null"`
	Rate               *decimal.Decimal `gorm:"type:decimal(18,6)"`
	DiscountPercentage *decimal.Decimal `gorm:"type:decimal(9,4)"`
	DiscountAmount     *decimal.Decimal `gorm:"type:decimal(18,6)"`
	Priority           int              `gorm:"not null"`
	ValidFrom          *time.Time       `gorm:"type:date"`
	ValidUpto          *time.Time       `gorm:"type:date"`
	MinQty             *decimal.Decimal `gorm:"type:decimal(18,6)"`
	MaxQty             *decimal.Decimal `gorm:"type:decimal(18,6)"`
	MinAmt             *decimal.Decimal `gorm:"type:decimal(18,2)"`
	MaxAmt             *decimal.Decimal `gorm:"type:decimal(18,2)"`
	Customer           string           `gorm:"type:varchar(140)"`
	CustomerGroup      string           `gorm:"type:varchar(140)"`
	Territory          string           `gorm:"type:varchar(140)"`
	ItemCode           string           `gorm:"type:varchar(140)"`
	ItemGroup          string           `gorm:"type:varchar(140)"`
	Disabled           bool             `gorm:"not null"`
	UpdatedAt          time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StandardPricingRule) TableName() string {
	return "standard_pricing_rules"
}

// ToStandardRule maps the rule onto its standard pricing-rule mirror
func (r *PricingRule) ToStandardRule(now time.Time) StandardPricingRule {
	std := StandardPricingRule{
		Name:           r.StandardRuleName(),
		Title:          r.RuleName,
		ApplyOn:        ApplyOnTransaction,
		RateOrDiscount: r.RateOrDiscount,
		Priority:       r.Priority,
		ValidFrom:      r.ValidFrom,
		ValidUpto:      r.ValidTo,
		MinQty:         r.MinQty,
		MaxQty:         r.MaxQty,
		MinAmt:         r.MinAmount,
		MaxAmt:         r.MaxAmount,
		Disabled:       !(r.IsActive && r.Status == RuleStatusActive),
		UpdatedAt:      now,
	}

	switch r.RateOrDiscount {
	case RateOrDiscountRate:
		std.Rate = r.Rate
	case RateOrDiscountDiscountPercentage:
		std.DiscountPercentage = r.DiscountPercentage
	case RateOrDiscountDiscountAmount:
		std.DiscountAmount = r.DiscountAmount
	}

	switch r.ApplicableFor {
	case ApplicableForCustomer:
		std.ApplicableFor = string(ApplicableForCustomer)
		std.Customer = r.ScopeValue
	case ApplicableForCustomerGroup:
		std.ApplicableFor = string(ApplicableForCustomerGroup)
		std.CustomerGroup = r.ScopeValue
	case ApplicableForTerritory:
		std.ApplicableFor = string(ApplicableForTerritory)
		std.Territory = r.ScopeValue
	case ApplicableForItemCode:
		std.ApplyOn = ApplyOnItemCode
		std.ItemCode = r.ScopeValue
	case ApplicableForItemGroup:
		std.ApplyOn = ApplyOnItemGroup
		std.ItemGroup = r.ScopeValue
	}
	return std
}
