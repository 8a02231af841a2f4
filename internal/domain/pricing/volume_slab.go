package pricing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harshadelights/pricing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// VolumeDiscountSlab is a quantity-range tier carrying its own discount formula
type VolumeDiscountSlab struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey"`
	RuleID        uuid.UUID        `gorm:"type:uuid;not null;index"`
	SlabName      string           `gorm:"type:varchar(100)"`
	MinQuantity   decimal.Decimal  `gorm:"type:decimal(18,6);not null"`
	MaxQuantity   *decimal.Decimal `gorm:"type:decimal(18,6)"`
	DiscountType  SlabDiscountType `gorm:"type:varchar(20);not null"`
	DiscountValue decimal.Decimal  `gorm:"type:decimal(18,6);not null"`
	EffectiveFrom *time.Time       `gorm:"type:date"`
	EffectiveTo   *time.Time       `gorm:"type:date"`
	IsActive      bool             `gorm:"not null"`
	SortOrder     decimal.Decimal  `gorm:"type:decimal(18,6);not null"`
	// Position is the index of the slab in the rule as last saved
	Position int `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (VolumeDiscountSlab) TableName() string {
	return "volume_discount_slabs"
}

// SlabConfig is the administrator-supplied definition of a slab
type SlabConfig struct {
	SlabName      string
	MinQuantity   decimal.Decimal
	MaxQuantity   *decimal.Decimal
	DiscountType  SlabDiscountType
	DiscountValue decimal.Decimal
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
	IsActive      bool
	SortOrder     *decimal.Decimal
}

// NewVolumeDiscountSlab builds a slab for a rule, filling in the default name and sort order
func NewVolumeDiscountSlab(ruleID uuid.UUID, cfg SlabConfig) VolumeDiscountSlab {
	slab := VolumeDiscountSlab{
		ID:            uuid.New(),
		RuleID:        ruleID,
		SlabName:      cfg.SlabName,
		MinQuantity:   cfg.MinQuantity,
		MaxQuantity:   cfg.MaxQuantity,
		DiscountType:  cfg.DiscountType,
		DiscountValue: cfg.DiscountValue,
		EffectiveFrom: cfg.EffectiveFrom,
		EffectiveTo:   cfg.EffectiveTo,
		IsActive:      cfg.IsActive,
	}
	if cfg.SortOrder != nil {
		slab.SortOrder = *cfg.SortOrder
	}
	slab.ApplyDefaults()
	return slab
}

// ApplyDefaults sets sort order to the minimum quantity and derives a name from the range
func (s *VolumeDiscountSlab) ApplyDefaults() {
	if s.SortOrder.IsZero() {
		s.SortOrder = s.MinQuantity
	}
	if s.SlabName == "" {
		s.SlabName = s.RangeLabel()
	}
}

// RangeLabel renders the quantity range, e.g. "10-49 units" or "50+ units"
func (s *VolumeDiscountSlab) RangeLabel() string {
	if s.MaxQuantity != nil {
		return fmt.Sprintf("%s-%s units", s.MinQuantity.String(), s.MaxQuantity.String())
	}
	return fmt.Sprintf("%s+ units", s.MinQuantity.String())
}

// Validate checks the slab configuration, recording problems under the given field prefix
func (s *VolumeDiscountSlab) Validate(prefix string, verr *shared.ValidationError) {
	if !s.MinQuantity.IsPositive() {
		verr.Add(prefix+".min_quantity", "must be greater than 0")
	}
	if s.MaxQuantity != nil && s.MaxQuantity.LessThanOrEqual(s.MinQuantity) {
		verr.Add(prefix+".max_quantity", "must be greater than min_quantity")
	}
	switch s.DiscountType {
	case SlabDiscountPercentage:
		if !s.DiscountValue.IsPositive() || s.DiscountValue.GreaterThan(hundred) {
			verr.Add(prefix+".discount_value", "percentage must be greater than 0 and at most 100")
		}
	case SlabDiscountFixedAmount:
		if !s.DiscountValue.IsPositive() {
			verr.Add(prefix+".discount_value", "fixed amount must be greater than 0")
		}
	case SlabDiscountFixedRate:
		if !s.DiscountValue.IsPositive() {
			verr.Add(prefix+".discount_value", "fixed rate must be greater than 0")
		}
	default:
		verr.Add(prefix+".discount_type", "unknown discount type %q", s.DiscountType)
	}
	if s.EffectiveFrom != nil && s.EffectiveTo != nil && civilDay(*s.EffectiveTo) < civilDay(*s.EffectiveFrom) {
		verr.Add(prefix+".effective_to", "must not be before effective_from")
	}
}

// IsQuantityApplicable reports whether the slab is active, effective at now and contains qty
func (s *VolumeDiscountSlab) IsQuantityApplicable(qty decimal.Decimal, now time.Time) bool {
	if !s.IsActive {
		return false
	}
	if !dateWithin(now, s.EffectiveFrom, s.EffectiveTo) {
		return false
	}
	if qty.LessThan(s.MinQuantity) {
		return false
	}
	if s.MaxQuantity != nil && qty.GreaterThan(*s.MaxQuantity) {
		return false
	}
	return true
}

// SlabDiscount is the per-slab discount computation
type SlabDiscount struct {
	DiscountPerUnit decimal.Decimal
	DiscountedRate  decimal.Decimal
	TotalDiscount   decimal.Decimal
	FinalAmount     decimal.Decimal
}

// CalculateDiscount applies the slab's formula to a base rate and quantity.
// The discounted rate never drops below zero.
func (s *VolumeDiscountSlab) CalculateDiscount(baseRate, qty decimal.Decimal) SlabDiscount {
	var perUnit, rate decimal.Decimal
	switch s.DiscountType {
	case SlabDiscountPercentage:
		perUnit = baseRate.Mul(s.DiscountValue).Div(hundred)
		rate = baseRate.Sub(perUnit)
	case SlabDiscountFixedAmount:
		perUnit = decimal.Min(s.DiscountValue, baseRate)
		rate = baseRate.Sub(perUnit)
	case SlabDiscountFixedRate:
		rate = s.DiscountValue
		perUnit = decimal.Max(decimal.Zero, baseRate.Sub(rate))
	default:
		rate = baseRate
	}
	rate = decimal.Max(decimal.Zero, rate)
	return SlabDiscount{
		DiscountPerUnit: perUnit,
		DiscountedRate:  rate,
		TotalDiscount:   perUnit.Mul(qty),
		FinalAmount:     rate.Mul(qty),
	}
}

// SlabSummary is a read-only description of a slab
type SlabSummary struct {
	SlabName      string           `json:"slab_name"`
	QuantityRange string           `json:"quantity_range"`
	DiscountType  SlabDiscountType `json:"discount_type"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	IsActive      bool             `json:"is_active"`
	EffectiveFrom *time.Time       `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time       `json:"effective_to,omitempty"`
}

// Summary describes the slab
func (s *VolumeDiscountSlab) Summary() SlabSummary {
	return SlabSummary{
		SlabName:      s.SlabName,
		QuantityRange: s.RangeLabel(),
		DiscountType:  s.DiscountType,
		DiscountValue: s.DiscountValue,
		IsActive:      s.IsActive,
		EffectiveFrom: s.EffectiveFrom,
		EffectiveTo:   s.EffectiveTo,
	}
}
