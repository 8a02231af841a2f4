package pricing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harshadelights/pricing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypePricingRule is the aggregate type for pricing rules
const AggregateTypePricingRule = "PricingRule"

const (
	// DefaultPriority is used when a rule is saved without a priority
	DefaultPriority = 1
	// DefaultRuleCodePrefix is used when the rule type yields no prefix
	DefaultRuleCodePrefix = "RULE"
)

// PricingRule is a dynamic pricing rule: a targeted scope, a validity window,
// quantity and amount bounds, a pricing mode, an optional coupon gate and an
// optional boolean condition over the transaction.
type PricingRule struct {
	shared.BaseAggregateRoot
	RuleCode    string `gorm:"type:varchar(64);not null;uniqueIndex"`
	RuleName    string `gorm:"type:varchar(200);not null"`
	RuleType    string `gorm:"type:varchar(64);index"`
	Description string `gorm:"type:text"`

	ApplicableFor ApplicableFor `gorm:"type:varchar(32);not null"`
	ScopeValue    string        `gorm:"type:varchar(140)"`

	ValidFrom *time.Time `gorm:"type:date"`
	ValidTo   *time.Time `gorm:"type:date"`
	TimeBased bool       `gorm:"not null"`
	StartTime *TimeOfDay `gorm:"type:varchar(8)"`
	EndTime   *TimeOfDay `gorm:"type:varchar(8)"`

	MinQty    *decimal.Decimal `gorm:"type:decimal(18,6)"`
	MaxQty    *decimal.Decimal `gorm:"type:decimal(18,6)"`
	MinAmount *decimal.Decimal `gorm:"type:decimal(18,2)"`
	MaxAmount *decimal.Decimal `gorm:"type:decimal(18,2)"`

	RateOrDiscount     RateOrDiscount   `gorm:"type:varchar(32);not null"`
	Rate               *decimal.Decimal `gorm:"type:decimal(18,6)"`
	DiscountPercentage *decimal.Decimal `gorm:"type:decimal(9,4)"`
	DiscountAmount     *decimal.Decimal `gorm:"type:decimal(18,6)"`
	MaxDiscountAmount  *decimal.Decimal `gorm:"type:decimal(18,2)"`
	RoundToNearest     *decimal.Decimal `gorm:"type:decimal(18,6)"`

	RequiresCoupon bool   `gorm:"not null"`
	CouponCode     string `gorm:"type:varchar(64);index"`
	UsageLimit     *int
	UsedCount      int `gorm:"not null"`

	RuleCondition string `gorm:"type:text"`

	VolumeDiscountEnabled bool                 `gorm:"not null"`
	VolumeSlabs           []VolumeDiscountSlab `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE"`

	Priority int        `gorm:"not null"`
	IsActive bool       `gorm:"not null"`
	Status   RuleStatus `gorm:"type:varchar(20);not null;index"`

	TrackUsage    bool            `gorm:"not null"`
	UsageLog      UsageLog        `gorm:"type:text;serializer:json"`
	RevenueImpact decimal.Decimal `gorm:"type:decimal(18,2);not null"`

	CreatedBy  string `gorm:"type:varchar(140)"`
	ModifiedBy string `gorm:"type:varchar(140)"`
}

// TableName returns the table name for GORM
func (PricingRule) TableName() string {
	return "pricing_rules"
}

// RuleConfig is the explicit, typed configuration of a pricing rule.
// Optional values are nil when absent.
type RuleConfig struct {
	RuleCode    string
	RuleName    string
	RuleType    string
	Description string

	ApplicableFor ApplicableFor
	ScopeValue    string

	ValidFrom *time.Time
	ValidTo   *time.Time
	TimeBased bool
	StartTime *TimeOfDay
	EndTime   *TimeOfDay

	MinQty    *decimal.Decimal
	MaxQty    *decimal.Decimal
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal

	RateOrDiscount     RateOrDiscount
	Rate               *decimal.Decimal
	DiscountPercentage *decimal.Decimal
	DiscountAmount     *decimal.Decimal
	MaxDiscountAmount  *decimal.Decimal
	RoundToNearest     *decimal.Decimal

	RequiresCoupon bool
	CouponCode     string
	UsageLimit     *int

	RuleCondition string

	VolumeDiscountEnabled bool
	VolumeSlabs           []SlabConfig

	Priority   int
	IsActive   bool
	TrackUsage *bool
}

// NewPricingRule creates a pricing rule from its configuration, validates it and
// derives its status at now. The rule code must already be assigned.
func NewPricingRule(cfg RuleConfig, conditions ConditionValidator, actingUser string, now time.Time) (*PricingRule, error) {
	rule := &PricingRule{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		RuleCode:          strings.TrimSpace(cfg.RuleCode),
		TrackUsage:        true,
		UsageLog:          UsageLog{},
		RevenueImpact:     decimal.Zero,
		CreatedBy:         actingUser,
		ModifiedBy:        actingUser,
	}
	rule.apply(cfg)

	if rule.RuleCode == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "rule code is required")
	}
	if err := rule.Validate(conditions); err != nil {
		return nil, err
	}
	rule.RefreshStatus(now)

	rule.AddDomainEvent(NewPricingRuleCreatedEvent(rule, now))
	return rule, nil
}

// Reconfigure replaces the rule's configuration, keeping its identity, usage
// counters and ledger. Volume slabs are rebuilt from the configuration.
func (r *PricingRule) Reconfigure(cfg RuleConfig, conditions ConditionValidator, actingUser string, now time.Time) error {
	previous := *r
	r.apply(cfg)
	if err := r.Validate(conditions); err != nil {
		*r = previous
		return err
	}
	r.ModifiedBy = actingUser
	r.Touch(now)
	r.RefreshStatus(now)
	r.IncrementVersion()

	r.AddDomainEvent(NewPricingRuleUpdatedEvent(r, now))
	return nil
}

func (r *PricingRule) apply(cfg RuleConfig) {
	r.RuleName = strings.TrimSpace(cfg.RuleName)
	r.RuleType = strings.TrimSpace(cfg.RuleType)
	r.Description = cfg.Description
	r.ApplicableFor = cfg.ApplicableFor
	if r.ApplicableFor == "" {
		r.ApplicableFor = ApplicableForAllCustomers
	}
	r.ScopeValue = strings.TrimSpace(cfg.ScopeValue)
	r.ValidFrom = dateOrNil(cfg.ValidFrom)
	r.ValidTo = dateOrNil(cfg.ValidTo)
	r.TimeBased = cfg.TimeBased
	r.StartTime = cfg.StartTime
	r.EndTime = cfg.EndTime
	r.MinQty = cfg.MinQty
	r.MaxQty = cfg.MaxQty
	r.MinAmount = cfg.MinAmount
	r.MaxAmount = cfg.MaxAmount
	r.RateOrDiscount = cfg.RateOrDiscount
	r.Rate = cfg.Rate
	r.DiscountPercentage = cfg.DiscountPercentage
	r.DiscountAmount = cfg.DiscountAmount
	r.MaxDiscountAmount = cfg.MaxDiscountAmount
	r.RoundToNearest = cfg.RoundToNearest
	r.RequiresCoupon = cfg.RequiresCoupon
	r.CouponCode = strings.TrimSpace(cfg.CouponCode)
	r.UsageLimit = cfg.UsageLimit
	r.RuleCondition = strings.TrimSpace(cfg.RuleCondition)
	r.VolumeDiscountEnabled = cfg.VolumeDiscountEnabled
	r.Priority = cfg.Priority
	if r.Priority == 0 {
		r.Priority = DefaultPriority
	}
	r.IsActive = cfg.IsActive
	if cfg.TrackUsage != nil {
		r.TrackUsage = *cfg.TrackUsage
	}

	r.VolumeSlabs = make([]VolumeDiscountSlab, 0, len(cfg.VolumeSlabs))
	for i, sc := range cfg.VolumeSlabs {
		slab := NewVolumeDiscountSlab(r.ID, sc)
		slab.Position = i
		r.VolumeSlabs = append(r.VolumeSlabs, slab)
	}
}

func dateOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := Date(*t)
	return &d
}

// Validate checks the rule configuration and returns a *shared.ValidationError
// listing every problem found. conditions may be nil, in which case the rule
// condition is not checked.
func (r *PricingRule) Validate(conditions ConditionValidator) error {
	verr := &shared.ValidationError{}

	if r.RuleName == "" {
		verr.Add("rule_name", "is required")
	}
	if !r.ApplicableFor.IsValid() {
		verr.Add("applicable_for", "unknown scope %q", r.ApplicableFor)
	} else if r.ApplicableFor.NeedsScopeValue() && r.ScopeValue == "" {
		verr.Add("scope_value", "is required for scope %q", r.ApplicableFor)
	}

	if r.ValidFrom != nil && r.ValidTo != nil && civilDay(*r.ValidTo) < civilDay(*r.ValidFrom) {
		verr.Add("valid_to", "must not be before valid_from")
	}
	if r.TimeBased {
		start, end := r.timeWindow()
		if !start.Before(end) {
			verr.Add("end_time", "must be after start_time")
		}
	}

	validateNonNegative(verr, "min_qty", r.MinQty)
	validateNonNegative(verr, "max_qty", r.MaxQty)
	validateNonNegative(verr, "min_amount", r.MinAmount)
	validateNonNegative(verr, "max_amount", r.MaxAmount)
	if r.MinQty != nil && r.MaxQty != nil && r.MaxQty.LessThanOrEqual(*r.MinQty) {
		verr.Add("max_qty", "must be greater than min_qty")
	}
	if r.MinAmount != nil && r.MaxAmount != nil && r.MaxAmount.LessThanOrEqual(*r.MinAmount) {
		verr.Add("max_amount", "must be greater than min_amount")
	}

	switch r.RateOrDiscount {
	case RateOrDiscountRate:
		if r.Rate == nil {
			verr.Add("rate", "is required when rate_or_discount is %q", r.RateOrDiscount)
		} else {
			validateNonNegative(verr, "rate", r.Rate)
		}
	case RateOrDiscountDiscountPercentage:
		if r.DiscountPercentage == nil {
			verr.Add("discount_percentage", "is required when rate_or_discount is %q", r.RateOrDiscount)
		} else if !r.DiscountPercentage.IsPositive() || r.DiscountPercentage.GreaterThan(hundred) {
			verr.Add("discount_percentage", "must be greater than 0 and at most 100")
		}
	case RateOrDiscountDiscountAmount:
		if r.DiscountAmount == nil {
			verr.Add("discount_amount", "is required when rate_or_discount is %q", r.RateOrDiscount)
		} else {
			validateNonNegative(verr, "discount_amount", r.DiscountAmount)
		}
	default:
		verr.Add("rate_or_discount", "unknown pricing mode %q", r.RateOrDiscount)
	}

	validateNonNegative(verr, "max_discount_amount", r.MaxDiscountAmount)
	if r.RoundToNearest != nil && !r.RoundToNearest.IsPositive() {
		verr.Add("round_to_nearest", "must be greater than 0")
	}

	if r.RequiresCoupon && r.CouponCode == "" {
		verr.Add("coupon_code", "is required when requires_coupon is set")
	}
	if r.UsageLimit != nil && *r.UsageLimit < 0 {
		verr.Add("usage_limit", "must not be negative")
	}

	if r.RuleCondition != "" && conditions != nil {
		if err := conditions.Validate(r.RuleCondition); err != nil {
			verr.Add("rule_condition", "invalid expression: %v", err)
		}
	}

	if r.VolumeDiscountEnabled {
		for i := range r.VolumeSlabs {
			r.VolumeSlabs[i].Validate(fmt.Sprintf("volume_slabs[%d]", i), verr)
		}
	}

	return verr.ErrOrNil()
}

func validateNonNegative(verr *shared.ValidationError, field string, v *decimal.Decimal) {
	if v != nil && v.IsNegative() {
		verr.Add(field, "must not be negative")
	}
}

// timeWindow returns the rule's time-of-day window with missing bounds defaulted
func (r *PricingRule) timeWindow() (TimeOfDay, TimeOfDay) {
	start, end := StartOfDay, EndOfDay
	if r.StartTime != nil {
		start = *r.StartTime
	}
	if r.EndTime != nil {
		end = *r.EndTime
	}
	return start, end
}

// HasUsageLimit reports whether a positive usage limit is set
func (r *PricingRule) HasUsageLimit() bool {
	return r.UsageLimit != nil && *r.UsageLimit > 0
}

// IsUsageExhausted reports whether the usage limit has been reached
func (r *PricingRule) IsUsageExhausted() bool {
	return r.HasUsageLimit() && r.UsedCount >= *r.UsageLimit
}

// RemainingUses returns the uses left under the limit, or nil when unlimited
func (r *PricingRule) RemainingUses() *int {
	if !r.HasUsageLimit() {
		return nil
	}
	remaining := *r.UsageLimit - r.UsedCount
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// DeriveStatus computes the lifecycle status at now without mutating the rule
func (r *PricingRule) DeriveStatus(now time.Time) RuleStatus {
	switch {
	case r.IsUsageExhausted():
		return RuleStatusExpired
	case r.ValidTo != nil && civilDay(now) > civilDay(*r.ValidTo):
		return RuleStatusExpired
	case r.ValidFrom != nil && civilDay(now) < civilDay(*r.ValidFrom):
		return RuleStatusDraft
	case r.IsActive:
		return RuleStatusActive
	default:
		return RuleStatusInactive
	}
}

// RefreshStatus recomputes the status at now. Expired rules are deactivated.
// It reports whether status or the active flag changed.
func (r *PricingRule) RefreshStatus(now time.Time) bool {
	status := r.DeriveStatus(now)
	active := r.IsActive
	if status == RuleStatusExpired {
		active = false
	}
	changed := status != r.Status || active != r.IsActive
	r.Status = status
	r.IsActive = active
	return changed
}

// IsVolumePricing reports whether volume slabs take part in pricing
func (r *PricingRule) IsVolumePricing() bool {
	return r.VolumeDiscountEnabled && len(r.VolumeSlabs) > 0
}

// StandardRuleName is the name of the mirrored standard pricing rule
func (r *PricingRule) StandardRuleName() string {
	return StandardRuleNamePrefix + r.RuleCode
}

// RuleCodePrefix derives the code prefix for a new rule from its type and date:
// the first four characters of the type without spaces, upper-cased, then the date.
func RuleCodePrefix(ruleType string, now time.Time) string {
	compact := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(ruleType), " ", ""))
	if runes := []rune(compact); len(runes) > 4 {
		compact = string(runes[:4])
	}
	if compact == "" {
		compact = DefaultRuleCodePrefix
	}
	return fmt.Sprintf("%s-%s-", compact, now.Format("20060102"))
}

// FormatRuleCode appends a three-digit sequence to a rule code prefix
func FormatRuleCode(prefix string, seq int) string {
	return fmt.Sprintf("%s%03d", prefix, seq)
}

// RuleCodeSequence extracts the sequence of a code produced by FormatRuleCode.
// It reports false for codes that do not start with prefix or end in digits.
func RuleCodeSequence(prefix, code string) (int, bool) {
	rest, ok := strings.CutPrefix(code, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	seq, err := strconv.Atoi(rest)
	if err != nil || seq < 0 || strings.ContainsAny(rest, "+-") {
		return 0, false
	}
	return seq, true
}
