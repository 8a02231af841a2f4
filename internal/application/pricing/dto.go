package pricing

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/harshadelights/pricing/internal/domain/pricing"
	"github.com/harshadelights/pricing/internal/domain/shared"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// RuleRequest is the full configuration of a pricing rule, used for both create and update.
// An empty rule_code on create is auto-named; on update it is ignored.
type RuleRequest struct {
	RuleCode    string `json:"rule_code" binding:"max=64"`
	RuleName    string `json:"rule_name" binding:"required,max=200"`
	RuleType    string `json:"rule_type" binding:"max=64"`
	Description string `json:"description" binding:"max=2000"`

	ApplicableFor string `json:"applicable_for" binding:"required"`
	ScopeValue    string `json:"scope_value" binding:"max=140"`

	ValidFrom string `json:"valid_from" binding:"omitempty,datetime=2006-01-02"`
	ValidTo   string `json:"valid_to" binding:"omitempty,datetime=2006-01-02"`
	TimeBased bool   `json:"time_based"`
	StartTime string `json:"start_time" binding:"omitempty,datetime=15:04:05"`
	EndTime   string `json:"end_time" binding:"omitempty,datetime=15:04:05"`

	MinQty    *decimal.Decimal `json:"min_qty" binding:"omitempty,decimal_gte0"`
	MaxQty    *decimal.Decimal `json:"max_qty" binding:"omitempty,decimal_gte0"`
	MinAmount *decimal.Decimal `json:"min_amount" binding:"omitempty,decimal_gte0"`
	MaxAmount *decimal.Decimal `json:"max_amount" binding:"omitempty,decimal_gte0"`

	RateOrDiscount     string           `json:"rate_or_discount" binding:"required"`
	Rate               *decimal.Decimal `json:"rate" binding:"omitempty,decimal_gte0"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage" binding:"omitempty,decimal_gte0"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount" binding:"omitempty,decimal_gte0"`
	MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount" binding:"omitempty,decimal_gte0"`
	RoundToNearest     *decimal.Decimal `json:"round_to_nearest" binding:"omitempty,decimal_gte0"`

	RequiresCoupon bool   `json:"requires_coupon"`
	CouponCode     string `json:"coupon_code" binding:"max=64"`
	UsageLimit     *int   `json:"usage_limit" binding:"omitempty,gte=0"`

	RuleCondition string `json:"rule_condition" binding:"max=2000"`

	VolumeDiscountEnabled bool          `json:"volume_discount_enabled"`
	VolumeSlabs           []SlabRequest `json:"volume_slabs" binding:"omitempty,dive"`

	Priority   int   `json:"priority" binding:"gte=0"`
	IsActive   *bool `json:"is_active"`
	TrackUsage *bool `json:"track_usage"`
}

// SlabRequest is one volume discount slab of a rule request
type SlabRequest struct {
	SlabName      string           `json:"slab_name" binding:"max=100"`
	MinQuantity   decimal.Decimal  `json:"min_quantity" binding:"decimal_gte0"`
	MaxQuantity   *decimal.Decimal `json:"max_quantity" binding:"omitempty,decimal_gte0"`
	DiscountType  string           `json:"discount_type" binding:"required"`
	DiscountValue decimal.Decimal  `json:"discount_value" binding:"decimal_gte0"`
	EffectiveFrom string           `json:"effective_from" binding:"omitempty,datetime=2006-01-02"`
	EffectiveTo   string           `json:"effective_to" binding:"omitempty,datetime=2006-01-02"`
	IsActive      *bool            `json:"is_active"`
	SortOrder     *decimal.Decimal `json:"sort_order"`
}

// ToConfig converts the request into a rule configuration. Malformed dates and
// times are reported together as one validation error.
func (r RuleRequest) ToConfig() (pricing.RuleConfig, error) {
	verr := &shared.ValidationError{}

	cfg := pricing.RuleConfig{
		RuleCode:              r.RuleCode,
		RuleName:              r.RuleName,
		RuleType:              r.RuleType,
		Description:           r.Description,
		ApplicableFor:         pricing.ApplicableFor(r.ApplicableFor),
		ScopeValue:            r.ScopeValue,
		ValidFrom:             parseDate(verr, "valid_from", r.ValidFrom),
		ValidTo:               parseDate(verr, "valid_to", r.ValidTo),
		TimeBased:             r.TimeBased,
		StartTime:             parseTimeOfDay(verr, "start_time", r.StartTime),
		EndTime:               parseTimeOfDay(verr, "end_time", r.EndTime),
		MinQty:                r.MinQty,
		MaxQty:                r.MaxQty,
		MinAmount:             r.MinAmount,
		MaxAmount:             r.MaxAmount,
		RateOrDiscount:        pricing.RateOrDiscount(r.RateOrDiscount),
		Rate:                  r.Rate,
		DiscountPercentage:    r.DiscountPercentage,
		DiscountAmount:        r.DiscountAmount,
		MaxDiscountAmount:     r.MaxDiscountAmount,
		RoundToNearest:        r.RoundToNearest,
		RequiresCoupon:        r.RequiresCoupon,
		CouponCode:            r.CouponCode,
		UsageLimit:            r.UsageLimit,
		RuleCondition:         r.RuleCondition,
		VolumeDiscountEnabled: r.VolumeDiscountEnabled,
		Priority:              r.Priority,
		IsActive:              lo.FromPtrOr(r.IsActive, true),
		TrackUsage:            r.TrackUsage,
	}

	cfg.VolumeSlabs = lo.Map(r.VolumeSlabs, func(s SlabRequest, i int) pricing.SlabConfig {
		prefix := "volume_slabs[" + strconv.Itoa(i) + "]."
		return pricing.SlabConfig{
			SlabName:      s.SlabName,
			MinQuantity:   s.MinQuantity,
			MaxQuantity:   s.MaxQuantity,
			DiscountType:  pricing.SlabDiscountType(s.DiscountType),
			DiscountValue: s.DiscountValue,
			EffectiveFrom: parseDate(verr, prefix+"effective_from", s.EffectiveFrom),
			EffectiveTo:   parseDate(verr, prefix+"effective_to", s.EffectiveTo),
			IsActive:      lo.FromPtrOr(s.IsActive, true),
			SortOrder:     s.SortOrder,
		}
	})

	if err := verr.ErrOrNil(); err != nil {
		return pricing.RuleConfig{}, err
	}
	return cfg, nil
}

func parseDate(verr *shared.ValidationError, field, value string) *time.Time {
	if value == "" {
		return nil
	}
	d, err := pricing.ParseDate(value)
	if err != nil {
		verr.Add(field, "must be a date in YYYY-MM-DD format")
		return nil
	}
	return &d
}

func parseTimeOfDay(verr *shared.ValidationError, field, value string) *pricing.TimeOfDay {
	if value == "" {
		return nil
	}
	t, err := pricing.ParseTimeOfDay(value)
	if err != nil {
		verr.Add(field, "must be a time in HH:MM:SS format")
		return nil
	}
	return &t
}

// RuleResponse represents a pricing rule in API responses
type RuleResponse struct {
	ID          uuid.UUID `json:"id"`
	RuleCode    string    `json:"rule_code"`
	RuleName    string    `json:"rule_name"`
	RuleType    string    `json:"rule_type"`
	Description string    `json:"description"`

	ApplicableFor string `json:"applicable_for"`
	ScopeValue    string `json:"scope_value,omitempty"`

	ValidFrom string `json:"valid_from,omitempty"`
	ValidTo   string `json:"valid_to,omitempty"`
	TimeBased bool   `json:"time_based"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`

	MinQty    *decimal.Decimal `json:"min_qty,omitempty"`
	MaxQty    *decimal.Decimal `json:"max_qty,omitempty"`
	MinAmount *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount *decimal.Decimal `json:"max_amount,omitempty"`

	RateOrDiscount     string           `json:"rate_or_discount"`
	Rate               *decimal.Decimal `json:"rate,omitempty"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount,omitempty"`
	MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount,omitempty"`
	RoundToNearest     *decimal.Decimal `json:"round_to_nearest,omitempty"`

	RequiresCoupon bool   `json:"requires_coupon"`
	CouponCode     string `json:"coupon_code,omitempty"`
	UsageLimit     *int   `json:"usage_limit,omitempty"`
	UsedCount      int    `json:"used_count"`
	RemainingUses  *int   `json:"remaining_uses,omitempty"`

	RuleCondition string `json:"rule_condition,omitempty"`

	VolumeDiscountEnabled bool                  `json:"volume_discount_enabled"`
	VolumeSlabs           []pricing.SlabSummary `json:"volume_slabs"`

	Priority      int             `json:"priority"`
	IsActive      bool            `json:"is_active"`
	Status        string          `json:"status"`
	TrackUsage    bool            `json:"track_usage"`
	RevenueImpact decimal.Decimal `json:"revenue_impact"`

	CreatedBy  string    `json:"created_by,omitempty"`
	ModifiedBy string    `json:"modified_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int       `json:"version"`
}

// ToRuleResponse converts a domain PricingRule to RuleResponse
func ToRuleResponse(rule *pricing.PricingRule) RuleResponse {
	return RuleResponse{
		ID:                    rule.ID,
		RuleCode:              rule.RuleCode,
		RuleName:              rule.RuleName,
		RuleType:              rule.RuleType,
		Description:           rule.Description,
		ApplicableFor:         rule.ApplicableFor.String(),
		ScopeValue:            rule.ScopeValue,
		ValidFrom:             formatDate(rule.ValidFrom),
		ValidTo:               formatDate(rule.ValidTo),
		TimeBased:             rule.TimeBased,
		StartTime:             formatTimeOfDay(rule.StartTime),
		EndTime:               formatTimeOfDay(rule.EndTime),
		MinQty:                rule.MinQty,
		MaxQty:                rule.MaxQty,
		MinAmount:             rule.MinAmount,
		MaxAmount:             rule.MaxAmount,
		RateOrDiscount:        rule.RateOrDiscount.String(),
		Rate:                  rule.Rate,
		DiscountPercentage:    rule.DiscountPercentage,
		DiscountAmount:        rule.DiscountAmount,
		MaxDiscountAmount:     rule.MaxDiscountAmount,
		RoundToNearest:        rule.RoundToNearest,
		RequiresCoupon:        rule.RequiresCoupon,
		CouponCode:            rule.CouponCode,
		UsageLimit:            rule.UsageLimit,
		UsedCount:             rule.UsedCount,
		RemainingUses:         rule.RemainingUses(),
		RuleCondition:         rule.RuleCondition,
		VolumeDiscountEnabled: rule.VolumeDiscountEnabled,
		VolumeSlabs: lo.Map(rule.VolumeSlabs, func(s pricing.VolumeDiscountSlab, _ int) pricing.SlabSummary {
			return s.Summary()
		}),
		Priority:      rule.Priority,
		IsActive:      rule.IsActive,
		Status:        rule.Status.String(),
		TrackUsage:    rule.TrackUsage,
		RevenueImpact: rule.RevenueImpact,
		CreatedBy:     rule.CreatedBy,
		ModifiedBy:    rule.ModifiedBy,
		CreatedAt:     rule.CreatedAt,
		UpdatedAt:     rule.UpdatedAt,
		Version:       rule.Version,
	}
}

// ToRuleResponses converts a slice of rules
func ToRuleResponses(rules []pricing.PricingRule) []RuleResponse {
	return lo.Map(rules, func(_ pricing.PricingRule, i int) RuleResponse {
		return ToRuleResponse(&rules[i])
	})
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatTimeOfDay(t *pricing.TimeOfDay) string {
	if t == nil {
		return ""
	}
	return t.String()
}

// RuleListFilter represents filter options for the rule list
type RuleListFilter struct {
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy       string `form:"order_by"`
	OrderDir      string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search        string `form:"search"`
	Status        string `form:"status"`
	RuleType      string `form:"rule_type"`
	ApplicableFor string `form:"applicable_for"`
}

// TransactionRequest describes the sales line a rule is evaluated against.
// Amount defaults to base rate times quantity and base_rate is looked up when omitted.
type TransactionRequest struct {
	Customer   string           `json:"customer" binding:"max=140"`
	ItemCode   string           `json:"item_code" binding:"required,max=140"`
	Qty        decimal.Decimal  `json:"qty" binding:"decimal_gte0"`
	Amount     *decimal.Decimal `json:"amount" binding:"omitempty,decimal_gte0"`
	BaseRate   *decimal.Decimal `json:"base_rate" binding:"omitempty,decimal_gte0"`
	CouponCode string           `json:"coupon_code" binding:"max=64"`
	Context    map[string]any   `json:"context"`
}

// ApplyRequest is a transaction the rule is applied to for real
type ApplyRequest struct {
	TransactionRequest
	TransactionID string `json:"transaction_id" binding:"required,max=140"`
}

// EvaluationResponse is the outcome of evaluating one rule against a transaction
type EvaluationResponse struct {
	RuleCode   string                 `json:"rule_code"`
	Applicable bool                   `json:"applicable"`
	Reason     string                 `json:"reason,omitempty"`
	BaseRate   decimal.Decimal        `json:"base_rate"`
	Result     *pricing.PricingResult `json:"result,omitempty"`
}

// ApplicationResponse is the outcome of applying a rule to a transaction
type ApplicationResponse struct {
	EvaluationResponse
	TransactionID   string `json:"transaction_id"`
	Replayed        bool   `json:"replayed"`
	CouponExhausted bool   `json:"coupon_exhausted,omitempty"`
	RemainingUses   *int   `json:"remaining_uses,omitempty"`
}

// QuoteResponse is the best price for a transaction across every active rule
type QuoteResponse struct {
	RuleCode           string          `json:"rule_code,omitempty"`
	BaseRate           decimal.Decimal `json:"base_rate"`
	FinalRate          decimal.Decimal `json:"final_rate"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	FinalAmount        decimal.Decimal `json:"final_amount"`
	Savings            decimal.Decimal `json:"savings"`
	IsVolumePricing    bool            `json:"is_volume_pricing"`
	VolumeSlab         string          `json:"volume_slab,omitempty"`
	AppliedRules       []string        `json:"applied_rules"`
	Candidates         int             `json:"candidates"`
}

// StatusChange is one rule whose status moved during a refresh
type StatusChange struct {
	RuleCode string `json:"rule_code"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// RefreshStatusResponse summarizes a status refresh run
type RefreshStatusResponse struct {
	Checked int            `json:"checked"`
	Changed []StatusChange `json:"changed"`
	Failed  []string       `json:"failed,omitempty"`
}
