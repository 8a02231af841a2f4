package pricing

import (
	"time"

	"github.com/harshadelights/pricing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event types for pricing rules
const (
	EventTypePricingRuleCreated         = "PricingRuleCreated"
	EventTypePricingRuleUpdated         = "PricingRuleUpdated"
	EventTypePricingRuleDeleted         = "PricingRuleDeleted"
	EventTypePricingRuleApplied         = "PricingRuleApplied"
	EventTypePricingRuleCouponExhausted = "PricingRuleCouponExhausted"
)

// PricingRuleCreatedEvent is raised when a rule is created
type PricingRuleCreatedEvent struct {
	shared.BaseDomainEvent
	RuleCode string     `json:"rule_code"`
	RuleName string     `json:"rule_name"`
	Status   RuleStatus `json:"status"`
}

// NewPricingRuleCreatedEvent creates a PricingRuleCreatedEvent
func NewPricingRuleCreatedEvent(rule *PricingRule, now time.Time) *PricingRuleCreatedEvent {
	return &PricingRuleCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePricingRuleCreated, AggregateTypePricingRule, rule.ID, now),
		RuleCode:        rule.RuleCode,
		RuleName:        rule.RuleName,
		Status:          rule.Status,
	}
}

// PricingRuleUpdatedEvent is raised when a rule's configuration changes
type PricingRuleUpdatedEvent struct {
	shared.BaseDomainEvent
	RuleCode string     `json:"rule_code"`
	Status   RuleStatus `json:"status"`
	IsActive bool       `json:"is_active"`
}

// NewPricingRuleUpdatedEvent creates a PricingRuleUpdatedEvent
func NewPricingRuleUpdatedEvent(rule *PricingRule, now time.Time) *PricingRuleUpdatedEvent {
	return &PricingRuleUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePricingRuleUpdated, AggregateTypePricingRule, rule.ID, now),
		RuleCode:        rule.RuleCode,
		Status:          rule.Status,
		IsActive:        rule.IsActive,
	}
}

// PricingRuleDeletedEvent is raised when a rule is removed
type PricingRuleDeletedEvent struct {
	shared.BaseDomainEvent
	RuleCode string `json:"rule_code"`
}

// NewPricingRuleDeletedEvent creates a PricingRuleDeletedEvent
func NewPricingRuleDeletedEvent(rule *PricingRule, now time.Time) *PricingRuleDeletedEvent {
	return &PricingRuleDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePricingRuleDeleted, AggregateTypePricingRule, rule.ID, now),
		RuleCode:        rule.RuleCode,
	}
}

// PricingRuleAppliedEvent is raised when a rule is applied to a real transaction
type PricingRuleAppliedEvent struct {
	shared.BaseDomainEvent
	RuleCode      string          `json:"rule_code"`
	TransactionID string          `json:"transaction_id"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
	Savings       decimal.Decimal `json:"savings"`
	UsedCount     int             `json:"used_count"`
}

// NewPricingRuleAppliedEvent creates a PricingRuleAppliedEvent
func NewPricingRuleAppliedEvent(rule *PricingRule, transactionID string, result PricingResult, now time.Time) *PricingRuleAppliedEvent {
	return &PricingRuleAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePricingRuleApplied, AggregateTypePricingRule, rule.ID, now),
		RuleCode:        rule.RuleCode,
		TransactionID:   transactionID,
		FinalAmount:     result.FinalAmount,
		Savings:         result.Savings,
		UsedCount:       rule.UsedCount,
	}
}

// PricingRuleCouponExhaustedEvent is raised when a coupon rule reaches its usage limit
type PricingRuleCouponExhaustedEvent struct {
	shared.BaseDomainEvent
	RuleCode   string `json:"rule_code"`
	CouponCode string `json:"coupon_code"`
	UsageLimit int    `json:"usage_limit"`
}

// NewPricingRuleCouponExhaustedEvent creates a PricingRuleCouponExhaustedEvent
func NewPricingRuleCouponExhaustedEvent(rule *PricingRule, now time.Time) *PricingRuleCouponExhaustedEvent {
	limit := 0
	if rule.UsageLimit != nil {
		limit = *rule.UsageLimit
	}
	return &PricingRuleCouponExhaustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePricingRuleCouponExhausted, AggregateTypePricingRule, rule.ID, now),
		RuleCode:        rule.RuleCode,
		CouponCode:      rule.CouponCode,
		UsageLimit:      limit,
	}
}
