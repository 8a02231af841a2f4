package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/harshadelights/pricing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RuleFilter narrows a rule listing
type RuleFilter struct {
	shared.Filter
	Status        RuleStatus
	RuleType      string
	ApplicableFor ApplicableFor
}

// PricingRuleRepository persists pricing rules together with their volume slabs
type PricingRuleRepository interface {
	FindByCode(ctx context.Context, code string) (*PricingRule, error)
	FindAll(ctx context.Context, filter RuleFilter) ([]PricingRule, int64, error)
	// FindCandidates returns the rules whose status at now is Active, ordered by
	// priority desc, then code
	FindCandidates(ctx context.Context, now time.Time) ([]PricingRule, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	// ExistsActiveCoupon reports whether an active rule other than excludeID uses the coupon code
	ExistsActiveCoupon(ctx context.Context, couponCode string, excludeID uuid.UUID) (bool, error)
	// HighestCodeSequence returns the largest sequence among rule codes built on
	// prefix, or 0 when there are none
	HighestCodeSequence(ctx context.Context, prefix string) (int, error)
	// Save inserts or updates the rule and replaces its volume slabs
	Save(ctx context.Context, rule *PricingRule) error
	// SaveStatus persists status, active flag and version only
	SaveStatus(ctx context.Context, rule *PricingRule) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ApplicationRecord is the durable receipt of one rule application, unique per
// rule and transaction id
type ApplicationRecord struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RuleID             uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_rule_application"`
	TransactionID      string          `gorm:"type:varchar(140);not null;uniqueIndex:idx_rule_application"`
	RuleCode           string          `gorm:"type:varchar(64);not null"`
	Customer           string          `gorm:"type:varchar(140)"`
	ItemCode           string          `gorm:"type:varchar(140)"`
	Quantity           decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Amount             decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	BaseRate           decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	FinalRate          decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	DiscountAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(9,4);not null"`
	FinalAmount        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Savings            decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	IsVolumePricing    bool            `gorm:"not null"`
	VolumeSlab         string          `gorm:"type:varchar(100)"`
	AppliedBy          string          `gorm:"type:varchar(140)"`
	AppliedAt          time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ApplicationRecord) TableName() string {
	return "pricing_rule_applications"
}

// NewApplicationRecord records an application of rule
func NewApplicationRecord(rule *PricingRule, txn Transaction, transactionID string, result PricingResult, actingUser string, now time.Time) ApplicationRecord {
	return ApplicationRecord{
		ID:                 uuid.New(),
		RuleID:             rule.ID,
		TransactionID:      transactionID,
		RuleCode:           rule.RuleCode,
		Customer:           txn.Customer,
		ItemCode:           txn.ItemCode,
		Quantity:           txn.Quantity,
		Amount:             txn.Amount,
		BaseRate:           result.BaseRate,
		FinalRate:          result.FinalRate,
		DiscountAmount:     result.DiscountAmount,
		DiscountPercentage: result.DiscountPercentage,
		FinalAmount:        result.FinalAmount,
		Savings:            result.Savings,
		IsVolumePricing:    result.IsVolumePricing,
		VolumeSlab:         result.VolumeSlab,
		AppliedBy:          actingUser,
		AppliedAt:          now,
	}
}

// Result rebuilds the pricing result stored in the record
func (a ApplicationRecord) Result(ruleName string) PricingResult {
	return PricingResult{
		RuleCode:           a.RuleCode,
		RuleName:           ruleName,
		Quantity:           a.Quantity,
		BaseRate:           a.BaseRate,
		FinalRate:          a.FinalRate,
		DiscountAmount:     a.DiscountAmount,
		DiscountPercentage: a.DiscountPercentage,
		FinalAmount:        a.FinalAmount,
		Savings:            a.Savings,
		IsVolumePricing:    a.IsVolumePricing,
		VolumeSlab:         a.VolumeSlab,
	}
}

// ApplyFunc runs inside the apply unit of work with the rule locked for update.
// existing is the application already recorded for the transaction id, if any.
// The returned record, when non-nil, is stored along with the rule.
type ApplyFunc func(rule *PricingRule, existing *ApplicationRecord) (*ApplicationRecord, error)

// ApplicationStore runs the read-modify-write of a rule application atomically
type ApplicationStore interface {
	// WithLockedRule loads the rule by code under a row lock, runs fn and, when fn
	// returns a record, persists the rule's usage fields and the record in the same
	// transaction
	WithLockedRule(ctx context.Context, code, transactionID string, fn ApplyFunc) error
	FindApplication(ctx context.Context, ruleCode, transactionID string) (*ApplicationRecord, error)
}

// StandardRuleRepository persists standard pricing-rule mirrors
type StandardRuleRepository interface {
	FindByName(ctx context.Context, name string) (*StandardPricingRule, error)
	Upsert(ctx context.Context, rule *StandardPricingRule) error
	Disable(ctx context.Context, name string, now time.Time) error
	Delete(ctx context.Context, name string) error
}

// PriceListDirectory resolves item prices from price lists
type PriceListDirectory interface {
	// ItemPrice returns the latest price of the item on the list effective at now
	ItemPrice(ctx context.Context, itemCode, priceList string, now time.Time) (decimal.Decimal, bool, error)
}
