package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/harshadelights/pricing/internal/domain/pricing"
	"github.com/harshadelights/pricing/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// usageColumns are the rule columns an application may change
var usageColumns = []string{
	"used_count",
	"usage_log",
	"revenue_impact",
	"status",
	"is_active",
	"version",
	"updated_at",
}

// GormApplicationStore runs rule applications as a single locked unit of work
type GormApplicationStore struct {
	db *gorm.DB
}

// NewGormApplicationStore creates a new GormApplicationStore
func NewGormApplicationStore(db *gorm.DB) *GormApplicationStore {
	return &GormApplicationStore{db: db}
}

// WithLockedRule loads the rule with SELECT ... FOR UPDATE, looks up any
// application already recorded for transactionID and runs fn. When fn returns a
// record, the rule's usage columns and the record are written before commit.
func (s *GormApplicationStore) WithLockedRule(ctx context.Context, code, transactionID string, fn pricing.ApplyFunc) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rule pricing.PricingRule
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("rule_code = ?", code).
			First(&rule).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pricing.ErrRuleNotFound
			}
			return fmt.Errorf("failed to lock pricing rule %s: %w", code, err)
		}
		if err := orderSlabs(tx.Where("rule_id = ?", rule.ID)).Find(&rule.VolumeSlabs).Error; err != nil {
			return fmt.Errorf("failed to load volume slabs: %w", err)
		}

		var existing *pricing.ApplicationRecord
		var found pricing.ApplicationRecord
		err = tx.Where("rule_id = ? AND transaction_id = ?", rule.ID, transactionID).First(&found).Error
		switch {
		case err == nil:
			existing = &found
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to load application record: %w", err)
		}

		record, err := fn(&rule, existing)
		if err != nil || record == nil {
			return err
		}

		result := tx.Model(&rule).
			Where("version = ?", rule.Version-1).
			Select(usageColumns).
			UpdateColumns(&rule)
		if result.Error != nil {
			return fmt.Errorf("failed to update rule usage: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		if err := tx.Create(record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrConcurrencyConflict
			}
			return fmt.Errorf("failed to save application record: %w", err)
		}
		return nil
	})
}

// FindApplication returns the application of a rule recorded for a transaction id
func (s *GormApplicationStore) FindApplication(ctx context.Context, ruleCode, transactionID string) (*pricing.ApplicationRecord, error) {
	var record pricing.ApplicationRecord
	err := s.db.WithContext(ctx).
		Where("rule_code = ? AND transaction_id = ?", ruleCode, transactionID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load application record: %w", err)
	}
	return &record, nil
}

var _ pricing.ApplicationStore = (*GormApplicationStore)(nil)
