package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/harshadelights/pricing/internal/domain/pricing"
	"github.com/harshadelights/pricing/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStandardRuleRepository persists standard pricing-rule mirrors
type GormStandardRuleRepository struct {
	db *gorm.DB
}

// NewGormStandardRuleRepository creates a new GormStandardRuleRepository
func NewGormStandardRuleRepository(db *gorm.DB) *GormStandardRuleRepository {
	return &GormStandardRuleRepository{db: db}
}

// FindByName finds a mirror by name
func (r *GormStandardRuleRepository) FindByName(ctx context.Context, name string) (*pricing.StandardPricingRule, error) {
	var rule pricing.StandardPricingRule
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// Upsert inserts the mirror or overwrites every column of an existing one
func (r *GormStandardRuleRepository) Upsert(ctx context.Context, rule *pricing.StandardPricingRule) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			UpdateAll: true,
		}).
		Create(rule).Error
}

// Disable marks an existing mirror disabled. A missing mirror is left missing.
func (r *GormStandardRuleRepository) Disable(ctx context.Context, name string, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&pricing.StandardPricingRule{}).
		Where("name = ?", name).
		UpdateColumns(map[string]any{
			"disabled":   true,
			"updated_at": now,
		}).Error
}

// Delete removes a mirror; deleting a missing mirror is not an error
func (r *GormStandardRuleRepository) Delete(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Delete(&pricing.StandardPricingRule{}, "name = ?", name).Error
}

var _ pricing.StandardRuleRepository = (*GormStandardRuleRepository)(nil)
