package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harshadelights/pricing/internal/domain/pricing"
	"github.com/harshadelights/pricing/internal/domain/shared"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPricingRuleRepository implements PricingRuleRepository using GORM
type GormPricingRuleRepository struct {
	db *gorm.DB
}

// NewGormPricingRuleRepository creates a new GormPricingRuleRepository
func NewGormPricingRuleRepository(db *gorm.DB) *GormPricingRuleRepository {
	return &GormPricingRuleRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormPricingRuleRepository) WithTx(tx *gorm.DB) *GormPricingRuleRepository {
	return &GormPricingRuleRepository{db: tx}
}

// orderSlabs loads slabs in sort order, then in the order they were saved
func orderSlabs(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC").Order("position ASC")
}

// FindByCode finds a rule and its slabs by rule code
func (r *GormPricingRuleRepository) FindByCode(ctx context.Context, code string) (*pricing.PricingRule, error) {
	var rule pricing.PricingRule
	err := r.db.WithContext(ctx).
		Preload("VolumeSlabs", orderSlabs).
		Where("rule_code = ?", code).
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pricing.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to load pricing rule %s: %w", code, err)
	}
	return &rule, nil
}

// FindAll lists rules matching the filter and returns the total match count
func (r *GormPricingRuleRepository) FindAll(ctx context.Context, filter pricing.RuleFilter) ([]pricing.PricingRule, int64, error) {
	query := r.db.WithContext(ctx).Model(&pricing.PricingRule{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.RuleType != "" {
		query = query.Where("rule_type = ?", filter.RuleType)
	}
	if filter.ApplicableFor != "" {
		query = query.Where("applicable_for = ?", filter.ApplicableFor)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(rule_code) LIKE ? OR LOWER(rule_name) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count pricing rules: %w", err)
	}

	orderBy := ValidateSortField(filter.OrderBy, PricingRuleSortFields, "priority")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)
	if orderBy != "rule_code" {
		query = query.Order("rule_code ASC")
	}
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rules []pricing.PricingRule
	if err := query.Preload("VolumeSlabs", orderSlabs).Find(&rules).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list pricing rules: %w", err)
	}
	return rules, total, nil
}

// FindCandidates returns the switched-on rules whose status at now is Active,
// ordered by priority desc, then rule code. The stored status column is not
// trusted since it only changes on writes and refreshes.
func (r *GormPricingRuleRepository) FindCandidates(ctx context.Context, now time.Time) ([]pricing.PricingRule, error) {
	var rules []pricing.PricingRule
	err := r.db.WithContext(ctx).
		Preload("VolumeSlabs", orderSlabs).
		Where("is_active = ?", true).
		Order("priority DESC").
		Order("rule_code ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate pricing rules: %w", err)
	}
	return lo.Filter(rules, func(rule pricing.PricingRule, _ int) bool {
		return rule.DeriveStatus(now) == pricing.RuleStatusActive
	}), nil
}

// ExistsByCode reports whether a rule with the code exists
func (r *GormPricingRuleRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&pricing.PricingRule{}).
		Where("rule_code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistsActiveCoupon reports whether an active rule other than excludeID uses the coupon code
func (r *GormPricingRuleRepository) ExistsActiveCoupon(ctx context.Context, couponCode string, excludeID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&pricing.PricingRule{}).
		Where("coupon_code = ? AND is_active = ? AND id <> ?", couponCode, true, excludeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HighestCodeSequence returns the largest sequence among rule codes built on
// prefix. LIKE wildcards in the prefix are escaped.
func (r *GormPricingRuleRepository) HighestCodeSequence(ctx context.Context, prefix string) (int, error) {
	var codes []string
	err := r.db.WithContext(ctx).Model(&pricing.PricingRule{}).
		Where(`rule_code LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%").
		Pluck("rule_code", &codes).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load rule codes: %w", err)
	}

	highest := 0
	for _, code := range codes {
		if seq, ok := pricing.RuleCodeSequence(prefix, code); ok && seq > highest {
			highest = seq
		}
	}
	return highest, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Save inserts a new rule or updates an existing one, replacing its volume slabs.
// An update only succeeds against the version preceding rule.Version.
func (r *GormPricingRuleRepository) Save(ctx context.Context, rule *pricing.PricingRule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(rule).
			Where("version = ?", rule.Version-1).
			Select("*").
			Omit(clause.Associations, "created_at", "created_by").
			UpdateColumns(rule)
		if result.Error != nil {
			return fmt.Errorf("failed to update pricing rule: %w", result.Error)
		}

		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&pricing.PricingRule{}).Where("id = ?", rule.ID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return shared.ErrConcurrencyConflict
			}
			if err := tx.Omit(clause.Associations).Create(rule).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return pricing.ErrDuplicateRuleCode
				}
				return fmt.Errorf("failed to create pricing rule: %w", err)
			}
		}

		return replaceSlabs(tx, rule)
	})
}

func replaceSlabs(tx *gorm.DB, rule *pricing.PricingRule) error {
	if err := tx.Where("rule_id = ?", rule.ID).Delete(&pricing.VolumeDiscountSlab{}).Error; err != nil {
		return fmt.Errorf("failed to clear volume slabs: %w", err)
	}
	if len(rule.VolumeSlabs) == 0 {
		return nil
	}
	for i := range rule.VolumeSlabs {
		rule.VolumeSlabs[i].RuleID = rule.ID
		rule.VolumeSlabs[i].Position = i
		if rule.VolumeSlabs[i].ID == uuid.Nil {
			rule.VolumeSlabs[i].ID = uuid.New()
		}
	}
	if err := tx.Create(&rule.VolumeSlabs).Error; err != nil {
		return fmt.Errorf("failed to save volume slabs: %w", err)
	}
	return nil
}

// SaveStatus persists the status and active flag of a rule
func (r *GormPricingRuleRepository) SaveStatus(ctx context.Context, rule *pricing.PricingRule) error {
	result := r.db.WithContext(ctx).
		Model(rule).
		Select("status", "is_active", "updated_at").
		UpdateColumns(rule)
	if result.Error != nil {
		return fmt.Errorf("failed to update pricing rule status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return pricing.ErrRuleNotFound
	}
	return nil
}

// Delete removes a rule together with its slabs
func (r *GormPricingRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rule_id = ?", id).Delete(&pricing.VolumeDiscountSlab{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&pricing.PricingRule{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pricing.ErrRuleNotFound
		}
		return nil
	})
}

var _ pricing.PricingRuleRepository = (*GormPricingRuleRepository)(nil)
