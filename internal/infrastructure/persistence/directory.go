package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harshadelights/pricing/internal/domain/pricing"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SegmentStatusActive is the assignment status that counts as membership
const SegmentStatusActive = "Active"

// CustomerModel is the read model of a customer owned by the host ERP
type CustomerModel struct {
	Code             string `gorm:"type:varchar(140);primaryKey"`
	CustomerName     string `gorm:"type:varchar(200)"`
	CustomerGroup    string `gorm:"type:varchar(140)"`
	Territory        string `gorm:"type:varchar(140)"`
	DefaultPriceList string `gorm:"type:varchar(140)"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ItemModel is the read model of an item owned by the host ERP
type ItemModel struct {
	Code         string          `gorm:"type:varchar(140);primaryKey"`
	ItemName     string          `gorm:"type:varchar(200)"`
	ItemGroup    string          `gorm:"type:varchar(140)"`
	StandardRate decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
}

// TableName returns the table name for GORM
func (ItemModel) TableName() string {
	return "items"
}

// ItemPriceModel is one price-list entry for an item
type ItemPriceModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ItemCode  string          `gorm:"type:varchar(140);not null;index:idx_item_price_lookup"`
	PriceList string          `gorm:"type:varchar(140);not null;index:idx_item_price_lookup"`
	Rate      decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	ValidFrom *time.Time      `gorm:"type:date"`
}

// TableName returns the table name for GORM
func (ItemPriceModel) TableName() string {
	return "item_prices"
}

// CustomerSegmentAssignmentModel links a customer to a segment
type CustomerSegmentAssignmentModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Customer  string    `gorm:"type:varchar(140);not null;index"`
	Segment   string    `gorm:"type:varchar(140);not null"`
	Status    string    `gorm:"type:varchar(20);not null"`
	IsPrimary bool      `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (CustomerSegmentAssignmentModel) TableName() string {
	return "customer_segment_assignments"
}

// GormDirectory resolves customer, item and price-list facts from the ERP read models
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a new GormDirectory
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

// CustomerProfile returns the pricing attributes of a customer
func (d *GormDirectory) CustomerProfile(ctx context.Context, customer string) (pricing.CustomerProfile, error) {
	var model CustomerModel
	if err := d.db.WithContext(ctx).Where("code = ?", customer).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pricing.CustomerProfile{}, pricing.ErrUnknownParty
		}
		return pricing.CustomerProfile{}, fmt.Errorf("failed to load customer: %w", err)
	}
	return pricing.CustomerProfile{
		Customer:         model.Code,
		CustomerGroup:    model.CustomerGroup,
		Territory:        model.Territory,
		DefaultPriceList: model.DefaultPriceList,
	}, nil
}

// HasActiveSegment reports whether the customer holds an Active assignment to the segment
func (d *GormDirectory) HasActiveSegment(ctx context.Context, customer, segment string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&CustomerSegmentAssignmentModel{}).
		Where("customer = ? AND segment = ? AND status = ?", customer, segment, SegmentStatusActive).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check customer segment: %w", err)
	}
	return count > 0, nil
}

// ItemProfile returns the pricing attributes of an item
func (d *GormDirectory) ItemProfile(ctx context.Context, itemCode string) (pricing.ItemProfile, error) {
	var model ItemModel
	if err := d.db.WithContext(ctx).Where("code = ?", itemCode).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pricing.ItemProfile{}, pricing.ErrUnknownParty
		}
		return pricing.ItemProfile{}, fmt.Errorf("failed to load item: %w", err)
	}
	return pricing.ItemProfile{
		ItemCode:     model.Code,
		ItemGroup:    model.ItemGroup,
		StandardRate: model.StandardRate,
	}, nil
}

// ItemPrice returns the latest entry of the item on the price list that is
// effective on the day of now. Dated entries win over undated ones.
func (d *GormDirectory) ItemPrice(ctx context.Context, itemCode, priceList string, now time.Time) (decimal.Decimal, bool, error) {
	var model ItemPriceModel
	err := d.db.WithContext(ctx).
		Where("item_code = ? AND price_list = ?", itemCode, priceList).
		Where("valid_from IS NULL OR valid_from <= ?", pricing.Date(now)).
		Order("CASE WHEN valid_from IS NULL THEN 1 ELSE 0 END").
		Order("valid_from DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("failed to load item price: %w", err)
	}
	return model.Rate, true, nil
}

var (
	_ pricing.PartyDirectory     = (*GormDirectory)(nil)
	_ pricing.PriceListDirectory = (*GormDirectory)(nil)
)
