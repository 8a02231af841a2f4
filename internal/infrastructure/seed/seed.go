// Package seed loads pricing rule definitions from YAML files and creates them
// through the rule service. Rules whose code already exists are skipped, so a
// seed file can be applied repeatedly.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	app "github.com/harshadelights/pricing/internal/application/pricing"
	"github.com/harshadelights/pricing/internal/domain/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSeed is returned when a seed file cannot be parsed into rules
var ErrInvalidSeed = errors.New("seed: invalid file")

// File is the top-level document of a seed file
type File struct {
	// ActingUser is recorded as creator of the seeded rules
	ActingUser string `yaml:"acting_user,omitempty"`
	Rules      []Rule `yaml:"rules"`
}

// Rule is a pricing rule definition. Decimal values are written as strings
// to keep them exact.
type Rule struct {
	RuleCode    string `yaml:"rule_code,omitempty"`
	RuleName    string `yaml:"rule_name"`
	RuleType    string `yaml:"rule_type,omitempty"`
	Description string `yaml:"description,omitempty"`

	ApplicableFor string `yaml:"applicable_for"`
	ScopeValue    string `yaml:"scope_value,omitempty"`

	ValidFrom string `yaml:"valid_from,omitempty"`
	ValidTo   string `yaml:"valid_to,omitempty"`
	TimeBased bool   `yaml:"time_based,omitempty"`
	StartTime string `yaml:"start_time,omitempty"`
	EndTime   string `yaml:"end_time,omitempty"`

	MinQty    string `yaml:"min_qty,omitempty"`
	MaxQty    string `yaml:"max_qty,omitempty"`
	MinAmount string `yaml:"min_amount,omitempty"`
	MaxAmount string `yaml:"max_amount,omitempty"`

	RateOrDiscount     string `yaml:"rate_or_discount"`
	Rate               string `yaml:"rate,omitempty"`
	DiscountPercentage string `yaml:"discount_percentage,omitempty"`
	DiscountAmount     string `yaml:"discount_amount,omitempty"`
	MaxDiscountAmount  string `yaml:"max_discount_amount,omitempty"`
	RoundToNearest     string `yaml:"round_to_nearest,omitempty"`

	RequiresCoupon bool   `yaml:"requires_coupon,omitempty"`
	CouponCode     string `yaml:"coupon_code,omitempty"`
	UsageLimit     *int   `yaml:"usage_limit,omitempty"`

	RuleCondition string `yaml:"rule_condition,omitempty"`

	VolumeDiscountEnabled bool   `yaml:"volume_discount_enabled,omitempty"`
	VolumeSlabs           []Slab `yaml:"volume_slabs,omitempty"`

	Priority   int   `yaml:"priority,omitempty"`
	IsActive   *bool `yaml:"is_active,omitempty"`
	TrackUsage *bool `yaml:"track_usage,omitempty"`
}

// Slab is a volume discount slab definition
type Slab struct {
	SlabName      string `yaml:"slab_name,omitempty"`
	MinQuantity   string `yaml:"min_quantity"`
	MaxQuantity   string `yaml:"max_quantity,omitempty"`
	DiscountType  string `yaml:"discount_type"`
	DiscountValue string `yaml:"discount_value"`
	EffectiveFrom string `yaml:"effective_from,omitempty"`
	EffectiveTo   string `yaml:"effective_to,omitempty"`
	IsActive      *bool  `yaml:"is_active,omitempty"`
	SortOrder     string `yaml:"sort_order,omitempty"`
}

// LoadFromFile reads and parses a seed file
func LoadFromFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses a seed document
func LoadFromBytes(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("%w: no rules defined", ErrInvalidSeed)
	}
	return &file, nil
}

// ToRequest converts the definition into a rule request
func (r Rule) ToRequest() (app.RuleRequest, error) {
	p := &decimalParser{}
	req := app.RuleRequest{
		RuleCode:              r.RuleCode,
		RuleName:              r.RuleName,
		RuleType:              r.RuleType,
		Description:           r.Description,
		ApplicableFor:         r.ApplicableFor,
		ScopeValue:            r.ScopeValue,
		ValidFrom:             r.ValidFrom,
		ValidTo:               r.ValidTo,
		TimeBased:             r.TimeBased,
		StartTime:             r.StartTime,
		EndTime:               r.EndTime,
		MinQty:                p.optional("min_qty", r.MinQty),
		MaxQty:                p.optional("max_qty", r.MaxQty),
		MinAmount:             p.optional("min_amount", r.MinAmount),
		MaxAmount:             p.optional("max_amount", r.MaxAmount),
		RateOrDiscount:        r.RateOrDiscount,
		Rate:                  p.optional("rate", r.Rate),
		DiscountPercentage:    p.optional("discount_percentage", r.DiscountPercentage),
		DiscountAmount:        p.optional("discount_amount", r.DiscountAmount),
		MaxDiscountAmount:     p.optional("max_discount_amount", r.MaxDiscountAmount),
		RoundToNearest:        p.optional("round_to_nearest", r.RoundToNearest),
		RequiresCoupon:        r.RequiresCoupon,
		CouponCode:            r.CouponCode,
		UsageLimit:            r.UsageLimit,
		RuleCondition:         r.RuleCondition,
		VolumeDiscountEnabled: r.VolumeDiscountEnabled,
		Priority:              r.Priority,
		IsActive:              r.IsActive,
		TrackUsage:            r.TrackUsage,
	}
	for i, s := range r.VolumeSlabs {
		field := fmt.Sprintf("volume_slabs[%d].", i)
		req.VolumeSlabs = append(req.VolumeSlabs, app.SlabRequest{
			SlabName:      s.SlabName,
			MinQuantity:   p.required(field+"min_quantity", s.MinQuantity),
			MaxQuantity:   p.optional(field+"max_quantity", s.MaxQuantity),
			DiscountType:  s.DiscountType,
			DiscountValue: p.required(field+"discount_value", s.DiscountValue),
			EffectiveFrom: s.EffectiveFrom,
			EffectiveTo:   s.EffectiveTo,
			IsActive:      s.IsActive,
			SortOrder:     p.optional(field+"sort_order", s.SortOrder),
		})
	}
	if p.err != nil {
		return app.RuleRequest{}, p.err
	}
	return req, nil
}

// decimalParser keeps the first parse failure
type decimalParser struct {
	err error
}

func (p *decimalParser) optional(field, value string) *decimal.Decimal {
	if value == "" {
		return nil
	}
	v := p.required(field, value)
	return &v
}

func (p *decimalParser) required(field, value string) decimal.Decimal {
	v, err := decimal.NewFromString(value)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%w: %s %q is not a decimal", ErrInvalidSeed, field, value)
	}
	return v
}

// RuleCreator creates pricing rules
type RuleCreator interface {
	Create(ctx context.Context, req app.RuleRequest, actingUser string, now time.Time) (*app.RuleResponse, error)
}

// Result summarizes a seed run
type Result struct {
	Created []string
	Skipped []string
}

// Loader applies seed files
type Loader struct {
	rules  RuleCreator
	logger *zap.Logger
}

// NewLoader creates a new Loader
func NewLoader(rules RuleCreator, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{rules: rules, logger: logger}
}

// Apply creates every rule of the file at now. Rules with an explicit code that
// already exists are skipped; any other failure stops the run.
func (l *Loader) Apply(ctx context.Context, file *File, now time.Time) (*Result, error) {
	actingUser := file.ActingUser
	if actingUser == "" {
		actingUser = "seed"
	}

	result := &Result{}
	for i, def := range file.Rules {
		req, err := def.ToRequest()
		if err != nil {
			return result, fmt.Errorf("rule %d (%s): %w", i, def.RuleName, err)
		}
		created, err := l.rules.Create(ctx, req, actingUser, now)
		if errors.Is(err, pricing.ErrDuplicateRuleCode) && def.RuleCode != "" {
			l.logger.Info("Pricing rule already exists, skipping", zap.String("rule_code", def.RuleCode))
			result.Skipped = append(result.Skipped, def.RuleCode)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("rule %d (%s): %w", i, def.RuleName, err)
		}
		l.logger.Info("Pricing rule seeded",
			zap.String("rule_code", created.RuleCode),
			zap.String("status", created.Status),
		)
		result.Created = append(result.Created, created.RuleCode)
	}
	return result, nil
}
