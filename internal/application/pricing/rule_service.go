package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harshadelights/pricing/internal/domain/pricing"
	"github.com/harshadelights/pricing/internal/domain/shared"
	"github.com/harshadelights/pricing/internal/infrastructure/logger"
	"github.com/harshadelights/pricing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// autoNameAttempts bounds retries when an auto-generated rule code is taken concurrently
const autoNameAttempts = 3

// RuleService handles pricing rule administration
type RuleService struct {
	rules      pricing.PricingRuleRepository
	conditions pricing.ConditionValidator
	events     shared.EventPublisher
	logger     *zap.Logger
}

// NewRuleService creates a new RuleService
func NewRuleService(
	rules pricing.PricingRuleRepository,
	conditions pricing.ConditionValidator,
	events shared.EventPublisher,
	log *zap.Logger,
) *RuleService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RuleService{
		rules:      rules,
		conditions: conditions,
		events:     events,
		logger:     log,
	}
}

// Create creates a pricing rule, auto-naming it when no code is given
func (s *RuleService) Create(ctx context.Context, req RuleRequest, actingUser string, now time.Time) (*RuleResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pricing_rule", "create")
	defer span.End()

	cfg, err := req.ToConfig()
	if err != nil {
		return nil, err
	}

	autoNamed := cfg.RuleCode == ""
	for attempt := 1; ; attempt++ {
		rule, err := s.create(ctx, cfg, autoNamed, attempt-1, actingUser, now)
		if err == nil {
			telemetry.SetAttributes(span, telemetry.SpanAttrRuleCode, rule.RuleCode)
			s.publish(ctx, rule)
			response := ToRuleResponse(rule)
			return &response, nil
		}
		if autoNamed && errors.Is(err, pricing.ErrDuplicateRuleCode) && attempt < autoNameAttempts {
			continue
		}
		telemetry.RecordError(span, err)
		return nil, err
	}
}

func (s *RuleService) create(ctx context.Context, cfg pricing.RuleConfig, autoNamed bool, skip int, actingUser string, now time.Time) (*pricing.PricingRule, error) {
	if autoNamed {
		code, err := s.nextRuleCode(ctx, cfg.RuleType, skip, now)
		if err != nil {
			return nil, err
		}
		cfg.RuleCode = code
	} else {
		exists, err := s.rules.ExistsByCode(ctx, cfg.RuleCode)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, pricing.ErrDuplicateRuleCode
		}
	}

	rule, err := pricing.NewPricingRule(cfg, s.conditions, actingUser, now)
	if err != nil {
		return nil, err
	}
	if err := s.checkCoupon(ctx, rule); err != nil {
		return nil, err
	}
	if err := s.rules.Save(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// nextRuleCode numbers the rule after the highest code sharing its prefix.
// skip moves past codes taken by concurrent creates since the lookup.
func (s *RuleService) nextRuleCode(ctx context.Context, ruleType string, skip int, now time.Time) (string, error) {
	prefix := pricing.RuleCodePrefix(ruleType, now)
	highest, err := s.rules.HighestCodeSequence(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to number rule code: %w", err)
	}
	return pricing.FormatRuleCode(prefix, highest+1+skip), nil
}

func (s *RuleService) checkCoupon(ctx context.Context, rule *pricing.PricingRule) error {
	if !rule.RequiresCoupon || !rule.IsActive || rule.CouponCode == "" {
		return nil
	}
	taken, err := s.rules.ExistsActiveCoupon(ctx, rule.CouponCode, rule.ID)
	if err != nil {
		return err
	}
	if taken {
		return pricing.ErrDuplicateCoupon
	}
	return nil
}

// Update replaces the configuration of a rule, keeping its usage counters
func (s *RuleService) Update(ctx context.Context, code string, req RuleRequest, actingUser string, now time.Time) (*RuleResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pricing_rule", "update",
		telemetry.WithAttribute(telemetry.SpanAttrRuleCode, code))
	defer span.End()

	cfg, err := req.ToConfig()
	if err != nil {
		return nil, err
	}

	rule, err := s.rules.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := rule.Reconfigure(cfg, s.conditions, actingUser, now); err != nil {
		return nil, err
	}
	if err := s.checkCoupon(ctx, rule); err != nil {
		return nil, err
	}
	if err := s.rules.Save(ctx, rule); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, rule)
	response := ToRuleResponse(rule)
	return &response, nil
}

// Delete removes a rule with its slabs. Its application records are kept.
func (s *RuleService) Delete(ctx context.Context, code string, now time.Time) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "pricing_rule", "delete",
		telemetry.WithAttribute(telemetry.SpanAttrRuleCode, code))
	defer span.End()

	rule, err := s.rules.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if err := s.rules.Delete(ctx, rule.ID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	rule.AddDomainEvent(pricing.NewPricingRuleDeletedEvent(rule, now))
	s.publish(ctx, rule)
	return nil
}

// Get retrieves a rule by code
func (s *RuleService) Get(ctx context.Context, code string) (*RuleResponse, error) {
	rule, err := s.rules.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	response := ToRuleResponse(rule)
	return &response, nil
}

// List retrieves rules with filtering and pagination
func (s *RuleService) List(ctx context.Context, filter RuleListFilter) ([]RuleResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "priority"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	rules, total, err := s.rules.FindAll(ctx, pricing.RuleFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		Status:        pricing.RuleStatus(filter.Status),
		RuleType:      filter.RuleType,
		ApplicableFor: pricing.ApplicableFor(filter.ApplicableFor),
	})
	if err != nil {
		return nil, 0, err
	}
	return ToRuleResponses(rules), total, nil
}

// RefreshStatuses recomputes the status of every rule at now and persists the
// ones that changed. A rule that fails to save is reported and skipped.
func (s *RuleService) RefreshStatuses(ctx context.Context, now time.Time) (*RefreshStatusResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pricing_rule", "refresh_statuses")
	defer span.End()

	rules, _, err := s.rules.FindAll(ctx, pricing.RuleFilter{})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	response := &RefreshStatusResponse{Checked: len(rules), Changed: []StatusChange{}}
	for i := range rules {
		rule := &rules[i]
		from := rule.Status
		if !rule.RefreshStatus(now) {
			continue
		}
		rule.Touch(now)
		if err := s.rules.SaveStatus(ctx, rule); err != nil {
			logger.WithLogger(ctx, s.logger).Error("Failed to save refreshed rule status",
				zap.String("rule_code", rule.RuleCode),
				zap.Error(err),
			)
			response.Failed = append(response.Failed, rule.RuleCode)
			continue
		}
		response.Changed = append(response.Changed, StatusChange{
			RuleCode: rule.RuleCode,
			From:     from.String(),
			To:       rule.Status.String(),
		})
		rule.AddDomainEvent(pricing.NewPricingRuleUpdatedEvent(rule, now))
		s.publish(ctx, rule)
	}

	telemetry.AddEvent(span, "statuses_refreshed",
		"checked", response.Checked,
		"changed", len(response.Changed),
	)
	logger.WithLogger(ctx, s.logger).Info("Pricing rule statuses refreshed",
		zap.Int("checked", response.Checked),
		zap.Int("changed", len(response.Changed)),
		zap.Int("failed", len(response.Failed)),
	)
	return response, nil
}

// Analytics summarizes the usage of a rule
func (s *RuleService) Analytics(ctx context.Context, code string) (*pricing.RuleAnalytics, error) {
	rule, err := s.rules.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	analytics := rule.Analytics()
	return &analytics, nil
}

// publish hands the rule's pending events to the bus. A failing subscriber never
// fails the write that produced the event.
func (s *RuleService) publish(ctx context.Context, rule *pricing.PricingRule) {
	events := rule.GetDomainEvents()
	rule.ClearDomainEvents()
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, s.logger).Error("Failed to publish pricing rule events",
			zap.String("rule_code", rule.RuleCode),
			zap.Error(err),
		)
	}
}
