package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/harshadelights/pricing/internal/domain/pricing"
	"github.com/harshadelights/pricing/internal/domain/shared"
	"github.com/harshadelights/pricing/internal/domain/shared/strategy"
	"github.com/harshadelights/pricing/internal/infrastructure/cache"
	"github.com/harshadelights/pricing/internal/infrastructure/logger"
	pricingstrategy "github.com/harshadelights/pricing/internal/infrastructure/strategy/pricing"
	"github.com/harshadelights/pricing/internal/infrastructure/telemetry"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BaseRateLookup finds the undiscounted rate of an item for a customer
type BaseRateLookup interface {
	Resolve(ctx context.Context, customer, itemCode string, now time.Time) (decimal.Decimal, error)
}

// ChainBuilder builds a pricing chain that falls back to the default strategy
type ChainBuilder interface {
	NewChain(strategies []strategy.PricingStrategy) *strategy.ChainPricingStrategy
}

// EvaluationService evaluates, applies and quotes pricing rules
type EvaluationService struct {
	rules        pricing.PricingRuleRepository
	applications pricing.ApplicationStore
	matcher      *pricing.Matcher
	calculator   *pricing.Calculator
	baseRates    BaseRateLookup
	chains       ChainBuilder
	idempotency  shared.IdempotencyStore
	idemConfig   shared.IdempotencyConfig
	events       shared.EventPublisher
	metrics      *telemetry.PricingMetrics
	logger       *zap.Logger
}

// EvaluationOption configures an EvaluationService
type EvaluationOption func(*EvaluationService)

// WithIdempotencyStore enables the fast replay path of Apply
func WithIdempotencyStore(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) EvaluationOption {
	return func(s *EvaluationService) {
		s.idempotency = store
		s.idemConfig = cfg
	}
}

// WithEventPublisher sets the publisher of application events
func WithEventPublisher(events shared.EventPublisher) EvaluationOption {
	return func(s *EvaluationService) {
		s.events = events
	}
}

// WithPricingMetrics sets the metrics recorder
func WithPricingMetrics(metrics *telemetry.PricingMetrics) EvaluationOption {
	return func(s *EvaluationService) {
		s.metrics = metrics
	}
}

// WithChainBuilder sets the registry quotes build their strategy chain from
func WithChainBuilder(chains ChainBuilder) EvaluationOption {
	return func(s *EvaluationService) {
		s.chains = chains
	}
}

// WithEvaluationLogger sets the logger
func WithEvaluationLogger(log *zap.Logger) EvaluationOption {
	return func(s *EvaluationService) {
		s.logger = log
	}
}

// NewEvaluationService creates a new EvaluationService
func NewEvaluationService(
	rules pricing.PricingRuleRepository,
	applications pricing.ApplicationStore,
	matcher *pricing.Matcher,
	baseRates BaseRateLookup,
	opts ...EvaluationOption,
) *EvaluationService {
	s := &EvaluationService{
		rules:        rules,
		applications: applications,
		matcher:      matcher,
		calculator:   pricing.NewCalculator(),
		baseRates:    baseRates,
		idemConfig:   shared.DefaultIdempotencyConfig(),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// prepare resolves the base rate and builds the transaction the matcher checks
func (s *EvaluationService) prepare(ctx context.Context, req TransactionRequest, now time.Time) (pricing.Transaction, decimal.Decimal, error) {
	var baseRate decimal.Decimal
	if req.BaseRate != nil {
		baseRate = *req.BaseRate
	} else {
		rate, err := s.baseRates.Resolve(ctx, req.Customer, req.ItemCode, now)
		if err != nil {
			return pricing.Transaction{}, decimal.Zero, err
		}
		baseRate = rate
	}

	amount := baseRate.Mul(req.Qty).Round(2)
	if req.Amount != nil {
		amount = *req.Amount
	}

	return pricing.Transaction{
		Customer:   req.Customer,
		ItemCode:   req.ItemCode,
		Quantity:   req.Qty,
		Amount:     amount,
		CouponCode: req.CouponCode,
		Context:    req.Context,
	}, baseRate, nil
}

// Evaluate reports whether the rule applies to the transaction and the price it
// would give, without side effects
func (s *EvaluationService) Evaluate(ctx context.Context, code string, req TransactionRequest, now time.Time) (*EvaluationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pricing_rule", "evaluate",
		telemetry.WithAttribute(telemetry.SpanAttrRuleCode, code),
		telemetry.WithAttribute(telemetry.SpanAttrItemCode, req.ItemCode),
		telemetry.WithAttribute(telemetry.SpanAttrQty, req.Qty),
	)
	defer span.End()
	start := time.Now()

	rule, err := s.rules.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	txn, baseRate, err := s.prepare(ctx, req, now)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordEvaluation(ctx, "evaluate", code, telemetry.OutcomeError, time.Since(start))
		return nil, err
	}

	response := &EvaluationResponse{RuleCode: rule.RuleCode, BaseRate: baseRate}
	match := s.matcher.Explain(ctx, rule, txn, now)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrApplicable, match.Applicable,
		telemetry.SpanAttrReason, match.Reason.String(),
	)
	if !match.Applicable {
		response.Reason = match.Reason.String()
		s.metrics.RecordEvaluation(ctx, "evaluate", code, telemetry.OutcomeNotApplicable, time.Since(start))
		return response, nil
	}

	result := s.calculator.Calculate(rule, baseRate, txn.Quantity, now)
	response.Applicable = true
	response.Result = &result
	s.metrics.RecordEvaluation(ctx, "evaluate", code, telemetry.OutcomeApplied, time.Since(start))
	return response, nil
}

// Apply applies the rule to a real transaction exactly once per transaction id.
// A repeated transaction id replays the stored result without side effects.
func (s *EvaluationService) Apply(ctx context.Context, code string, req ApplyRequest, actingUser string, now time.Time) (*ApplicationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pricing_rule", "apply",
		telemetry.WithAttribute(telemetry.SpanAttrRuleCode, code),
		telemetry.WithAttribute(telemetry.SpanAttrTransactionID, req.TransactionID),
		telemetry.WithAttribute(telemetry.SpanAttrCustomer, req.Customer),
		telemetry.WithAttribute(telemetry.SpanAttrItemCode, req.ItemCode),
	)
	defer span.End()
	log := logger.WithLogger(ctx, s.logger).With(
		zap.String("rule_code", code),
		zap.String("transaction_id", req.TransactionID),
	)

	if replay, ok := s.replayProcessed(ctx, code, req.TransactionID); ok {
		telemetry.SetAttributes(span, telemetry.SpanAttrReplayed, true)
		s.metrics.RecordApplication(ctx, code, telemetry.OutcomeReplayed)
		log.Debug("Replayed pricing rule application from idempotency store")
		return replay, nil
	}

	txn, baseRate, err := s.prepare(ctx, req.TransactionRequest, now)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordApplication(ctx, code, telemetry.OutcomeError)
		return nil, err
	}

	response := &ApplicationResponse{
		EvaluationResponse: EvaluationResponse{RuleCode: code, BaseRate: baseRate},
		TransactionID:      req.TransactionID,
	}
	var (
		applied *pricing.PricingRule
		events  []shared.DomainEvent
	)

	err = s.applications.WithLockedRule(ctx, code, req.TransactionID,
		func(rule *pricing.PricingRule, existing *pricing.ApplicationRecord) (*pricing.ApplicationRecord, error) {
			if existing != nil {
				response.fillReplay(existing, rule.RuleName)
				response.RemainingUses = rule.RemainingUses()
				return nil, nil
			}

			match := s.matcher.Explain(ctx, rule, txn, now)
			if !match.Applicable {
				response.Reason = match.Reason.String()
				return nil, nil
			}

			result := s.calculator.Calculate(rule, baseRate, txn.Quantity, now)
			app, err := rule.RecordApplication(txn, req.TransactionID, result, now)
			if err != nil {
				return nil, err
			}
			record := pricing.NewApplicationRecord(rule, txn, req.TransactionID, result, actingUser, now)

			response.Applicable = true
			response.Result = &app.Result
			response.CouponExhausted = app.CouponExhausted
			response.RemainingUses = rule.RemainingUses()
			applied = rule
			events = rule.GetDomainEvents()
			rule.ClearDomainEvents()
			return &record, nil
		})
	if errors.Is(err, shared.ErrConcurrencyConflict) {
		// A concurrent apply with the same transaction id may have won the race
		if replay, ok := s.replayStored(ctx, code, req.TransactionID); ok {
			s.metrics.RecordApplication(ctx, code, telemetry.OutcomeReplayed)
			return replay, nil
		}
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordApplication(ctx, code, telemetry.OutcomeError)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrApplicable, response.Applicable,
		telemetry.SpanAttrReplayed, response.Replayed,
	)
	switch {
	case response.Replayed:
		s.metrics.RecordApplication(ctx, code, telemetry.OutcomeReplayed)
		s.markProcessed(ctx, code, req.TransactionID)
	case !response.Applicable:
		telemetry.SetAttributes(span, telemetry.SpanAttrReason, response.Reason)
		s.metrics.RecordApplication(ctx, code, telemetry.OutcomeNotApplicable)
	default:
		s.metrics.RecordApplication(ctx, code, telemetry.OutcomeApplied)
		if response.CouponExhausted {
			s.metrics.RecordCouponExhausted(ctx, code)
		}
		s.markProcessed(ctx, code, req.TransactionID)
		s.publishEvents(ctx, applied, events)
		log.Info("Pricing rule applied",
			zap.String("final_amount", response.Result.FinalAmount.String()),
			zap.String("savings", response.Result.Savings.String()),
			zap.Bool("coupon_exhausted", response.CouponExhausted),
		)
	}
	return response, nil
}

// replayProcessed returns the stored application when the idempotency store has
// seen the transaction. A key whose record is gone falls through to the full path.
func (s *EvaluationService) replayProcessed(ctx context.Context, code, transactionID string) (*ApplicationResponse, bool) {
	if s.idempotency == nil || !s.idemConfig.Enabled {
		return nil, false
	}
	processed, err := s.idempotency.IsProcessed(ctx, cache.ApplyKey(code, transactionID))
	if err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Idempotency check failed, using database path",
			zap.String("rule_code", code),
			zap.Error(err),
		)
		return nil, false
	}
	if !processed {
		return nil, false
	}
	return s.replayStored(ctx, code, transactionID)
}

func (s *EvaluationService) replayStored(ctx context.Context, code, transactionID string) (*ApplicationResponse, bool) {
	record, err := s.applications.FindApplication(ctx, code, transactionID)
	if err != nil {
		return nil, false
	}

	ruleName := ""
	var remaining *int
	if rule, err := s.rules.FindByCode(ctx, code); err == nil {
		ruleName = rule.RuleName
		remaining = rule.RemainingUses()
	}

	response := &ApplicationResponse{TransactionID: transactionID, RemainingUses: remaining}
	response.RuleCode = code
	response.fillReplay(record, ruleName)
	return response, true
}

func (r *ApplicationResponse) fillReplay(record *pricing.ApplicationRecord, ruleName string) {
	result := record.Result(ruleName)
	r.Applicable = true
	r.Replayed = true
	r.BaseRate = record.BaseRate
	r.Result = &result
}

func (s *EvaluationService) markProcessed(ctx context.Context, code, transactionID string) {
	if s.idempotency == nil || !s.idemConfig.Enabled {
		return
	}
	if _, err := s.idempotency.MarkProcessed(ctx, cache.ApplyKey(code, transactionID), s.idemConfig.TTL); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to mark application processed",
			zap.String("rule_code", code),
			zap.String("transaction_id", transactionID),
			zap.Error(err),
		)
	}
}

func (s *EvaluationService) publishEvents(ctx context.Context, rule *pricing.PricingRule, events []shared.DomainEvent) {
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, s.logger).Error("Failed to publish application events",
			zap.String("rule_code", rule.RuleCode),
			zap.Error(err),
		)
	}
}

// Quote prices the transaction under the highest-priority rule that is Active
// at now and applies, or at the base rate when none does. It has no side effects.
func (s *EvaluationService) Quote(ctx context.Context, req TransactionRequest, now time.Time) (*QuoteResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pricing", "quote",
		telemetry.WithAttribute(telemetry.SpanAttrCustomer, req.Customer),
		telemetry.WithAttribute(telemetry.SpanAttrItemCode, req.ItemCode),
		telemetry.WithAttribute(telemetry.SpanAttrQty, req.Qty),
	)
	defer span.End()
	start := time.Now()

	candidates, err := s.rules.FindCandidates(ctx, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	txn, baseRate, err := s.prepare(ctx, req, now)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordEvaluation(ctx, "quote", "", telemetry.OutcomeError, time.Since(start))
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrCandidates, len(candidates))

	strategies := lo.Map(candidates, func(_ pricing.PricingRule, i int) strategy.PricingStrategy {
		return pricingstrategy.NewDynamicRulePricingStrategy(&candidates[i], s.matcher, s.calculator)
	})
	var chain *strategy.ChainPricingStrategy
	if s.chains != nil {
		chain = s.chains.NewChain(strategies)
	} else {
		chain = strategy.NewChainPricingStrategy(strategies, pricingstrategy.NewStandardPricingStrategy())
	}

	result, err := chain.CalculatePrice(ctx, strategy.PricingContext{
		CustomerID: txn.Customer,
		ItemCode:   txn.ItemCode,
		Quantity:   txn.Quantity,
		Amount:     txn.Amount,
		BaseRate:   baseRate,
		CouponCode: txn.CouponCode,
		Attributes: txn.Context,
		Now:        now,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordEvaluation(ctx, "quote", "", telemetry.OutcomeError, time.Since(start))
		return nil, err
	}

	outcome := telemetry.OutcomeNotApplicable
	if result.RuleCode != "" {
		outcome = telemetry.OutcomeApplied
		telemetry.SetAttributes(span, telemetry.SpanAttrRuleCode, result.RuleCode)
	}
	s.metrics.RecordEvaluation(ctx, "quote", result.RuleCode, outcome, time.Since(start))

	return &QuoteResponse{
		RuleCode:           result.RuleCode,
		BaseRate:           result.BaseRate,
		FinalRate:          result.UnitPrice,
		DiscountAmount:     result.DiscountAmount,
		DiscountPercentage: result.DiscountPercent,
		FinalAmount:        result.TotalPrice,
		Savings:            result.Savings,
		IsVolumePricing:    result.IsVolumePricing,
		VolumeSlab:         result.VolumeSlab,
		AppliedRules:       lo.Ternary(result.AppliedRules == nil, []string{}, result.AppliedRules),
		Candidates:         len(candidates),
	}, nil
}
