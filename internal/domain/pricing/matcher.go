package pricing

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrUnknownParty is returned by a PartyDirectory for a customer or item it does not know
var ErrUnknownParty = errors.New("unknown customer or item")

// Transaction is one candidate sales line to be priced
type Transaction struct {
	Customer   string
	ItemCode   string
	Quantity   decimal.Decimal
	Amount     decimal.Decimal
	CouponCode string
	// Context holds caller-supplied values for rule conditions. A "coupon_code"
	// entry is used when CouponCode is empty.
	Context map[string]any
}

// Coupon returns the coupon code supplied with the transaction
func (t Transaction) Coupon() string {
	if t.CouponCode != "" {
		return t.CouponCode
	}
	if v, ok := t.Context["coupon_code"].(string); ok {
		return v
	}
	return ""
}

// CustomerProfile holds the customer attributes pricing rules look at
type CustomerProfile struct {
	Customer         string
	CustomerGroup    string
	Territory        string
	DefaultPriceList string
}

// ItemProfile holds the item attributes pricing rules look at
type ItemProfile struct {
	ItemCode     string
	ItemGroup    string
	StandardRate decimal.Decimal
}

// PartyDirectory resolves customer and item attributes for scope checks
type PartyDirectory interface {
	CustomerProfile(ctx context.Context, customer string) (CustomerProfile, error)
	HasActiveSegment(ctx context.Context, customer, segment string) (bool, error)
	ItemProfile(ctx context.Context, itemCode string) (ItemProfile, error)
}

// ConditionValidator checks a rule condition when the rule is saved
type ConditionValidator interface {
	Validate(expr string) error
}

// ConditionEvaluator validates and evaluates rule conditions
type ConditionEvaluator interface {
	ConditionValidator
	Evaluate(expr string, vars map[string]any) (bool, error)
}

// MatchResult explains the outcome of an applicability check
type MatchResult struct {
	Applicable bool
	Reason     NotApplicableReason
	// Err is set when the rule failed closed on an EvaluationError
	Err error
}

func matched() MatchResult {
	return MatchResult{Applicable: true}
}

func notApplicable(reason NotApplicableReason) MatchResult {
	return MatchResult{Reason: reason}
}

// FailClosedObserver is told about every rule that failed closed
type FailClosedObserver func(ctx context.Context, err *EvaluationError)

// Matcher decides whether a pricing rule applies to a transaction
type Matcher struct {
	directory  PartyDirectory
	conditions ConditionEvaluator
	logger     *zap.Logger
	observers  []FailClosedObserver
}

// MatcherOption is a functional option for configuring the matcher
type MatcherOption func(*Matcher)

// WithMatcherLogger sets the logger used for fail-closed evaluation errors
func WithMatcherLogger(logger *zap.Logger) MatcherOption {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// WithFailClosedObserver registers an observer for fail-closed evaluation errors
func WithFailClosedObserver(observer FailClosedObserver) MatcherOption {
	return func(m *Matcher) {
		m.observers = append(m.observers, observer)
	}
}

// NewMatcher creates a rule matcher. directory and conditions may be nil; a rule
// that needs either then fails closed.
func NewMatcher(directory PartyDirectory, conditions ConditionEvaluator, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		directory:  directory,
		conditions: conditions,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsApplicable reports whether every applicability check passes for the transaction at now
func (m *Matcher) IsApplicable(ctx context.Context, rule *PricingRule, txn Transaction, now time.Time) bool {
	return m.Explain(ctx, rule, txn, now).Applicable
}

// Explain runs the applicability checks in order and reports the first that fails.
// The status is derived at now from the active flag, the dates and the usage
// count; the stored status may lag behind and is not consulted.
// Evaluation errors are logged and reported as a failed check, never returned.
func (m *Matcher) Explain(ctx context.Context, rule *PricingRule, txn Transaction, now time.Time) MatchResult {
	status := rule.DeriveStatus(now)
	if !rule.IsActive || status == RuleStatusInactive {
		return notApplicable(ReasonInactive)
	}
	if !dateWithin(now, rule.ValidFrom, rule.ValidTo) {
		return notApplicable(ReasonOutsideValidityWindow)
	}
	// Past the date checks only an exhausted usage limit leaves the rule
	// non-Active; coupon rules report that at the coupon check.
	if status != RuleStatusActive && !rule.RequiresCoupon {
		return notApplicable(ReasonInactive)
	}
	if rule.TimeBased {
		start, end := rule.timeWindow()
		tod := TimeOfDayOf(now)
		if tod.Before(start) || tod.After(end) {
			return notApplicable(ReasonOutsideTimeWindow)
		}
	}
	if !withinBounds(txn.Quantity, rule.MinQty, rule.MaxQty) {
		return notApplicable(ReasonQuantityOutOfRange)
	}
	if !withinBounds(txn.Amount, rule.MinAmount, rule.MaxAmount) {
		return notApplicable(ReasonAmountOutOfRange)
	}

	facts := &partyFacts{directory: m.directory, customer: txn.Customer}

	inScope, err := m.matchScope(ctx, rule, txn, facts)
	if err != nil {
		return m.failClosed(ctx, rule, "scope", ReasonScopeLookupFailed, err)
	}
	if !inScope {
		return notApplicable(ReasonScopeMismatch)
	}

	if rule.RuleCondition != "" {
		if m.conditions == nil {
			return m.failClosed(ctx, rule, "condition", ReasonConditionError, errors.New("no condition evaluator configured"))
		}
		ok, err := m.conditions.Evaluate(rule.RuleCondition, conditionVariables(ctx, txn, facts))
		if err != nil {
			return m.failClosed(ctx, rule, "condition", ReasonConditionError, err)
		}
		if !ok {
			return notApplicable(ReasonConditionFalse)
		}
	}

	if rule.RequiresCoupon {
		if txn.Coupon() != rule.CouponCode {
			return notApplicable(ReasonCouponMismatch)
		}
		if rule.IsUsageExhausted() {
			return notApplicable(ReasonCouponExhausted)
		}
	}

	return matched()
}

func (m *Matcher) matchScope(ctx context.Context, rule *PricingRule, txn Transaction, facts *partyFacts) (bool, error) {
	switch rule.ApplicableFor {
	case ApplicableForAllCustomers:
		return true, nil
	case ApplicableForCustomer:
		return txn.Customer != "" && txn.Customer == rule.ScopeValue, nil
	case ApplicableForItemCode:
		return txn.ItemCode != "" && txn.ItemCode == rule.ScopeValue, nil
	}

	if m.directory == nil {
		return false, errors.New("no party directory configured")
	}

	switch rule.ApplicableFor {
	case ApplicableForCustomerGroup, ApplicableForTerritory, ApplicableForCustomerSegment:
		if txn.Customer == "" {
			return false, nil
		}
	}

	switch rule.ApplicableFor {
	case ApplicableForCustomerGroup:
		profile, err := facts.customerProfile(ctx)
		if err != nil {
			return false, err
		}
		return profile.CustomerGroup == rule.ScopeValue, nil
	case ApplicableForTerritory:
		profile, err := facts.customerProfile(ctx)
		if err != nil {
			return false, err
		}
		return profile.Territory == rule.ScopeValue, nil
	case ApplicableForCustomerSegment:
		return m.directory.HasActiveSegment(ctx, txn.Customer, rule.ScopeValue)
	case ApplicableForItemGroup:
		if txn.ItemCode == "" {
			return false, nil
		}
		item, err := m.directory.ItemProfile(ctx, txn.ItemCode)
		if err != nil {
			return false, err
		}
		return item.ItemGroup == rule.ScopeValue, nil
	default:
		return false, fmt.Errorf("unknown scope %q", rule.ApplicableFor)
	}
}

func (m *Matcher) failClosed(ctx context.Context, rule *PricingRule, check string, reason NotApplicableReason, err error) MatchResult {
	evalErr := &EvaluationError{RuleCode: rule.RuleCode, Check: check, Err: err}
	m.logger.Warn("pricing rule failed closed",
		zap.String("rule_code", rule.RuleCode),
		zap.String("check", check),
		zap.Error(err),
	)
	for _, observe := range m.observers {
		observe(ctx, evalErr)
	}
	return MatchResult{Reason: reason, Err: evalErr}
}

func withinBounds(v decimal.Decimal, lower, upper *decimal.Decimal) bool {
	if lower != nil && v.LessThan(*lower) {
		return false
	}
	if upper != nil && v.GreaterThan(*upper) {
		return false
	}
	return true
}

// conditionVariables builds the variable set for a rule condition. Customer group
// and territory are included when they can be resolved; caller context wins on
// key collision.
func conditionVariables(ctx context.Context, txn Transaction, facts *partyFacts) map[string]any {
	vars := map[string]any{
		"customer":  txn.Customer,
		"item_code": txn.ItemCode,
		"qty":       txn.Quantity.InexactFloat64(),
		"amount":    txn.Amount.InexactFloat64(),
	}
	if facts.directory != nil && txn.Customer != "" {
		if profile, err := facts.customerProfile(ctx); err == nil {
			vars["customer_group"] = profile.CustomerGroup
			vars["territory"] = profile.Territory
		}
	}
	maps.Copy(vars, txn.Context)
	return vars
}

// partyFacts memoizes the customer lookup for one applicability check
type partyFacts struct {
	directory PartyDirectory
	customer  string

	loaded  bool
	profile CustomerProfile
	err     error
}

func (f *partyFacts) customerProfile(ctx context.Context) (CustomerProfile, error) {
	if f.loaded {
		return f.profile, f.err
	}
	f.loaded = true
	if f.customer == "" {
		f.err = fmt.Errorf("customer is required: %w", ErrUnknownParty)
		return f.profile, f.err
	}
	f.profile, f.err = f.directory.CustomerProfile(ctx, f.customer)
	return f.profile, f.err
}
