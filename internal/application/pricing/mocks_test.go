package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harshadelights/pricing/internal/domain/pricing"
	"github.com/harshadelights/pricing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

// MockPricingRuleRepository is a mock implementation of PricingRuleRepository
type MockPricingRuleRepository struct {
	mock.Mock
}

func (m *MockPricingRuleRepository) FindByCode(ctx context.Context, code string) (*pricing.PricingRule, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.PricingRule), args.Error(1)
}

func (m *MockPricingRuleRepository) FindAll(ctx context.Context, filter pricing.RuleFilter) ([]pricing.PricingRule, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]pricing.PricingRule), args.Get(1).(int64), args.Error(2)
}

func (m *MockPricingRuleRepository) FindCandidates(ctx context.Context, now time.Time) ([]pricing.PricingRule, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]pricing.PricingRule), args.Error(1)
}

func (m *MockPricingRuleRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockPricingRuleRepository) ExistsActiveCoupon(ctx context.Context, couponCode string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, couponCode, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPricingRuleRepository) HighestCodeSequence(ctx context.Context, prefix string) (int, error) {
	args := m.Called(ctx, prefix)
	return args.Int(0), args.Error(1)
}

func (m *MockPricingRuleRepository) Save(ctx context.Context, rule *pricing.PricingRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockPricingRuleRepository) SaveStatus(ctx context.Context, rule *pricing.PricingRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockPricingRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockBaseRateLookup is a mock implementation of BaseRateLookup
type MockBaseRateLookup struct {
	mock.Mock
}

func (m *MockBaseRateLookup) Resolve(ctx context.Context, customer, itemCode string, now time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, customer, itemCode, now)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// fakeApplicationStore runs applications against in-memory rules under one mutex,
// committing the rule copy only when the apply function returns a record
type fakeApplicationStore struct {
	mu       sync.Mutex
	rules    map[string]*pricing.PricingRule
	records  map[string]pricing.ApplicationRecord
	lockRuns int
	failWith error
}

func newFakeApplicationStore(rules ...*pricing.PricingRule) *fakeApplicationStore {
	s := &fakeApplicationStore{
		rules:   make(map[string]*pricing.PricingRule),
		records: make(map[string]pricing.ApplicationRecord),
	}
	for _, r := range rules {
		s.rules[r.RuleCode] = r
	}
	return s
}

func recordKey(code, transactionID string) string {
	return code + "|" + transactionID
}

func (s *fakeApplicationStore) WithLockedRule(ctx context.Context, code, transactionID string, fn pricing.ApplyFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockRuns++

	stored, ok := s.rules[code]
	if !ok {
		return pricing.ErrRuleNotFound
	}
	working := *stored
	working.UsageLog = append(pricing.UsageLog(nil), stored.UsageLog...)

	var existing *pricing.ApplicationRecord
	if rec, ok := s.records[recordKey(code, transactionID)]; ok {
		existing = &rec
	}

	record, err := fn(&working, existing)
	if err != nil || record == nil {
		return err
	}
	if s.failWith != nil {
		return s.failWith
	}
	s.rules[code] = &working
	s.records[recordKey(code, transactionID)] = *record
	return nil
}

func (s *fakeApplicationStore) FindApplication(ctx context.Context, ruleCode, transactionID string) (*pricing.ApplicationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordKey(ruleCode, transactionID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &rec, nil
}

func (s *fakeApplicationStore) rule(code string) *pricing.PricingRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules[code]
}

func baseRuleRequest() RuleRequest {
	return RuleRequest{
		RuleName:           "Winter sale",
		RuleType:           "Seasonal",
		ApplicableFor:      string(pricing.ApplicableForAllCustomers),
		RateOrDiscount:     string(pricing.RateOrDiscountDiscountPercentage),
		DiscountPercentage: dp("20"),
	}
}

func newRule(code string, mutate func(cfg *pricing.RuleConfig)) *pricing.PricingRule {
	cfg := pricing.RuleConfig{
		RuleCode:           code,
		RuleName:           "Rule " + code,
		ApplicableFor:      pricing.ApplicableForAllCustomers,
		RateOrDiscount:     pricing.RateOrDiscountDiscountPercentage,
		DiscountPercentage: dp("20"),
		IsActive:           true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	rule, err := pricing.NewPricingRule(cfg, nil, "admin", testNow)
	if err != nil {
		panic(err)
	}
	rule.ClearDomainEvents()
	return rule
}

func eventTypes(events []shared.DomainEvent) []string {
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType())
	}
	return types
}
