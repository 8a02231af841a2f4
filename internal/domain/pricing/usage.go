package pricing

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// UsageLogLimit is the number of usage entries kept on a rule
const UsageLogLimit = 100

// UsageEntry records one application of a rule to a transaction
type UsageEntry struct {
	Timestamp     time.Time       `json:"timestamp"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Customer      string          `json:"customer"`
	ItemCode      string          `json:"item_code"`
	Quantity      decimal.Decimal `json:"quantity"`
	Amount        decimal.Decimal `json:"amount"`
	DiscountGiven decimal.Decimal `json:"discount_given"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
}

// UsageLog is the rolling usage ledger of a rule, oldest first
type UsageLog []UsageEntry

// Append adds an entry, dropping the oldest entries beyond limit
func (l UsageLog) Append(entry UsageEntry, limit int) UsageLog {
	next := append(l, entry)
	if limit > 0 && len(next) > limit {
		next = append(UsageLog(nil), next[len(next)-limit:]...)
	}
	return next
}

// Application is the outcome of applying a rule to a real transaction
type Application struct {
	Result          PricingResult
	Entry           UsageEntry
	RevenueDelta    decimal.Decimal
	CouponRedeemed  bool
	CouponExhausted bool
}

// RecordApplication performs the side effects of applying the rule: it appends a
// usage entry when usage is tracked, accumulates revenue impact and, for coupon
// rules, consumes one use. A rule whose limit is reached is deactivated and
// expired. It fails with ErrCouponExhausted rather than exceed the limit.
func (r *PricingRule) RecordApplication(txn Transaction, transactionID string, result PricingResult, now time.Time) (Application, error) {
	if r.RequiresCoupon && r.IsUsageExhausted() {
		return Application{}, ErrCouponExhausted
	}

	entry := UsageEntry{
		Timestamp:     now,
		TransactionID: transactionID,
		Customer:      txn.Customer,
		ItemCode:      txn.ItemCode,
		Quantity:      txn.Quantity,
		Amount:        txn.Amount,
		DiscountGiven: result.Savings,
		FinalAmount:   result.FinalAmount,
	}
	app := Application{Result: result, Entry: entry}

	if r.TrackUsage {
		r.UsageLog = r.UsageLog.Append(entry, UsageLogLimit)
		app.RevenueDelta = result.FinalAmount.Sub(txn.Amount)
		r.RevenueImpact = r.RevenueImpact.Add(app.RevenueDelta)
	}

	if r.RequiresCoupon {
		r.UsedCount++
		app.CouponRedeemed = true
		if r.IsUsageExhausted() {
			app.CouponExhausted = true
		}
	}

	r.RefreshStatus(now)
	r.Touch(now)
	r.IncrementVersion()

	r.AddDomainEvent(NewPricingRuleAppliedEvent(r, transactionID, result, now))
	if app.CouponExhausted {
		r.AddDomainEvent(NewPricingRuleCouponExhaustedEvent(r, now))
	}
	return app, nil
}

// RuleAnalytics summarizes a rule's usage ledger
type RuleAnalytics struct {
	BasicInfo    AnalyticsBasicInfo  `json:"basic_info"`
	UsageStats   AnalyticsUsageStats `json:"usage_stats"`
	TopCustomers []CustomerUsage     `json:"top_customers"`
	CouponStats  *CouponStats        `json:"coupon_stats,omitempty"`
}

// AnalyticsBasicInfo identifies the rule
type AnalyticsBasicInfo struct {
	RuleCode      string        `json:"rule_code"`
	RuleName      string        `json:"rule_name"`
	RuleType      string        `json:"rule_type"`
	Status        RuleStatus    `json:"status"`
	Priority      int           `json:"priority"`
	ApplicableFor ApplicableFor `json:"applicable_for"`
	ScopeValue    string        `json:"scope_value,omitempty"`
}

// AnalyticsUsageStats aggregates the usage ledger
type AnalyticsUsageStats struct {
	TotalUses         int             `json:"total_uses"`
	TotalSavingsGiven decimal.Decimal `json:"total_savings_given"`
	AverageDiscount   decimal.Decimal `json:"average_discount"`
	RevenueImpact     decimal.Decimal `json:"revenue_impact"`
}

// CustomerUsage counts uses by one customer
type CustomerUsage struct {
	Customer     string          `json:"customer"`
	Uses         int             `json:"uses"`
	TotalSavings decimal.Decimal `json:"total_savings"`
}

// CouponStats describes coupon consumption. Remaining is nil when unlimited.
type CouponStats struct {
	CouponCode string `json:"coupon_code"`
	UsedCount  int    `json:"used_count"`
	UsageLimit *int   `json:"usage_limit,omitempty"`
	Remaining  *int   `json:"remaining,omitempty"`
	Unlimited  bool   `json:"unlimited"`
}

const topCustomerCount = 10

// Analytics summarizes the rule's usage ledger
func (r *PricingRule) Analytics() RuleAnalytics {
	totalSavings := totalDiscount(r.UsageLog)

	average := decimal.Zero
	if len(r.UsageLog) > 0 {
		average = totalSavings.Div(decimal.NewFromInt(int64(len(r.UsageLog)))).Round(amountPlaces)
	}

	analytics := RuleAnalytics{
		BasicInfo: AnalyticsBasicInfo{
			RuleCode:      r.RuleCode,
			RuleName:      r.RuleName,
			RuleType:      r.RuleType,
			Status:        r.Status,
			Priority:      r.Priority,
			ApplicableFor: r.ApplicableFor,
			ScopeValue:    r.ScopeValue,
		},
		UsageStats: AnalyticsUsageStats{
			TotalUses:         len(r.UsageLog),
			TotalSavingsGiven: totalSavings,
			AverageDiscount:   average,
			RevenueImpact:     r.RevenueImpact,
		},
		TopCustomers: topCustomers(r.UsageLog, topCustomerCount),
	}

	if r.RequiresCoupon {
		analytics.CouponStats = &CouponStats{
			CouponCode: r.CouponCode,
			UsedCount:  r.UsedCount,
			UsageLimit: r.UsageLimit,
			Remaining:  r.RemainingUses(),
			Unlimited:  !r.HasUsageLimit(),
		}
	}
	return analytics
}

func topCustomers(log UsageLog, n int) []CustomerUsage {
	groups := lo.GroupBy(lo.Filter(log, func(e UsageEntry, _ int) bool {
		return e.Customer != ""
	}), func(e UsageEntry) string {
		return e.Customer
	})

	usage := lo.MapToSlice(groups, func(customer string, entries UsageLog) CustomerUsage {
		return CustomerUsage{
			Customer:     customer,
			Uses:         len(entries),
			TotalSavings: totalDiscount(entries),
		}
	})

	sort.Slice(usage, func(i, j int) bool {
		if usage[i].Uses != usage[j].Uses {
			return usage[i].Uses > usage[j].Uses
		}
		return usage[i].Customer < usage[j].Customer
	})
	if len(usage) > n {
		usage = usage[:n]
	}
	return usage
}

func totalDiscount(entries []UsageEntry) decimal.Decimal {
	return lo.Reduce(entries, func(acc decimal.Decimal, e UsageEntry, _ int) decimal.Decimal {
		return acc.Add(e.DiscountGiven)
	}, decimal.Zero)
}
