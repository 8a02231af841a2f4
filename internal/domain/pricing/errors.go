package pricing

import (
	"fmt"

	"github.com/harshadelights/pricing/internal/domain/shared"
)

// Pricing domain errors
var (
	ErrRuleNotFound      = shared.NewDomainError("NOT_FOUND", "Pricing rule not found")
	ErrDuplicateCoupon   = shared.NewDomainError("DUPLICATE_COUPON", "Coupon code is already used by another active rule")
	ErrDuplicateRuleCode = shared.NewDomainError("ALREADY_EXISTS", "Rule code already exists")
	ErrCouponExhausted   = shared.NewDomainError("COUPON_EXHAUSTED", "Coupon usage limit reached")
	ErrRuleNotApplicable = shared.NewDomainError("NOT_APPLICABLE", "Pricing rule does not apply to this transaction")
)

// EvaluationError is raised while checking applicability: a rule condition that
// failed to evaluate or a lookup needed for the scope check. It never reaches the
// transaction path; the matcher logs it and treats the rule as not applicable.
type EvaluationError struct {
	RuleCode string
	Check    string
	Err      error
}

// Error implements the error interface
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("pricing rule %s: %s check failed: %v", e.RuleCode, e.Check, e.Err)
}

// Unwrap returns the underlying error
func (e *EvaluationError) Unwrap() error {
	return e.Err
}
