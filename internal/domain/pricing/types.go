package pricing

// ApplicableFor is the customer/item dimension a pricing rule targets
type ApplicableFor string

const (
	ApplicableForAllCustomers    ApplicableFor = "All Customers"
	ApplicableForCustomer        ApplicableFor = "Customer"
	ApplicableForCustomerGroup   ApplicableFor = "Customer Group"
	ApplicableForCustomerSegment ApplicableFor = "Customer Segment"
	ApplicableForTerritory       ApplicableFor = "Territory"
	ApplicableForItemCode        ApplicableFor = "Item Code"
	ApplicableForItemGroup       ApplicableFor = "Item Group"
)

// String returns the string representation of the scope
func (a ApplicableFor) String() string {
	return string(a)
}

// IsValid returns true if the scope is one of the known variants
func (a ApplicableFor) IsValid() bool {
	switch a {
	case ApplicableForAllCustomers, ApplicableForCustomer, ApplicableForCustomerGroup,
		ApplicableForCustomerSegment, ApplicableForTerritory, ApplicableForItemCode, ApplicableForItemGroup:
		return true
	default:
		return false
	}
}

// NeedsScopeValue reports whether the scope requires a target value
func (a ApplicableFor) NeedsScopeValue() bool {
	return a != ApplicableForAllCustomers
}

// AllApplicableFor returns all scope variants
func AllApplicableFor() []ApplicableFor {
	return []ApplicableFor{
		ApplicableForAllCustomers,
		ApplicableForCustomer,
		ApplicableForCustomerGroup,
		ApplicableForCustomerSegment,
		ApplicableForTerritory,
		ApplicableForItemCode,
		ApplicableForItemGroup,
	}
}

// RateOrDiscount selects which pricing-mode field is authoritative
type RateOrDiscount string

const (
	RateOrDiscountRate               RateOrDiscount = "Rate"
	RateOrDiscountDiscountPercentage RateOrDiscount = "Discount Percentage"
	RateOrDiscountDiscountAmount     RateOrDiscount = "Discount Amount"
)

// String returns the string representation of the pricing mode
func (m RateOrDiscount) String() string {
	return string(m)
}

// IsValid returns true if the pricing mode is known
func (m RateOrDiscount) IsValid() bool {
	switch m {
	case RateOrDiscountRate, RateOrDiscountDiscountPercentage, RateOrDiscountDiscountAmount:
		return true
	default:
		return false
	}
}

// RuleStatus is the lifecycle status of a pricing rule
type RuleStatus string

const (
	RuleStatusDraft    RuleStatus = "Draft"
	RuleStatusActive   RuleStatus = "Active"
	RuleStatusInactive RuleStatus = "Inactive"
	RuleStatusExpired  RuleStatus = "Expired"
)

// String returns the string representation of the status
func (s RuleStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is known
func (s RuleStatus) IsValid() bool {
	switch s {
	case RuleStatusDraft, RuleStatusActive, RuleStatusInactive, RuleStatusExpired:
		return true
	default:
		return false
	}
}

// SlabDiscountType is the discount formula carried by a volume slab
type SlabDiscountType string

const (
	SlabDiscountPercentage  SlabDiscountType = "Percentage"
	SlabDiscountFixedAmount SlabDiscountType = "Fixed Amount"
	SlabDiscountFixedRate   SlabDiscountType = "Fixed Rate"
)

// String returns the string representation of the slab discount type
func (t SlabDiscountType) String() string {
	return string(t)
}

// IsValid returns true if the slab discount type is known
func (t SlabDiscountType) IsValid() bool {
	switch t {
	case SlabDiscountPercentage, SlabDiscountFixedAmount, SlabDiscountFixedRate:
		return true
	default:
		return false
	}
}

// NotApplicableReason names the first applicability check a rule failed
type NotApplicableReason string

const (
	ReasonNone                  NotApplicableReason = ""
	ReasonInactive              NotApplicableReason = "inactive"
	ReasonOutsideValidityWindow NotApplicableReason = "outside_validity_window"
	ReasonOutsideTimeWindow     NotApplicableReason = "outside_time_window"
	ReasonQuantityOutOfRange    NotApplicableReason = "quantity_out_of_range"
	ReasonAmountOutOfRange      NotApplicableReason = "amount_out_of_range"
	ReasonScopeMismatch         NotApplicableReason = "scope_mismatch"
	ReasonScopeLookupFailed     NotApplicableReason = "scope_lookup_failed"
	ReasonConditionFalse        NotApplicableReason = "condition_false"
	ReasonConditionError        NotApplicableReason = "condition_error"
	ReasonCouponMismatch        NotApplicableReason = "coupon_mismatch"
	ReasonCouponExhausted       NotApplicableReason = "coupon_exhausted"
)

// String returns the string representation of the reason
func (r NotApplicableReason) String() string {
	return string(r)
}
