package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// SlabResult is the outcome of pricing a line against a matching volume slab
type SlabResult struct {
	Slab     VolumeDiscountSlab
	BaseRate decimal.Decimal
	Quantity decimal.Decimal
	SlabDiscount
}

// SelectSlab returns the matching slab with the highest min_quantity, or nil.
// Ties go to the lower sort_order, then to the slab listed first.
func SelectSlab(slabs []VolumeDiscountSlab, qty decimal.Decimal, now time.Time) *VolumeDiscountSlab {
	var best *VolumeDiscountSlab
	for i := range slabs {
		s := &slabs[i]
		if !s.IsQuantityApplicable(qty, now) {
			continue
		}
		if best == nil || outranks(s, best) {
			best = s
		}
	}
	return best
}

func outranks(candidate, current *VolumeDiscountSlab) bool {
	if c := candidate.MinQuantity.Cmp(current.MinQuantity); c != 0 {
		return c > 0
	}
	return candidate.SortOrder.LessThan(current.SortOrder)
}

// ResolveSlab picks the tightest matching slab and computes its discount for the line.
// It returns nil when no slab matches and the caller falls back to scalar pricing.
func ResolveSlab(slabs []VolumeDiscountSlab, baseRate, qty decimal.Decimal, now time.Time) *SlabResult {
	slab := SelectSlab(slabs, qty, now)
	if slab == nil {
		return nil
	}
	return &SlabResult{
		Slab:         *slab,
		BaseRate:     baseRate,
		Quantity:     qty,
		SlabDiscount: slab.CalculateDiscount(baseRate, qty),
	}
}
