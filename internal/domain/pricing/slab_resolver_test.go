package pricing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slab(minQty string, maxQty *string, discountType SlabDiscountType, value string) VolumeDiscountSlab {
	cfg := SlabConfig{
		MinQuantity:   d(minQty),
		DiscountType:  discountType,
		DiscountValue: d(value),
		IsActive:      true,
	}
	if maxQty != nil {
		cfg.MaxQuantity = dp(*maxQty)
	}
	return NewVolumeDiscountSlab(uuid.New(), cfg)
}

func strp(s string) *string {
	return &s
}

func TestSelectSlab_PicksHighestMatchingMinQuantity(t *testing.T) {
	slabs := []VolumeDiscountSlab{
		slab("1", nil, SlabDiscountPercentage, "5"),
		slab("10", nil, SlabDiscountPercentage, "10"),
		slab("50", nil, SlabDiscountPercentage, "20"),
	}

	tests := []struct {
		qty         string
		expectedMin string
	}{
		{qty: "1", expectedMin: "1"},
		{qty: "9", expectedMin: "1"},
		{qty: "10", expectedMin: "10"},
		{qty: "25", expectedMin: "10"},
		{qty: "50", expectedMin: "50"},
		{qty: "1000", expectedMin: "50"},
	}

	for _, tc := range tests {
		t.Run("qty "+tc.qty, func(t *testing.T) {
			selected := SelectSlab(slabs, d(tc.qty), testNow)
			require.NotNil(t, selected)
			assertDecimal(t, tc.expectedMin, selected.MinQuantity, "min_quantity")
		})
	}
}

func TestSelectSlab_OrderOfInputDoesNotMatter(t *testing.T) {
	slabs := []VolumeDiscountSlab{
		slab("50", nil, SlabDiscountPercentage, "20"),
		slab("1", nil, SlabDiscountPercentage, "5"),
		slab("10", nil, SlabDiscountPercentage, "10"),
	}

	selected := SelectSlab(slabs, d("25"), testNow)

	require.NotNil(t, selected)
	assertDecimal(t, "10", selected.MinQuantity, "min_quantity")
}

func TestSelectSlab_RespectsMaxQuantity(t *testing.T) {
	slabs := []VolumeDiscountSlab{
		slab("1", strp("100"), SlabDiscountPercentage, "5"),
		slab("10", strp("20"), SlabDiscountPercentage, "10"),
	}

	selected := SelectSlab(slabs, d("25"), testNow)

	require.NotNil(t, selected)
	assertDecimal(t, "1", selected.MinQuantity, "min_quantity")
}

func TestSelectSlab_NoMatch(t *testing.T) {
	slabs := []VolumeDiscountSlab{
		slab("10", strp("20"), SlabDiscountPercentage, "10"),
	}

	assert.Nil(t, SelectSlab(slabs, d("5"), testNow))
	assert.Nil(t, SelectSlab(slabs, d("21"), testNow))
	assert.Nil(t, SelectSlab(nil, d("5"), testNow))
}

func TestSelectSlab_SkipsInactiveAndOutOfWindow(t *testing.T) {
	inactive := slab("50", nil, SlabDiscountPercentage, "20")
	inactive.IsActive = false
	expired := slab("40", nil, SlabDiscountPercentage, "15")
	expired.EffectiveTo = day("2024-01-14")
	future := slab("30", nil, SlabDiscountPercentage, "12")
	future.EffectiveFrom = day("2024-01-16")
	current := slab("20", nil, SlabDiscountPercentage, "10")
	current.EffectiveFrom = day("2024-01-15")
	current.EffectiveTo = day("2024-01-15")

	selected := SelectSlab([]VolumeDiscountSlab{inactive, expired, future, current}, d("60"), testNow)

	require.NotNil(t, selected)
	assertDecimal(t, "20", selected.MinQuantity, "min_quantity")
}

func TestSelectSlab_TieBreaksDeterministically(t *testing.T) {
	first := slab("10", nil, SlabDiscountPercentage, "10")
	second := slab("10", nil, SlabDiscountPercentage, "15")
	preferred := slab("10", nil, SlabDiscountPercentage, "20")
	preferred.SortOrder = d("5")

	selected := SelectSlab([]VolumeDiscountSlab{first, second}, d("10"), testNow)
	require.NotNil(t, selected)
	assert.Equal(t, first.ID, selected.ID)

	selected = SelectSlab([]VolumeDiscountSlab{first, second, preferred}, d("10"), testNow)
	require.NotNil(t, selected)
	assert.Equal(t, preferred.ID, selected.ID)
}

func TestVolumeDiscountSlab_CalculateDiscount(t *testing.T) {
	tests := []struct {
		name          string
		slab          VolumeDiscountSlab
		baseRate      string
		qty           string
		perUnit       string
		discounted    string
		totalDiscount string
		finalAmount   string
	}{
		{
			name:     "percentage",
			slab:     slab("1", nil, SlabDiscountPercentage, "15"),
			baseRate: "200", qty: "4",
			perUnit: "30", discounted: "170", totalDiscount: "120", finalAmount: "680",
		},
		{
			name:     "fixed amount",
			slab:     slab("1", nil, SlabDiscountFixedAmount, "25"),
			baseRate: "200", qty: "4",
			perUnit: "25", discounted: "175", totalDiscount: "100", finalAmount: "700",
		},
		{
			name:     "fixed amount larger than base rate",
			slab:     slab("1", nil, SlabDiscountFixedAmount, "250"),
			baseRate: "200", qty: "2",
			perUnit: "200", discounted: "0", totalDiscount: "400", finalAmount: "0",
		},
		{
			name:     "fixed rate",
			slab:     slab("1", nil, SlabDiscountFixedRate, "180"),
			baseRate: "200", qty: "3",
			perUnit: "20", discounted: "180", totalDiscount: "60", finalAmount: "540",
		},
		{
			name:     "fixed rate above base rate gives no discount",
			slab:     slab("1", nil, SlabDiscountFixedRate, "220"),
			baseRate: "200", qty: "3",
			perUnit: "0", discounted: "220", totalDiscount: "0", finalAmount: "660",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.slab.CalculateDiscount(d(tc.baseRate), d(tc.qty))

			assertDecimal(t, tc.perUnit, got.DiscountPerUnit, "discount_per_unit")
			assertDecimal(t, tc.discounted, got.DiscountedRate, "discounted_rate")
			assertDecimal(t, tc.totalDiscount, got.TotalDiscount, "total_discount")
			assertDecimal(t, tc.finalAmount, got.FinalAmount, "final_amount")
		})
	}
}

func TestNewVolumeDiscountSlab_Defaults(t *testing.T) {
	bounded := slab("10", strp("49"), SlabDiscountPercentage, "10")
	assert.Equal(t, "10-49 units", bounded.SlabName)
	assertDecimal(t, "10", bounded.SortOrder, "sort_order")

	open := slab("50", nil, SlabDiscountPercentage, "20")
	assert.Equal(t, "50+ units", open.SlabName)

	named := NewVolumeDiscountSlab(uuid.New(), SlabConfig{
		SlabName:      "Bulk",
		MinQuantity:   d("100"),
		DiscountType:  SlabDiscountFixedRate,
		DiscountValue: d("80"),
		SortOrder:     dp("3"),
	})
	assert.Equal(t, "Bulk", named.SlabName)
	assertDecimal(t, "3", named.SortOrder, "sort_order")
	assert.Equal(t, "Bulk", named.Summary().SlabName)
	assert.Equal(t, "100+ units", named.Summary().QuantityRange)
}
