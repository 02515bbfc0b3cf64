package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pasteleria/internal/pricing"
	"github.com/noah-isme/backend-pasteleria/internal/promotion"
)

func ptr[T any](v T) *T { return &v }

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func requireMoney(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, got.Equal(money(want)), "want %d, got %s", want, got)
}

var (
	twoForOne  = &promotion.Promotion{ID: 1, Kind: promotion.KindTwoForOne}
	twentyOff  = &promotion.Promotion{ID: 2, Kind: promotion.KindPercentageOff, Percentage: ptr(20)}
	halfSecond = &promotion.Promotion{ID: 3, Kind: promotion.KindSecondUnitPercentageOff, SecondUnitPercentage: ptr(50)}
)

func TestComputeDiscountNoPromotion(t *testing.T) {
	d, err := pricing.ComputeDiscount(3, money(1500), nil)
	require.NoError(t, err)
	requireMoney(t, 4500, d.Base)
	requireMoney(t, 4500, d.Discounted)
	requireMoney(t, 0, d.Amount)
	require.False(t, d.HasDiscount())
}

func TestComputeDiscountTwoForOne(t *testing.T) {
	cases := []struct {
		qty        int
		discounted int64
	}{
		{1, 1000},
		{2, 1000},
		{3, 2000},
		{4, 2000},
		{5, 3000},
	}
	for _, tc := range cases {
		d, err := pricing.ComputeDiscount(tc.qty, money(1000), twoForOne)
		require.NoError(t, err)
		requireMoney(t, tc.discounted, d.Discounted)
		requireMoney(t, int64(tc.qty)*1000-tc.discounted, d.Amount)
	}
}

func TestComputeDiscountPercentageOff(t *testing.T) {
	d, err := pricing.ComputeDiscount(1, money(2500), twentyOff)
	require.NoError(t, err)
	requireMoney(t, 2000, d.Discounted)
	requireMoney(t, 500, d.Amount)
	require.True(t, d.HasDiscount())

	// Fractional results are kept exact; rounding happens only when persisting.
	d, err = pricing.ComputeDiscount(1, money(999), twentyOff)
	require.NoError(t, err)
	require.True(t, d.Discounted.Equal(decimal.RequireFromString("799.2")))
}

func TestComputeDiscountSecondUnit(t *testing.T) {
	d, err := pricing.ComputeDiscount(4, money(1000), halfSecond)
	require.NoError(t, err)
	requireMoney(t, 3000, d.Discounted)

	d, err = pricing.ComputeDiscount(5, money(1000), halfSecond)
	require.NoError(t, err)
	requireMoney(t, 4000, d.Discounted)

	d, err = pricing.ComputeDiscount(1, money(1000), halfSecond)
	require.NoError(t, err)
	requireMoney(t, 1000, d.Discounted)
	require.False(t, d.HasDiscount())
}

func TestComputeDiscountHundredPercent(t *testing.T) {
	free := &promotion.Promotion{Kind: promotion.KindPercentageOff, Percentage: ptr(100)}
	d, err := pricing.ComputeDiscount(2, money(1200), free)
	require.NoError(t, err)
	requireMoney(t, 0, d.Discounted)
	requireMoney(t, 2400, d.Amount)
}

func TestComputeDiscountInconsistentFallsBack(t *testing.T) {
	broken := &promotion.Promotion{ID: 9, Kind: promotion.KindPercentageOff, SecondUnitPercentage: ptr(50)}
	d, err := pricing.ComputeDiscount(2, money(1000), broken)
	require.ErrorIs(t, err, pricing.ErrInconsistentPromotion)
	requireMoney(t, 2000, d.Discounted)
	requireMoney(t, 0, d.Amount)

	unknown := &promotion.Promotion{ID: 10, Kind: "3x2"}
	d, err = pricing.ComputeDiscount(3, money(1000), unknown)
	require.ErrorIs(t, err, pricing.ErrInconsistentPromotion)
	requireMoney(t, 3000, d.Discounted)
}

func TestComputeDiscountBounds(t *testing.T) {
	promos := []*promotion.Promotion{nil, twoForOne, twentyOff, halfSecond}
	for _, promo := range promos {
		for qty := 0; qty <= 7; qty++ {
			for _, unit := range []int64{0, 1, 333, 1000, 4990} {
				d, err := pricing.ComputeDiscount(qty, money(unit), promo)
				require.NoError(t, err)
				require.False(t, d.Discounted.IsNegative())
				require.False(t, d.Amount.IsNegative())
				require.True(t, d.Amount.LessThanOrEqual(d.Base))
				require.True(t, d.Base.Sub(d.Amount).Equal(d.Discounted))
			}
		}
	}
}

func TestComputeDiscountClampsNegativeInputs(t *testing.T) {
	d, err := pricing.ComputeDiscount(-2, money(1000), twoForOne)
	require.NoError(t, err)
	requireMoney(t, 0, d.Base)

	d, err = pricing.ComputeDiscount(2, money(-1000), twentyOff)
	require.NoError(t, err)
	requireMoney(t, 0, d.Discounted)
}

func TestUnitPriceForRoundsHalfUp(t *testing.T) {
	// 3 units of 999 under 2x1: 1998 / 3 = 666
	requireMoney(t, 666, pricing.UnitPriceFor(money(1998), 3))
	// 2500 / 2 = 1250 exactly
	requireMoney(t, 1250, pricing.UnitPriceFor(money(2500), 2))
	// 2001 / 2 = 1000.5 rounds up
	requireMoney(t, 1001, pricing.UnitPriceFor(money(2001), 2))
	requireMoney(t, 0, pricing.UnitPriceFor(money(2001), 0))
	requireMoney(t, 800, pricing.RoundUnit(decimal.RequireFromString("799.5")))
}
