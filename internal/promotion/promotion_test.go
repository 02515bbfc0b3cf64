package promotion_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pasteleria/internal/catalog"
	"github.com/noah-isme/backend-pasteleria/internal/promotion"
)

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var cake = catalog.Product{ID: 7, Name: "Torta tres leches", Category: catalog.CategoryCakes, Stock: 4}

func TestSelectSkipsInactive(t *testing.T) {
	promos := []promotion.Promotion{
		{ID: 1, Kind: promotion.KindTwoForOne, Category: promotion.AllCategories, Active: false},
	}
	require.Nil(t, promotion.Select(cake, day(2025, 3, 1), promos))
}

func TestSelectScopeIsUnionOfProductAndCategory(t *testing.T) {
	now := day(2025, 3, 1)

	byProduct := promotion.Promotion{ID: 1, Active: true, Kind: promotion.KindTwoForOne, ProductID: ptr(int64(7)), Category: catalog.CategoryDesserts}
	got := promotion.Select(cake, now, []promotion.Promotion{byProduct})
	require.NotNil(t, got)
	require.Equal(t, int64(1), got.ID)

	byCategory := promotion.Promotion{ID: 2, Active: true, Kind: promotion.KindTwoForOne, ProductID: ptr(int64(99)), Category: catalog.CategoryCakes}
	got = promotion.Select(cake, now, []promotion.Promotion{byCategory})
	require.NotNil(t, got)
	require.Equal(t, int64(2), got.ID)

	wildcard := promotion.Promotion{ID: 3, Active: true, Kind: promotion.KindTwoForOne, Category: promotion.AllCategories}
	got = promotion.Select(cake, now, []promotion.Promotion{wildcard})
	require.NotNil(t, got)

	other := promotion.Promotion{ID: 4, Active: true, Kind: promotion.KindTwoForOne, Category: catalog.CategoryDesserts}
	require.Nil(t, promotion.Select(cake, now, []promotion.Promotion{other}))

	unscoped := promotion.Promotion{ID: 5, Active: true, Kind: promotion.KindTwoForOne}
	require.Nil(t, promotion.Select(cake, now, []promotion.Promotion{unscoped}))
}

func TestSelectDateWindowIsInclusive(t *testing.T) {
	p := promotion.Promotion{
		ID: 1, Active: true, Kind: promotion.KindTwoForOne, Category: promotion.AllCategories,
		ActiveFrom: ptr(day(2025, 3, 10)), ActiveUntil: ptr(day(2025, 3, 12)),
	}
	promos := []promotion.Promotion{p}

	require.Nil(t, promotion.Select(cake, day(2025, 3, 9), promos))
	require.NotNil(t, promotion.Select(cake, day(2025, 3, 10), promos))
	require.NotNil(t, promotion.Select(cake, time.Date(2025, 3, 12, 23, 59, 0, 0, time.UTC), promos))
	require.Nil(t, promotion.Select(cake, day(2025, 3, 13), promos))
}

func TestSelectOpenEndedWindow(t *testing.T) {
	p := promotion.Promotion{ID: 1, Active: true, Kind: promotion.KindTwoForOne, Category: promotion.AllCategories, ActiveFrom: ptr(day(2025, 1, 1))}
	require.NotNil(t, promotion.Select(cake, day(2030, 1, 1), []promotion.Promotion{p}))
	require.Nil(t, promotion.Select(cake, day(2024, 12, 31), []promotion.Promotion{p}))
}

func TestSelectStockLimited(t *testing.T) {
	p := promotion.Promotion{ID: 1, Active: true, Kind: promotion.KindTwoForOne, ProductID: ptr(int64(7)), LimitedToStock: true}

	soldOut := cake
	soldOut.Stock = 0
	require.Nil(t, promotion.Select(soldOut, day(2025, 3, 1), []promotion.Promotion{p}))

	lastUnit := cake
	lastUnit.Stock = 1
	require.NotNil(t, promotion.Select(lastUnit, day(2025, 3, 1), []promotion.Promotion{p}))
}

func TestSelectStockLimitedUsesBoundProductStock(t *testing.T) {
	// Bound to product 99 but reaching cakes through its category scope.
	p := promotion.Promotion{
		ID: 1, Active: true, Kind: promotion.KindTwoForOne,
		ProductID: ptr(int64(99)), Category: catalog.CategoryCakes, LimitedToStock: true,
		BoundStock: ptr(0),
	}
	require.Nil(t, promotion.Select(cake, day(2025, 3, 1), []promotion.Promotion{p}))

	p.BoundStock = ptr(3)
	require.NotNil(t, promotion.Select(cake, day(2025, 3, 1), []promotion.Promotion{p}))

	p.BoundStock = nil
	require.Nil(t, promotion.Select(cake, day(2025, 3, 1), []promotion.Promotion{p}))
}

func TestSelectCategoryWideStockLimitedIsNeverSoldOut(t *testing.T) {
	p := promotion.Promotion{ID: 1, Active: true, Kind: promotion.KindTwoForOne, Category: catalog.CategoryCakes, LimitedToStock: true}
	soldOut := cake
	soldOut.Stock = 0
	require.NotNil(t, promotion.Select(soldOut, day(2025, 3, 1), []promotion.Promotion{p}))
}

func TestSelectFirstMatchWins(t *testing.T) {
	promos := []promotion.Promotion{
		{ID: 10, Active: false, Kind: promotion.KindTwoForOne, Category: promotion.AllCategories},
		{ID: 11, Active: true, Kind: promotion.KindPercentageOff, Percentage: ptr(10), Category: catalog.CategoryCakes},
		{ID: 12, Active: true, Kind: promotion.KindPercentageOff, Percentage: ptr(50), ProductID: ptr(int64(7))},
	}
	for i := 0; i < 5; i++ {
		got := promotion.Select(cake, day(2025, 3, 1), promos)
		require.NotNil(t, got)
		require.Equal(t, int64(11), got.ID)
	}

	reordered := []promotion.Promotion{promos[2], promos[1]}
	got := promotion.Select(cake, day(2025, 3, 1), reordered)
	require.Equal(t, int64(12), got.ID)
}

func TestSelectReturnsCopy(t *testing.T) {
	promos := []promotion.Promotion{{ID: 1, Active: true, Kind: promotion.KindTwoForOne, Category: promotion.AllCategories, Title: "2x1"}}
	got := promotion.Select(cake, day(2025, 3, 1), promos)
	got.Title = "changed"
	require.Equal(t, "2x1", promos[0].Title)
}

func TestDisplayLabelFallsBackToTitle(t *testing.T) {
	require.Equal(t, "2x1 tortas", promotion.Promotion{Title: "2x1 tortas"}.DisplayLabel())
	require.Equal(t, "-20%", promotion.Promotion{Title: "Semana dulce", Label: "-20%"}.DisplayLabel())
}

func TestCheckConsistency(t *testing.T) {
	cases := []struct {
		name string
		p    promotion.Promotion
		ok   bool
	}{
		{"two-for-one plain", promotion.Promotion{Kind: promotion.KindTwoForOne}, true},
		{"two-for-one with pct", promotion.Promotion{Kind: promotion.KindTwoForOne, Percentage: ptr(10)}, false},
		{"pct ok", promotion.Promotion{Kind: promotion.KindPercentageOff, Percentage: ptr(10)}, true},
		{"pct missing", promotion.Promotion{Kind: promotion.KindPercentageOff}, false},
		{"pct zero", promotion.Promotion{Kind: promotion.KindPercentageOff, Percentage: ptr(0)}, true},
		{"second zero", promotion.Promotion{Kind: promotion.KindSecondUnitPercentageOff, SecondUnitPercentage: ptr(0)}, true},
		{"two-for-one with zero pct", promotion.Promotion{Kind: promotion.KindTwoForOne, Percentage: ptr(0)}, true},
		{"pct with second", promotion.Promotion{Kind: promotion.KindPercentageOff, Percentage: ptr(10), SecondUnitPercentage: ptr(50)}, false},
		{"second ok", promotion.Promotion{Kind: promotion.KindSecondUnitPercentageOff, SecondUnitPercentage: ptr(50)}, true},
		{"second missing", promotion.Promotion{Kind: promotion.KindSecondUnitPercentageOff}, false},
		{"unknown kind", promotion.Promotion{Kind: "bogof"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.CheckConsistency()
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, promotion.ErrInconsistent)
		})
	}
}

func TestParseKindNormalisesLegacySpellings(t *testing.T) {
	cases := map[string]promotion.Kind{
		"2x1":                      promotion.KindTwoForOne,
		" 2 X 1 ":                  promotion.KindTwoForOne,
		"two_for_one":              promotion.KindTwoForOne,
		"porcentaje":               promotion.KindPercentageOff,
		"descuento_porcentaje":     promotion.KindPercentageOff,
		"segunda_unidad":           promotion.KindSecondUnitPercentageOff,
		"Descuento_Segunda_Unidad": promotion.KindSecondUnitPercentageOff,
		"percentage-off":           promotion.KindPercentageOff,
	}
	for raw, want := range cases {
		got, err := promotion.ParseKind(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
		require.True(t, got.IsValid())
	}
	_, err := promotion.ParseKind("3x2")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := promotion.Promotion{Title: "Semana dulce", Kind: promotion.KindPercentageOff, Percentage: ptr(20), Category: catalog.CategoryCakes}
	require.NoError(t, promotion.Validate(valid))

	bad := valid
	bad.Percentage = nil
	bad.SecondUnitPercentage = ptr(50)
	err := promotion.Validate(bad)
	require.ErrorIs(t, err, promotion.ErrInvalid)
	var verr *promotion.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Contains(t, verr.Fields, "percentage")
	require.Contains(t, verr.Fields, "secondUnitPercentage")

	outOfRange := valid
	outOfRange.Percentage = ptr(150)
	require.True(t, errors.As(promotion.Validate(outOfRange), &verr))
	require.Contains(t, verr.Fields, "percentage")

	backwards := valid
	backwards.ActiveFrom = ptr(day(2025, 3, 10))
	backwards.ActiveUntil = ptr(day(2025, 3, 1))
	require.True(t, errors.As(promotion.Validate(backwards), &verr))
	require.Contains(t, verr.Fields, "activeUntil")

	noScope := valid
	noScope.Category = ""
	require.True(t, errors.As(promotion.Validate(noScope), &verr))
	require.Contains(t, verr.Fields, "scope")
}
