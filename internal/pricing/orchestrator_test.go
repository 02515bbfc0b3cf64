package pricing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pasteleria/internal/catalog"
	"github.com/noah-isme/backend-pasteleria/internal/obs"
	"github.com/noah-isme/backend-pasteleria/internal/pricing"
	"github.com/noah-isme/backend-pasteleria/internal/promotion"
)

type fakeProducts map[int64]catalog.Product

func (f fakeProducts) GetMany(_ context.Context, ids []int64) (map[int64]catalog.Product, error) {
	out := map[int64]catalog.Product{}
	for _, id := range ids {
		if p, ok := f[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakePromotions struct {
	items []promotion.Promotion
	err   error
	calls int
}

func (f *fakePromotions) ListActive(context.Context) ([]promotion.Promotion, error) {
	f.calls++
	return f.items, f.err
}

var now = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func catalogFixture() fakeProducts {
	return fakeProducts{
		1: {ID: 1, Name: "Kuchen de manzana", Category: catalog.CategoryDisplayCase, Price: money(1000), Stock: 10},
		2: {ID: 2, Name: "Torta selva negra", Category: catalog.CategoryCakes, Price: money(2500), Stock: 3},
		3: {ID: 3, Name: "Mousse de maracuya", Category: catalog.CategoryDesserts, Price: money(1000), Stock: 0},
	}
}

func TestPriceAppliesOnePromotionPerLine(t *testing.T) {
	promos := &fakePromotions{items: []promotion.Promotion{
		{ID: 1, Active: true, Title: "2x1 vitrina", Kind: promotion.KindTwoForOne, Category: catalog.CategoryDisplayCase},
		{ID: 2, Active: true, Title: "Tortas", Label: "-20%", Kind: promotion.KindPercentageOff, Percentage: ptr(20), Category: catalog.CategoryCakes},
	}}
	o := &pricing.Orchestrator{Products: catalogFixture(), Promotions: promos, Logger: zerolog.Nop()}

	priced, err := o.Price(context.Background(), []pricing.Item{
		{ProductID: 1, Quantity: 3, UnitPrice: money(1000)},
		{ProductID: 2, Quantity: 1, UnitPrice: money(2500)},
		{ProductID: 3, Quantity: 2, UnitPrice: money(1000)},
	}, now)
	require.NoError(t, err)
	require.Len(t, priced.Lines, 3)
	require.Equal(t, 1, promos.calls)

	requireMoney(t, 2000, priced.Lines[0].Discount.Discounted)
	require.Equal(t, "2x1 vitrina", priced.Lines[0].Label)
	require.Equal(t, int64(1), *priced.Lines[0].PromotionID)

	requireMoney(t, 2000, priced.Lines[1].Discount.Discounted)
	require.Equal(t, "-20%", priced.Lines[1].Label)

	require.False(t, priced.Lines[2].HasDiscount())
	require.Empty(t, priced.Lines[2].Label)
	require.Nil(t, priced.Lines[2].PromotionID)

	requireMoney(t, 6000, priced.Total)
	requireMoney(t, 1500, priced.Discount())
}

func TestPriceLabelOnlyWhenDiscounted(t *testing.T) {
	promos := &fakePromotions{items: []promotion.Promotion{
		{ID: 1, Active: true, Title: "2x1", Kind: promotion.KindTwoForOne, Category: promotion.AllCategories},
	}}
	o := &pricing.Orchestrator{Products: catalogFixture(), Promotions: promos, Logger: zerolog.Nop()}

	priced, err := o.Price(context.Background(), []pricing.Item{{ProductID: 1, Quantity: 1, UnitPrice: money(1000)}}, now)
	require.NoError(t, err)
	require.Empty(t, priced.Lines[0].Label)
	require.False(t, priced.Lines[0].HasDiscount())
}

func TestPriceDropsMissingProducts(t *testing.T) {
	o := &pricing.Orchestrator{Products: catalogFixture(), Promotions: &fakePromotions{}, Logger: zerolog.Nop()}

	priced, err := o.Price(context.Background(), []pricing.Item{
		{ProductID: 1, Quantity: 2, UnitPrice: money(1000)},
		{ProductID: 42, Quantity: 5, UnitPrice: money(9999)},
	}, now)
	require.NoError(t, err)
	require.Len(t, priced.Lines, 1)
	require.Equal(t, []int64{42}, priced.Removed)
	requireMoney(t, 2000, priced.Total)
}

func TestPriceUsesCapturedUnitPrice(t *testing.T) {
	o := &pricing.Orchestrator{Products: catalogFixture(), Promotions: &fakePromotions{}, Logger: zerolog.Nop()}

	priced, err := o.Price(context.Background(), []pricing.Item{{ProductID: 2, Quantity: 2, UnitPrice: money(2200)}}, now)
	require.NoError(t, err)
	requireMoney(t, 4400, priced.Total)
}

func TestPriceInconsistentPromotionFallsBackAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("pasteleria_test", reg)
	before := testutil.ToFloat64(obs.PromotionFallbackTotal)

	promos := &fakePromotions{items: []promotion.Promotion{
		{ID: 1, Active: true, Title: "roto", Kind: promotion.KindPercentageOff, Category: promotion.AllCategories},
		{ID: 2, Active: true, Title: "2x1", Kind: promotion.KindTwoForOne, Category: promotion.AllCategories},
	}}
	o := &pricing.Orchestrator{Products: catalogFixture(), Promotions: promos, Logger: zerolog.Nop()}

	priced, err := o.Price(context.Background(), []pricing.Item{{ProductID: 1, Quantity: 2, UnitPrice: money(1000)}}, now)
	require.NoError(t, err)
	// The broken promotion is still the selected one, so the second never applies.
	requireMoney(t, 2000, priced.Total)
	require.Empty(t, priced.Lines[0].Label)
	require.Equal(t, before+1, testutil.ToFloat64(obs.PromotionFallbackTotal))
}

func TestPriceZeroPercentageIsNotAFault(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("pasteleria_test", reg)
	before := testutil.ToFloat64(obs.PromotionFallbackTotal)

	promos := &fakePromotions{items: []promotion.Promotion{
		{ID: 1, Active: true, Title: "0%", Kind: promotion.KindPercentageOff, Percentage: ptr(0), Category: promotion.AllCategories},
	}}
	o := &pricing.Orchestrator{Products: catalogFixture(), Promotions: promos, Logger: zerolog.Nop()}

	priced, err := o.Price(context.Background(), []pricing.Item{{ProductID: 1, Quantity: 2, UnitPrice: money(1000)}}, now)
	require.NoError(t, err)
	requireMoney(t, 2000, priced.Total)
	require.False(t, priced.Lines[0].HasDiscount())
	require.Equal(t, before, testutil.ToFloat64(obs.PromotionFallbackTotal))
}

func TestPriceEvaluatesDateInStoreLocation(t *testing.T) {
	loc := time.FixedZone("CLT", -3*3600)
	promos := &fakePromotions{items: []promotion.Promotion{{
		ID: 1, Active: true, Title: "Solo el 15", Kind: promotion.KindTwoForOne, Category: promotion.AllCategories,
		ActiveFrom:  ptr(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)),
		ActiveUntil: ptr(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)),
	}}}
	o := &pricing.Orchestrator{Products: catalogFixture(), Promotions: promos, Logger: zerolog.Nop(), Location: loc}

	// 01:00 UTC on the 16th is still the 15th in the store's zone.
	at := time.Date(2025, 3, 16, 1, 0, 0, 0, time.UTC)
	priced, err := o.Price(context.Background(), []pricing.Item{{ProductID: 1, Quantity: 2, UnitPrice: money(1000)}}, at)
	require.NoError(t, err)
	requireMoney(t, 1000, priced.Total)
}

func TestPriceIsIdempotent(t *testing.T) {
	promos := &fakePromotions{items: []promotion.Promotion{
		{ID: 1, Active: true, Title: "Segunda", Kind: promotion.KindSecondUnitPercentageOff, SecondUnitPercentage: ptr(50), Category: promotion.AllCategories},
	}}
	o := &pricing.Orchestrator{Products: catalogFixture(), Promotions: promos, Logger: zerolog.Nop()}
	items := []pricing.Item{{ProductID: 1, Quantity: 5, UnitPrice: money(1000)}}

	first, err := o.Price(context.Background(), items, now)
	require.NoError(t, err)
	second, err := o.Price(context.Background(), items, now)
	require.NoError(t, err)
	require.True(t, first.Total.Equal(second.Total))
	requireMoney(t, 4000, first.Total)
}

func TestPriceEmptyCartSkipsReads(t *testing.T) {
	promos := &fakePromotions{}
	o := &pricing.Orchestrator{Products: catalogFixture(), Promotions: promos, Logger: zerolog.Nop()}
	priced, err := o.Price(context.Background(), nil, now)
	require.NoError(t, err)
	require.Empty(t, priced.Lines)
	requireMoney(t, 0, priced.Total)
	require.Zero(t, promos.calls)
}

func TestPricePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	o := &pricing.Orchestrator{Products: catalogFixture(), Promotions: &fakePromotions{err: boom}, Logger: zerolog.Nop()}
	_, err := o.Price(context.Background(), []pricing.Item{{ProductID: 1, Quantity: 1, UnitPrice: money(1000)}}, now)
	require.ErrorIs(t, err, boom)
}
