package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasteleria/internal/catalog"
	"github.com/noah-isme/backend-pasteleria/internal/obs"
	"github.com/noah-isme/backend-pasteleria/internal/promotion"
)

// Item is a cart line as seen by the pricer.
type Item struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// Line is an Item annotated with its pricing outcome.
type Line struct {
	Item
	Product     catalog.Product
	Discount    Discount
	Label       string
	PromotionID *int64
}

// HasDiscount reports whether a promotion lowered the line subtotal.
func (l Line) HasDiscount() bool { return l.Discount.HasDiscount() }

// Priced is the result of pricing a cart.
type Priced struct {
	Lines []Line
	Total decimal.Decimal
	// Removed lists product ids whose lines were dropped because the product
	// no longer exists. Callers persisting the cart should drop them too.
	Removed []int64
}

// Discount sums the savings across lines.
func (p Priced) Discount() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lines {
		total = total.Add(l.Discount.Amount)
	}
	return total
}

// ProductReader resolves products by id. Missing ids are absent from the map.
type ProductReader interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
}

// PromotionReader lists active promotions in definition order.
type PromotionReader interface {
	ListActive(ctx context.Context) ([]promotion.Promotion, error)
}

// Orchestrator prices whole carts. It reads products and promotions but never
// writes; the same instance serves cart views, checkout and payment finalisation.
type Orchestrator struct {
	Products   ProductReader
	Promotions PromotionReader
	Logger     zerolog.Logger
	// Location fixes the civil date promotions are evaluated on.
	Location *time.Location
}

// Price resolves every item, selects at most one promotion per line and sums
// the discounted subtotals. Items whose product no longer exists are dropped
// and reported in Removed.
func (o *Orchestrator) Price(ctx context.Context, items []Item, at time.Time) (Priced, error) {
	if o == nil || o.Products == nil || o.Promotions == nil {
		return Priced{}, errors.New("pricing orchestrator not configured")
	}
	result := Priced{Lines: make([]Line, 0, len(items)), Total: decimal.Zero}
	if len(items) == 0 {
		return result, nil
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := o.Products.GetMany(ctx, ids)
	if err != nil {
		return Priced{}, fmt.Errorf("load products: %w", err)
	}
	promos, err := o.Promotions.ListActive(ctx)
	if err != nil {
		return Priced{}, fmt.Errorf("load promotions: %w", err)
	}

	day := at
	if o.Location != nil {
		day = at.In(o.Location)
	}

	for _, it := range items {
		product, ok := products[it.ProductID]
		if !ok {
			result.Removed = append(result.Removed, it.ProductID)
			if obs.CartLinesHealedTotal != nil {
				obs.CartLinesHealedTotal.Inc()
			}
			o.Logger.Debug().Int64("product_id", it.ProductID).Msg("dropping cart line for missing product")
			continue
		}
		line := o.priceLine(it, product, day, promos)
		result.Lines = append(result.Lines, line)
		result.Total = result.Total.Add(line.Discount.Discounted)
	}
	return result, nil
}

func (o *Orchestrator) priceLine(it Item, product catalog.Product, day time.Time, promos []promotion.Promotion) Line {
	line := Line{Item: it, Product: product}
	promo := promotion.Select(product, day, promos)
	discount, err := ComputeDiscount(it.Quantity, it.UnitPrice, promo)
	if err != nil {
		if obs.PromotionFallbackTotal != nil {
			obs.PromotionFallbackTotal.Inc()
		}
		o.Logger.Warn().Err(err).Int64("product_id", product.ID).Msg("promotion ignored")
	}
	line.Discount = discount
	if promo != nil && discount.HasDiscount() {
		line.Label = promo.DisplayLabel()
		id := promo.ID
		line.PromotionID = &id
		if obs.PromotionsAppliedTotal != nil {
			obs.PromotionsAppliedTotal.WithLabelValues(string(promo.Kind)).Inc()
		}
	}
	return line
}
