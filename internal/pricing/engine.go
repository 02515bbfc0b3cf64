package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasteleria/internal/promotion"
)

// ErrInconsistentPromotion is reported alongside a full-price result when a
// promotion's kind disagrees with its percentage fields.
var ErrInconsistentPromotion = promotion.ErrInconsistent

var hundred = decimal.NewFromInt(100)

// Discount is the outcome of pricing one line.
type Discount struct {
	Base       decimal.Decimal `json:"baseSubtotal"`
	Discounted decimal.Decimal `json:"subtotal"`
	Amount     decimal.Decimal `json:"discount"`
}

// HasDiscount reports whether the line is cheaper than its base subtotal.
func (d Discount) HasDiscount() bool {
	return d.Amount.IsPositive()
}

// ComputeDiscount prices qty units at unitPrice under promo. A nil promo, a
// quantity the kind does not reward, or a non-positive percentage all leave the
// base subtotal untouched. An inconsistent promo is priced as no promotion and
// the wrapped ErrInconsistentPromotion is returned with the full-price result.
func ComputeDiscount(qty int, unitPrice decimal.Decimal, promo *promotion.Promotion) (Discount, error) {
	if qty < 0 {
		qty = 0
	}
	if unitPrice.IsNegative() {
		unitPrice = decimal.Zero
	}
	base := unitPrice.Mul(decimal.NewFromInt(int64(qty)))
	full := Discount{Base: base, Discounted: base, Amount: decimal.Zero}
	if promo == nil {
		return full, nil
	}
	if err := promo.CheckConsistency(); err != nil {
		return full, fmt.Errorf("promotion %d: %w", promo.ID, err)
	}

	discounted := base
	switch promo.Kind {
	case KindTwoForOne:
		if qty >= 2 {
			payable := qty/2 + qty%2
			discounted = unitPrice.Mul(decimal.NewFromInt(int64(payable)))
		}
	case KindPercentageOff:
		if pct := *promo.Percentage; pct > 0 {
			discounted = applyPercent(base, pct)
		}
	case KindSecondUnitPercentageOff:
		if pct := *promo.SecondUnitPercentage; qty >= 2 && pct > 0 {
			pair := unitPrice.Add(applyPercent(unitPrice, pct))
			pairs := decimal.NewFromInt(int64(qty / 2))
			single := unitPrice.Mul(decimal.NewFromInt(int64(qty % 2)))
			discounted = pair.Mul(pairs).Add(single)
		}
	}
	return clamp(base, discounted), nil
}

// RoundUnit rounds half-up to whole currency units.
func RoundUnit(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// UnitPriceFor is the per-unit price recorded on an order line: the
// discounted subtotal spread over qty and rounded to whole units.
func UnitPriceFor(subtotal decimal.Decimal, qty int) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	return RoundUnit(subtotal.Div(decimal.NewFromInt(int64(qty))))
}

// Kind aliases keep call sites in this package short.
const (
	KindTwoForOne               = promotion.KindTwoForOne
	KindPercentageOff           = promotion.KindPercentageOff
	KindSecondUnitPercentageOff = promotion.KindSecondUnitPercentageOff
)

func applyPercent(amount decimal.Decimal, pct int) decimal.Decimal {
	if pct > 100 {
		pct = 100
	}
	return amount.Mul(decimal.NewFromInt(int64(100 - pct))).Div(hundred)
}

func clamp(base, discounted decimal.Decimal) Discount {
	if discounted.IsNegative() {
		discounted = decimal.Zero
	}
	if discounted.GreaterThan(base) {
		discounted = base
	}
	return Discount{Base: base, Discounted: discounted, Amount: base.Sub(discounted)}
}
