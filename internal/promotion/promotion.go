package promotion

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/backend-pasteleria/internal/catalog"
)

// AllCategories is the category scope matching every product.
const AllCategories catalog.Category = "all"

var (
	// ErrNotFound is returned when a promotion id does not exist.
	ErrNotFound = errors.New("promotion not found")
	// ErrInconsistent marks a promotion whose kind disagrees with its percentage fields.
	ErrInconsistent = errors.New("promotion kind does not match its percentages")
)

// Promotion is a staff-defined discount rule.
type Promotion struct {
	ID                   int64            `json:"id"`
	Title                string           `json:"title" validate:"required,max=100"`
	Label                string           `json:"label,omitempty" validate:"max=50"`
	Description          string           `json:"description,omitempty"`
	ImageURL             string           `json:"imageUrl,omitempty"`
	Kind                 Kind             `json:"kind" validate:"required"`
	Percentage           *int             `json:"percentage,omitempty" validate:"omitempty,min=1,max=100"`
	SecondUnitPercentage *int             `json:"secondUnitPercentage,omitempty" validate:"omitempty,min=1,max=100"`
	ProductID            *int64           `json:"productId,omitempty" validate:"omitempty,gt=0"`
	Category             catalog.Category `json:"category,omitempty"`
	LinkCategory         catalog.Category `json:"linkCategory,omitempty"`
	ActiveFrom           *time.Time       `json:"activeFrom,omitempty"`
	ActiveUntil          *time.Time       `json:"activeUntil,omitempty"`
	LimitedToStock       bool             `json:"limitedToStock"`
	Active               bool             `json:"active"`
	ValidityNote         string           `json:"validityNote,omitempty" validate:"max=100"`

	// BoundStock is the stock of ProductID at load time; nil when the
	// promotion has no bound product or the product no longer exists.
	BoundStock *int `json:"-"`
}

// DisplayLabel is the short badge shown next to a discounted line.
func (p Promotion) DisplayLabel() string {
	if label := strings.TrimSpace(p.Label); label != "" {
		return label
	}
	return p.Title
}

// CheckConsistency verifies that the populated percentage matches the kind.
// A required percentage of zero is present but grants nothing; a stray zero on
// the other field carries no discount and is tolerated.
func (p Promotion) CheckConsistency() error {
	hasPct := p.Percentage != nil
	hasSecond := p.SecondUnitPercentage != nil
	strayPct := hasPct && *p.Percentage != 0
	straySecond := hasSecond && *p.SecondUnitPercentage != 0
	switch p.Kind {
	case KindTwoForOne:
		if strayPct || straySecond {
			return fmt.Errorf("%w: two-for-one carries a percentage", ErrInconsistent)
		}
	case KindPercentageOff:
		if !hasPct || straySecond {
			return fmt.Errorf("%w: percentage-off needs only percentage", ErrInconsistent)
		}
	case KindSecondUnitPercentageOff:
		if !hasSecond || strayPct {
			return fmt.Errorf("%w: second-unit-percentage-off needs only second unit percentage", ErrInconsistent)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInconsistent, p.Kind)
	}
	return nil
}

// Covers reports whether the promotion scope includes product. Product and
// category scopes are alternatives: either one matching is enough.
func (p Promotion) Covers(product catalog.Product) bool {
	if p.ProductID != nil && *p.ProductID == product.ID {
		return true
	}
	if p.Category == "" {
		return false
	}
	return p.Category == AllCategories || p.Category == product.Category
}

// RunsOn reports whether day lies inside the inclusive activity window.
func (p Promotion) RunsOn(day time.Time) bool {
	d := civilDate(day)
	if p.ActiveFrom != nil && civilDate(*p.ActiveFrom).After(d) {
		return false
	}
	if p.ActiveUntil != nil && civilDate(*p.ActiveUntil).Before(d) {
		return false
	}
	return true
}

// SoldOut reports whether a stock-limited promotion has run out of its bound
// product. Category-wide promotions without a bound product never sell out.
func (p Promotion) SoldOut(product catalog.Product) bool {
	if !p.LimitedToStock || p.ProductID == nil {
		return false
	}
	if *p.ProductID == product.ID {
		return product.Stock <= 0
	}
	return p.BoundStock == nil || *p.BoundStock <= 0
}

// Select returns the first promotion, in definition order, that applies to
// product on day. Promotions never stack; later candidates are ignored. A nil
// result means no promotion applies.
func Select(product catalog.Product, day time.Time, promotions []Promotion) *Promotion {
	for i := range promotions {
		p := promotions[i]
		if !p.Active || !p.Covers(product) || !p.RunsOn(day) || p.SoldOut(product) {
			continue
		}
		return &p
	}
	return nil
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
