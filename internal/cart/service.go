package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasteleria/internal/catalog"
	"github.com/noah-isme/backend-pasteleria/internal/pricing"
)

// Storage persists carts per session.
type Storage interface {
	Load(ctx context.Context, session string) (Cart, error)
	Save(ctx context.Context, session string, c Cart) error
	Delete(ctx context.Context, session string) error
}

// ProductLookup resolves a single product.
type ProductLookup interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
}

// Pricer prices cart items.
type Pricer interface {
	Price(ctx context.Context, items []pricing.Item, at time.Time) (pricing.Priced, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	Store    Storage
	Products ProductLookup
	Pricer   Pricer
	Logger   zerolog.Logger
	Now      func() time.Time
}

// ViewLine is a priced cart line as shown to the shopper.
type ViewLine struct {
	ProductID      int64           `json:"productId"`
	Name           string          `json:"name"`
	ImageURL       string          `json:"imageUrl,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	BaseSubtotal   decimal.Decimal `json:"baseSubtotal"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	HasDiscount    bool            `json:"hasDiscount"`
	PromotionLabel string          `json:"promotionLabel,omitempty"`
}

// View is the priced cart.
type View struct {
	Lines   []ViewLine      `json:"lines"`
	Count   int             `json:"count"`
	Savings decimal.Decimal `json:"savings"`
	Total   decimal.Decimal `json:"total"`
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil || s.Pricer == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

// View loads and prices the cart. Lines whose product disappeared are
// dropped from the stored cart as well.
func (s *Service) View(ctx context.Context, session string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	c, err := s.Store.Load(ctx, session)
	if err != nil {
		return View{}, err
	}
	view, _, err := s.price(ctx, session, &c)
	return view, err
}

// Add puts qty units of productID into the cart and returns the priced result.
func (s *Service) Add(ctx context.Context, session string, productID int64, qty int) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	if s.Products == nil {
		return View{}, errors.New("cart service not configured")
	}
	product, err := s.Products.Get(ctx, productID)
	if err != nil {
		return View{}, err
	}
	c, err := s.Store.Load(ctx, session)
	if err != nil {
		return View{}, err
	}
	if _, err := c.Add(product, qty); err != nil {
		return View{}, err
	}
	if err := s.Store.Save(ctx, session, c); err != nil {
		return View{}, err
	}
	view, _, err := s.price(ctx, session, &c)
	return view, err
}

// Remove drops productID from the cart. Removing an absent product is not an error.
func (s *Service) Remove(ctx context.Context, session string, productID int64) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	c, err := s.Store.Load(ctx, session)
	if err != nil {
		return View{}, err
	}
	if c.Remove(productID) {
		if err := s.Store.Save(ctx, session, c); err != nil {
			return View{}, err
		}
	}
	view, _, err := s.price(ctx, session, &c)
	return view, err
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, session string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.Store.Delete(ctx, session)
}

// Priced loads the cart and returns it with its pricing, healing vanished lines.
func (s *Service) Priced(ctx context.Context, session string) (Cart, pricing.Priced, error) {
	if err := s.ready(); err != nil {
		return Cart{}, pricing.Priced{}, err
	}
	c, err := s.Store.Load(ctx, session)
	if err != nil {
		return Cart{}, pricing.Priced{}, err
	}
	_, priced, err := s.price(ctx, session, &c)
	if err != nil {
		return Cart{}, pricing.Priced{}, err
	}
	return c, priced, nil
}

// price heals c in place so callers keep the cart that was persisted.
func (s *Service) price(ctx context.Context, session string, c *Cart) (View, pricing.Priced, error) {
	priced, err := s.Pricer.Price(ctx, c.Items(), s.now())
	if err != nil {
		return View{}, pricing.Priced{}, fmt.Errorf("price cart: %w", err)
	}
	if len(priced.Removed) > 0 {
		c.RemoveAll(priced.Removed)
		if err := s.Store.Save(ctx, session, *c); err != nil {
			s.Logger.Warn().Err(err).Msg("failed to persist healed cart")
		}
	}
	return NewView(*c, priced), priced, nil
}

// NewView merges cart display data with pricing output.
func NewView(c Cart, priced pricing.Priced) View {
	names := make(map[int64]Line, len(c.Lines))
	for _, l := range c.Lines {
		names[l.ProductID] = l
	}
	view := View{Lines: make([]ViewLine, 0, len(priced.Lines)), Total: priced.Total, Savings: priced.Discount()}
	for _, pl := range priced.Lines {
		stored := names[pl.ProductID]
		name := stored.Name
		if name == "" {
			name = pl.Product.Name
		}
		image := stored.ImageURL
		if image == "" {
			image = pl.Product.ImageURL
		}
		view.Lines = append(view.Lines, ViewLine{
			ProductID:      pl.ProductID,
			Name:           name,
			ImageURL:       image,
			Quantity:       pl.Quantity,
			UnitPrice:      pl.UnitPrice,
			BaseSubtotal:   pl.Discount.Base,
			Subtotal:       pl.Discount.Discounted,
			Discount:       pl.Discount.Amount,
			HasDiscount:    pl.HasDiscount(),
			PromotionLabel: pl.Label,
		})
		view.Count += pl.Quantity
	}
	return view
}
