package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasteleria/internal/catalog"
	"github.com/noah-isme/backend-pasteleria/internal/pricing"
)

var (
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
	// ErrOutOfStock is returned when adding a product with no stock left.
	ErrOutOfStock = errors.New("product out of stock")
	// ErrStockLimit is returned when the cart already holds all available units.
	ErrStockLimit = errors.New("cart already holds all available units")
	// ErrEmpty is returned when an operation needs at least one line.
	ErrEmpty = errors.New("cart is empty")
)

// Line is one product in a cart. UnitPrice is captured when the product is
// first added and kept for the life of the line.
type Line struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Cart is a shopper's cart, in insertion order.
type Cart struct {
	Lines []Line `json:"lines"`
}

// Add puts qty units of product into the cart, merging with an existing line
// and never exceeding the product's current stock. It returns the number of
// units actually added.
func (c *Cart) Add(product catalog.Product, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	if !product.InStock() {
		return 0, fmt.Errorf("%s: %w", product.Name, ErrOutOfStock)
	}
	idx := c.index(product.ID)
	current := 0
	if idx >= 0 {
		current = c.Lines[idx].Quantity
	}
	if current >= product.Stock {
		return 0, fmt.Errorf("%s (stock %d): %w", product.Name, product.Stock, ErrStockLimit)
	}
	next := current + qty
	if next > product.Stock {
		next = product.Stock
	}
	if idx >= 0 {
		c.Lines[idx].Quantity = next
	} else {
		c.Lines = append(c.Lines, Line{
			ProductID: product.ID,
			Name:      product.Name,
			ImageURL:  product.ImageURL,
			Quantity:  next,
			UnitPrice: product.Price,
		})
	}
	return next - current, nil
}

// Remove drops the line for productID. It reports whether a line was removed.
func (c *Cart) Remove(productID int64) bool {
	idx := c.index(productID)
	if idx < 0 {
		return false
	}
	c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	return true
}

// RemoveAll drops the lines of every listed product.
func (c *Cart) RemoveAll(productIDs []int64) {
	for _, id := range productIDs {
		c.Remove(id)
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = nil
}

// Count is the total number of units in the cart.
func (c Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// Items converts the cart into pricing input.
func (c Cart) Items() []pricing.Item {
	items := make([]pricing.Item, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, pricing.Item{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return items
}

func (c Cart) index(productID int64) int {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}
