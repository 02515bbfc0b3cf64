package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Category is the fixed set of shelves a product can belong to.
type Category string

const (
	CategoryDisplayCase Category = "display-case"
	CategoryCakes       Category = "cakes"
	CategoryDesserts    Category = "desserts"
)

var categories = []Category{
	CategoryDisplayCase,
	CategoryCakes,
	CategoryDesserts,
}

var categoryNames = map[Category]string{
	CategoryDisplayCase: "Display case pastries",
	CategoryCakes:       "Cakes",
	CategoryDesserts:    "Desserts",
}

// Categories returns every category in menu order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	for _, candidate := range categories {
		if candidate == c {
			return true
		}
	}
	return false
}

// DisplayName returns the human readable shelf name.
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

// ParseCategory accepts canonical slugs as well as the legacy storefront slugs.
func ParseCategory(value string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "display-case", "display_case", "vitrina":
		return CategoryDisplayCase, nil
	case "cakes", "tortas":
		return CategoryCakes, nil
	case "desserts", "postres":
		return CategoryDesserts, nil
	}
	return "", fmt.Errorf("invalid category %q", value)
}

// Product is a sellable item of the bakery.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name" validate:"required,max=100"`
	Category    Category        `json:"category" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"min=0"`
	Description string          `json:"description,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Featured    bool            `json:"featured"`
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}
