package cart_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pasteleria/internal/cart"
	"github.com/noah-isme/backend-pasteleria/internal/catalog"
)

func product(id int64, stock int, price int64) catalog.Product {
	return catalog.Product{ID: id, Name: "Alfajor", Category: catalog.CategoryDisplayCase, Price: decimal.NewFromInt(price), Stock: stock}
}

func TestAddMergesAndClampsToStock(t *testing.T) {
	var c cart.Cart

	added, err := c.Add(product(1, 3, 800), 2)
	require.NoError(t, err)
	require.Equal(t, 2, added)

	added, err = c.Add(product(1, 3, 800), 5)
	require.NoError(t, err)
	require.Equal(t, 1, added)
	require.Len(t, c.Lines, 1)
	require.Equal(t, 3, c.Lines[0].Quantity)

	_, err = c.Add(product(1, 3, 800), 1)
	require.ErrorIs(t, err, cart.ErrStockLimit)
}

func TestAddKeepsCapturedPrice(t *testing.T) {
	var c cart.Cart
	_, err := c.Add(product(1, 10, 800), 1)
	require.NoError(t, err)
	_, err = c.Add(product(1, 10, 950), 1)
	require.NoError(t, err)
	require.True(t, c.Lines[0].UnitPrice.Equal(decimal.NewFromInt(800)))
}

func TestAddRejectsOutOfStockAndBadQuantity(t *testing.T) {
	var c cart.Cart
	_, err := c.Add(product(1, 0, 800), 1)
	require.ErrorIs(t, err, cart.ErrOutOfStock)

	_, err = c.Add(product(1, 5, 800), 0)
	require.ErrorIs(t, err, cart.ErrInvalidInput)
	require.True(t, c.IsEmpty())
}

func TestRemoveClearAndCount(t *testing.T) {
	var c cart.Cart
	_, _ = c.Add(product(1, 10, 800), 2)
	_, _ = c.Add(product(2, 10, 1200), 3)
	require.Equal(t, 5, c.Count())

	require.True(t, c.Remove(1))
	require.False(t, c.Remove(1))
	require.Equal(t, 3, c.Count())

	items := c.Items()
	require.Len(t, items, 1)
	require.Equal(t, int64(2), items[0].ProductID)

	c.Clear()
	require.True(t, c.IsEmpty())
	require.Zero(t, c.Count())
}
