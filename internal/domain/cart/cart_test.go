package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_AddItem_MergesSameVariant(t *testing.T) {
	c := New("u1")
	price := decimal.RequireFromString("25.00")

	require.NoError(t, c.AddItem("p1", 2, "M", "Black", price))
	require.NoError(t, c.AddItem("p1", 3, "M", "Black", price))

	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
}

func TestCart_AddItem_DistinctVariants(t *testing.T) {
	c := New("u1")
	price := decimal.RequireFromString("25.00")

	require.NoError(t, c.AddItem("p1", 1, "M", "Black", price))
	require.NoError(t, c.AddItem("p1", 1, "L", "Black", price))
	require.NoError(t, c.AddItem("p1", 1, "M", "White", price))
	require.NoError(t, c.AddItem("p2", 1, "M", "Black", price))

	assert.Len(t, c.Items, 4)
}

func TestCart_AddItem_OrderIndependent(t *testing.T) {
	a := New("u1")
	b := New("u1")
	p1 := decimal.RequireFromString("25.00")
	p2 := decimal.RequireFromString("60.00")

	require.NoError(t, a.AddItem("p1", 2, "M", "Black", p1))
	require.NoError(t, a.AddItem("p2", 1, "L", "Red", p2))

	require.NoError(t, b.AddItem("p2", 1, "L", "Red", p2))
	require.NoError(t, b.AddItem("p1", 2, "M", "Black", p1))

	assert.True(t, a.Subtotal().Equal(b.Subtotal()))
	assert.Len(t, b.Items, len(a.Items))
}

func TestCart_AddItem_InvalidQuantity(t *testing.T) {
	c := New("u1")

	require.ErrorIs(t, c.AddItem("p1", 0, "M", "Black", decimal.NewFromInt(10)), ErrInvalidQuantity)
	require.ErrorIs(t, c.AddItem("p1", -1, "M", "Black", decimal.NewFromInt(10)), ErrInvalidQuantity)
	assert.True(t, c.IsEmpty())
}

func TestCart_Subtotal(t *testing.T) {
	c := New("u1")
	require.NoError(t, c.AddItem("p1", 2, "M", "Black", decimal.RequireFromString("40.00")))
	require.NoError(t, c.AddItem("p2", 1, "S", "Red", decimal.RequireFromString("50.00")))

	assert.True(t, c.Subtotal().Equal(decimal.RequireFromString("130.00")), "got %s", c.Subtotal())
}

func TestCart_TotalWithDiscount(t *testing.T) {
	c := New("u1")
	require.NoError(t, c.AddItem("p1", 2, "M", "Black", decimal.RequireFromString("40.00")))
	require.NoError(t, c.AddItem("p2", 1, "S", "Red", decimal.RequireFromString("50.00")))

	c.ApplyCoupon("SAVE10", decimal.RequireFromString("10.00"))

	got := c.TotalWithDiscount()
	assert.True(t, got.Equal(decimal.RequireFromString("120.00")), "got %s", got)
}

func TestCart_RemoveItem(t *testing.T) {
	c := New("u1")
	require.NoError(t, c.AddItem("p1", 1, "M", "Black", decimal.NewFromInt(10)))
	require.NoError(t, c.AddItem("p2", 1, "S", "Red", decimal.NewFromInt(20)))

	require.NoError(t, c.RemoveItem(c.Items[0].ID))
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p2", c.Items[0].ProductID)

	require.ErrorIs(t, c.RemoveItem("nope"), ErrLineNotFound)
}

func TestCart_UpdateItemQuantity(t *testing.T) {
	c := New("u1")
	require.NoError(t, c.AddItem("p1", 1, "M", "Black", decimal.NewFromInt(10)))

	require.NoError(t, c.UpdateItemQuantity(c.Items[0].ID, 7))
	assert.Equal(t, 7, c.Items[0].Quantity)

	require.ErrorIs(t, c.UpdateItemQuantity("nope", 1), ErrLineNotFound)
	require.ErrorIs(t, c.UpdateItemQuantity(c.Items[0].ID, -1), ErrInvalidQuantity)
}

func TestCart_UpdateItemQuantity_ZeroKeepsLine(t *testing.T) {
	c := New("u1")
	require.NoError(t, c.AddItem("p1", 2, "M", "Black", decimal.NewFromInt(10)))

	require.NoError(t, c.UpdateItemQuantity(c.Items[0].ID, 0))

	require.Len(t, c.Items, 1)
	assert.Equal(t, 0, c.Items[0].Quantity)
	assert.True(t, c.Subtotal().IsZero())
}

func TestCart_Clear(t *testing.T) {
	c := New("u1")
	require.NoError(t, c.AddItem("p1", 1, "M", "Black", decimal.NewFromInt(10)))
	c.ApplyCoupon("SAVE10", decimal.NewFromInt(5))

	c.Clear()

	assert.True(t, c.IsEmpty())
	assert.Empty(t, c.CouponCode)
	assert.True(t, c.Discount.IsZero())
}

func TestLine_Total(t *testing.T) {
	l := Line{Quantity: 3, UnitPrice: decimal.RequireFromString("19.99")}
	assert.True(t, l.Total().Equal(decimal.RequireFromString("59.97")))
}
