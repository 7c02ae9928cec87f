package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentinel errors for cart operations.
var (
	// ErrLineNotFound is returned when a line id does not exist in the cart.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrInvalidQuantity is returned when an added quantity is not positive.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Line is one (product, size, color) entry in a cart. UnitPrice is captured
// when the line is added and never re-read from the live product.
type Line struct {
	ID        string          `bson:"id"`
	ProductID string          `bson:"product_id"`
	Quantity  int             `bson:"quantity"`
	Size      string          `bson:"size"`
	Color     string          `bson:"color"`
	UnitPrice decimal.Decimal `bson:"unit_price"`
}

// Total returns UnitPrice multiplied by Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds a user's pending line items. Each user owns exactly one cart,
// created lazily on first use.
type Cart struct {
	ID         string          `bson:"_id"`
	UserID     string          `bson:"user_id"`
	Items      []Line          `bson:"items"`
	CouponCode string          `bson:"coupon_code"`
	Discount   decimal.Decimal `bson:"discount"`
	UpdatedAt  time.Time       `bson:"updated_at"`
}

// New returns an empty cart for the given user.
func New(userID string) *Cart {
	return &Cart{
		ID:       uuid.New().String(),
		UserID:   userID,
		Discount: decimal.Zero,
	}
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// AddItem merges the quantity into an existing line with the same
// (product, size, color) key, or appends a new line with the given unit
// price snapshot.
func (c *Cart) AddItem(productID string, qty int, size, color string, unitPrice decimal.Decimal) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	for i := range c.Items {
		l := &c.Items[i]
		if l.ProductID == productID && l.Size == size && l.Color == color {
			l.Quantity += qty
			return nil
		}
	}

	c.Items = append(c.Items, Line{
		ID:        uuid.New().String(),
		ProductID: productID,
		Quantity:  qty,
		Size:      size,
		Color:     color,
		UnitPrice: unitPrice,
	})
	return nil
}

// RemoveItem deletes the line with the given id. Returns ErrLineNotFound
// when the id does not belong to this cart.
func (c *Cart) RemoveItem(lineID string) error {
	for i := range c.Items {
		if c.Items[i].ID == lineID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

// UpdateItemQuantity sets the quantity on an existing line. A zero quantity
// is stored as-is: the line stays in the cart until removed explicitly.
func (c *Cart) UpdateItemQuantity(lineID string, qty int) error {
	if qty < 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ID == lineID {
			c.Items[i].Quantity = qty
			return nil
		}
	}
	return ErrLineNotFound
}

// Subtotal returns the sum of price multiplied by quantity over all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Items {
		sum = sum.Add(l.Total())
	}
	return sum
}

// TotalWithDiscount returns Subtotal minus the stored discount. The discount
// is set when a coupon is applied and is not recomputed here, so it can go
// stale when lines change afterwards; the checkout workflow recomputes it
// from the live coupon before charging.
func (c *Cart) TotalWithDiscount() decimal.Decimal {
	return c.Subtotal().Sub(c.Discount)
}

// ApplyCoupon attaches a coupon code and its computed discount amount.
func (c *Cart) ApplyCoupon(code string, discount decimal.Decimal) {
	c.CouponCode = code
	c.Discount = discount
}

// Clear empties the cart and drops any applied coupon.
func (c *Cart) Clear() {
	c.Items = nil
	c.CouponCode = ""
	c.Discount = decimal.Zero
}

// Repository defines persistence operations for carts.
type Repository interface {
	// FindOrCreate returns the user's cart, creating an empty one when the
	// user has never had a cart.
	FindOrCreate(ctx context.Context, userID string) (*Cart, error)
	// Save persists the full cart document.
	Save(ctx context.Context, c *Cart) error
}
