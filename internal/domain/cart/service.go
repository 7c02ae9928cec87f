package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/fashionnest/internal/domain/coupon"
	"github.com/xenking/fashionnest/internal/domain/product"
)

// UnknownVariantError indicates an add request for a size or color the
// product does not carry.
type UnknownVariantError struct {
	ProductID string
	Size      string
	Color     string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("product %s has no variant size=%s color=%s", e.ProductID, e.Size, e.Color)
}

// Service wraps the cart aggregate with the repository round trips the
// storefront needs: price snapshots on add, coupon validation on apply.
type Service struct {
	carts    Repository
	products product.Repository
	coupons  coupon.Repository
	now      func() time.Time
}

// NewService creates a cart Service with the required dependencies.
func NewService(carts Repository, products product.Repository, coupons coupon.Repository) *Service {
	return &Service{
		carts:    carts,
		products: products,
		coupons:  coupons,
		now:      time.Now,
	}
}

// Get returns the user's cart, creating an empty one on first use.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	return s.carts.FindOrCreate(ctx, userID)
}

// AddItem validates the product variant, snapshots the effective price, and
// merges the line into the user's cart.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int, size, color string) (*Cart, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !variantExists(p, size, color) {
		return nil, &UnknownVariantError{ProductID: productID, Size: size, Color: color}
	}

	c, err := s.carts.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.AddItem(productID, qty, size, color, p.EffectivePrice()); err != nil {
		return nil, err
	}

	c.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// RemoveItem deletes a line from the user's cart and persists the result.
func (s *Service) RemoveItem(ctx context.Context, userID, lineID string) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.RemoveItem(lineID)
	})
}

// UpdateItemQuantity sets a line's quantity and persists the result.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, lineID string, qty int) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.UpdateItemQuantity(lineID, qty)
	})
}

// ApplyCoupon validates the code against the current subtotal and attaches
// it to the cart. The stored discount is recomputed again at checkout.
func (s *Service) ApplyCoupon(ctx context.Context, userID, code string) (*Cart, error) {
	cp, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !cp.ValidAt(s.now()) {
		return nil, coupon.ErrInvalid
	}

	return s.mutate(ctx, userID, func(c *Cart) error {
		c.ApplyCoupon(cp.Code, cp.CalculateDiscount(c.Subtotal()))
		return nil
	})
}

// RemoveCoupon detaches any applied coupon.
func (s *Service) RemoveCoupon(ctx context.Context, userID string) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		c.ApplyCoupon("", decimal.Zero)
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, userID string, fn func(*Cart) error) (*Cart, error) {
	c, err := s.carts.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

func variantExists(p *product.Product, size, color string) bool {
	sizeOK := false
	for _, s := range p.Sizes {
		if s.Name == size {
			sizeOK = true
			break
		}
	}
	if !sizeOK {
		return false
	}
	for _, c := range p.Colors {
		if c.Name == color {
			return true
		}
	}
	return false
}
