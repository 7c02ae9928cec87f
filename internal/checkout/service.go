// Package checkout orchestrates the purchase workflow: cart validation,
// coupon revalidation, payment capture, stock redemption, order snapshot,
// and cart clearing. Every failure before the order exists leaves cart,
// stock, and coupon usage unchanged.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/fashionnest/internal/domain/cart"
	"github.com/xenking/fashionnest/internal/domain/coupon"
	"github.com/xenking/fashionnest/internal/domain/order"
	"github.com/xenking/fashionnest/internal/domain/product"
	"github.com/xenking/fashionnest/internal/payment"
)

// Sentinel errors for checkout validation.
var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
)

// StockError indicates a cart line whose product or size cannot be fulfilled.
type StockError struct {
	ProductID string
	Size      string
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s size %s (requested %d)", e.ProductID, e.Size, e.Requested)
}

// Config holds non-dependency settings for the checkout Service.
type Config struct {
	// Currency is the ISO code charged at the gateway.
	Currency string
	// PaymentTimeout bounds a single gateway round trip. On expiry the
	// workflow fails closed: no order is created.
	PaymentTimeout time.Duration
	// NotifyTimeout bounds the fire-and-forget confirmation delivery.
	NotifyTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if c.PaymentTimeout <= 0 {
		c.PaymentTimeout = 10 * time.Second
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = 5 * time.Second
	}
}

// Service encapsulates the checkout workflow.
type Service struct {
	cfg      Config
	carts    cart.Repository
	products product.Repository
	coupons  coupon.Repository
	orders   order.Repository
	gateway  payment.Gateway
	notifier payment.Notifier
	lg       *zap.Logger
	now      func() time.Time
}

// NewService constructs a checkout Service with its collaborators. The
// payment gateway is injected here, fully configured, rather than read from
// any shared process state.
func NewService(
	cfg Config,
	carts cart.Repository,
	products product.Repository,
	coupons coupon.Repository,
	orders order.Repository,
	gateway payment.Gateway,
	notifier payment.Notifier,
	lg *zap.Logger,
) *Service {
	cfg.setDefaults()
	return &Service{
		cfg:      cfg,
		carts:    carts,
		products: products,
		coupons:  coupons,
		orders:   orders,
		gateway:  gateway,
		notifier: notifier,
		lg:       lg,
		now:      time.Now,
	}
}

// PlaceOrderRequest holds the input for a checkout.
type PlaceOrderRequest struct {
	UserID          string
	ShippingAddress order.Address
	PaymentMethod   order.PaymentMethod
	ShippingCost    decimal.Decimal
}

// PlaceOrder runs the full checkout workflow for the user's cart.
//
// Mutation ordering: nothing is written before the gateway confirms the
// charge. After confirmation the workflow decrements stock with atomic
// conditional updates, redeems the coupon with a conditional increment,
// creates the order snapshot, and clears the cart. A conflict mid-sequence
// compensates the already-applied decrements before reporting the error.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*order.Order, error) {
	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}

	c, err := s.carts.FindOrCreate(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	// Pre-check stock and build the order item snapshots. The authoritative
	// stock check is the conditional decrement after payment; this pass
	// rejects obviously unfulfillable carts before charging the customer.
	items := make([]order.Item, len(c.Items))
	for i, line := range c.Items {
		p, err := s.products.Get(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, &StockError{ProductID: line.ProductID, Size: line.Size, Requested: line.Quantity}
			}
			return nil, errors.Wrapf(err, "load product %s", line.ProductID)
		}
		if p.SizeStock(line.Size) < line.Quantity {
			return nil, &StockError{ProductID: line.ProductID, Size: line.Size, Requested: line.Quantity}
		}

		image := ""
		if len(p.Images) > 0 {
			image = p.Images[0]
		}
		items[i] = order.Item{
			ProductID: line.ProductID,
			Name:      p.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Size:      line.Size,
			Color:     line.Color,
			Image:     image,
		}
	}

	subtotal := c.Subtotal()

	// Revalidate the attached coupon against the current subtotal; the
	// discount stored on the cart may be stale.
	discount := decimal.Zero
	var redeemed *coupon.Coupon
	if c.CouponCode != "" {
		cp, err := s.coupons.FindByCode(ctx, c.CouponCode)
		if err != nil {
			if errors.Is(err, coupon.ErrNotFound) {
				return nil, coupon.ErrNotFound
			}
			return nil, errors.Wrap(err, "load coupon")
		}
		if !cp.ValidAt(s.now()) {
			return nil, coupon.ErrInvalid
		}
		discount = cp.CalculateDiscount(subtotal)
		redeemed = cp
	}

	o := &order.Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Shipping:        req.ShippingCost,
		Discount:        discount,
		CouponCode:      c.CouponCode,
		Status:          order.StatusPending,
		CreatedAt:       s.now(),
		UpdatedAt:       s.now(),
	}
	total := o.CalculateTotal()

	result, err := s.charge(ctx, total, req.UserID)
	if err != nil {
		return nil, err
	}
	o.PaymentResult = order.PaymentResult{
		TransactionID: result.TransactionID,
		Status:        result.Status,
	}

	if err := s.redeemStock(ctx, c.Items); err != nil {
		// The charge stands; releasing it is the reconciliation path's job.
		s.lg.Warn("checkout aborted after capture",
			zap.String("user_id", req.UserID),
			zap.String("transaction_id", result.TransactionID),
			zap.Error(err),
		)
		return nil, err
	}

	if redeemed != nil {
		if err := s.coupons.IncrementUsage(ctx, redeemed.Code); err != nil {
			s.releaseStock(ctx, c.Items)
			if errors.Is(err, coupon.ErrExhausted) {
				return nil, coupon.ErrExhausted
			}
			return nil, errors.Wrap(err, "redeem coupon")
		}
	}

	if err := s.orders.Create(ctx, o); err != nil {
		if redeemed != nil {
			if rerr := s.coupons.ReleaseUsage(ctx, redeemed.Code); rerr != nil {
				s.lg.Error("release coupon usage", zap.String("code", redeemed.Code), zap.Error(rerr))
			}
		}
		s.releaseStock(ctx, c.Items)
		return nil, errors.Wrap(err, "create order")
	}

	c.Clear()
	c.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, c); err != nil {
		// The order exists; a stale cart is recoverable and must not fail
		// the checkout.
		s.lg.Error("clear cart", zap.String("user_id", req.UserID), zap.Error(err))
	}

	s.notify(o)

	return o, nil
}

// charge invokes the gateway under the configured timeout, failing closed on
// an ambiguous outcome.
func (s *Service) charge(ctx context.Context, amount decimal.Decimal, customerRef string) (*payment.Result, error) {
	chargeCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	result, err := s.gateway.Charge(chargeCtx, amount, s.cfg.Currency, customerRef)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, payment.ErrGatewayTimeout
		}
		if errors.Is(err, payment.ErrDeclined) || errors.Is(err, payment.ErrGatewayTimeout) {
			return nil, err
		}
		return nil, errors.Wrap(err, "charge")
	}
	return result, nil
}

// redeemStock applies the conditional decrement for every cart line. On the
// first conflict it restores the lines already decremented and returns a
// StockError.
func (s *Service) redeemStock(ctx context.Context, lines []cart.Line) error {
	for i, line := range lines {
		err := s.products.DecrementSizeStock(ctx, line.ProductID, line.Size, line.Quantity)
		if err == nil {
			continue
		}
		s.releaseStock(ctx, lines[:i])
		if errors.Is(err, product.ErrInsufficientStock) || errors.Is(err, product.ErrNotFound) {
			return &StockError{ProductID: line.ProductID, Size: line.Size, Requested: line.Quantity}
		}
		return errors.Wrapf(err, "decrement stock for product %s", line.ProductID)
	}
	return nil
}

// releaseStock compensates previously applied decrements, best effort.
func (s *Service) releaseStock(ctx context.Context, lines []cart.Line) {
	for _, line := range lines {
		if err := s.products.IncrementSizeStock(ctx, line.ProductID, line.Size, line.Quantity); err != nil {
			s.lg.Error("restore stock",
				zap.String("product_id", line.ProductID),
				zap.String("size", line.Size),
				zap.Int("qty", line.Quantity),
				zap.Error(err),
			)
		}
	}
}

// notify delivers the confirmation asynchronously; failures are logged only.
func (s *Service) notify(o *order.Order) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NotifyTimeout)
		defer cancel()
		if err := s.notifier.SendOrderConfirmation(ctx, o); err != nil {
			s.lg.Warn("send order confirmation", zap.String("order_id", o.ID), zap.Error(err))
		}
	}()
}

// AdvanceStatus moves an order one step along the fulfillment chain, or to
// cancelled, persisting the result.
func (s *Service) AdvanceStatus(ctx context.Context, orderID string, target order.Status) (*order.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := o.TransitionTo(target, s.now()); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order status")
	}
	return o, nil
}

// Cancel cancels a non-terminal order.
func (s *Service) Cancel(ctx context.Context, orderID string) (*order.Order, error) {
	return s.AdvanceStatus(ctx, orderID, order.StatusCancelled)
}
