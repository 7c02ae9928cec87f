package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// InvalidTransitionError indicates a disallowed status change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
// Both delivered and cancelled are terminal.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// next is the forward fulfillment edge for each status.
var next = map[Status]Status{
	StatusPending:    StatusProcessing,
	StatusProcessing: StatusShipped,
	StatusShipped:    StatusDelivered,
}

// CanTransitionTo reports whether the status change from s to target is
// allowed: one step forward along the fulfillment chain, or cancellation
// from any non-terminal state.
func (s Status) CanTransitionTo(target Status) bool {
	if target == StatusCancelled {
		return !s.Terminal()
	}
	return next[s] == target
}

// PaymentMethod enumerates the accepted payment instruments.
type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentPayPal     PaymentMethod = "paypal"
	PaymentStripe     PaymentMethod = "stripe"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentPayPal, PaymentStripe:
		return true
	}
	return false
}

// Item is an immutable snapshot of a purchased cart line. Name, price, and
// image are copied at purchase time so later product edits never alter
// historical orders.
type Item struct {
	ProductID string          `bson:"product_id"`
	Name      string          `bson:"name"`
	UnitPrice decimal.Decimal `bson:"unit_price"`
	Quantity  int             `bson:"quantity"`
	Size      string          `bson:"size"`
	Color     string          `bson:"color"`
	Image     string          `bson:"image"`
}

// Address is the shipping destination captured at checkout.
type Address struct {
	Street  string `bson:"street"`
	City    string `bson:"city"`
	State   string `bson:"state"`
	ZipCode string `bson:"zip_code"`
	Country string `bson:"country"`
}

// PaymentResult records the gateway's confirmation for a captured charge.
type PaymentResult struct {
	TransactionID string `bson:"transaction_id"`
	Status        string `bson:"status"`
}

// TaxRate is the flat tax applied to every order subtotal.
var TaxRate = decimal.NewFromFloat(0.10)

// Order is an immutable purchase record created once at checkout.
type Order struct {
	ID              string          `bson:"_id"`
	UserID          string          `bson:"user_id"`
	Items           []Item          `bson:"items"`
	ShippingAddress Address         `bson:"shipping_address"`
	PaymentMethod   PaymentMethod   `bson:"payment_method"`
	PaymentResult   PaymentResult   `bson:"payment_result"`
	Subtotal        decimal.Decimal `bson:"subtotal"`
	Tax             decimal.Decimal `bson:"tax"`
	Shipping        decimal.Decimal `bson:"shipping"`
	Discount        decimal.Decimal `bson:"discount"`
	Total           decimal.Decimal `bson:"total"`
	CouponCode      string          `bson:"coupon_code"`
	Status          Status          `bson:"status"`
	TrackingNumber  string          `bson:"tracking_number"`
	Notes           string          `bson:"notes"`
	CreatedAt       time.Time       `bson:"created_at"`
	UpdatedAt       time.Time       `bson:"updated_at"`
	DeliveredAt     *time.Time      `bson:"delivered_at"`
}

// IsDelivered reports whether the order reached the delivered state.
func (o *Order) IsDelivered() bool { return o.Status == StatusDelivered }

// IsCancelled reports whether the order was cancelled.
func (o *Order) IsCancelled() bool { return o.Status == StatusCancelled }

// CalculateTotal recomputes the authoritative pricing from the snapshotted
// items: total = subtotal + subtotal*0.10 + shipping - discount. It mutates
// Subtotal, Tax, and Total, and returns Total. Calling it repeatedly without
// mutating inputs yields the same result.
func (o *Order) CalculateTotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, it := range o.Items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	o.Subtotal = subtotal
	o.Tax = subtotal.Mul(TaxRate).Round(2)
	o.Total = subtotal.Add(o.Tax).Add(o.Shipping).Sub(o.Discount).Round(2)
	return o.Total
}

// TransitionTo moves the order to the target status, enforcing the
// fulfillment state machine. DeliveredAt is set exactly once, on the first
// arrival at delivered.
func (o *Order) TransitionTo(target Status, now time.Time) error {
	if !o.Status.CanTransitionTo(target) {
		return &InvalidTransitionError{From: o.Status, To: target}
	}
	o.Status = target
	o.UpdatedAt = now
	if target == StatusDelivered && o.DeliveredAt == nil {
		t := now
		o.DeliveredAt = &t
	}
	return nil
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// UpdateStatus persists the status fields of an already-created order.
	UpdateStatus(ctx context.Context, o *Order) error
}
