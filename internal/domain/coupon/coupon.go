package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInvalid is returned when a coupon exists but is not currently
	// redeemable: inactive, outside its validity window, or exhausted.
	ErrInvalid = errors.New("coupon is not valid")
	// ErrExhausted is returned by conditional usage increments when the
	// usage limit has been reached.
	ErrExhausted = errors.New("coupon usage limit reached")
)

var hundred = decimal.NewFromInt(100)

// Coupon defines a discount code with its eligibility constraints.
// Codes are stored uppercase; UsageLimit nil means unlimited redemptions.
type Coupon struct {
	Code            string          `bson:"_id"`
	Description     string          `bson:"description"`
	DiscountType    DiscountType    `bson:"discount_type"`
	DiscountValue   decimal.Decimal `bson:"discount_value"`
	MinimumPurchase decimal.Decimal `bson:"minimum_purchase"`
	StartDate       time.Time       `bson:"start_date"`
	EndDate         time.Time       `bson:"end_date"`
	Active          bool            `bson:"active"`
	UsageLimit      *int            `bson:"usage_limit"`
	UsageCount      int             `bson:"usage_count"`
	CreatedAt       time.Time       `bson:"created_at"`
}

// NormalizeCode maps a user-supplied code to its canonical stored form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidAt reports whether the coupon is redeemable at the given instant:
// active, within [StartDate, EndDate], and not exhausted.
func (c *Coupon) ValidAt(now time.Time) bool {
	if !c.Active {
		return false
	}
	if now.Before(c.StartDate) || now.After(c.EndDate) {
		return false
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return false
	}
	return true
}

// CalculateDiscount returns the discount amount for the given cart subtotal.
// It returns zero when the subtotal is below the minimum purchase. A fixed
// discount never exceeds the subtotal.
func (c *Coupon) CalculateDiscount(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.LessThan(c.MinimumPurchase) {
		return decimal.Zero
	}

	switch c.DiscountType {
	case DiscountPercentage:
		return subtotal.Mul(c.DiscountValue).Div(hundred).Round(2)
	case DiscountFixed:
		return decimal.Min(c.DiscountValue, subtotal).Round(2)
	default:
		return decimal.Zero
	}
}

// Repository provides lookup and redemption accounting for coupons.
type Repository interface {
	// FindByCode looks up a coupon by its code, case-insensitively.
	// Returns ErrNotFound when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error

	// IncrementUsage atomically increments the usage counter, but only while
	// the counter is below the usage limit. Returns ErrExhausted when the
	// limit has been reached and ErrNotFound when the code is unknown.
	// Must be called exactly once per completed checkout that redeemed the
	// coupon.
	IncrementUsage(ctx context.Context, code string) error

	// ReleaseUsage undoes one increment, flooring the counter at zero. Used
	// to compensate a checkout that failed after the coupon was redeemed.
	ReleaseUsage(ctx context.Context, code string) error
}
