package product

import (
	"context"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog operations.
var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateReview is returned when a user tries to review the same
	// product twice.
	ErrDuplicateReview = errors.New("product already reviewed by this user")
	// ErrInvalidRating is returned when a review rating is outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrInsufficientStock is returned by conditional stock decrements when
	// the requested size does not hold enough units.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Category is the closed set of catalog departments.
type Category string

const (
	CategoryMen         Category = "men"
	CategoryWomen       Category = "women"
	CategoryKids        Category = "kids"
	CategoryAccessories Category = "accessories"
)

// Valid reports whether c is one of the known departments.
func (c Category) Valid() bool {
	switch c {
	case CategoryMen, CategoryWomen, CategoryKids, CategoryAccessories:
		return true
	}
	return false
}

// Size is a named size variant with its remaining stock.
type Size struct {
	Name  string `bson:"name"`
	Stock int    `bson:"stock"`
}

// Color is a named color variant with its display code.
type Color struct {
	Name string `bson:"name"`
	Code string `bson:"code"`
}

// Ratings is the aggregate rating for a product, recomputed from the review
// list on every write.
type Ratings struct {
	Average float64 `bson:"average"`
	Count   int     `bson:"count"`
}

// Review is a single customer review. A user may review a product at most once.
type Review struct {
	UserID    string    `bson:"user_id"`
	Rating    int       `bson:"rating"`
	Comment   string    `bson:"comment"`
	CreatedAt time.Time `bson:"created_at"`
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID            string          `bson:"_id"`
	Slug          string          `bson:"slug"`
	Name          string          `bson:"name"`
	Description   string          `bson:"description"`
	Price         decimal.Decimal `bson:"price"`
	DiscountPrice decimal.Decimal `bson:"discount_price"`
	Category      Category        `bson:"category"`
	Subcategory   string          `bson:"subcategory"`
	Brand         string          `bson:"brand"`
	Images        []string        `bson:"images"`
	Sizes         []Size          `bson:"sizes"`
	Colors        []Color         `bson:"colors"`
	Featured      bool            `bson:"featured"`
	Trending      bool            `bson:"trending"`
	Ratings       Ratings         `bson:"ratings"`
	Reviews       []Review        `bson:"reviews"`
	CreatedAt     time.Time       `bson:"created_at"`
	UpdatedAt     time.Time       `bson:"updated_at"`
}

// InStock reports whether any size has remaining stock.
func (p *Product) InStock() bool {
	for _, s := range p.Sizes {
		if s.Stock > 0 {
			return true
		}
	}
	return false
}

// SizeInStock reports whether the named size exists and has remaining stock.
// An absent size is simply not in stock, not an error.
func (p *Product) SizeInStock(name string) bool {
	for _, s := range p.Sizes {
		if s.Name == name {
			return s.Stock > 0
		}
	}
	return false
}

// SizeStock returns the remaining stock for the named size, or 0 when the
// size is absent.
func (p *Product) SizeStock(name string) int {
	for _, s := range p.Sizes {
		if s.Name == name {
			return s.Stock
		}
	}
	return 0
}

// EffectivePrice returns the discount price when it undercuts the list price,
// otherwise the list price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.HasDiscount() {
		return p.DiscountPrice
	}
	return p.Price
}

// HasDiscount reports whether a discount price is set and strictly lower than
// the list price.
func (p *Product) HasDiscount() bool {
	return p.DiscountPrice.IsPositive() && p.DiscountPrice.LessThan(p.Price)
}

// DiscountPercentage returns the saved percentage rounded to the nearest
// integer, or 0 when no effective discount is set.
func (p *Product) DiscountPercentage() int {
	if !p.HasDiscount() {
		return 0
	}
	saved, _ := p.Price.Sub(p.DiscountPrice).Div(p.Price).Float64()
	return int(math.Round(saved * 100))
}

// AddReview appends a review and recomputes the rating aggregate from the
// full review list. It returns ErrDuplicateReview when the user has already
// reviewed this product.
func (p *Product) AddReview(userID string, rating int, comment string, now time.Time) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	for _, r := range p.Reviews {
		if r.UserID == userID {
			return ErrDuplicateReview
		}
	}

	p.Reviews = append(p.Reviews, Review{
		UserID:    userID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now,
	})

	// Recompute from scratch rather than maintaining a running average.
	sum := 0
	for _, r := range p.Reviews {
		sum += r.Rating
	}
	p.Ratings.Count = len(p.Reviews)
	p.Ratings.Average = float64(sum) / float64(len(p.Reviews))
	p.UpdatedAt = now

	return nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Category Category
	Featured *bool
	Trending *bool
}

// Repository defines persistence operations for the product catalog.
//
// DecrementSizeStock and IncrementSizeStock must be atomic at the document
// level: a decrement succeeds only while the named size still holds at least
// qty units, so concurrent checkouts can never drive stock negative.
type Repository interface {
	Get(ctx context.Context, id string) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error

	// DecrementSizeStock atomically subtracts qty from the named size.
	// It returns ErrInsufficientStock when the size is absent or holds
	// fewer than qty units, and ErrNotFound when the product is absent.
	DecrementSizeStock(ctx context.Context, productID, size string, qty int) error

	// IncrementSizeStock atomically restores qty units to the named size.
	// Used to compensate a partially applied checkout.
	IncrementSizeStock(ctx context.Context, productID, size string, qty int) error

	// AddReview appends the review only when the user has not reviewed the
	// product before, and recomputes the rating aggregate. Returns
	// ErrDuplicateReview on a repeat reviewer, enforced at write time so
	// concurrent submissions cannot slip past the in-memory check.
	AddReview(ctx context.Context, productID string, r Review) error
}
