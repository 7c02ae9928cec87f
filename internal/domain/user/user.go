package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrAlreadyInWishlist is returned when a product is already wished for.
	ErrAlreadyInWishlist = errors.New("product already in wishlist")
	// ErrNotInWishlist is returned when removing a product that is absent.
	ErrNotInWishlist = errors.New("product not in wishlist")
)

// User is the account the cart and orders are scoped to. Authentication
// happens outside this core; only the trusted identity is carried here.
type User struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name"`
	Wishlist  []string  `bson:"wishlist"`
	CreatedAt time.Time `bson:"created_at"`
}

// AddToWishlist appends a product id, rejecting duplicates.
func (u *User) AddToWishlist(productID string) error {
	for _, id := range u.Wishlist {
		if id == productID {
			return ErrAlreadyInWishlist
		}
	}
	u.Wishlist = append(u.Wishlist, productID)
	return nil
}

// RemoveFromWishlist deletes a product id from the wishlist.
func (u *User) RemoveFromWishlist(productID string) error {
	for i, id := range u.Wishlist {
		if id == productID {
			u.Wishlist = append(u.Wishlist[:i], u.Wishlist[i+1:]...)
			return nil
		}
	}
	return ErrNotInWishlist
}

// Repository defines persistence operations for user accounts.
type Repository interface {
	Get(ctx context.Context, id string) (*User, error)
	Save(ctx context.Context, u *User) error
}
