package user

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/fashionnest/internal/domain/product"
)

// Service exposes the profile and wishlist operations backed by the user
// repository. Products are validated against the catalog before entering a
// wishlist.
type Service struct {
	users    Repository
	products product.Repository
}

// NewService creates a user Service.
func NewService(users Repository, products product.Repository) *Service {
	return &Service{users: users, products: products}
}

// Get returns the user's profile.
func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	return s.users.Get(ctx, userID)
}

// AddToWishlist adds a catalog product to the user's wishlist.
func (s *Service) AddToWishlist(ctx context.Context, userID, productID string) (*User, error) {
	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, err
	}

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := u.AddToWishlist(productID); err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, errors.Wrap(err, "save user")
	}
	return u, nil
}

// RemoveFromWishlist removes a product from the user's wishlist.
func (s *Service) RemoveFromWishlist(ctx context.Context, userID, productID string) (*User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := u.RemoveFromWishlist(productID); err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, errors.Wrap(err, "save user")
	}
	return u, nil
}

// Wishlist resolves the user's wishlist into catalog products. Products that
// have been removed from the catalog are skipped.
func (s *Service) Wishlist(ctx context.Context, userID string) ([]product.Product, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]product.Product, 0, len(u.Wishlist))
	for _, id := range u.Wishlist {
		p, err := s.products.Get(ctx, id)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				continue
			}
			return nil, errors.Wrapf(err, "load product %s", id)
		}
		out = append(out, *p)
	}
	return out, nil
}
