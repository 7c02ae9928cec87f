package memory

import (
	"context"
	"sync"

	"github.com/xenking/fashionnest/internal/domain/cart"
)

// CartRepository is an in-memory cart.Repository keyed by user.
type CartRepository struct {
	mu     sync.Mutex
	byUser map[string]cart.Cart
}

var _ cart.Repository = (*CartRepository)(nil)

// NewCartRepository returns an empty in-memory cart repository.
func NewCartRepository() *CartRepository {
	return &CartRepository{byUser: make(map[string]cart.Cart)}
}

func (r *CartRepository) FindOrCreate(_ context.Context, userID string) (*cart.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byUser[userID]
	if !ok {
		created := cart.New(userID)
		r.byUser[userID] = cloneCart(*created)
		return created, nil
	}
	cp := cloneCart(c)
	return &cp, nil
}

func (r *CartRepository) Save(_ context.Context, c *cart.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byUser[c.UserID] = cloneCart(*c)
	return nil
}

func cloneCart(c cart.Cart) cart.Cart {
	c.Items = append([]cart.Line(nil), c.Items...)
	return c
}
