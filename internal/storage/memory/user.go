package memory

import (
	"context"
	"sync"

	"github.com/xenking/fashionnest/internal/domain/user"
)

// UserRepository is an in-memory user.Repository.
type UserRepository struct {
	mu   sync.Mutex
	byID map[string]user.User
}

var _ user.Repository = (*UserRepository)(nil)

// NewUserRepository returns an empty in-memory user repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{byID: make(map[string]user.User)}
}

func (r *UserRepository) Get(_ context.Context, id string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	u.Wishlist = append([]string(nil), u.Wishlist...)
	return &u, nil
}

func (r *UserRepository) Save(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *u
	stored.Wishlist = append([]string(nil), u.Wishlist...)
	r.byID[u.ID] = stored
	return nil
}
