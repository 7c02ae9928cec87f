package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xenking/fashionnest/internal/domain/order"
)

// OrderRepository is an in-memory order.Repository.
type OrderRepository struct {
	mu   sync.Mutex
	byID map[string]order.Order
}

var _ order.Repository = (*OrderRepository)(nil)

// NewOrderRepository returns an empty in-memory order repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{byID: make(map[string]order.Order)}
}

func (r *OrderRepository) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[o.ID] = cloneOrder(*o)
	return nil
}

func (r *OrderRepository) Get(_ context.Context, id string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := cloneOrder(o)
	return &cp, nil
}

func (r *OrderRepository) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]order.Order, 0)
	for _, o := range r.byID {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	// Newest first, id as tiebreaker for deterministic ordering.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *OrderRepository) UpdateStatus(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[o.ID]; !ok {
		return order.ErrNotFound
	}
	r.byID[o.ID] = cloneOrder(*o)
	return nil
}

func cloneOrder(o order.Order) order.Order {
	o.Items = append([]order.Item(nil), o.Items...)
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		o.DeliveredAt = &t
	}
	return o
}
