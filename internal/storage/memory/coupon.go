package memory

import (
	"context"
	"sync"

	"github.com/xenking/fashionnest/internal/domain/coupon"
)

// CouponRepository is an in-memory coupon.Repository.
type CouponRepository struct {
	mu     sync.Mutex
	byCode map[string]coupon.Coupon
}

var _ coupon.Repository = (*CouponRepository)(nil)

// NewCouponRepository returns an empty in-memory coupon repository.
func NewCouponRepository() *CouponRepository {
	return &CouponRepository{byCode: make(map[string]coupon.Coupon)}
}

func (r *CouponRepository) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byCode[coupon.NormalizeCode(code)]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	if c.UsageLimit != nil {
		limit := *c.UsageLimit
		c.UsageLimit = &limit
	}
	return &c, nil
}

func (r *CouponRepository) Create(_ context.Context, c *coupon.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := coupon.NormalizeCode(c.Code)
	stored := *c
	stored.Code = key
	r.byCode[key] = stored
	return nil
}

// IncrementUsage increments the counter only while it is below the limit,
// under the lock, matching the conditional update of the Mongo implementation.
func (r *CouponRepository) IncrementUsage(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := coupon.NormalizeCode(code)
	c, ok := r.byCode[key]
	if !ok {
		return coupon.ErrNotFound
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return coupon.ErrExhausted
	}
	c.UsageCount++
	r.byCode[key] = c
	return nil
}

func (r *CouponRepository) ReleaseUsage(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := coupon.NormalizeCode(code)
	c, ok := r.byCode[key]
	if !ok {
		return coupon.ErrNotFound
	}
	if c.UsageCount > 0 {
		c.UsageCount--
	}
	r.byCode[key] = c
	return nil
}
