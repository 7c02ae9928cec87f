// Package memory provides mutex-guarded in-memory implementations of the
// domain repositories. They mirror the MongoDB error semantics, including
// the atomic conditional stock and coupon updates, and back the unit tests
// and local development runs.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/fashionnest/internal/domain/product"
)

// ProductRepository is an in-memory product.Repository.
type ProductRepository struct {
	mu    sync.Mutex
	byID  map[string]product.Product
	slugs map[string]string
}

var _ product.Repository = (*ProductRepository)(nil)

// NewProductRepository returns an empty in-memory product repository.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		byID:  make(map[string]product.Product),
		slugs: make(map[string]string),
	}
}

func (r *ProductRepository) Get(_ context.Context, id string) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := clone(p)
	return &cp, nil
}

func (r *ProductRepository) GetBySlug(_ context.Context, slug string) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.slugs[slug]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := clone(r.byID[id])
	return &cp, nil
}

func (r *ProductRepository) List(_ context.Context, filter product.ListFilter) ([]product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]product.Product, 0, len(r.byID))
	for _, p := range r.byID {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Featured != nil && p.Featured != *filter.Featured {
			continue
		}
		if filter.Trending != nil && p.Trending != *filter.Trending {
			continue
		}
		out = append(out, clone(p))
	}
	return out, nil
}

func (r *ProductRepository) Create(_ context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[p.ID] = clone(*p)
	r.slugs[p.Slug] = p.ID
	return nil
}

func (r *ProductRepository) Update(_ context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; !ok {
		return product.ErrNotFound
	}
	r.byID[p.ID] = clone(*p)
	r.slugs[p.Slug] = p.ID
	return nil
}

// DecrementSizeStock subtracts qty only while the size holds enough units.
// The whole check-and-write happens under the lock, matching the document
// level atomicity of the Mongo implementation.
func (r *ProductRepository) DecrementSizeStock(_ context.Context, productID, size string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[productID]
	if !ok {
		return product.ErrNotFound
	}
	for i := range p.Sizes {
		if p.Sizes[i].Name != size {
			continue
		}
		if p.Sizes[i].Stock < qty {
			return product.ErrInsufficientStock
		}
		p.Sizes[i].Stock -= qty
		r.byID[productID] = p
		return nil
	}
	return product.ErrInsufficientStock
}

func (r *ProductRepository) IncrementSizeStock(_ context.Context, productID, size string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[productID]
	if !ok {
		return product.ErrNotFound
	}
	for i := range p.Sizes {
		if p.Sizes[i].Name == size {
			p.Sizes[i].Stock += qty
			r.byID[productID] = p
			return nil
		}
	}
	return product.ErrNotFound
}

func (r *ProductRepository) AddReview(_ context.Context, productID string, rev product.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[productID]
	if !ok {
		return product.ErrNotFound
	}
	if err := p.AddReview(rev.UserID, rev.Rating, rev.Comment, rev.CreatedAt); err != nil {
		return err
	}
	r.byID[productID] = p
	return nil
}

// clone deep-copies the slices so callers cannot mutate stored state.
func clone(p product.Product) product.Product {
	p.Images = append([]string(nil), p.Images...)
	p.Sizes = append([]product.Size(nil), p.Sizes...)
	p.Colors = append([]product.Color(nil), p.Colors...)
	p.Reviews = append([]product.Review(nil), p.Reviews...)
	return p
}
