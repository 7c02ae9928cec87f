package mongo

import (
	"context"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/xenking/fashionnest/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by MongoDB.
type ProductRepository struct {
	coll *mongo.Collection
}

// NewProductRepository returns a ProductRepository using the given database.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(collProducts)}
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*product.Product, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*product.Product, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *ProductRepository) findOne(ctx context.Context, filter bson.M) (*product.Product, error) {
	var p product.Product
	if err := r.coll.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrap(err, "find product")
	}
	return &p, nil
}

func (r *ProductRepository) List(ctx context.Context, filter product.ListFilter) ([]product.Product, error) {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Featured != nil {
		query["featured"] = *filter.Featured
	}
	if filter.Trending != nil {
		query["trending"] = *filter.Trending
	}

	cursor, err := r.coll.Find(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer func() { _ = cursor.Close(ctx) }()

	var out []product.Product
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return out, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return errors.Wrapf(err, "insert product %s", p.ID)
	}
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return errors.Wrapf(err, "update product %s", p.ID)
	}
	if res.MatchedCount == 0 {
		return product.ErrNotFound
	}
	return nil
}

// DecrementSizeStock subtracts qty from the named size in a single filtered
// update: the document matches only while that size still holds at least qty
// units, so the decrement can never drive stock negative.
func (r *ProductRepository) DecrementSizeStock(ctx context.Context, productID, size string, qty int) error {
	filter := bson.M{
		"_id": productID,
		"sizes": bson.M{"$elemMatch": bson.M{
			"name":  size,
			"stock": bson.M{"$gte": qty},
		}},
	}
	update := bson.M{"$inc": bson.M{"sizes.$.stock": -qty}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return errors.Wrapf(err, "decrement stock %s/%s", productID, size)
	}
	if res.MatchedCount == 0 {
		// Either the product is gone or the size cannot cover qty.
		if _, err := r.Get(ctx, productID); err != nil {
			return err
		}
		return product.ErrInsufficientStock
	}
	return nil
}

// IncrementSizeStock restores qty units to the named size.
func (r *ProductRepository) IncrementSizeStock(ctx context.Context, productID, size string, qty int) error {
	filter := bson.M{
		"_id":        productID,
		"sizes.name": size,
	}
	update := bson.M{"$inc": bson.M{"sizes.$.stock": qty}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return errors.Wrapf(err, "increment stock %s/%s", productID, size)
	}
	if res.MatchedCount == 0 {
		return product.ErrNotFound
	}
	return nil
}

// AddReview pushes the review only when this user has no review on the
// document yet, then recomputes the rating aggregate server-side. The
// guarded push makes the one-review-per-user rule hold under concurrency.
func (r *ProductRepository) AddReview(ctx context.Context, productID string, rev product.Review) error {
	if rev.Rating < 1 || rev.Rating > 5 {
		return product.ErrInvalidRating
	}

	filter := bson.M{
		"_id":             productID,
		"reviews.user_id": bson.M{"$ne": rev.UserID},
	}
	update := bson.M{"$push": bson.M{"reviews": rev}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return errors.Wrapf(err, "push review on product %s", productID)
	}
	if res.MatchedCount == 0 {
		if _, err := r.Get(ctx, productID); err != nil {
			return err
		}
		return product.ErrDuplicateReview
	}

	// Recompute average and count from the full review list.
	recompute := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"ratings.average": bson.M{"$avg": "$reviews.rating"},
			"ratings.count":   bson.M{"$size": "$reviews"},
			"updated_at":      rev.CreatedAt,
		}}},
	}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": productID}, recompute); err != nil {
		return errors.Wrapf(err, "recompute ratings on product %s", productID)
	}
	return nil
}
