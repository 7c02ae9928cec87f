package mongo

import (
	"context"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/fashionnest/internal/domain/coupon"
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by MongoDB. Coupon
// codes are stored uppercase as the document _id.
type CouponRepository struct {
	coll *mongo.Collection
}

// NewCouponRepository returns a CouponRepository using the given database.
func NewCouponRepository(db *mongo.Database) *CouponRepository {
	return &CouponRepository{coll: db.Collection(collCoupons)}
}

func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	var c coupon.Coupon
	err := r.coll.FindOne(ctx, bson.M{"_id": coupon.NormalizeCode(code)}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	return &c, nil
}

func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	c.Code = coupon.NormalizeCode(c.Code)
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		return errors.Wrapf(err, "insert coupon %s", c.Code)
	}
	return nil
}

// Upsert writes the coupon, replacing an existing document with the same
// code. Used by the seed and ingest tools.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	c.Code = coupon.NormalizeCode(c.Code)
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": c.Code}, c, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrapf(err, "upsert coupon %s", c.Code)
	}
	return nil
}

// IncrementUsage bumps the usage counter in a single filtered update that
// matches only while the counter is below the limit (or the limit is
// unset). Losing a redemption race therefore surfaces as ErrExhausted, never
// as an over-count.
func (r *CouponRepository) IncrementUsage(ctx context.Context, code string) error {
	filter := bson.M{
		"_id": coupon.NormalizeCode(code),
		"$or": bson.A{
			bson.M{"usage_limit": nil},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$usage_count", "$usage_limit"}}},
		},
	}
	update := bson.M{"$inc": bson.M{"usage_count": 1}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return errors.Wrapf(err, "increment usage for coupon %q", code)
	}
	if res.MatchedCount == 0 {
		if _, err := r.FindByCode(ctx, code); err != nil {
			return err
		}
		return coupon.ErrExhausted
	}
	return nil
}

// ReleaseUsage undoes one redemption, never going below zero.
func (r *CouponRepository) ReleaseUsage(ctx context.Context, code string) error {
	filter := bson.M{
		"_id":         coupon.NormalizeCode(code),
		"usage_count": bson.M{"$gt": 0},
	}
	update := bson.M{"$inc": bson.M{"usage_count": -1}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return errors.Wrapf(err, "release usage for coupon %q", code)
	}
	if res.MatchedCount == 0 {
		if _, err := r.FindByCode(ctx, code); err != nil {
			return err
		}
	}
	return nil
}
