package mongo

import (
	"context"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/fashionnest/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by MongoDB. The unique
// index on user_id plus the upsert in FindOrCreate keep the one-cart-per-user
// invariant under concurrent first requests.
type CartRepository struct {
	coll *mongo.Collection
}

// NewCartRepository returns a CartRepository using the given database.
func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{coll: db.Collection(collCarts)}
}

func (r *CartRepository) FindOrCreate(ctx context.Context, userID string) (*cart.Cart, error) {
	fresh := cart.New(userID)

	// $setOnInsert writes the empty cart only when no document exists for
	// this user; a concurrent creator simply wins and we read its document.
	filter := bson.M{"user_id": userID}
	update := bson.M{"$setOnInsert": fresh}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var c cart.Cart
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c); err != nil {
		return nil, errors.Wrapf(err, "find or create cart for user %s", userID)
	}
	return &c, nil
}

func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		return errors.Wrapf(err, "save cart %s", c.ID)
	}
	if res.MatchedCount == 0 {
		return errors.Errorf("cart %s vanished during save", c.ID)
	}
	return nil
}
