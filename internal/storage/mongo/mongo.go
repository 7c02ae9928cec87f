// Package mongo implements the domain repositories on top of MongoDB.
//
// The concurrency-sensitive operations (size stock decrement, coupon
// redemption, review insertion) are expressed as filtered single-document
// updates so the server applies the check and the write atomically; the
// application never does read-modify-write on those fields.
package mongo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used by the repositories.
const (
	collProducts = "products"
	collCoupons  = "coupons"
	collCarts    = "carts"
	collOrders   = "orders"
	collUsers    = "users"
)

// Connect establishes a client, verifies connectivity, and returns the
// database handle.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, errors.Wrap(err, "ping")
	}
	return client.Database(database), nil
}

// EnsureIndexes creates the unique indexes the repositories rely on:
// product slug, cart owner, and order listing by user. Coupon codes are the
// collection's _id and need no extra index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	_, err := db.Collection(collProducts).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return errors.Wrap(err, "products slug index")
	}

	_, err = db.Collection(collCarts).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Wrap(err, "carts user index")
	}

	_, err = db.Collection(collOrders).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return errors.Wrap(err, "orders user index")
	}

	return nil
}
