package mongo

import (
	"context"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/fashionnest/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by MongoDB.
type OrderRepository struct {
	coll *mongo.Collection
}

// NewOrderRepository returns an OrderRepository using the given database.
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(collOrders)}
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	if _, err := r.coll.InsertOne(ctx, o); err != nil {
		return errors.Wrapf(err, "insert order %s", o.ID)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	var o order.Order
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find order %s", id)
	}
	return &o, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders for user %s", userID)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var out []order.Order
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	return out, nil
}

// UpdateStatus persists only the mutable fulfillment fields; the purchase
// snapshot itself is immutable.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *order.Order) error {
	update := bson.M{"$set": bson.M{
		"status":          o.Status,
		"tracking_number": o.TrackingNumber,
		"notes":           o.Notes,
		"updated_at":      o.UpdatedAt,
		"delivered_at":    o.DeliveredAt,
	}}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": o.ID}, update)
	if err != nil {
		return errors.Wrapf(err, "update order %s", o.ID)
	}
	if res.MatchedCount == 0 {
		return order.ErrNotFound
	}
	return nil
}
