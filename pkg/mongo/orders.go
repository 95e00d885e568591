package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"shophub.store/storefront/pkg/models"
)

type OrderRepository struct {
	coll *mongo.Collection
}

func (r *OrderRepository) InsertOrder(ctx context.Context, o *models.Order) error {
	if o.ID.IsZero() {
		o.ID = bson.NewObjectID()
	}
	o.SetTimestamps()
	_, err := r.coll.InsertOne(ctx, o)
	return mapError(err, "order")
}

func (r *OrderRepository) FindOrder(ctx context.Context, id bson.ObjectID) (*models.Order, error) {
	var o models.Order
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, mapError(err, "order "+id.Hex())
	}
	return &o, nil
}

func (r *OrderRepository) ListOrders(ctx context.Context, userID bson.ObjectID, page, limit int) ([]models.Order, int64, error) {
	filter := bson.M{"user": userID}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(skip(page, limit)).
		SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdatePayment filters on payment_status=pending so concurrent or repeated
// gateway callbacks settle an order exactly once.
func (r *OrderRepository) UpdatePayment(ctx context.Context, id bson.ObjectID, update models.PaymentUpdate) (bool, error) {
	set := bson.M{
		"payment_status":  update.PaymentStatus,
		"status":          update.Status,
		"payment_details": update.Details,
		"updated_at":      time.Now(),
	}
	if update.TransactionID != "" {
		set["transaction_id"] = update.TransactionID
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "payment_status": models.PaymentPending},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	// Distinguish "already settled" from "no such order".
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, mapError(mongo.ErrNoDocuments, "order "+id.Hex())
	}
	return false, nil
}
