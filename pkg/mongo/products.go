package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"shophub.store/storefront/pkg/models"
)

type ProductRepository struct {
	coll *mongo.Collection
}

func (r *ProductRepository) InsertProduct(ctx context.Context, p *models.Product) error {
	if p.ID.IsZero() {
		p.ID = bson.NewObjectID()
	}
	p.SetTimestamps()
	_, err := r.coll.InsertOne(ctx, p)
	return mapError(err, "product")
}

func (r *ProductRepository) FindProduct(ctx context.Context, id bson.ObjectID) (*models.Product, error) {
	var p models.Product
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapError(err, "product "+id.Hex())
	}
	return &p, nil
}

// DecrementStock only matches while stock_count >= qty, so the check and the
// write happen in one server-side step.
func (r *ProductRepository) DecrementStock(ctx context.Context, id bson.ObjectID, qty int) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "stock_count": bson.M{"$gte": qty}},
		bson.M{
			"$inc": bson.M{"stock_count": -qty},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *ProductRepository) IncrementStock(ctx context.Context, id bson.ObjectID, qty int) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"stock_count": qty},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mapError(mongo.ErrNoDocuments, "product "+id.Hex())
	}
	return nil
}
