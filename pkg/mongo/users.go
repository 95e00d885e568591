package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/models"
)

type UserRepository struct {
	coll *mongo.Collection
}

func (r *UserRepository) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	if u.Orders == nil {
		u.Orders = []bson.ObjectID{}
	}
	if u.Transactions == nil {
		u.Transactions = []models.Transaction{}
	}
	if u.Cart == nil {
		u.Cart = []models.CartLine{}
	}
	u.SetTimestamps()
	_, err := r.coll.InsertOne(ctx, u)
	return mapError(err, "user "+u.Email)
}

func (r *UserRepository) FindUserByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, mapError(err, "user "+id.Hex())
	}
	return &u, nil
}

func (r *UserRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, mapError(err, "user "+email)
	}
	return &u, nil
}

func (r *UserRepository) AppendOrder(ctx context.Context, userID bson.ObjectID, txn models.Transaction, profile models.ShippingInfo) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$push": bson.M{"orders": txn.OrderID, "transactions": txn},
			"$set": bson.M{
				"cart":             []models.CartLine{},
				"shipping_profile": profile,
				"updated_at":       time.Now(),
			},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mapError(mongo.ErrNoDocuments, "user "+userID.Hex())
	}
	return nil
}

func (r *UserRepository) GetCart(ctx context.Context, userID bson.ObjectID) ([]models.CartLine, error) {
	u, err := r.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Cart, nil
}

// maxCartAttempts bounds the retries of AddCartLine when a concurrent add
// for the same product lands between the read and the write.
const maxCartAttempts = 5

// AddCartLine merges into an existing line for the same product and options.
// Option maps have no stable order in BSON, so the match is done here rather
// than in the query. A new line is only pushed while the cart holds no
// line for the product that was not seen in the read; otherwise the add is
// retried against the fresh cart.
func (r *UserRepository) AddCartLine(ctx context.Context, userID bson.ObjectID, line models.CartLine) (models.CartLine, error) {
	if line.AddedAt.IsZero() {
		line.AddedAt = time.Now()
	}
	for range maxCartAttempts {
		merged, done, err := r.tryAddCartLine(ctx, userID, line)
		if err != nil || done {
			return merged, err
		}
	}
	return models.CartLine{}, fmt.Errorf("%w: cart for user %s changed during add", global.ErrConflict, userID.Hex())
}

func (r *UserRepository) tryAddCartLine(ctx context.Context, userID bson.ObjectID, line models.CartLine) (models.CartLine, bool, error) {
	cart, err := r.GetCart(ctx, userID)
	if err != nil {
		return models.CartLine{}, false, err
	}

	seen := bson.A{}
	for _, existing := range cart {
		if existing.Product != line.Product {
			continue
		}
		if !existing.SameItem(line.Product, line.SelectedOptions) {
			seen = append(seen, existing.LineID)
			continue
		}
		res, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": userID, "cart.line_id": existing.LineID},
			bson.M{
				"$inc": bson.M{"cart.$.quantity": line.Quantity},
				"$set": bson.M{"updated_at": time.Now()},
			},
		)
		if err != nil {
			return models.CartLine{}, false, err
		}
		if res.MatchedCount == 0 {
			// Removed since the read.
			return models.CartLine{}, false, nil
		}
		existing.Quantity += line.Quantity
		return existing, true, nil
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{
			"_id": userID,
			"cart": bson.M{"$not": bson.M{"$elemMatch": bson.M{
				"product": line.Product,
				"line_id": bson.M{"$nin": seen},
			}}},
		},
		bson.M{
			"$push": bson.M{"cart": line},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return models.CartLine{}, false, err
	}
	if res.MatchedCount == 0 {
		return models.CartLine{}, false, nil
	}
	return line, true, nil
}

// UpdateCartLine sets a line's quantity; zero or less removes it.
func (r *UserRepository) UpdateCartLine(ctx context.Context, userID bson.ObjectID, lineID string, quantity int) error {
	update := bson.M{"$set": bson.M{"cart.$.quantity": quantity, "updated_at": time.Now()}}
	if quantity <= 0 {
		update = bson.M{
			"$pull": bson.M{"cart": bson.M{"line_id": lineID}},
			"$set":  bson.M{"updated_at": time.Now()},
		}
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID, "cart.line_id": lineID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mapError(mongo.ErrNoDocuments, "cart line "+lineID)
	}
	return nil
}

func (r *UserRepository) RemoveCartLine(ctx context.Context, userID bson.ObjectID, lineID string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$pull": bson.M{"cart": bson.M{"line_id": lineID}},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mapError(mongo.ErrNoDocuments, "user "+userID.Hex())
	}
	return nil
}

func (r *UserRepository) ClearCart(ctx context.Context, userID bson.ObjectID) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"cart": []models.CartLine{}, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mapError(mongo.ErrNoDocuments, "user "+userID.Hex())
	}
	return nil
}
