package orders

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"shophub.store/storefront/pkg/models"
)

// ProductStore is the stock-relevant slice of the product catalog.
type ProductStore interface {
	FindProduct(ctx context.Context, id bson.ObjectID) (*models.Product, error)
	// DecrementStock subtracts qty only if at least qty is in stock, in a
	// single atomic step. ok is false when there was not enough.
	DecrementStock(ctx context.Context, id bson.ObjectID, qty int) (ok bool, err error)
	IncrementStock(ctx context.Context, id bson.ObjectID, qty int) error
}

type OrderStore interface {
	InsertOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id bson.ObjectID) (*models.Order, error)
	ListOrders(ctx context.Context, userID bson.ObjectID, page, limit int) ([]models.Order, int64, error)
	// UpdatePayment applies update only while the order's payment is still
	// pending. updated is false when another callback got there first.
	UpdatePayment(ctx context.Context, id bson.ObjectID, update models.PaymentUpdate) (updated bool, err error)
}

type UserStore interface {
	// AppendOrder records the order and its transaction on the user, clears
	// the user's cart and saves the shipping profile.
	AppendOrder(ctx context.Context, userID bson.ObjectID, txn models.Transaction, profile models.ShippingInfo) error
}

// CacheInvalidator drops cached reads touched by an order.
type CacheInvalidator interface {
	InvalidateProducts(ctx context.Context, ids ...string) error
	InvalidateCart(ctx context.Context, userID string) error
}
