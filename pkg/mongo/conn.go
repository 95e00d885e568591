package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	ProductsCollection = "products"
	OrdersCollection   = "orders"
	UsersCollection    = "users"
)

// Connect opens a client and pings it before returning.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)

	clientOptions := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)
	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create MongoDB client: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// Store groups the repositories over one database and satisfies every
// store interface the services need.
type Store struct {
	*ProductRepository
	*OrderRepository
	*UserRepository
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		ProductRepository: &ProductRepository{coll: db.Collection(ProductsCollection)},
		OrderRepository:   &OrderRepository{coll: db.Collection(OrdersCollection)},
		UserRepository:    &UserRepository{coll: db.Collection(UsersCollection)},
		db:                db,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}
