// Package memstore keeps products, orders and users in process memory. It
// backs local development runs and tests; state is lost on restart.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/models"
)

type Store struct {
	mu       sync.Mutex
	products map[bson.ObjectID]models.Product
	orders   map[bson.ObjectID]models.Order
	users    map[bson.ObjectID]models.User
}

func New() *Store {
	return &Store{
		products: make(map[bson.ObjectID]models.Product),
		orders:   make(map[bson.ObjectID]models.Order),
		users:    make(map[bson.ObjectID]models.User),
	}
}

func notFound(kind string, id bson.ObjectID) error {
	return fmt.Errorf("%w: %s %s", global.ErrNotFound, kind, id.Hex())
}

// Products

func (s *Store) InsertProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = bson.NewObjectID()
	}
	p.SetTimestamps()
	s.products[p.ID] = *p
	return nil
}

func (s *Store) FindProduct(_ context.Context, id bson.ObjectID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, notFound("product", id)
	}
	return &p, nil
}

func (s *Store) DecrementStock(_ context.Context, id bson.ObjectID, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return false, notFound("product", id)
	}
	if p.StockCount < qty {
		return false, nil
	}
	p.StockCount -= qty
	p.UpdatedAt = time.Now()
	s.products[id] = p
	return true, nil
}

func (s *Store) IncrementStock(_ context.Context, id bson.ObjectID, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return notFound("product", id)
	}
	p.StockCount += qty
	p.UpdatedAt = time.Now()
	s.products[id] = p
	return nil
}

// Orders

func (s *Store) InsertOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = bson.NewObjectID()
	}
	o.SetTimestamps()
	s.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (s *Store) FindOrder(_ context.Context, id bson.ObjectID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, notFound("order", id)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (s *Store) ListOrders(_ context.Context, userID bson.ObjectID, page, limit int) ([]models.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mine []models.Order
	for _, o := range s.orders {
		if o.User == userID {
			mine = append(mine, cloneOrder(o))
		}
	}
	slices.SortFunc(mine, func(a, b models.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	total := int64(len(mine))
	start := (page - 1) * limit
	if start >= len(mine) {
		return []models.Order{}, total, nil
	}
	end := min(start+limit, len(mine))
	return mine[start:end], total, nil
}

func (s *Store) UpdatePayment(_ context.Context, id bson.ObjectID, update models.PaymentUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, notFound("order", id)
	}
	if o.PaymentStatus != models.PaymentPending {
		return false, nil
	}
	o.PaymentStatus = update.PaymentStatus
	o.Status = update.Status
	if update.TransactionID != "" {
		o.TransactionID = update.TransactionID
	}
	details := update.Details
	o.PaymentDetails = &details
	o.UpdatedAt = time.Now()
	s.orders[id] = o
	return true, nil
}

func cloneOrder(o models.Order) models.Order {
	o.Items = slices.Clone(o.Items)
	if o.PaymentDetails != nil {
		d := *o.PaymentDetails
		o.PaymentDetails = &d
	}
	return o
}

// Users

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("%w: email already registered", global.ErrConflict)
		}
	}
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	u.SetTimestamps()
	s.users[u.ID] = cloneUser(*u)
	return nil
}

func (s *Store) FindUserByID(_ context.Context, id bson.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	u = cloneUser(u)
	return &u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", global.ErrNotFound, email)
}

func (s *Store) AppendOrder(_ context.Context, userID bson.ObjectID, txn models.Transaction, profile models.ShippingInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return notFound("user", userID)
	}
	u.Orders = append(slices.Clone(u.Orders), txn.OrderID)
	u.Transactions = append(slices.Clone(u.Transactions), txn)
	u.Cart = nil
	u.ShippingProfile = &profile
	u.UpdatedAt = time.Now()
	s.users[userID] = u
	return nil
}

func cloneUser(u models.User) models.User {
	u.Orders = slices.Clone(u.Orders)
	u.Transactions = slices.Clone(u.Transactions)
	u.Cart = slices.Clone(u.Cart)
	for i := range u.Cart {
		u.Cart[i].SelectedOptions = maps.Clone(u.Cart[i].SelectedOptions)
	}
	if u.ShippingProfile != nil {
		p := *u.ShippingProfile
		u.ShippingProfile = &p
	}
	return u
}
