package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/models"
)

func (s *Store) GetCart(_ context.Context, userID bson.ObjectID) ([]models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, notFound("user", userID)
	}
	return cloneUser(u).Cart, nil
}

// AddCartLine merges into a line with the same product and options, or
// appends line as given.
func (s *Store) AddCartLine(_ context.Context, userID bson.ObjectID, line models.CartLine) (models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.CartLine{}, notFound("user", userID)
	}
	u = cloneUser(u)

	for i := range u.Cart {
		if u.Cart[i].SameItem(line.Product, line.SelectedOptions) {
			u.Cart[i].Quantity += line.Quantity
			merged := u.Cart[i]
			s.users[userID] = u
			return merged, nil
		}
	}

	if line.AddedAt.IsZero() {
		line.AddedAt = time.Now()
	}
	line.SelectedOptions = maps.Clone(line.SelectedOptions)
	u.Cart = append(u.Cart, line)
	s.users[userID] = u
	return line, nil
}

func (s *Store) UpdateCartLine(_ context.Context, userID bson.ObjectID, lineID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return notFound("user", userID)
	}
	u = cloneUser(u)

	idx := slices.IndexFunc(u.Cart, func(l models.CartLine) bool { return l.LineID == lineID })
	if idx < 0 {
		return fmt.Errorf("%w: cart line %s", global.ErrNotFound, lineID)
	}
	if quantity <= 0 {
		u.Cart = slices.Delete(u.Cart, idx, idx+1)
	} else {
		u.Cart[idx].Quantity = quantity
	}
	s.users[userID] = u
	return nil
}

func (s *Store) RemoveCartLine(_ context.Context, userID bson.ObjectID, lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return notFound("user", userID)
	}
	u = cloneUser(u)
	u.Cart = slices.DeleteFunc(u.Cart, func(l models.CartLine) bool { return l.LineID == lineID })
	s.users[userID] = u
	return nil
}

func (s *Store) ClearCart(_ context.Context, userID bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return notFound("user", userID)
	}
	u.Cart = nil
	s.users[userID] = u
	return nil
}
