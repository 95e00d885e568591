package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"shophub.store/storefront/pkg/cart"
	"shophub.store/storefront/pkg/models"
	"shophub.store/storefront/pkg/payu"
)

var _ cart.RemoteCart = (*Client)(nil)

// Cart

func (c *Client) GetCart(ctx context.Context, token string) ([]cart.LineItem, error) {
	var items []cart.LineItem
	if err := c.do(ctx, http.MethodGet, "/api/user/cart", token, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) AddItem(ctx context.Context, token string, line cart.LineItem) error {
	return c.do(ctx, http.MethodPost, "/api/user/cart", token, models.AddToCartRequest{
		LineID:          line.LineID,
		ProductID:       line.ProductID,
		Quantity:        line.Quantity,
		SelectedOptions: line.SelectedOptions,
	}, nil)
}

func (c *Client) UpdateItem(ctx context.Context, token, lineID string, quantity int) error {
	return c.do(ctx, http.MethodPut, "/api/user/cart", token, models.UpdateCartItemRequest{
		LineID:   lineID,
		Quantity: quantity,
	}, nil)
}

func (c *Client) RemoveItem(ctx context.Context, token, lineID string) error {
	return c.do(ctx, http.MethodDelete, "/api/user/cart?lineId="+url.QueryEscape(lineID), token, nil, nil)
}

func (c *Client) ClearCart(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodDelete, "/api/user/cart", token, nil, nil)
}

// Products

func (c *Client) GetProduct(ctx context.Context, id string) (cart.ProductSnapshot, error) {
	var p models.Product
	if err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), "", nil, &p); err != nil {
		return cart.ProductSnapshot{}, err
	}
	return cart.ProductSnapshot{
		ID:        p.ID.Hex(),
		Name:      p.Name,
		Price:     p.Price,
		SalePrice: p.SalePrice,
		Image:     p.PrimaryImage(),
		Category:  p.Category,
		Brand:     p.Brand,
	}, nil
}

// Orders

func (c *Client) CreateOrder(ctx context.Context, token string, req models.CreateOrderRequest) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", token, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ListOrders(ctx context.Context, token string, page, limit int) (models.OrderPage, error) {
	var out models.OrderPage
	path := fmt.Sprintf("/api/orders?page=%d&limit=%d", page, limit)
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return models.OrderPage{}, err
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, token, id string) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(id), token, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Payments

func (c *Client) InitiatePayment(ctx context.Context, token string, req payu.PaymentRequest) (payu.SignedRequest, error) {
	var signed payu.SignedRequest
	if err := c.do(ctx, http.MethodPost, "/api/payments/payu/initiate", token, req, &signed); err != nil {
		return payu.SignedRequest{}, err
	}
	return signed, nil
}

// Auth

func (c *Client) Signup(ctx context.Context, req models.SignupRequest) (models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", "", req, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, req models.LoginRequest) (models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", req, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context, token string) (models.Profile, error) {
	var out models.Profile
	err := c.do(ctx, http.MethodGet, "/api/auth/profile", token, nil, &out)
	return out, err
}
