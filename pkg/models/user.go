package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User is a storefront account. Orders, transactions and the server cart
// hang off the user document.
type User struct {
	ID              bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name            string          `bson:"name" json:"name"`
	Email           string          `bson:"email" json:"email"`
	Password        string          `bson:"password" json:"-"`
	Orders          []bson.ObjectID `bson:"orders" json:"orders"`
	Transactions    []Transaction   `bson:"transactions" json:"transactions"`
	Cart            []CartLine      `bson:"cart" json:"-"`
	ShippingProfile *ShippingInfo   `bson:"shipping_profile,omitempty" json:"shippingProfile,omitempty"`
	CreatedAt       time.Time       `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `bson:"updated_at" json:"updatedAt"`
}

// Transaction is the user-side record of an order's payment.
type Transaction struct {
	OrderID       bson.ObjectID `bson:"order_id" json:"orderId"`
	Amount        float64       `bson:"amount" json:"amount"`
	Status        PaymentStatus `bson:"status" json:"status"`
	PaymentMethod string        `bson:"payment_method" json:"paymentMethod"`
	Date          time.Time     `bson:"date" json:"date"`
}

func (u *User) SetTimestamps() {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
}

func (u *User) HasOrders() bool {
	return len(u.Orders) > 0
}

// Profile is what the account endpoint returns.
type Profile struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	HasOrders       bool          `json:"hasOrders"`
	ShippingProfile *ShippingInfo `json:"shippingProfile,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:              u.ID.Hex(),
		Name:            u.Name,
		Email:           u.Email,
		HasOrders:       u.HasOrders(),
		ShippingProfile: u.ShippingProfile,
	}
}

type SignupRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}
