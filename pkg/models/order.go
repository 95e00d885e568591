package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

// CanTransitionTo reports whether a payment may move from s to next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentPaid || next == PaymentFailed || next == PaymentCancelled
	case PaymentPaid:
		return next == PaymentRefunded
	}
	return false
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

const DefaultPaymentMethod = "PayU"

// OrderItem is a frozen copy of a cart line taken when the order is created.
type OrderItem struct {
	Product         bson.ObjectID     `json:"product" bson:"product"`
	Name            string            `json:"name" bson:"name"`
	Quantity        int               `json:"quantity" bson:"quantity"`
	Price           float64           `json:"price" bson:"price"`
	Image           string            `json:"image,omitempty" bson:"image,omitempty"`
	SelectedOptions map[string]string `json:"selectedOptions,omitempty" bson:"selected_options,omitempty"`
}

// ShippingInfo is the delivery address captured at checkout.
type ShippingInfo struct {
	FirstName string `json:"firstName" bson:"first_name" binding:"required" validate:"required"`
	LastName  string `json:"lastName" bson:"last_name" binding:"required" validate:"required"`
	Email     string `json:"email" bson:"email" binding:"required,email" validate:"required,email"`
	Phone     string `json:"phone" bson:"phone" binding:"required,phone" validate:"required,phone"`
	Address   string `json:"address" bson:"address" binding:"required" validate:"required"`
	City      string `json:"city" bson:"city" binding:"required" validate:"required"`
	State     string `json:"state" bson:"state" binding:"required" validate:"required"`
	ZipCode   string `json:"zipCode" bson:"zip_code" binding:"required" validate:"required"`
	Country   string `json:"country,omitempty" bson:"country"`
}

const DefaultCountry = "India"

// ApplyDefaults fills optional fields the store always records.
func (s *ShippingInfo) ApplyDefaults() {
	if s.Country == "" {
		s.Country = DefaultCountry
	}
}

// PaymentDetails is the gateway audit trail recorded on callbacks.
type PaymentDetails struct {
	Gateway              string     `json:"gateway,omitempty" bson:"gateway,omitempty"`
	GatewayTransactionID string     `json:"gatewayTransactionId,omitempty" bson:"gateway_transaction_id,omitempty"`
	Amount               float64    `json:"amount,omitempty" bson:"amount,omitempty"`
	Status               string     `json:"status,omitempty" bson:"status,omitempty"`
	PaidAt               *time.Time `json:"paidAt,omitempty" bson:"paid_at,omitempty"`
	FailedAt             *time.Time `json:"failedAt,omitempty" bson:"failed_at,omitempty"`
	PaymentMethod        string     `json:"paymentMethod,omitempty" bson:"payment_method,omitempty"`
	BankRefNum           string     `json:"bankRefNum,omitempty" bson:"bank_ref_num,omitempty"`
	BankCode             string     `json:"bankCode,omitempty" bson:"bank_code,omitempty"`
	Error                string     `json:"error,omitempty" bson:"error,omitempty"`
}

// Order is immutable in its items once created; only payment fields,
// status and updatedAt change afterwards.
type Order struct {
	ID             bson.ObjectID   `json:"id" bson:"_id,omitempty"`
	User           bson.ObjectID   `json:"user" bson:"user"`
	Items          []OrderItem     `json:"items" bson:"items"`
	ShippingInfo   ShippingInfo    `json:"shippingInfo" bson:"shipping_info"`
	Total          float64         `json:"total" bson:"total"`
	Tax            float64         `json:"tax" bson:"tax"`
	Shipping       float64         `json:"shipping" bson:"shipping"`
	Discount       float64         `json:"discount" bson:"discount"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus" bson:"payment_status"`
	Status         OrderStatus     `json:"status" bson:"status"`
	PaymentMethod  string          `json:"paymentMethod" bson:"payment_method"`
	TransactionID  string          `json:"transactionId,omitempty" bson:"transaction_id,omitempty"`
	PaymentDetails *PaymentDetails `json:"paymentDetails,omitempty" bson:"payment_details,omitempty"`
	CreatedAt      time.Time       `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" bson:"updated_at"`
}

func (o *Order) SetTimestamps() {
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
}

func (o *Order) GetItemCount() int {
	var count int
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

func (o *Order) HasBeenPaid() bool {
	return o.PaymentStatus == PaymentPaid
}

func (o *Order) IsOwnedBy(userID bson.ObjectID) bool {
	return o.User == userID
}

// PaymentUpdate moves an order out of a pending payment.
type PaymentUpdate struct {
	PaymentStatus PaymentStatus
	Status        OrderStatus
	TransactionID string
	Details       PaymentDetails
}

// OrderItemRequest is one line of an order creation request.
type OrderItemRequest struct {
	Product         string            `json:"product" binding:"required"`
	Name            string            `json:"name"`
	Quantity        int               `json:"quantity" binding:"required,min=1"`
	Price           float64           `json:"price" binding:"gte=0"`
	Image           string            `json:"image,omitempty"`
	SelectedOptions map[string]string `json:"selectedOptions,omitempty"`
}

type CreateOrderRequest struct {
	Items         []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingInfo  ShippingInfo       `json:"shippingInfo" binding:"required"`
	Total         float64            `json:"total" binding:"gte=0"`
	Tax           float64            `json:"tax" binding:"gte=0"`
	Shipping      float64            `json:"shipping" binding:"gte=0"`
	Discount      float64            `json:"discount" binding:"gte=0"`
	PaymentStatus PaymentStatus      `json:"paymentStatus,omitempty"`
	PaymentMethod string             `json:"paymentMethod,omitempty"`
	TransactionID string             `json:"transactionId,omitempty"`
}

// OrderPage is one page of a user's order history.
type OrderPage struct {
	Orders []Order `json:"orders"`
	Total  int64   `json:"total"`
	Page   int     `json:"page"`
	Pages  int     `json:"pages"`
}
