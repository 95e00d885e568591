package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Product is the catalog entry. Only the fields the cart and order flow
// read are modelled here.
type Product struct {
	ID          bson.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string        `json:"name" bson:"name" validate:"required,min=2,max=200"`
	Description string        `json:"description,omitempty" bson:"description,omitempty"`
	Category    string        `json:"category" bson:"category"`
	Brand       string        `json:"brand" bson:"brand"`
	Price       float64       `json:"price" bson:"price" validate:"required,gt=0"`
	SalePrice   *float64      `json:"salePrice,omitempty" bson:"sale_price,omitempty"`
	Images      []string      `json:"images" bson:"images"`
	StockCount  int           `json:"stockCount" bson:"stock_count" validate:"gte=0"`
	CreatedAt   time.Time     `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time     `json:"updatedAt" bson:"updated_at"`
}

// EffectivePrice is the sale price when one is set and lower than the list price.
func (p *Product) EffectivePrice() float64 {
	if p.SalePrice != nil && *p.SalePrice > 0 && *p.SalePrice < p.Price {
		return *p.SalePrice
	}
	return p.Price
}

func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func (p *Product) IsInStock() bool {
	return p.StockCount > 0
}

func (p *Product) SetTimestamps() {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}
