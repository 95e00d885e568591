package models

import (
	"maps"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// CartLine is a server-side cart entry stored on the user document.
type CartLine struct {
	LineID          string            `json:"lineId" bson:"line_id"`
	Product         bson.ObjectID     `json:"product" bson:"product"`
	Quantity        int               `json:"quantity" bson:"quantity"`
	SelectedOptions map[string]string `json:"selectedOptions,omitempty" bson:"selected_options,omitempty"`
	AddedAt         time.Time         `json:"addedAt" bson:"added_at"`
}

// SameItem reports whether two lines must be merged.
func (l CartLine) SameItem(product bson.ObjectID, options map[string]string) bool {
	return l.Product == product && maps.Equal(l.SelectedOptions, options)
}

// CartLineView is a cart line joined with its product. Its JSON shape is the
// one the storefront client keeps in memory.
type CartLineView struct {
	LineID            string            `json:"lineId"`
	ProductID         string            `json:"productId"`
	Name              string            `json:"name"`
	UnitPrice         float64           `json:"unitPrice"`
	OriginalUnitPrice *float64          `json:"originalUnitPrice,omitempty"`
	Quantity          int               `json:"quantity"`
	SelectedOptions   map[string]string `json:"selectedOptions,omitempty"`
	Image             string            `json:"image,omitempty"`
	Category          string            `json:"category,omitempty"`
	Brand             string            `json:"brand,omitempty"`
}

func NewCartLineView(line CartLine, p *Product) CartLineView {
	view := CartLineView{
		LineID:          line.LineID,
		ProductID:       line.Product.Hex(),
		Quantity:        line.Quantity,
		SelectedOptions: line.SelectedOptions,
	}
	if p == nil {
		return view
	}
	view.Name = p.Name
	view.UnitPrice = p.EffectivePrice()
	if view.UnitPrice != p.Price {
		original := p.Price
		view.OriginalUnitPrice = &original
	}
	view.Image = p.PrimaryImage()
	view.Category = p.Category
	view.Brand = p.Brand
	return view
}

type AddToCartRequest struct {
	LineID          string            `json:"lineId"`
	ProductID       string            `json:"productId" binding:"required"`
	Quantity        int               `json:"quantity" binding:"required,min=1"`
	SelectedOptions map[string]string `json:"selectedOptions"`
}

type UpdateCartItemRequest struct {
	LineID   string `json:"lineId" binding:"required"`
	Quantity int    `json:"quantity"`
}

type RemoveCartItemRequest struct {
	LineID string `json:"lineId"`
}
