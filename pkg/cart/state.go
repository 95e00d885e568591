package cart

import (
	"maps"

	"github.com/shopspring/decimal"

	"shophub.store/storefront/pkg/pricing"
)

// LineItem is one product+options entry in the cart.
type LineItem struct {
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

// Matches reports whether the line holds productID with the same options.
// Option order is irrelevant; nil and empty options are equal.
func (l LineItem) Matches(productID string, options map[string]string) bool {
	return l.ProductID == productID && maps.Equal(l.SelectedOptions, options)
}

// ProductSnapshot is what the catalog hands over when a product is added.
type ProductSnapshot struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Price     float64  `json:"price"`
	SalePrice *float64 `json:"salePrice,omitempty"`
	Image     string   `json:"image,omitempty"`
	Category  string   `json:"category,omitempty"`
	Brand     string   `json:"brand,omitempty"`
}

// State is the whole client-side cart. Totals are derived and only ever
// written by recompute.
type State struct {
	Items  []LineItem      `json:"items"`
	IsOpen bool            `json:"isOpen"`
	Coupon *pricing.Coupon `json:"coupon,omitempty"`
	pricing.Totals
	IsPaymentInProgress bool `json:"isPaymentInProgress"`
}

// Snapshot is the durable pre-payment copy of the cart.
type Snapshot struct {
	Items  []LineItem      `json:"items"`
	Coupon *pricing.Coupon `json:"coupon,omitempty"`
	pricing.Totals
}

// persisted is the anonymous-session record stored under StorageKey.
type persisted struct {
	Items  []LineItem      `json:"items"`
	Coupon *pricing.Coupon `json:"coupon,omitempty"`
}

func (s State) ItemCount() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

func (s State) Line(lineID string) (LineItem, bool) {
	for _, it := range s.Items {
		if it.LineID == lineID {
			return it, true
		}
	}
	return LineItem{}, false
}

func (s State) find(productID string, options map[string]string) (LineItem, bool) {
	for _, it := range s.Items {
		if it.Matches(productID, options) {
			return it, true
		}
	}
	return LineItem{}, false
}

func (s State) Snapshot() Snapshot {
	return Snapshot{
		Items:  cloneItems(s.Items),
		Coupon: s.Coupon,
		Totals: s.Totals,
	}
}

func (s State) discount(subtotal decimal.Decimal) decimal.Decimal {
	if s.Coupon == nil {
		return decimal.Zero
	}
	return s.Coupon.Apply(subtotal)
}

func (s State) recompute() State {
	lines := make([]pricing.Line, len(s.Items))
	for i, it := range s.Items {
		lines[i] = pricing.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity}
	}
	s.Totals = pricing.Calculate(lines, s.discount(pricing.Subtotal(lines)))
	return s
}

func cloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, it := range items {
		it.SelectedOptions = maps.Clone(it.SelectedOptions)
		out[i] = it
	}
	return out
}
