package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	TaxRate               = decimal.RequireFromString("0.08")
	FreeShippingThreshold = decimal.NewFromInt(50)
	FlatShipping          = decimal.RequireFromString("9.99")
)

// Line is the price-relevant view of a cart or order line.
type Line struct {
	UnitPrice float64
	Quantity  int
}

// Totals holds the derived money fields. Every field is rounded to cents.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Money converts a wire amount to a decimal. NaN, infinities and negatives become zero.
func Money(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		sum = sum.Add(Money(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum.Round(2)
}

// Shipping is waived strictly above the threshold. An empty cart ships for free.
func Shipping(subtotal decimal.Decimal, lineCount int) decimal.Decimal {
	if lineCount == 0 || subtotal.GreaterThan(FreeShippingThreshold) {
		return decimal.Zero
	}
	return FlatShipping
}

// Calculate derives subtotal, tax, shipping and total. Tax is charged on the
// pre-discount subtotal and the total never goes below zero.
func Calculate(lines []Line, discount decimal.Decimal) Totals {
	billable := 0
	for _, l := range lines {
		if l.Quantity > 0 {
			billable++
		}
	}

	subtotal := Subtotal(lines)
	tax := subtotal.Mul(TaxRate).Round(2)
	shipping := Shipping(subtotal, billable)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	discount = discount.Round(2)

	total := subtotal.Add(tax).Add(shipping).Sub(discount).Round(2)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    total,
	}
}

// Amount renders a total the way the payment gateway expects it.
func Amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
