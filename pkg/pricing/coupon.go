package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"shophub.store/storefront/pkg/global"
)

type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

type Coupon struct {
	Code        string          `json:"code"`
	Type        CouponType      `json:"type"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
}

var ErrCouponNotFound = fmt.Errorf("coupon %w", global.ErrNotFound)

var coupons = map[string]Coupon{
	"SAVE10":    {Code: "SAVE10", Type: CouponPercentage, Value: decimal.NewFromInt(10), Description: "10% off"},
	"WELCOME20": {Code: "WELCOME20", Type: CouponPercentage, Value: decimal.NewFromInt(20), Description: "20% off"},
	"FLAT5":     {Code: "FLAT5", Type: CouponFixed, Value: decimal.NewFromInt(5), Description: "$5 off"},
}

// Resolve looks a code up case-insensitively.
func Resolve(code string) (Coupon, error) {
	c, ok := coupons[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Coupon{}, ErrCouponNotFound
	}
	return c, nil
}

// Apply returns the discount this coupon grants on subtotal, never more than subtotal.
func (c Coupon) Apply(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.Type {
	case CouponPercentage:
		discount = subtotal.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(2)
	case CouponFixed:
		discount = c.Value
	default:
		return decimal.Zero
	}

	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}
