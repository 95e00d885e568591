package cart

import (
	"maps"

	"github.com/google/uuid"

	"shophub.store/storefront/pkg/pricing"
)

// NewLineID mints line ids. Tests replace it for stable output.
var NewLineID = uuid.NewString

func Empty() State {
	return State{}.recompute()
}

// SetCart replaces the items wholesale, as on hydration.
func SetCart(s State, items []LineItem) State {
	s.Items = nil
	for _, it := range cloneItems(items) {
		if it.Quantity <= 0 {
			continue
		}
		if it.LineID == "" {
			it.LineID = NewLineID()
		}
		s.Items = append(s.Items, it)
	}
	return s.recompute()
}

// AddItem merges into an existing line with the same product and options,
// or appends a new line with a fresh id.
func AddItem(s State, p ProductSnapshot, quantity int, options map[string]string) State {
	if quantity < 1 {
		quantity = 1
	}

	items := cloneItems(s.Items)
	for i := range items {
		if items[i].Matches(p.ID, options) {
			items[i].Quantity += quantity
			s.Items = items
			return s.recompute()
		}
	}

	line := LineItem{
		LineID:          NewLineID(),
		ProductID:       p.ID,
		Name:            p.Name,
		UnitPrice:       p.Price,
		Quantity:        quantity,
		SelectedOptions: maps.Clone(options),
		Image:           p.Image,
		Category:        p.Category,
		Brand:           p.Brand,
	}
	if p.SalePrice != nil && *p.SalePrice > 0 && *p.SalePrice < p.Price {
		original := p.Price
		line.UnitPrice = *p.SalePrice
		line.OriginalUnitPrice = &original
	}

	s.Items = append(items, line)
	return s.recompute()
}

func RemoveItem(s State, lineID string) State {
	items := make([]LineItem, 0, len(s.Items))
	for _, it := range cloneItems(s.Items) {
		if it.LineID != lineID {
			items = append(items, it)
		}
	}
	s.Items = items
	return s.recompute()
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func UpdateQuantity(s State, lineID string, quantity int) State {
	if quantity <= 0 {
		return RemoveItem(s, lineID)
	}
	items := cloneItems(s.Items)
	for i := range items {
		if items[i].LineID == lineID {
			items[i].Quantity = quantity
		}
	}
	s.Items = items
	return s.recompute()
}

// ClearCart empties the cart, keeping only the open flag.
func ClearCart(s State) State {
	return State{IsOpen: s.IsOpen}.recompute()
}

func ToggleOpen(s State) State {
	s.IsOpen = !s.IsOpen
	return s
}

// ApplyCoupon replaces any active coupon. On an unknown code the state is
// returned untouched together with the lookup error.
func ApplyCoupon(s State, code string) (State, error) {
	c, err := pricing.Resolve(code)
	if err != nil {
		return s, err
	}
	s.Coupon = &c
	return s.recompute(), nil
}

func RemoveCoupon(s State) State {
	s.Coupon = nil
	return s.recompute()
}

// BeginPayment marks the cart as awaiting the gateway. Items stay in place
// until the payment resolves.
func BeginPayment(s State) State {
	s.IsPaymentInProgress = true
	return s
}

// RestoreSnapshot resolves a payment as failed. With no snapshot only the
// in-progress flag is cleared.
func RestoreSnapshot(s State, snap *Snapshot) State {
	s.IsPaymentInProgress = false
	if snap == nil {
		return s
	}
	s.Items = cloneItems(snap.Items)
	s.Coupon = snap.Coupon
	return s.recompute()
}

// CompletePayment resolves a payment as successful.
func CompletePayment(s State) State {
	return ClearCart(s)
}
