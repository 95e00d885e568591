package orders

import (
	"fmt"

	"shophub.store/storefront/pkg/global"
)

// InsufficientStockError names the product that could not be fulfilled.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Remaining int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Only %d left.", e.Name, e.Remaining)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == global.ErrInsufficientStock
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", global.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", global.ErrUpstreamFailure, op, err)
}
